// Copyright 1999-2020 Alibaba Group Holding Ltd.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package flow implements the quantitative flow-control strategy: Direct,
// WarmUp and MemoryAdaptive calculators paired with Reject or Throttling
// checkers.
package flow

import (
	"fmt"

	"github.com/pkg/errors"
)

type CalculateStrategy int8

const (
	Direct CalculateStrategy = iota
	WarmUp
	MemoryAdaptive
	CalculateCustom CalculateStrategy = 99
)

func (s CalculateStrategy) String() string {
	switch s {
	case Direct:
		return "Direct"
	case WarmUp:
		return "WarmUp"
	case MemoryAdaptive:
		return "MemoryAdaptive"
	default:
		return "Custom"
	}
}

type ControlStrategy int8

const (
	Reject ControlStrategy = iota
	Throttling
	ControlCustom ControlStrategy = 99
)

func (s ControlStrategy) String() string {
	switch s {
	case Reject:
		return "Reject"
	case Throttling:
		return "Throttling"
	default:
		return "Custom"
	}
}

type RelationStrategy int8

const (
	CurrentResource RelationStrategy = iota
	AssociatedResource
)

// Rule is a quantitative flow-control rule.
type Rule struct {
	ID       string
	Resource string

	CalculateStrategy CalculateStrategy
	ControlStrategy   ControlStrategy

	Threshold        float64
	RelationStrategy RelationStrategy
	RefResource      string

	WarmUpPeriodSec uint32
	ColdFactor      uint32

	MaxQueueingTimeMs uint32

	// StatIntervalInMs, if non-zero, overrides the resource's default
	// statistic interval for this rule's own leap array.
	StatIntervalInMs uint32

	MemLowWaterMarkBytes  uint64
	MemHighWaterMarkBytes uint64
	LowMemUsageThreshold  float64
	HighMemUsageThreshold float64
}

func (r *Rule) ResourceName() string { return r.Resource }

func (r *Rule) String() string {
	return fmt.Sprintf("Rule{id=%s, resource=%s, calculate=%s, control=%s, threshold=%.2f, relation=%d, refResource=%s, "+
		"warmUpPeriodSec=%d, coldFactor=%d, maxQueueingTimeMs=%d, statIntervalInMs=%d}",
		r.ID, r.Resource, r.CalculateStrategy, r.ControlStrategy, r.Threshold, r.RelationStrategy, r.RefResource,
		r.WarmUpPeriodSec, r.ColdFactor, r.MaxQueueingTimeMs, r.StatIntervalInMs)
}

// Equals is a field-by-field comparison; two rules compare equal iff every
// field (not just the id) matches, so a reload that only bumps the
// threshold is correctly seen as a different rule.
func (r *Rule) Equals(other *Rule) bool {
	if other == nil {
		return false
	}
	return *r == *other
}

// IsStatReusable reports whether r and other share enough shape (resource,
// strategy-discriminating fields, stat interval) that the underlying
// statistic (leap array / calculator-checker internal state) can be
// carried over across a rule reload rather than rebuilt from scratch.
func (r *Rule) IsStatReusable(other *Rule) bool {
	if other == nil {
		return false
	}
	return r.Resource == other.Resource &&
		r.CalculateStrategy == other.CalculateStrategy &&
		r.ControlStrategy == other.ControlStrategy &&
		r.RelationStrategy == other.RelationStrategy &&
		r.RefResource == other.RefResource &&
		r.StatIntervalInMs == other.StatIntervalInMs
}

// Validate checks r's submission rules specifically (bounds on warm-up and
// memory-adaptive parameters).
func Validate(r *Rule) error {
	if r == nil {
		return errors.New("nil flow rule")
	}
	if r.Resource == "" {
		return errors.New("flow rule resource name must not be empty")
	}
	if r.Threshold < 0 {
		return errors.New("flow rule threshold must not be negative")
	}
	if r.CalculateStrategy == WarmUp {
		if r.WarmUpPeriodSec == 0 {
			return errors.New("flow rule warmUpPeriodSec must be positive for WarmUp strategy")
		}
		if r.ColdFactor <= 1 {
			return errors.New("flow rule coldFactor must be greater than 1 for WarmUp strategy")
		}
	}
	if r.CalculateStrategy == MemoryAdaptive {
		if r.MemLowWaterMarkBytes == 0 || r.MemHighWaterMarkBytes == 0 {
			return errors.New("flow rule memory water marks must be positive for MemoryAdaptive strategy")
		}
		if r.MemLowWaterMarkBytes >= r.MemHighWaterMarkBytes {
			return errors.New("flow rule memLowWaterMark must be less than memHighWaterMark")
		}
		if r.HighMemUsageThreshold >= r.LowMemUsageThreshold {
			return errors.New("flow rule highMemUsageThreshold must be less than lowMemUsageThreshold")
		}
	}
	if r.ControlStrategy == Throttling && r.RelationStrategy == AssociatedResource && r.RefResource == "" {
		return errors.New("flow rule with associated relation strategy must set refResource")
	}
	if r.RelationStrategy == AssociatedResource && r.RefResource == "" {
		return errors.New("flow rule with associated relation strategy must set refResource")
	}
	return nil
}
