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

package system

import (
	"fmt"

	"github.com/pkg/errors"
)

// MetricType is the process-wide signal a system rule compares against its
// threshold.
type MetricType int32

const (
	MetricInboundQPS MetricType = iota
	MetricConcurrency
	MetricAvgRT
	MetricLoad
	MetricCpuUsage
)

func (m MetricType) String() string {
	switch m {
	case MetricInboundQPS:
		return "InboundQPS"
	case MetricConcurrency:
		return "Concurrency"
	case MetricAvgRT:
		return "AvgRT"
	case MetricLoad:
		return "Load"
	case MetricCpuUsage:
		return "CpuUsage"
	default:
		return "Undefined"
	}
}

// AdaptiveStrategy decides what happens once a rule's metric has crossed
// its threshold.
type AdaptiveStrategy int32

const (
	// NoAdaptive blocks unconditionally once the threshold is crossed.
	NoAdaptive AdaptiveStrategy = iota
	// BBR additionally admits when the simple concurrency/min-rt/max-complete
	// guard still has headroom.
	BBR
)

// Rule is a system-adaptive protection rule, applied only to Inbound
// traffic.
type Rule struct {
	ID         string
	MetricType MetricType
	Threshold  float64
	Strategy   AdaptiveStrategy
}

func (r *Rule) String() string {
	return fmt.Sprintf("system.Rule{id=%s, metric=%s, threshold=%.2f, strategy=%d}", r.ID, r.MetricType, r.Threshold, r.Strategy)
}

func (r *Rule) Equals(other *Rule) bool {
	if other == nil {
		return false
	}
	return *r == *other
}

func Validate(r *Rule) error {
	if r == nil {
		return errors.New("nil system rule")
	}
	if r.Threshold < 0 {
		return errors.New("system rule threshold must not be negative")
	}
	return nil
}
