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

// Package hotspot implements frequent-parameter flow control: rules key
// their statistic off one argument of the call (by position or by
// attachment key) rather than off the resource as a whole.
package hotspot

import (
	"fmt"

	"github.com/pkg/errors"
)

// MetricType is the per-parameter signal a hotspot rule checks.
type MetricType int8

const (
	// Concurrency tracks how many in-flight entries currently carry a
	// given parameter value.
	Concurrency MetricType = iota
	// QPS tracks the request rate for a given parameter value.
	QPS
)

func (m MetricType) String() string {
	switch m {
	case Concurrency:
		return "Concurrency"
	case QPS:
		return "QPS"
	default:
		return "Undefined"
	}
}

// ControlStrategy selects the traffic shaping behavior; only meaningful
// when MetricType is QPS.
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

// Rule is a hot-spot (frequent parameter) flow control rule.
type Rule struct {
	ID       string
	Resource string

	MetricType      MetricType
	ControlStrategy ControlStrategy

	// ParamIndex is the positional argument index (may be negative,
	// counting from the end of Input.Args). Mutually exclusive with
	// ParamKey; ParamKey, when non-empty, takes priority.
	ParamIndex int
	// ParamKey is the attachment map key. Takes precedence over
	// ParamIndex when both are set.
	ParamKey string

	Threshold uint64

	// BurstCount only applies when ControlStrategy is Reject and
	// MetricType is QPS.
	BurstCount uint64
	// MaxQueueingTimeMs only applies when ControlStrategy is Throttling
	// and MetricType is QPS.
	MaxQueueingTimeMs uint64
	// DurationInSec is the statistic window; only applies when
	// MetricType is QPS.
	DurationInSec uint64

	// ParamsMaxCapacity bounds the LRU cache of observed parameter
	// values; zero picks a strategy-dependent default.
	ParamsMaxCapacity int

	// SpecificItems overrides Threshold for particular parameter values.
	SpecificItems map[interface{}]uint64
}

func (r *Rule) ResourceName() string { return r.Resource }

func (r *Rule) String() string {
	return fmt.Sprintf("hotspot.Rule{id=%s, resource=%s, metric=%s, control=%s, paramIndex=%d, paramKey=%s, "+
		"threshold=%d, burstCount=%d, maxQueueingTimeMs=%d, durationInSec=%d, paramsMaxCapacity=%d}",
		r.ID, r.Resource, r.MetricType, r.ControlStrategy, r.ParamIndex, r.ParamKey,
		r.Threshold, r.BurstCount, r.MaxQueueingTimeMs, r.DurationInSec, r.ParamsMaxCapacity)
}

// Equals is a field-by-field comparison, including the specific-items
// override map.
func (r *Rule) Equals(other *Rule) bool {
	if other == nil {
		return false
	}
	if r.ID != other.ID || r.Resource != other.Resource || r.MetricType != other.MetricType ||
		r.ControlStrategy != other.ControlStrategy || r.ParamIndex != other.ParamIndex ||
		r.ParamKey != other.ParamKey || r.Threshold != other.Threshold ||
		r.DurationInSec != other.DurationInSec || r.ParamsMaxCapacity != other.ParamsMaxCapacity {
		return false
	}
	switch r.ControlStrategy {
	case Reject:
		if r.BurstCount != other.BurstCount {
			return false
		}
	case Throttling:
		if r.MaxQueueingTimeMs != other.MaxQueueingTimeMs {
			return false
		}
	}
	if len(r.SpecificItems) != len(other.SpecificItems) {
		return false
	}
	for k, v := range r.SpecificItems {
		if ov, ok := other.SpecificItems[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// IsStatReusable reports whether the per-parameter counters backing r can
// be carried over to other across a rule reload.
func (r *Rule) IsStatReusable(other *Rule) bool {
	if other == nil {
		return false
	}
	return r.Resource == other.Resource &&
		r.ControlStrategy == other.ControlStrategy &&
		r.ParamsMaxCapacity == other.ParamsMaxCapacity &&
		r.DurationInSec == other.DurationInSec &&
		r.MetricType == other.MetricType
}

// Validate checks r's submission rules: resource required, QPS rules need
// a positive duration, and param_index /
// param_key are mutually exclusive (param_key wins when both are set, but
// a rule asserting both a positive index and a key is rejected outright).
func Validate(r *Rule) error {
	if r == nil {
		return errors.New("nil hotspot rule")
	}
	if r.Resource == "" {
		return errors.New("hotspot rule resource name must not be empty")
	}
	if r.MetricType == QPS && r.DurationInSec == 0 {
		return errors.New("hotspot rule durationInSec must be positive for QPS metric")
	}
	if r.ParamIndex > 0 && r.ParamKey != "" {
		return errors.New("hotspot rule paramIndex and paramKey are mutually exclusive")
	}
	return nil
}
