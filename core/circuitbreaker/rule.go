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

// Package circuitbreaker implements the Closed/Open/HalfOpen breaker state
// machine for SlowRequestRatio, ErrorRatio and ErrorCount strategies.
package circuitbreaker

import (
	"fmt"

	"github.com/pkg/errors"
)

// Strategy selects which signal trips the breaker.
type Strategy int8

const (
	SlowRequestRatio Strategy = iota
	ErrorRatio
	ErrorCount
	StrategyCustom Strategy = 99
)

func (s Strategy) String() string {
	switch s {
	case SlowRequestRatio:
		return "SlowRequestRatio"
	case ErrorRatio:
		return "ErrorRatio"
	case ErrorCount:
		return "ErrorCount"
	default:
		return "Custom"
	}
}

// Rule is a circuit breaking rule.
type Rule struct {
	ID       string
	Resource string
	Strategy Strategy

	// RetryTimeoutMs is the Open-state duration before a probe is let
	// through into HalfOpen.
	RetryTimeoutMs uint32
	// MinRequestAmount is the minimum sample size (within the active
	// statistic window) before the breaker will consider tripping.
	MinRequestAmount uint64
	// StatIntervalMs is the circuit breaker's own statistic window,
	// independent of any flow rule over the same resource.
	StatIntervalMs uint32
	// StatSlidingWindowBucketCount buckets StatIntervalMs; 0 (or any
	// value that doesn't evenly divide StatIntervalMs) falls back to 1.
	StatSlidingWindowBucketCount uint32
	// MaxAllowedRtMs only applies to SlowRequestRatio: any request
	// slower than this is counted as slow.
	MaxAllowedRtMs uint64
	// Threshold is the max slow-request ratio (SlowRequestRatio), max
	// error ratio (ErrorRatio) or max error count (ErrorCount).
	Threshold float64
}

func (r *Rule) ResourceName() string { return r.Resource }

func (r *Rule) String() string {
	return fmt.Sprintf("circuitbreaker.Rule{id=%s, resource=%s, strategy=%s, retryTimeoutMs=%d, "+
		"minRequestAmount=%d, statIntervalMs=%d, bucketCount=%d, maxAllowedRtMs=%d, threshold=%.4f}",
		r.ID, r.Resource, r.Strategy, r.RetryTimeoutMs, r.MinRequestAmount, r.StatIntervalMs,
		r.StatSlidingWindowBucketCount, r.MaxAllowedRtMs, r.Threshold)
}

// BucketCount returns the effective bucket count: StatSlidingWindowBucketCount
// when it's positive and evenly divides StatIntervalMs, else 1.
func (r *Rule) BucketCount() uint32 {
	bc := r.StatSlidingWindowBucketCount
	if bc == 0 || r.StatIntervalMs%bc != 0 {
		return 1
	}
	return bc
}

// Equals is a field-by-field comparison; the strategy-specific field
// (MaxAllowedRtMs) only participates for the strategies that use it.
func (r *Rule) Equals(other *Rule) bool {
	if other == nil {
		return false
	}
	if r.Resource != other.Resource || r.Strategy != other.Strategy ||
		r.RetryTimeoutMs != other.RetryTimeoutMs || r.MinRequestAmount != other.MinRequestAmount ||
		r.StatIntervalMs != other.StatIntervalMs ||
		r.StatSlidingWindowBucketCount != other.StatSlidingWindowBucketCount ||
		r.Threshold != other.Threshold {
		return false
	}
	if r.Strategy == SlowRequestRatio {
		return r.MaxAllowedRtMs == other.MaxAllowedRtMs
	}
	return true
}

// IsStatReusable reports whether r and other share enough shape that the
// underlying statistic buckets can be carried over across a rule reload.
func (r *Rule) IsStatReusable(other *Rule) bool {
	if other == nil {
		return false
	}
	return r.Resource == other.Resource &&
		r.Strategy == other.Strategy &&
		r.StatIntervalMs == other.StatIntervalMs &&
		r.StatSlidingWindowBucketCount == other.StatSlidingWindowBucketCount
}

// Validate checks r's submission rules.
func Validate(r *Rule) error {
	if r == nil {
		return errors.New("nil circuit breaker rule")
	}
	if r.Resource == "" {
		return errors.New("circuit breaker rule resource name must not be empty")
	}
	if r.StatIntervalMs == 0 {
		return errors.New("circuit breaker rule statIntervalMs must be positive")
	}
	if r.RetryTimeoutMs == 0 {
		return errors.New("circuit breaker rule retryTimeoutMs must be positive")
	}
	if r.Threshold < 0 {
		return errors.New("circuit breaker rule threshold must not be negative")
	}
	if (r.Strategy == SlowRequestRatio || r.Strategy == ErrorRatio) && r.Threshold > 1.0 {
		return errors.Errorf("invalid %s ratio threshold (valid range: [0.0, 1.0])", r.Strategy)
	}
	return nil
}
