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

package hotspot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThrottlingFirstSightPasses(t *testing.T) {
	rule := &Rule{
		Resource:        "abc",
		MetricType:      QPS,
		ControlStrategy: Throttling,
		Threshold:       1,
		DurationInSec:   1,
	}
	c := NewController(rule)
	c.SetChecker(NewThrottlingChecker())

	result := c.PerformChecking("v1", 1)
	assert.True(t, result.IsPass())
}

func TestThrottlingSecondCallWithinWindowMustWait(t *testing.T) {
	rule := &Rule{
		Resource:          "abc",
		MetricType:        QPS,
		ControlStrategy:   Throttling,
		Threshold:         1,
		DurationInSec:     1,
		MaxQueueingTimeMs: 5000,
	}
	c := NewController(rule)
	c.SetChecker(NewThrottlingChecker())

	require.True(t, c.PerformChecking("v1", 1).IsPass())

	// Reserved interval is 1s for threshold=1/duration=1s; calling again
	// immediately falls inside that interval, so it must queue rather than
	// pass outright or block, since MaxQueueingTimeMs comfortably covers it.
	result := c.PerformChecking("v1", 1)
	assert.True(t, result.IsShouldWait())
	assert.Greater(t, result.NanosToWait(), int64(0))
}

func TestThrottlingQueueingBeyondMaxIsBlocked(t *testing.T) {
	rule := &Rule{
		Resource:          "abc",
		MetricType:        QPS,
		ControlStrategy:   Throttling,
		Threshold:         1,
		DurationInSec:     1,
		MaxQueueingTimeMs: 1,
	}
	c := NewController(rule)
	c.SetChecker(NewThrottlingChecker())

	require.True(t, c.PerformChecking("v1", 1).IsPass())

	// Same 1s reserved interval, but MaxQueueingTimeMs is far too small to
	// cover the wait, so this call should be blocked outright.
	result := c.PerformChecking("v1", 1)
	assert.True(t, result.IsBlocked())
}

func TestThrottlingZeroThresholdBlocks(t *testing.T) {
	rule := &Rule{
		Resource:        "abc",
		MetricType:      QPS,
		ControlStrategy: Throttling,
		Threshold:       0,
		DurationInSec:   1,
	}
	c := NewController(rule)
	c.SetChecker(NewThrottlingChecker())

	result := c.PerformChecking("v1", 1)
	assert.True(t, result.IsBlocked())
}

func TestThrottlingPerValueIsolation(t *testing.T) {
	rule := &Rule{
		Resource:          "abc",
		MetricType:        QPS,
		ControlStrategy:   Throttling,
		Threshold:         1,
		DurationInSec:     1,
		MaxQueueingTimeMs: 1,
	}
	c := NewController(rule)
	c.SetChecker(NewThrottlingChecker())

	require.True(t, c.PerformChecking("v1", 1).IsPass())
	// A different parameter value starts its own fresh timeline.
	assert.True(t, c.PerformChecking("v2", 1).IsPass())
}
