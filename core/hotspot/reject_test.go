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
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRejectCheckerAdmitsUpToBurst(t *testing.T) {
	rule := &Rule{
		Resource:      "abc",
		MetricType:    QPS,
		ControlStrategy: Reject,
		Threshold:     2,
		BurstCount:    1,
		DurationInSec: 1,
	}
	c := NewController(rule)
	c.SetChecker(NewRejectChecker())

	// max_count = threshold + burst = 3; three calls for the same value
	// should all pass within the same window, the fourth should block.
	for i := 0; i < 3; i++ {
		result := c.PerformChecking("v1", 1)
		assert.True(t, result.IsPass(), "call %d should pass within the burst budget", i)
	}
	result := c.PerformChecking("v1", 1)
	assert.True(t, result.IsBlocked())
}

func TestRejectCheckerPerValueIsolation(t *testing.T) {
	rule := &Rule{
		Resource:      "abc",
		MetricType:    QPS,
		ControlStrategy: Reject,
		Threshold:     1,
		DurationInSec: 1,
	}
	c := NewController(rule)
	c.SetChecker(NewRejectChecker())

	assert.True(t, c.PerformChecking("v1", 1).IsPass())
	assert.True(t, c.PerformChecking("v1", 1).IsBlocked())
	// A different parameter value has its own independent budget.
	assert.True(t, c.PerformChecking("v2", 1).IsPass())
}

func TestRejectCheckerRefillsAfterWindow(t *testing.T) {
	rule := &Rule{
		Resource:      "abc",
		MetricType:    QPS,
		ControlStrategy: Reject,
		Threshold:     1,
		DurationInSec: 1,
	}
	c := NewController(rule)
	c.SetChecker(NewRejectChecker())

	assert.True(t, c.PerformChecking("v1", 1).IsPass())
	assert.True(t, c.PerformChecking("v1", 1).IsBlocked())

	time.Sleep(1100 * time.Millisecond)
	assert.True(t, c.PerformChecking("v1", 1).IsPass(), "tokens should have refilled after the statistic window elapsed")
}

func TestRejectCheckerBatchExceedingMaxCountBlocks(t *testing.T) {
	rule := &Rule{
		Resource:      "abc",
		MetricType:    QPS,
		ControlStrategy: Reject,
		Threshold:     2,
		BurstCount:    0,
		DurationInSec: 1,
	}
	c := NewController(rule)
	c.SetChecker(NewRejectChecker())

	result := c.PerformChecking("v1", 3)
	assert.True(t, result.IsBlocked(), "a single batch larger than max_count must never be admitted")
}
