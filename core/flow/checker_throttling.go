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

package flow

import (
	"math"
	"sync/atomic"

	"github.com/aegisflow/aegis-go/core/base"
	"github.com/aegisflow/aegis-go/util"
)

// defaultThrottlingStatIntervalMs is used when a rule omits StatIntervalInMs:
// the threshold is then interpreted as a per-second rate.
const defaultThrottlingStatIntervalMs = 1000

// ThrottlingChecker spaces admitted calls evenly rather than rejecting
// bursts outright: each admitted call reserves an inter-request interval,
// and a call arriving inside someone else's reservation either waits (if
// the wait fits within MaxQueueingTimeMs) or is blocked.
type ThrottlingChecker struct {
	rule *Rule

	// lastPassedNs is the nanosecond timestamp through which admitted
	// calls have reserved the spacing interval.
	lastPassedNs int64
}

func NewThrottlingChecker(rule *Rule) *ThrottlingChecker {
	return &ThrottlingChecker{rule: rule}
}

func (c *ThrottlingChecker) statIntervalNs() int64 {
	statIntervalMs := c.rule.StatIntervalInMs
	if statIntervalMs == 0 {
		statIntervalMs = defaultThrottlingStatIntervalMs
	}
	return int64(statIntervalMs) * int64(1e6)
}

func (c *ThrottlingChecker) DoCheck(_ base.StatNode, batchCount uint32, threshold float64) *base.TokenResult {
	if threshold <= 0 {
		return base.NewTokenResultBlockedWithMessage(base.BlockTypeFlow, "throttling check blocked: non-positive threshold")
	}
	intervalNs := int64(math.Ceil(float64(batchCount)) / threshold * float64(c.statIntervalNs()))
	maxQueueingNs := int64(c.rule.MaxQueueingTimeMs) * int64(1e6)

	for {
		now := int64(util.CurrentTimeNano())
		oldLastPassed := atomic.LoadInt64(&c.lastPassedNs)
		expectedTime := oldLastPassed + intervalNs

		if expectedTime <= now {
			if atomic.CompareAndSwapInt64(&c.lastPassedNs, oldLastPassed, now) {
				return base.NewTokenResultPass()
			}
			continue
		}

		waitTime := expectedTime - now
		if waitTime > maxQueueingNs {
			return base.NewTokenResultBlockedWithMessage(base.BlockTypeFlow, "throttling check blocked: queueing time exceeds max_queueing_time_ms")
		}

		newLastPassed := atomic.AddInt64(&c.lastPassedNs, intervalNs)
		waitTime = newLastPassed - now
		if waitTime > maxQueueingNs {
			atomic.AddInt64(&c.lastPassedNs, -intervalNs)
			return base.NewTokenResultBlockedWithMessage(base.BlockTypeFlow, "throttling check blocked: queueing time exceeds max_queueing_time_ms")
		}
		return base.NewTokenResultShouldWait(waitTime)
	}
}
