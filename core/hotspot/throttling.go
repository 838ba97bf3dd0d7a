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
	"fmt"
	"math"

	"github.com/aegisflow/aegis-go/core/base"
	"github.com/aegisflow/aegis-go/util"
)

// ThrottlingChecker applies the same even-spacing strategy as flow's
// throttling checker, but keyed per extracted parameter value: each value
// gets its own reserved-interval timeline in ruleTimeCounter.
type ThrottlingChecker struct{}

func NewThrottlingChecker() *ThrottlingChecker { return &ThrottlingChecker{} }

func (tc *ThrottlingChecker) DoCheck(owner *Controller, arg interface{}, batchCount uint32) *base.TokenResult {
	timeCounter := owner.metric.ruleTimeCounter
	if timeCounter.cap() == 0 {
		return base.NewTokenResultPass()
	}

	threshold := owner.rule.Threshold
	if v, ok := owner.rule.SpecificItems[arg]; ok {
		threshold = v
	}
	if threshold == 0 {
		msg := fmt.Sprintf("hotspot throttling check blocked, threshold is 0, arg: %v", arg)
		return base.NewTokenResultBlocked(base.NewBlockErrorWithSnapshot(base.BlockTypeHotSpotParamFlow, msg, owner.rule, base.MetricSnapshot{"arg": arg}))
	}

	windowMs := owner.rule.DurationInSec * 1000
	intervalNs := int64(math.Ceil(float64(batchCount)/float64(threshold)*float64(windowMs))) * int64(1e6)
	maxQueueingNs := int64(owner.rule.MaxQueueingTimeMs) * int64(1e6)

	lastPassed, inserted := timeCounter.addIfAbsent(arg, uint64(util.CurrentTimeNano()))
	if inserted {
		return base.NewTokenResultPass()
	}

	for {
		now := int64(util.CurrentTimeNano())
		oldLastPassed := int64(lastPassed.Load())
		expected := oldLastPassed + intervalNs

		if expected <= now {
			if lastPassed.CompareAndSwap(uint64(oldLastPassed), uint64(now)) {
				return base.NewTokenResultPass()
			}
			continue
		}

		wait := expected - now
		if wait > maxQueueingNs {
			msg := fmt.Sprintf("hotspot throttling check blocked, queueing time exceeds max, arg: %v", arg)
			return base.NewTokenResultBlocked(base.NewBlockErrorWithSnapshot(base.BlockTypeHotSpotParamFlow, msg, owner.rule, base.MetricSnapshot{"arg": arg}))
		}

		newLastPassed := uint64(oldLastPassed + intervalNs)
		if !lastPassed.CompareAndSwap(uint64(oldLastPassed), newLastPassed) {
			continue
		}
		wait = int64(newLastPassed) - now
		if wait > maxQueueingNs {
			lastPassed.Add(^uint64(intervalNs - 1))
			msg := fmt.Sprintf("hotspot throttling check blocked, queueing time exceeds max, arg: %v", arg)
			return base.NewTokenResultBlocked(base.NewBlockErrorWithSnapshot(base.BlockTypeHotSpotParamFlow, msg, owner.rule, base.MetricSnapshot{"arg": arg}))
		}
		return base.NewTokenResultShouldWait(wait)
	}
}
