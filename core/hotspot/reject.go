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
	"runtime"

	"github.com/aegisflow/aegis-go/core/base"
	"github.com/aegisflow/aegis-go/util"
)

// RejectChecker runs a lazy per-value token bucket: tokens refill only
// when a value is seen again after its statistic window has elapsed.
type RejectChecker struct{}

func NewRejectChecker() *RejectChecker { return &RejectChecker{} }

func (rc *RejectChecker) DoCheck(owner *Controller, arg interface{}, batchCount uint32) *base.TokenResult {
	timeCounter := owner.metric.ruleTimeCounter
	tokenCounter := owner.metric.ruleTokenCounter
	if timeCounter.cap() == 0 || tokenCounter.cap() == 0 {
		return base.NewTokenResultPass()
	}

	tokenCount := owner.rule.Threshold
	if v, ok := owner.rule.SpecificItems[arg]; ok {
		tokenCount = v
	}
	if tokenCount == 0 {
		msg := fmt.Sprintf("hotspot QPS check blocked, threshold is 0, arg: %v", arg)
		return base.NewTokenResultBlocked(base.NewBlockErrorWithSnapshot(base.BlockTypeHotSpotParamFlow, msg, owner.rule, base.MetricSnapshot{"arg": arg}))
	}

	maxCount := tokenCount + owner.rule.BurstCount
	if uint64(batchCount) > maxCount {
		msg := fmt.Sprintf("hotspot reject check blocked, batch count exceeds max token count, arg: %v", arg)
		return base.NewTokenResultBlocked(base.NewBlockErrorWithSnapshot(base.BlockTypeHotSpotParamFlow, msg, owner.rule, base.MetricSnapshot{"batchCount": batchCount, "maxCount": maxCount}))
	}

	windowMs := owner.rule.DurationInSec * 1000

	for {
		now := util.CurrentTimeMillis()
		lastAddTime, inserted := timeCounter.addIfAbsent(arg, now)
		if inserted {
			tokenCounter.add(arg, maxCount-uint64(batchCount))
			return base.NewTokenResultPass()
		}

		passedMs := int64(now) - int64(lastAddTime.Load())
		if passedMs > int64(windowMs) {
			oldRest, existed := tokenCounter.addIfAbsent(arg, maxCount-uint64(batchCount))
			if !existed {
				lastAddTime.Store(now)
				return base.NewTokenResultPass()
			}
			restTokens := oldRest.Load()
			toAdd := uint64(passedMs) * tokenCount / windowMs

			var newCount int64
			if toAdd+restTokens > maxCount {
				newCount = int64(maxCount) - int64(batchCount)
			} else {
				newCount = int64(toAdd) + int64(restTokens) - int64(batchCount)
			}
			if newCount < 0 {
				msg := fmt.Sprintf("hotspot reject check blocked, batch count exceeds available tokens, arg: %v", arg)
				return base.NewTokenResultBlocked(base.NewBlockErrorWithSnapshot(base.BlockTypeHotSpotParamFlow, msg, owner.rule, base.MetricSnapshot{"arg": arg}))
			}
			if oldRest.CompareAndSwap(restTokens, uint64(newCount)) {
				lastAddTime.Store(now)
				return base.NewTokenResultPass()
			}
			runtime.Gosched()
			continue
		}

		existing, ok := tokenCounter.get(arg)
		if !ok {
			runtime.Gosched()
			continue
		}
		rest := existing.Load()
		if rest < uint64(batchCount) {
			msg := fmt.Sprintf("hotspot reject check blocked, batch count exceeds available tokens, arg: %v", arg)
			return base.NewTokenResultBlocked(base.NewBlockErrorWithSnapshot(base.BlockTypeHotSpotParamFlow, msg, owner.rule, base.MetricSnapshot{"arg": arg}))
		}
		if existing.CompareAndSwap(rest, rest-uint64(batchCount)) {
			return base.NewTokenResultPass()
		}
		runtime.Gosched()
	}
}
