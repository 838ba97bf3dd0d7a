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
	"github.com/aegisflow/aegis-go/core/base"
)

const RuleCheckSlotOrder = 4000

var DefaultSlot = &Slot{}

// Slot is the hot-spot RuleCheckSlot: for every controller loaded against
// the resource, it extracts the parameter value the rule cares about and
// checks it. A Concurrency-metric controller also registers an exit hook
// to release the per-value counter it incremented.
type Slot struct{}

func (s *Slot) Order() uint32 { return RuleCheckSlotOrder }

func (s *Slot) Check(ctx *base.EntryContext) *base.TokenResult {
	res := ctx.Resource.Name()
	controllers := ControllersFor(res)
	if len(controllers) == 0 {
		return base.NewTokenResultPass()
	}

	batchCount := uint32(1)
	if ctx.Input != nil && ctx.Input.BatchCount > 0 {
		batchCount = ctx.Input.BatchCount
	}

	for _, controller := range controllers {
		arg, ok := controller.ExtractArg(ctx)
		if !ok {
			continue
		}
		result := controller.PerformChecking(arg, batchCount)
		if controller.Rule().MetricType == Concurrency {
			registerConcurrencyRelease(ctx, controller, arg, result)
		}
		if result.IsBlocked() || result.IsShouldWait() {
			return result
		}
	}
	return base.NewTokenResultPass()
}

// registerConcurrencyRelease undoes the increment performCheckingForConcurrency
// made: immediately if this check itself blocked the entry, otherwise via
// an exit hook so the counter reflects only genuinely in-flight calls.
func registerConcurrencyRelease(ctx *base.EntryContext, controller *Controller, arg interface{}, result *base.TokenResult) {
	if result.IsBlocked() {
		controller.ReleaseConcurrency(arg)
		return
	}
	if entry := ctx.Entry(); entry != nil {
		entry.WhenExit(func(*base.SentinelEntry, *base.EntryContext) error {
			controller.ReleaseConcurrency(arg)
			return nil
		})
	}
}
