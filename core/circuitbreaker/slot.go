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

package circuitbreaker

import (
	"fmt"

	"github.com/aegisflow/aegis-go/core/base"
)

const RuleCheckSlotOrder = 5000

var DefaultSlot = &Slot{}

// Slot is the circuit breaking RuleCheckSlot: it consults every breaker
// loaded against the resource and blocks on the first one that refuses
// admission. A breaker that does let the call through registers an exit
// hook so OnRequestComplete sees the eventual outcome and can update its
// statistics.
type Slot struct{}

func (s *Slot) Order() uint32 { return RuleCheckSlotOrder }

func (s *Slot) Check(ctx *base.EntryContext) *base.TokenResult {
	res := ctx.Resource.Name()
	breakers := BreakersFor(res)
	if len(breakers) == 0 {
		return base.NewTokenResultPass()
	}

	for _, b := range breakers {
		if b.TryPass(ctx) {
			registerCompletion(ctx, b)
			continue
		}
		msg := fmt.Sprintf("circuit breaker %s is open", b.BoundRule().Strategy)
		snapshot := base.MetricSnapshot{"state": b.CurrentState().String()}
		return base.NewTokenResultBlocked(base.NewBlockErrorWithSnapshot(base.BlockTypeCircuitBreaking, msg, b.BoundRule(), snapshot))
	}
	return base.NewTokenResultPass()
}

// registerCompletion reports the eventual outcome of a call a breaker let
// through back to that breaker, once the entry exits.
func registerCompletion(ctx *base.EntryContext, b CircuitBreaker) {
	entry := ctx.Entry()
	if entry == nil {
		return
	}
	entry.WhenExit(func(_ *base.SentinelEntry, ctx *base.EntryContext) error {
		b.OnRequestComplete(ctx.Rt(), ctx.Err())
		return nil
	})
}
