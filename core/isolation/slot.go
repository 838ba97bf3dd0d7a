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

package isolation

import (
	"github.com/aegisflow/aegis-go/core/base"
)

const RuleCheckSlotOrder = 3000

var DefaultSlot = &Slot{}

// Slot is the isolation RuleCheckSlot: blocks an entry once the resource's
// current concurrency reaches any loaded rule's threshold.
type Slot struct{}

func (s *Slot) Order() uint32 { return RuleCheckSlotOrder }

func (s *Slot) Check(ctx *base.EntryContext) *base.TokenResult {
	res := ctx.Resource.Name()
	rules := RulesFor(res)
	if len(rules) == 0 || ctx.StatNode == nil {
		return base.NewTokenResultPass()
	}

	cur := ctx.StatNode.CurrentConcurrency()
	for _, rule := range rules {
		if uint32(cur) >= rule.Threshold {
			snapshot := base.MetricSnapshot{"concurrency": cur, "threshold": rule.Threshold}
			msg := "isolation check blocked: concurrency at threshold"
			return base.NewTokenResultBlocked(base.NewBlockErrorWithSnapshot(base.BlockTypeIsolation, msg, rule, snapshot))
		}
	}
	return base.NewTokenResultPass()
}
