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

package base

import (
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/aegisflow/aegis-go/logging"
)

// BaseSlot is embedded by every slot kind; Order determines traversal
// sequence (ascending) within its own bucket (PrepareSlots, RuleCheckSlots,
// StatSlots).
type BaseSlot interface {
	Order() uint32
}

// StatPrepareSlot runs before any rule check, in ascending Order. Used to
// materialize per-resource statistics structures (core/stat's
// ResourceNodePrepare) before anything reads them. Must not panic.
type StatPrepareSlot interface {
	BaseSlot
	Prepare(ctx *EntryContext)
}

// RuleCheckSlot implements one protection strategy's admission decision.
type RuleCheckSlot interface {
	BaseSlot
	Check(ctx *EntryContext) *TokenResult
}

// StatSlot records the outcome of an entry: its admission (pass/block) and,
// later, its completion.
type StatSlot interface {
	BaseSlot
	OnEntryPassed(ctx *EntryContext)
	OnEntryBlocked(ctx *EntryContext, blockError *BlockError)
	OnCompleted(ctx *EntryContext)
}

// SlotChain holds all prepare/check/stat slots for one instantiation of the
// library (the default global chain, or a custom one built per resource).
type SlotChain struct {
	statPres   []StatPrepareSlot
	ruleChecks []RuleCheckSlot
	stats      []StatSlot
	ctxPool    *sync.Pool
}

func newCtxPool() *sync.Pool {
	return &sync.Pool{
		New: func() interface{} {
			ctx := NewEmptyEntryContext()
			ctx.RuleCheckResult = NewTokenResultPass()
			ctx.Data = make(map[interface{}]interface{})
			ctx.Input = &SentinelInput{
				BatchCount:  1,
				Flag:        0,
				Args:        make([]interface{}, 0),
				Attachments: make(map[interface{}]interface{}),
			}
			return ctx
		},
	}
}

func NewSlotChain() *SlotChain {
	return &SlotChain{
		statPres:   make([]StatPrepareSlot, 0, 8),
		ruleChecks: make([]RuleCheckSlot, 0, 8),
		stats:      make([]StatSlot, 0, 8),
		ctxPool:    newCtxPool(),
	}
}

// GetPooledContext fetches (or allocates) a recycled EntryContext and
// stamps its start time. Avoiding allocation on the hot admit path is the
// whole point of the pool.
func (sc *SlotChain) GetPooledContext() *EntryContext {
	ctx := sc.ctxPool.Get().(*EntryContext)
	ctx.touch()
	return ctx
}

// RefurbishContext resets and returns a context to the pool.
func (sc *SlotChain) RefurbishContext(c *EntryContext) {
	if c != nil {
		c.Reset()
		sc.ctxPool.Put(c)
	}
}

// AddStatPrepareSlot registers s, keeping statPres sorted by Order. Not
// safe for concurrent use with chain traversal; callers add slots during
// setup, before any Entry call.
func (sc *SlotChain) AddStatPrepareSlot(s StatPrepareSlot) {
	sc.statPres = append(sc.statPres, s)
	sort.SliceStable(sc.statPres, func(i, j int) bool {
		return sc.statPres[i].Order() < sc.statPres[j].Order()
	})
}

func (sc *SlotChain) AddRuleCheckSlot(s RuleCheckSlot) {
	sc.ruleChecks = append(sc.ruleChecks, s)
	sort.SliceStable(sc.ruleChecks, func(i, j int) bool {
		return sc.ruleChecks[i].Order() < sc.ruleChecks[j].Order()
	})
}

func (sc *SlotChain) AddStatSlot(s StatSlot) {
	sc.stats = append(sc.stats, s)
	sort.SliceStable(sc.stats, func(i, j int) bool {
		return sc.stats[i].Order() < sc.stats[j].Order()
	})
}

// Entry runs the full admission pipeline: prepare slots, then rule-check
// slots (every check fires, even after the first Blocked result, so every
// stat slot observes the final cause), then
// stat slots' OnEntryPassed/OnEntryBlocked. A panic inside any slot
// propagates to the caller as a recorded context error rather than
// crashing the process; increase_concurrency (a prepare-slot side effect)
// has already committed by the time a later slot could panic, so no
// half-updated state is left beyond what the panicking slot itself wrote.
func (sc *SlotChain) Entry(ctx *EntryContext) *TokenResult {
	defer func() {
		if r := recover(); r != nil {
			logging.Error(errors.Errorf("%+v", r), "panic in SlotChain.Entry()")
			ctx.SetError(errors.Errorf("%+v", r))
		}
	}()

	for _, s := range sc.statPres {
		s.Prepare(ctx)
	}

	var ruleCheckRet *TokenResult
	for _, s := range sc.ruleChecks {
		sr := s.Check(ctx)
		if sr == nil {
			continue
		}
		// Remember the blocked result (it is written to the context, and so
		// seen by every stat slot, once the loop ends), but keep iterating:
		// every rule-check slot must fire
		// so stat slots see the correct cause even when an earlier strategy
		// already blocked the call. Which cause wins when two checks both
		// block is left to whichever fires last.
		if sr.IsBlocked() {
			ruleCheckRet = sr
		}
	}
	if ruleCheckRet == nil {
		ctx.RuleCheckResult.ResetToPass()
	} else {
		ctx.RuleCheckResult = ruleCheckRet
	}

	result := ctx.RuleCheckResult
	for _, s := range sc.stats {
		if !result.IsBlocked() {
			s.OnEntryPassed(ctx)
		} else {
			s.OnEntryBlocked(ctx, result.BlockError())
		}
	}
	return result
}

func (sc *SlotChain) exit(ctx *EntryContext) {
	if ctx == nil || ctx.Entry() == nil {
		logging.Error(errors.New("entryContext or SentinelEntry is nil"),
			"EntryContext or SentinelEntry is nil in SlotChain.exit()")
		return
	}
	if ctx.IsBlocked() {
		return
	}
	for _, s := range sc.stats {
		s.OnCompleted(ctx)
	}
}
