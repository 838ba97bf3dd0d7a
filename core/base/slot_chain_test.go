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
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakePrepareSlot struct {
	order   uint32
	calls   *[]string
	label   string
}

func (s *fakePrepareSlot) Order() uint32 { return s.order }
func (s *fakePrepareSlot) Prepare(ctx *EntryContext) {
	if s.calls != nil {
		*s.calls = append(*s.calls, s.label)
	}
}

type fakeCheckSlot struct {
	order  uint32
	result *TokenResult
	calls  *[]string
	label  string
}

func (s *fakeCheckSlot) Order() uint32 { return s.order }
func (s *fakeCheckSlot) Check(ctx *EntryContext) *TokenResult {
	if s.calls != nil {
		*s.calls = append(*s.calls, s.label)
	}
	return s.result
}

type fakeStatSlot struct {
	order    uint32
	passed   *bool
	blocked  *bool
	completed *bool
}

func (s *fakeStatSlot) Order() uint32 { return s.order }
func (s *fakeStatSlot) OnEntryPassed(ctx *EntryContext)                 { *s.passed = true }
func (s *fakeStatSlot) OnEntryBlocked(ctx *EntryContext, _ *BlockError) { *s.blocked = true }
func (s *fakeStatSlot) OnCompleted(ctx *EntryContext)                   { *s.completed = true }

type panickingCheckSlot struct {
	order uint32
}

func (s *panickingCheckSlot) Order() uint32 { return s.order }
func (s *panickingCheckSlot) Check(ctx *EntryContext) *TokenResult {
	panic("boom")
}

func TestSlotChainOrdersPrepareSlotsByOrder(t *testing.T) {
	sc := NewSlotChain()
	var calls []string
	sc.AddStatPrepareSlot(&fakePrepareSlot{order: 20, calls: &calls, label: "second"})
	sc.AddStatPrepareSlot(&fakePrepareSlot{order: 10, calls: &calls, label: "first"})

	ctx := NewEmptyEntryContext()
	ctx.RuleCheckResult = NewTokenResultPass()
	sc.Entry(ctx)

	assert.Equal(t, []string{"first", "second"}, calls)
}

func TestSlotChainEntryPassesWhenNoCheckBlocks(t *testing.T) {
	sc := NewSlotChain()
	var passed, blocked, completed bool
	sc.AddStatSlot(&fakeStatSlot{passed: &passed, blocked: &blocked, completed: &completed})

	ctx := NewEmptyEntryContext()
	ctx.RuleCheckResult = NewTokenResultPass()
	result := sc.Entry(ctx)

	assert.True(t, result.IsPass())
	assert.True(t, passed)
	assert.False(t, blocked)
}

func TestSlotChainEntryRunsEveryCheckEvenAfterBlock(t *testing.T) {
	sc := NewSlotChain()
	var calls []string
	blockErr := NewBlockError(BlockTypeFlow, "limit exceeded")
	sc.AddRuleCheckSlot(&fakeCheckSlot{order: 1, result: NewTokenResultBlocked(blockErr), calls: &calls, label: "a"})
	sc.AddRuleCheckSlot(&fakeCheckSlot{order: 2, result: NewTokenResultPass(), calls: &calls, label: "b"})

	var passed, blocked, completed bool
	sc.AddStatSlot(&fakeStatSlot{passed: &passed, blocked: &blocked, completed: &completed})

	ctx := NewEmptyEntryContext()
	ctx.RuleCheckResult = NewTokenResultPass()
	result := sc.Entry(ctx)

	assert.Equal(t, []string{"a", "b"}, calls, "every rule check slot must fire regardless of an earlier block")
	assert.True(t, result.IsBlocked())
	assert.True(t, blocked)
	assert.False(t, passed)
}

func TestSlotChainExitCallsOnCompletedOnlyWhenNotBlocked(t *testing.T) {
	sc := NewSlotChain()
	var passed, blocked, completed bool
	sc.AddStatSlot(&fakeStatSlot{passed: &passed, blocked: &blocked, completed: &completed})

	ctx := NewEmptyEntryContext()
	ctx.RuleCheckResult = NewTokenResultPass()
	entry := NewSentinelEntry(ctx, sc)
	sc.Entry(ctx)
	entry.Exit()

	assert.True(t, completed)
}

func TestSlotChainExitSkipsOnCompletedWhenBlocked(t *testing.T) {
	sc := NewSlotChain()
	blockErr := NewBlockError(BlockTypeFlow, "nope")
	sc.AddRuleCheckSlot(&fakeCheckSlot{order: 1, result: NewTokenResultBlocked(blockErr)})

	var passed, blocked, completed bool
	sc.AddStatSlot(&fakeStatSlot{passed: &passed, blocked: &blocked, completed: &completed})

	ctx := NewEmptyEntryContext()
	ctx.RuleCheckResult = NewTokenResultPass()
	entry := NewSentinelEntry(ctx, sc)
	sc.Entry(ctx)
	entry.Exit()

	assert.True(t, blocked)
	assert.False(t, completed, "a blocked entry must not reach OnCompleted on exit")
}

func TestSlotChainEntryRecoversFromPanicAsContextError(t *testing.T) {
	sc := NewSlotChain()
	sc.AddRuleCheckSlot(&panickingCheckSlot{order: 1})

	ctx := NewEmptyEntryContext()
	ctx.RuleCheckResult = NewTokenResultPass()

	assert.NotPanics(t, func() {
		sc.Entry(ctx)
	})
	assert.Error(t, ctx.Err())
}

func TestGetPooledContextReturnsUsableContext(t *testing.T) {
	sc := NewSlotChain()
	ctx := sc.GetPooledContext()
	assert.NotNil(t, ctx.RuleCheckResult)
	assert.NotNil(t, ctx.Input)
	assert.True(t, ctx.StartTime() > 0)

	sc.RefurbishContext(ctx)
	assert.Nil(t, ctx.Entry())
}
