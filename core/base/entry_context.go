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

import "github.com/aegisflow/aegis-go/util"

// SentinelInput carries everything the caller supplied when building the
// entry: batch size, an opaque flag (interpreted by specific checkers, e.g.
// hot-spot's priority flag), positional args and string/interface-keyed
// attachments used for hot-spot parameter extraction.
type SentinelInput struct {
	BatchCount  uint32
	Flag        int32
	Args        []interface{}
	Attachments map[interface{}]interface{}
}

func (i *SentinelInput) reset() {
	i.BatchCount = 1
	i.Flag = 0
	i.Args = i.Args[:0]
	for k := range i.Attachments {
		delete(i.Attachments, k)
	}
}

// EntryContext is the per-invocation object threaded through the slot
// chain. One is built (or recycled from a pool) per Entry call.
//
// The context holds a back-reference to its entry so that a slot's Prepare
// step (most notably the circuit breaker, which must register an exit hook
// for the half-open probe) can reach SentinelEntry.WhenExit. The reference
// is non-owning: SentinelEntry owns the EntryContext, not the other way
// around. There is no retain cycle to break by hand in a garbage collected
// runtime, but the reference is only meaningful for the one Entry/Exit
// cycle it was created for; RefurbishContext clears it before the context
// is returned to the pool so a leaked pointer can't resurrect a finished
// entry.
type EntryContext struct {
	entry *SentinelEntry

	Resource        *ResourceWrapper
	StatNode        StatNode
	Input           *SentinelInput
	RuleCheckResult *TokenResult
	// Data is a free-form bag slots can stash intermediate state in,
	// scoped to this one context instance.
	Data map[interface{}]interface{}

	startTime uint64
	rt        uint64
	err       error
}

func NewEmptyEntryContext() *EntryContext {
	return &EntryContext{}
}

func (ctx *EntryContext) Entry() *SentinelEntry {
	return ctx.entry
}

func (ctx *EntryContext) SetEntry(e *SentinelEntry) {
	ctx.entry = e
}

func (ctx *EntryContext) StartTime() uint64 {
	return ctx.startTime
}

func (ctx *EntryContext) PutRt(rt uint64) {
	ctx.rt = rt
}

func (ctx *EntryContext) Rt() uint64 {
	return ctx.rt
}

func (ctx *EntryContext) SetError(err error) {
	ctx.err = err
}

func (ctx *EntryContext) Err() error {
	return ctx.err
}

// IsBlocked reports whether the rule-check phase produced a Blocked result.
func (ctx *EntryContext) IsBlocked() bool {
	return ctx.RuleCheckResult != nil && ctx.RuleCheckResult.IsBlocked()
}

// Reset restores the context to a zero-ish state so it can be recycled by
// the slot chain's context pool. Called from RefurbishContext.
func (ctx *EntryContext) Reset() {
	ctx.entry = nil
	ctx.Resource = nil
	ctx.StatNode = nil
	ctx.startTime = 0
	ctx.rt = 0
	ctx.err = nil
	if ctx.RuleCheckResult != nil {
		ctx.RuleCheckResult.ResetToPass()
	}
	if ctx.Input != nil {
		ctx.Input.reset()
	}
	for k := range ctx.Data {
		delete(ctx.Data, k)
	}
}

// touch stamps the context's start time using the current clock. Called by
// SlotChain.GetPooledContext.
func (ctx *EntryContext) touch() {
	ctx.startTime = util.CurrentTimeMillis()
}
