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
	"sync"
	"sync/atomic"
)

// ExitHandler is invoked when an entry exits. Circuit breakers register one
// of these during Prepare so they can observe the outcome (and, for a
// half-open probe, force the breaker back to Open if the probe entry was
// itself blocked downstream by a later slot).
type ExitHandler func(entry *SentinelEntry, ctx *EntryContext) error

// SentinelEntry represents one accepted invocation. It owns exactly one
// EntryContext and the chain that produced it; Exit is idempotent.
type SentinelEntry struct {
	ctx           *EntryContext
	sc            *SlotChain
	exitHookFuncs []ExitHandler
	mu            sync.Mutex
	exited        int32
}

func NewSentinelEntry(ctx *EntryContext, sc *SlotChain) *SentinelEntry {
	e := &SentinelEntry{ctx: ctx, sc: sc}
	ctx.SetEntry(e)
	return e
}

func (e *SentinelEntry) Context() *EntryContext {
	return e.ctx
}

// WhenExit registers a hook run (in registration order) during Exit, before
// the context is recycled. Used by circuit breakers to post-process a probe.
func (e *SentinelEntry) WhenExit(handler ExitHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.exitHookFuncs = append(e.exitHookFuncs, handler)
}

// Exit finalizes the entry: stat slots record completion, registered exit
// hooks fire in order, and the context is returned to the slot chain's
// pool. Calling Exit more than once is a no-op after the first call.
func (e *SentinelEntry) Exit() {
	e.exitWithError(nil)
}

// ExitWithError is like Exit but additionally signals the given business
// error to stat slots (MetricEventError) and circuit breakers.
func (e *SentinelEntry) ExitWithError(err error) {
	e.exitWithError(err)
}

func (e *SentinelEntry) exitWithError(err error) {
	if !atomic.CompareAndSwapInt32(&e.exited, 0, 1) {
		return
	}
	ctx := e.ctx
	if err != nil {
		ctx.SetError(err)
	}
	if e.sc != nil {
		e.sc.exit(ctx)
	}

	e.mu.Lock()
	hooks := e.exitHookFuncs
	e.mu.Unlock()
	for _, h := range hooks {
		_ = h(e, ctx)
	}

	if e.sc != nil {
		e.sc.RefurbishContext(ctx)
	}
}
