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
	"sync"
	"sync/atomic"

	"github.com/aegisflow/aegis-go/core/base"
	"github.com/aegisflow/aegis-go/logging"
	"github.com/aegisflow/aegis-go/util"
)

// State is a position in the breaker's Closed/Open/HalfOpen state machine.
type State int8

const (
	Closed State = iota
	HalfOpen
	Open
)

func (s State) String() string {
	switch s {
	case Closed:
		return "Closed"
	case HalfOpen:
		return "HalfOpen"
	case Open:
		return "Open"
	default:
		return "Undefined"
	}
}

// StateChangeListener observes breaker transitions. Registration is
// copy-on-write so Check's hot path never locks.
type StateChangeListener interface {
	OnTransformToClosed(prev State, rule *Rule)
	OnTransformToOpen(prev State, rule *Rule, snapshot base.MetricSnapshot)
	OnTransformToHalfOpen(prev State, rule *Rule)
}

var listenersMu sync.Mutex
var listeners atomic.Value // []StateChangeListener

func init() {
	listeners.Store([]StateChangeListener{})
}

// RegisterStateChangeListeners replaces the whole listener set.
func RegisterStateChangeListeners(ls []StateChangeListener) {
	listenersMu.Lock()
	defer listenersMu.Unlock()
	cp := make([]StateChangeListener, len(ls))
	copy(cp, ls)
	listeners.Store(cp)
}

func ClearStateChangeListeners() {
	listenersMu.Lock()
	defer listenersMu.Unlock()
	listeners.Store([]StateChangeListener{})
}

func currentListeners() []StateChangeListener {
	return listeners.Load().([]StateChangeListener)
}

// Breaker is the common state machine every strategy embeds.
type Breaker struct {
	rule  *Rule
	stat  *counterLeapArray
	mu    sync.Mutex
	state State

	nextRetryMs int64
}

func newBreaker(rule *Rule) *Breaker {
	return newBreakerWithStat(rule, nil)
}

// newBreakerWithStat builds a breaker for rule, reusing reuseStat's counts
// when the caller has determined the old rule's statistic shape still
// applies (see IsStatReusable).
func newBreakerWithStat(rule *Rule, reuseStat *counterLeapArray) *Breaker {
	stat := reuseStat
	if stat == nil {
		stat = newCounterLeapArray(rule.StatIntervalMs, rule.BucketCount())
	}
	return &Breaker{
		rule: rule,
		stat: stat,
	}
}

func (b *Breaker) Rule() *Rule { return b.rule }

// statForReuse exposes the sliding-window counter so rule_manager can carry
// it over to a replacement breaker when IsStatReusable allows it.
func (b *Breaker) statForReuse() *counterLeapArray { return b.stat }

func (b *Breaker) CurrentState() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) SetState(s State) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = s
}

func (b *Breaker) retryTimeoutArrived() bool {
	return int64(util.CurrentTimeMillis()) >= atomic.LoadInt64(&b.nextRetryMs)
}

func (b *Breaker) updateNextRetryTimestamp() {
	atomic.StoreInt64(&b.nextRetryMs, int64(util.CurrentTimeMillis())+int64(b.rule.RetryTimeoutMs))
}

// fromClosedToOpen transitions Closed->Open; returns true only if this
// call performed the transition.
func (b *Breaker) fromClosedToOpen(snapshot base.MetricSnapshot) bool {
	b.mu.Lock()
	if b.state != Closed {
		b.mu.Unlock()
		return false
	}
	b.state = Open
	b.mu.Unlock()
	b.updateNextRetryTimestamp()
	for _, l := range currentListeners() {
		l.OnTransformToOpen(Closed, b.rule, snapshot)
	}
	logging.Info("[CircuitBreaker] state change", "resource", b.rule.Resource, "from", "Closed", "to", "Open")
	return true
}

// fromOpenToHalfOpen transitions Open->HalfOpen and, if ctx carries a live
// entry, registers an exit hook rolling the breaker back to Open should
// this same probe end up blocked by a later slot.
func (b *Breaker) fromOpenToHalfOpen(ctx *base.EntryContext) bool {
	b.mu.Lock()
	if b.state != Open {
		b.mu.Unlock()
		return false
	}
	b.state = HalfOpen
	b.mu.Unlock()
	for _, l := range currentListeners() {
		l.OnTransformToHalfOpen(Open, b.rule)
	}
	logging.Info("[CircuitBreaker] state change", "resource", b.rule.Resource, "from", "Open", "to", "HalfOpen")

	if entry := ctx.Entry(); entry != nil {
		entry.WhenExit(func(_ *base.SentinelEntry, ctx *base.EntryContext) error {
			b.mu.Lock()
			rollback := ctx.IsBlocked() && b.state == HalfOpen
			if rollback {
				b.state = Open
			}
			b.mu.Unlock()
			if rollback {
				for _, l := range currentListeners() {
					l.OnTransformToOpen(HalfOpen, b.rule, base.MetricSnapshot{"probe": "blocked"})
				}
			}
			return nil
		})
	} else {
		logging.Warn("[CircuitBreaker] entry is nil during open-to-half-open probe", "resource", b.rule.Resource)
	}
	return true
}

func (b *Breaker) fromHalfOpenToOpen(snapshot base.MetricSnapshot) bool {
	b.mu.Lock()
	if b.state != HalfOpen {
		b.mu.Unlock()
		return false
	}
	b.state = Open
	b.mu.Unlock()
	b.updateNextRetryTimestamp()
	for _, l := range currentListeners() {
		l.OnTransformToOpen(HalfOpen, b.rule, snapshot)
	}
	logging.Info("[CircuitBreaker] state change", "resource", b.rule.Resource, "from", "HalfOpen", "to", "Open")
	return true
}

func (b *Breaker) fromHalfOpenToClosed() bool {
	b.mu.Lock()
	if b.state != HalfOpen {
		b.mu.Unlock()
		return false
	}
	b.state = Closed
	b.mu.Unlock()
	b.stat.reset()
	for _, l := range currentListeners() {
		l.OnTransformToClosed(HalfOpen, b.rule)
	}
	logging.Info("[CircuitBreaker] state change", "resource", b.rule.Resource, "from", "HalfOpen", "to", "Closed")
	return true
}

// CircuitBreaker is the per-rule controller the RuleCheckSlot consults.
type CircuitBreaker interface {
	BoundRule() *Rule
	CurrentState() State
	TryPass(ctx *base.EntryContext) bool
	OnRequestComplete(rtMs uint64, err error)
}

// tryPassCommon implements the state-machine admission check shared by
// every strategy: Closed always passes, Open only passes once the retry
// timeout has arrived and only lets a single probe through to HalfOpen,
// HalfOpen itself never admits a second concurrent probe.
func tryPassCommon(b *Breaker, ctx *base.EntryContext) bool {
	switch b.CurrentState() {
	case Closed:
		return true
	case Open:
		return b.retryTimeoutArrived() && b.fromOpenToHalfOpen(ctx)
	default: // HalfOpen
		return false
	}
}
