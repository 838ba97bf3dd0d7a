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

import "github.com/aegisflow/aegis-go/core/base"

// SlowRtBreaker trips when the fraction of requests slower than
// MaxAllowedRtMs exceeds Threshold, over at least MinRequestAmount samples.
type SlowRtBreaker struct {
	*Breaker
}

func NewSlowRtBreaker(rule *Rule) *SlowRtBreaker {
	return &SlowRtBreaker{Breaker: newBreaker(rule)}
}

func newSlowRtBreakerWithStat(rule *Rule, stat *counterLeapArray) *SlowRtBreaker {
	return &SlowRtBreaker{Breaker: newBreakerWithStat(rule, stat)}
}

func (b *SlowRtBreaker) BoundRule() *Rule { return b.rule }

func (b *SlowRtBreaker) TryPass(ctx *base.EntryContext) bool {
	return tryPassCommon(b.Breaker, ctx)
}

func (b *SlowRtBreaker) OnRequestComplete(rtMs uint64, err error) {
	isSlow := rtMs > b.rule.MaxAllowedRtMs
	b.stat.addRequest(err != nil, isSlow)

	// A half-open probe is judged on its own response time alone.
	if b.CurrentState() == HalfOpen {
		if isSlow {
			b.fromHalfOpenToOpen(base.MetricSnapshot{"rt": rtMs, "maxAllowedRtMs": b.rule.MaxAllowedRtMs})
		} else {
			b.fromHalfOpenToClosed()
		}
		return
	}

	total, _, slow := b.stat.totals()
	if total < b.rule.MinRequestAmount {
		if b.CurrentState() == HalfOpen {
			b.fromHalfOpenToClosed()
		}
		return
	}

	ratio := float64(slow) / float64(total)
	if ratio > b.rule.Threshold {
		snapshot := base.MetricSnapshot{"slowRatio": ratio, "threshold": b.rule.Threshold}
		switch b.CurrentState() {
		case Closed:
			b.fromClosedToOpen(snapshot)
		case HalfOpen:
			b.fromHalfOpenToOpen(snapshot)
		}
		return
	}
	if b.CurrentState() == HalfOpen {
		b.fromHalfOpenToClosed()
	}
}
