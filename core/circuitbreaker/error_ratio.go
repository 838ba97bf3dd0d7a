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

// ErrorRatioBreaker trips when the fraction of erroring requests exceeds
// Threshold, over at least MinRequestAmount samples.
type ErrorRatioBreaker struct {
	*Breaker
}

func NewErrorRatioBreaker(rule *Rule) *ErrorRatioBreaker {
	return &ErrorRatioBreaker{Breaker: newBreaker(rule)}
}

func newErrorRatioBreakerWithStat(rule *Rule, stat *counterLeapArray) *ErrorRatioBreaker {
	return &ErrorRatioBreaker{Breaker: newBreakerWithStat(rule, stat)}
}

func (b *ErrorRatioBreaker) BoundRule() *Rule { return b.rule }

func (b *ErrorRatioBreaker) TryPass(ctx *base.EntryContext) bool {
	return tryPassCommon(b.Breaker, ctx)
}

func (b *ErrorRatioBreaker) OnRequestComplete(rtMs uint64, err error) {
	b.stat.addRequest(err != nil, false)

	total, errCount, _ := b.stat.totals()
	if total < b.rule.MinRequestAmount {
		if b.CurrentState() == HalfOpen {
			b.fromHalfOpenToClosed()
		}
		return
	}

	ratio := float64(errCount) / float64(total)
	if ratio > b.rule.Threshold {
		snapshot := base.MetricSnapshot{"errorRatio": ratio, "threshold": b.rule.Threshold}
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
