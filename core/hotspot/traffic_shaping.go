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
	"fmt"

	"github.com/aegisflow/aegis-go/core/base"
	"github.com/aegisflow/aegis-go/logging"
)

const (
	// ParamsMaxCapacity caps the default capacity of a QPS rule's
	// per-parameter LRU whatever the rule's duration; a capacity the rule
	// sets itself, and the concurrency cache, are not bounded by it.
	ParamsMaxCapacity = 20000
	// ParamsCapacityBase scales a QPS rule's cache with its statistic
	// window: wider windows retain more distinct values.
	ParamsCapacityBase = 2000
	// ConcurrencyMaxCount is the default cap for the concurrency counter
	// cache when a rule doesn't set ParamsMaxCapacity.
	ConcurrencyMaxCount = 4000
)

// Checker performs the admission check for a single extracted parameter
// value once the Controller has resolved it.
type Checker interface {
	DoCheck(owner *Controller, arg interface{}, batchCount uint32) *base.TokenResult
}

// paramsMetric holds the per-parameter-value counters a Controller checks
// against; exactly one set is populated depending on the rule's MetricType.
type paramsMetric struct {
	ruleTimeCounter    *counter
	ruleTokenCounter   *counter
	concurrencyCounter *counter
}

// Controller is the per-rule traffic shaping controller: it resolves the
// argument to check from the entry context, then delegates to a Checker
// (for QPS rules) or checks concurrency directly.
type Controller struct {
	rule    *Rule
	metric  *paramsMetric
	checker Checker
}

// NewController builds a Controller with freshly sized counters.
func NewController(rule *Rule) *Controller {
	return NewControllerWithMetric(rule, newParamsMetric(rule))
}

// NewControllerWithMetric builds a Controller that reuses an existing
// metric (carried over from a stat-reusable rule on reload).
func NewControllerWithMetric(rule *Rule, metric *paramsMetric) *Controller {
	return &Controller{rule: rule, metric: metric}
}

func newParamsMetric(rule *Rule) *paramsMetric {
	switch rule.MetricType {
	case QPS:
		capacity := rule.ParamsMaxCapacity
		if capacity <= 0 {
			if rule.DurationInSec == 0 {
				capacity = ParamsMaxCapacity
			} else {
				capacity = ParamsCapacityBase * int(rule.DurationInSec)
				if capacity > ParamsMaxCapacity {
					capacity = ParamsMaxCapacity
				}
			}
		}
		return &paramsMetric{
			ruleTimeCounter:  newCounter(capacity),
			ruleTokenCounter: newCounter(capacity),
		}
	default: // Concurrency
		capacity := rule.ParamsMaxCapacity
		if capacity <= 0 {
			capacity = ConcurrencyMaxCount
		}
		return &paramsMetric{concurrencyCounter: newCounter(capacity)}
	}
}

func (c *Controller) Rule() *Rule { return c.rule }

func (c *Controller) Metric() *paramsMetric { return c.metric }

func (c *Controller) SetChecker(checker Checker) { c.checker = checker }

// CheckerGenFunc builds the Checker for a ControlStrategy. Hot-spot's
// built-in checkers (Reject, Throttling) are stateless, so unlike flow's
// CalculatorGenFunc this takes no reuse argument.
type CheckerGenFunc func(rule *Rule) Checker

var checkerGenFuncMap = map[ControlStrategy]CheckerGenFunc{
	Reject: func(rule *Rule) Checker {
		return NewRejectChecker()
	},
	Throttling: func(rule *Rule) Checker {
		return NewThrottlingChecker()
	},
}

// RegisterControllerStrategy registers a ControlCustom (or other
// non-built-in) control strategy's checker factory. Built-in strategies
// (Reject/Throttling) cannot be overwritten.
func RegisterControllerStrategy(s ControlStrategy, f CheckerGenFunc) error {
	if s == Reject || s == Throttling {
		return errBuiltinStrategy
	}
	checkerGenFuncMap[s] = f
	return nil
}

// UnregisterControllerStrategy removes a previously registered control
// strategy's checker factory. Built-in strategies cannot be unregistered.
func UnregisterControllerStrategy(s ControlStrategy) error {
	if s == Reject || s == Throttling {
		return errBuiltinStrategy
	}
	delete(checkerGenFuncMap, s)
	return nil
}

func generateChecker(rule *Rule) Checker {
	if f, ok := checkerGenFuncMap[rule.ControlStrategy]; ok {
		return f(rule)
	}
	return nil
}

// PerformChecking resolves the admission result for the extracted
// parameter value arg.
func (c *Controller) PerformChecking(arg interface{}, batchCount uint32) *base.TokenResult {
	if c.rule.MetricType == Concurrency {
		return c.performCheckingForConcurrency(arg)
	}
	return c.checker.DoCheck(c, arg, batchCount)
}

// performCheckingForConcurrency increments arg's concurrency counter for
// this entry, then checks the result against the rule's threshold. The
// caller is responsible for decrementing again, on exit if the entry
// passed or immediately if it was blocked.
func (c *Controller) performCheckingForConcurrency(arg interface{}) *base.TokenResult {
	var concurrency uint64
	if existing, inserted := c.metric.concurrencyCounter.addIfAbsent(arg, 1); inserted {
		concurrency = 1
	} else {
		concurrency = existing.Add(1)
	}

	threshold := c.rule.Threshold
	if v, ok := c.rule.SpecificItems[arg]; ok {
		threshold = v
	}
	if concurrency <= threshold {
		return base.NewTokenResultPass()
	}
	msg := fmt.Sprintf("hotspot concurrency check blocked, arg: %v", arg)
	snapshot := base.MetricSnapshot{"concurrency": concurrency, "threshold": threshold, "arg": arg}
	return base.NewTokenResultBlocked(base.NewBlockErrorWithSnapshot(base.BlockTypeHotSpotParamFlow, msg, c.rule, snapshot))
}

// ReleaseConcurrency decrements the per-value concurrency counter on exit
// or block, mirroring the IncreaseConcurrency/exit discipline used for
// resource-wide concurrency.
func (c *Controller) ReleaseConcurrency(arg interface{}) {
	if c.rule.MetricType != Concurrency {
		return
	}
	if v, ok := c.metric.concurrencyCounter.get(arg); ok {
		for {
			cur := v.Load()
			if cur == 0 {
				return
			}
			if v.CompareAndSwap(cur, cur-1) {
				return
			}
		}
	}
}

// ExtractArg resolves the argument this Controller's rule checks: attached
// key lookup first, positional argument lookup otherwise. The key-based
// path wins whenever the configured attachment key is present in the
// entry's attachments; when it is absent, the positional argument is used.
func (c *Controller) ExtractArg(ctx *base.EntryContext) (interface{}, bool) {
	if v, ok := c.extractKVArg(ctx); ok {
		return v, true
	}
	return c.extractListArg(ctx)
}

func (c *Controller) extractKVArg(ctx *base.EntryContext) (interface{}, bool) {
	if ctx.Input == nil || ctx.Input.Attachments == nil {
		return nil, false
	}
	key := c.rule.ParamKey
	if key == "" {
		return nil, false
	}
	v, ok := ctx.Input.Attachments[key]
	if !ok {
		logging.Debug("[hotspot] attachment key not present", "key", key)
		return nil, false
	}
	return v, true
}

func (c *Controller) extractListArg(ctx *base.EntryContext) (interface{}, bool) {
	if ctx.Input == nil || ctx.Input.Args == nil {
		return nil, false
	}
	args := ctx.Input.Args
	idx := c.rule.ParamIndex
	if idx < 0 {
		idx += len(args)
	}
	if idx < 0 || idx >= len(args) {
		logging.Debug("[hotspot] param index out of range", "index", c.rule.ParamIndex, "argCount", len(args))
		return nil, false
	}
	return args[idx], true
}
