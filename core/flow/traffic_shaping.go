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

package flow

import (
	"github.com/aegisflow/aegis-go/core/base"
)

// TrafficShapingCalculator computes the currently permitted threshold for
// a rule. Implementations may hold mutable state (WarmUp's token bucket)
// that the rule manager preserves across a stat-reusable reload.
type TrafficShapingCalculator interface {
	CalculateAllowedTokens(node base.StatNode, batchCount uint32, flag int32) float64
}

// TrafficShapingChecker decides admission given the calculator's current
// threshold.
type TrafficShapingChecker interface {
	DoCheck(node base.StatNode, batchCount uint32, threshold float64) *base.TokenResult
}

// TrafficShapingController binds one Rule to its calculator and checker
// pair.
type TrafficShapingController struct {
	rule       *Rule
	calculator TrafficShapingCalculator
	checker    TrafficShapingChecker
}

func NewTrafficShapingController(rule *Rule, calculator TrafficShapingCalculator, checker TrafficShapingChecker) *TrafficShapingController {
	return &TrafficShapingController{rule: rule, calculator: calculator, checker: checker}
}

func (c *TrafficShapingController) Rule() *Rule { return c.rule }

// Calculator and Checker expose the controller's strategy objects so the
// rule manager can carry them over to a replacement controller when a
// reload produces a stat-reusable (but not identical) rule.
func (c *TrafficShapingController) Calculator() TrafficShapingCalculator { return c.calculator }
func (c *TrafficShapingController) Checker() TrafficShapingChecker       { return c.checker }

func (c *TrafficShapingController) PerformChecking(node base.StatNode, batchCount uint32, flag int32) *base.TokenResult {
	threshold := c.calculator.CalculateAllowedTokens(node, batchCount, flag)
	return c.checker.DoCheck(node, batchCount, threshold)
}

// CalculatorGenFunc builds a calculator for rule, optionally reusing state
// from reuseCalculator (non-nil only when the prior rule was stat-reusable
// with rule).
type CalculatorGenFunc func(rule *Rule, reuseCalculator TrafficShapingCalculator) TrafficShapingCalculator

// CheckerGenFunc builds a checker for rule, optionally reusing state from
// reuseChecker.
type CheckerGenFunc func(rule *Rule, reuseChecker TrafficShapingChecker) TrafficShapingChecker

var (
	calculatorGenFuncMap = map[CalculateStrategy]CalculatorGenFunc{
		Direct: func(rule *Rule, _ TrafficShapingCalculator) TrafficShapingCalculator {
			return NewDirectCalculator(rule)
		},
		WarmUp: func(rule *Rule, reuse TrafficShapingCalculator) TrafficShapingCalculator {
			if wc, ok := reuse.(*WarmUpCalculator); ok {
				return wc
			}
			return NewWarmUpCalculator(rule)
		},
		MemoryAdaptive: func(rule *Rule, _ TrafficShapingCalculator) TrafficShapingCalculator {
			return NewMemoryAdaptiveCalculator(rule)
		},
	}

	checkerGenFuncMap = map[ControlStrategy]CheckerGenFunc{
		Reject: func(rule *Rule, _ TrafficShapingChecker) TrafficShapingChecker {
			return NewRejectChecker(rule)
		},
		Throttling: func(rule *Rule, reuse TrafficShapingChecker) TrafficShapingChecker {
			if tc, ok := reuse.(*ThrottlingChecker); ok {
				return tc
			}
			return NewThrottlingChecker(rule)
		},
	}
)

// RegisterCalculatorStrategy registers a Custom calculate strategy's
// factory. Built-in strategies (Direct/WarmUp/MemoryAdaptive) cannot be
// overwritten.
func RegisterCalculatorStrategy(s CalculateStrategy, f CalculatorGenFunc) error {
	if s == Direct || s == WarmUp || s == MemoryAdaptive {
		return errBuiltinStrategy
	}
	calculatorGenFuncMap[s] = f
	return nil
}

// RegisterCheckerStrategy registers a Custom control strategy's factory.
func RegisterCheckerStrategy(s ControlStrategy, f CheckerGenFunc) error {
	if s == Reject || s == Throttling {
		return errBuiltinStrategy
	}
	checkerGenFuncMap[s] = f
	return nil
}

// UnregisterCalculatorStrategy removes a previously registered Custom
// calculate strategy's factory. Built-in strategies cannot be unregistered.
func UnregisterCalculatorStrategy(s CalculateStrategy) error {
	if s == Direct || s == WarmUp || s == MemoryAdaptive {
		return errBuiltinStrategy
	}
	delete(calculatorGenFuncMap, s)
	return nil
}

// UnregisterCheckerStrategy removes a previously registered Custom control
// strategy's factory. Built-in strategies cannot be unregistered.
func UnregisterCheckerStrategy(s ControlStrategy) error {
	if s == Reject || s == Throttling {
		return errBuiltinStrategy
	}
	delete(checkerGenFuncMap, s)
	return nil
}

func generateCalculator(rule *Rule, reuse TrafficShapingCalculator) TrafficShapingCalculator {
	if f, ok := calculatorGenFuncMap[rule.CalculateStrategy]; ok {
		return f(rule, reuse)
	}
	return nil
}

func generateChecker(rule *Rule, reuse TrafficShapingChecker) TrafficShapingChecker {
	if f, ok := checkerGenFuncMap[rule.ControlStrategy]; ok {
		return f(rule, reuse)
	}
	return nil
}
