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

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/aegisflow/aegis-go/logging"
)

var (
	ruleMapMu  sync.RWMutex
	ruleMap    = make(map[string][]*Rule)
	breakerMap = make(map[string][]CircuitBreaker)

	generatorMu sync.RWMutex
	generators  = make(map[Strategy]Generator)
)

// Generator builds a CircuitBreaker for rule, reusing reuseStat's counts
// when non-nil. Registered per Strategy so StrategyCustom(99)-style
// extensions can plug in their own breaker implementation, mirroring
// set_circuit_breaker_generator in the original.
type Generator func(rule *Rule, reuseStat *counterLeapArray) (CircuitBreaker, error)

func init() {
	generators[SlowRequestRatio] = func(rule *Rule, stat *counterLeapArray) (CircuitBreaker, error) {
		return newSlowRtBreakerWithStat(rule, stat), nil
	}
	generators[ErrorRatio] = func(rule *Rule, stat *counterLeapArray) (CircuitBreaker, error) {
		return newErrorRatioBreakerWithStat(rule, stat), nil
	}
	generators[ErrorCount] = func(rule *Rule, stat *counterLeapArray) (CircuitBreaker, error) {
		return newErrorCountBreakerWithStat(rule, stat), nil
	}
}

// SetCircuitBreakerGenerator registers (or replaces) the breaker
// constructor used for strategy. Built-in strategies may not be
// overridden; this exists for StrategyCustom extensions.
func SetCircuitBreakerGenerator(strategy Strategy, generator Generator) error {
	if strategy == SlowRequestRatio || strategy == ErrorRatio || strategy == ErrorCount {
		return errors.New("cannot modify the generator for a built-in circuit breaking strategy")
	}
	if generator == nil {
		return errors.New("nil circuit breaker generator")
	}
	generatorMu.Lock()
	defer generatorMu.Unlock()
	generators[strategy] = generator
	return nil
}

// RemoveCircuitBreakerGenerator unregisters the breaker constructor for
// strategy. Built-in strategies may not be removed.
func RemoveCircuitBreakerGenerator(strategy Strategy) error {
	if strategy == SlowRequestRatio || strategy == ErrorRatio || strategy == ErrorCount {
		return errors.New("cannot modify the generator for a built-in circuit breaking strategy")
	}
	generatorMu.Lock()
	defer generatorMu.Unlock()
	delete(generators, strategy)
	return nil
}

// LoadRules replaces every circuit breaking rule, reusing per-resource
// statistic buckets across reload wherever IsStatReusable allows it.
func LoadRules(rules []*Rule) bool {
	byResource := rulesToMap(rules)

	ruleMapMu.Lock()
	defer ruleMapMu.Unlock()

	if rulesMapEquals(ruleMap, byResource) {
		logging.Info("[CircuitBreakerRuleManager] load rules is the same with current rules, ignoring")
		return false
	}

	newBreakers := make(map[string][]CircuitBreaker)
	newRuleMap := make(map[string][]*Rule)
	for resource, rs := range byResource {
		valid, err := validateAndAssignIDs(rs)
		if err != nil {
			logging.Warn("[CircuitBreakerRuleManager] some rules were rejected on load", "resource", resource, "error", err)
		}
		if len(valid) == 0 {
			continue
		}
		newRuleMap[resource] = valid
		built, err := buildBreakers(valid, breakerMap[resource])
		if err != nil {
			logging.Warn("[CircuitBreakerRuleManager] failed to build some breakers", "resource", resource, "error", err)
		}
		newBreakers[resource] = built
	}
	ruleMap = newRuleMap
	breakerMap = newBreakers
	logging.Info("[CircuitBreakerRuleManager] circuit breaking rules loaded", "resourceCount", len(newRuleMap))
	return true
}

// LoadRulesOfResource replaces resource's circuit breaking rules.
func LoadRulesOfResource(resource string, rules []*Rule) (bool, error) {
	ruleMapMu.Lock()
	defer ruleMapMu.Unlock()

	if len(rules) == 0 {
		_, existed := ruleMap[resource]
		delete(ruleMap, resource)
		delete(breakerMap, resource)
		return existed, nil
	}

	valid, err := validateAndAssignIDs(rules)
	if len(valid) == 0 {
		delete(ruleMap, resource)
		delete(breakerMap, resource)
		return true, err
	}
	ruleMap[resource] = valid
	built, buildErr := buildBreakers(valid, breakerMap[resource])
	breakerMap[resource] = built
	return true, multierr.Append(err, buildErr)
}

func GetRules() []*Rule {
	ruleMapMu.RLock()
	defer ruleMapMu.RUnlock()
	var out []*Rule
	for _, rs := range ruleMap {
		out = append(out, rs...)
	}
	return out
}

func GetRulesOfResource(resource string) []*Rule {
	ruleMapMu.RLock()
	defer ruleMapMu.RUnlock()
	src := ruleMap[resource]
	out := make([]*Rule, len(src))
	copy(out, src)
	return out
}

func ClearRules() {
	ruleMapMu.Lock()
	defer ruleMapMu.Unlock()
	ruleMap = make(map[string][]*Rule)
	breakerMap = make(map[string][]CircuitBreaker)
}

func ClearRulesOfResource(resource string) {
	ruleMapMu.Lock()
	defer ruleMapMu.Unlock()
	delete(ruleMap, resource)
	delete(breakerMap, resource)
}

// BreakersFor returns resource's currently loaded breakers, consumed by
// the RuleCheckSlot.
func BreakersFor(resource string) []CircuitBreaker {
	ruleMapMu.RLock()
	defer ruleMapMu.RUnlock()
	return breakerMap[resource]
}

func validateAndAssignIDs(rules []*Rule) ([]*Rule, error) {
	var errs error
	valid := make([]*Rule, 0, len(rules))
	for _, r := range rules {
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		if err := Validate(r); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		valid = append(valid, r)
	}
	return valid, errs
}

// buildBreakers mirrors flow/hotspot's reuse-then-rebuild scan: an exactly
// equal old breaker is kept verbatim, a stat-reusable one donates its
// sliding-window counts to a freshly built breaker, and anything else is
// built from scratch via the strategy's registered Generator.
func buildBreakers(rules []*Rule, old []CircuitBreaker) ([]CircuitBreaker, error) {
	remaining := make([]CircuitBreaker, len(old))
	copy(remaining, old)

	var errs error
	result := make([]CircuitBreaker, 0, len(rules))
	for _, rule := range rules {
		eqIdx, reuseIdx := -1, -1
		for i, ob := range remaining {
			if ob == nil {
				continue
			}
			if ob.BoundRule().Equals(rule) {
				eqIdx = i
				break
			}
			if reuseIdx < 0 && ob.BoundRule().IsStatReusable(rule) {
				reuseIdx = i
			}
		}

		if eqIdx >= 0 {
			result = append(result, remaining[eqIdx])
			remaining[eqIdx] = nil
			continue
		}

		generatorMu.RLock()
		gen, ok := generators[rule.Strategy]
		generatorMu.RUnlock()
		if !ok {
			errs = multierr.Append(errs, errors.Errorf("no circuit breaker generator registered for strategy %s", rule.Strategy))
			continue
		}

		var reuseStat *counterLeapArray
		if reuseIdx >= 0 {
			if rb, ok := remaining[reuseIdx].(interface{ statForReuse() *counterLeapArray }); ok {
				reuseStat = rb.statForReuse()
			}
			remaining[reuseIdx] = nil
		}

		breaker, err := gen(rule, reuseStat)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		result = append(result, breaker)
	}
	return result, errs
}

func rulesToMap(rules []*Rule) map[string][]*Rule {
	m := make(map[string][]*Rule)
	for _, r := range rules {
		m[r.Resource] = append(m[r.Resource], r)
	}
	return m
}

func rulesMapEquals(a, b map[string][]*Rule) bool {
	if len(a) != len(b) {
		return false
	}
	for resource, rs := range a {
		if !rulesEquals(rs, b[resource]) {
			return false
		}
	}
	return true
}

func rulesEquals(a, b []*Rule) bool {
	if len(a) != len(b) {
		return false
	}
	used := make([]bool, len(b))
	for _, ra := range a {
		found := false
		for i, rb := range b {
			if used[i] {
				continue
			}
			if ra.Equals(rb) {
				used[i] = true
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
