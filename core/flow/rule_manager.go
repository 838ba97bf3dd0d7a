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
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/aegisflow/aegis-go/core/base"
	"github.com/aegisflow/aegis-go/core/stat"
	"github.com/aegisflow/aegis-go/logging"
)

var (
	ruleMapMu     sync.RWMutex
	ruleMap       = make(map[string][]*Rule)
	controllerMap = make(map[string][]*TrafficShapingController)
)

// LoadRules replaces every flow rule currently loaded. It reports whether
// the call actually changed anything (an identical reload is a no-op).
func LoadRules(rules []*Rule) bool {
	newMap := rulesToMap(rules)

	ruleMapMu.Lock()
	defer ruleMapMu.Unlock()

	if rulesMapEquals(ruleMap, newMap) {
		logging.Info("[FlowRuleManager] Load rules is the same with current rules, ignoring")
		return false
	}

	newControllerMap := make(map[string][]*TrafficShapingController, len(newMap))
	for resource, rs := range newMap {
		valid, err := validateAndAssignIDs(rs)
		if err != nil {
			logging.Warn("[FlowRuleManager] ignoring invalid flow rules", "resource", resource, "error", err)
		}
		if len(valid) == 0 {
			continue
		}
		built := buildResourceTrafficShapingControllers(resource, valid, controllerMap[resource])
		if len(built) > 0 {
			newControllerMap[resource] = built
		}
	}

	controllerMap = newControllerMap
	ruleMap = newMap
	logRuleUpdate(newMap)
	return true
}

// LoadRulesOfResource replaces the flow rules bound to resource, leaving
// every other resource's rules untouched. An empty rules slice clears the
// resource's rules entirely.
func LoadRulesOfResource(resource string, rules []*Rule) (bool, error) {
	if resource == "" {
		return false, errors.New("empty resource")
	}

	ruleMapMu.Lock()
	defer ruleMapMu.Unlock()

	if len(rules) == 0 {
		_, rexisted := ruleMap[resource]
		_, cexisted := controllerMap[resource]
		delete(ruleMap, resource)
		delete(controllerMap, resource)
		if rexisted || cexisted {
			logging.Info("[FlowRuleManager] cleared resource-level flow rules", "resource", resource)
			return true, nil
		}
		return false, nil
	}

	if rulesEquals(ruleMap[resource], rules) {
		logging.Info("[FlowRuleManager] Load resource rules is the same with current ones, ignoring", "resource", resource)
		return false, nil
	}

	valid, err := validateAndAssignIDs(rules)
	built := buildResourceTrafficShapingControllers(resource, valid, controllerMap[resource])
	if len(built) == 0 {
		delete(controllerMap, resource)
	} else {
		controllerMap[resource] = built
	}
	ruleMap[resource] = rules
	logging.Info("[FlowRuleManager] loaded resource-level flow rules", "resource", resource, "count", len(valid))
	return true, err
}

// GetRules returns every currently loaded flow rule.
func GetRules() []*Rule {
	ruleMapMu.RLock()
	defer ruleMapMu.RUnlock()
	var out []*Rule
	for _, rs := range ruleMap {
		out = append(out, rs...)
	}
	return out
}

// GetRulesOfResource returns resource's currently loaded flow rules.
func GetRulesOfResource(resource string) []*Rule {
	ruleMapMu.RLock()
	defer ruleMapMu.RUnlock()
	src := ruleMap[resource]
	out := make([]*Rule, len(src))
	copy(out, src)
	return out
}

// ClearRules removes every flow rule.
func ClearRules() {
	ruleMapMu.Lock()
	defer ruleMapMu.Unlock()
	ruleMap = make(map[string][]*Rule)
	controllerMap = make(map[string][]*TrafficShapingController)
}

// ClearRulesOfResource removes resource's flow rules.
func ClearRulesOfResource(resource string) {
	ruleMapMu.Lock()
	defer ruleMapMu.Unlock()
	delete(ruleMap, resource)
	delete(controllerMap, resource)
}

// ControllersFor returns the live traffic shaping controllers backing
// resource, consumed by the RuleCheckSlot.
func ControllersFor(resource string) []*TrafficShapingController {
	ruleMapMu.RLock()
	defer ruleMapMu.RUnlock()
	return controllerMap[resource]
}

func validateAndAssignIDs(rules []*Rule) ([]*Rule, error) {
	var errs error
	valid := make([]*Rule, 0, len(rules))
	for _, r := range rules {
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		if err := Validate(r); err != nil {
			errs = multierr.Append(errs, errors.Wrapf(err, "rule %s", r.ID))
			continue
		}
		valid = append(valid, r)
	}
	return valid, errs
}

// buildResourceTrafficShapingControllers builds the controller slice for
// resource's current rule set, reusing an old controller verbatim when an
// equivalent rule already has one, and reusing its calculator/checker state
// when only a non-discriminating field (e.g. Threshold) changed on an
// otherwise stat-reusable rule.
func buildResourceTrafficShapingControllers(resource string, rules []*Rule, old []*TrafficShapingController) []*TrafficShapingController {
	remaining := append([]*TrafficShapingController(nil), old...)
	built := make([]*TrafficShapingController, 0, len(rules))

	for _, rule := range rules {
		if rule.Resource != resource {
			logging.Error(errors.New("unmatched resource"), "ignoring rule with mismatched resource", "expected", resource, "actual", rule.Resource)
			continue
		}

		eqIdx, reuseIdx := -1, -1
		for i, tc := range remaining {
			if tc == nil {
				continue
			}
			if tc.Rule().Equals(rule) {
				eqIdx = i
				break
			}
			if reuseIdx == -1 && tc.Rule().IsStatReusable(rule) {
				reuseIdx = i
			}
		}

		if eqIdx != -1 {
			built = append(built, remaining[eqIdx])
			remaining[eqIdx] = nil
			continue
		}

		var reuseCalc TrafficShapingCalculator
		var reuseCheck TrafficShapingChecker
		if reuseIdx != -1 {
			reuseCalc = remaining[reuseIdx].Calculator()
			reuseCheck = remaining[reuseIdx].Checker()
			remaining[reuseIdx] = nil
		}

		calculator := generateCalculator(rule, reuseCalc)
		checker := generateChecker(rule, reuseCheck)
		if calculator == nil || checker == nil {
			logging.Error(errBuiltinStrategy, "unsupported flow control strategy, ignoring rule", "rule", rule.String())
			continue
		}

		node := stat.GetOrCreateResourceNode(statResourceName(rule), base.ResTypeCommon)
		_ = node // resource node creation has the side effect of registering default statistics
		built = append(built, NewTrafficShapingController(rule, calculator, checker))
	}
	return built
}

func statResourceName(rule *Rule) string {
	if rule.RelationStrategy == AssociatedResource && rule.RefResource != "" {
		return rule.RefResource
	}
	return rule.Resource
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

func logRuleUpdate(m map[string][]*Rule) {
	if len(m) == 0 {
		logging.Info("[FlowRuleManager] flow rules were cleared")
		return
	}
	logging.Info("[FlowRuleManager] flow rules were loaded", "resourceCount", len(m))
}
