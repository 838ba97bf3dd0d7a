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
	"sync"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/aegisflow/aegis-go/logging"
)

var (
	ruleMapMu     sync.RWMutex
	ruleMap       = make(map[string][]*Rule)
	controllerMap = make(map[string][]*Controller)
)

// LoadRules replaces every hotspot rule, reusing per-parameter counters
// across reload wherever IsStatReusable allows it.
func LoadRules(rules []*Rule) bool {
	byResource := rulesToMap(rules)

	ruleMapMu.Lock()
	defer ruleMapMu.Unlock()

	if rulesMapEquals(ruleMap, byResource) {
		logging.Info("[HotSpotRuleManager] load rules is the same with current rules, ignoring")
		return false
	}

	newControllers := make(map[string][]*Controller)
	newRuleMap := make(map[string][]*Rule)
	for resource, rs := range byResource {
		valid, err := validateAndAssignIDs(rs)
		if err != nil {
			logging.Warn("[HotSpotRuleManager] some rules were rejected on load", "resource", resource, "error", err)
		}
		if len(valid) == 0 {
			continue
		}
		newRuleMap[resource] = valid
		newControllers[resource] = buildControllers(resource, valid, controllerMap[resource])
	}
	ruleMap = newRuleMap
	controllerMap = newControllers
	logging.Info("[HotSpotRuleManager] hotspot rules loaded", "resourceCount", len(newRuleMap))
	return true
}

// LoadRulesOfResource replaces resource's hotspot rules.
func LoadRulesOfResource(resource string, rules []*Rule) (bool, error) {
	ruleMapMu.Lock()
	defer ruleMapMu.Unlock()

	if len(rules) == 0 {
		_, existed := ruleMap[resource]
		delete(ruleMap, resource)
		delete(controllerMap, resource)
		return existed, nil
	}

	valid, err := validateAndAssignIDs(rules)
	if len(valid) == 0 {
		delete(ruleMap, resource)
		delete(controllerMap, resource)
		return true, err
	}
	ruleMap[resource] = valid
	controllerMap[resource] = buildControllers(resource, valid, controllerMap[resource])
	return true, err
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
	controllerMap = make(map[string][]*Controller)
}

func ClearRulesOfResource(resource string) {
	ruleMapMu.Lock()
	defer ruleMapMu.Unlock()
	delete(ruleMap, resource)
	delete(controllerMap, resource)
}

// ControllersFor returns resource's currently loaded traffic shaping
// controllers, consumed by the RuleCheckSlot.
func ControllersFor(resource string) []*Controller {
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
			errs = multierr.Append(errs, err)
			continue
		}
		valid = append(valid, r)
	}
	return valid, errs
}

// buildControllers mirrors flow's reuse-then-rebuild scan: an exactly
// equal old controller is kept verbatim, a stat-reusable one donates its
// per-parameter counters to a freshly built controller, and anything else
// is built from scratch.
func buildControllers(resource string, rules []*Rule, old []*Controller) []*Controller {
	remaining := make([]*Controller, len(old))
	copy(remaining, old)

	result := make([]*Controller, 0, len(rules))
	for _, rule := range rules {
		eqIdx, reuseIdx := -1, -1
		for i, oc := range remaining {
			if oc == nil {
				continue
			}
			if oc.rule.Equals(rule) {
				eqIdx = i
				break
			}
			if reuseIdx < 0 && oc.rule.IsStatReusable(rule) {
				reuseIdx = i
			}
		}

		var controller *Controller
		switch {
		case eqIdx >= 0:
			controller = remaining[eqIdx]
			remaining[eqIdx] = nil
		case reuseIdx >= 0:
			controller = NewControllerWithMetric(rule, remaining[reuseIdx].metric)
			remaining[reuseIdx] = nil
		default:
			controller = NewController(rule)
		}

		if controller.checker == nil {
			attachChecker(controller, rule)
		}
		result = append(result, controller)
	}
	return result
}

func attachChecker(controller *Controller, rule *Rule) {
	if rule.MetricType != QPS {
		return
	}
	checker := generateChecker(rule)
	if checker == nil {
		logging.Warn("[HotSpotRuleManager] no checker registered for control strategy, skipping", "resource", rule.Resource, "strategy", rule.ControlStrategy)
		return
	}
	controller.SetChecker(checker)
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
