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

package isolation

import (
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/aegisflow/aegis-go/logging"
)

var (
	rulesMu sync.RWMutex
	ruleMap = make(map[string][]*Rule)
)

// LoadRules replaces every isolation rule. Reports whether the submitted
// set differs from what's currently loaded.
func LoadRules(rules []*Rule) bool {
	newMap := toMap(rules)

	rulesMu.Lock()
	defer rulesMu.Unlock()

	if mapEquals(ruleMap, newMap) {
		logging.Info("[IsolationRuleManager] load rules is the same with current rules, ignoring")
		return false
	}

	valid := make(map[string][]*Rule, len(newMap))
	var errs error
	for resource, rs := range newMap {
		ok, err := validateInPlace(rs)
		errs = multierr.Append(errs, err)
		if len(ok) > 0 {
			valid[resource] = ok
		}
	}
	if errs != nil {
		logging.Warn("[IsolationRuleManager] some rules were rejected on load", "error", errs)
	}
	ruleMap = valid
	logging.Info("[IsolationRuleManager] isolation rules loaded", "resourceCount", len(valid))
	return true
}

// LoadRulesOfResource replaces resource's isolation rules. Empty rules
// clears the resource.
func LoadRulesOfResource(resource string, rules []*Rule) (bool, error) {
	if resource == "" {
		return false, errors.New("empty resource")
	}

	rulesMu.Lock()
	defer rulesMu.Unlock()

	if len(rules) == 0 {
		_, existed := ruleMap[resource]
		delete(ruleMap, resource)
		return existed, nil
	}

	if sliceEquals(ruleMap[resource], rules) {
		return false, nil
	}

	valid, err := validateInPlace(rules)
	if len(valid) == 0 {
		delete(ruleMap, resource)
	} else {
		ruleMap[resource] = valid
	}
	return true, err
}

// AppendRule idempotently adds rule: a no-op if an identical rule already
// exists for its resource.
func AppendRule(rule *Rule) bool {
	rulesMu.Lock()
	defer rulesMu.Unlock()

	for _, r := range ruleMap[rule.Resource] {
		if r.Equals(rule) {
			return false
		}
	}
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	if err := Validate(rule); err != nil {
		logging.Warn("[IsolationRuleManager] ignoring invalid isolation rule on append", "error", err)
		return false
	}
	ruleMap[rule.Resource] = append(ruleMap[rule.Resource], rule)
	return true
}

func GetRules() []*Rule {
	rulesMu.RLock()
	defer rulesMu.RUnlock()
	var out []*Rule
	for _, rs := range ruleMap {
		out = append(out, rs...)
	}
	return out
}

func GetRulesOfResource(resource string) []*Rule {
	rulesMu.RLock()
	defer rulesMu.RUnlock()
	src := ruleMap[resource]
	out := make([]*Rule, len(src))
	copy(out, src)
	return out
}

func ClearRules() {
	rulesMu.Lock()
	defer rulesMu.Unlock()
	ruleMap = make(map[string][]*Rule)
}

func ClearRulesOfResource(resource string) {
	rulesMu.Lock()
	defer rulesMu.Unlock()
	delete(ruleMap, resource)
}

// RulesFor returns resource's currently loaded isolation rules, consumed by
// the RuleCheckSlot.
func RulesFor(resource string) []*Rule {
	rulesMu.RLock()
	defer rulesMu.RUnlock()
	return ruleMap[resource]
}

func validateInPlace(rules []*Rule) ([]*Rule, error) {
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

func toMap(rules []*Rule) map[string][]*Rule {
	m := make(map[string][]*Rule)
	for _, r := range rules {
		m[r.Resource] = append(m[r.Resource], r)
	}
	return m
}

func mapEquals(a, b map[string][]*Rule) bool {
	if len(a) != len(b) {
		return false
	}
	for resource, rs := range a {
		if !sliceEquals(rs, b[resource]) {
			return false
		}
	}
	return true
}

func sliceEquals(a, b []*Rule) bool {
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
