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

package system

import (
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/aegisflow/aegis-go/logging"
)

var (
	rulesMu      sync.RWMutex
	ruleMap      = make(map[MetricType][]*Rule)
	currentRules []*Rule
)

// LoadRules replaces every system rule. System rules are process-wide (no
// resource scoping), unlike the other rule domains.
func LoadRules(rules []*Rule) bool {
	rulesMu.Lock()
	defer rulesMu.Unlock()

	if rulesEqual(currentRules, rules) {
		logging.Info("[SystemRuleManager] load rules is the same with current rules, ignoring")
		return false
	}

	m := make(map[MetricType][]*Rule)
	var errs error
	for _, r := range rules {
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		if err := Validate(r); err != nil {
			errs = multierr.Append(errs, errors.Wrapf(err, "rule %s", r.ID))
			continue
		}
		m[r.MetricType] = append(m[r.MetricType], r)
	}
	if errs != nil {
		logging.Warn("[SystemRuleManager] some rules were rejected on load", "error", errs)
	}
	ruleMap = m
	currentRules = rules
	logging.Info("[SystemRuleManager] system rules loaded", "count", len(rules))
	return true
}

// AppendRule idempotently adds rule.
func AppendRule(rule *Rule) bool {
	rulesMu.Lock()
	defer rulesMu.Unlock()

	for _, r := range ruleMap[rule.MetricType] {
		if r.Equals(rule) {
			return false
		}
	}
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	if err := Validate(rule); err != nil {
		logging.Warn("[SystemRuleManager] ignoring invalid system rule on append", "error", err)
		return false
	}
	ruleMap[rule.MetricType] = append(ruleMap[rule.MetricType], rule)
	currentRules = append(currentRules, rule)
	return true
}

// GetRules returns every currently loaded system rule.
func GetRules() []*Rule {
	rulesMu.RLock()
	defer rulesMu.RUnlock()
	var out []*Rule
	for _, rs := range ruleMap {
		out = append(out, rs...)
	}
	return out
}

func ClearRules() {
	rulesMu.Lock()
	defer rulesMu.Unlock()
	ruleMap = make(map[MetricType][]*Rule)
	currentRules = nil
}

// rulesForCheck returns a flattened, stable-ish snapshot for the slot to
// iterate; order across metric types does not matter since every rule is
// independently evaluated.
func rulesForCheck() []*Rule {
	rulesMu.RLock()
	defer rulesMu.RUnlock()
	out := make([]*Rule, 0, len(currentRules))
	for _, rs := range ruleMap {
		out = append(out, rs...)
	}
	return out
}

func rulesEqual(a, b []*Rule) bool {
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
