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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetCircuitBreakerRules() {
	ClearRules()
}

func TestLoadRulesIgnoresIdenticalReload(t *testing.T) {
	defer resetCircuitBreakerRules()

	rules := []*Rule{{Resource: "r1", Strategy: ErrorRatio, RetryTimeoutMs: 1000, StatIntervalMs: 10000, Threshold: 0.5}}
	require.True(t, LoadRules(rules))
	assert.False(t, LoadRules(rules), "reloading an identical rule set should be a no-op")
}

func TestLoadRulesReusesStatOnThresholdOnlyChange(t *testing.T) {
	defer resetCircuitBreakerRules()

	require.True(t, LoadRules([]*Rule{
		{Resource: "r1", Strategy: ErrorRatio, RetryTimeoutMs: 1000, StatIntervalMs: 10000, MinRequestAmount: 2, Threshold: 0.1},
	}))
	before := BreakersFor("r1")
	require.Len(t, before, 1)
	before[0].OnRequestComplete(1, errors.New("x"))

	require.True(t, LoadRules([]*Rule{
		{Resource: "r1", Strategy: ErrorRatio, RetryTimeoutMs: 1000, StatIntervalMs: 10000, MinRequestAmount: 2, Threshold: 0.9},
	}))
	after := BreakersFor("r1")
	require.Len(t, after, 1)

	type statHolder interface{ statForReuse() *counterLeapArray }
	bStat := before[0].(statHolder).statForReuse()
	aStat := after[0].(statHolder).statForReuse()
	assert.Same(t, bStat, aStat, "stat-reusable reload should carry the counter forward")
}

func TestLoadRulesOfResourceClearsOnEmpty(t *testing.T) {
	defer resetCircuitBreakerRules()

	require.True(t, LoadRules([]*Rule{{Resource: "r1", Strategy: ErrorCount, RetryTimeoutMs: 1000, StatIntervalMs: 10000, Threshold: 10}}))
	existed, err := LoadRulesOfResource("r1", nil)
	require.NoError(t, err)
	assert.True(t, existed)
	assert.Empty(t, BreakersFor("r1"))
}

func TestLoadRulesRejectsInvalidRule(t *testing.T) {
	defer resetCircuitBreakerRules()

	ok, err := LoadRulesOfResource("r1", []*Rule{{Resource: "r1", Strategy: ErrorRatio, StatIntervalMs: 0}})
	require.Error(t, err)
	assert.True(t, ok)
	assert.Empty(t, GetRulesOfResource("r1"))
}

func TestSetCircuitBreakerGeneratorRejectsBuiltins(t *testing.T) {
	gen := func(rule *Rule, stat *counterLeapArray) (CircuitBreaker, error) {
		return NewErrorCountBreaker(rule), nil
	}
	assert.Error(t, SetCircuitBreakerGenerator(SlowRequestRatio, gen))
	assert.Error(t, SetCircuitBreakerGenerator(ErrorRatio, gen))
	assert.Error(t, SetCircuitBreakerGenerator(ErrorCount, gen))
}

func TestSetCircuitBreakerGeneratorCustomStrategy(t *testing.T) {
	defer resetCircuitBreakerRules()

	var built bool
	err := SetCircuitBreakerGenerator(StrategyCustom, func(rule *Rule, stat *counterLeapArray) (CircuitBreaker, error) {
		built = true
		return NewErrorCountBreaker(rule), nil
	})
	require.NoError(t, err)

	ok := LoadRules([]*Rule{{Resource: "r1", Strategy: StrategyCustom, RetryTimeoutMs: 1000, StatIntervalMs: 10000, Threshold: 10}})
	require.True(t, ok)
	assert.True(t, built)
	assert.Len(t, BreakersFor("r1"), 1)
}

func TestClearRules(t *testing.T) {
	defer resetCircuitBreakerRules()

	require.True(t, LoadRules([]*Rule{{Resource: "r1", Strategy: ErrorCount, RetryTimeoutMs: 1000, StatIntervalMs: 10000, Threshold: 10}}))
	ClearRules()
	assert.Empty(t, GetRules())
	assert.Empty(t, BreakersFor("r1"))
}
