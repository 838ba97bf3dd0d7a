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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetHotspotRules() {
	ClearRules()
}

func TestLoadRulesAssignsCheckersByControlStrategy(t *testing.T) {
	defer resetHotspotRules()

	ok := LoadRules([]*Rule{
		{Resource: "r1", MetricType: QPS, ControlStrategy: Reject, Threshold: 10, DurationInSec: 1},
		{Resource: "r2", MetricType: QPS, ControlStrategy: Throttling, Threshold: 10, DurationInSec: 1},
		{Resource: "r3", MetricType: Concurrency, Threshold: 10},
	})
	require.True(t, ok)

	cs := ControllersFor("r1")
	require.Len(t, cs, 1)
	_, isReject := cs[0].checker.(*RejectChecker)
	assert.True(t, isReject)

	cs = ControllersFor("r2")
	require.Len(t, cs, 1)
	_, isThrottling := cs[0].checker.(*ThrottlingChecker)
	assert.True(t, isThrottling)

	cs = ControllersFor("r3")
	require.Len(t, cs, 1)
	assert.Nil(t, cs[0].checker, "concurrency controllers don't need a QPS checker")
}

func TestLoadRulesIgnoresIdenticalReload(t *testing.T) {
	defer resetHotspotRules()

	rules := []*Rule{{Resource: "r1", MetricType: Concurrency, Threshold: 10}}
	require.True(t, LoadRules(rules))
	assert.False(t, LoadRules(rules), "reloading an identical rule set should be a no-op")
}

func TestLoadRulesReusesCounterOnThresholdOnlyChange(t *testing.T) {
	defer resetHotspotRules()

	require.True(t, LoadRules([]*Rule{
		{Resource: "r1", MetricType: QPS, ControlStrategy: Reject, Threshold: 5, DurationInSec: 1},
	}))
	before := ControllersFor("r1")
	require.Len(t, before, 1)
	before[0].PerformChecking("v1", 1)

	require.True(t, LoadRules([]*Rule{
		{Resource: "r1", MetricType: QPS, ControlStrategy: Reject, Threshold: 50, DurationInSec: 1},
	}))
	after := ControllersFor("r1")
	require.Len(t, after, 1)

	assert.Same(t, before[0].metric, after[0].metric, "stat-reusable reload should carry the counters over to the new controller")
}

func TestLoadRulesOfResourceClearsOnEmpty(t *testing.T) {
	defer resetHotspotRules()

	require.True(t, LoadRules([]*Rule{{Resource: "r1", MetricType: Concurrency, Threshold: 10}}))
	existed, err := LoadRulesOfResource("r1", nil)
	require.NoError(t, err)
	assert.True(t, existed)
	assert.Empty(t, ControllersFor("r1"))
	assert.Empty(t, GetRulesOfResource("r1"))
}

func TestLoadRulesRejectsInvalidRule(t *testing.T) {
	defer resetHotspotRules()

	ok, err := LoadRulesOfResource("r1", []*Rule{{Resource: "r1", MetricType: QPS, DurationInSec: 0}})
	require.Error(t, err)
	assert.True(t, ok)
	assert.Empty(t, GetRulesOfResource("r1"), "the invalid rule must not be retained")
}

func TestClearRules(t *testing.T) {
	defer resetHotspotRules()

	require.True(t, LoadRules([]*Rule{{Resource: "r1", MetricType: Concurrency, Threshold: 10}}))
	ClearRules()
	assert.Empty(t, GetRules())
	assert.Empty(t, ControllersFor("r1"))
}
