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

package aegis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aegisflow/aegis-go/core/base"
	"github.com/aegisflow/aegis-go/core/flow"
	"github.com/aegisflow/aegis-go/core/isolation"
	"github.com/aegisflow/aegis-go/core/stat"
)

func TestEntryPassesWithNoRulesLoaded(t *testing.T) {
	defer stat.ResetForTest()
	sc := BuildDefaultSlotChain()

	entry, blockErr := Entry("no-rules-resource", WithSlotChain(sc))
	require.Nil(t, blockErr)
	require.NotNil(t, entry)
	entry.Exit()
}

func TestEntryBlockedByFlowRuleReturnsNilEntry(t *testing.T) {
	defer func() { flow.ClearRules(); stat.ResetForTest() }()
	sc := BuildDefaultSlotChain()

	require.True(t, flow.LoadRules([]*flow.Rule{{
		Resource:          "guarded",
		CalculateStrategy: flow.Direct,
		ControlStrategy:   flow.Reject,
		Threshold:         0,
	}}))

	entry, blockErr := Entry("guarded", WithSlotChain(sc))
	assert.Nil(t, entry)
	require.NotNil(t, blockErr)
	assert.Equal(t, base.BlockTypeFlow, blockErr.BlockType())
}

func TestEntryExitIsIdempotentAndRefurbishesContext(t *testing.T) {
	defer stat.ResetForTest()
	sc := BuildDefaultSlotChain()

	entry, blockErr := Entry("idempotent-exit", WithSlotChain(sc))
	require.Nil(t, blockErr)
	require.NotNil(t, entry)

	assert.NotPanics(t, func() {
		entry.Exit()
		entry.Exit()
	})
}

func TestEntryWithBatchCountIsReflectedInStats(t *testing.T) {
	defer stat.ResetForTest()
	sc := BuildDefaultSlotChain()

	entry, blockErr := Entry("batched", WithSlotChain(sc), WithBatchCount(5))
	require.Nil(t, blockErr)
	require.NotNil(t, entry)
	entry.Exit()

	node := stat.GetResourceNode("batched")
	require.NotNil(t, node)
	assert.Equal(t, int64(5), node.GetSum(base.MetricEventPass))
}

func TestEntryBlockedByIsolationRuleAtConcurrencyLimit(t *testing.T) {
	defer func() { isolation.ClearRulesOfResource("iso-guarded"); stat.ResetForTest() }()
	sc := BuildDefaultSlotChain()

	require.True(t, isolation.LoadRules([]*isolation.Rule{{Resource: "iso-guarded", Threshold: 1}}))

	first, blockErr := Entry("iso-guarded", WithSlotChain(sc))
	require.Nil(t, blockErr)
	require.NotNil(t, first)
	defer first.Exit()

	second, blockErr2 := Entry("iso-guarded", WithSlotChain(sc))
	assert.Nil(t, second)
	require.NotNil(t, blockErr2)
	assert.Equal(t, base.BlockTypeIsolation, blockErr2.BlockType())
}

func TestOutboundTrafficBypassesSystemAdaptiveChecks(t *testing.T) {
	defer stat.ResetForTest()
	sc := BuildDefaultSlotChain()

	entry, blockErr := Entry("downstream", WithSlotChain(sc), WithTrafficType(base.Outbound))
	require.Nil(t, blockErr)
	require.NotNil(t, entry)
	entry.Exit()
}
