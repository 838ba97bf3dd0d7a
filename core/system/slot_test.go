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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aegisflow/aegis-go/core/base"
	"github.com/aegisflow/aegis-go/core/stat"
)

func resetSystemState() {
	ClearRules()
	stat.ResetForTest()
}

func contextWithFlowType(flowType base.TrafficType) *base.EntryContext {
	ctx := base.NewEmptyEntryContext()
	ctx.Resource = base.NewResourceWrapper("abc", base.ResTypeCommon, flowType)
	ctx.RuleCheckResult = base.NewTokenResultPass()
	return ctx
}

func TestSlotSkipsOutboundTraffic(t *testing.T) {
	defer resetSystemState()
	require.True(t, LoadRules([]*Rule{{MetricType: MetricConcurrency, Threshold: 0}}))

	ctx := contextWithFlowType(base.Outbound)
	result := DefaultSlot.Check(ctx)
	assert.True(t, result.IsPass(), "system rules only apply to inbound traffic")
}

func TestSlotBlocksOnConcurrencyThreshold(t *testing.T) {
	defer resetSystemState()
	require.True(t, LoadRules([]*Rule{{MetricType: MetricConcurrency, Threshold: 1}}))

	inbound := stat.InboundNode()
	inbound.IncreaseConcurrency()

	ctx := contextWithFlowType(base.Inbound)
	result := DefaultSlot.Check(ctx)
	assert.True(t, result.IsBlocked(), "concurrency at the threshold must block inbound traffic")
}

func TestSlotAdmitsBelowConcurrencyThreshold(t *testing.T) {
	defer resetSystemState()
	require.True(t, LoadRules([]*Rule{{MetricType: MetricConcurrency, Threshold: 5}}))

	ctx := contextWithFlowType(base.Inbound)
	result := DefaultSlot.Check(ctx)
	assert.True(t, result.IsPass())
}

func TestSlotPassesWithNoRules(t *testing.T) {
	defer resetSystemState()
	ctx := contextWithFlowType(base.Inbound)
	result := DefaultSlot.Check(ctx)
	assert.True(t, result.IsPass())
}
