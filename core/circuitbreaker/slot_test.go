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

	"github.com/aegisflow/aegis-go/core/base"
)

func TestSlotPassesWithNoRulesLoaded(t *testing.T) {
	defer resetCircuitBreakerRules()

	ctx := base.NewEmptyEntryContext()
	ctx.Resource = base.NewResourceWrapper("no-rules-here", base.ResTypeCommon, base.Inbound)
	result := DefaultSlot.Check(ctx)
	assert.True(t, result.IsPass())
}

func TestSlotBlocksAndReportsCompletionOnExit(t *testing.T) {
	defer resetCircuitBreakerRules()

	require.True(t, LoadRules([]*Rule{
		{Resource: "res1", Strategy: ErrorCount, RetryTimeoutMs: 1000, StatIntervalMs: 10000, MinRequestAmount: 1, Threshold: 1},
	}))

	ctx := base.NewEmptyEntryContext()
	ctx.Resource = base.NewResourceWrapper("res1", base.ResTypeCommon, base.Inbound)
	entry := base.NewSentinelEntry(ctx, nil)

	result := DefaultSlot.Check(ctx)
	require.True(t, result.IsPass(), "breaker starts Closed and must admit the call")

	ctx.SetError(errors.New("boom"))
	entry.Exit()

	breakers := BreakersFor("res1")
	require.Len(t, breakers, 1)
	assert.Equal(t, Closed, breakers[0].CurrentState(), "an error count equal to the threshold of 1 must not trip yet")

	ctx2 := base.NewEmptyEntryContext()
	ctx2.Resource = base.NewResourceWrapper("res1", base.ResTypeCommon, base.Inbound)
	entry2 := base.NewSentinelEntry(ctx2, nil)
	result2 := DefaultSlot.Check(ctx2)
	require.True(t, result2.IsPass())
	ctx2.SetError(errors.New("boom again"))
	entry2.Exit()

	assert.Equal(t, Open, breakers[0].CurrentState(), "second error should push error count past the threshold of 1")
}
