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

package stat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aegisflow/aegis-go/core/base"
)

func newTestResourceNode(t *testing.T) *ResourceNode {
	t.Helper()
	n, err := NewResourceNode("svc", base.ResTypeCommon, 10000, 100, 1000, 10)
	require.NoError(t, err)
	return n
}

func TestResourceNodeAddCountAndGetSum(t *testing.T) {
	n := newTestResourceNode(t)
	n.AddCount(base.MetricEventPass, 3)
	n.AddCount(base.MetricEventPass, 4)
	assert.Equal(t, int64(7), n.GetSum(base.MetricEventPass))
}

func TestResourceNodeAddCountRtUsesAddRt(t *testing.T) {
	n := newTestResourceNode(t)
	n.AddCount(base.MetricEventRt, 50)
	assert.Equal(t, int64(50), n.GetSum(base.MetricEventRt))
	assert.InDelta(t, 50.0, n.MinRT(), 0.001)
}

func TestResourceNodeConcurrencyTracking(t *testing.T) {
	n := newTestResourceNode(t)
	assert.Equal(t, int32(0), n.CurrentConcurrency())

	n.IncreaseConcurrency()
	n.IncreaseConcurrency()
	assert.Equal(t, int32(2), n.CurrentConcurrency())

	n.DecreaseConcurrency()
	assert.Equal(t, int32(1), n.CurrentConcurrency())
}

func TestResourceNodeDecreaseConcurrencyNeverGoesNegative(t *testing.T) {
	n := newTestResourceNode(t)
	n.DecreaseConcurrency()
	assert.Equal(t, int32(0), n.CurrentConcurrency())
}

func TestResourceNodeGetQPS(t *testing.T) {
	n := newTestResourceNode(t)
	n.AddCount(base.MetricEventPass, 10)
	assert.InDelta(t, 10.0, n.GetQPS(base.MetricEventPass), 0.001)
}

func TestResourceNodeAvgRT(t *testing.T) {
	n := newTestResourceNode(t)
	n.AddCount(base.MetricEventComplete, 2)
	n.AddCount(base.MetricEventRt, 100)
	assert.InDelta(t, 50.0, n.AvgRT(), 0.001)
}

func TestResourceNodeMetricsOnConditionMapsFields(t *testing.T) {
	n := newTestResourceNode(t)
	n.AddCount(base.MetricEventPass, 5)
	n.AddCount(base.MetricEventComplete, 5)
	n.AddCount(base.MetricEventRt, 500)

	items := n.MetricsOnCondition(func(uint64) bool { return true })
	require.Len(t, items, 1)
	item := items[0]
	assert.Equal(t, "svc", item.Resource)
	assert.Equal(t, uint64(5), item.PassQps)
	assert.Equal(t, uint64(5), item.CompleteQps)
	assert.Equal(t, uint64(100), item.AvgRt)
}

func TestResourceNodeAccessors(t *testing.T) {
	n := newTestResourceNode(t)
	assert.Equal(t, "svc", n.ResourceName())
	assert.Equal(t, base.ResTypeCommon, n.ResourceType())
	assert.NotNil(t, n.ReadView())
	assert.NotNil(t, n.LeapArray())
}
