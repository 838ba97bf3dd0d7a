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

package metric

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aegisflow/aegis-go/core/base"
	"github.com/aegisflow/aegis-go/core/stat"
)

func TestIsActiveMetricItemRequiresSomeNonZeroField(t *testing.T) {
	assert.False(t, isActiveMetricItem(&base.MetricItem{}))
	assert.True(t, isActiveMetricItem(&base.MetricItem{PassQps: 1}))
	assert.True(t, isActiveMetricItem(&base.MetricItem{Concurrency: 1}))
}

func TestIsItemTimestampInTimeHonoursLastFetchBoundary(t *testing.T) {
	assert.True(t, isItemTimestampInTime(1000, 2000))
	assert.False(t, isItemTimestampInTime(2000, 2000), "a timestamp equal to the current second must not be included yet")
}

func TestAggregateIntoMapStampsResourceMetadata(t *testing.T) {
	defer stat.ResetForTest()
	node := stat.GetOrCreateResourceNode("svc", base.ResTypeCommon)

	mm := make(metricTimeMap)
	metrics := map[uint64]*base.MetricItem{
		1000: {Timestamp: 1000, PassQps: 3},
	}
	aggregateIntoMap(mm, metrics, node)

	require.Contains(t, mm, uint64(1000))
	require.Len(t, mm[1000], 1)
	assert.Equal(t, "svc", mm[1000][0].Resource)
}

func TestCurrentMetricItemsFiltersInactiveAndOutOfRangeItems(t *testing.T) {
	defer stat.ResetForTest()
	node := stat.GetOrCreateResourceNode("svc2", base.ResTypeCommon)
	node.AddCount(base.MetricEventPass, 2)

	items := currentMetricItems(node, 10_000_000)
	for _, item := range items {
		assert.True(t, isActiveMetricItem(item))
	}
}
