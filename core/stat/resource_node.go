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

// Package stat is the per-resource statistics hub: the resource node and
// the prepare/stat slots that feed it.
package stat

import (
	"sync/atomic"

	"github.com/aegisflow/aegis-go/core/base"
	statbase "github.com/aegisflow/aegis-go/core/stat/base"
	"github.com/aegisflow/aegis-go/util"
)

// ResourceNode is the statistics hub for exactly one resource: a global
// leap array sized from configuration, a default read view over it, and a
// live concurrency counter. Created lazily; never freed for the life of
// the process.
type ResourceNode struct {
	resourceName string
	resourceType base.ResourceType

	arr         *statbase.LeapArray
	readView    *statbase.SlidingWindowMetric
	concurrency int32
}

func NewResourceNode(resourceName string, resourceType base.ResourceType, intervalMsTotal, sampleCountTotal, intervalMs, sampleCount uint32) (*ResourceNode, error) {
	arr, err := statbase.NewLeapArray(sampleCountTotal, intervalMsTotal)
	if err != nil {
		return nil, err
	}
	view, err := statbase.NewSlidingWindowMetric(sampleCount, intervalMs, arr)
	if err != nil {
		return nil, err
	}
	return &ResourceNode{
		resourceName: resourceName,
		resourceType: resourceType,
		arr:          arr,
		readView:     view,
	}, nil
}

func (n *ResourceNode) ResourceName() string          { return n.resourceName }
func (n *ResourceNode) ResourceType() base.ResourceType { return n.resourceType }

// ReadView exposes the default sliding-window view for rule checkers that
// need to aggregate over a rule-specific sub-interval of the same leap
// array (e.g. a flow rule whose stat_interval_ms differs from the
// resource's default read view).
func (n *ResourceNode) ReadView() *statbase.SlidingWindowMetric { return n.readView }

// LeapArray exposes the underlying ring so a rule controller can build its
// own SlidingWindowMetric view over it (the stat-reuse mechanism reuses
// exactly this object across a rule reload).
func (n *ResourceNode) LeapArray() *statbase.LeapArray { return n.arr }

func (n *ResourceNode) AddCount(event base.MetricEvent, count int64) {
	cur, err := n.arr.CurrentBucket()
	if err != nil {
		return
	}
	if event == base.MetricEventRt {
		cur.Value.AddRt(uint64(count))
		return
	}
	cur.Value.Add(event, count)
}

func (n *ResourceNode) GetSum(event base.MetricEvent) int64 {
	return n.readView.Sum(event)
}

func (n *ResourceNode) GetQPS(event base.MetricEvent) float64 {
	return n.readView.QPS(event)
}

// GetPreviousQPS returns the QPS of event over the window immediately
// preceding the current read-view window: buckets whose start lies in
// [now-2*interval, now-interval).
func (n *ResourceNode) GetPreviousQPS(event base.MetricEvent) float64 {
	now := util.CurrentTimeMillis()
	intervalMs := n.readView.IntervalMs()
	var total int64
	for _, ww := range n.arr.ValuesConditional(now, func(start uint64) bool {
		return now-start > uint64(intervalMs) && now-start <= 2*uint64(intervalMs)
	}) {
		total += ww.Value.Get(event)
	}
	return float64(total) / (float64(intervalMs) / 1000.0)
}

func (n *ResourceNode) MinRT() float64 {
	return n.readView.MinRT()
}

func (n *ResourceNode) AvgRT() float64 {
	return n.readView.AvgRT()
}

func (n *ResourceNode) CurrentConcurrency() int32 {
	return atomic.LoadInt32(&n.concurrency)
}

func (n *ResourceNode) IncreaseConcurrency() {
	cur := atomic.AddInt32(&n.concurrency, 1)
	if bucket, err := n.arr.CurrentBucket(); err == nil {
		bucket.Value.UpdateConcurrency(cur)
	}
}

func (n *ResourceNode) DecreaseConcurrency() {
	for {
		cur := atomic.LoadInt32(&n.concurrency)
		if cur <= 0 {
			return
		}
		if atomic.CompareAndSwapInt32(&n.concurrency, cur, cur-1) {
			return
		}
	}
}

// MetricsOnCondition aggregates this resource's per-second metrics,
// restricted to buckets whose start matches predicate, for the metric log
// aggregator (core/log/metric's per-second aggregation pass).
func (n *ResourceNode) MetricsOnCondition(predicate base.TimePredicate) []*base.MetricItem {
	seconds := n.readView.SecondMetricsWhere(predicate)
	items := make([]*base.MetricItem, 0, len(seconds))
	for _, s := range seconds {
		var avgRt uint64
		if s.Complete > 0 {
			avgRt = uint64(s.Rt) / uint64(s.Complete)
		}
		items = append(items, &base.MetricItem{
			Resource:       n.resourceName,
			Timestamp:      s.TimestampSec,
			PassQps:        uint64(s.Pass),
			BlockQps:       uint64(s.Block),
			CompleteQps:    uint64(s.Complete),
			ErrorQps:       uint64(s.Error),
			AvgRt:          avgRt,
			Concurrency:    uint32(n.CurrentConcurrency()),
			Classification: int32(n.resourceType),
		})
	}
	return items
}
