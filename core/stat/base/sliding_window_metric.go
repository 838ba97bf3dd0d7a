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

package base

import (
	"github.com/pkg/errors"

	sbase "github.com/aegisflow/aegis-go/core/base"
	"github.com/aegisflow/aegis-go/util"
)

// SlidingWindowMetric is a read-only aggregation over a sub-interval of a
// parent LeapArray. Its own (sampleCount, intervalInMs) must divide evenly
// into the parent's.
type SlidingWindowMetric struct {
	sampleCount  uint32
	intervalInMs uint32
	bucketLenMs  uint32
	parent       *LeapArray
}

func NewSlidingWindowMetric(sampleCount uint32, intervalInMs uint32, parent *LeapArray) (*SlidingWindowMetric, error) {
	if parent == nil {
		return nil, errors.New("nil parent leap array")
	}
	if sampleCount == 0 || intervalInMs == 0 || intervalInMs%sampleCount != 0 {
		return nil, errors.Errorf("invalid view parameters: intervalInMs=%d, sampleCount=%d", intervalInMs, sampleCount)
	}
	bucketLenMs := intervalInMs / sampleCount
	if intervalInMs > parent.IntervalInMs() || parent.IntervalInMs()%intervalInMs != 0 {
		return nil, errors.Errorf("view intervalInMs %d must divide parent intervalInMs %d", intervalInMs, parent.IntervalInMs())
	}
	if bucketLenMs%parent.BucketLengthInMs() != 0 {
		return nil, errors.Errorf("parent bucket length %d must divide view bucket length %d", parent.BucketLengthInMs(), bucketLenMs)
	}
	return &SlidingWindowMetric{
		sampleCount:  sampleCount,
		intervalInMs: intervalInMs,
		bucketLenMs:  bucketLenMs,
		parent:       parent,
	}, nil
}

func (m *SlidingWindowMetric) IntervalMs() uint32 { return m.intervalInMs }
func (m *SlidingWindowMetric) SampleCount() uint32 { return m.sampleCount }

func (m *SlidingWindowMetric) valuesInRange(now uint64) []*BucketWrap {
	return m.parent.ValuesConditional(now, func(startMs uint64) bool {
		return now-startMs <= uint64(m.intervalInMs)
	})
}

// Sum aggregates event over the view's window, as of now.
func (m *SlidingWindowMetric) Sum(event sbase.MetricEvent) int64 {
	return m.sumAt(event, util.CurrentTimeMillis())
}

func (m *SlidingWindowMetric) sumAt(event sbase.MetricEvent, now uint64) int64 {
	var total int64
	for _, ww := range m.valuesInRange(now) {
		total += ww.Value.Get(event)
	}
	return total
}

// QPS returns Sum(event) normalized by the view's interval (in seconds).
func (m *SlidingWindowMetric) QPS(event sbase.MetricEvent) float64 {
	return float64(m.Sum(event)) / (float64(m.intervalInMs) / 1000.0)
}

// AvgRT returns sum(Rt)/sum(Complete), or 0 if no completions were observed.
func (m *SlidingWindowMetric) AvgRT() float64 {
	now := util.CurrentTimeMillis()
	completed := m.sumAt(sbase.MetricEventComplete, now)
	if completed == 0 {
		return 0
	}
	return float64(m.sumAt(sbase.MetricEventRt, now)) / float64(completed)
}

// MinRT returns the minimum observed response time across all valid
// buckets in the window, or 0 if none were observed.
func (m *SlidingWindowMetric) MinRT() float64 {
	var min uint64
	found := false
	for _, ww := range m.valuesInRange(util.CurrentTimeMillis()) {
		rt := ww.Value.MinRt()
		if rt == 0 {
			continue
		}
		if !found || rt < min {
			min = rt
			found = true
		}
	}
	if !found {
		return 0
	}
	return float64(min)
}

// MaxConcurrencyOfSingleBucket returns the highest per-bucket concurrency
// watermark across the window (not a sum - concurrency is a gauge).
func (m *SlidingWindowMetric) MaxConcurrencyOfSingleBucket() int32 {
	var max int32
	for _, ww := range m.valuesInRange(util.CurrentTimeMillis()) {
		if c := ww.Value.MaxConcurrency(); c > max {
			max = c
		}
	}
	return max
}

// SecondMetric holds one second's event sums. SecondMetricsWhere groups
// buckets by floor-to-second start time and sums each event within a
// second, restricted to buckets matching predicate.
type SecondMetric struct {
	TimestampSec uint64
	Pass         int64
	Block        int64
	Complete     int64
	Error        int64
	Rt           int64
}

func (m *SlidingWindowMetric) SecondMetricsWhere(predicate sbase.TimePredicate) []*SecondMetric {
	now := util.CurrentTimeMillis()
	buckets := m.parent.ValuesConditional(now, predicate)
	bySecond := make(map[uint64]*SecondMetric)
	for _, ww := range buckets {
		sec := ww.BucketStart - ww.BucketStart%1000
		sm, ok := bySecond[sec]
		if !ok {
			sm = &SecondMetric{TimestampSec: sec}
			bySecond[sec] = sm
		}
		sm.Pass += ww.Value.Get(sbase.MetricEventPass)
		sm.Block += ww.Value.Get(sbase.MetricEventBlock)
		sm.Complete += ww.Value.Get(sbase.MetricEventComplete)
		sm.Error += ww.Value.Get(sbase.MetricEventError)
		sm.Rt += ww.Value.Get(sbase.MetricEventRt)
	}
	out := make([]*SecondMetric, 0, len(bySecond))
	for _, v := range bySecond {
		out = append(out, v)
	}
	return out
}
