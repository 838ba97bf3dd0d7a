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
	"sync/atomic"

	sbase "github.com/aegisflow/aegis-go/core/base"
)

// initialMinRt is the sentinel "no requests observed yet" value for
// MinRt, chosen far above any plausible real response time.
const initialMinRt = uint64(1) << 40

// MetricBucket holds one bucket's worth of statistics: a counter per
// MetricEvent, the minimum observed response time and the maximum observed
// concurrency within the bucket's time slice. All updates are lock-free
// atomics.
type MetricBucket struct {
	counters       [metricEventTotal]int64
	minRt          uint64
	maxConcurrency int32
}

// metricEventTotal mirrors core/base.MetricEvent's count without importing
// the unexported sentinel, since Go has no way to ask an external package
// for the size of its enum. Kept in lockstep with core/base/constants.go
// by hand; no test checks the two counts against each other.
const metricEventTotal = 5

func NewMetricBucket() *MetricBucket {
	return &MetricBucket{minRt: initialMinRt}
}

func (mb *MetricBucket) Add(event sbase.MetricEvent, count int64) {
	if event < 0 || int(event) >= len(mb.counters) {
		return
	}
	atomic.AddInt64(&mb.counters[event], count)
}

func (mb *MetricBucket) Get(event sbase.MetricEvent) int64 {
	if event < 0 || int(event) >= len(mb.counters) {
		return 0
	}
	return atomic.LoadInt64(&mb.counters[event])
}

// AddRt records one response-time observation: it both accumulates into
// the Rt event counter (for averaging) and monotonically lowers MinRt.
func (mb *MetricBucket) AddRt(rt uint64) {
	mb.Add(sbase.MetricEventRt, int64(rt))
	for {
		cur := atomic.LoadUint64(&mb.minRt)
		if rt >= cur {
			return
		}
		if atomic.CompareAndSwapUint64(&mb.minRt, cur, rt) {
			return
		}
	}
}

func (mb *MetricBucket) MinRt() uint64 {
	v := atomic.LoadUint64(&mb.minRt)
	if v == initialMinRt {
		return 0
	}
	return v
}

// UpdateConcurrency monotonically raises MaxConcurrency for this bucket.
func (mb *MetricBucket) UpdateConcurrency(v int32) {
	for {
		cur := atomic.LoadInt32(&mb.maxConcurrency)
		if v <= cur {
			return
		}
		if atomic.CompareAndSwapInt32(&mb.maxConcurrency, cur, v) {
			return
		}
	}
}

func (mb *MetricBucket) MaxConcurrency() int32 {
	return atomic.LoadInt32(&mb.maxConcurrency)
}

// Reset zeroes every counter and restores MinRt's sentinel value. Called
// only from the single try-lock holder resetting a stale leap-array slot.
func (mb *MetricBucket) Reset() *MetricBucket {
	for i := range mb.counters {
		atomic.StoreInt64(&mb.counters[i], 0)
	}
	atomic.StoreUint64(&mb.minRt, initialMinRt)
	atomic.StoreInt32(&mb.maxConcurrency, 0)
	return mb
}
