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
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/pkg/errors"

	sbase "github.com/aegisflow/aegis-go/core/base"
	"github.com/aegisflow/aegis-go/util"
)

// BucketWrap pairs an atomically-updated start timestamp with a
// *MetricBucket. The scope of time it covers is [BucketStart,
// BucketStart+bucketLengthInMs). Kept as a pointer-to-pointer-swap element
// (not a mutex-guarded struct) so reads never block.
type BucketWrap struct {
	BucketStart uint64
	Value       *MetricBucket
}

func (ww *BucketWrap) isTimeInBucket(now uint64, bucketLengthInMs uint32) bool {
	return ww.BucketStart <= now && now < ww.BucketStart+uint64(bucketLengthInMs)
}

func calculateStartTime(now uint64, bucketLengthInMs uint32) uint64 {
	return now - (now % uint64(bucketLengthInMs))
}

// atomicBucketWrapArray is a fixed-length, thread-safe circular array of
// *BucketWrap. Individual slots are swapped with atomic.CompareAndSwapPointer
// so concurrent readers never observe a torn (start, value) pair.
type atomicBucketWrapArray struct {
	base   unsafe.Pointer
	length int
	data   []*BucketWrap
}

func newAtomicBucketWrapArrayWithTime(length int, bucketLengthInMs uint32, now uint64) *atomicBucketWrapArray {
	ret := &atomicBucketWrapArray{
		length: length,
		data:   make([]*BucketWrap, length),
	}
	idx := int((now / uint64(bucketLengthInMs)) % uint64(length))
	startTime := calculateStartTime(now, bucketLengthInMs)

	fill := func(i int) {
		ret.data[i] = &BucketWrap{BucketStart: startTime, Value: NewMetricBucket()}
		startTime += uint64(bucketLengthInMs)
	}
	for i := idx; i <= length-1; i++ {
		fill(i)
	}
	for i := 0; i < idx; i++ {
		fill(i)
	}

	sliHeader := (*util.SliceHeader)(unsafe.Pointer(&ret.data))
	ret.base = unsafe.Pointer((**BucketWrap)(unsafe.Pointer(sliHeader.Data)))
	return ret
}

func (aa *atomicBucketWrapArray) elementOffset(idx int) (unsafe.Pointer, bool) {
	if idx < 0 || idx >= aa.length {
		return nil, false
	}
	return unsafe.Pointer(uintptr(aa.base) + uintptr(idx)*unsafe.Sizeof(aa.base)), true
}

func (aa *atomicBucketWrapArray) get(idx int) *BucketWrap {
	if offset, ok := aa.elementOffset(idx); ok {
		return (*BucketWrap)(atomic.LoadPointer((*unsafe.Pointer)(offset)))
	}
	return nil
}

func (aa *atomicBucketWrapArray) compareAndSet(idx int, old, newW *BucketWrap) bool {
	if offset, ok := aa.elementOffset(idx); ok {
		return atomic.CompareAndSwapPointer((*unsafe.Pointer)(offset), unsafe.Pointer(old), unsafe.Pointer(newW))
	}
	return false
}

// LeapArray is the ring-of-buckets sliding window: sampleCount buckets
// spanning intervalInMs, with bucketLengthInMs = intervalInMs / sampleCount.
//
//	 B0       B1      B2     B3      B4
//	 |_______|_______|_______|_______|_______|
//	1000    1200    400     600     800    (1000) ms
//	       ^
//	    time=1188
type LeapArray struct {
	bucketLengthInMs uint32
	sampleCount      uint32
	intervalInMs     uint32
	array            *atomicBucketWrapArray
	updateLock       sync.Mutex
}

func NewLeapArray(sampleCount uint32, intervalInMs uint32) (*LeapArray, error) {
	if sampleCount == 0 || intervalInMs == 0 || intervalInMs%sampleCount != 0 {
		return nil, errors.Errorf("invalid leap array parameters: intervalInMs=%d, sampleCount=%d", intervalInMs, sampleCount)
	}
	bucketLengthInMs := intervalInMs / sampleCount
	return &LeapArray{
		bucketLengthInMs: bucketLengthInMs,
		sampleCount:      sampleCount,
		intervalInMs:     intervalInMs,
		array:            newAtomicBucketWrapArrayWithTime(int(sampleCount), bucketLengthInMs, util.CurrentTimeMillis()),
	}, nil
}

func (la *LeapArray) BucketLengthInMs() uint32 { return la.bucketLengthInMs }
func (la *LeapArray) SampleCount() uint32      { return la.sampleCount }
func (la *LeapArray) IntervalInMs() uint32     { return la.intervalInMs }

// CurrentBucket returns the bucket covering the current instant, claiming
// or resetting the backing ring slot as needed.
func (la *LeapArray) CurrentBucket() (*BucketWrap, error) {
	return la.bucketOfTime(util.CurrentTimeMillis())
}

// BucketOfTime is the same lookup as CurrentBucket, parameterized by a
// caller-supplied timestamp; used by tests and by callers that want to
// pin "now" across several related reads.
func (la *LeapArray) BucketOfTime(now uint64) (*BucketWrap, error) {
	return la.bucketOfTime(now)
}

func (la *LeapArray) calculateTimeIdx(now uint64) int {
	timeID := now / uint64(la.bucketLengthInMs)
	return int(timeID) % la.array.length
}

// bucketOfTime implements the claim/reuse/reset/stale contract for a
// bucket slot. On contention for a stale slot's reset, the caller yields
// (runtime.Gosched) and retries rather than blocking.
func (la *LeapArray) bucketOfTime(now uint64) (*BucketWrap, error) {
	idx := la.calculateTimeIdx(now)
	bucketStart := calculateStartTime(now, la.bucketLengthInMs)

	for {
		old := la.array.get(idx)
		if old == nil {
			newWrap := &BucketWrap{BucketStart: bucketStart, Value: NewMetricBucket()}
			if la.array.compareAndSet(idx, nil, newWrap) {
				return newWrap, nil
			}
			runtime.Gosched()
			continue
		}
		switch {
		case bucketStart == atomic.LoadUint64(&old.BucketStart):
			return old, nil
		case bucketStart > atomic.LoadUint64(&old.BucketStart):
			if la.updateLock.TryLock() {
				old.Value.Reset()
				atomic.StoreUint64(&old.BucketStart, bucketStart)
				la.updateLock.Unlock()
				return old, nil
			}
			runtime.Gosched()
		default: // bucketStart < old.BucketStart
			if la.sampleCount == 1 {
				return old, nil
			}
			return nil, errors.Errorf("stale time: provided time %d is behind bucket start %d", bucketStart, old.BucketStart)
		}
	}
}

// Values returns all buckets whose start lies in [now-intervalInMs, now].
func (la *LeapArray) Values() []*BucketWrap {
	return la.ValuesConditional(util.CurrentTimeMillis(), nil)
}

// ValuesConditional returns all non-expired buckets matching predicate (or
// all non-expired buckets if predicate is nil).
func (la *LeapArray) ValuesConditional(now uint64, predicate sbase.TimePredicate) []*BucketWrap {
	ret := make([]*BucketWrap, 0, la.array.length)
	for i := 0; i < la.array.length; i++ {
		ww := la.array.get(i)
		if ww == nil || la.isBucketDeprecated(now, ww) {
			continue
		}
		if predicate != nil && !predicate(atomic.LoadUint64(&ww.BucketStart)) {
			continue
		}
		ret = append(ret, ww)
	}
	return ret
}

func (la *LeapArray) isBucketDeprecated(now uint64, ww *BucketWrap) bool {
	ws := atomic.LoadUint64(&ww.BucketStart)
	return now-ws > uint64(la.intervalInMs)
}
