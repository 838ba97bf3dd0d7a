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
	"sync"

	"github.com/aegisflow/aegis-go/util"
)

// bucket holds one sliding-window time slot's counts. windowStartMs pins
// the bucket to the time window it currently represents; a request landing
// in a stale bucket resets it before recording.
type bucket struct {
	windowStartMs int64
	total         uint64
	errorCount    uint64
	slowCount     uint64
}

// counterLeapArray is the circuit breaker's own sliding-window counter,
// independent of the general-purpose leap array flow/system share: it
// only ever needs total/error/slow counts, never percentile or QPS views.
type counterLeapArray struct {
	mu          sync.Mutex
	bucketLenMs int64
	bucketCount int
	buckets     []bucket
}

func newCounterLeapArray(intervalMs uint32, bucketCount uint32) *counterLeapArray {
	if bucketCount == 0 {
		bucketCount = 1
	}
	return &counterLeapArray{
		bucketLenMs: int64(intervalMs) / int64(bucketCount),
		bucketCount: int(bucketCount),
		buckets:     make([]bucket, bucketCount),
	}
}

func (c *counterLeapArray) currentBucket(now int64) *bucket {
	idx := (now / c.bucketLenMs) % int64(c.bucketCount)
	windowStart := now - now%c.bucketLenMs
	b := &c.buckets[idx]
	if b.windowStartMs != windowStart {
		b.windowStartMs = windowStart
		b.total = 0
		b.errorCount = 0
		b.slowCount = 0
	}
	return b
}

// addRequest records one completed request: isError whether it counts
// against ErrorRatio/ErrorCount, isSlow whether it counts against
// SlowRequestRatio.
func (c *counterLeapArray) addRequest(isError, isSlow bool) {
	now := int64(util.CurrentTimeMillis())
	c.mu.Lock()
	defer c.mu.Unlock()
	b := c.currentBucket(now)
	b.total++
	if isError {
		b.errorCount++
	}
	if isSlow {
		b.slowCount++
	}
}

// totals sums every live bucket (stale ones are treated as empty without
// being reset, since reset only happens lazily on write).
func (c *counterLeapArray) totals() (total, errorCount, slowCount uint64) {
	now := int64(util.CurrentTimeMillis())
	validSpan := int64(c.bucketCount) * c.bucketLenMs

	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.buckets {
		b := &c.buckets[i]
		if now-b.windowStartMs >= validSpan || b.windowStartMs == 0 && b.total == 0 {
			continue
		}
		total += b.total
		errorCount += b.errorCount
		slowCount += b.slowCount
	}
	return
}

func (c *counterLeapArray) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.buckets {
		c.buckets[i] = bucket{}
	}
}
