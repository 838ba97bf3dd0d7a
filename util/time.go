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

package util

import (
	"sync/atomic"
	"time"
)

var (
	useCacheTime  int32
	cachedTimeMs  uint64
	cacheStopChan = make(chan struct{})
	cacheStarted  int32
)

// UseCacheTime switches curr time retrieval between a background-sampled cache
// (low overhead, millisecond-granularity drift) and a direct clock read on
// every call.
func UseCacheTime(enabled bool) {
	if enabled {
		atomic.StoreInt32(&useCacheTime, 1)
		startTimeCacheOnce()
	} else {
		atomic.StoreInt32(&useCacheTime, 0)
	}
}

func startTimeCacheOnce() {
	if !atomic.CompareAndSwapInt32(&cacheStarted, 0, 1) {
		return
	}
	atomic.StoreUint64(&cachedTimeMs, uint64(time.Now().UnixNano())/uint64(time.Millisecond))
	go RunWithRecover(func() {
		ticker := time.NewTicker(time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				atomic.StoreUint64(&cachedTimeMs, uint64(time.Now().UnixNano())/uint64(time.Millisecond))
			case <-cacheStopChan:
				return
			}
		}
	})
}

// CurrentTimeMillis returns the current Unix time in milliseconds, either
// from a background-sampled cache or a direct clock read depending on
// UseCacheTime.
func CurrentTimeMillis() uint64 {
	if atomic.LoadInt32(&useCacheTime) == 1 {
		return atomic.LoadUint64(&cachedTimeMs)
	}
	return uint64(time.Now().UnixNano()) / uint64(time.Millisecond)
}

// CurrentTimeNano returns the current Unix time in nanoseconds. Always a
// direct clock read: nanosecond precision is required by the throttling
// checker's spacing math and the cache only samples at millisecond
// resolution.
func CurrentTimeNano() uint64 {
	return uint64(time.Now().UnixNano())
}

// Sleep blocks the calling goroutine for the given number of nanoseconds.
// Suspending on a ShouldWait result is the caller's responsibility; this
// helper is what callers that choose to honour the wait invoke.
func Sleep(nanos int64) {
	if nanos <= 0 {
		return
	}
	time.Sleep(time.Duration(nanos))
}

// Ticker is a thin wrapper over time.Ticker so callers can substitute a fake
// in tests without depending on the stdlib type directly.
type Ticker struct {
	t *time.Ticker
}

func NewTicker(d time.Duration) *Ticker {
	return &Ticker{t: time.NewTicker(d)}
}

func (tk *Ticker) C() <-chan time.Time {
	return tk.t.C
}

func (tk *Ticker) Stop() {
	tk.t.Stop()
}
