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

package hotspot

import (
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// counter caches one u64 value per observed parameter value, bounded by an
// LRU of capacity cap. Structural changes (insertion, eviction) serialize
// on mu; the per-key value itself is a plain atomic so concurrent
// admission checks never contend on it.
type counter struct {
	mu       sync.RWMutex
	cache    *lru.Cache[interface{}, *atomic.Uint64]
	capacity int
}

func newCounter(capacity int) *counter {
	if capacity <= 0 {
		capacity = 1
	}
	c, _ := lru.New[interface{}, *atomic.Uint64](capacity)
	return &counter{cache: c, capacity: capacity}
}

// cap returns the configured LRU capacity.
func (c *counter) cap() int {
	return c.capacity
}

// add stores value for key, creating or overwriting the slot and touching
// its recent-use position.
func (c *counter) add(key interface{}, value uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.cache.Get(key); ok {
		v.Store(value)
		return
	}
	v := &atomic.Uint64{}
	v.Store(value)
	c.cache.Add(key, v)
}

// addIfAbsent inserts value for key if absent and returns (nil, true); if
// key is already present it returns the existing counter and false,
// touching its recent-use position either way.
func (c *counter) addIfAbsent(key interface{}, value uint64) (*atomic.Uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.cache.Get(key); ok {
		return v, false
	}
	v := &atomic.Uint64{}
	v.Store(value)
	c.cache.Add(key, v)
	return nil, true
}

func (c *counter) get(key interface{}) (*atomic.Uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Get(key)
}

func (c *counter) remove(key interface{}) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Remove(key)
}

func (c *counter) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cache.Len()
}

func (c *counter) purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Purge()
}
