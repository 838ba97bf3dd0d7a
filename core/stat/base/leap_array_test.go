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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sbase "github.com/aegisflow/aegis-go/core/base"
)

func TestNewLeapArrayRejectsInvalidParameters(t *testing.T) {
	_, err := NewLeapArray(0, 1000)
	assert.Error(t, err)

	_, err = NewLeapArray(2, 0)
	assert.Error(t, err)

	_, err = NewLeapArray(3, 1000)
	assert.Error(t, err, "intervalInMs must be evenly divided by sampleCount")
}

func TestNewLeapArrayComputesBucketLength(t *testing.T) {
	la, err := NewLeapArray(10, 1000)
	require.NoError(t, err)
	assert.Equal(t, uint32(100), la.BucketLengthInMs())
	assert.Equal(t, uint32(10), la.SampleCount())
	assert.Equal(t, uint32(1000), la.IntervalInMs())
}

func TestCurrentBucketReturnsSameBucketWithinSameSlice(t *testing.T) {
	la, err := NewLeapArray(10, 1000)
	require.NoError(t, err)

	b1, err := la.CurrentBucket()
	require.NoError(t, err)
	b1.Value.Add(sbase.MetricEventPass, 1)

	b2, err := la.CurrentBucket()
	require.NoError(t, err)
	assert.Same(t, b1, b2, "two calls within the same bucket slice must return the same bucket")
	assert.Equal(t, int64(1), b2.Value.Get(sbase.MetricEventPass))
}

func TestBucketOfTimeRejectsStaleTimestamp(t *testing.T) {
	la, err := NewLeapArray(2, 1000)
	require.NoError(t, err)

	now := uint64(time.Now().UnixNano() / int64(time.Millisecond))
	// Advance the ring past its full interval so the slot's BucketStart is
	// well ahead of an older timestamp presented afterward.
	_, err = la.BucketOfTime(now + 3000)
	require.NoError(t, err)

	_, err = la.BucketOfTime(now)
	assert.Error(t, err, "a timestamp behind the current bucket's start must be rejected")
}

func TestValuesConditionalExcludesExpiredBuckets(t *testing.T) {
	la, err := NewLeapArray(2, 1000)
	require.NoError(t, err)

	b, err := la.CurrentBucket()
	require.NoError(t, err)
	b.Value.Add(sbase.MetricEventPass, 5)

	now := b.BucketStart
	all := la.ValuesConditional(now, nil)
	assert.NotEmpty(t, all)

	farFuture := now + 10_000
	expired := la.ValuesConditional(farFuture, nil)
	assert.Empty(t, expired, "buckets older than one full interval must be excluded")
}
