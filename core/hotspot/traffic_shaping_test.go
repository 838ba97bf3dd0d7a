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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aegisflow/aegis-go/core/base"
)

func contextWithInput(args []interface{}, attachments map[interface{}]interface{}) *base.EntryContext {
	ctx := base.NewEmptyEntryContext()
	ctx.Input = &base.SentinelInput{
		BatchCount:  1,
		Args:        args,
		Attachments: attachments,
	}
	return ctx
}

func TestExtractArgPositional(t *testing.T) {
	c := NewController(&Rule{Resource: "abc", ParamIndex: 1})
	ctx := contextWithInput([]interface{}{"uid-1", "uid-2", "uid-3"}, nil)

	v, ok := c.ExtractArg(ctx)
	require.True(t, ok)
	assert.Equal(t, "uid-2", v)
}

func TestExtractArgNegativeIndex(t *testing.T) {
	c := NewController(&Rule{Resource: "abc", ParamIndex: -1})
	ctx := contextWithInput([]interface{}{"a", "b", "c"}, nil)

	v, ok := c.ExtractArg(ctx)
	require.True(t, ok)
	assert.Equal(t, "c", v)
}

func TestExtractArgOutOfRange(t *testing.T) {
	c := NewController(&Rule{Resource: "abc", ParamIndex: 5})
	ctx := contextWithInput([]interface{}{"a"}, nil)

	_, ok := c.ExtractArg(ctx)
	assert.False(t, ok)
}

func TestExtractArgKeyTakesPriorityOverIndex(t *testing.T) {
	c := NewController(&Rule{Resource: "abc", ParamIndex: 0, ParamKey: "uid"})
	ctx := contextWithInput([]interface{}{"positional-value"}, map[interface{}]interface{}{"uid": "attachment-value"})

	v, ok := c.ExtractArg(ctx)
	require.True(t, ok)
	assert.Equal(t, "attachment-value", v)
}

func TestExtractArgKeyMissingFallsBackNowhereWithoutIndex(t *testing.T) {
	c := NewController(&Rule{Resource: "abc", ParamKey: "missing"})
	ctx := contextWithInput(nil, map[interface{}]interface{}{"other": "v"})

	_, ok := c.ExtractArg(ctx)
	assert.False(t, ok)
}

func TestConcurrencyCheckingFirstSightCountsAsOne(t *testing.T) {
	c := NewController(&Rule{Resource: "abc", MetricType: Concurrency, Threshold: 1})

	result := c.PerformChecking("v1", 1)
	assert.True(t, result.IsPass())

	// A second concurrent call for the same value pushes concurrency to 2,
	// past the threshold of 1.
	result = c.PerformChecking("v1", 1)
	assert.True(t, result.IsBlocked())
}

func TestConcurrencyReleaseAllowsReentry(t *testing.T) {
	c := NewController(&Rule{Resource: "abc", MetricType: Concurrency, Threshold: 1})

	result := c.PerformChecking("v1", 1)
	require.True(t, result.IsPass())

	c.ReleaseConcurrency("v1")

	result = c.PerformChecking("v1", 1)
	assert.True(t, result.IsPass(), "after releasing the only in-flight slot, a new entry should be admitted")
}

func TestConcurrencySpecificItemOverridesThreshold(t *testing.T) {
	c := NewController(&Rule{
		Resource:      "abc",
		MetricType:    Concurrency,
		Threshold:     1,
		SpecificItems: map[interface{}]uint64{"vip": 5},
	})

	for i := 0; i < 5; i++ {
		result := c.PerformChecking("vip", 1)
		assert.True(t, result.IsPass(), "vip value has its own higher threshold")
	}
	result := c.PerformChecking("vip", 1)
	assert.True(t, result.IsBlocked(), "sixth concurrent vip call should exceed its override threshold of 5")
}
