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

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounterAddAccumulatesPerLabelSet(t *testing.T) {
	c := NewCounter("test_counter_total", "a counter used only by this test", []string{"resource", "result"})
	Register(c)

	c.Add(2, "svc", "pass")
	c.Add(3, "svc", "pass")
	c.Add(1, "svc", "block")

	assert.InDelta(t, 5.0, testutil.ToFloat64(c.vec.WithLabelValues("svc", "pass")), 0.001)
	assert.InDelta(t, 1.0, testutil.ToFloat64(c.vec.WithLabelValues("svc", "block")), 0.001)
}

func TestCounterAddIgnoresNonPositiveDelta(t *testing.T) {
	c := NewCounter("test_counter_nonpositive_total", "a counter used only by this test", []string{"label"})
	Register(c)

	c.Add(0, "x")
	c.Add(-5, "x")

	assert.InDelta(t, 0.0, testutil.ToFloat64(c.vec.WithLabelValues("x")), 0.001)
}

func TestGaugeSetOverwritesValue(t *testing.T) {
	g := NewGauge("test_gauge", "a gauge used only by this test", []string{"kind"})
	Register(g)

	g.Set(10, "cpu")
	g.Set(7, "cpu")

	assert.InDelta(t, 7.0, testutil.ToFloat64(g.vec.WithLabelValues("cpu")), 0.001)
}

func TestRegisterIsSafeToCallTwiceWithDifferentInstances(t *testing.T) {
	c1 := NewCounter("test_counter_dup_total", "first instance", []string{"l"})
	c2 := NewCounter("test_counter_dup_total", "second instance, same name", []string{"l"})

	require.NotPanics(t, func() {
		Register(c1)
		Register(c2)
	})
}
