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

// Package metric provides the internal instrumentation hooks core slots
// register counters and gauges against. It is a thin wrapper over
// prometheus/client_golang: the core slot chain always records through
// these hooks (see core/flow/slot.go's flowWaitCount, core/stat/stat_slot.go's
// handledCounter), independent of whether the host process actually scrapes
// or ships the resulting registry anywhere. Shipping metrics externally
// (a Prometheus pushgateway, an OpenTelemetry collector, …) is out of
// scope for this package; it only owns the in-process registration point.
package metric

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/aegisflow/aegis-go/logging"
)

// Registry is the process-wide registry all core counters/gauges register
// into. Exposed so a host application can mount it behind an HTTP handler
// if it chooses to (an external-exporter concern, left to the caller).
var Registry = prometheus.NewRegistry()

// Counter is a label-partitioned monotonic counter.
type Counter struct {
	vec *prometheus.CounterVec
}

func NewCounter(name, help string, labelNames []string) *Counter {
	return &Counter{
		vec: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: name,
			Help: help,
		}, labelNames),
	}
}

func (c *Counter) Add(delta float64, labelValues ...string) {
	if delta <= 0 {
		return
	}
	c.vec.WithLabelValues(labelValues...).Add(delta)
}

// Gauge is a label-partitioned point-in-time value.
type Gauge struct {
	vec *prometheus.GaugeVec
}

func NewGauge(name, help string, labelNames []string) *Gauge {
	return &Gauge{
		vec: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: name,
			Help: help,
		}, labelNames),
	}
}

func (g *Gauge) Set(value float64, labelValues ...string) {
	g.vec.WithLabelValues(labelValues...).Set(value)
}

// Register adds a counter or gauge created above to Registry. Registration
// failures (duplicate metric names) are logged, not panicked, since a
// re-registration can legitimately happen in tests that re-import packages.
func Register(collector interface{ collector() prometheus.Collector }) {
	if err := Registry.Register(collector.collector()); err != nil {
		logging.Warn("failed to register metric collector", "error", err)
	}
}

func (c *Counter) collector() prometheus.Collector { return c.vec }
func (g *Gauge) collector() prometheus.Collector    { return g.vec }
