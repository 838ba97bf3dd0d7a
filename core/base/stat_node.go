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

// TimePredicate filters leap-array buckets by their start timestamp (ms).
type TimePredicate func(startMs uint64) bool

// StatNode is the statistics surface every resource node (and the inbound
// sentinel node) exposes to rule checkers. Implemented by
// core/stat.ResourceNode.
type StatNode interface {
	// AddCount adds count to the given MetricEvent in the current bucket.
	AddCount(event MetricEvent, count int64)
	// GetSum returns the aggregate of event over the default read view.
	GetSum(event MetricEvent) int64
	// GetQPS returns the per-second rate of event over the default read view.
	GetQPS(event MetricEvent) float64
	// GetPreviousQPS is like GetQPS but for the window immediately preceding
	// the current one.
	GetPreviousQPS(event MetricEvent) float64
	// MinRT returns the minimum observed response time, in milliseconds,
	// over the default read view.
	MinRT() float64
	// AvgRT returns sum(Rt)/sum(Complete) over the default read view.
	AvgRT() float64
	// CurrentConcurrency returns the live concurrency counter.
	CurrentConcurrency() int32
	// IncreaseConcurrency increments the concurrency counter by one.
	IncreaseConcurrency()
	// DecreaseConcurrency decrements the concurrency counter by one.
	DecreaseConcurrency()

	MetricItemRetriever
}

// MetricItemRetriever surfaces historical MetricItems for the metric log
// aggregator (core/log/metric.Aggregator).
type MetricItemRetriever interface {
	MetricsOnCondition(predicate TimePredicate) []*MetricItem
}
