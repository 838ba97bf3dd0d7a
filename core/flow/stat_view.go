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

package flow

import (
	"sync"

	"github.com/aegisflow/aegis-go/core/base"
	statbase "github.com/aegisflow/aegis-go/core/stat/base"
)

// leapArraySource is implemented by stat.ResourceNode. Checked with a type
// assertion rather than imported directly to avoid flow depending on the
// concrete stat node type for anything but this one optional feature.
type leapArraySource interface {
	LeapArray() *statbase.LeapArray
}

// ruleStatView lazily builds (and caches) a SlidingWindowMetric sized to
// the rule's own StatIntervalInMs, reusing the resource node's default
// read view whenever the rule doesn't override the interval. This is what
// lets a flow rule's stat_interval_ms differ from the resource's default.
type ruleStatView struct {
	rule *Rule
	once sync.Once
	view *statbase.SlidingWindowMetric
}

func (r *ruleStatView) sum(node base.StatNode, event base.MetricEvent) int64 {
	if r.rule.StatIntervalInMs == 0 {
		return node.GetSum(event)
	}
	r.once.Do(func() { r.build(node) })
	if r.view == nil {
		return node.GetSum(event)
	}
	return r.view.Sum(event)
}

func (r *ruleStatView) qps(node base.StatNode, event base.MetricEvent) float64 {
	if r.rule.StatIntervalInMs == 0 {
		return node.GetQPS(event)
	}
	r.once.Do(func() { r.build(node) })
	if r.view == nil {
		return node.GetQPS(event)
	}
	return r.view.QPS(event)
}

func (r *ruleStatView) build(node base.StatNode) {
	src, ok := node.(leapArraySource)
	if !ok {
		return
	}
	// Two sample buckets of the requested interval is a reasonable default
	// granularity; callers only need the aggregate sum/QPS, not per-bucket
	// resolution.
	view, err := statbase.NewSlidingWindowMetric(2, r.rule.StatIntervalInMs, src.LeapArray())
	if err != nil {
		return
	}
	r.view = view
}
