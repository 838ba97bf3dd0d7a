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

package system

import (
	"github.com/aegisflow/aegis-go/core/base"
	"github.com/aegisflow/aegis-go/core/stat"
)

const RuleCheckSlotOrder = 1000

var DefaultSlot = &Slot{}

// Slot is the system-adaptive RuleCheckSlot: it compares process-wide
// signals (inbound QPS/concurrency/AvgRT and the background CPU/load
// samples) against every loaded system rule, applying only to Inbound
// traffic.
type Slot struct{}

func (s *Slot) Order() uint32 { return RuleCheckSlotOrder }

func (s *Slot) Check(ctx *base.EntryContext) *base.TokenResult {
	if ctx.Resource.FlowType() == base.Outbound {
		return ctx.RuleCheckResult
	}

	for _, rule := range rulesForCheck() {
		if pass, msg, snapshot := canPassCheck(rule); !pass {
			return base.NewTokenResultBlocked(base.NewBlockErrorWithSnapshot(base.BlockTypeSystemFlow, msg, rule, snapshot))
		}
	}
	return ctx.RuleCheckResult
}

func canPassCheck(rule *Rule) (bool, string, base.MetricSnapshot) {
	inbound := stat.InboundNode()
	threshold := rule.Threshold

	switch rule.MetricType {
	case MetricInboundQPS:
		qps := inbound.GetQPS(base.MetricEventPass)
		if qps >= threshold {
			return false, "system qps check blocked", base.MetricSnapshot{"qps": qps, "threshold": threshold}
		}
		return true, "", nil
	case MetricConcurrency:
		n := float64(inbound.CurrentConcurrency())
		if n >= threshold {
			return false, "system concurrency check blocked", base.MetricSnapshot{"concurrency": n, "threshold": threshold}
		}
		return true, "", nil
	case MetricAvgRT:
		rt := inbound.AvgRT()
		if rt >= threshold {
			return false, "system avg rt check blocked", base.MetricSnapshot{"avgRt": rt, "threshold": threshold}
		}
		return true, "", nil
	case MetricLoad:
		l := CurrentLoad1()
		if l > threshold && (rule.Strategy != BBR || !checkBBRSimple()) {
			return false, "system load check blocked", base.MetricSnapshot{"load": l, "threshold": threshold}
		}
		return true, "", base.MetricSnapshot{"load": l}
	case MetricCpuUsage:
		c := CurrentCpuUsage()
		if c > threshold && (rule.Strategy != BBR || !checkBBRSimple()) {
			return false, "system cpu usage check blocked", base.MetricSnapshot{"cpuUsage": c, "threshold": threshold}
		}
		return true, "", base.MetricSnapshot{"cpuUsage": c}
	default:
		return true, "", nil
	}
}

// checkBBRSimple implements the admission guard:
// concurrency <= max_complete_per_second * min_rt_ms / 1000, where
// max_complete_per_second is the highest per-second completed count among
// the inbound node's live statistic buckets. Used to prefer dropping over
// queueing only once a system metric has already crossed its own threshold.
func checkBBRSimple() bool {
	inbound := stat.InboundNode()
	concurrency := float64(inbound.CurrentConcurrency())
	minRt := inbound.MinRT()
	var maxComplete float64
	for _, s := range inbound.ReadView().SecondMetricsWhere(nil) {
		if c := float64(s.Complete); c > maxComplete {
			maxComplete = c
		}
	}
	return concurrency <= maxComplete*minRt/1000.0
}
