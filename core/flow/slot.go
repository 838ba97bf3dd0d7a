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
	"github.com/pkg/errors"

	"github.com/aegisflow/aegis-go/core/base"
	"github.com/aegisflow/aegis-go/core/stat"
	metricexporter "github.com/aegisflow/aegis-go/exporter/metric"
	"github.com/aegisflow/aegis-go/logging"
	"github.com/aegisflow/aegis-go/util"
)

const RuleCheckSlotOrder = 2000

var (
	DefaultSlot = &Slot{}

	flowWaitCount = metricexporter.NewCounter(
		"flow_wait_total",
		"Flow control queueing wait count",
		[]string{"resource"})
)

func init() {
	metricexporter.Register(flowWaitCount)
}

// Slot is the flow-control RuleCheckSlot, evaluating every flow rule bound
// to the entered resource in order and returning the first Blocked verdict.
// A queueing delay that a Throttling checker reports is slept out in place
// and the check moves on; otherwise the context's current result is returned.
type Slot struct{}

func (s *Slot) Order() uint32 { return RuleCheckSlotOrder }

func (s *Slot) Check(ctx *base.EntryContext) *base.TokenResult {
	res := ctx.Resource.Name()
	tcs := ControllersFor(res)
	result := ctx.RuleCheckResult

	for _, tc := range tcs {
		if tc == nil {
			logging.Warn("[FlowSlot Check] nil traffic controller found", "resourceName", res)
			continue
		}
		r := checkInLocal(tc, ctx.StatNode, ctx.Input.BatchCount, ctx.Input.Flag)
		if r == nil {
			continue
		}
		switch r.Status() {
		case base.ResultStatusBlocked:
			return r
		case base.ResultStatusShouldWait:
			if nanosToWait := r.NanosToWait(); nanosToWait > 0 {
				flowWaitCount.Add(float64(ctx.Input.BatchCount), res)
				util.Sleep(nanosToWait)
			}
		}
	}
	return result
}

func selectNodeByRelStrategy(rule *Rule, node base.StatNode) base.StatNode {
	if rule.RelationStrategy == AssociatedResource {
		return stat.GetResourceNode(rule.RefResource)
	}
	return node
}

func checkInLocal(tc *TrafficShapingController, resStat base.StatNode, batchCount uint32, flag int32) *base.TokenResult {
	actual := selectNodeByRelStrategy(tc.Rule(), resStat)
	if actual == nil {
		logging.FrequentErrorOnce.Do(func() {
			logging.Error(errors.New("nil resource node"), "no resource node for flow rule in flow.Slot.checkInLocal", "rule", tc.Rule().String())
		})
		return base.NewTokenResultPass()
	}
	return tc.PerformChecking(actual, batchCount, flag)
}
