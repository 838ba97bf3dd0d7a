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

package stat

import (
	"github.com/aegisflow/aegis-go/core/base"
	metricexporter "github.com/aegisflow/aegis-go/exporter/metric"
	"github.com/aegisflow/aegis-go/util"
)

const (
	// PrepareSlotOrder is the ResourceNodePrepare slot's order (1000).
	PrepareSlotOrder = 1000
	// StatSlotOrder runs stats after every rule check, also at 1000 by
	// convention - what matters is that it is the last bucket, not this
	// specific number (stat slots are ordered only among themselves).
	StatSlotOrder = 1000

	resultPass  = "pass"
	resultBlock = "block"
)

var (
	DefaultPrepareSlot = &ResourceNodePrepareSlot{}
	DefaultStatSlot    = &Slot{}

	handledCounter = metricexporter.NewCounter(
		"handled_total",
		"Total handled count",
		[]string{"resource", "result", "block_type"})
)

func init() {
	metricexporter.Register(handledCounter)
}

// ResourceNodePrepareSlot materializes (or fetches) the ResourceNode for
// the entry's resource before any rule check runs, and - for Inbound
// traffic - also makes sure the process-wide inbound sentinel node exists.
type ResourceNodePrepareSlot struct{}

func (s *ResourceNodePrepareSlot) Order() uint32 { return PrepareSlotOrder }

func (s *ResourceNodePrepareSlot) Prepare(ctx *base.EntryContext) {
	node := GetOrCreateResourceNode(ctx.Resource.Name(), ctx.Resource.Classification())
	ctx.StatNode = node
	if ctx.Resource.FlowType() == base.Inbound {
		// Touch the inbound node so its ResourceNode exists even before
		// the first pass/block is recorded against it.
		InboundNode()
	}
}

// Slot is the stat bucket of the pipeline: it records Pass/Block at
// admission time and Complete/Error/Rt at exit time, against both the
// resource's own node and (for Inbound traffic) the inbound sentinel node.
type Slot struct{}

func (s *Slot) Order() uint32 { return StatSlotOrder }

func (s *Slot) OnEntryPassed(ctx *base.EntryContext) {
	s.recordPassFor(ctx.StatNode, ctx.Input.BatchCount)
	if ctx.Resource.FlowType() == base.Inbound {
		s.recordPassFor(InboundNode(), ctx.Input.BatchCount)
	}
	handledCounter.Add(float64(ctx.Input.BatchCount), ctx.Resource.Name(), resultPass, "")
}

func (s *Slot) OnEntryBlocked(ctx *base.EntryContext, blockError *base.BlockError) {
	s.recordBlockFor(ctx.StatNode, ctx.Input.BatchCount)
	if ctx.Resource.FlowType() == base.Inbound {
		s.recordBlockFor(InboundNode(), ctx.Input.BatchCount)
	}
	blockType := ""
	if blockError != nil {
		blockType = blockError.BlockType().String()
	}
	handledCounter.Add(float64(ctx.Input.BatchCount), ctx.Resource.Name(), resultBlock, blockType)
}

func (s *Slot) OnCompleted(ctx *base.EntryContext) {
	rt := util.CurrentTimeMillis() - ctx.StartTime()
	ctx.PutRt(rt)
	s.recordCompleteFor(ctx.StatNode, ctx.Input.BatchCount, rt, ctx.Err())
	if ctx.Resource.FlowType() == base.Inbound {
		s.recordCompleteFor(InboundNode(), ctx.Input.BatchCount, rt, ctx.Err())
	}
}

func (s *Slot) recordPassFor(sn base.StatNode, count uint32) {
	if sn == nil {
		return
	}
	sn.IncreaseConcurrency()
	sn.AddCount(base.MetricEventPass, int64(count))
}

func (s *Slot) recordBlockFor(sn base.StatNode, count uint32) {
	if sn == nil {
		return
	}
	sn.AddCount(base.MetricEventBlock, int64(count))
}

func (s *Slot) recordCompleteFor(sn base.StatNode, count uint32, rt uint64, err error) {
	if sn == nil {
		return
	}
	if err != nil {
		sn.AddCount(base.MetricEventError, int64(count))
	}
	sn.AddCount(base.MetricEventRt, int64(rt))
	sn.AddCount(base.MetricEventComplete, int64(count))
	sn.DecreaseConcurrency()
}
