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

package aegis

import (
	"github.com/aegisflow/aegis-go/core/base"
	"github.com/aegisflow/aegis-go/core/circuitbreaker"
	"github.com/aegisflow/aegis-go/core/flow"
	"github.com/aegisflow/aegis-go/core/hotspot"
	"github.com/aegisflow/aegis-go/core/isolation"
	"github.com/aegisflow/aegis-go/core/stat"
	"github.com/aegisflow/aegis-go/core/system"
)

// GlobalSlotChain is the process-wide chain every Entry call without an
// explicit chain override runs through.
var GlobalSlotChain = BuildDefaultSlotChain()

// BuildDefaultSlotChain wires one prepare slot, the five rule-check slots
// in ascending order (system=1000, flow=2000, isolation=3000, hotspot=4000,
// circuitbreaker=5000), and the one stat slot that records pass/block/
// complete against resource nodes.
func BuildDefaultSlotChain() *base.SlotChain {
	sc := base.NewSlotChain()

	sc.AddStatPrepareSlot(stat.DefaultPrepareSlot)

	sc.AddRuleCheckSlot(system.DefaultSlot)
	sc.AddRuleCheckSlot(flow.DefaultSlot)
	sc.AddRuleCheckSlot(isolation.DefaultSlot)
	sc.AddRuleCheckSlot(hotspot.DefaultSlot)
	sc.AddRuleCheckSlot(circuitbreaker.DefaultSlot)

	sc.AddStatSlot(stat.DefaultStatSlot)

	return sc
}
