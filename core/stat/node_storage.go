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
	"sync"

	"github.com/aegisflow/aegis-go/core/base"
	"github.com/aegisflow/aegis-go/core/config"
	"github.com/aegisflow/aegis-go/logging"
)

// InboundNodeName is the sentinel resource name the ResourceNodePrepare
// slot aggregates all Inbound traffic under, regardless of the specific
// resource invoked. Read by the system-adaptive slot (core/system) for
// process-wide QPS/concurrency/AvgRT checks.
const InboundNodeName = "__inbound__"

var (
	nodeMapMu sync.RWMutex
	nodeMap   = make(map[string]*ResourceNode)

	inboundNode     *ResourceNode
	inboundNodeOnce sync.Once
)

// GetResourceNode returns the existing node for resource, or nil.
func GetResourceNode(resource string) *ResourceNode {
	nodeMapMu.RLock()
	defer nodeMapMu.RUnlock()
	return nodeMap[resource]
}

// GetOrCreateResourceNode returns the node for resource, creating it (with
// the configured global leap-array and read-view parameters) on first
// reference. The node, once created, is never freed: it lives for the
// process's lifetime.
func GetOrCreateResourceNode(resource string, resourceType base.ResourceType) *ResourceNode {
	nodeMapMu.RLock()
	n := nodeMap[resource]
	nodeMapMu.RUnlock()
	if n != nil {
		return n
	}

	nodeMapMu.Lock()
	defer nodeMapMu.Unlock()
	if n = nodeMap[resource]; n != nil {
		return n
	}
	n, err := NewResourceNode(resource, resourceType,
		config.GlobalStatisticIntervalMsTotal(), config.GlobalStatisticSampleCountTotal(),
		config.GlobalStatisticIntervalMs(), config.GlobalStatisticSampleCount())
	if err != nil {
		logging.Error(err, "failed to create resource node", "resource", resource)
		return nil
	}
	nodeMap[resource] = n
	return n
}

// ResourceNodeList returns a snapshot of every created resource node,
// excluding the inbound sentinel node (consumed separately by the metric
// aggregator).
func ResourceNodeList() []*ResourceNode {
	nodeMapMu.RLock()
	defer nodeMapMu.RUnlock()
	list := make([]*ResourceNode, 0, len(nodeMap))
	for _, n := range nodeMap {
		if n.resourceName == InboundNodeName {
			continue
		}
		list = append(list, n)
	}
	return list
}

// InboundNode returns the process-wide sentinel node aggregating all
// Inbound traffic, creating it on first reference.
func InboundNode() *ResourceNode {
	inboundNodeOnce.Do(func() {
		inboundNode = GetOrCreateResourceNode(InboundNodeName, base.ResTypeCommon)
	})
	return inboundNode
}

// ResetForTest clears the node registry. Test-only.
func ResetForTest() {
	nodeMapMu.Lock()
	defer nodeMapMu.Unlock()
	nodeMap = make(map[string]*ResourceNode)
	inboundNode = nil
	inboundNodeOnce = sync.Once{}
}
