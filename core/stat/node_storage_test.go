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
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aegisflow/aegis-go/core/base"
)

func TestGetResourceNodeReturnsNilForUnknownResource(t *testing.T) {
	defer ResetForTest()
	assert.Nil(t, GetResourceNode("never-created"))
}

func TestGetOrCreateResourceNodeIsStableAcrossCalls(t *testing.T) {
	defer ResetForTest()
	first := GetOrCreateResourceNode("orders", base.ResTypeCommon)
	second := GetOrCreateResourceNode("orders", base.ResTypeCommon)
	assert.Same(t, first, second, "the same resource name must resolve to the same node")
}

func TestResourceNodeListIncludesCreatedNodes(t *testing.T) {
	defer ResetForTest()
	GetOrCreateResourceNode("a", base.ResTypeCommon)
	GetOrCreateResourceNode("b", base.ResTypeCommon)

	names := make(map[string]bool)
	for _, n := range ResourceNodeList() {
		names[n.ResourceName()] = true
	}
	assert.True(t, names["a"])
	assert.True(t, names["b"])
}

func TestInboundNodeIsASingleton(t *testing.T) {
	defer ResetForTest()
	first := InboundNode()
	second := InboundNode()
	assert.Same(t, first, second)
	assert.Equal(t, InboundNodeName, first.ResourceName())
}

func TestResetForTestClearsRegistry(t *testing.T) {
	GetOrCreateResourceNode("transient", base.ResTypeCommon)
	InboundNode()
	ResetForTest()

	assert.Nil(t, GetResourceNode("transient"))
	assert.Empty(t, ResourceNodeList())
}
