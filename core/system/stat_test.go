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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStoreAndLoadFloat(t *testing.T) {
	var addr uint64
	storeFloat(&addr, 0.42)
	assert.InDelta(t, 0.42, loadFloat(&addr), 1e-9)
}

func TestSampleCpuAndLoadUpdateCurrentValues(t *testing.T) {
	sampleCpu()
	assert.GreaterOrEqual(t, CurrentCpuUsage(), 0.0)

	sampleLoad()
	assert.GreaterOrEqual(t, CurrentLoad1(), 0.0)
}

func TestSampleMemoryUpdatesCurrentValue(t *testing.T) {
	sampleMemory()
	assert.Greater(t, CurrentProcessMemoryBytes(), uint64(0), "the running test process should report a non-zero RSS")
}

func TestInitSamplersIsIdempotent(t *testing.T) {
	InitSamplers(0, 0, 0)
	defer StopSamplers()
	// A second call while samplers are already marked started must not
	// panic or double-start background goroutines.
	InitSamplers(0, 0, 0)
}
