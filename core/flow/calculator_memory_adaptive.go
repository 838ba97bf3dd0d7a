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
	"github.com/aegisflow/aegis-go/core/base"
	"github.com/aegisflow/aegis-go/core/system"
)

// MemoryAdaptiveCalculator adjusts the allowed threshold based on the
// process's current memory usage, interpolating between
// HighMemUsageThreshold (usage at or above MemHighWaterMarkBytes) and
// LowMemUsageThreshold (usage at or below MemLowWaterMarkBytes).
type MemoryAdaptiveCalculator struct {
	rule *Rule
}

func NewMemoryAdaptiveCalculator(rule *Rule) *MemoryAdaptiveCalculator {
	return &MemoryAdaptiveCalculator{rule: rule}
}

func (c *MemoryAdaptiveCalculator) CalculateAllowedTokens(_ base.StatNode, _ uint32, _ int32) float64 {
	u := system.CurrentProcessMemoryBytes()
	r := c.rule

	if u <= r.MemLowWaterMarkBytes {
		return r.LowMemUsageThreshold
	}
	if u >= r.MemHighWaterMarkBytes {
		return r.HighMemUsageThreshold
	}
	span := float64(r.MemHighWaterMarkBytes - r.MemLowWaterMarkBytes)
	progress := float64(u-r.MemLowWaterMarkBytes) / span
	return r.LowMemUsageThreshold - progress*(r.LowMemUsageThreshold-r.HighMemUsageThreshold)
}
