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

// TrafficType describes whether traffic is entering (Inbound) or leaving
// (Outbound) the process through a given resource.
type TrafficType int32

const (
	Inbound TrafficType = iota
	Outbound
)

func (t TrafficType) String() string {
	switch t {
	case Inbound:
		return "Inbound"
	case Outbound:
		return "Outbound"
	default:
		return "Undefined"
	}
}

// ResourceType tags a resource with the kind of call it represents, purely
// informative metadata carried through to metric items and exporters.
type ResourceType int32

const (
	ResTypeCommon ResourceType = iota
	ResTypeWeb
	ResTypeRPC
	ResTypeGRPC
	ResTypeDB
	ResTypeCache
	ResTypeMQ
)

// MetricEvent is one of the five observable outcomes a MetricBucket counts.
type MetricEvent int8

const (
	// MetricEventPass represents a pass count (arrival admitted).
	MetricEventPass MetricEvent = iota
	// MetricEventBlock represents a blocked count (arrival denied).
	MetricEventBlock
	// MetricEventComplete represents a completed invocation count.
	MetricEventComplete
	// MetricEventError represents a business-signaled error count.
	MetricEventError
	// MetricEventRt represents accumulated response time, in milliseconds.
	MetricEventRt

	metricEventTotal
)

// BlockType enumerates why an entry was blocked.
type BlockType int8

const (
	BlockTypeFlow BlockType = iota
	BlockTypeIsolation
	BlockTypeCircuitBreaking
	BlockTypeSystemFlow
	BlockTypeHotSpotParamFlow
	BlockTypeOther
)

var blockTypeNames = map[BlockType]string{
	BlockTypeFlow:             "Flow",
	BlockTypeIsolation:        "Isolation",
	BlockTypeCircuitBreaking:  "CircuitBreaking",
	BlockTypeSystemFlow:       "SystemFlow",
	BlockTypeHotSpotParamFlow: "HotSpotParamFlow",
	BlockTypeOther:            "Other",
}

func (t BlockType) String() string {
	if s, ok := blockTypeNames[t]; ok {
		return s
	}
	return "Undefined"
}

// RegisterBlockType associates a human-readable label with a custom
// BlockType discriminant >= BlockTypeOther, mirroring how custom strategies
// register themselves elsewhere in the rule managers.
func RegisterBlockType(t BlockType, name string) {
	blockTypeNames[t] = name
}
