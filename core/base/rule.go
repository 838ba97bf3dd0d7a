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

// SentinelRule is the minimal shape every per-strategy rule type
// implements, so the generic parts of rule-manager diffing (see
// core/flow, core/hotspot, core/circuitbreaker rule_manager.go files) can
// operate without knowing the concrete rule type.
type SentinelRule interface {
	// ResourceName is the resource this rule governs.
	ResourceName() string
	// String renders a debug-friendly representation, also used as a cheap
	// identity key for equality comparisons.
	String() string
}
