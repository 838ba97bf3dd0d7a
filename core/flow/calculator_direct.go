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

import "github.com/aegisflow/aegis-go/core/base"

// DirectCalculator always returns the rule's fixed threshold.
type DirectCalculator struct {
	rule *Rule
}

func NewDirectCalculator(rule *Rule) *DirectCalculator {
	return &DirectCalculator{rule: rule}
}

func (c *DirectCalculator) CalculateAllowedTokens(_ base.StatNode, _ uint32, _ int32) float64 {
	return c.rule.Threshold
}
