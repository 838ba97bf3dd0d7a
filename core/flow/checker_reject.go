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
)

// RejectChecker admits the call iff current Pass count (over the read
// view) plus this batch does not exceed the calculated threshold.
type RejectChecker struct {
	rule *Rule
	view *ruleStatView
}

func NewRejectChecker(rule *Rule) *RejectChecker {
	return &RejectChecker{rule: rule, view: &ruleStatView{rule: rule}}
}

func (c *RejectChecker) DoCheck(node base.StatNode, batchCount uint32, threshold float64) *base.TokenResult {
	if node == nil {
		return base.NewTokenResultPass()
	}
	curCount := float64(c.view.sum(node, base.MetricEventPass))
	if curCount+float64(batchCount) > threshold {
		msg := "flow reject check blocked"
		return base.NewTokenResultBlockedWithMessage(base.BlockTypeFlow, msg)
	}
	return base.NewTokenResultPass()
}
