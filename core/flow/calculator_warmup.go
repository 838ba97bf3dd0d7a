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
	"sync"

	"github.com/aegisflow/aegis-go/core/base"
	"github.com/aegisflow/aegis-go/util"
)

// WarmUpCalculator implements a token-bucket warm-up model: after an idle
// period the system holds many tokens and the effective threshold is held
// low (cold); under sustained load tokens
// deplete to warningTokenCount and the effective threshold rises to the
// rule's nominal value (hot).
type WarmUpCalculator struct {
	rule *Rule

	warningTokenCount float64
	maxTokenCount     float64
	slope             float64

	mu           sync.Mutex
	storedTokens float64
	lastFillMs   uint64
}

func NewWarmUpCalculator(rule *Rule) *WarmUpCalculator {
	warmUpPeriodSec := float64(rule.WarmUpPeriodSec)
	coldFactor := float64(rule.ColdFactor)
	threshold := rule.Threshold

	warningTokenCount := (warmUpPeriodSec * threshold * (coldFactor - 1)) / coldFactor
	maxTokenCount := warningTokenCount + 2*warmUpPeriodSec*threshold/(1+coldFactor)
	var slope float64
	if threshold > 0 && maxTokenCount > warningTokenCount {
		slope = (coldFactor - 1) / threshold / (maxTokenCount - warningTokenCount)
	}

	return &WarmUpCalculator{
		rule:              rule,
		warningTokenCount: warningTokenCount,
		maxTokenCount:     maxTokenCount,
		slope:             slope,
		// Start fully rested, as if idle since process start: the first
		// arrival after a cold start sees a throttled effective threshold.
		storedTokens: maxTokenCount,
		lastFillMs:   util.CurrentTimeMillis(),
	}
}

func (c *WarmUpCalculator) CalculateAllowedTokens(_ base.StatNode, _ uint32, _ int32) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := util.CurrentTimeMillis()
	if now > c.lastFillMs {
		refillAmount := float64(now-c.lastFillMs) * c.rule.Threshold / 1000.0
		c.storedTokens = min(c.maxTokenCount, c.storedTokens+refillAmount)
		c.lastFillMs = now
	}

	if c.storedTokens >= c.warningTokenCount {
		excess := c.storedTokens - c.warningTokenCount
		return 1.0 / (c.slope*excess + 1.0/c.rule.Threshold)
	}
	return c.rule.Threshold
}
