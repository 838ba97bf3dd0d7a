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

import (
	"errors"
	"fmt"
)

// MetricSnapshot carries whatever numeric context explains why a rule
// tripped (an observed ratio, concurrency, threshold, …). Kept as a loosely
// typed map since each strategy surfaces different fields.
type MetricSnapshot map[string]interface{}

// BlockError is the error kind surfaced to callers when an entry is
// rejected. It carries the BlockType, the triggering rule (if any) and an
// optional metric snapshot describing the observed state at trip time.
type BlockError struct {
	blockType      BlockType
	blockMsg       string
	rule           interface{}
	snapshot       MetricSnapshot
}

func NewBlockError(blockType BlockType, msg string) *BlockError {
	return &BlockError{blockType: blockType, blockMsg: msg}
}

func NewBlockErrorWithRule(blockType BlockType, msg string, rule interface{}) *BlockError {
	return &BlockError{blockType: blockType, blockMsg: msg, rule: rule}
}

func NewBlockErrorWithSnapshot(blockType BlockType, msg string, rule interface{}, snapshot MetricSnapshot) *BlockError {
	return &BlockError{blockType: blockType, blockMsg: msg, rule: rule, snapshot: snapshot}
}

func (e *BlockError) BlockType() BlockType {
	return e.blockType
}

func (e *BlockError) BlockMsg() string {
	return e.blockMsg
}

func (e *BlockError) TriggeredRule() interface{} {
	return e.rule
}

func (e *BlockError) Snapshot() MetricSnapshot {
	return e.snapshot
}

func (e *BlockError) Error() string {
	if e.blockMsg == "" {
		return fmt.Sprintf("SentinelBlockError: %s", e.blockType)
	}
	return fmt.Sprintf("SentinelBlockError: %s, message: %s", e.blockType, e.blockMsg)
}

// IsBlockError reports whether err is (or wraps) a *BlockError.
func IsBlockError(err error) bool {
	var be *BlockError
	return errors.As(err, &be)
}
