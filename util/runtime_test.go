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

package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunWithRecoverRunsFunctionNormally(t *testing.T) {
	ran := false
	RunWithRecover(func() { ran = true })
	assert.True(t, ran)
}

func TestRunWithRecoverSwallowsPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		RunWithRecover(func() { panic("boom") })
	})
}

func TestSetRecoverLoggerIsInvokedOnPanic(t *testing.T) {
	var captured error
	SetRecoverLogger(func(err error) { captured = err })
	defer SetRecoverLogger(func(err error) {})

	RunWithRecover(func() { panic("kaboom") })

	assert.Error(t, captured)
	assert.Contains(t, captured.Error(), "kaboom")
}
