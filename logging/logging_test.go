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

package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultLoggerFiltersBelowConfiguredLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewDefaultLogger(&buf, WarnLevel)

	l.Log(InfoLevel, "should not appear")
	assert.Empty(t, buf.String())

	l.Log(WarnLevel, "should appear")
	assert.Contains(t, buf.String(), "should appear")
}

func TestDefaultLoggerFormatsKeyValuePairs(t *testing.T) {
	var buf bytes.Buffer
	l := NewDefaultLogger(&buf, DebugLevel)

	l.Log(InfoLevel, "hello", "resource", "orders", "count", 3)

	line := buf.String()
	assert.Contains(t, line, "INFO")
	assert.Contains(t, line, "hello")
	assert.Contains(t, line, "resource=orders")
	assert.Contains(t, line, "count=3")
}

func TestDefaultLoggerIgnoresDanglingKeyWithNoValue(t *testing.T) {
	var buf bytes.Buffer
	l := NewDefaultLogger(&buf, DebugLevel)

	l.Log(InfoLevel, "msg", "onlykey")

	assert.NotContains(t, buf.String(), "onlykey=")
}

func TestResetGlobalLoggerRoutesPackageFunctions(t *testing.T) {
	var buf bytes.Buffer
	original := logger()
	defer ResetGlobalLogger(original)

	ResetGlobalLogger(NewDefaultLogger(&buf, DebugLevel))
	Info("package level info")
	Warn("package level warn")
	Error(errors.New("boom"), "package level error")

	out := buf.String()
	assert.Contains(t, out, "package level info")
	assert.Contains(t, out, "package level warn")
	assert.Contains(t, out, "package level error")
	assert.Contains(t, out, "error=boom")
}

func TestResetGlobalLoggerIgnoresNil(t *testing.T) {
	original := logger()
	defer ResetGlobalLogger(original)

	ResetGlobalLogger(nil)
	assert.Same(t, original, logger())
}

func TestOnceGuardRunsFunctionOnlyOnce(t *testing.T) {
	g := &onceGuard{}
	count := 0
	g.Do(func() { count++ })
	g.Do(func() { count++ })
	assert.Equal(t, 1, count)

	g.Reset()
	g.Do(func() { count++ })
	assert.Equal(t, 2, count)
}

func TestFrequentErrorOnceIsAProcessWideGuard(t *testing.T) {
	FrequentErrorOnce.Reset()
	defer FrequentErrorOnce.Reset()

	calls := 0
	for i := 0; i < 3; i++ {
		FrequentErrorOnce.Do(func() { calls++ })
	}
	assert.Equal(t, 1, calls)
}

func TestLevelStringRepresentations(t *testing.T) {
	assert.Equal(t, "DEBUG", DebugLevel.String())
	assert.Equal(t, "INFO", InfoLevel.String())
	assert.Equal(t, "WARN", WarnLevel.String())
	assert.Equal(t, "ERROR", ErrorLevel.String())
	assert.True(t, strings.Contains(Level(99).String(), "UNKNOWN"))
}
