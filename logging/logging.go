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

// Package logging provides the leveled logging surface used throughout
// aegis-go. It intentionally stays small and dependency-free so the host
// application can route output anywhere (file, syslog, an existing
// structured logger) by swapping the package-level Logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aegisflow/aegis-go/util"
)

type Level int32

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Logger is the interface aegis-go logs through. Implement it to route
// output to an existing logging stack.
type Logger interface {
	Log(level Level, msg string, keysAndValues ...interface{})
}

// defaultLogger writes leveled, key=value lines to an io.Writer.
type defaultLogger struct {
	mu  sync.Mutex
	out io.Writer
	lvl int32
}

func NewDefaultLogger(out io.Writer, lvl Level) Logger {
	return &defaultLogger{out: out, lvl: int32(lvl)}
}

func (d *defaultLogger) Log(level Level, msg string, kvs ...interface{}) {
	if int32(level) < atomic.LoadInt32(&d.lvl) {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintf(d.out, "%s\t%s\t%s", time.Now().Format("2006-01-02T15:04:05.000Z0700"), level, msg)
	for i := 0; i+1 < len(kvs); i += 2 {
		fmt.Fprintf(d.out, "\t%v=%v", kvs[i], kvs[i+1])
	}
	fmt.Fprintln(d.out)
}

var current atomic.Value // Logger

func init() {
	current.Store(Logger(NewDefaultLogger(os.Stderr, InfoLevel)))
	util.SetRecoverLogger(func(err error) {
		Error(err, "recovered from panic")
	})
}

// ResetGlobalLogger swaps the package-level logger. Safe for concurrent use.
func ResetGlobalLogger(l Logger) {
	if l == nil {
		return
	}
	current.Store(l)
}

func logger() Logger {
	return current.Load().(Logger)
}

func Debug(msg string, kvs ...interface{}) { logger().Log(DebugLevel, msg, kvs...) }
func Info(msg string, kvs ...interface{})  { logger().Log(InfoLevel, msg, kvs...) }
func Warn(msg string, kvs ...interface{})  { logger().Log(WarnLevel, msg, kvs...) }

// Error logs err alongside msg and the given key-value pairs. Mirrors the
// teacher's logging.Error(err, msg, kvPairs...) call shape used throughout
// core/flow/slot.go, core/base/slot_chain.go and core/log/metric/aggregator.go.
func Error(err error, msg string, kvs ...interface{}) {
	all := append([]interface{}{"error", err}, kvs...)
	logger().Log(ErrorLevel, msg, all...)
}

// onceGuard throttles a single noisy error site to one log line
// (core/flow/slot.go's checkInLocal logs "nil resource node" at most once
// via FrequentErrorOnce.Do).
type onceGuard struct {
	mu   sync.Mutex
	done bool
}

func (o *onceGuard) Do(f func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.done {
		return
	}
	o.done = true
	f()
}

func (o *onceGuard) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.done = false
}

// FrequentErrorOnce is a process-wide guard for the single highest-volume
// error site (nil resource node lookups inside the flow check hot path).
var FrequentErrorOnce = &onceGuard{}
