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
	"fmt"
	"runtime/debug"
)

// Panicable is a function that may panic.
type Panicable = func()

// RunWithRecover runs f and recovers from any panic, logging it instead of
// crashing the process. Background samplers and the metric aggregator task
// loop are started with this wrapper (InitTask starts writeTaskLoop and the
// flush ticker via util.RunWithRecover).
func RunWithRecover(f Panicable) {
	defer func() {
		if r := recover(); r != nil {
			recoverLogger(fmt.Errorf("panic recovered in RunWithRecover: %v\n%s", r, debug.Stack()))
		}
	}()
	f()
}

// recoverLogger is a package-level hook so the logging package (which
// imports util for timestamps) does not need to be imported back here.
var recoverLogger = func(err error) {
	fmt.Println(err)
}

// SetRecoverLogger overrides how RunWithRecover reports a recovered panic.
// Called once from logging.init to route through the leveled logger.
func SetRecoverLogger(f func(err error)) {
	recoverLogger = f
}
