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

// Package system implements the system-adaptive protection strategy:
// the slot checking CPU/load/AvgRT/QPS against system rules (with an
// optional BBR guard) and the three background samplers feeding CPU%,
// load average and process memory.
package system

import (
	"math"
	"os"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/aegisflow/aegis-go/logging"
	"github.com/aegisflow/aegis-go/util"
)

var (
	currentCpuUsage    uint64 // math.Float64bits
	currentLoad1       uint64 // math.Float64bits
	currentMemoryBytes uint64

	samplersStarted int32
	stopSamplers    = make(chan struct{})
	selfProc        *process.Process
)

func init() {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err == nil {
		selfProc = p
	}
}

// InitSamplers starts the three background samplers once, process-wide.
// A zero interval disables the corresponding sampler.
func InitSamplers(cpuIntervalMs, loadIntervalMs, memoryIntervalMs uint32) {
	if !atomic.CompareAndSwapInt32(&samplersStarted, 0, 1) {
		return
	}
	if cpuIntervalMs > 0 {
		go util.RunWithRecover(func() { runSampler(time.Duration(cpuIntervalMs)*time.Millisecond, sampleCpu) })
	}
	if loadIntervalMs > 0 {
		go util.RunWithRecover(func() { runSampler(time.Duration(loadIntervalMs)*time.Millisecond, sampleLoad) })
	}
	if memoryIntervalMs > 0 {
		go util.RunWithRecover(func() { runSampler(time.Duration(memoryIntervalMs)*time.Millisecond, sampleMemory) })
	}
}

// StopSamplers halts every running sampler. Test-only / graceful shutdown.
func StopSamplers() {
	if atomic.CompareAndSwapInt32(&samplersStarted, 1, 0) {
		close(stopSamplers)
		stopSamplers = make(chan struct{})
	}
}

func runSampler(interval time.Duration, sample func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	sample()
	for {
		select {
		case <-ticker.C:
			sample()
		case <-stopSamplers:
			return
		}
	}
}

func sampleCpu() {
	percents, err := cpu.Percent(0, false)
	if err != nil || len(percents) == 0 {
		logging.Warn("failed to sample process cpu usage, keeping previous value", "error", err)
		return
	}
	storeFloat(&currentCpuUsage, percents[0]/100.0)
}

func sampleLoad() {
	avg, err := load.Avg()
	if err != nil {
		logging.Warn("failed to sample load average, keeping previous value", "error", err)
		return
	}
	storeFloat(&currentLoad1, avg.Load1)
}

func sampleMemory() {
	if selfProc == nil {
		return
	}
	info, err := selfProc.MemoryInfo()
	if err != nil || info == nil {
		logging.Warn("failed to sample process memory usage, keeping previous value", "error", err)
		return
	}
	atomic.StoreUint64(&currentMemoryBytes, info.RSS)
}

func storeFloat(addr *uint64, v float64) {
	atomic.StoreUint64(addr, math.Float64bits(v))
}

func loadFloat(addr *uint64) float64 {
	return math.Float64frombits(atomic.LoadUint64(addr))
}

// CurrentCpuUsage returns the last-sampled machine-wide CPU ratio in [0, 1].
func CurrentCpuUsage() float64 { return loadFloat(&currentCpuUsage) }

// CurrentLoad1 returns the last-sampled 1-minute load average.
func CurrentLoad1() float64 { return loadFloat(&currentLoad1) }

// CurrentProcessMemoryBytes returns the last-sampled resident set size, in
// bytes. Consumed by core/flow's MemoryAdaptive calculator; the
// system-adaptive slot has no memory check.
func CurrentProcessMemoryBytes() uint64 {
	return atomic.LoadUint64(&currentMemoryBytes)
}
