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

// Package config is the static, process-local configuration surface.
// Dynamic rule datasources (KV/CRD watchers) stay out of scope; this
// package only loads the library's own options from a YAML file and,
// optionally, hot-reloads that single file.
package config

// AppEntity identifies the host process in metric logs and exporters.
type AppEntity struct {
	Name string `yaml:"name"`
	Type int32  `yaml:"type"`
}

// StatEntity configures the default leap-array and read-view parameters
// every resource node is created with, plus background sampler periods.
type StatEntity struct {
	IntervalMsTotal  uint32 `yaml:"interval_ms_total"`
	SampleCountTotal uint32 `yaml:"sample_count_total"`
	IntervalMs       uint32 `yaml:"interval_ms"`
	SampleCount      uint32 `yaml:"sample_count"`
	System           SystemStatEntity `yaml:"system"`
}

type SystemStatEntity struct {
	CpuIntervalMs    uint32 `yaml:"cpu_interval_ms"`
	LoadIntervalMs   uint32 `yaml:"load_interval_ms"`
	MemoryIntervalMs uint32 `yaml:"memory_interval_ms"`
}

// MetricLogEntity configures the (intentionally simplified) metric log
// writer. Full rotation/reader/searcher machinery is an out-of-scope
// external collaborator; these options are kept so a caller can still
// point the basic writer at a file and flush period.
type MetricLogEntity struct {
	SingleFileMaxSize int64  `yaml:"single_file_max_size"`
	MaxFileCount      int32  `yaml:"max_file_count"`
	FlushIntervalSec  uint32 `yaml:"flush_interval_sec"`
	Dir               string `yaml:"dir"`
}

// Entity is the root document loaded from the YAML config file.
type Entity struct {
	App         AppEntity       `yaml:"app"`
	Stat        StatEntity      `yaml:"stat"`
	MetricLog   MetricLogEntity `yaml:"log_metric"`
	UseCacheTime bool           `yaml:"use_cache_time"`
}

// NewDefaultEntity returns the built-in defaults, matching upstream
// Sentinel's own out-of-the-box numbers.
func NewDefaultEntity() *Entity {
	return &Entity{
		App: AppEntity{Name: "unknown-app", Type: 0},
		Stat: StatEntity{
			IntervalMsTotal:  10000,
			SampleCountTotal: 200,
			IntervalMs:       1000,
			SampleCount:      2,
			System: SystemStatEntity{
				CpuIntervalMs:    1000,
				LoadIntervalMs:   1000,
				MemoryIntervalMs: 150,
			},
		},
		MetricLog: MetricLogEntity{
			SingleFileMaxSize: 1024 * 1024 * 50,
			MaxFileCount:      8,
			FlushIntervalSec:  1,
			Dir:               "",
		},
		UseCacheTime: true,
	}
}
