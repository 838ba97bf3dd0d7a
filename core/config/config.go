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

package config

import (
	"os"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/aegisflow/aegis-go/logging"
	"github.com/aegisflow/aegis-go/util"
)

var (
	current   atomic.Value // *Entity
	watchOnce sync.Once
	watcher   *fsnotify.Watcher
)

func init() {
	current.Store(NewDefaultEntity())
}

func get() *Entity {
	return current.Load().(*Entity)
}

// ResetGlobalConfig swaps the active config document wholesale. Used by
// LoadFromYaml and by tests that want a known-good config without touching
// the filesystem.
func ResetGlobalConfig(e *Entity) {
	if e == nil {
		return
	}
	current.Store(e)
	util.UseCacheTime(e.UseCacheTime)
}

// LoadFromYaml reads path, parses it as a config.Entity document and
// installs it as the active configuration.
func LoadFromYaml(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "failed to read config file")
	}
	e := NewDefaultEntity()
	if err := yaml.Unmarshal(data, e); err != nil {
		return errors.Wrap(err, "failed to parse config file")
	}
	ResetGlobalConfig(e)
	return nil
}

// WatchYamlFile hot-reloads path on every write event using fsnotify. This
// only watches the library's own local static config file; it is not a
// cluster/KV rule-datasource mechanism.
// The returned stop function closes the underlying watcher.
func WatchYamlFile(path string) (stop func(), err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create config watcher")
	}
	if err := w.Add(path); err != nil {
		_ = w.Close()
		return nil, errors.Wrap(err, "failed to watch config file")
	}
	watcher = w
	go util.RunWithRecover(func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					if err := LoadFromYaml(path); err != nil {
						logging.Warn("failed to reload config after fs event", "path", path, "error", err)
					} else {
						logging.Info("reloaded config from file", "path", path)
					}
				}
			case werr, ok := <-w.Errors:
				if !ok {
					return
				}
				logging.Warn("config watcher error", "error", werr)
			}
		}
	})
	return func() { _ = w.Close() }, nil
}

func AppName() string { return get().App.Name }
func AppType() int32  { return get().App.Type }

func GlobalStatisticIntervalMsTotal() uint32  { return get().Stat.IntervalMsTotal }
func GlobalStatisticSampleCountTotal() uint32 { return get().Stat.SampleCountTotal }
func GlobalStatisticIntervalMs() uint32       { return get().Stat.IntervalMs }
func GlobalStatisticSampleCount() uint32      { return get().Stat.SampleCount }

func SystemCpuIntervalMs() uint32    { return get().Stat.System.CpuIntervalMs }
func SystemLoadIntervalMs() uint32   { return get().Stat.System.LoadIntervalMs }
func SystemMemoryIntervalMs() uint32 { return get().Stat.System.MemoryIntervalMs }

func MetricLogSingleFileMaxSize() int64  { return get().MetricLog.SingleFileMaxSize }
func MetricLogMaxFileAmount() int32      { return get().MetricLog.MaxFileCount }
func MetricLogFlushIntervalSec() uint32  { return get().MetricLog.FlushIntervalSec }
func MetricLogDir() string               { return get().MetricLog.Dir }

func UseCacheTime() bool { return get().UseCacheTime }
