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

package aegis

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/aegisflow/aegis-go/core/config"
	"github.com/aegisflow/aegis-go/core/log/metric"
	"github.com/aegisflow/aegis-go/core/system"
	"github.com/aegisflow/aegis-go/logging"
	"github.com/aegisflow/aegis-go/util"
)

var initOnce sync.Once

// InitDefault brings the library up using config.NewDefaultEntity(): the
// three system samplers start per its intervals, the metric log aggregator
// starts if its flush interval is non-zero, and use_cache_time is applied.
// Safe to call more than once; only the first call takes effect.
func InitDefault() error {
	return doInit()
}

// ConfigFromFile loads path as a config.Entity YAML document before
// bringing the library up the same way InitDefault does.
func ConfigFromFile(path string) error {
	if err := config.LoadFromYaml(path); err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	return doInit()
}

func doInit() error {
	var initErr error
	initOnce.Do(func() {
		util.UseCacheTime(config.UseCacheTime())

		system.InitSamplers(
			config.SystemCpuIntervalMs(),
			config.SystemLoadIntervalMs(),
			config.SystemMemoryIntervalMs(),
		)

		if err := metric.InitTask(); err != nil {
			initErr = errors.Wrap(err, "failed to start metric log aggregator")
			return
		}

		logging.Info("[aegis] library initialized", "app", config.AppName())
	})
	return initErr
}
