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

package metric

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"github.com/aegisflow/aegis-go/core/base"
	"github.com/aegisflow/aegis-go/core/config"
)

const metricFileNamePrefix = "metrics.log"

// MetricLogWriter persists one timestamp's worth of aggregated metric
// items. Spec.md section 6 explicitly scopes out the original's
// index-file-backed multi-process log search; this writer only rotates
// plain numbered files by size, which is all a single in-process
// consumer needs.
type MetricLogWriter interface {
	Write(timestampMs uint64, items []*base.MetricItem) error
}

// DefaultMetricLogWriter rotates metricFileNamePrefix(.N) once the active
// file crosses singleFileMaxSize, keeping at most maxFileCount files.
type DefaultMetricLogWriter struct {
	mu sync.Mutex

	dir               string
	singleFileMaxSize int64
	maxFileCount      int32

	file    *os.File
	writer  *bufio.Writer
	written int64
}

func NewDefaultMetricLogWriter(singleFileMaxSize int64, maxFileCount int32) (*DefaultMetricLogWriter, error) {
	if singleFileMaxSize <= 0 {
		return nil, errors.New("metric log single file max size must be positive")
	}
	if maxFileCount <= 0 {
		return nil, errors.New("metric log max file count must be positive")
	}
	dir := config.MetricLogDir()
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "aegis-go-log")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create metric log directory")
	}

	w := &DefaultMetricLogWriter{
		dir:               dir,
		singleFileMaxSize: singleFileMaxSize,
		maxFileCount:      maxFileCount,
	}
	if err := w.openCurrent(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *DefaultMetricLogWriter) activePath() string {
	return filepath.Join(w.dir, metricFileNamePrefix)
}

func (w *DefaultMetricLogWriter) openCurrent() error {
	f, err := os.OpenFile(w.activePath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return errors.Wrap(err, "failed to open metric log file")
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return errors.Wrap(err, "failed to stat metric log file")
	}
	w.file = f
	w.writer = bufio.NewWriter(f)
	w.written = info.Size()
	return nil
}

// Write appends every item for timestampMs as one line each, rotating
// first if the active file has grown past singleFileMaxSize.
func (w *DefaultMetricLogWriter) Write(timestampMs uint64, items []*base.MetricItem) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.written >= w.singleFileMaxSize {
		if err := w.rotate(); err != nil {
			return err
		}
	}
	for _, item := range items {
		line := item.ToString() + "\n"
		n, err := w.writer.WriteString(line)
		if err != nil {
			return errors.Wrap(err, "failed to write metric line")
		}
		w.written += int64(n)
	}
	return w.writer.Flush()
}

func (w *DefaultMetricLogWriter) rotate() error {
	if err := w.writer.Flush(); err != nil {
		return errors.Wrap(err, "failed to flush before rotation")
	}
	if err := w.file.Close(); err != nil {
		return errors.Wrap(err, "failed to close metric log file before rotation")
	}

	oldest := fmt.Sprintf("%s.%d", w.activePath(), w.maxFileCount)
	os.Remove(oldest)
	for i := w.maxFileCount - 1; i >= 1; i-- {
		src := fmt.Sprintf("%s.%d", w.activePath(), i)
		dst := fmt.Sprintf("%s.%d", w.activePath(), i+1)
		if _, err := os.Stat(src); err == nil {
			os.Rename(src, dst)
		}
	}
	if _, err := os.Stat(w.activePath()); err == nil {
		os.Rename(w.activePath(), fmt.Sprintf("%s.1", w.activePath()))
	}
	return w.openCurrent()
}
