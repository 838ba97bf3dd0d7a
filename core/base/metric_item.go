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
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// MetricItem is one second-level aggregated line of a resource's metrics,
// as written to (and read back from) the metric log.
type MetricItem struct {
	Resource       string
	Timestamp      uint64
	PassQps        uint64
	BlockQps       uint64
	CompleteQps    uint64
	ErrorQps       uint64
	AvgRt          uint64
	Concurrency    uint32
	Classification int32
}

const metricItemFieldCount = 10

// ToString serializes the item into the pipe-delimited wire format:
// timestamp_ms|yyyy-MM-dd HH:mm:ss|resource|pass_qps|block_qps|complete_qps|error_qps|avg_rt_ms|concurrency|classification
// The resource name is URL-encoded whenever it contains a pipe or newline so
// the delimiter stays unambiguous.
func (m *MetricItem) ToString() string {
	resource := m.Resource
	if strings.ContainsAny(resource, "|\n") {
		resource = url.QueryEscape(resource)
	}
	humanTime := time.UnixMilli(int64(m.Timestamp)).Format("2006-01-02 15:04:05")
	fields := []string{
		strconv.FormatUint(m.Timestamp, 10),
		humanTime,
		resource,
		strconv.FormatUint(m.PassQps, 10),
		strconv.FormatUint(m.BlockQps, 10),
		strconv.FormatUint(m.CompleteQps, 10),
		strconv.FormatUint(m.ErrorQps, 10),
		strconv.FormatUint(m.AvgRt, 10),
		strconv.FormatUint(uint64(m.Concurrency), 10),
		strconv.FormatInt(int64(m.Classification), 10),
	}
	return strings.Join(fields, "|")
}

// MetricItemFromString parses one line previously produced by ToString.
func MetricItemFromString(line string) (*MetricItem, error) {
	fields := strings.Split(line, "|")
	if len(fields) != metricItemFieldCount {
		return nil, errors.Errorf("invalid metric item line, expected %d fields, got %d", metricItemFieldCount, len(fields))
	}
	ts, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return nil, errors.Wrap(err, "invalid timestamp field")
	}
	resource, err := url.QueryUnescape(fields[2])
	if err != nil {
		resource = fields[2]
	}
	passQps, err := strconv.ParseUint(fields[3], 10, 64)
	if err != nil {
		return nil, errors.Wrap(err, "invalid pass_qps field")
	}
	blockQps, err := strconv.ParseUint(fields[4], 10, 64)
	if err != nil {
		return nil, errors.Wrap(err, "invalid block_qps field")
	}
	completeQps, err := strconv.ParseUint(fields[5], 10, 64)
	if err != nil {
		return nil, errors.Wrap(err, "invalid complete_qps field")
	}
	errorQps, err := strconv.ParseUint(fields[6], 10, 64)
	if err != nil {
		return nil, errors.Wrap(err, "invalid error_qps field")
	}
	avgRt, err := strconv.ParseUint(fields[7], 10, 64)
	if err != nil {
		return nil, errors.Wrap(err, "invalid avg_rt field")
	}
	concurrency, err := strconv.ParseUint(fields[8], 10, 32)
	if err != nil {
		return nil, errors.Wrap(err, "invalid concurrency field")
	}
	classification, err := strconv.ParseInt(fields[9], 10, 32)
	if err != nil {
		return nil, errors.Wrap(err, "invalid classification field")
	}
	return &MetricItem{
		Resource:       resource,
		Timestamp:      ts,
		PassQps:        passQps,
		BlockQps:       blockQps,
		CompleteQps:    completeQps,
		ErrorQps:       errorQps,
		AvgRt:          avgRt,
		Concurrency:    uint32(concurrency),
		Classification: int32(classification),
	}, nil
}
