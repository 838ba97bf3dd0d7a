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

// Package aegis is the entry point of an in-process traffic governance
// library: flow control, circuit breaking, system-adaptive protection,
// concurrency isolation and hot-spot parameter limiting, all driven
// through one construction call and a per-domain rule-loading API. See
// SPEC_FULL.md for the full component design.
package aegis

import (
	"github.com/aegisflow/aegis-go/core/base"
)

// Entry admits one invocation of resourceName through the slot chain
// (GlobalSlotChain unless WithSlotChain overrides it). On success it
// returns a SentinelEntry the caller must Exit (or ExitWithError) exactly
// once, typically via defer. On block it returns a nil entry and the
// BlockError describing which rule tripped.
func Entry(resourceName string, opts ...EntryOption) (*base.SentinelEntry, *base.BlockError) {
	o := newEntryOptions()
	for _, opt := range opts {
		opt(o)
	}

	sc := o.slotChain
	if sc == nil {
		sc = GlobalSlotChain
	}

	ctx := sc.GetPooledContext()
	ctx.Resource = base.NewResourceWrapper(resourceName, o.resourceType, o.trafficType)
	ctx.Input.BatchCount = o.batchCount
	ctx.Input.Flag = o.flag
	if len(o.args) > 0 {
		ctx.Input.Args = append(ctx.Input.Args, o.args...)
	}
	for k, v := range o.attachments {
		ctx.Input.Attachments[k] = v
	}

	entry := base.NewSentinelEntry(ctx, sc)
	result := sc.Entry(ctx)
	if result.IsBlocked() {
		sc.RefurbishContext(ctx)
		return nil, result.BlockError()
	}
	return entry, nil
}
