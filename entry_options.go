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

import "github.com/aegisflow/aegis-go/core/base"

// entryOptions collects everything Entry needs to build a context.
type entryOptions struct {
	resourceType base.ResourceType
	trafficType  base.TrafficType
	batchCount   uint32
	flag         int32
	args         []interface{}
	attachments  map[interface{}]interface{}
	slotChain    *base.SlotChain
}

func newEntryOptions() *entryOptions {
	return &entryOptions{
		resourceType: base.ResTypeCommon,
		trafficType:  base.Inbound,
		batchCount:   1,
	}
}

// EntryOption configures one aspect of an Entry call.
type EntryOption func(*entryOptions)

// WithResourceType tags the resource's classification (web, RPC, DB, ...);
// purely informative metadata carried through to metric items.
func WithResourceType(t base.ResourceType) EntryOption {
	return func(o *entryOptions) { o.resourceType = t }
}

// WithTrafficType selects Inbound (the default) or Outbound traffic. Only
// Inbound resources feed the inbound sentinel node and the system-adaptive
// slot.
func WithTrafficType(t base.TrafficType) EntryOption {
	return func(o *entryOptions) { o.trafficType = t }
}

// WithBatchCount sets the weight of this single Entry call; defaults to 1.
func WithBatchCount(n uint32) EntryOption {
	return func(o *entryOptions) {
		if n > 0 {
			o.batchCount = n
		}
	}
}

// WithFlag carries an opaque caller-defined flag through to checkers that
// interpret it (none of the built-in strategies do as of this writing).
func WithFlag(flag int32) EntryOption {
	return func(o *entryOptions) { o.flag = flag }
}

// WithArgs supplies the positional arguments hot-spot param_index
// extraction reads from.
func WithArgs(args ...interface{}) EntryOption {
	return func(o *entryOptions) { o.args = args }
}

// WithAttachment adds one key/value pair hot-spot param_key extraction (and
// any other attachment-aware checker) can read.
func WithAttachment(key, value interface{}) EntryOption {
	return func(o *entryOptions) {
		if o.attachments == nil {
			o.attachments = make(map[interface{}]interface{})
		}
		o.attachments[key] = value
	}
}

// WithSlotChain overrides the slot chain this Entry call runs through,
// instead of the process-wide GlobalSlotChain. Intended for tests that
// want an isolated chain.
func WithSlotChain(sc *base.SlotChain) EntryOption {
	return func(o *entryOptions) { o.slotChain = sc }
}
