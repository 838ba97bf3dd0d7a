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

// Package isolation implements the absolute concurrency cap protection
// strategy.
package isolation

import (
	"fmt"

	"github.com/pkg/errors"
)

// Rule caps a resource's concurrent in-flight entries at Threshold.
type Rule struct {
	ID        string
	Resource  string
	Threshold uint32
}

func (r *Rule) ResourceName() string { return r.Resource }

func (r *Rule) String() string {
	return fmt.Sprintf("isolation.Rule{id=%s, resource=%s, threshold=%d}", r.ID, r.Resource, r.Threshold)
}

func (r *Rule) Equals(other *Rule) bool {
	if other == nil {
		return false
	}
	return *r == *other
}

// IsStatReusable is trivially true for any pair of same-resource isolation
// rules: the strategy reads the resource node's own concurrency counter
// directly and owns no per-rule statistic of its own.
func (r *Rule) IsStatReusable(other *Rule) bool {
	return other != nil && r.Resource == other.Resource
}

func Validate(r *Rule) error {
	if r == nil {
		return errors.New("nil isolation rule")
	}
	if r.Resource == "" {
		return errors.New("isolation rule resource name must not be empty")
	}
	if r.Threshold == 0 {
		return errors.New("isolation rule threshold must be positive")
	}
	return nil
}
