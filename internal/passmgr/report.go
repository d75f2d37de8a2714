/*
 * Copyright 2024 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package passmgr

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// PassReport is the outcome of one pass.
type PassReport struct {
	Name    string
	Methods int
	Changed int
	Elapsed time.Duration
	Metrics map[string]int
}

// Report is the outcome of a whole pipeline run, one entry per pass that
// completed, in execution order.
type Report struct {
	Passes []PassReport
}

// Metric sums a metric over every pass.
func (self *Report) Metric(name string) (n int) {
	for _, p := range self.Passes {
		n += p.Metrics[name]
	}
	return
}

func (self *Report) String() string {
	var sb strings.Builder
	for _, p := range self.Passes {
		fmt.Fprintf(&sb, "%s: %d methods, %d changed, %v\n", p.Name, p.Methods, p.Changed, p.Elapsed)
		keys := make([]string, 0, len(p.Metrics))
		for k := range p.Metrics {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&sb, "    %s: %d\n", k, p.Metrics[k])
		}
	}
	return sb.String()
}
