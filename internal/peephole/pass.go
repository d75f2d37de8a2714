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

package peephole

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/yimq/redex/internal/dex"
	"github.com/yimq/redex/internal/passmgr"
)

const (
	PassName = "PeepholePass"

	MetricRemoved = "instructions_removed"
)

// Pass runs the rewrite catalog over every method.
//
// It reads one setting from its configuration table:
//
//	[pass.PeepholePass]
//	disabled_rules = ["Arith_MulLit_Pow2"]
type Pass struct {
	rules []Rule
}

func NewPass() *Pass {
	return &Pass{rules: Rules}
}

// NewPassWithRules creates a pass over a custom catalog.
func NewPassWithRules(rules []Rule) *Pass {
	return &Pass{rules: rules}
}

func (self *Pass) Name() string {
	return PassName
}

func (self *Pass) Run(ctx *passmgr.Context) error {
	rules, err := self.enabled(ctx)
	if err != nil {
		return err
	}

	/* one engine for every method */
	eng := NewEngine(ctx.Registry, rules)
	return ctx.WalkMethods(func(cls *dex.Class, m *dex.Method) (bool, error) {
		res := eng.Run(m.Code)
		if !res.Changed() {
			return false, nil
		}

		/* record the rules that fired */
		for _, k := range res.Rules() {
			ctx.Incr(k, res.Hits[k])
		}
		ctx.Incr(MetricRemoved, res.Removed)

		/* per-method details */
		ctx.Logger.Debug("method rewritten",
			zap.String("method", ctx.Registry.ShowMethod(m.Ref)),
			zap.Strings("rules", res.Rules()),
			zap.Int("removed", res.Removed),
		)
		return true, nil
	})
}

func (self *Pass) enabled(ctx *passmgr.Context) ([]Rule, error) {
	names, err := ctx.Config.Strings(PassName, "disabled_rules")
	if err != nil || len(names) == 0 {
		return self.rules, err
	}

	/* every disabled rule must exist */
	off := make(map[string]bool, len(names))
	for _, v := range names {
		off[v] = true
	}
	for _, v := range self.rules {
		delete(off, v.Name)
	}
	for _, v := range names {
		if off[v] {
			return nil, fmt.Errorf("unknown rule %q in disabled_rules", v)
		}
	}

	/* keep the catalog order */
	ret := make([]Rule, 0, len(self.rules))
	for _, v := range self.rules {
		if !contains(names, v.Name) {
			ret = append(ret, v)
		}
	}
	return ret, nil
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
