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

// Package redex optimizes Dex bytecode with an ordered pipeline of passes.
package redex

import (
	"github.com/yimq/redex/internal/dex"
	"github.com/yimq/redex/internal/opts"
	"github.com/yimq/redex/internal/passmgr"
	"github.com/yimq/redex/internal/peephole"
)

type (
	Report     = passmgr.Report
	PassReport = passmgr.PassReport
	Pass       = passmgr.Pass
)

var _PassTab = map[string]func() Pass{
	peephole.PassName: func() Pass { return peephole.NewPass() },
}

var _DefaultPasses = []string{
	peephole.PassName,
}

// PassNames returns the names of the passes that can be put in a pipeline.
func PassNames() []string {
	return append([]string(nil), _DefaultPasses...)
}

// NewPass creates a pass by name.
func NewPass(name string) (Pass, error) {
	if fn, ok := _PassTab[name]; !ok {
		return nil, UnknownPassError{Name: name}
	} else {
		return fn(), nil
	}
}

// Pipeline creates the passes named in order, or the default pipeline if
// no names are given.
func Pipeline(names ...string) ([]Pass, error) {
	if len(names) == 0 {
		names = _DefaultPasses
	}
	ret := make([]Pass, 0, len(names))
	for _, v := range names {
		p, err := NewPass(v)
		if err != nil {
			return nil, err
		}
		ret = append(ret, p)
	}
	return ret, nil
}

// Optimize runs the pipeline selected by the options over every method of
// the scope, rewriting code units in place.
func Optimize(reg *dex.Registry, scope dex.Scope, options ...Option) (*Report, error) {
	o := opts.GetDefaultOptions()
	for _, fn := range options {
		fn(&o)
	}

	/* build the pipeline */
	passes, err := Pipeline(o.Config.Passes...)
	if err != nil {
		return nil, err
	}

	/* run it */
	return passmgr.New(passes, o).Run(reg, scope)
}
