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
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yimq/redex/internal/dex"
	"github.com/yimq/redex/internal/opts"
)

type State int

const (
	StateIdle State = iota
	StateRunning
	StateDone
	StateFailed
)

func (self State) String() string {
	switch self {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(self))
	}
}

// Manager runs an ordered list of passes over a program, each exactly
// once, checking the program before the first pass and, unless in testing
// mode, after every pass.
type Manager struct {
	mu     sync.Mutex
	opts   opts.Options
	passes []Pass
	state  State
	index  int
}

func New(passes []Pass, o opts.Options) *Manager {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return &Manager{
		opts:   o,
		passes: passes,
		state:  StateIdle,
		index:  -1,
	}
}

// SetTestingMode disables invariant checks between passes.
func (self *Manager) SetTestingMode() {
	self.mu.Lock()
	self.opts.TestingMode = true
	self.mu.Unlock()
}

// State returns the state of the manager and the index of the pass that is
// running (or the last one that ran).
func (self *Manager) State() (State, int) {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.state, self.index
}

func (self *Manager) Passes() []Pass {
	return self.passes
}

func (self *Manager) enter(i int) {
	self.mu.Lock()
	self.index = i
	self.mu.Unlock()
}

func (self *Manager) leave(st State) {
	self.mu.Lock()
	self.state = st
	self.mu.Unlock()
}

// Run applies every pass in order. The first failure halts the pipeline;
// the report covers the passes that completed.
func (self *Manager) Run(reg *dex.Registry, scope dex.Scope) (ret *Report, err error) {
	self.mu.Lock()
	if self.state == StateRunning {
		self.mu.Unlock()
		panic("passmgr: manager is already running")
	}

	/* take a consistent view of the options */
	o := self.opts
	self.state = StateRunning
	self.index = -1
	self.mu.Unlock()

	/* settle the final state, even if a pass panics */
	st := StateFailed
	defer func() { self.leave(st) }()

	/* reject programs that cannot be optimized */
	if err = checkPreconditions(reg, scope); err != nil {
		o.Logger.Error("precondition violated", zap.Error(err))
		return nil, err
	}

	/* run every pass, in order */
	ret = new(Report)
	for i, p := range self.passes {
		self.enter(i)
		pr, err := self.runPass(reg, scope, &o, p)
		if err != nil {
			o.Logger.Error("pass failed", zap.String("pass", p.Name()), zap.Error(err))
			return ret, err
		}
		ret.Passes = append(ret.Passes, *pr)
	}

	/* all done */
	st = StateDone
	return ret, nil
}

func (self *Manager) runPass(reg *dex.Registry, scope dex.Scope, o *opts.Options, p Pass) (*PassReport, error) {
	name := p.Name()
	log := o.Logger.With(zap.String("pass", name))
	ret := &PassReport{Name: name, Metrics: make(map[string]int)}

	/* build the pass context */
	ctx := &Context{
		Scope:    scope,
		Registry: reg,
		Config:   o.Config,
		Logger:   log,
		pass:     name,
		workers:  o.Workers,
		testing:  o.TestingMode,
		report:   ret,
	}

	/* run the pass */
	log.Info("running pass")
	start := time.Now()
	err := p.Run(ctx)
	ret.Elapsed = time.Since(start)

	/* wrap bare errors with the pass name */
	if err != nil {
		if _, ok := err.(*PassError); !ok {
			err = &PassError{Pass: name, Err: err}
		}
		return nil, err
	}

	/* re-check the program unless in testing mode */
	if !o.TestingMode {
		if m, err := verifyScope(reg, scope); err != nil {
			return nil, &PassError{Pass: name, Method: m, Err: fmt.Errorf("invariant violated: %w", err)}
		}
	}

	/* report */
	log.Info("pass finished",
		zap.Int("methods", ret.Methods),
		zap.Int("changed", ret.Changed),
		zap.Duration("elapsed", ret.Elapsed),
	)
	return ret, nil
}

func checkPreconditions(reg *dex.Registry, scope dex.Scope) error {
	var err error
	scope.ForEachMethod(func(cls *dex.Class, m *dex.Method) {
		if err == nil && m.IsConcrete() && m.Code == nil {
			err = &PreconditionError{Method: reg.ShowMethod(m.Ref), Err: errNoCode}
		}
	})
	if err != nil {
		return err
	}
	if m, err := verifyScope(reg, scope); err != nil {
		return &PreconditionError{Method: m, Err: err}
	}
	return nil
}

func verifyScope(reg *dex.Registry, scope dex.Scope) (string, error) {
	var err error
	var name string
	scope.ForEachMethod(func(cls *dex.Class, m *dex.Method) {
		if err == nil && m.Code != nil {
			if err = dex.Verify(m.Code, reg); err != nil {
				name = reg.ShowMethod(m.Ref)
			}
		}
	})
	return name, err
}
