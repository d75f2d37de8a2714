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

	"github.com/bytedance/gopkg/util/gopool"
	"go.uber.org/zap"

	"github.com/yimq/redex/internal/dex"
	"github.com/yimq/redex/internal/opts"
)

// Pass is one whole-program transformation step.
type Pass interface {
	Name() string
	Run(ctx *Context) error
}

// MethodFunc transforms the code of one method, reporting whether it
// changed anything.
type MethodFunc func(cls *dex.Class, m *dex.Method) (bool, error)

// Context is what a pass sees of the program while it runs.
type Context struct {
	Scope    dex.Scope
	Registry *dex.Registry
	Config   *opts.Config
	Logger   *zap.Logger

	mu      sync.Mutex
	pass    string
	workers int
	testing bool
	report  *PassReport
}

func (self *Context) PassName() string {
	return self.pass
}

func (self *Context) TestingMode() bool {
	return self.testing
}

// Incr adds n to a named metric of the running pass. It is safe to call
// from method workers.
func (self *Context) Incr(metric string, n int) {
	self.mu.Lock()
	self.report.Metrics[metric] += n
	self.mu.Unlock()
}

type _Item struct {
	cls *dex.Class
	m   *dex.Method
}

func (self *Context) items() []_Item {
	var ret []_Item
	self.Scope.ForEachMethod(func(cls *dex.Class, m *dex.Method) {
		if m.Code != nil {
			ret = append(ret, _Item{cls, m})
		}
	})
	return ret
}

// WalkMethods calls fn for every method that has code. Each method is
// handed to exactly one worker. The first failure, in program order, is
// returned as a *PassError.
func (self *Context) WalkMethods(fn MethodFunc) error {
	items := self.items()
	changed := make([]bool, len(items))
	errs := make([]error, len(items))

	/* walk the methods */
	if self.workers <= 1 || len(items) <= 1 {
		self.walkSerial(fn, items, changed, errs)
	} else {
		self.walkParallel(fn, items, changed, errs)
	}

	/* account for the methods visited */
	self.mu.Lock()
	self.report.Methods += len(items)
	for _, v := range changed {
		if v {
			self.report.Changed++
		}
	}
	self.mu.Unlock()

	/* report the first failure */
	for i, err := range errs {
		if err != nil {
			return &PassError{
				Pass:   self.pass,
				Method: self.Registry.ShowMethod(items[i].m.Ref),
				Err:    err,
			}
		}
	}
	return nil
}

func (self *Context) walkSerial(fn MethodFunc, items []_Item, changed []bool, errs []error) {
	for i, v := range items {
		if changed[i], errs[i] = fn(v.cls, v.m); errs[i] != nil {
			return
		}
	}
}

func (self *Context) walkParallel(fn MethodFunc, items []_Item, changed []bool, errs []error) {
	var wg sync.WaitGroup
	var pv interface{}
	var pm sync.Mutex

	/* the pool is bounded by the worker count */
	nb := self.workers
	if nb > len(items) {
		nb = len(items)
	}

	/* dispatch every method, capturing panics */
	wp := gopool.NewPool(fmt.Sprintf("redex.%s", self.pass), int32(nb), gopool.NewConfig())
	for i := range items {
		i := i
		wg.Add(1)
		wp.Go(func() {
			defer wg.Done()
			defer func() {
				if v := recover(); v != nil {
					pm.Lock()
					if pv == nil {
						pv = v
					}
					pm.Unlock()
				}
			}()
			changed[i], errs[i] = fn(items[i].cls, items[i].m)
		})
	}

	/* re-raise on the calling goroutine */
	wg.Wait()
	if pv != nil {
		panic(pv)
	}
}
