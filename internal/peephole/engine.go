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
	"sort"

	"github.com/yimq/redex/internal/dex"
)

const (
	_MaxWindow       = 3
	_MaxSiteRewrites = 16
)

// Result summarizes one run of the engine over a code unit.
type Result struct {
	Hits    map[string]int
	Removed int
}

func (self Result) Total() (n int) {
	for _, v := range self.Hits {
		n += v
	}
	return
}

func (self Result) Changed() bool {
	return self.Total() != 0
}

// Rules returns the names of the rules that fired, sorted.
func (self Result) Rules() []string {
	ret := make([]string, 0, len(self.Hits))
	for k := range self.Hits {
		ret = append(ret, k)
	}
	sort.Strings(ret)
	return ret
}

// Engine applies a rule catalog to code units. It is read-only after
// construction and may be shared between goroutines, as long as every code
// unit is owned by a single caller.
type Engine struct {
	reg   *dex.Registry
	rules []Rule
	first map[dex.Opcode][]int
}

func NewEngine(reg *dex.Registry, rules []Rule) *Engine {
	ret := &Engine{
		reg:   reg,
		rules: rules,
		first: make(map[dex.Opcode][]int),
	}

	/* index rules by their leading opcode, keeping catalog order */
	for i := range rules {
		p := &rules[i]
		if n := p.Len(); n == 0 || n > _MaxWindow {
			panic(fmt.Sprintf("peephole: rule %s has an invalid window of %d instructions", p.Name, n))
		}
		if p.Guard == nil || p.Rewrite == nil {
			panic("peephole: rule " + p.Name + " is incomplete")
		}
		for _, op := range p.Shape[0] {
			ret.first[op] = append(ret.first[op], i)
		}
	}
	return ret
}

// _Cursor walks a code unit. The pending input is kept reversed, so the
// next instruction is always at the top. tries[i] is the try region in
// effect before out[i] was consumed, so the cursor can step back over it.
type _Cursor struct {
	in    []*dex.Instr
	out   []*dex.Instr
	tries []int64
	try   int64
	low   int
	buf   [_MaxWindow]*dex.Instr
}

func (self *_Cursor) avail() int {
	return len(self.in)
}

func (self *_Cursor) peek(i int) *dex.Instr {
	return self.in[len(self.in)-1-i]
}

// advance consumes the next instruction, and reports whether the cursor
// reached a position it had never reached before.
func (self *_Cursor) advance() bool {
	p := self.in[len(self.in)-1]
	self.in = self.in[:len(self.in)-1]
	self.tries = append(self.tries, self.try)

	/* track the enclosing try region */
	switch p.Op {
	case dex.MOP_try_start:
		self.try = p.Lit
	case dex.MOP_try_end:
		self.try = dex.NoTry
	}

	/* move it to the output */
	self.out = append(self.out, p)
	if len(self.in) >= self.low {
		return false
	}
	self.low = len(self.in)
	return true
}

// rewind moves up to n instructions from the output back to the input,
// restoring the try region in effect before each of them.
func (self *_Cursor) rewind(n int) {
	for ; n > 0 && len(self.out) != 0; n-- {
		i := len(self.out) - 1
		self.in = append(self.in, self.out[i])
		self.try = self.tries[i]
		self.out[i] = nil
		self.out = self.out[:i]
		self.tries = self.tries[:i]
	}
}

func (self *_Cursor) replace(n int, with []*dex.Instr) {
	for i := 0; i < n; i++ {
		self.in[len(self.in)-1-i] = nil
	}
	self.in = self.in[:len(self.in)-n]
	for i := len(with) - 1; i >= 0; i-- {
		self.in = append(self.in, with[i])
	}
}

// Run rewrites the code unit in place and reports which rules fired.
func (self *Engine) Run(code *dex.Code) Result {
	src := code.Instrs()
	ret := Result{Hits: make(map[string]int)}

	/* load the pending input in reverse */
	cur := &_Cursor{
		in:    make([]*dex.Instr, 0, len(src)),
		out:   make([]*dex.Instr, 0, len(src)),
		tries: make([]int64, 0, len(src)),
		try:   dex.NoTry,
		low:   len(src),
	}
	for i := len(src) - 1; i >= 0; i-- {
		cur.in = append(cur.in, src[i])
	}

	/* scan, stepping back after every replacement so windows ending inside it are seen */
	for stall := 0; cur.avail() != 0; {
		rule, win := self.match(cur)
		if rule == nil {
			if cur.advance() {
				stall = 0
			}
			continue
		}

		/* build the replacement */
		m := &Match{Insns: win, Reg: self.reg, Try: cur.try}
		rep := rule.Rewrite(m)
		self.check(rule, code.Registers, win, rep)

		/* a rewrite that neither shrinks the input nor moves past new ground must converge */
		if len(rep) < len(win) {
			stall = 0
		} else if stall++; stall > _MaxSiteRewrites {
			panic("peephole: rule " + rule.Name + " does not converge")
		}

		/* splice, step back and count */
		cur.replace(len(win), rep)
		cur.rewind(_MaxWindow - 1)
		ret.Hits[rule.Name]++
		ret.Removed += len(win) - len(rep)
	}

	/* install the new stream if anything changed */
	if ret.Changed() {
		code.Swap(cur.out)
	}
	return ret
}

func (self *Engine) match(cur *_Cursor) (*Rule, []*dex.Instr) {
	for _, i := range self.first[cur.peek(0).Op] {
		p := &self.rules[i]
		if win := self.window(cur, p); win != nil && p.Guard(&Match{Insns: win, Reg: self.reg, Try: cur.try}) {
			return p, win
		}
	}
	return nil, nil
}

func (self *Engine) window(cur *_Cursor, rule *Rule) []*dex.Instr {
	n := rule.Len()
	if n > cur.avail() {
		return nil
	}

	/* the window must not span a block boundary */
	for i := 0; i < n; i++ {
		p := cur.peek(i)
		if i > 0 && p.Op.IsMarker() {
			return nil
		}
		if i < n-1 && p.Op.EndsBlock() {
			return nil
		}
		if !rule.accepts(i, p.Op) {
			return nil
		}
		cur.buf[i] = p
	}
	return cur.buf[:n:n]
}

func (self *Engine) check(rule *Rule, nregs uint32, win []*dex.Instr, rep []*dex.Instr) {
	if len(rep) > len(win) {
		panic(fmt.Sprintf("peephole: rule %s grows the code (%d -> %d)", rule.Name, len(win), len(rep)))
	}
	for _, v := range rep {
		if v == nil {
			panic("peephole: rule " + rule.Name + " produced a nil instruction")
		}
		if err := v.Validate(); err != nil {
			panic(fmt.Sprintf("peephole: rule %s produced a malformed instruction: %v", rule.Name, err))
		}
		for _, r := range v.Regs() {
			if uint32(r) >= nregs {
				panic(fmt.Sprintf("peephole: rule %s uses register %s beyond the frame (%d registers)", rule.Name, r, nregs))
			}
		}
	}
}
