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

package dex

import (
	"fmt"
	"strings"
)

// Code is the body of one method: an ordered instruction stream over a
// register file of Registers registers. Instructions in the stream are
// owned by the Code; callers must Clone before sharing them elsewhere.
type Code struct {
	Registers uint32
	insns     []*Instr
}

func NewCode(registers uint32, insns ...*Instr) *Code {
	ret := &Code{Registers: registers}
	ret.Push(insns...)
	return ret
}

func (self *Code) Len() int {
	return len(self.insns)
}

func (self *Code) At(i int) *Instr {
	return self.insns[i]
}

// Instrs returns the instruction stream. The slice must not be modified.
func (self *Code) Instrs() []*Instr {
	return self.insns
}

func (self *Code) Push(insns ...*Instr) {
	for _, v := range insns {
		if v == nil {
			panic("dex: nil instruction")
		}
		self.insns = append(self.insns, v)
	}
}

// Replace splices the n instructions at position i with the given ones.
// The removed instructions are released.
func (self *Code) Replace(i int, n int, with ...*Instr) {
	if i < 0 || n < 0 || i+n > len(self.insns) {
		panic(fmt.Sprintf("dex: replace range [%d, %d) out of bounds (len %d)", i, i+n, len(self.insns)))
	}

	/* build the new stream, never aliasing the old backing array */
	buf := make([]*Instr, 0, len(self.insns)-n+len(with))
	buf = append(buf, self.insns[:i]...)
	buf = append(buf, with...)
	buf = append(buf, self.insns[i+n:]...)

	/* release the removed instructions */
	for j := i; j < i+n; j++ {
		self.insns[j] = nil
	}

	/* install the new stream */
	self.insns = buf
}

// Swap installs a whole new instruction stream, returning the old one.
func (self *Code) Swap(insns []*Instr) []*Instr {
	old := self.insns
	self.insns = insns
	return old
}

// ForEach visits every instruction in order until fn returns false.
func (self *Code) ForEach(fn func(i int, ins *Instr) bool) {
	for i, v := range self.insns {
		if !fn(i, v) {
			return
		}
	}
}

// Equal compares two code units structurally, ignoring instruction identity.
func (self *Code) Equal(other *Code) bool {
	if self.Registers != other.Registers {
		return false
	}
	return EqualInstrs(self.insns, other.insns)
}

// EqualInstrs compares two instruction lists structurally.
func EqualInstrs(a []*Instr, b []*Instr) bool {
	if len(a) != len(b) {
		return false
	}
	for i, v := range a {
		if !v.Equal(b[i]) {
			return false
		}
	}
	return true
}

// Clone deep-copies the code unit.
func (self *Code) Clone() *Code {
	return &Code{
		Registers: self.Registers,
		insns:     CloneInstrs(self.insns),
	}
}

// CloneInstrs deep-copies an instruction list.
func CloneInstrs(insns []*Instr) []*Instr {
	ret := make([]*Instr, len(insns))
	for i, v := range insns {
		ret[i] = v.Clone()
	}
	return ret
}

// Disassemble renders the code unit, one instruction per line. Markers are
// printed without indentation so labels stand out. A nil registry prints
// references as raw handles.
func (self *Code) Disassemble(reg *Registry) string {
	ret := make([]string, 0, len(self.insns))
	for _, v := range self.insns {
		var s string
		if reg == nil {
			s = v.String()
		} else {
			s = v.Show(reg)
		}
		if v.Op.IsMarker() {
			ret = append(ret, s)
		} else {
			ret = append(ret, "\t"+s)
		}
	}
	return strings.Join(ret, "\n")
}
