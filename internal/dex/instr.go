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
	"math"
	"strings"
)

// Reg is an index into a method's virtual register file.
type Reg uint32

func (self Reg) String() string {
	return fmt.Sprintf("v%d", uint32(self))
}

// Instr is a single Dex instruction. Which operand fields are meaningful is
// decided by the opcode; the setters below refuse operands the opcode does
// not take.
type Instr struct {
	Op   Opcode
	Dest Reg
	Srcs []Reg
	Lit  int64
	Ref  uint32
}

// New creates an instruction with no operands set. Fixed-arity opcodes get
// a zeroed source list of the right length.
func New(op Opcode) *Instr {
	if n := op.Arity(); n <= 0 {
		return &Instr{Op: op}
	} else {
		return &Instr{Op: op, Srcs: make([]Reg, n)}
	}
}

func (self *Instr) SetDest(r Reg) *Instr {
	if !self.Op.HasDest() {
		panic(fmt.Sprintf("dex: %s does not have a destination register", self.Op))
	}
	self.Dest = r
	return self
}

func (self *Instr) SetSrcs(r ...Reg) *Instr {
	if n := self.Op.Arity(); n >= 0 && n != len(r) {
		panic(fmt.Sprintf("dex: %s takes %d source registers, got %d", self.Op, n, len(r)))
	}
	self.Srcs = append(self.Srcs[:0:0], r...)
	return self
}

func (self *Instr) SetSrc(i int, r Reg) *Instr {
	if i < 0 || i >= len(self.Srcs) {
		panic(fmt.Sprintf("dex: source index %d out of range for %s", i, self.Op))
	}
	self.Srcs[i] = r
	return self
}

func (self *Instr) SetLit(v int64) *Instr {
	if !self.Op.HasLit() {
		panic(fmt.Sprintf("dex: %s does not take a literal", self.Op))
	}
	self.Lit = v
	return self
}

func (self *Instr) SetType(t TypeRef) *Instr     { return self.setRef(RefType, uint32(t)) }
func (self *Instr) SetField(f FieldRef) *Instr   { return self.setRef(RefField, uint32(f)) }
func (self *Instr) SetMethod(m MethodRef) *Instr { return self.setRef(RefMethod, uint32(m)) }

func (self *Instr) setRef(kind RefKind, v uint32) *Instr {
	if k := self.Op.RefKind(); k != kind {
		panic(fmt.Sprintf("dex: %s takes a %s reference, not a %s reference", self.Op, k, kind))
	}
	self.Ref = v
	return self
}

func (self *Instr) Type() TypeRef     { self.mustRef(RefType); return TypeRef(self.Ref) }
func (self *Instr) Field() FieldRef   { self.mustRef(RefField); return FieldRef(self.Ref) }
func (self *Instr) Method() MethodRef { self.mustRef(RefMethod); return MethodRef(self.Ref) }

func (self *Instr) mustRef(kind RefKind) {
	if k := self.Op.RefKind(); k != kind {
		panic(fmt.Sprintf("dex: %s does not carry a %s reference", self.Op, kind))
	}
}

// Src returns the i-th source register.
func (self *Instr) Src(i int) Reg {
	return self.Srcs[i]
}

// Validate checks that the operands are consistent with the opcode.
func (self *Instr) Validate() error {
	if !self.Op.Valid() {
		return fmt.Errorf("invalid opcode %d", self.Op)
	}
	if n := self.Op.Arity(); n >= 0 && n != len(self.Srcs) {
		return fmt.Errorf("%s takes %d source registers, got %d", self.Op, n, len(self.Srcs))
	}
	if !self.Op.HasDest() && self.Dest != 0 {
		return fmt.Errorf("%s does not have a destination register", self.Op)
	}
	if !self.Op.HasLit() && self.Lit != 0 {
		return fmt.Errorf("%s does not take a literal", self.Op)
	}
	if k := self.Op.RefKind(); k == RefNone && self.Ref != 0 {
		return fmt.Errorf("%s does not take a reference", self.Op)
	} else if k != RefNone && self.Ref == 0 {
		return fmt.Errorf("%s is missing its %s reference", self.Op, k)
	}

	/* a wide operand occupies a register pair */
	if self.Op.WideDest() && self.Dest == math.MaxUint32 {
		return fmt.Errorf("%s: wide register %s has no upper half", self.Op, self.Dest)
	}
	if self.Op.WideSrc() && len(self.Srcs) != 0 && self.Srcs[0] == math.MaxUint32 {
		return fmt.Errorf("%s: wide register %s has no upper half", self.Op, self.Srcs[0])
	}
	return nil
}

// Equal compares two instructions structurally: the opcode and every operand
// must match. References compare by interned handle.
func (self *Instr) Equal(other *Instr) bool {
	if self == other {
		return true
	}
	if self == nil || other == nil {
		return false
	}
	if self.Op != other.Op || self.Dest != other.Dest || self.Lit != other.Lit || self.Ref != other.Ref {
		return false
	}
	if len(self.Srcs) != len(other.Srcs) {
		return false
	}
	for i, r := range self.Srcs {
		if other.Srcs[i] != r {
			return false
		}
	}
	return true
}

// Clone returns a deep copy that shares nothing with the receiver.
func (self *Instr) Clone() *Instr {
	ret := *self
	ret.Srcs = append([]Reg(nil), self.Srcs...)
	return &ret
}

// Regs returns every register the instruction names, destination first,
// with the upper halves of wide operands included.
func (self *Instr) Regs() []Reg {
	var ret []Reg
	if self.Op.HasDest() {
		if ret = append(ret, self.Dest); self.Op.WideDest() {
			ret = append(ret, self.Dest+1)
		}
	}
	for i, r := range self.Srcs {
		if ret = append(ret, r); i == 0 && self.Op.WideSrc() {
			ret = append(ret, r+1)
		}
	}
	return ret
}

func (self *Instr) String() string {
	return self.format(func() string { return fmt.Sprintf("#%d", self.Ref) })
}

// Show renders the instruction with its reference resolved through reg.
func (self *Instr) Show(reg *Registry) string {
	return self.format(func() string {
		switch self.Op.RefKind() {
		case RefType:
			return reg.Type(TypeRef(self.Ref))
		case RefField:
			return reg.ShowField(FieldRef(self.Ref))
		case RefMethod:
			return reg.ShowMethod(MethodRef(self.Ref))
		default:
			return ""
		}
	})
}

func (self *Instr) format(ref func() string) string {
	ops := make([]string, 0, len(self.Srcs)+3)

	/* markers carry only their id */
	if self.Op.IsMarker() {
		return fmt.Sprintf("%s %d", self.Op, self.Lit)
	}

	/* destination register */
	if self.Op.HasDest() {
		ops = append(ops, self.Dest.String())
	}

	/* source registers, invocations list them in braces */
	if !self.Op.Variadic() {
		for _, r := range self.Srcs {
			ops = append(ops, r.String())
		}
	} else {
		args := make([]string, len(self.Srcs))
		for i, r := range self.Srcs {
			args[i] = r.String()
		}
		ops = append(ops, "{"+strings.Join(args, ", ")+"}")
	}

	/* literal, or branch target */
	if self.Op.IsBranch() {
		ops = append(ops, fmt.Sprintf(":L%d", self.Lit))
	} else if self.Op.HasLit() {
		ops = append(ops, fmt.Sprintf("%d", self.Lit))
	}

	/* symbolic reference */
	if self.Op.RefKind() != RefNone {
		ops = append(ops, ref())
	}

	/* no operands */
	if len(ops) == 0 {
		return self.Op.String()
	} else {
		return fmt.Sprintf("%s %s", self.Op, strings.Join(ops, ", "))
	}
}
