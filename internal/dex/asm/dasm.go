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

package asm

import (
	"fmt"

	"github.com/yimq/redex/internal/dex"
)

// Lit is a literal operand for Dasm.
type Lit int64

func V(n uint32) dex.Reg { return dex.Reg(n) }
func L(v int64) Lit      { return Lit(v) }

// Dasm builds an instruction from a flat operand list, in assembly order:
// the destination register first (for opcodes that have one), then the
// source registers, then the literal, then the reference. Operands that the
// opcode does not accept cause a panic.
func Dasm(op dex.Opcode, args ...interface{}) *dex.Instr {
	var regs []dex.Reg
	var lits []Lit
	var refs []interface{}

	/* sort the operands by kind */
	for _, v := range args {
		switch x := v.(type) {
		case dex.Reg:
			regs = append(regs, x)
		case Lit:
			lits = append(lits, x)
		case dex.TypeRef, dex.FieldRef, dex.MethodRef:
			refs = append(refs, x)
		default:
			panic(fmt.Sprintf("asm: invalid operand type %T for %s", v, op))
		}
	}

	/* destination register */
	ins := dex.New(op)
	if op.HasDest() {
		if len(regs) == 0 {
			panic(fmt.Sprintf("asm: %s requires a destination register", op))
		}
		ins.SetDest(regs[0])
		regs = regs[1:]
	}

	/* source registers */
	ins.SetSrcs(regs...)

	/* literal */
	switch len(lits) {
	case 0:
		if op.HasLit() {
			panic(fmt.Sprintf("asm: %s requires a literal", op))
		}
	case 1:
		ins.SetLit(int64(lits[0]))
	default:
		panic(fmt.Sprintf("asm: too many literals for %s", op))
	}

	/* reference */
	switch len(refs) {
	case 0:
		if op.RefKind() != dex.RefNone {
			panic(fmt.Sprintf("asm: %s requires a %s reference", op, op.RefKind()))
		}
	case 1:
		switch r := refs[0].(type) {
		case dex.TypeRef:
			ins.SetType(r)
		case dex.FieldRef:
			ins.SetField(r)
		case dex.MethodRef:
			ins.SetMethod(r)
		}
	default:
		panic(fmt.Sprintf("asm: too many references for %s", op))
	}
	return ins
}
