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
	"github.com/yimq/redex/internal/dex"
)

// Match is a window of consecutive, control-flow contiguous instructions
// that has the shape of a rule.
type Match struct {
	Insns []*dex.Instr
	Reg   *dex.Registry
	Try   int64
}

func (self *Match) At(i int) *dex.Instr {
	return self.Insns[i]
}

// Rule is a local rewrite. Shape lists the acceptable opcodes at each
// position of the window, Guard decides on operand values, and Rewrite
// produces the replacement, which must have the same observable effect on
// registers and fields and must not be longer than the window.
type Rule struct {
	Name    string
	Shape   [][]dex.Opcode
	Guard   func(m *Match) bool
	Rewrite func(m *Match) []*dex.Instr
}

func (self *Rule) Len() int {
	return len(self.Shape)
}

func (self *Rule) accepts(i int, op dex.Opcode) bool {
	for _, v := range self.Shape[i] {
		if v == op {
			return true
		}
	}
	return false
}

var (
	_AddLit  = []dex.Opcode{dex.OP_add_int_lit8, dex.OP_add_int_lit16}
	_MulLit  = []dex.Opcode{dex.OP_mul_int_lit8, dex.OP_mul_int_lit16}
	_DivLit  = []dex.Opcode{dex.OP_div_int_lit8, dex.OP_div_int_lit16}
	_RemLit  = []dex.Opcode{dex.OP_rem_int_lit8, dex.OP_rem_int_lit16}
	_RsubLit = []dex.Opcode{dex.OP_rsub_int, dex.OP_rsub_int_lit8}
	_Moves   = []dex.Opcode{dex.OP_move, dex.OP_move_wide, dex.OP_move_object}
	_Pseudo  = []dex.Opcode{dex.IOP_move_result_pseudo}

	/* literal identities: or 0, xor 0, and -1, shifts by 0 */
	_BitLit = []dex.Opcode{
		dex.OP_or_int_lit8,
		dex.OP_or_int_lit16,
		dex.OP_xor_int_lit8,
		dex.OP_xor_int_lit16,
		dex.OP_and_int_lit8,
		dex.OP_and_int_lit16,
		dex.OP_shl_int_lit8,
		dex.OP_shr_int_lit8,
		dex.OP_ushr_int_lit8,
	}

	_Iputs = []dex.Opcode{
		dex.OP_iput,
		dex.OP_iput_wide,
		dex.OP_iput_object,
		dex.OP_iput_boolean,
		dex.OP_iput_byte,
		dex.OP_iput_char,
		dex.OP_iput_short,
	}

	_Igets = []dex.Opcode{
		dex.OP_iget,
		dex.OP_iget_wide,
		dex.OP_iget_object,
		dex.OP_iget_boolean,
		dex.OP_iget_byte,
		dex.OP_iget_char,
		dex.OP_iget_short,
	}

	_AnyPseudo = []dex.Opcode{
		dex.IOP_move_result_pseudo,
		dex.IOP_move_result_pseudo_wide,
		dex.IOP_move_result_pseudo_object,
	}
)

func move(dst dex.Reg, src dex.Reg) *dex.Instr {
	return dex.New(dex.OP_move).SetDest(dst).SetSrcs(src)
}

func neg(dst dex.Reg, src dex.Reg) *dex.Instr {
	return dex.New(dex.OP_neg_int).SetDest(dst).SetSrcs(src)
}

func litIs(v int64) func(m *Match) bool {
	return func(m *Match) bool { return m.At(0).Lit == v }
}

// log2 returns k if v == 1 << k for 1 <= k <= 30, or -1.
func log2(v int64) int64 {
	if v < 2 || v > 1<<30 || v&(v-1) != 0 {
		return -1
	}
	k := int64(0)
	for v > 1 {
		v >>= 1
		k++
	}
	return k
}

func bitIdentity(m *Match) bool {
	switch p := m.At(0); p.Op {
	case dex.OP_and_int_lit8, dex.OP_and_int_lit16:
		return p.Lit == -1
	default:
		return p.Lit == 0
	}
}

// putGetGuard decides whether the get after a put of the same field is
// redundant. Each check independently vetoes the rewrite.
func putGetGuard(m *Match) bool {
	put, get, res := m.At(0), m.At(1), m.At(2)

	/* the same field, by interned handle */
	if put.Field() != get.Field() {
		return false
	}

	/* the same access width, and the matching pseudo result */
	if w := put.Op.FieldWidth(); w != get.Op.FieldWidth() || res.Op != dex.PseudoResultFor(w) {
		return false
	}

	/* the field must be resolved and not volatile */
	if def, ok := m.Reg.ResolveField(put.Field()); !ok || def.IsVolatile() {
		return false
	}

	/* the value must land in the register it was written from */
	if res.Dest != put.Src(0) {
		return false
	}

	/* the same object */
	if get.Src(0) != put.Src(1) {
		return false
	}

	/* a throw between the put and the get would skip the get */
	return m.Try == dex.NoTry
}

// Rules is the rewrite catalog, in priority order. The first rule whose
// shape and guard accept a window wins.
var Rules = []Rule{
	{
		Name:    "Arith_AddLit_0",
		Shape:   [][]dex.Opcode{_AddLit},
		Guard:   litIs(0),
		Rewrite: func(m *Match) []*dex.Instr { return []*dex.Instr{move(m.At(0).Dest, m.At(0).Src(0))} },
	},
	{
		Name:    "Arith_MulLit_Pos1",
		Shape:   [][]dex.Opcode{_MulLit},
		Guard:   litIs(1),
		Rewrite: func(m *Match) []*dex.Instr { return []*dex.Instr{move(m.At(0).Dest, m.At(0).Src(0))} },
	},
	{
		Name:    "Arith_MulLit_Neg1",
		Shape:   [][]dex.Opcode{_MulLit},
		Guard:   litIs(-1),
		Rewrite: func(m *Match) []*dex.Instr { return []*dex.Instr{neg(m.At(0).Dest, m.At(0).Src(0))} },
	},
	{
		Name:    "Arith_DivLit_Neg1",
		Shape:   [][]dex.Opcode{_DivLit, _Pseudo},
		Guard:   litIs(-1),
		Rewrite: func(m *Match) []*dex.Instr { return []*dex.Instr{neg(m.At(1).Dest, m.At(0).Src(0))} },
	},
	{
		Name:    "Remove_PutGet",
		Shape:   [][]dex.Opcode{_Iputs, _Igets, _AnyPseudo},
		Guard:   putGetGuard,
		Rewrite: func(m *Match) []*dex.Instr { return []*dex.Instr{m.At(0).Clone()} },
	},
	{
		Name:    "Arith_DivLit_Pos1",
		Shape:   [][]dex.Opcode{_DivLit, _Pseudo},
		Guard:   litIs(1),
		Rewrite: func(m *Match) []*dex.Instr { return []*dex.Instr{move(m.At(1).Dest, m.At(0).Src(0))} },
	},
	{
		Name:  "Arith_RemLit_Unit",
		Shape: [][]dex.Opcode{_RemLit, _Pseudo},
		Guard: func(m *Match) bool { return m.At(0).Lit == 1 || m.At(0).Lit == -1 },
		Rewrite: func(m *Match) []*dex.Instr {
			return []*dex.Instr{dex.New(dex.OP_const).SetDest(m.At(1).Dest).SetLit(0)}
		},
	},
	{
		Name:    "Arith_RsubLit_0",
		Shape:   [][]dex.Opcode{_RsubLit},
		Guard:   litIs(0),
		Rewrite: func(m *Match) []*dex.Instr { return []*dex.Instr{neg(m.At(0).Dest, m.At(0).Src(0))} },
	},
	{
		Name:  "Arith_MulLit_Pow2",
		Shape: [][]dex.Opcode{_MulLit},
		Guard: func(m *Match) bool { return log2(m.At(0).Lit) > 0 },
		Rewrite: func(m *Match) []*dex.Instr {
			p := m.At(0)
			return []*dex.Instr{dex.New(dex.OP_shl_int_lit8).SetDest(p.Dest).SetSrcs(p.Src(0)).SetLit(log2(p.Lit))}
		},
	},
	{
		Name:    "Arith_BitLit_Identity",
		Shape:   [][]dex.Opcode{_BitLit},
		Guard:   bitIdentity,
		Rewrite: func(m *Match) []*dex.Instr { return []*dex.Instr{move(m.At(0).Dest, m.At(0).Src(0))} },
	},
	{
		Name:    "Remove_SelfMove",
		Shape:   [][]dex.Opcode{_Moves},
		Guard:   func(m *Match) bool { return m.At(0).Dest == m.At(0).Src(0) },
		Rewrite: func(m *Match) []*dex.Instr { return nil },
	},
}
