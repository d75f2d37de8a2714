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
)

type Opcode uint16

const (
	OP_nop Opcode = iota

	/* moves */
	OP_move
	OP_move_wide
	OP_move_object
	OP_move_result
	OP_move_result_wide
	OP_move_result_object

	/* returns */
	OP_return_void
	OP_return
	OP_return_wide
	OP_return_object

	/* constants and allocation */
	OP_const
	OP_const_wide
	OP_new_instance
	OP_throw

	/* branches */
	OP_goto
	OP_if_eq
	OP_if_ne
	OP_if_lt
	OP_if_ge
	OP_if_gt
	OP_if_le
	OP_if_eqz
	OP_if_nez
	OP_if_ltz
	OP_if_gez
	OP_if_gtz
	OP_if_lez

	/* instance field access */
	OP_iget
	OP_iget_wide
	OP_iget_object
	OP_iget_boolean
	OP_iget_byte
	OP_iget_char
	OP_iget_short
	OP_iput
	OP_iput_wide
	OP_iput_object
	OP_iput_boolean
	OP_iput_byte
	OP_iput_char
	OP_iput_short

	/* invocations */
	OP_invoke_virtual
	OP_invoke_direct
	OP_invoke_static

	/* unary and binary arithmetic */
	OP_neg_int
	OP_not_int
	OP_neg_long
	OP_add_int
	OP_sub_int
	OP_mul_int
	OP_div_int
	OP_rem_int

	/* arithmetic with 16-bit literals */
	OP_add_int_lit16
	OP_rsub_int
	OP_mul_int_lit16
	OP_div_int_lit16
	OP_rem_int_lit16
	OP_and_int_lit16
	OP_or_int_lit16
	OP_xor_int_lit16

	/* arithmetic with 8-bit literals */
	OP_add_int_lit8
	OP_rsub_int_lit8
	OP_mul_int_lit8
	OP_div_int_lit8
	OP_rem_int_lit8
	OP_and_int_lit8
	OP_or_int_lit8
	OP_xor_int_lit8
	OP_shl_int_lit8
	OP_shr_int_lit8
	OP_ushr_int_lit8

	/* internal pseudo instructions */
	IOP_move_result_pseudo
	IOP_move_result_pseudo_wide
	IOP_move_result_pseudo_object

	/* in-stream markers, not executable */
	MOP_target
	MOP_try_start
	MOP_try_end
	MOP_catch

	_OP_max
)

// RefKind is the kind of symbolic reference an opcode carries.
type RefKind uint8

const (
	RefNone RefKind = iota
	RefType
	RefField
	RefMethod
)

func (self RefKind) String() string {
	switch self {
	case RefNone:
		return "none"
	case RefType:
		return "type"
	case RefField:
		return "field"
	case RefMethod:
		return "method"
	default:
		return fmt.Sprintf("RefKind(%d)", self)
	}
}

const (
	_F_dest uint16 = 1 << iota
	_F_lit
	_F_branch
	_F_term
	_F_pseudo
	_F_wdest
	_F_wsrc
	_F_marker
	_F_varargs
)

const (
	_F_arith = _F_dest | _F_lit
	_F_cond  = _F_branch | _F_lit
)

type _OpInfo struct {
	name  string
	srcs  int
	ref   RefKind
	flags uint16
}

var _OpTab = [_OP_max]_OpInfo{
	OP_nop:                        {"nop", 0, RefNone, 0},
	OP_move:                       {"move", 1, RefNone, _F_dest},
	OP_move_wide:                  {"move-wide", 1, RefNone, _F_dest | _F_wdest | _F_wsrc},
	OP_move_object:                {"move-object", 1, RefNone, _F_dest},
	OP_move_result:                {"move-result", 0, RefNone, _F_dest},
	OP_move_result_wide:           {"move-result-wide", 0, RefNone, _F_dest | _F_wdest},
	OP_move_result_object:         {"move-result-object", 0, RefNone, _F_dest},
	OP_return_void:                {"return-void", 0, RefNone, _F_term},
	OP_return:                     {"return", 1, RefNone, _F_term},
	OP_return_wide:                {"return-wide", 1, RefNone, _F_term | _F_wsrc},
	OP_return_object:              {"return-object", 1, RefNone, _F_term},
	OP_const:                      {"const", 0, RefNone, _F_dest | _F_lit},
	OP_const_wide:                 {"const-wide", 0, RefNone, _F_dest | _F_lit | _F_wdest},
	OP_new_instance:               {"new-instance", 0, RefType, _F_pseudo},
	OP_throw:                      {"throw", 1, RefNone, _F_term},
	OP_goto:                       {"goto", 0, RefNone, _F_cond | _F_term},
	OP_if_eq:                      {"if-eq", 2, RefNone, _F_cond},
	OP_if_ne:                      {"if-ne", 2, RefNone, _F_cond},
	OP_if_lt:                      {"if-lt", 2, RefNone, _F_cond},
	OP_if_ge:                      {"if-ge", 2, RefNone, _F_cond},
	OP_if_gt:                      {"if-gt", 2, RefNone, _F_cond},
	OP_if_le:                      {"if-le", 2, RefNone, _F_cond},
	OP_if_eqz:                     {"if-eqz", 1, RefNone, _F_cond},
	OP_if_nez:                     {"if-nez", 1, RefNone, _F_cond},
	OP_if_ltz:                     {"if-ltz", 1, RefNone, _F_cond},
	OP_if_gez:                     {"if-gez", 1, RefNone, _F_cond},
	OP_if_gtz:                     {"if-gtz", 1, RefNone, _F_cond},
	OP_if_lez:                     {"if-lez", 1, RefNone, _F_cond},
	OP_iget:                       {"iget", 1, RefField, _F_pseudo},
	OP_iget_wide:                  {"iget-wide", 1, RefField, _F_pseudo},
	OP_iget_object:                {"iget-object", 1, RefField, _F_pseudo},
	OP_iget_boolean:               {"iget-boolean", 1, RefField, _F_pseudo},
	OP_iget_byte:                  {"iget-byte", 1, RefField, _F_pseudo},
	OP_iget_char:                  {"iget-char", 1, RefField, _F_pseudo},
	OP_iget_short:                 {"iget-short", 1, RefField, _F_pseudo},
	OP_iput:                       {"iput", 2, RefField, 0},
	OP_iput_wide:                  {"iput-wide", 2, RefField, _F_wsrc},
	OP_iput_object:                {"iput-object", 2, RefField, 0},
	OP_iput_boolean:               {"iput-boolean", 2, RefField, 0},
	OP_iput_byte:                  {"iput-byte", 2, RefField, 0},
	OP_iput_char:                  {"iput-char", 2, RefField, 0},
	OP_iput_short:                 {"iput-short", 2, RefField, 0},
	OP_invoke_virtual:             {"invoke-virtual", 0, RefMethod, _F_varargs},
	OP_invoke_direct:              {"invoke-direct", 0, RefMethod, _F_varargs},
	OP_invoke_static:              {"invoke-static", 0, RefMethod, _F_varargs},
	OP_neg_int:                    {"neg-int", 1, RefNone, _F_dest},
	OP_not_int:                    {"not-int", 1, RefNone, _F_dest},
	OP_neg_long:                   {"neg-long", 1, RefNone, _F_dest | _F_wdest | _F_wsrc},
	OP_add_int:                    {"add-int", 2, RefNone, _F_dest},
	OP_sub_int:                    {"sub-int", 2, RefNone, _F_dest},
	OP_mul_int:                    {"mul-int", 2, RefNone, _F_dest},
	OP_div_int:                    {"div-int", 2, RefNone, _F_pseudo},
	OP_rem_int:                    {"rem-int", 2, RefNone, _F_pseudo},
	OP_add_int_lit16:              {"add-int/lit16", 1, RefNone, _F_arith},
	OP_rsub_int:                   {"rsub-int", 1, RefNone, _F_arith},
	OP_mul_int_lit16:              {"mul-int/lit16", 1, RefNone, _F_arith},
	OP_div_int_lit16:              {"div-int/lit16", 1, RefNone, _F_lit | _F_pseudo},
	OP_rem_int_lit16:              {"rem-int/lit16", 1, RefNone, _F_lit | _F_pseudo},
	OP_and_int_lit16:              {"and-int/lit16", 1, RefNone, _F_arith},
	OP_or_int_lit16:               {"or-int/lit16", 1, RefNone, _F_arith},
	OP_xor_int_lit16:              {"xor-int/lit16", 1, RefNone, _F_arith},
	OP_add_int_lit8:               {"add-int/lit8", 1, RefNone, _F_arith},
	OP_rsub_int_lit8:              {"rsub-int/lit8", 1, RefNone, _F_arith},
	OP_mul_int_lit8:               {"mul-int/lit8", 1, RefNone, _F_arith},
	OP_div_int_lit8:               {"div-int/lit8", 1, RefNone, _F_lit | _F_pseudo},
	OP_rem_int_lit8:               {"rem-int/lit8", 1, RefNone, _F_lit | _F_pseudo},
	OP_and_int_lit8:               {"and-int/lit8", 1, RefNone, _F_arith},
	OP_or_int_lit8:                {"or-int/lit8", 1, RefNone, _F_arith},
	OP_xor_int_lit8:               {"xor-int/lit8", 1, RefNone, _F_arith},
	OP_shl_int_lit8:               {"shl-int/lit8", 1, RefNone, _F_arith},
	OP_shr_int_lit8:               {"shr-int/lit8", 1, RefNone, _F_arith},
	OP_ushr_int_lit8:              {"ushr-int/lit8", 1, RefNone, _F_arith},
	IOP_move_result_pseudo:        {"move-result-pseudo", 0, RefNone, _F_dest},
	IOP_move_result_pseudo_wide:   {"move-result-pseudo-wide", 0, RefNone, _F_dest | _F_wdest},
	IOP_move_result_pseudo_object: {"move-result-pseudo-object", 0, RefNone, _F_dest},
	MOP_target:                    {".target", 0, RefNone, _F_marker | _F_lit},
	MOP_try_start:                 {".try_start", 0, RefNone, _F_marker | _F_lit},
	MOP_try_end:                   {".try_end", 0, RefNone, _F_marker | _F_lit},
	MOP_catch:                     {".catch", 0, RefNone, _F_marker | _F_lit},
}

var _OpNames map[string]Opcode

func init() {
	_OpNames = make(map[string]Opcode, len(_OpTab))
	for op, info := range _OpTab {
		if info.name != "" {
			_OpNames[info.name] = Opcode(op)
		}
	}
}

// LookupOpcode finds an opcode by its mnemonic.
func LookupOpcode(name string) (Opcode, bool) {
	op, ok := _OpNames[name]
	return op, ok
}

func (self Opcode) info() *_OpInfo {
	if self >= _OP_max || _OpTab[self].name == "" {
		panic(fmt.Sprintf("dex: invalid opcode: %d", self))
	} else {
		return &_OpTab[self]
	}
}

func (self Opcode) String() string {
	if self < _OP_max && _OpTab[self].name != "" {
		return _OpTab[self].name
	} else {
		return fmt.Sprintf("Opcode(%d)", self)
	}
}

func (self Opcode) Valid() bool      { return self < _OP_max && _OpTab[self].name != "" }
func (self Opcode) HasDest() bool    { return self.info().flags&_F_dest != 0 }
func (self Opcode) HasLit() bool     { return self.info().flags&_F_lit != 0 }
func (self Opcode) RefKind() RefKind { return self.info().ref }
func (self Opcode) IsBranch() bool   { return self.info().flags&_F_branch != 0 }
func (self Opcode) IsMarker() bool   { return self.info().flags&_F_marker != 0 }
func (self Opcode) WideDest() bool   { return self.info().flags&_F_wdest != 0 }
func (self Opcode) WideSrc() bool    { return self.info().flags&_F_wsrc != 0 }
func (self Opcode) Variadic() bool   { return self.info().flags&_F_varargs != 0 }

// Arity returns the fixed number of source registers, or -1 for variadic opcodes.
func (self Opcode) Arity() int {
	if p := self.info(); p.flags&_F_varargs != 0 {
		return -1
	} else {
		return p.srcs
	}
}

// EndsBlock reports whether control may not fall through to the next instruction,
// either because the opcode is a branch or because it leaves the method.
func (self Opcode) EndsBlock() bool {
	return self.info().flags&(_F_branch|_F_term) != 0
}

// IsTerminal reports whether the opcode never falls through.
func (self Opcode) IsTerminal() bool {
	return self.info().flags&_F_term != 0
}

// NeedsPseudoResult reports whether the result of the opcode is only
// observable through an immediately following move-result-pseudo.
func (self Opcode) NeedsPseudoResult() bool {
	return self.info().flags&_F_pseudo != 0
}

// IsPseudoResult reports whether the opcode is one of the move-result-pseudo family.
func (self Opcode) IsPseudoResult() bool {
	return self >= IOP_move_result_pseudo && self <= IOP_move_result_pseudo_object
}

func (self Opcode) IsIget() bool { return self >= OP_iget && self <= OP_iget_short }
func (self Opcode) IsIput() bool { return self >= OP_iput && self <= OP_iput_short }

// Width is the access width of a field opcode, shared between the get and
// put flavors (iget-byte and iput-byte have the same Width).
type Width uint8

const (
	W_none Width = iota
	W_int
	W_wide
	W_object
	W_boolean
	W_byte
	W_char
	W_short
)

// FieldWidth returns the access width of an iget/iput opcode, or W_none.
func (self Opcode) FieldWidth() Width {
	switch {
	case self.IsIget():
		return Width(self-OP_iget) + W_int
	case self.IsIput():
		return Width(self-OP_iput) + W_int
	default:
		return W_none
	}
}

// PseudoResultFor returns the move-result-pseudo flavor matching a field width.
func PseudoResultFor(w Width) Opcode {
	switch w {
	case W_wide:
		return IOP_move_result_pseudo_wide
	case W_object:
		return IOP_move_result_pseudo_object
	case W_none:
		panic("dex: no pseudo result for W_none")
	default:
		return IOP_move_result_pseudo
	}
}
