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
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func TestVerify_Valid(t *testing.T) {
	reg := NewRegistry()
	foo := reg.MakeType("LFoo;")
	fld := reg.MakeField(foo, "x", reg.MakeType("J"))
	code := NewCode(4,
		New(OP_iget_wide).SetSrcs(0).SetField(fld),
		New(IOP_move_result_pseudo_wide).SetDest(2),
		New(OP_return_wide).SetSrcs(2),
	)
	require.NoError(t, Verify(code, reg))
	require.NoError(t, Verify(NewCode(0), nil))
}

func TestVerify_CollectsEveryError(t *testing.T) {
	err := Verify(NewCode(2,
		konst(5, 1),
		New(OP_div_int_lit8).SetSrcs(0).SetLit(2),
		New(OP_goto).SetLit(9),
	), nil)
	errs := multierr.Errors(err)
	require.Len(t, errs, 3)
	require.EqualError(t, errs[0], "instruction 0 (const v5, 1): register v5 out of range (2 registers)")
	require.EqualError(t, errs[1], "instruction 1 (div-int/lit8 v0, 2): not followed by move-result-pseudo")
	require.EqualError(t, errs[2], "branch to undefined label L9")

	/* the first one is a positioned instruction error */
	var ie *InstrError
	require.True(t, errors.As(err, &ie))
	require.Equal(t, 0, ie.Pos)
}

func TestVerify_Errors(t *testing.T) {
	reg := NewRegistry()
	cases := []struct {
		name string
		code *Code
		err  string
	}{
		{
			name: "OrphanPseudo",
			code: NewCode(1, New(IOP_move_result_pseudo).SetDest(0), New(OP_return_void)),
			err:  "instruction 0 (move-result-pseudo v0): does not follow an instruction with a pseudo result",
		},
		{
			name: "UnknownField",
			code: NewCode(1, New(OP_iget).SetSrcs(0).SetField(42), New(IOP_move_result_pseudo).SetDest(0), New(OP_return_void)),
			err:  "instruction 0 (iget v0, #42): unknown field #42",
		},
		{
			name: "Malformed",
			code: NewCode(1, &Instr{Op: OP_move}, New(OP_return_void)),
			err:  "instruction 0 (move v0): move takes 1 source registers, got 0",
		},
		{
			name: "WideUpperHalf",
			code: NewCode(2, New(OP_const_wide).SetDest(1).SetLit(0), New(OP_return_void)),
			err:  "instruction 0 (const-wide v1, 0): register v2 out of range (2 registers)",
		},
		{
			name: "WideLastRegister",
			code: NewCode(2, New(OP_const_wide).SetDest(math.MaxUint32).SetLit(0), New(OP_return_void)),
			err:  "instruction 0 (const-wide v4294967295, 0): const-wide: wide register v4294967295 has no upper half",
		},
		{
			name: "UnclosedTry",
			code: NewCode(0, New(MOP_try_start).SetLit(1), New(OP_return_void)),
			err:  "try region 1 is never closed",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.EqualError(t, Verify(tc.code, reg), tc.err)
		})
	}
}
