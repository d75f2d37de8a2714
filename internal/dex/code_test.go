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
	"testing"

	"github.com/stretchr/testify/require"
)

func konst(r Reg, v int64) *Instr {
	return New(OP_const).SetDest(r).SetLit(v)
}

func TestCode_Replace(t *testing.T) {
	a, b, c := konst(0, 1), konst(0, 2), konst(0, 3)
	code := NewCode(1, a, b, c)
	old := code.Instrs()

	/* splice in two, dropping one */
	x, y := konst(0, 4), konst(0, 5)
	code.Replace(1, 1, x, y)
	require.Equal(t, []*Instr{a, x, y, c}, code.Instrs())
	require.Nil(t, old[1])

	/* pure deletion and pure insertion */
	code.Replace(0, 2)
	require.Equal(t, []*Instr{y, c}, code.Instrs())
	code.Replace(2, 0, a)
	require.Equal(t, []*Instr{y, c, a}, code.Instrs())

	/* out of bounds */
	require.Panics(t, func() { code.Replace(2, 2) })
	require.Panics(t, func() { code.Replace(-1, 0) })
	require.PanicsWithValue(t, "dex: nil instruction", func() { code.Push(nil) })
}

func TestCode_SwapAndClone(t *testing.T) {
	code := NewCode(2, konst(0, 1), konst(1, 2))
	dup := code.Clone()
	require.True(t, code.Equal(dup))
	require.NotSame(t, code.At(0), dup.At(0))

	/* swapping does not affect the clone */
	old := code.Swap([]*Instr{konst(0, 9)})
	require.Len(t, old, 2)
	require.Equal(t, 1, code.Len())
	require.False(t, code.Equal(dup))
	require.True(t, EqualInstrs(old, dup.Instrs()))

	/* the register count takes part in the comparison */
	require.False(t, NewCode(1).Equal(NewCode(2)))
}

func TestCode_ForEach(t *testing.T) {
	var seen []int64
	code := NewCode(1, konst(0, 1), konst(0, 2), konst(0, 3))
	code.ForEach(func(i int, ins *Instr) bool {
		seen = append(seen, ins.Lit)
		return i < 1
	})
	require.Equal(t, []int64{1, 2}, seen)
}

func TestCode_Disassemble(t *testing.T) {
	code := NewCode(1,
		New(MOP_target).SetLit(1),
		konst(0, 7),
		New(OP_return).SetSrcs(0),
	)
	require.Equal(t, ".target 1\n\tconst v0, 7\n\treturn v0", code.Disassemble(nil))
}
