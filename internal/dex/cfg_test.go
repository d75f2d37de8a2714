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

func label(v int64) *Instr { return New(MOP_target).SetLit(v) }
func ret(r Reg) *Instr     { return New(OP_return).SetSrcs(r) }

func blockIds(bbs []*BasicBlock) []int {
	ids := make([]int, len(bbs))
	for i, v := range bbs {
		ids[i] = v.Id
	}
	return ids
}

func TestCFG_Boundaries(t *testing.T) {
	insns := []*Instr{
		konst(0, 1),
		New(OP_if_eqz).SetSrcs(0).SetLit(1),
		konst(1, 2),
		label(1),
		label(2),
		ret(0),
	}
	require.Equal(t, []bool{true, false, true, true, false, false}, Boundaries(insns))
}

func TestCFG_Regions(t *testing.T) {
	insns := []*Instr{
		konst(0, 1),
		New(MOP_try_start).SetLit(3),
		konst(0, 2),
		New(MOP_try_end).SetLit(3),
		ret(0),
	}
	regions, err := Regions(insns)
	require.NoError(t, err)
	require.Equal(t, []int64{NoTry, 3, 3, NoTry, NoTry}, regions)

	/* malformed regions */
	_, err = Regions([]*Instr{New(MOP_try_start).SetLit(1), New(MOP_try_start).SetLit(2)})
	require.EqualError(t, err, "nested try region 2 inside 1 at 1")
	_, err = Regions([]*Instr{New(MOP_try_start).SetLit(1), New(MOP_try_end).SetLit(2)})
	require.EqualError(t, err, "try_end 2 does not close the open region at 1")
	_, err = Regions([]*Instr{New(MOP_try_start).SetLit(1)})
	require.EqualError(t, err, "try region 1 is never closed")
}

func TestCFG_Build(t *testing.T) {
	cfg, err := BuildCFG([]*Instr{
		konst(0, 1),
		New(OP_if_eqz).SetSrcs(0).SetLit(1),
		konst(1, 2),
		New(OP_goto).SetLit(2),
		label(1),
		konst(1, 3),
		label(2),
		ret(1),
		konst(2, 0),
		ret(2),
	})
	require.NoError(t, err)
	require.Len(t, cfg.Blocks, 5)
	require.Same(t, cfg.Blocks[0], cfg.Root)

	/* block layout */
	b := cfg.Blocks
	require.Equal(t, []int{0, 2, 4, 6, 8}, []int{b[0].Start, b[1].Start, b[2].Start, b[3].Start, b[4].Start})
	require.Equal(t, 1, b[1].Last()-b[1].Start)

	/* edges: branch target first, then fallthrough */
	require.Equal(t, []int{3, 2}, blockIds(b[0].Link))
	require.Equal(t, []int{4}, blockIds(b[1].Link))
	require.Equal(t, []int{4}, blockIds(b[2].Link))
	require.Empty(t, b[3].Link)
	require.Same(t, b[2], cfg.Labels[1])
	require.Same(t, b[3], cfg.Labels[2])

	/* the tail after the return is dead */
	require.Equal(t, map[int]bool{1: true, 2: true, 3: true, 4: true}, cfg.Reachable())
}

func TestCFG_TryHandler(t *testing.T) {
	cfg, err := BuildCFG([]*Instr{
		New(MOP_try_start).SetLit(1),
		konst(0, 1),
		New(MOP_try_end).SetLit(1),
		New(OP_return_void),
		New(MOP_catch).SetLit(1),
		New(OP_return_void),
	})
	require.NoError(t, err)
	require.Len(t, cfg.Blocks, 3)
	require.Equal(t, int64(1), cfg.Blocks[0].Try)
	require.Equal(t, NoTry, cfg.Blocks[1].Try)
	require.Equal(t, []int{2, 3}, blockIds(cfg.Blocks[0].Link))
	require.Same(t, cfg.Blocks[2], cfg.Catches[1])
	require.Len(t, cfg.Reachable(), 3)
}

func TestCFG_Errors(t *testing.T) {
	_, err := BuildCFG([]*Instr{New(OP_goto).SetLit(7)})
	require.EqualError(t, err, "branch to undefined label L7")
	_, err = BuildCFG([]*Instr{label(1), label(1), New(OP_return_void)})
	require.EqualError(t, err, "duplicated label L1")
	_, err = BuildCFG([]*Instr{New(MOP_catch).SetLit(1), New(MOP_catch).SetLit(1), New(OP_return_void)})
	require.EqualError(t, err, "duplicated handler for try region 1")
	_, err = BuildCFG([]*Instr{New(MOP_try_start).SetLit(1), New(OP_nop), New(MOP_try_end).SetLit(1), New(OP_return_void)})
	require.EqualError(t, err, "try region 1 has no handler")

	/* the empty stream has no blocks */
	cfg, err := BuildCFG(nil)
	require.NoError(t, err)
	require.Nil(t, cfg.Root)
	require.Empty(t, cfg.Reachable())
}
