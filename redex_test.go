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

package redex

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/yimq/redex/internal/dex"
	"github.com/yimq/redex/internal/dex/asm"
	"github.com/yimq/redex/internal/opts"
)

const testProgram = `
.class public LFoo;
.field public count:I
.method public static run:()I registers 8
	new-instance LFoo;
	move-result-pseudo-object v5
	const v0, 22
	iput v0, v5, LFoo;.count:I
	iget v5, LFoo;.count:I
	move-result-pseudo v0
	mul-int/lit8 v1, v0, 1
	div-int/lit16 v1, -1
	move-result-pseudo v2
	return v2
.end method
.end class
`

const expectedProgram = `
.class public LFoo;
.method public static run:()I registers 8
	new-instance LFoo;
	move-result-pseudo-object v5
	const v0, 22
	iput v0, v5, LFoo;.count:I
	move v1, v0
	neg-int v2, v1
	return v2
.end method
.end class
`

func load(t *testing.T, src string) (*dex.Registry, dex.Scope) {
	reg := dex.NewRegistry()
	scope, err := asm.ParseString(reg, src)
	require.NoError(t, err)
	return reg, scope
}

func body(t *testing.T, reg *dex.Registry, scope dex.Scope) string {
	return scope[0].Classes[0].Methods()[0].Code.Disassemble(reg)
}

func TestOptimize(t *testing.T) {
	reg, scope := load(t, testProgram)
	rep, err := Optimize(reg, scope, WithLogger(zaptest.NewLogger(t)), WithWorkers(2))
	require.NoError(t, err)
	require.Len(t, rep.Passes, 1)
	require.Equal(t, "PeepholePass", rep.Passes[0].Name)
	require.Equal(t, 1, rep.Passes[0].Changed)
	require.Equal(t, 1, rep.Metric("Remove_PutGet"))
	require.Equal(t, 1, rep.Metric("Arith_MulLit_Pos1"))
	require.Equal(t, 1, rep.Metric("Arith_DivLit_Neg1"))
	require.Equal(t, 3, rep.Metric("instructions_removed"))

	/* compare against the expected body */
	xreg, xscope := load(t, expectedProgram)
	require.Equal(t, body(t, xreg, xscope), body(t, reg, scope))

	/* a second run changes nothing */
	rep, err = Optimize(reg, scope)
	require.NoError(t, err)
	require.Equal(t, 0, rep.Passes[0].Changed)
}

func TestOptimize_Config(t *testing.T) {
	conf, err := opts.ParseConfig(`
passes = ["PeepholePass"]

[pass.PeepholePass]
disabled_rules = ["Remove_PutGet"]
`)
	require.NoError(t, err)
	reg, scope := load(t, testProgram)
	rep, err := Optimize(reg, scope, WithConfig(conf), WithTestingMode(true))
	require.NoError(t, err)
	require.Equal(t, 0, rep.Metric("Remove_PutGet"))
	require.Equal(t, 1, rep.Metric("instructions_removed"))

	/* rules that do not exist */
	conf.Pass["PeepholePass"]["disabled_rules"] = []interface{}{"No_Such_Rule"}
	_, err = Optimize(reg, scope, WithConfig(conf))
	var pe *PassError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, "PeepholePass", pe.Pass)

	/* passes that do not exist */
	conf, err = opts.ParseConfig(`passes = ["NoSuchPass"]`)
	require.NoError(t, err)
	_, err = Optimize(reg, scope, WithConfig(conf))
	require.Equal(t, UnknownPassError{Name: "NoSuchPass"}, err)
}

func TestOptimize_Precondition(t *testing.T) {
	reg, scope := load(t, `
.class LFoo;
.method static bad:()V registers 1
	move v0, v3
.end method
.end class
`)
	_, err := Optimize(reg, scope)
	var pe *PreconditionError
	require.ErrorAs(t, err, &pe)
	var ie *InstrError
	require.ErrorAs(t, err, &ie)
	require.Equal(t, 0, ie.Pos)
}

func TestOptions(t *testing.T) {
	require.Panics(t, func() { WithWorkers(0) })
	require.Panics(t, func() { WithLogger(nil) })
	old := SetDefaultWorkers(3)
	defer SetDefaultWorkers(old)
	o := opts.GetDefaultOptions()
	require.Equal(t, 3, o.Workers)
	WithWorkers(5)(&o)
	WithTestingMode(true)(&o)
	require.Equal(t, 5, o.Workers)
	require.True(t, o.TestingMode)
}

func TestPipeline(t *testing.T) {
	ps, err := Pipeline()
	require.NoError(t, err)
	require.Len(t, ps, 1)
	require.Equal(t, PassNames(), []string{ps[0].Name()})
	_, err = NewPass("Nope")
	require.EqualError(t, err, "unknown pass: Nope")
}
