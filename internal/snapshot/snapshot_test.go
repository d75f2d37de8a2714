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

package snapshot

import (
	"context"
	"testing"

	"github.com/apache/thrift/lib/go/thrift"
	"github.com/stretchr/testify/require"

	"github.com/yimq/redex/internal/dex"
	"github.com/yimq/redex/internal/dex/asm"
)

const testProgram = `
.store classes

.class public LFoo;
.field public count:I
.field volatile public flag:Z
.method public static run:(IJ)V registers 8
	new-instance LFoo;
	move-result-pseudo-object v5
	const v0, 22
	iput v0, v5, LFoo;.count:I
	iget v5, LFoo;.count:I
	move-result-pseudo v0
	.try_start 1
	invoke-static {v0, v1}, LFoo;.helper:(I)I
	.try_end 1
	if-eqz v0, :L1
	return-void
	.target 1
	return-void
	.catch 1
	return-void
.end method
.method public static helper:(I)I registers 2
	mul-int/lit8 v0, v1, -1
	return v0
.end method
.method public abstract nothing:()V
.end method
.end class

.store secondary

.class public LBar; extends LFoo;
.end class
`

func TestSnapshot_RoundTrip(t *testing.T) {
	reg := dex.NewRegistry()
	scope, err := asm.ParseString(reg, testProgram)
	require.NoError(t, err)

	/* encode and decode */
	buf, err := Encode(reg, scope)
	require.NoError(t, err)
	reg2, scope2, err := Decode(buf)
	require.NoError(t, err)

	/* the registry tables and the program are the same */
	require.Equal(t, reg.Types(), reg2.Types())
	require.Equal(t, reg.Fields(), reg2.Fields())
	require.Equal(t, reg.Methods(), reg2.Methods())
	require.Equal(t, asm.Sprint(reg, scope), asm.Sprint(reg2, scope2))
	require.Len(t, scope2, 2)
	require.Equal(t, "secondary", scope2[1].Name)

	/* volatility survives */
	def, ok := reg2.ResolveField(reg2.MakeField(reg2.MakeType("LFoo;"), "flag", reg2.MakeType("Z")))
	require.True(t, ok)
	require.True(t, def.IsVolatile())

	/* and the code still verifies */
	scope2.ForEachMethod(func(cls *dex.Class, m *dex.Method) {
		if m.Code != nil {
			require.NoError(t, dex.Verify(m.Code, reg2))
		}
	})
}

func TestSnapshot_Truncated(t *testing.T) {
	reg := dex.NewRegistry()
	scope, err := asm.ParseString(reg, testProgram)
	require.NoError(t, err)
	buf, err := Encode(reg, scope)
	require.NoError(t, err)
	for _, n := range []int{0, 1, len(buf) / 3, len(buf) / 2, len(buf) - 1} {
		_, _, err = Decode(buf[:n])
		require.Error(t, err, "decoding %d of %d bytes", n, len(buf))
	}
}

func encodeRaw(t *testing.T, fn func(w *_Writer)) []byte {
	mm := thrift.NewTMemoryBuffer()
	w := &_Writer{p: thrift.NewTBinaryProtocolTransport(mm)}
	fn(w)
	require.NoError(t, w.err)
	require.NoError(t, w.p.Flush(context.Background()))
	return mm.Bytes()
}

func TestSnapshot_InvalidPrograms(t *testing.T) {
	var fe *FormatError

	/* wrong version */
	buf := encodeRaw(t, func(w *_Writer) {
		w.begin("Program")
		w.i32("version", 1, Version+1)
		w.end()
	})
	_, _, err := Decode(buf)
	require.ErrorAs(t, err, &fe)

	/* unknown fields are skipped */
	buf = encodeRaw(t, func(w *_Writer) {
		w.begin("Program")
		w.i32("version", 1, Version)
		w.str("comment", 99, "ignored")
		w.end()
	})
	reg, scope, err := Decode(buf)
	require.NoError(t, err)
	require.Empty(t, scope)
	require.Empty(t, reg.Types())

	/* duplicated types */
	buf = encodeRaw(t, func(w *_Writer) {
		w.begin("Program")
		w.i32("version", 1, Version)
		w.list("types", 2, thrift.STRING, 2, func(int) { w.elemString("I") })
		w.end()
	})
	_, _, err = Decode(buf)
	require.ErrorAs(t, err, &fe)

	/* a field with a dangling type handle */
	buf = encodeRaw(t, func(w *_Writer) {
		w.begin("Program")
		w.i32("version", 1, Version)
		w.list("types", 2, thrift.STRING, 1, func(int) { w.elemString("LFoo;") })
		w.list("fields", 3, thrift.STRUCT, 1, func(int) {
			w.fieldDef(&dex.FieldDef{Owner: 1, Name: "x", Type: 7})
		})
		w.end()
	})
	_, _, err = Decode(buf)
	require.ErrorAs(t, err, &fe)

	/* an unknown opcode */
	buf = encodeRaw(t, func(w *_Writer) {
		w.begin("Code")
		w.list("insns", 2, thrift.STRUCT, 1, func(int) {
			w.begin("Instr")
			w.str("op", 1, "frobnicate")
			w.end()
		})
		w.end()
	})
	mm := thrift.NewTMemoryBuffer()
	_, _ = mm.Write(buf)
	rd := &_Reader{p: thrift.NewTBinaryProtocolTransport(mm), reg: dex.NewRegistry()}
	_, err = rd.code()
	require.ErrorAs(t, err, &fe)
	require.Contains(t, err.Error(), "frobnicate")
}
