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
	"sync"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Interning(t *testing.T) {
	reg := NewRegistry()
	foo := reg.MakeType("LFoo;")
	i32 := reg.MakeType("I")
	require.Equal(t, foo, reg.MakeType("LFoo;"))
	require.NotEqual(t, foo, i32)
	require.Equal(t, "LFoo;", reg.Type(foo))

	/* fields are keyed by owner, name and type */
	x := reg.MakeField(foo, "x", i32)
	require.Equal(t, x, reg.MakeField(foo, "x", i32))
	require.NotEqual(t, x, reg.MakeField(foo, "x", reg.MakeType("J")))
	require.NotEqual(t, x, reg.MakeField(foo, "y", i32))
	require.Equal(t, "LFoo;.x:I", reg.ShowField(x))

	/* methods are keyed by owner, name and prototype */
	args := []TypeRef{i32}
	f := reg.MakeMethod(foo, "f", Proto{Ret: i32, Args: args})
	args[0] = foo
	require.Equal(t, f, reg.MakeMethod(foo, "f", Proto{Ret: i32, Args: []TypeRef{i32}}))
	require.NotEqual(t, f, reg.MakeMethod(foo, "f", Proto{Ret: i32}))
	require.Equal(t, "LFoo;.f:(I)I", reg.ShowMethod(f))
}

func TestRegistry_Resolve(t *testing.T) {
	reg := NewRegistry()
	foo := reg.MakeType("LFoo;")
	x := reg.MakeField(foo, "x", reg.MakeType("I"))

	/* referenced, but not defined */
	_, ok := reg.ResolveField(x)
	require.False(t, ok)
	_, ok = reg.ResolveField(0)
	require.False(t, ok)
	_, ok = reg.ResolveField(x + 1)
	require.False(t, ok)

	/* defined as volatile */
	reg.MakeConcrete(x, ACC_PUBLIC|ACC_VOLATILE)
	def, ok := reg.ResolveField(x)
	require.True(t, ok)
	require.True(t, def.IsVolatile())
	require.Equal(t, "x", def.Name)
}

func TestRegistry_Arenas(t *testing.T) {
	reg := NewRegistry()
	foo := reg.MakeType("LFoo;")
	i32 := reg.MakeType("I")
	reg.MakeField(foo, "x", i32)
	reg.MakeMethod(foo, "f", Proto{Ret: i32, Args: []TypeRef{i32}})

	/* handle h lives at h-1 */
	require.Equal(t, []string{"LFoo;", "I"}, reg.Types())
	require.Equal(t, []FieldDef{{Owner: foo, Name: "x", Type: i32}}, reg.Fields())

	/* the copies do not alias the registry */
	ms := reg.Methods()
	ms[0].Proto.Args[0] = foo
	require.Equal(t, i32, reg.Method(1).Proto.Args[0])
}

func TestRegistry_InvalidHandles(t *testing.T) {
	reg := NewRegistry()
	require.False(t, reg.HasType(0))
	require.False(t, reg.HasField(1))
	require.False(t, reg.HasMethod(1))
	require.PanicsWithValue(t, "dex: empty type descriptor", func() { reg.MakeType("") })
	require.PanicsWithValue(t, "dex: invalid type handle: 3", func() { reg.Type(3) })
	require.PanicsWithValue(t, "dex: invalid field handle: 1", func() { reg.Field(1) })
	require.PanicsWithValue(t, "dex: invalid method handle: 1", func() { reg.Method(1) })
	require.PanicsWithValue(t, "dex: invalid type handle: 9", func() { reg.MakeField(9, "x", 9) })
}

func TestRegistry_Concurrent(t *testing.T) {
	var wg sync.WaitGroup
	reg := NewRegistry()
	fk := gofakeit.New(1)

	/* a pool of names with duplicates */
	names := make([]string, 64)
	for i := range names {
		names[i] = "L" + fk.Noun() + ";"
	}

	/* intern concurrently */
	got := make([][]TypeRef, 8)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for _, v := range names {
				got[i] = append(got[i], reg.MakeType(v))
			}
		}(i)
	}
	wg.Wait()

	/* every goroutine observed the same handles */
	for i := 1; i < len(got); i++ {
		require.Equal(t, got[0], got[i])
	}
	for i, v := range names {
		require.Equal(t, v, reg.Type(got[0][i]))
	}
}
