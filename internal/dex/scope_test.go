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

func TestScope_Class(t *testing.T) {
	reg := NewRegistry()
	foo := reg.MakeType("LFoo;")
	bar := reg.MakeType("LBar;")
	void := reg.MakeType("V")
	cls := NewClass(reg, foo, ACC_PUBLIC)
	require.Equal(t, "LFoo;", cls.Name())
	require.Same(t, reg, cls.Registry())

	/* methods */
	f := &Method{Ref: reg.MakeMethod(foo, "f", Proto{Ret: void}), Code: NewCode(0)}
	g := &Method{Ref: reg.MakeMethod(foo, "g", Proto{Ret: void}), Access: ACC_ABSTRACT}
	require.NoError(t, cls.AddMethod(f))
	require.NoError(t, cls.AddMethod(g))
	require.EqualError(t, cls.AddMethod(&Method{Ref: f.Ref}), "duplicated method: LFoo;.f:()V")
	require.EqualError(t, cls.AddMethod(&Method{Ref: reg.MakeMethod(bar, "f", Proto{Ret: void})}), "method LBar;.f:()V does not belong to class LFoo;")
	require.Equal(t, []*Method{f, g}, cls.Methods())
	require.Same(t, g, cls.FindMethod(g.Ref))
	require.True(t, f.IsConcrete())
	require.False(t, g.IsConcrete())

	/* removal */
	require.True(t, cls.RemoveMethod(f.Ref))
	require.False(t, cls.RemoveMethod(f.Ref))
	require.Nil(t, cls.FindMethod(f.Ref))
	require.Equal(t, []*Method{g}, cls.Methods())
}

func TestScope_Fields(t *testing.T) {
	reg := NewRegistry()
	foo := reg.MakeType("LFoo;")
	cls := NewClass(reg, foo, 0)
	x := reg.MakeField(foo, "x", reg.MakeType("I"))
	y := reg.MakeField(reg.MakeType("LBar;"), "y", reg.MakeType("I"))

	/* adding a field defines it */
	require.NoError(t, cls.AddField(x, ACC_VOLATILE))
	def, ok := reg.ResolveField(x)
	require.True(t, ok)
	require.True(t, def.IsVolatile())
	require.NotNil(t, cls.FindField(x))
	require.Len(t, cls.Fields(), 1)

	/* errors */
	require.EqualError(t, cls.AddField(x, 0), "duplicated field: LFoo;.x:I")
	require.EqualError(t, cls.AddField(y, 0), "field LBar;.y:I does not belong to class LFoo;")
	require.Nil(t, cls.FindField(y))
	require.Panics(t, func() { NewClass(reg, 99, 0) })
}

func TestScope_ForEachMethod(t *testing.T) {
	var seen []string
	reg := NewRegistry()
	void := reg.MakeType("V")

	/* two stores, declaration order */
	var scope Scope
	for _, st := range []struct {
		name    string
		classes []string
	}{
		{"classes", []string{"LA;", "LB;"}},
		{"secondary", []string{"LC;"}},
	} {
		s := NewStore(st.name)
		for _, v := range st.classes {
			vt := reg.MakeType(v)
			cls := NewClass(reg, vt, 0)
			require.NoError(t, cls.AddMethod(&Method{Ref: reg.MakeMethod(vt, "m", Proto{Ret: void})}))
			require.NoError(t, cls.AddMethod(&Method{Ref: reg.MakeMethod(vt, "n", Proto{Ret: void})}))
			s.AddClass(cls)
		}
		scope = append(scope, s)
	}

	/* visit */
	scope.ForEachMethod(func(cls *Class, m *Method) {
		seen = append(seen, reg.ShowMethod(m.Ref))
	})
	require.Equal(t, []string{
		"LA;.m:()V", "LA;.n:()V",
		"LB;.m:()V", "LB;.n:()V",
		"LC;.m:()V", "LC;.n:()V",
	}, seen)
}

func TestAccessFlags(t *testing.T) {
	require.Equal(t, "public static final", (ACC_PUBLIC | ACC_STATIC | ACC_FINAL).String())
	require.Equal(t, "", AccessFlags(0).String())
	acc, ok := LookupAccess("volatile")
	require.True(t, ok)
	require.Equal(t, ACC_VOLATILE, acc)
	_, ok = LookupAccess("sealed")
	require.False(t, ok)
}
