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
	"strings"
	"sync"
)

// Handles into a Registry. The zero value of every handle means "no reference".
type (
	TypeRef   uint32
	FieldRef  uint32
	MethodRef uint32
)

// Proto is a method prototype: return type plus argument types.
type Proto struct {
	Ret  TypeRef
	Args []TypeRef
}

// FieldDef is the interned definition behind a FieldRef.
type FieldDef struct {
	Owner    TypeRef
	Name     string
	Type     TypeRef
	Access   AccessFlags
	Concrete bool
}

// IsVolatile reports whether reads and writes of the field must reach memory.
func (self *FieldDef) IsVolatile() bool {
	return self.Access&ACC_VOLATILE != 0
}

// MethodDef is the interned definition behind a MethodRef.
type MethodDef struct {
	Owner TypeRef
	Name  string
	Proto Proto
}

type _FieldKey struct {
	owner TypeRef
	name  string
	vt    TypeRef
}

type _MethodKey struct {
	owner TypeRef
	name  string
	proto string
}

// Registry interns types, fields and methods. Handles are stable for the
// lifetime of the registry; definitions are stored in append-only arenas.
//
// A Registry is shared by every component of a run and must be treated as
// read-only while a pass is executing.
type Registry struct {
	mu      sync.RWMutex
	types   []string
	fields  []FieldDef
	methods []MethodDef
	typeIdx map[string]TypeRef
	fldIdx  map[_FieldKey]FieldRef
	mthIdx  map[_MethodKey]MethodRef
}

func NewRegistry() *Registry {
	return &Registry{
		typeIdx: make(map[string]TypeRef),
		fldIdx:  make(map[_FieldKey]FieldRef),
		mthIdx:  make(map[_MethodKey]MethodRef),
	}
}

// MakeType interns a type descriptor such as "I", "J" or "Lcom/foo/Bar;".
func (self *Registry) MakeType(desc string) TypeRef {
	if desc == "" {
		panic("dex: empty type descriptor")
	}

	/* fast path */
	self.mu.RLock()
	t, ok := self.typeIdx[desc]
	self.mu.RUnlock()

	/* already interned */
	if ok {
		return t
	}

	/* slow path, check again under the write lock */
	self.mu.Lock()
	defer self.mu.Unlock()
	if t, ok = self.typeIdx[desc]; ok {
		return t
	}

	/* allocate a new handle */
	self.types = append(self.types, desc)
	t = TypeRef(len(self.types))
	self.typeIdx[desc] = t
	return t
}

// MakeField interns a field reference. It does not make the field concrete.
func (self *Registry) MakeField(owner TypeRef, name string, vt TypeRef) FieldRef {
	self.mustType(owner)
	self.mustType(vt)
	key := _FieldKey{owner, name, vt}

	/* check for existing fields */
	self.mu.Lock()
	defer self.mu.Unlock()
	if f, ok := self.fldIdx[key]; ok {
		return f
	}

	/* allocate a new handle */
	self.fields = append(self.fields, FieldDef{Owner: owner, Name: name, Type: vt})
	f := FieldRef(len(self.fields))
	self.fldIdx[key] = f
	return f
}

// MakeMethod interns a method reference.
func (self *Registry) MakeMethod(owner TypeRef, name string, proto Proto) MethodRef {
	self.mustType(owner)
	self.mustType(proto.Ret)
	key := _MethodKey{owner, name, self.protoString(proto)}

	/* check for existing methods */
	self.mu.Lock()
	defer self.mu.Unlock()
	if m, ok := self.mthIdx[key]; ok {
		return m
	}

	/* copy the argument list so callers can't alias it */
	args := append([]TypeRef(nil), proto.Args...)
	self.methods = append(self.methods, MethodDef{Owner: owner, Name: name, Proto: Proto{proto.Ret, args}})
	m := MethodRef(len(self.methods))
	self.mthIdx[key] = m
	return m
}

// MakeConcrete resolves a field against its declaring class with the given access flags.
func (self *Registry) MakeConcrete(f FieldRef, access AccessFlags) {
	self.mu.Lock()
	defer self.mu.Unlock()
	p := self.fieldAt(f)
	p.Access = access
	p.Concrete = true
}

// ResolveField returns the field definition if the field has been made concrete.
// Unresolved references report ok == false.
func (self *Registry) ResolveField(f FieldRef) (def FieldDef, ok bool) {
	self.mu.RLock()
	defer self.mu.RUnlock()
	if f == 0 || int(f) > len(self.fields) {
		return FieldDef{}, false
	}
	def = self.fields[f-1]
	return def, def.Concrete
}

func (self *Registry) Type(t TypeRef) string {
	self.mu.RLock()
	defer self.mu.RUnlock()
	return self.typeAt(t)
}

func (self *Registry) Field(f FieldRef) FieldDef {
	self.mu.RLock()
	defer self.mu.RUnlock()
	return *self.fieldAt(f)
}

func (self *Registry) Method(m MethodRef) MethodDef {
	self.mu.RLock()
	defer self.mu.RUnlock()
	if m == 0 || int(m) > len(self.methods) {
		panic(fmt.Sprintf("dex: invalid method handle: %d", m))
	}
	return self.methods[m-1]
}

// Types, Fields and Methods return copies of the arenas in handle order:
// the definition of handle h is at index h-1.
func (self *Registry) Types() []string {
	self.mu.RLock()
	defer self.mu.RUnlock()
	return append([]string(nil), self.types...)
}

func (self *Registry) Fields() []FieldDef {
	self.mu.RLock()
	defer self.mu.RUnlock()
	return append([]FieldDef(nil), self.fields...)
}

func (self *Registry) Methods() []MethodDef {
	self.mu.RLock()
	defer self.mu.RUnlock()
	ret := make([]MethodDef, len(self.methods))
	for i, v := range self.methods {
		ret[i] = v
		ret[i].Proto.Args = append([]TypeRef(nil), v.Proto.Args...)
	}
	return ret
}

// HasType, HasField and HasMethod report whether a handle is allocated.
func (self *Registry) HasType(t TypeRef) bool     { return self.has(int(t), func() int { return len(self.types) }) }
func (self *Registry) HasField(f FieldRef) bool   { return self.has(int(f), func() int { return len(self.fields) }) }
func (self *Registry) HasMethod(m MethodRef) bool { return self.has(int(m), func() int { return len(self.methods) }) }

func (self *Registry) has(v int, n func() int) bool {
	self.mu.RLock()
	defer self.mu.RUnlock()
	return v > 0 && v <= n()
}

// ShowField renders a field as "Lowner;.name:T".
func (self *Registry) ShowField(f FieldRef) string {
	p := self.Field(f)
	return fmt.Sprintf("%s.%s:%s", self.Type(p.Owner), p.Name, self.Type(p.Type))
}

// ShowMethod renders a method as "Lowner;.name:(args)ret".
func (self *Registry) ShowMethod(m MethodRef) string {
	p := self.Method(m)
	return fmt.Sprintf("%s.%s:%s", self.Type(p.Owner), p.Name, self.protoString(p.Proto))
}

// ShowProto renders a prototype as "(args)ret".
func (self *Registry) ShowProto(p Proto) string {
	return self.protoString(p)
}

func (self *Registry) protoString(p Proto) string {
	var sb strings.Builder
	sb.WriteByte('(')
	for _, a := range p.Args {
		sb.WriteString(self.Type(a))
	}
	sb.WriteByte(')')
	sb.WriteString(self.Type(p.Ret))
	return sb.String()
}

func (self *Registry) mustType(t TypeRef) {
	if !self.HasType(t) {
		panic(fmt.Sprintf("dex: invalid type handle: %d", t))
	}
}

func (self *Registry) typeAt(t TypeRef) string {
	if t == 0 || int(t) > len(self.types) {
		panic(fmt.Sprintf("dex: invalid type handle: %d", t))
	} else {
		return self.types[t-1]
	}
}

func (self *Registry) fieldAt(f FieldRef) *FieldDef {
	if f == 0 || int(f) > len(self.fields) {
		panic(fmt.Sprintf("dex: invalid field handle: %d", f))
	} else {
		return &self.fields[f-1]
	}
}
