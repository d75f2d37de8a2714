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

type AccessFlags uint32

const (
	ACC_PUBLIC       AccessFlags = 0x0001
	ACC_PRIVATE      AccessFlags = 0x0002
	ACC_PROTECTED    AccessFlags = 0x0004
	ACC_STATIC       AccessFlags = 0x0008
	ACC_FINAL        AccessFlags = 0x0010
	ACC_SYNCHRONIZED AccessFlags = 0x0020
	ACC_VOLATILE     AccessFlags = 0x0040
	ACC_TRANSIENT    AccessFlags = 0x0080
	ACC_NATIVE       AccessFlags = 0x0100
	ACC_INTERFACE    AccessFlags = 0x0200
	ACC_ABSTRACT     AccessFlags = 0x0400
	ACC_SYNTHETIC    AccessFlags = 0x1000
	ACC_ENUM         AccessFlags = 0x4000
	ACC_CONSTRUCTOR  AccessFlags = 0x10000
)

var _AccessNames = [...]struct {
	flag AccessFlags
	name string
}{
	{ACC_PUBLIC, "public"},
	{ACC_PRIVATE, "private"},
	{ACC_PROTECTED, "protected"},
	{ACC_STATIC, "static"},
	{ACC_FINAL, "final"},
	{ACC_SYNCHRONIZED, "synchronized"},
	{ACC_VOLATILE, "volatile"},
	{ACC_TRANSIENT, "transient"},
	{ACC_NATIVE, "native"},
	{ACC_INTERFACE, "interface"},
	{ACC_ABSTRACT, "abstract"},
	{ACC_SYNTHETIC, "synthetic"},
	{ACC_ENUM, "enum"},
	{ACC_CONSTRUCTOR, "constructor"},
}

func (self AccessFlags) String() string {
	var ret []string
	for _, v := range _AccessNames {
		if self&v.flag != 0 {
			ret = append(ret, v.name)
		}
	}
	return strings.Join(ret, " ")
}

// LookupAccess maps a single access keyword to its flag.
func LookupAccess(name string) (AccessFlags, bool) {
	for _, v := range _AccessNames {
		if v.name == name {
			return v.flag, true
		}
	}
	return 0, false
}

// Method is a method definition. Abstract and native methods have no code.
type Method struct {
	Ref    MethodRef
	Access AccessFlags
	Code   *Code
}

// IsConcrete reports whether the method is expected to carry a code unit.
func (self *Method) IsConcrete() bool {
	return self.Access&(ACC_ABSTRACT|ACC_NATIVE) == 0
}

// Field is a field definition in a class. The access flags live in the
// Registry so every reference to the field observes the same volatility.
type Field struct {
	Ref FieldRef
}

// Class owns its methods and fields. Members are kept in declaration order
// and are unique by signature within the class.
type Class struct {
	Type   TypeRef
	Super  TypeRef
	Access AccessFlags

	reg     *Registry
	mu      sync.RWMutex
	methods []*Method
	fields  []*Field
}

func NewClass(reg *Registry, vt TypeRef, access AccessFlags) *Class {
	if !reg.HasType(vt) {
		panic(fmt.Sprintf("dex: invalid class type handle: %d", vt))
	}
	return &Class{
		Type:   vt,
		Access: access,
		reg:    reg,
	}
}

func (self *Class) Registry() *Registry {
	return self.reg
}

func (self *Class) Name() string {
	return self.reg.Type(self.Type)
}

// AddMethod adds a method to the class. Method references are interned by
// name and prototype, so equal handles mean equal signatures.
func (self *Class) AddMethod(m *Method) error {
	if def := self.reg.Method(m.Ref); def.Owner != self.Type {
		return fmt.Errorf("method %s does not belong to class %s", self.reg.ShowMethod(m.Ref), self.Name())
	}

	/* check for duplicated signatures */
	self.mu.Lock()
	defer self.mu.Unlock()
	for _, v := range self.methods {
		if v.Ref == m.Ref {
			return fmt.Errorf("duplicated method: %s", self.reg.ShowMethod(m.Ref))
		}
	}

	/* add to the method list */
	self.methods = append(self.methods, m)
	return nil
}

// RemoveMethod removes a method by its reference, reporting whether it was found.
func (self *Class) RemoveMethod(ref MethodRef) bool {
	self.mu.Lock()
	defer self.mu.Unlock()
	for i, v := range self.methods {
		if v.Ref == ref {
			self.methods = append(self.methods[:i:i], self.methods[i+1:]...)
			return true
		}
	}
	return false
}

func (self *Class) FindMethod(ref MethodRef) *Method {
	self.mu.RLock()
	defer self.mu.RUnlock()
	for _, v := range self.methods {
		if v.Ref == ref {
			return v
		}
	}
	return nil
}

// Methods returns a snapshot of the method list.
func (self *Class) Methods() []*Method {
	self.mu.RLock()
	defer self.mu.RUnlock()
	return append([]*Method(nil), self.methods...)
}

// AddField adds a field to the class and resolves the field reference with
// the given access flags.
func (self *Class) AddField(ref FieldRef, access AccessFlags) error {
	if def := self.reg.Field(ref); def.Owner != self.Type {
		return fmt.Errorf("field %s does not belong to class %s", self.reg.ShowField(ref), self.Name())
	}

	/* check for duplicated signatures */
	self.mu.Lock()
	defer self.mu.Unlock()
	for _, v := range self.fields {
		if v.Ref == ref {
			return fmt.Errorf("duplicated field: %s", self.reg.ShowField(ref))
		}
	}

	/* resolve the reference and add to the field list */
	self.reg.MakeConcrete(ref, access)
	self.fields = append(self.fields, &Field{Ref: ref})
	return nil
}

func (self *Class) FindField(ref FieldRef) *Field {
	self.mu.RLock()
	defer self.mu.RUnlock()
	for _, v := range self.fields {
		if v.Ref == ref {
			return v
		}
	}
	return nil
}

// Fields returns a snapshot of the field list.
func (self *Class) Fields() []*Field {
	self.mu.RLock()
	defer self.mu.RUnlock()
	return append([]*Field(nil), self.fields...)
}

// Store is a named, ordered collection of classes.
type Store struct {
	Name    string
	Classes []*Class
}

func NewStore(name string) *Store {
	return &Store{Name: name}
}

func (self *Store) AddClass(cls *Class) {
	self.Classes = append(self.Classes, cls)
}

// Scope is the whole program being optimized.
type Scope []*Store

// ForEachMethod visits every method of every class, in store and declaration order.
func (self Scope) ForEachMethod(fn func(cls *Class, m *Method)) {
	for _, st := range self {
		for _, cls := range st.Classes {
			for _, m := range cls.Methods() {
				fn(cls, m)
			}
		}
	}
}
