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
	"github.com/apache/thrift/lib/go/thrift"

	"github.com/yimq/redex/internal/dex"
)

// _Writer keeps the first error; every write after it is a no-op.
type _Writer struct {
	p   thrift.TProtocol
	err error
}

func (self *_Writer) do(fn func() error) {
	if self.err == nil {
		self.err = fn()
	}
}

func (self *_Writer) begin(name string) {
	self.do(func() error { return self.p.WriteStructBegin(name) })
}

func (self *_Writer) end() {
	self.do(self.p.WriteFieldStop)
	self.do(self.p.WriteStructEnd)
}

func (self *_Writer) field(name string, tt thrift.TType, id int16, fn func() error) {
	self.do(func() error { return self.p.WriteFieldBegin(name, tt, id) })
	self.do(fn)
	self.do(self.p.WriteFieldEnd)
}

func (self *_Writer) i32(name string, id int16, v uint32) {
	self.field(name, thrift.I32, id, func() error { return self.p.WriteI32(int32(v)) })
}

func (self *_Writer) i64(name string, id int16, v int64) {
	self.field(name, thrift.I64, id, func() error { return self.p.WriteI64(v) })
}

func (self *_Writer) str(name string, id int16, v string) {
	self.field(name, thrift.STRING, id, func() error { return self.p.WriteString(v) })
}

func (self *_Writer) boolean(name string, id int16, v bool) {
	self.field(name, thrift.BOOL, id, func() error { return self.p.WriteBool(v) })
}

func (self *_Writer) list(name string, id int16, et thrift.TType, n int, fn func(i int)) {
	self.do(func() error { return self.p.WriteFieldBegin(name, thrift.LIST, id) })
	self.do(func() error { return self.p.WriteListBegin(et, n) })
	for i := 0; i < n && self.err == nil; i++ {
		fn(i)
	}
	self.do(self.p.WriteListEnd)
	self.do(self.p.WriteFieldEnd)
}

func (self *_Writer) elemI32(v uint32) {
	self.do(func() error { return self.p.WriteI32(int32(v)) })
}

func (self *_Writer) elemString(v string) {
	self.do(func() error { return self.p.WriteString(v) })
}

func (self *_Writer) program(reg *dex.Registry, scope dex.Scope) {
	types := reg.Types()
	fields := reg.Fields()
	methods := reg.Methods()

	/* registry tables */
	self.begin("Program")
	self.i32("version", 1, Version)
	self.list("types", 2, thrift.STRING, len(types), func(i int) { self.elemString(types[i]) })
	self.list("fields", 3, thrift.STRUCT, len(fields), func(i int) { self.fieldDef(&fields[i]) })
	self.list("methods", 4, thrift.STRUCT, len(methods), func(i int) { self.methodDef(&methods[i]) })

	/* the program itself */
	self.list("stores", 5, thrift.STRUCT, len(scope), func(i int) { self.store(scope[i]) })
	self.end()
}

func (self *_Writer) fieldDef(p *dex.FieldDef) {
	self.begin("Field")
	self.i32("owner", 1, uint32(p.Owner))
	self.str("name", 2, p.Name)
	self.i32("type", 3, uint32(p.Type))
	self.i32("access", 4, uint32(p.Access))
	self.boolean("concrete", 5, p.Concrete)
	self.end()
}

func (self *_Writer) methodDef(p *dex.MethodDef) {
	self.begin("Proto")
	self.i32("owner", 1, uint32(p.Owner))
	self.str("name", 2, p.Name)
	self.i32("ret", 3, uint32(p.Proto.Ret))
	self.list("args", 4, thrift.I32, len(p.Proto.Args), func(i int) { self.elemI32(uint32(p.Proto.Args[i])) })
	self.end()
}

func (self *_Writer) store(st *dex.Store) {
	self.begin("Store")
	self.str("name", 1, st.Name)
	self.list("classes", 2, thrift.STRUCT, len(st.Classes), func(i int) { self.class(st.Classes[i]) })
	self.end()
}

func (self *_Writer) class(cls *dex.Class) {
	fields := cls.Fields()
	methods := cls.Methods()
	self.begin("Class")
	self.i32("type", 1, uint32(cls.Type))
	self.i32("super", 2, uint32(cls.Super))
	self.i32("access", 3, uint32(cls.Access))
	self.list("fields", 4, thrift.I32, len(fields), func(i int) { self.elemI32(uint32(fields[i].Ref)) })
	self.list("methods", 5, thrift.STRUCT, len(methods), func(i int) { self.method(methods[i]) })
	self.end()
}

func (self *_Writer) method(m *dex.Method) {
	self.begin("Method")
	self.i32("ref", 1, uint32(m.Ref))
	self.i32("access", 2, uint32(m.Access))

	/* abstract and native methods have no code */
	if m.Code != nil {
		self.field("code", thrift.STRUCT, 3, func() error {
			self.code(m.Code)
			return self.err
		})
	}
	self.end()
}

func (self *_Writer) code(code *dex.Code) {
	insns := code.Instrs()
	self.begin("Code")
	self.i32("registers", 1, code.Registers)
	self.list("insns", 2, thrift.STRUCT, len(insns), func(i int) { self.instr(insns[i]) })
	self.end()
}

func (self *_Writer) instr(p *dex.Instr) {
	self.begin("Instr")
	self.str("op", 1, p.Op.String())
	self.i32("dest", 2, uint32(p.Dest))
	self.list("srcs", 3, thrift.I32, len(p.Srcs), func(i int) { self.elemI32(uint32(p.Srcs[i])) })
	self.i64("lit", 4, p.Lit)
	self.i32("ref", 5, p.Ref)
	self.end()
}
