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

type _Reader struct {
	p   thrift.TProtocol
	reg *dex.Registry
}

// fields reads a struct, calling fn for every field. fn must consume the
// field value, returning false to have it skipped.
func (self *_Reader) fields(fn func(id int16, tt thrift.TType) (bool, error)) error {
	if _, err := self.p.ReadStructBegin(); err != nil {
		return err
	}
	for {
		_, tt, id, err := self.p.ReadFieldBegin()
		if err != nil {
			return err
		}
		if tt == thrift.STOP {
			break
		}

		/* unknown fields are skipped */
		if ok, err := fn(id, tt); err != nil {
			return err
		} else if !ok {
			if err = self.p.Skip(tt); err != nil {
				return err
			}
		}
		if err = self.p.ReadFieldEnd(); err != nil {
			return err
		}
	}
	return self.p.ReadStructEnd()
}

func (self *_Reader) list(tt thrift.TType, et thrift.TType, fn func(i int) error) error {
	if tt != thrift.LIST {
		return eformat("expected a list, got %s", tt)
	}
	vt, n, err := self.p.ReadListBegin()
	if err != nil {
		return err
	}
	if vt != et {
		return eformat("expected a list of %s, got %s", et, vt)
	}
	for i := 0; i < n; i++ {
		if err = fn(i); err != nil {
			return err
		}
	}
	return self.p.ReadListEnd()
}

func (self *_Reader) i32(tt thrift.TType, v *uint32) error {
	if tt != thrift.I32 {
		return eformat("expected i32, got %s", tt)
	}
	x, err := self.p.ReadI32()
	*v = uint32(x)
	return err
}

func (self *_Reader) i64(tt thrift.TType, v *int64) (err error) {
	if tt != thrift.I64 {
		return eformat("expected i64, got %s", tt)
	}
	*v, err = self.p.ReadI64()
	return
}

func (self *_Reader) str(tt thrift.TType, v *string) (err error) {
	if tt != thrift.STRING {
		return eformat("expected string, got %s", tt)
	}
	*v, err = self.p.ReadString()
	return
}

func (self *_Reader) boolean(tt thrift.TType, v *bool) (err error) {
	if tt != thrift.BOOL {
		return eformat("expected bool, got %s", tt)
	}
	*v, err = self.p.ReadBool()
	return
}

func (self *_Reader) i32s(tt thrift.TType, v *[]uint32) error {
	return self.list(tt, thrift.I32, func(int) error {
		x, err := self.p.ReadI32()
		*v = append(*v, uint32(x))
		return err
	})
}

func (self *_Reader) program() (dex.Scope, error) {
	var ver uint32
	var scope dex.Scope

	/* the registry tables come before the stores */
	err := self.fields(func(id int16, tt thrift.TType) (bool, error) {
		switch id {
		case 1:
			return true, self.i32(tt, &ver)
		case 2:
			return true, self.list(tt, thrift.STRING, self.typeDef)
		case 3:
			return true, self.list(tt, thrift.STRUCT, self.fieldDef)
		case 4:
			return true, self.list(tt, thrift.STRUCT, self.methodDef)
		case 5:
			return true, self.list(tt, thrift.STRUCT, func(int) error {
				st, err := self.store()
				scope = append(scope, st)
				return err
			})
		default:
			return false, nil
		}
	})

	/* check the version */
	if err != nil {
		return nil, err
	}
	if ver != Version {
		return nil, eformat("unsupported version %d", ver)
	}
	return scope, nil
}

func (self *_Reader) typeDef(i int) error {
	v, err := self.p.ReadString()
	if err != nil {
		return err
	}
	if v == "" {
		return eformat("empty type descriptor at %d", i)
	}
	if t := self.reg.MakeType(v); int(t) != i+1 {
		return eformat("duplicated type %s", v)
	}
	return nil
}

func (self *_Reader) typeRef(v uint32) (dex.TypeRef, error) {
	if t := dex.TypeRef(v); !self.reg.HasType(t) {
		return 0, eformat("invalid type handle %d", v)
	} else {
		return t, nil
	}
}

func (self *_Reader) fieldDef(i int) error {
	var name string
	var concrete bool
	var owner, vt, access uint32

	/* read the definition */
	err := self.fields(func(id int16, tt thrift.TType) (bool, error) {
		switch id {
		case 1:
			return true, self.i32(tt, &owner)
		case 2:
			return true, self.str(tt, &name)
		case 3:
			return true, self.i32(tt, &vt)
		case 4:
			return true, self.i32(tt, &access)
		case 5:
			return true, self.boolean(tt, &concrete)
		default:
			return false, nil
		}
	})
	if err != nil {
		return err
	}

	/* resolve the types */
	ot, err := self.typeRef(owner)
	if err != nil {
		return err
	}
	ft, err := self.typeRef(vt)
	if err != nil {
		return err
	}

	/* intern it at the same position */
	f := self.reg.MakeField(ot, name, ft)
	if int(f) != i+1 {
		return eformat("duplicated field %s", self.reg.ShowField(f))
	}
	if concrete {
		self.reg.MakeConcrete(f, dex.AccessFlags(access))
	}
	return nil
}

func (self *_Reader) methodDef(i int) error {
	var name string
	var args []uint32
	var owner, ret uint32

	/* read the definition */
	err := self.fields(func(id int16, tt thrift.TType) (bool, error) {
		switch id {
		case 1:
			return true, self.i32(tt, &owner)
		case 2:
			return true, self.str(tt, &name)
		case 3:
			return true, self.i32(tt, &ret)
		case 4:
			return true, self.i32s(tt, &args)
		default:
			return false, nil
		}
	})
	if err != nil {
		return err
	}

	/* resolve the prototype */
	var proto dex.Proto
	ot, err := self.typeRef(owner)
	if err != nil {
		return err
	}
	if proto.Ret, err = self.typeRef(ret); err != nil {
		return err
	}
	for _, v := range args {
		t, err := self.typeRef(v)
		if err != nil {
			return err
		}
		proto.Args = append(proto.Args, t)
	}

	/* intern it at the same position */
	m := self.reg.MakeMethod(ot, name, proto)
	if int(m) != i+1 {
		return eformat("duplicated method %s", self.reg.ShowMethod(m))
	}
	return nil
}

func (self *_Reader) store() (*dex.Store, error) {
	st := dex.NewStore("")
	err := self.fields(func(id int16, tt thrift.TType) (bool, error) {
		switch id {
		case 1:
			return true, self.str(tt, &st.Name)
		case 2:
			return true, self.list(tt, thrift.STRUCT, func(int) error {
				cls, err := self.class()
				if err == nil {
					st.AddClass(cls)
				}
				return err
			})
		default:
			return false, nil
		}
	})
	return st, err
}

func (self *_Reader) class() (*dex.Class, error) {
	var fields []uint32
	var methods []*dex.Method
	var vt, super, access uint32

	/* read the class */
	err := self.fields(func(id int16, tt thrift.TType) (bool, error) {
		switch id {
		case 1:
			return true, self.i32(tt, &vt)
		case 2:
			return true, self.i32(tt, &super)
		case 3:
			return true, self.i32(tt, &access)
		case 4:
			return true, self.i32s(tt, &fields)
		case 5:
			return true, self.list(tt, thrift.STRUCT, func(int) error {
				m, err := self.method()
				methods = append(methods, m)
				return err
			})
		default:
			return false, nil
		}
	})
	if err != nil {
		return nil, err
	}

	/* create the class */
	t, err := self.typeRef(vt)
	if err != nil {
		return nil, err
	}
	cls := dex.NewClass(self.reg, t, dex.AccessFlags(access))
	if super != 0 {
		if cls.Super, err = self.typeRef(super); err != nil {
			return nil, err
		}
	}

	/* fields keep the access flags of their definition */
	for _, v := range fields {
		f := dex.FieldRef(v)
		if !self.reg.HasField(f) {
			return nil, eformat("invalid field handle %d", v)
		}
		if err = cls.AddField(f, self.reg.Field(f).Access); err != nil {
			return nil, eformat("%v", err)
		}
	}

	/* methods */
	for _, m := range methods {
		if err = cls.AddMethod(m); err != nil {
			return nil, eformat("%v", err)
		}
	}
	return cls, nil
}

func (self *_Reader) method() (*dex.Method, error) {
	var ref, access uint32
	var code *dex.Code

	/* read the method */
	err := self.fields(func(id int16, tt thrift.TType) (bool, error) {
		switch id {
		case 1:
			return true, self.i32(tt, &ref)
		case 2:
			return true, self.i32(tt, &access)
		case 3:
			if tt != thrift.STRUCT {
				return false, eformat("expected struct, got %s", tt)
			}
			var err error
			code, err = self.code()
			return true, err
		default:
			return false, nil
		}
	})
	if err != nil {
		return nil, err
	}

	/* check the method handle */
	if !self.reg.HasMethod(dex.MethodRef(ref)) {
		return nil, eformat("invalid method handle %d", ref)
	}
	return &dex.Method{
		Ref:    dex.MethodRef(ref),
		Access: dex.AccessFlags(access),
		Code:   code,
	}, nil
}

func (self *_Reader) code() (*dex.Code, error) {
	ret := dex.NewCode(0)
	err := self.fields(func(id int16, tt thrift.TType) (bool, error) {
		switch id {
		case 1:
			return true, self.i32(tt, &ret.Registers)
		case 2:
			return true, self.list(tt, thrift.STRUCT, func(i int) error {
				ins, err := self.instr(i)
				if err == nil {
					ret.Push(ins)
				}
				return err
			})
		default:
			return false, nil
		}
	})
	return ret, err
}

func (self *_Reader) instr(i int) (*dex.Instr, error) {
	var name string
	var srcs []uint32
	var dest, ref uint32
	var lit int64

	/* read the operands */
	err := self.fields(func(id int16, tt thrift.TType) (bool, error) {
		switch id {
		case 1:
			return true, self.str(tt, &name)
		case 2:
			return true, self.i32(tt, &dest)
		case 3:
			return true, self.i32s(tt, &srcs)
		case 4:
			return true, self.i64(tt, &lit)
		case 5:
			return true, self.i32(tt, &ref)
		default:
			return false, nil
		}
	})
	if err != nil {
		return nil, err
	}

	/* look up the opcode */
	op, ok := dex.LookupOpcode(name)
	if !ok {
		return nil, eformat("unknown opcode %q at instruction %d", name, i)
	}

	/* build the instruction */
	ins := &dex.Instr{Op: op, Dest: dex.Reg(dest), Lit: lit, Ref: ref}
	for _, v := range srcs {
		ins.Srcs = append(ins.Srcs, dex.Reg(v))
	}

	/* operands must fit the opcode */
	if err = ins.Validate(); err != nil {
		return nil, eformat("instruction %d: %v", i, err)
	}
	if !self.hasRef(op.RefKind(), ref) {
		return nil, eformat("instruction %d: invalid %s handle %d", i, op.RefKind(), ref)
	}
	return ins, nil
}

func (self *_Reader) hasRef(kind dex.RefKind, ref uint32) bool {
	switch kind {
	case dex.RefType:
		return self.reg.HasType(dex.TypeRef(ref))
	case dex.RefField:
		return self.reg.HasField(dex.FieldRef(ref))
	case dex.RefMethod:
		return self.reg.HasMethod(dex.MethodRef(ref))
	default:
		return true
	}
}
