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

// Package snapshot stores a whole program (registry and scope) with the
// Thrift binary protocol.
//
// The layout is the one of the following IDL:
//
//	struct Instr   { 1: string op, 2: i32 dest, 3: list<i32> srcs, 4: i64 lit, 5: i32 ref }
//	struct Code    { 1: i32 registers, 2: list<Instr> insns }
//	struct Method  { 1: i32 ref, 2: i32 access, 3: optional Code code }
//	struct Class   { 1: i32 type, 2: i32 super, 3: i32 access, 4: list<i32> fields, 5: list<Method> methods }
//	struct Store   { 1: string name, 2: list<Class> classes }
//	struct Field   { 1: i32 owner, 2: string name, 3: i32 type, 4: i32 access, 5: bool concrete }
//	struct Proto   { 1: i32 owner, 2: string name, 3: i32 ret, 4: list<i32> args }
//	struct Program { 1: i32 version, 2: list<string> types, 3: list<Field> fields, 4: list<Proto> methods, 5: list<Store> stores }
//
// Handles are positional: the n-th entry of a registry table has handle n+1.
package snapshot

import (
	"context"
	"fmt"

	"github.com/apache/thrift/lib/go/thrift"

	"github.com/yimq/redex/internal/dex"
)

const Version = 1

// FormatError is returned for snapshots that are well-formed Thrift but do
// not describe a valid program.
type FormatError struct {
	Reason string
}

func (self *FormatError) Error() string {
	return "snapshot: " + self.Reason
}

func eformat(reason string, args ...interface{}) error {
	return &FormatError{Reason: fmt.Sprintf(reason, args...)}
}

// Encode serializes the registry and every store of the scope.
func Encode(reg *dex.Registry, scope dex.Scope) ([]byte, error) {
	mm := thrift.NewTMemoryBuffer()
	wr := &_Writer{p: thrift.NewTBinaryProtocolTransport(mm)}
	wr.program(reg, scope)
	if wr.err == nil {
		wr.err = wr.p.Flush(context.Background())
	}
	if wr.err != nil {
		return nil, wr.err
	}
	return mm.Bytes(), nil
}

// Decode rebuilds a program into a fresh registry.
func Decode(buf []byte) (*dex.Registry, dex.Scope, error) {
	mm := thrift.NewTMemoryBuffer()
	if _, err := mm.Write(buf); err != nil {
		return nil, nil, err
	}
	rd := &_Reader{
		p:   thrift.NewTBinaryProtocolTransport(mm),
		reg: dex.NewRegistry(),
	}
	scope, err := rd.program()
	if err != nil {
		return nil, nil, err
	}
	return rd.reg, scope, nil
}
