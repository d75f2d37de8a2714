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

package asm

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/yimq/redex/internal/dex"
)

// Print writes the scope in the format accepted by Parse.
func Print(w io.Writer, reg *dex.Registry, scope dex.Scope) error {
	bw := bufio.NewWriter(w)
	for _, st := range scope {
		fmt.Fprintf(bw, ".store %s\n", st.Name)
		for _, cls := range st.Classes {
			printClass(bw, reg, cls)
		}
	}
	return bw.Flush()
}

// Sprint returns the assembly form of the scope.
func Sprint(reg *dex.Registry, scope dex.Scope) string {
	var sb strings.Builder
	_ = Print(&sb, reg, scope)
	return sb.String()
}

func withAccess(acc dex.AccessFlags, rest string) string {
	if acc == 0 {
		return rest
	} else {
		return acc.String() + " " + rest
	}
}

func printClass(w *bufio.Writer, reg *dex.Registry, cls *dex.Class) {
	name := cls.Name()
	if cls.Super != 0 {
		name += " extends " + reg.Type(cls.Super)
	}

	/* class header and fields */
	fmt.Fprintf(w, "\n.class %s\n", withAccess(cls.Access, name))
	for _, f := range cls.Fields() {
		def := reg.Field(f.Ref)
		fmt.Fprintf(w, ".field %s\n", withAccess(def.Access, def.Name+":"+reg.Type(def.Type)))
	}

	/* methods */
	for _, m := range cls.Methods() {
		def := reg.Method(m.Ref)
		sig := def.Name + ":" + reg.ShowProto(def.Proto)

		/* abstract or native */
		if m.Code == nil {
			fmt.Fprintf(w, ".method %s\n.end method\n", withAccess(m.Access, sig))
			continue
		}

		/* method with a body */
		fmt.Fprintf(w, ".method %s registers %d\n", withAccess(m.Access, sig), m.Code.Registers)
		if m.Code.Len() != 0 {
			fmt.Fprintln(w, m.Code.Disassemble(reg))
		}
		fmt.Fprintln(w, ".end method")
	}

	/* end of class */
	fmt.Fprintln(w, ".end class")
}
