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

	"go.uber.org/multierr"
)

// InstrError describes one malformed instruction.
type InstrError struct {
	Pos    int
	Instr  string
	Reason string
}

func (self *InstrError) Error() string {
	return fmt.Sprintf("instruction %d (%s): %s", self.Pos, self.Instr, self.Reason)
}

func einstr(pos int, ins *Instr, reason string, args ...interface{}) error {
	return &InstrError{
		Pos:    pos,
		Instr:  ins.String(),
		Reason: fmt.Sprintf(reason, args...),
	}
}

// Verify checks that the code unit is a well-formed instruction stream for
// its register count. Every violation found is reported; use
// multierr.Errors to take the result apart.
func Verify(code *Code, reg *Registry) (err error) {
	insns := code.Instrs()

	/* check every instruction on its own */
	for i, v := range insns {
		err = multierr.Append(err, verifyInstr(i, v, code.Registers, reg))
	}

	/* move-result-pseudo must immediately follow its producer */
	for i, v := range insns {
		if v.Op.NeedsPseudoResult() {
			if i+1 >= len(insns) || !insns[i+1].Op.IsPseudoResult() {
				err = multierr.Append(err, einstr(i, v, "not followed by move-result-pseudo"))
			}
		}
		if v.Op.IsPseudoResult() {
			if i == 0 || !insns[i-1].Op.NeedsPseudoResult() {
				err = multierr.Append(err, einstr(i, v, "does not follow an instruction with a pseudo result"))
			}
		}
	}

	/* labels, branches and try regions */
	if _, e := BuildCFG(insns); e != nil {
		err = multierr.Append(err, e)
	}
	return
}

func verifyInstr(pos int, ins *Instr, nregs uint32, reg *Registry) error {
	if err := ins.Validate(); err != nil {
		return einstr(pos, ins, "%v", err)
	}

	/* markers have no registers */
	if ins.Op.IsMarker() {
		return nil
	}

	/* every register, including wide upper halves, must be in range */
	for _, r := range ins.Regs() {
		if uint32(r) >= nregs {
			return einstr(pos, ins, "register %s out of range (%d registers)", r, nregs)
		}
	}

	/* references must be allocated in the registry */
	if reg != nil {
		switch ins.Op.RefKind() {
		case RefType:
			if !reg.HasType(TypeRef(ins.Ref)) {
				return einstr(pos, ins, "unknown type #%d", ins.Ref)
			}
		case RefField:
			if !reg.HasField(FieldRef(ins.Ref)) {
				return einstr(pos, ins, "unknown field #%d", ins.Ref)
			}
		case RefMethod:
			if !reg.HasMethod(MethodRef(ins.Ref)) {
				return einstr(pos, ins, "unknown method #%d", ins.Ref)
			}
		}
	}
	return nil
}
