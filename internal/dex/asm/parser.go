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
	"strconv"
	"strings"

	"github.com/oleiade/lane"
	"github.com/yimq/redex/internal/dex"
)

// DefaultStore is the store that receives classes declared before any .store directive.
const DefaultStore = "classes"

// SyntaxError occures when the assembly source is malformed.
type SyntaxError struct {
	Line   int
	Src    string
	Reason string
}

func (self *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at line %d: %s", self.Line, self.Reason)
}

type _Block struct {
	kind   string
	cls    *dex.Class
	method *dex.Method
}

type Parser struct {
	reg    *dex.Registry
	line   int
	src    string
	scope  dex.Scope
	store  *dex.Store
	blocks *lane.Stack
}

func NewParser(reg *dex.Registry) *Parser {
	return &Parser{
		reg:    reg,
		blocks: lane.NewStack(),
	}
}

// Parse reads a whole program in assembly form, interning every symbol into reg.
func Parse(reg *dex.Registry, r io.Reader) (dex.Scope, error) {
	return NewParser(reg).Parse(r)
}

// ParseString is Parse over a string.
func ParseString(reg *dex.Registry, src string) (dex.Scope, error) {
	return Parse(reg, strings.NewReader(src))
}

func (self *Parser) Parse(r io.Reader) (dex.Scope, error) {
	sc := bufio.NewScanner(r)

	/* parse line by line */
	for sc.Scan() {
		self.line++
		self.src = sc.Text()
		if err := self.parseLine(strings.TrimSpace(stripComment(self.src))); err != nil {
			return nil, err
		}
	}

	/* check for reading errors */
	if err := sc.Err(); err != nil {
		return nil, err
	}

	/* every block must be closed */
	if !self.blocks.Empty() {
		return nil, self.error("unterminated .%s", self.blocks.Head().(*_Block).kind)
	}
	return self.scope, nil
}

func stripComment(s string) string {
	if i := strings.IndexByte(s, '#'); i >= 0 {
		return s[:i]
	} else {
		return s
	}
}

func (self *Parser) error(reason string, args ...interface{}) error {
	return &SyntaxError{
		Line:   self.line,
		Src:    self.src,
		Reason: fmt.Sprintf(reason, args...),
	}
}

func (self *Parser) top() *_Block {
	if self.blocks.Empty() {
		return nil
	} else {
		return self.blocks.Head().(*_Block)
	}
}

func (self *Parser) parseLine(s string) error {
	if s == "" {
		return nil
	}

	/* instructions, only valid in a method body */
	if s[0] != '.' || isMarker(s) {
		if b := self.top(); b == nil || b.kind != "method" || b.method.Code == nil {
			return self.error("instruction outside of a method body")
		} else if ins, err := self.parseInstr(s); err != nil {
			return err
		} else {
			b.method.Code.Push(ins)
			return nil
		}
	}

	/* directives */
	fv := strings.Fields(s)
	switch fv[0] {
	case ".store":
		return self.parseStore(fv[1:])
	case ".class":
		return self.parseClass(fv[1:])
	case ".field":
		return self.parseField(fv[1:])
	case ".method":
		return self.parseMethod(fv[1:])
	case ".end":
		return self.parseEnd(fv[1:])
	default:
		return self.error("unknown directive %s", fv[0])
	}
}

func isMarker(s string) bool {
	fv := strings.Fields(s)
	op, ok := dex.LookupOpcode(fv[0])
	return ok && op.IsMarker()
}

func (self *Parser) parseStore(args []string) error {
	if len(args) != 1 {
		return self.error(".store requires exactly one name")
	}
	if !self.blocks.Empty() {
		return self.error(".store inside of a .%s", self.top().kind)
	}
	self.store = dex.NewStore(args[0])
	self.scope = append(self.scope, self.store)
	return nil
}

func (self *Parser) parseAccess(args []string) (dex.AccessFlags, []string) {
	var acc dex.AccessFlags
	for len(args) > 0 {
		if f, ok := dex.LookupAccess(args[0]); !ok {
			break
		} else {
			acc |= f
			args = args[1:]
		}
	}
	return acc, args
}

func (self *Parser) parseClass(args []string) error {
	if !self.blocks.Empty() {
		return self.error("nested .class")
	}

	/* access flags and name */
	acc, args := self.parseAccess(args)
	if len(args) != 1 && !(len(args) == 3 && args[1] == "extends") {
		return self.error("malformed .class")
	}

	/* class type */
	vt, err := self.parseType(args[0])
	if err != nil {
		return err
	}

	/* create the default store if needed */
	if self.store == nil {
		self.store = dex.NewStore(DefaultStore)
		self.scope = append(self.scope, self.store)
	}

	/* create the class */
	cls := dex.NewClass(self.reg, vt, acc)
	if len(args) == 3 {
		if cls.Super, err = self.parseType(args[2]); err != nil {
			return err
		}
	}

	/* add to store */
	self.store.AddClass(cls)
	self.blocks.Push(&_Block{kind: "class", cls: cls})
	return nil
}

func (self *Parser) parseField(args []string) error {
	b := self.top()
	if b == nil || b.kind != "class" {
		return self.error(".field outside of a class")
	}

	/* access flags and signature */
	acc, args := self.parseAccess(args)
	if len(args) != 1 {
		return self.error("malformed .field")
	}

	/* name:Type */
	i := strings.IndexByte(args[0], ':')
	if i <= 0 {
		return self.error("malformed field signature %q", args[0])
	}
	vt, err := self.parseType(args[0][i+1:])
	if err != nil {
		return err
	}

	/* add to class */
	ref := self.reg.MakeField(b.cls.Type, args[0][:i], vt)
	if err = b.cls.AddField(ref, acc); err != nil {
		return self.error("%v", err)
	}
	return nil
}

func (self *Parser) parseMethod(args []string) error {
	b := self.top()
	if b == nil || b.kind != "class" {
		return self.error(".method outside of a class")
	}

	/* access flags and signature */
	acc, args := self.parseAccess(args)
	if len(args) != 1 && !(len(args) == 3 && args[1] == "registers") {
		return self.error("malformed .method")
	}

	/* name:(args)ret */
	i := strings.IndexByte(args[0], ':')
	if i <= 0 {
		return self.error("malformed method signature %q", args[0])
	}
	proto, err := self.parseProto(args[0][i+1:])
	if err != nil {
		return err
	}

	/* create the method */
	m := &dex.Method{
		Ref:    self.reg.MakeMethod(b.cls.Type, args[0][:i], proto),
		Access: acc,
	}

	/* register count means the method has a body */
	if len(args) == 3 {
		n, err := strconv.ParseUint(args[2], 10, 32)
		if err != nil {
			return self.error("invalid register count %q", args[2])
		}
		m.Code = dex.NewCode(uint32(n))
	}

	/* add to class */
	if err = b.cls.AddMethod(m); err != nil {
		return self.error("%v", err)
	}
	self.blocks.Push(&_Block{kind: "method", cls: b.cls, method: m})
	return nil
}

func (self *Parser) parseEnd(args []string) error {
	if len(args) != 1 {
		return self.error("malformed .end")
	}
	if b := self.top(); b == nil || b.kind != args[0] {
		return self.error("unexpected .end %s", args[0])
	}
	self.blocks.Pop()
	return nil
}

// splitOperands splits on commas that are not inside braces or parentheses.
func splitOperands(s string) []string {
	var ret []string
	depth, last := 0, 0
	for i, c := range s {
		switch c {
		case '{', '(':
			depth++
		case '}', ')':
			depth--
		case ',':
			if depth == 0 {
				ret = append(ret, strings.TrimSpace(s[last:i]))
				last = i + 1
			}
		}
	}
	if rest := strings.TrimSpace(s[last:]); rest != "" {
		ret = append(ret, rest)
	}
	return ret
}

func (self *Parser) parseInstr(s string) (ins *dex.Instr, err error) {
	name, rest := s, ""
	if i := strings.IndexAny(s, " \t"); i >= 0 {
		name, rest = s[:i], s[i+1:]
	}

	/* look up the opcode */
	op, ok := dex.LookupOpcode(name)
	if !ok {
		return nil, self.error("unknown opcode %s", name)
	}

	/* convert every operand */
	var args []interface{}
	for _, v := range splitOperands(rest) {
		if args, err = self.parseOperand(op, v, args); err != nil {
			return nil, err
		}
	}

	/* Dasm panics on operand mismatches, report them as syntax errors */
	defer func() {
		if v := recover(); v != nil {
			ins, err = nil, self.error("%v", v)
		}
	}()
	return Dasm(op, args...), nil
}

func (self *Parser) parseOperand(op dex.Opcode, v string, args []interface{}) ([]interface{}, error) {
	switch {
	case v == "":
		return nil, self.error("empty operand")
	case v[0] == '{':
		if v[len(v)-1] != '}' {
			return nil, self.error("unterminated register list %q", v)
		}
		for _, r := range splitOperands(v[1 : len(v)-1]) {
			if x, err := self.parseReg(r); err != nil {
				return nil, err
			} else {
				args = append(args, x)
			}
		}
		return args, nil
	case v[0] == 'v' && len(v) > 1 && isDigits(v[1:]):
		x, err := self.parseReg(v)
		return append(args, x), err
	case strings.HasPrefix(v, ":L"):
		x, err := strconv.ParseInt(v[2:], 10, 64)
		if err != nil {
			return nil, self.error("invalid label %q", v)
		}
		return append(args, Lit(x)), nil
	case v[0] == '-' || (v[0] >= '0' && v[0] <= '9'):
		x, err := strconv.ParseInt(v, 0, 64)
		if err != nil {
			return nil, self.error("invalid literal %q", v)
		}
		return append(args, Lit(x)), nil
	default:
		x, err := self.parseRef(op.RefKind(), v)
		return append(args, x), err
	}
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return s != ""
}

func (self *Parser) parseReg(v string) (dex.Reg, error) {
	if len(v) < 2 || v[0] != 'v' {
		return 0, self.error("invalid register %q", v)
	}
	n, err := strconv.ParseUint(v[1:], 10, 32)
	if err != nil {
		return 0, self.error("invalid register %q", v)
	}
	return dex.Reg(n), nil
}

func (self *Parser) parseRef(kind dex.RefKind, v string) (interface{}, error) {
	switch kind {
	case dex.RefType:
		return self.parseType(v)
	case dex.RefField:
		owner, name, sig, err := self.splitMember(v)
		if err != nil {
			return nil, err
		}
		vt, err := self.parseType(sig)
		if err != nil {
			return nil, err
		}
		return self.reg.MakeField(owner, name, vt), nil
	case dex.RefMethod:
		owner, name, sig, err := self.splitMember(v)
		if err != nil {
			return nil, err
		}
		proto, err := self.parseProto(sig)
		if err != nil {
			return nil, err
		}
		return self.reg.MakeMethod(owner, name, proto), nil
	default:
		return nil, self.error("unexpected operand %q", v)
	}
}

// splitMember splits "Lowner;.name:sig".
func (self *Parser) splitMember(v string) (dex.TypeRef, string, string, error) {
	i := strings.Index(v, ";.")
	if i < 0 {
		return 0, "", "", self.error("malformed member reference %q", v)
	}
	j := strings.IndexByte(v[i+2:], ':')
	if j <= 0 {
		return 0, "", "", self.error("malformed member reference %q", v)
	}
	owner, err := self.parseType(v[:i+1])
	if err != nil {
		return 0, "", "", err
	}
	return owner, v[i+2 : i+2+j], v[i+3+j:], nil
}

func (self *Parser) parseType(v string) (dex.TypeRef, error) {
	if n, err := self.typeLen(v); err != nil {
		return 0, err
	} else if n != len(v) {
		return 0, self.error("invalid type descriptor %q", v)
	} else {
		return self.reg.MakeType(v), nil
	}
}

// typeLen returns the length of the type descriptor at the start of v.
func (self *Parser) typeLen(v string) (int, error) {
	i := 0
	for i < len(v) && v[i] == '[' {
		i++
	}
	if i >= len(v) {
		return 0, self.error("invalid type descriptor %q", v)
	}
	switch v[i] {
	case 'V', 'Z', 'B', 'S', 'C', 'I', 'J', 'F', 'D':
		return i + 1, nil
	case 'L':
		if j := strings.IndexByte(v[i:], ';'); j > 1 {
			return i + j + 1, nil
		}
	}
	return 0, self.error("invalid type descriptor %q", v)
}

func (self *Parser) parseProto(v string) (dex.Proto, error) {
	var proto dex.Proto
	if len(v) < 3 || v[0] != '(' {
		return proto, self.error("invalid prototype %q", v)
	}

	/* argument types */
	i := 1
	for i < len(v) && v[i] != ')' {
		n, err := self.typeLen(v[i:])
		if err != nil {
			return proto, err
		}
		proto.Args = append(proto.Args, self.reg.MakeType(v[i:i+n]))
		i += n
	}

	/* return type */
	if i >= len(v) {
		return proto, self.error("invalid prototype %q", v)
	}
	ret, err := self.parseType(v[i+1:])
	if err != nil {
		return proto, err
	}
	proto.Ret = ret
	return proto, nil
}
