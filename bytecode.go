// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package ulan

import (
	"bytes"
	"fmt"
	"io"
	"strings"
)

// Code flags.
const (
	CodeOptimized   = 0x0001
	CodeNewLocals   = 0x0002
	CodeVarargs     = 0x0004
	CodeVarKeywords = 0x0008
	CodeNested      = 0x0010
	CodeNoFree      = 0x0040
)

// Code is an executable unit produced by the compiler, one per file and one
// per function definition.
type Code struct {
	ArgCount       int
	KwOnlyArgCount int
	NLocals        int
	StackSize      int
	Flags          int
	Code           []byte
	Consts         []Object
	Names          []string
	VarNames       []string
	Filename       string
	Name           string
	FirstLineNo    int
	LnoTab         []byte
	FreeVars       []string
	CellVars       []string
}

var _ Object = (*Code)(nil)

// TypeName implements Object interface.
func (*Code) TypeName() string { return "code" }

func (o *Code) String() string {
	return fmt.Sprintf("<code object %s, file \"%s\", line %d>",
		o.Name, o.Filename, o.FirstLineNo)
}

// IsFalsy implements Object interface.
func (*Code) IsFalsy() bool { return false }

// Equal implements Object interface.
func (o *Code) Equal(right Object) bool {
	v, ok := right.(*Code)
	return ok && v == o
}

// Line returns the source line of the instruction at offset.
func (o *Code) Line(offset int) int {
	return lineForOffset(o.LnoTab, o.FirstLineNo, offset)
}

// IterateInstructions calls fn for each instruction. EXTENDED_ARG prefixes
// are folded into the argument of the instruction they extend. Iteration
// stops if fn returns false.
func (o *Code) IterateInstructions(fn func(offset int, op Opcode, arg int) bool) {
	offset := 0
	for offset < len(o.Code) {
		op, arg, next := ReadInstruction(o.Code, offset)
		if !fn(offset, op, arg) {
			return
		}
		offset = next
	}
}

// Fprint writes the disassembly of the code and the codes in its constants
// to given Writer in a human readable form.
func (o *Code) Fprint(w io.Writer) {
	_, _ = fmt.Fprintf(w, "Disassembly of %s:\n", o)
	_, _ = fmt.Fprintf(w, "Args:%d KwOnly:%d Locals:%d Stack:%d Flags:%s\n",
		o.ArgCount, o.KwOnlyArgCount, o.NLocals, o.StackSize, FlagsString(o.Flags))
	putNames(w, "Names", o.Names)
	putNames(w, "VarNames", o.VarNames)
	putNames(w, "CellVars", o.CellVars)
	putNames(w, "FreeVars", o.FreeVars)

	lastLine := -1
	o.IterateInstructions(func(offset int, op Opcode, arg int) bool {
		line := ""
		if l := o.Line(offset); l != lastLine {
			line = fmt.Sprint(l)
			lastLine = l
		}
		if op < HaveArgument {
			_, _ = fmt.Fprintf(w, "%4s %6d %s\n", line, offset, opcodeName(op))
			return true
		}
		_, _ = fmt.Fprintf(w, "%4s %6d %-28s %5d %s\n",
			line, offset, opcodeName(op), arg, o.argRepr(offset, op, arg))
		return true
	})

	for _, c := range o.Consts {
		if code, ok := c.(*Code); ok {
			_, _ = fmt.Fprintln(w)
			code.Fprint(w)
		}
	}
}

// Disassemble returns the output of Fprint as a string.
func (o *Code) Disassemble() string {
	var buf bytes.Buffer
	o.Fprint(&buf)
	return buf.String()
}

func (o *Code) argRepr(offset int, op Opcode, arg int) string {
	lookup := func(names []string, i int) string {
		if i >= 0 && i < len(names) {
			return "(" + names[i] + ")"
		}
		return "(?)"
	}

	switch opcodeArgKinds[op] {
	case argConst:
		if arg < len(o.Consts) {
			return "(" + Repr(o.Consts[arg]) + ")"
		}
		return "(?)"
	case argName:
		return lookup(o.Names, arg)
	case argLocal:
		return lookup(o.VarNames, arg)
	case argCell:
		return lookup(append(append([]string{}, o.CellVars...), o.FreeVars...), arg)
	case argJumpRel:
		_, _, next := ReadInstruction(o.Code, offset)
		return fmt.Sprintf("(to %d)", next+arg)
	case argJumpAbs:
		return fmt.Sprintf("(to %d)", arg)
	case argCompare:
		switch arg {
		case CompareIs:
			return "(is)"
		case CompareIsNot:
			return "(is not)"
		}
	}
	return ""
}

func putNames(w io.Writer, title string, names []string) {
	if len(names) == 0 {
		return
	}
	_, _ = fmt.Fprintf(w, "%s: %s\n", title, strings.Join(names, ", "))
}

// FlagsString returns the names of the set code flags.
func FlagsString(flags int) string {
	var names []string
	for _, f := range [...]struct {
		flag int
		name string
	}{
		{CodeOptimized, "OPTIMIZED"},
		{CodeNewLocals, "NEWLOCALS"},
		{CodeVarargs, "VARARGS"},
		{CodeVarKeywords, "VARKEYWORDS"},
		{CodeNested, "NESTED"},
		{CodeNoFree, "NOFREE"},
	} {
		if flags&f.flag != 0 {
			names = append(names, f.name)
		}
	}
	if len(names) == 0 {
		return "0"
	}
	return strings.Join(names, "|")
}
