// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package ulan

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Label is a jump target. Its byte offset is known after layout.
type Label struct {
	index    int
	depth    int
	hasDepth bool
}

type instruction struct {
	op     Opcode
	arg    int
	label  *Label
	line   int
	offset int
	size   int
}

// Assembler is a bytecode sink for a single code unit. It deduplicates
// constants and names, tracks the operand stack depth and lays out
// instructions with their EXTENDED_ARG prefixes.
type Assembler struct {
	insts     []instruction
	consts    []Object
	constIdx  map[string]int
	names     []string
	nameIdx   map[string]int
	depth     int
	maxDepth  int
	reachable bool
	line      int
}

// NewAssembler creates an Assembler. line is the line of the instructions
// emitted before the first SetLine call.
func NewAssembler(line int) *Assembler {
	return &Assembler{
		constIdx:  make(map[string]int),
		nameIdx:   make(map[string]int),
		reachable: true,
		line:      line,
	}
}

// NewLabel returns a label that is not marked yet.
func (a *Assembler) NewLabel() *Label {
	return &Label{index: -1}
}

// SetLine sets the source line of the instructions emitted next.
func (a *Assembler) SetLine(line int) {
	if line > 0 {
		a.line = line
	}
}

// Emit appends an instruction. Arguments of instructions below
// HaveArgument are ignored.
func (a *Assembler) Emit(op Opcode, arg int) {
	if IsJump(op) {
		panic(fmt.Errorf("%s requires a label", opcodeName(op)))
	}
	if op < HaveArgument {
		arg = 0
	}
	a.add(instruction{op: op, arg: arg})
}

// EmitConst appends LOAD_CONST of v, adding v to the constant pool if an
// equal constant of the same type is not there yet. It returns the slot.
func (a *Assembler) EmitConst(v Object) int {
	slot := a.Const(v)
	a.add(instruction{op: OpLoadConst, arg: slot})
	return slot
}

// EmitName appends op with the slot of name in the names table.
func (a *Assembler) EmitName(op Opcode, name string) int {
	slot := a.Name(name)
	a.add(instruction{op: op, arg: slot})
	return slot
}

// EmitJump appends a jump to label.
func (a *Assembler) EmitJump(op Opcode, label *Label) {
	if !IsJump(op) {
		panic(fmt.Errorf("%s is not a jump", opcodeName(op)))
	}
	a.add(instruction{op: op, label: label})
}

// Mark places label before the next emitted instruction.
func (a *Assembler) Mark(label *Label) {
	if label.index >= 0 {
		panic("label marked twice")
	}
	label.index = len(a.insts)
	switch {
	case label.hasDepth && a.reachable:
		if label.depth != a.depth {
			panic(fmt.Errorf("stack depth mismatch at label: %d != %d",
				label.depth, a.depth))
		}
	case label.hasDepth:
		a.depth = label.depth
		a.reachable = true
	case a.reachable:
		label.depth, label.hasDepth = a.depth, true
	}
}

// Const returns the constant pool slot of v.
func (a *Assembler) Const(v Object) int {
	key := constKey(v)
	if i, ok := a.constIdx[key]; ok {
		return i
	}
	i := len(a.consts)
	a.consts = append(a.consts, v)
	a.constIdx[key] = i
	return i
}

// Name returns the names table slot of name.
func (a *Assembler) Name(name string) int {
	if i, ok := a.nameIdx[name]; ok {
		return i
	}
	i := len(a.names)
	a.names = append(a.names, name)
	a.nameIdx[name] = i
	return i
}

// Consts returns the constant pool.
func (a *Assembler) Consts() []Object { return a.consts }

// Names returns the names table.
func (a *Assembler) Names() []string { return a.names }

// Depth returns the current stack depth.
func (a *Assembler) Depth() int { return a.depth }

// MaxDepth returns the maximum stack depth reached so far.
func (a *Assembler) MaxDepth() int { return a.maxDepth }

func (a *Assembler) add(inst instruction) {
	inst.line = a.line
	if a.reachable {
		if inst.label != nil {
			target := a.depth + StackEffect(inst.op, inst.arg, true)
			l := inst.label
			if l.hasDepth && l.depth != target {
				panic(fmt.Errorf("stack depth mismatch at jump: %d != %d",
					l.depth, target))
			}
			l.depth, l.hasDepth = target, true
		}
		a.depth += StackEffect(inst.op, inst.arg, false)
		if a.depth < 0 {
			panic(fmt.Errorf("stack underflow at %s", opcodeName(inst.op)))
		}
		if a.depth > a.maxDepth {
			a.maxDepth = a.depth
		}
		if IsTerminal(inst.op) {
			a.reachable = false
		}
	}
	a.insts = append(a.insts, inst)
}

// Assemble lays out the instructions and returns the byte code and the
// line number table relative to firstLine.
func (a *Assembler) Assemble(firstLine int) (code, lnotab []byte) {
	a.layout()

	var marks []lineMark
	last := firstLine
	for i := range a.insts {
		inst := &a.insts[i]
		if inst.line != last {
			marks = append(marks, lineMark{offset: inst.offset, line: inst.line})
			last = inst.line
		}
		code = appendInstruction(code, inst.op, inst.arg, inst.size)
	}
	return code, encodeLnoTab(marks, firstLine)
}

// layout resolves jump arguments and instruction sizes until no offset
// changes. Sizes never shrink, so offsets only grow and the loop
// terminates.
func (a *Assembler) layout() {
	for i := range a.insts {
		a.insts[i].size = 2
		a.insts[i].offset = -1
	}

	for {
		changed := false
		offset := 0
		for i := range a.insts {
			inst := &a.insts[i]
			if inst.offset != offset {
				if offset < inst.offset {
					panic("instruction offset decreased during layout")
				}
				inst.offset = offset
				changed = true
			}
			offset += inst.size
		}
		end := offset

		for i := range a.insts {
			inst := &a.insts[i]
			if inst.label == nil {
				if size := instructionSize(inst.arg); size > inst.size {
					inst.size = size
					changed = true
				}
				continue
			}
			target := end
			if inst.label.index < 0 {
				panic("jump to a label that is not marked")
			}
			if inst.label.index < len(a.insts) {
				target = a.insts[inst.label.index].offset
			}
			arg := target
			if IsJumpRel(inst.op) {
				arg = target - (inst.offset + inst.size)
				if arg < 0 {
					panic("relative jump backwards")
				}
			}
			inst.arg = arg
			if size := instructionSize(arg); size > inst.size {
				inst.size = size
				changed = true
			}
		}

		if !changed {
			return
		}
	}
}

func instructionSize(arg int) int {
	n := 1
	for v := arg >> 8; v > 0; v >>= 8 {
		n++
	}
	return 2 * n
}

// appendInstruction writes op and arg into size bytes, prefixing it with
// EXTENDED_ARG instructions.
func appendInstruction(b []byte, op Opcode, arg, size int) []byte {
	for k := size/2 - 1; k > 0; k-- {
		b = append(b, OpExtendedArg, byte(arg>>(8*k)))
	}
	return append(b, op, byte(arg))
}

func constKey(v Object) string {
	switch v := v.(type) {
	case NoneType:
		return "n"
	case Bool:
		return "b" + v.String()
	case Int:
		return "i" + v.String()
	case Float:
		return "f" + strconv.FormatUint(math.Float64bits(float64(v)), 16)
	case String:
		return "s" + string(v)
	case Tuple:
		var sb strings.Builder
		sb.WriteString("t(")
		for _, e := range v {
			sb.WriteString(strconv.Quote(constKey(e)))
			sb.WriteByte(',')
		}
		sb.WriteByte(')')
		return sb.String()
	case *Code:
		return fmt.Sprintf("c%p", v)
	}
	panic(fmt.Errorf("invalid constant type %s", v.TypeName()))
}
