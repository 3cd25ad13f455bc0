// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package ulan

import "strconv"

// Opcode represents a single byte operation code. Every instruction is two
// bytes wide, the opcode followed by its argument byte; arguments wider than
// a byte are prefixed with EXTENDED_ARG instructions.
type Opcode = byte

// List of opcodes
const (
	OpPopTop                   Opcode = 1
	OpRotTwo                   Opcode = 2
	OpRotThree                 Opcode = 3
	OpDupTop                   Opcode = 4
	OpNop                      Opcode = 9
	OpBinarySubscr             Opcode = 25
	OpReturnValue              Opcode = 83
	OpStoreGlobal              Opcode = 97
	OpLoadConst                Opcode = 100
	OpLoadName                 Opcode = 101
	OpBuildTuple               Opcode = 102
	OpBuildList                Opcode = 103
	OpBuildSet                 Opcode = 104
	OpBuildMap                 Opcode = 105
	OpLoadAttr                 Opcode = 106
	OpCompareOp                Opcode = 107
	OpImportName               Opcode = 108
	OpImportFrom               Opcode = 109
	OpJumpForward              Opcode = 110
	OpJumpAbsolute             Opcode = 113
	OpPopJumpIfFalse           Opcode = 114
	OpPopJumpIfTrue            Opcode = 115
	OpLoadGlobal               Opcode = 116
	OpLoadFast                 Opcode = 124
	OpStoreFast                Opcode = 125
	OpRaiseVarargs             Opcode = 130
	OpCallFunction             Opcode = 131
	OpMakeFunction             Opcode = 132
	OpLoadClosure              Opcode = 135
	OpLoadDeref                Opcode = 136
	OpStoreDeref               Opcode = 137
	OpCallFunctionKw           Opcode = 141
	OpCallFunctionEx           Opcode = 142
	OpExtendedArg              Opcode = 144
	OpBuildListUnpack          Opcode = 149
	OpBuildMapUnpack           Opcode = 150
	OpBuildMapUnpackWithCall   Opcode = 151
	OpBuildTupleUnpack         Opcode = 152
	OpBuildSetUnpack           Opcode = 153
	OpBuildConstKeyMap         Opcode = 156
	OpBuildTupleUnpackWithCall Opcode = 158
)

// HaveArgument is the first opcode whose argument byte is meaningful.
const HaveArgument Opcode = 90

// Flags of MakeFunction argument.
const (
	MakeFunctionDefaults   = 0x01
	MakeFunctionKwDefaults = 0x02
	MakeFunctionClosure    = 0x08
)

// CompareOp arguments.
const (
	CompareIs    = 8
	CompareIsNot = 9
)

// OpcodeNames are string representation of opcodes.
var OpcodeNames = [...]string{
	OpPopTop:                   "POP_TOP",
	OpRotTwo:                   "ROT_TWO",
	OpRotThree:                 "ROT_THREE",
	OpDupTop:                   "DUP_TOP",
	OpNop:                      "NOP",
	OpBinarySubscr:             "BINARY_SUBSCR",
	OpReturnValue:              "RETURN_VALUE",
	OpStoreGlobal:              "STORE_GLOBAL",
	OpLoadConst:                "LOAD_CONST",
	OpLoadName:                 "LOAD_NAME",
	OpBuildTuple:               "BUILD_TUPLE",
	OpBuildList:                "BUILD_LIST",
	OpBuildSet:                 "BUILD_SET",
	OpBuildMap:                 "BUILD_MAP",
	OpLoadAttr:                 "LOAD_ATTR",
	OpCompareOp:                "COMPARE_OP",
	OpImportName:               "IMPORT_NAME",
	OpImportFrom:               "IMPORT_FROM",
	OpJumpForward:              "JUMP_FORWARD",
	OpJumpAbsolute:             "JUMP_ABSOLUTE",
	OpPopJumpIfFalse:           "POP_JUMP_IF_FALSE",
	OpPopJumpIfTrue:            "POP_JUMP_IF_TRUE",
	OpLoadGlobal:               "LOAD_GLOBAL",
	OpLoadFast:                 "LOAD_FAST",
	OpStoreFast:                "STORE_FAST",
	OpRaiseVarargs:             "RAISE_VARARGS",
	OpCallFunction:             "CALL_FUNCTION",
	OpMakeFunction:             "MAKE_FUNCTION",
	OpLoadClosure:              "LOAD_CLOSURE",
	OpLoadDeref:                "LOAD_DEREF",
	OpStoreDeref:               "STORE_DEREF",
	OpCallFunctionKw:           "CALL_FUNCTION_KW",
	OpCallFunctionEx:           "CALL_FUNCTION_EX",
	OpExtendedArg:              "EXTENDED_ARG",
	OpBuildListUnpack:          "BUILD_LIST_UNPACK",
	OpBuildMapUnpack:           "BUILD_MAP_UNPACK",
	OpBuildMapUnpackWithCall:   "BUILD_MAP_UNPACK_WITH_CALL",
	OpBuildTupleUnpack:         "BUILD_TUPLE_UNPACK",
	OpBuildSetUnpack:           "BUILD_SET_UNPACK",
	OpBuildConstKeyMap:         "BUILD_CONST_KEY_MAP",
	OpBuildTupleUnpackWithCall: "BUILD_TUPLE_UNPACK_WITH_CALL",
	255:                        "",
}

// opcode argument kinds, used by the disassembler and the assembler.
const (
	argNone = iota
	argConst
	argName
	argLocal
	argCell
	argJumpRel
	argJumpAbs
	argCount
	argCompare
)

var opcodeArgKinds = [256]uint8{
	OpStoreGlobal:              argName,
	OpLoadConst:                argConst,
	OpLoadName:                 argName,
	OpBuildTuple:               argCount,
	OpBuildList:                argCount,
	OpBuildSet:                 argCount,
	OpBuildMap:                 argCount,
	OpLoadAttr:                 argName,
	OpCompareOp:                argCompare,
	OpImportName:               argName,
	OpImportFrom:               argName,
	OpJumpForward:              argJumpRel,
	OpJumpAbsolute:             argJumpAbs,
	OpPopJumpIfFalse:           argJumpAbs,
	OpPopJumpIfTrue:            argJumpAbs,
	OpLoadGlobal:               argName,
	OpLoadFast:                 argLocal,
	OpStoreFast:                argLocal,
	OpRaiseVarargs:             argCount,
	OpCallFunction:             argCount,
	OpMakeFunction:             argCount,
	OpLoadClosure:              argCell,
	OpLoadDeref:                argCell,
	OpStoreDeref:               argCell,
	OpCallFunctionKw:           argCount,
	OpCallFunctionEx:           argCount,
	OpExtendedArg:              argCount,
	OpBuildListUnpack:          argCount,
	OpBuildMapUnpack:           argCount,
	OpBuildMapUnpackWithCall:   argCount,
	OpBuildTupleUnpack:         argCount,
	OpBuildSetUnpack:           argCount,
	OpBuildConstKeyMap:         argCount,
	OpBuildTupleUnpackWithCall: argCount,
}

// IsJumpRel reports whether the argument of op is a jump distance relative
// to the end of the instruction.
func IsJumpRel(op Opcode) bool { return opcodeArgKinds[op] == argJumpRel }

// IsJumpAbs reports whether the argument of op is an absolute byte offset.
func IsJumpAbs(op Opcode) bool { return opcodeArgKinds[op] == argJumpAbs }

// IsJump reports whether op transfers control to a label.
func IsJump(op Opcode) bool { return IsJumpRel(op) || IsJumpAbs(op) }

// IsTerminal reports whether the instruction following op is unreachable
// from op.
func IsTerminal(op Opcode) bool {
	switch op {
	case OpReturnValue, OpRaiseVarargs, OpJumpForward, OpJumpAbsolute:
		return true
	}
	return false
}

// StackEffect returns the change in stack depth caused by op with argument
// arg. If jump is true, the effect when the jump is taken is returned.
// It panics for unknown opcodes.
func StackEffect(op Opcode, arg int, jump bool) int {
	switch op {
	case OpNop, OpRotTwo, OpRotThree, OpExtendedArg, OpLoadAttr,
		OpJumpForward, OpJumpAbsolute:
		return 0
	case OpPopTop, OpBinarySubscr, OpReturnValue, OpStoreGlobal,
		OpStoreFast, OpStoreDeref, OpCompareOp, OpImportName,
		OpPopJumpIfFalse, OpPopJumpIfTrue:
		return -1
	case OpDupTop, OpLoadConst, OpLoadName, OpLoadGlobal, OpLoadFast,
		OpLoadClosure, OpLoadDeref, OpImportFrom:
		return 1
	case OpBuildTuple, OpBuildList, OpBuildSet,
		OpBuildListUnpack, OpBuildMapUnpack, OpBuildMapUnpackWithCall,
		OpBuildTupleUnpack, OpBuildSetUnpack, OpBuildTupleUnpackWithCall:
		return 1 - arg
	case OpBuildMap:
		return 1 - 2*arg
	case OpBuildConstKeyMap:
		return -arg
	case OpRaiseVarargs, OpCallFunction:
		return -arg
	case OpCallFunctionKw:
		return -arg - 1
	case OpCallFunctionEx:
		return -1 - (arg & 0x01)
	case OpMakeFunction:
		n := -1
		for _, f := range [...]int{
			MakeFunctionDefaults, MakeFunctionKwDefaults, 0x04,
			MakeFunctionClosure,
		} {
			if arg&f != 0 {
				n--
			}
		}
		return n
	}
	panic("unknown opcode " + opcodeName(op))
}

func opcodeName(op Opcode) string {
	if int(op) < len(OpcodeNames) && OpcodeNames[op] != "" {
		return OpcodeNames[op]
	}
	return "<" + strconv.Itoa(int(op)) + ">"
}

// ReadInstruction decodes the instruction at offset, folding EXTENDED_ARG
// prefixes into the argument. It returns the opcode, its argument and the
// offset of the next instruction.
func ReadInstruction(code []byte, offset int) (op Opcode, arg int, next int) {
	for offset+1 < len(code) {
		op = code[offset]
		arg = arg<<8 | int(code[offset+1])
		offset += 2
		if op != OpExtendedArg {
			return op, arg, offset
		}
	}
	return op, arg, len(code)
}
