// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

// Package ast defines the semantic syntax tree produced from a parse tree by
// Transform. Every node has an ID unique in its file so later passes can keep
// their results in side tables instead of annotating nodes.
package ast

import (
	"github.com/ozanh/ulan/parser"
)

// ID identifies a node within a File. IDs are dense, starting at 0.
type ID int

// Node represents a node in the semantic tree.
type Node interface {
	ID() ID
	Pos() parser.Pos
}

// Expr represents an expression node.
type Expr interface {
	Node
	exprNode()
}

// Stmt represents a statement node.
type Stmt interface {
	Node
	stmtNode()
}

// Pattern represents a pattern node.
type Pattern interface {
	Node
	patternNode()
}

type base struct {
	id  ID
	pos parser.Pos
}

// ID returns the node id.
func (b *base) ID() ID { return b.id }

// Pos returns the position of the first character of the node.
func (b *base) Pos() parser.Pos { return b.pos }

type exprBase struct{ base }

func (*exprBase) exprNode() {}

type stmtBase struct{ base }

func (*stmtBase) stmtNode() {}

type patternBase struct{ base }

func (*patternBase) patternNode() {}

// File is the root of a semantic tree.
type File struct {
	base
	InputFile *parser.SourceFile
	Body      []Stmt
	// NumIDs is the number of node ids allocated for the file.
	NumIDs int
}

// ----------------------------------------------------------------------------
// Statements

// ExprStmt is an expression, or a Match, evaluated for its effect.
type ExprStmt struct {
	stmtBase
	X Expr
}

// If is a conditional. Test may be a *Match.
type If struct {
	stmtBase
	Test   Expr
	Body   []Stmt
	Orelse []Stmt
}

// Return returns Value from the enclosing function. Value is a None Literal
// for a bare return.
type Return struct {
	stmtBase
	Value Expr
}

// Function defines a function and binds it to Name.
type Function struct {
	stmtBase
	Name    string
	NamePos parser.Pos
	Args    *Arguments
	Body    []Stmt
}

// Arguments holds parameter patterns of a function.
type Arguments struct {
	base
	Args   []*KeywordPattern
	Vararg *RestPattern
	KwOnly []*KeywordPattern
	Kwarg  *RestPattern
}

// ----------------------------------------------------------------------------
// Expressions

// Literal is a constant. Value is nil (None), int64, float64 or string.
type Literal struct {
	exprBase
	Value interface{}
}

// Name is a reference to a variable.
type Name struct {
	exprBase
	Name string
}

// ModuleRef references a module. Level 0 is absolute, 1 is the current
// package (self), 2 and more walk up parent packages (super).
type ModuleRef struct {
	exprBase
	Level int
	Path  []string
}

// ModuleAttribute imports Identifier from Module.
type ModuleAttribute struct {
	exprBase
	Module     *ModuleRef
	Identifier string
}

// Attribute is value->identifier.
type Attribute struct {
	exprBase
	Value      Expr
	Identifier string
}

// Subscript is value[index].
type Subscript struct {
	exprBase
	Value Expr
	Index Expr
}

// Unpack marks a spread element: *x, or **x if Mapping is true.
type Unpack struct {
	exprBase
	Value   Expr
	Mapping bool
}

// Tuple is a tuple display. Elements may be *Unpack.
type Tuple struct {
	exprBase
	Elems []Expr
}

// List is a list display. Elements may be *Unpack.
type List struct {
	exprBase
	Elems []Expr
}

// Set is a set display. Elements may be *Unpack.
type Set struct {
	exprBase
	Elems []Expr
}

// Field is a key: value element of a Dict.
type Field struct {
	exprBase
	Key   Expr
	Value Expr
}

// Dict is a dict display. Elements are *Field or *Unpack with Mapping set.
type Dict struct {
	exprBase
	Elems []Expr
}

// Keyword is a name: value call argument.
type Keyword struct {
	exprBase
	Name  string
	Value Expr
}

// Call calls Func. Args holds positional values and *Unpack, Keywords holds
// *Keyword and *Unpack with Mapping set.
type Call struct {
	exprBase
	Func     Expr
	Args     []Expr
	Keywords []Expr
}

// BinOp is left .op. right, a call of op with two arguments.
type BinOp struct {
	exprBase
	Left  Expr
	Op    Expr
	Right Expr
}

// UnaryOp is .op. operand, a call of op with one argument.
type UnaryOp struct {
	exprBase
	Op      Expr
	Operand Expr
}

// Is tests whether left and right are the same object.
type Is struct {
	exprBase
	Left  Expr
	Right Expr
}

// Match is let pattern = value. Evaluating it leaves the value and the match
// result on the stack.
type Match struct {
	exprBase
	Pattern Pattern
	Value   Expr
}

// ----------------------------------------------------------------------------
// Patterns

// LiteralPattern matches values equal to Value.
type LiteralPattern struct {
	patternBase
	Value interface{}
}

// NamePattern binds a new name or checks an existing binding.
type NamePattern struct {
	patternBase
	Name string
}

// KeywordPattern matches the argument or parameter called Name. Default is
// used when the argument is missing.
type KeywordPattern struct {
	patternBase
	Name    string
	Pattern Pattern
	Default Expr
}

// AndPattern matches if both patterns match (x is y).
type AndPattern struct {
	patternBase
	Left  Pattern
	Right Pattern
}

// RestPattern matches the remaining elements (*x), or the remaining
// mapping items if Mapping is true (**x).
type RestPattern struct {
	patternBase
	Pattern Pattern
	Mapping bool
}

// TuplePattern matches tuples. Elements may be *RestPattern.
type TuplePattern struct {
	patternBase
	Elems []Pattern
}

// ListPattern matches lists. Elements may be *RestPattern.
type ListPattern struct {
	patternBase
	Elems []Pattern
}

// SetPattern matches sets. Elements may be *RestPattern.
type SetPattern struct {
	patternBase
	Elems []Pattern
}

// FieldPattern matches the value under Key of a dict.
type FieldPattern struct {
	patternBase
	Key     Expr
	Pattern Pattern
	Default Expr
}

// DictPattern matches dicts. Elements are *FieldPattern or *RestPattern.
type DictPattern struct {
	patternBase
	Elems []Pattern
}

// CallPattern destructures a value with the extractor Func. Args holds
// patterns and *RestPattern, Keywords holds *KeywordPattern and
// *RestPattern.
type CallPattern struct {
	patternBase
	Func     Expr
	Args     []Pattern
	Keywords []Pattern
}
