// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package parser

import (
	"strings"

	"github.com/ozanh/ulan/token"
)

const nullRep = "<null>"

// Role tells in which contexts a parsed expression may appear.
type Role byte

// Roles of parse tree expressions.
const (
	// RoleBoth is valid as an expression and as a pattern.
	RoleBoth Role = iota
	// RoleExpr is valid only as an expression.
	RoleExpr
	// RolePattern is valid only as a pattern.
	RolePattern
)

func (r Role) String() string {
	switch r {
	case RoleBoth:
		return "both"
	case RoleExpr:
		return "expression"
	case RolePattern:
		return "pattern"
	}
	return "role(?)"
}

// Combine returns the role of a sequence holding elements of roles r and o.
// ok is false if one is expression-only and the other is pattern-only.
func (r Role) Combine(o Role) (_ Role, ok bool) {
	switch {
	case r == RoleBoth:
		return o, true
	case o == RoleBoth, r == o:
		return r, true
	}
	return r, false
}

// IsExpr returns true if role r is valid in an expression context.
func (r Role) IsExpr() bool { return r != RolePattern }

// IsPattern returns true if role r is valid in a pattern context.
func (r Role) IsPattern() bool { return r != RoleExpr }

// Node represents a node in the parse tree.
type Node interface {
	// Pos returns the position of first character belonging to the node.
	Pos() Pos
	// String returns a string representation of the node.
	String() string
}

// Expr represents an expression or a pattern node.
type Expr interface {
	Node
	// Role returns in which contexts the node is valid.
	Role() Role
	exprNode()
}

// Stmt represents a statement node.
type Stmt interface {
	Node
	stmtNode()
}

// File represents a file unit.
type File struct {
	InputFile *SourceFile
	Stmts     []Stmt
}

// Pos returns the position of first character belonging to the node.
func (n *File) Pos() Pos {
	return Pos(n.InputFile.Base)
}

func (n *File) String() string {
	return stmtsString(n.Stmts)
}

func stmtsString(list []Stmt) string {
	var stmts []string
	for _, e := range list {
		stmts = append(stmts, e.String())
	}
	return strings.Join(stmts, " ")
}

func exprsString(list []Expr) string {
	var s []string
	for _, e := range list {
		s = append(s, e.String())
	}
	return strings.Join(s, ", ")
}

// ----------------------------------------------------------------------------
// Statements

// ExprStmt represents an expression or a match followed by a semicolon.
type ExprStmt struct {
	Expr Expr
}

func (*ExprStmt) stmtNode() {}

// Pos returns the position of first character belonging to the node.
func (s *ExprStmt) Pos() Pos { return s.Expr.Pos() }

func (s *ExprStmt) String() string { return s.Expr.String() + ";" }

// ReturnStmt represents a return statement. Result is nil for a bare return.
type ReturnStmt struct {
	ReturnPos Pos
	Result    Expr
}

func (*ReturnStmt) stmtNode() {}

// Pos returns the position of first character belonging to the node.
func (s *ReturnStmt) Pos() Pos { return s.ReturnPos }

func (s *ReturnStmt) String() string {
	if s.Result != nil {
		return "return " + s.Result.String() + ";"
	}
	return "return;"
}

// IfStmt represents an if statement. An `else if` chain is represented as a
// single IfStmt in Else.
type IfStmt struct {
	IfPos Pos
	Cond  Expr
	Body  []Stmt
	Else  []Stmt
}

func (*IfStmt) stmtNode() {}

// Pos returns the position of first character belonging to the node.
func (s *IfStmt) Pos() Pos { return s.IfPos }

func (s *IfStmt) String() string {
	var sb strings.Builder
	sb.WriteString("if ")
	sb.WriteString(s.Cond.String())
	sb.WriteString(": ")
	sb.WriteString(stmtsString(s.Body))
	if len(s.Else) > 0 {
		sb.WriteString(" else: ")
		sb.WriteString(stmtsString(s.Else))
	}
	sb.WriteString(" end")
	return sb.String()
}

// FuncStmt represents a function definition.
type FuncStmt struct {
	DefPos Pos
	Name   *Ident
	Params *ParamList
	Body   []Stmt
}

func (*FuncStmt) stmtNode() {}

// Pos returns the position of first character belonging to the node.
func (s *FuncStmt) Pos() Pos { return s.DefPos }

func (s *FuncStmt) String() string {
	return "def " + s.Name.String() + s.Params.String() + ": " +
		stmtsString(s.Body) + " end"
}

// ParamList represents the parameters of a function. Positional and keyword
// only parameters are KeywordExpr nodes, Vararg and Kwarg are UnpackExpr.
type ParamList struct {
	LParen Pos
	Args   []*KeywordExpr
	Vararg *UnpackExpr
	KwOnly []*KeywordExpr
	Kwarg  *UnpackExpr
}

// Pos returns the position of first character belonging to the node.
func (n *ParamList) Pos() Pos { return n.LParen }

func (n *ParamList) String() string {
	var list []string
	for _, a := range n.Args {
		list = append(list, a.String())
	}
	if n.Vararg != nil {
		list = append(list, n.Vararg.String())
	}
	for _, a := range n.KwOnly {
		list = append(list, a.String())
	}
	if n.Kwarg != nil {
		list = append(list, n.Kwarg.String())
	}
	return "(" + strings.Join(list, ", ") + ")"
}

// ----------------------------------------------------------------------------
// Expressions

type exprBase struct {
	role Role
}

func (exprBase) exprNode() {}

// Role returns in which contexts the node is valid.
func (e exprBase) Role() Role { return e.role }

// BasicLit represents a number or a string literal.
type BasicLit struct {
	exprBase
	Token    token.Token
	Value    string
	ValuePos Pos
}

// Pos returns the position of first character belonging to the node.
func (e *BasicLit) Pos() Pos { return e.ValuePos }

func (e *BasicLit) String() string {
	switch e.Token {
	case token.String, token.StripString:
		return quoteString(e.Value)
	}
	return e.Value
}

// quoteString returns s as a string literal. The {=[ form is used when s
// contains the closing bracket of a plain literal, its newlines are stripped
// by the scanner.
func quoteString(s string) string {
	if !strings.Contains(s, "]}") {
		return "{[" + s + "]}"
	}
	marker := "="
	for strings.Contains(s, "]"+marker+"}") {
		marker += "="
	}
	return "{" + marker + "[\n" + s + "\n]" + marker + "}"
}

// Ident represents a name.
type Ident struct {
	exprBase
	Name    string
	NamePos Pos
}

// Pos returns the position of first character belonging to the node.
func (e *Ident) Pos() Pos { return e.NamePos }

func (e *Ident) String() string {
	if e != nil {
		return e.Name
	}
	return nullRep
}

// ParenExpr represents a parenthesized expression.
type ParenExpr struct {
	exprBase
	LParen Pos
	Expr   Expr
}

// Pos returns the position of first character belonging to the node.
func (e *ParenExpr) Pos() Pos { return e.LParen }

func (e *ParenExpr) String() string { return "(" + e.Expr.String() + ")" }

// TupleLit represents a tuple.
type TupleLit struct {
	exprBase
	LParen Pos
	Elems  []Expr
}

// Pos returns the position of first character belonging to the node.
func (e *TupleLit) Pos() Pos { return e.LParen }

func (e *TupleLit) String() string {
	if len(e.Elems) == 1 {
		return "(" + e.Elems[0].String() + ",)"
	}
	return "(" + exprsString(e.Elems) + ")"
}

// ListLit represents a list.
type ListLit struct {
	exprBase
	LBrack Pos
	Elems  []Expr
}

// Pos returns the position of first character belonging to the node.
func (e *ListLit) Pos() Pos { return e.LBrack }

func (e *ListLit) String() string { return "[" + exprsString(e.Elems) + "]" }

// SetLit represents a set. The empty set is written {/}.
type SetLit struct {
	exprBase
	LBrace Pos
	Elems  []Expr
}

// Pos returns the position of first character belonging to the node.
func (e *SetLit) Pos() Pos { return e.LBrace }

func (e *SetLit) String() string {
	if len(e.Elems) == 0 {
		return "{/}"
	}
	return "{" + exprsString(e.Elems) + "}"
}

// DictLit represents a dict. Elements are FieldExpr or UnpackExpr nodes.
type DictLit struct {
	exprBase
	LBrace Pos
	Elems  []Expr
}

// Pos returns the position of first character belonging to the node.
func (e *DictLit) Pos() Pos { return e.LBrace }

func (e *DictLit) String() string { return "{" + exprsString(e.Elems) + "}" }

// FieldExpr represents a key: value element of a dict. Default is only valid
// in patterns.
type FieldExpr struct {
	exprBase
	Key     Expr
	Value   Expr
	Default Expr
}

// Pos returns the position of first character belonging to the node.
func (e *FieldExpr) Pos() Pos { return e.Key.Pos() }

func (e *FieldExpr) String() string {
	s := e.Key.String() + ": " + e.Value.String()
	if e.Default != nil {
		s += " = " + e.Default.String()
	}
	return s
}

// UnpackExpr represents *x (Token is token.Mul) or **x (token.MapUnpack).
type UnpackExpr struct {
	exprBase
	Token   token.Token
	StarPos Pos
	Expr    Expr
}

// Pos returns the position of first character belonging to the node.
func (e *UnpackExpr) Pos() Pos { return e.StarPos }

func (e *UnpackExpr) String() string {
	return e.Token.String() + e.Expr.String()
}

// KeywordExpr represents name: value, name: pattern = default or
// name = default.
type KeywordExpr struct {
	exprBase
	Name    *Ident
	Value   Expr
	Default Expr
}

// Pos returns the position of first character belonging to the node.
func (e *KeywordExpr) Pos() Pos { return e.Name.Pos() }

func (e *KeywordExpr) String() string {
	s := e.Name.String() + ": " + e.Value.String()
	if e.Default != nil {
		s += " = " + e.Default.String()
	}
	return s
}

// CallExpr represents f(args, keywords) and f{keywords}. Keywords holds
// KeywordExpr and UnpackExpr nodes.
type CallExpr struct {
	exprBase
	Func     Expr
	LParen   Pos
	Brace    bool
	Args     []Expr
	Keywords []Expr
}

// Pos returns the position of first character belonging to the node.
func (e *CallExpr) Pos() Pos { return e.Func.Pos() }

func (e *CallExpr) String() string {
	args := exprsString(e.Args)
	if kw := exprsString(e.Keywords); kw != "" {
		if args != "" {
			args += ", "
		}
		args += kw
	}
	if e.Brace {
		return e.Func.String() + "{" + args + "}"
	}
	return e.Func.String() + "(" + args + ")"
}

// SubscriptExpr represents x[index].
type SubscriptExpr struct {
	exprBase
	Expr   Expr
	LBrack Pos
	Index  Expr
}

// Pos returns the position of first character belonging to the node.
func (e *SubscriptExpr) Pos() Pos { return e.Expr.Pos() }

func (e *SubscriptExpr) String() string {
	return e.Expr.String() + "[" + e.Index.String() + "]"
}

// AttrExpr represents x->name, and mod::name when Expr is a ModuleExpr.
type AttrExpr struct {
	exprBase
	Expr Expr
	Sel  *Ident
}

// Pos returns the position of first character belonging to the node.
func (e *AttrExpr) Pos() Pos { return e.Expr.Pos() }

func (e *AttrExpr) String() string {
	if _, ok := e.Expr.(*ModuleExpr); ok {
		return e.Expr.String() + e.Sel.String()
	}
	return e.Expr.String() + "->" + e.Sel.String()
}

// ModuleExpr represents name:: chains. Name is empty for a bare ::.
type ModuleExpr struct {
	exprBase
	Parent  *ModuleExpr
	Name    string
	NamePos Pos
}

// Pos returns the position of first character belonging to the node.
func (e *ModuleExpr) Pos() Pos {
	if e.Parent != nil {
		return e.Parent.Pos()
	}
	return e.NamePos
}

func (e *ModuleExpr) String() string {
	s := e.Name + "::"
	if e.Parent != nil {
		s = e.Parent.String() + s
	}
	return s
}

// BinaryExpr represents x .op. y.
type BinaryExpr struct {
	exprBase
	X  Expr
	Op Expr
	Y  Expr
}

// Pos returns the position of first character belonging to the node.
func (e *BinaryExpr) Pos() Pos { return e.X.Pos() }

func (e *BinaryExpr) String() string {
	return e.X.String() + " ." + e.Op.String() + ". " + e.Y.String()
}

// UnaryExpr represents .op. x.
type UnaryExpr struct {
	exprBase
	OpPos Pos
	Op    Expr
	Expr  Expr
}

// Pos returns the position of first character belonging to the node.
func (e *UnaryExpr) Pos() Pos { return e.OpPos }

func (e *UnaryExpr) String() string {
	return "." + e.Op.String() + ". " + e.Expr.String()
}

// IsExpr represents x is y. It is an identity test in expressions and a
// conjunction in patterns.
type IsExpr struct {
	exprBase
	X     Expr
	IsPos Pos
	Y     Expr
}

// Pos returns the position of first character belonging to the node.
func (e *IsExpr) Pos() Pos { return e.X.Pos() }

func (e *IsExpr) String() string {
	return e.X.String() + " is " + e.Y.String()
}

// MatchExpr represents let pattern = value.
type MatchExpr struct {
	exprBase
	LetPos  Pos
	Pattern Expr
	Value   Expr
}

// Pos returns the position of first character belonging to the node.
func (e *MatchExpr) Pos() Pos { return e.LetPos }

func (e *MatchExpr) String() string {
	return "let " + e.Pattern.String() + " = " + e.Value.String()
}
