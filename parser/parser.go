// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package parser

import (
	"errors"
	"fmt"
	"io"

	"github.com/ozanh/ulan/token"
)

type bailout struct{}

// ErrorKind classifies parser errors.
type ErrorKind int

// Parser error kinds.
const (
	// LexError is reported for a character no token starts with.
	LexError ErrorKind = iota + 1
	// SyntaxError is reported for the first unexpected token.
	SyntaxError
	// IncompleteInput is reported when the input ends before the file is
	// complete. A REPL asks for more lines instead of failing.
	IncompleteInput
)

func (k ErrorKind) String() string {
	switch k {
	case LexError:
		return "LexError"
	case SyntaxError:
		return "ParseError"
	case IncompleteInput:
		return "IncompleteInput"
	}
	return "Error"
}

// ErrIncompleteInput is wrapped by errors of kind IncompleteInput.
var ErrIncompleteInput = errors.New("incomplete input")

// Error represents a parser error.
type Error struct {
	Kind ErrorKind
	Pos  SourceFilePos
	Msg  string
}

func (e *Error) Error() string {
	if e.Pos.Filename != "" || e.Pos.IsValid() {
		return fmt.Sprintf("Parse Error: %s\n\tat %s", e.Msg, e.Pos)
	}
	return fmt.Sprintf("Parse Error: %s", e.Msg)
}

// Unwrap returns ErrIncompleteInput for incomplete input errors.
func (e *Error) Unwrap() error {
	if e.Kind == IncompleteInput {
		return ErrIncompleteInput
	}
	return nil
}

type scanned struct {
	tok token.Token
	lit string
	pos Pos
}

// Parser parses ulan source files into a parse tree whose expression nodes
// are classified as expression-only, pattern-only or both.
type Parser struct {
	file     *SourceFile
	err      *Error
	scanner  *Scanner
	pos      Pos
	token    token.Token
	tokenLit string
	ahead    []scanned
	trace    bool
	indent   int
	traceOut io.Writer
}

// NewParser creates a Parser. If trace is not nil, productions and consumed
// tokens are written to it.
func NewParser(file *SourceFile, src []byte, trace io.Writer) *Parser {
	p := &Parser{
		file:     file,
		trace:    trace != nil,
		traceOut: trace,
	}
	p.scanner = NewScanner(p.file, src,
		func(pos SourceFilePos, msg string) {
			if p.err != nil {
				return
			}
			kind := LexError
			if p.scanner != nil && p.scanner.Incomplete() {
				kind = IncompleteInput
			}
			p.err = &Error{Kind: kind, Pos: pos, Msg: msg}
		})
	p.next()
	return p
}

// ParseFile parses the source and returns a parse tree. Parsing stops at
// the first error.
func (p *Parser) ParseFile() (file *File, err error) {
	defer func() {
		if e := recover(); e != nil {
			if _, ok := e.(bailout); !ok {
				panic(e)
			}
		}

		if p.err != nil {
			file, err = nil, p.err
		}
	}()

	if p.trace {
		defer untracep(tracep(p, "File"))
	}

	if p.err != nil {
		return nil, p.err
	}

	stmts := p.parseBlock()
	p.expect(token.EOF)

	file = &File{
		InputFile: p.file,
		Stmts:     stmts,
	}
	return
}

func (p *Parser) parseBlock() (list []Stmt) {
	if p.trace {
		defer untracep(tracep(p, "Block"))
	}

	for p.token != token.End && p.token != token.Else && p.token != token.EOF {
		list = append(list, p.parseStmt())
	}
	return
}

func (p *Parser) parseStmt() Stmt {
	if p.trace {
		defer untracep(tracep(p, "Statement"))
	}

	switch p.token {
	case token.Def:
		return p.parseFuncStmt()
	case token.If:
		return p.parseIfStmt()
	case token.Return:
		return p.parseReturnStmt()
	}

	x := p.parseCondition()
	p.expect(token.Semicolon)
	return &ExprStmt{Expr: x}
}

func (p *Parser) parseReturnStmt() Stmt {
	if p.trace {
		defer untracep(tracep(p, "ReturnStmt"))
	}

	pos := p.expect(token.Return)
	if p.token == token.Semicolon {
		p.next()
		return &ReturnStmt{ReturnPos: pos}
	}

	x := p.parseExpr()
	p.expect(token.Semicolon)
	return &ReturnStmt{ReturnPos: pos, Result: x}
}

func (p *Parser) parseIfStmt() Stmt {
	if p.trace {
		defer untracep(tracep(p, "IfStmt"))
	}

	pos := p.expect(token.If)
	cond := p.parseCondition()
	p.expect(token.Colon)
	body := p.parseBlock()
	return &IfStmt{
		IfPos: pos,
		Cond:  cond,
		Body:  body,
		Else:  p.parseIfTail(),
	}
}

func (p *Parser) parseIfTail() []Stmt {
	switch p.token {
	case token.End:
		p.next()
		return nil
	case token.Else:
		p.next()
		if p.token == token.If {
			return []Stmt{p.parseIfStmt()}
		}
		p.expect(token.Colon)
		body := p.parseBlock()
		p.expect(token.End)
		return body
	}
	p.errorUnexpected()
	return nil
}

func (p *Parser) parseFuncStmt() Stmt {
	if p.trace {
		defer untracep(tracep(p, "FuncStmt"))
	}

	pos := p.expect(token.Def)
	name := p.parseIdent()
	params := p.parseParamList()
	p.expect(token.Colon)
	body := p.parseBlock()
	p.expect(token.End)
	return &FuncStmt{
		DefPos: pos,
		Name:   name,
		Params: params,
		Body:   body,
	}
}

func (p *Parser) parseParamList() *ParamList {
	if p.trace {
		defer untracep(tracep(p, "ParamList"))
	}

	params := &ParamList{LParen: p.expect(token.LParen)}

	const (
		positional = iota
		kwonly
		done
	)

	state := positional
	seenDefault := false
	for p.token != token.RParen {
		switch {
		case state == done:
			p.errorUnexpected()
		case p.token == token.MapUnpack:
			params.Kwarg = p.parseUnpack(p.parsePattern)
			state = done
		case p.token == token.Mul:
			if state != positional {
				p.errorUnexpected()
			}
			params.Vararg = p.parseUnpack(p.parsePattern)
			state = kwonly
		default:
			kw := p.parseParam()
			if state == kwonly {
				params.KwOnly = append(params.KwOnly, kw)
				break
			}
			if kw.Default == nil && seenDefault {
				p.error(SyntaxError, kw.Pos(),
					"non-default argument follows default argument")
			}
			seenDefault = kw.Default != nil
			params.Args = append(params.Args, kw)
		}

		if p.token != token.Comma {
			break
		}
		p.next()
	}
	p.expect(token.RParen)
	return params
}

func (p *Parser) parseParam() *KeywordExpr {
	if p.trace {
		defer untracep(tracep(p, "Param"))
	}

	kw := &KeywordExpr{exprBase: exprBase{role: RolePattern}}
	if p.token == token.End && p.peek() == token.Colon {
		kw.Name = &Ident{Name: p.tokenLit, NamePos: p.pos}
		p.next()
	} else {
		kw.Name = p.parseIdent()
	}

	if p.token == token.Colon {
		p.next()
		kw.Value = p.parsePattern()
	} else {
		kw.Value = &Ident{Name: kw.Name.Name, NamePos: kw.Name.NamePos}
	}

	if p.token == token.Assign {
		p.next()
		kw.Default = p.parseExpr()
	}
	return kw
}

// parseCondition parses what may stand as a statement or an if condition.
func (p *Parser) parseCondition() Expr {
	if p.trace {
		defer untracep(tracep(p, "Condition"))
	}

	if p.token == token.Let {
		return p.parseMatchExpr()
	}
	return p.parseExpr()
}

func (p *Parser) parseMatchExpr() Expr {
	if p.trace {
		defer untracep(tracep(p, "MatchExpr"))
	}

	pos := p.expect(token.Let)
	pat := p.parsePattern()
	p.expect(token.Assign)
	value := p.parseExpr()
	return &MatchExpr{
		exprBase: exprBase{role: RoleExpr},
		LetPos:   pos,
		Pattern:  pat,
		Value:    value,
	}
}

func (p *Parser) parseExpr() Expr {
	x := p.parseElem()
	p.checkExpr(x)
	return x
}

func (p *Parser) parsePattern() Expr {
	x := p.parseElem()
	p.checkPattern(x)
	return x
}

// parseElem parses an element of any role: a prefix expression, a .op.
// operator expression or an is chain.
func (p *Parser) parseElem() Expr {
	if p.trace {
		defer untracep(tracep(p, "Element"))
	}

	if p.token == token.Period {
		return p.parseUnaryExpr()
	}

	x := p.parsePrefixExpr()
	switch p.token {
	case token.Period:
		return p.parseBinaryExpr(x)
	case token.Is:
		return p.parseIsExpr(x)
	}
	return x
}

func (p *Parser) parseOperand() Expr {
	x := p.parsePrefixExpr()
	p.checkExpr(x)
	return x
}

func (p *Parser) parseUnaryExpr() Expr {
	if p.trace {
		defer untracep(tracep(p, "UnaryExpr"))
	}

	pos := p.expect(token.Period)
	op := p.parseOperand()
	p.expect(token.Period)
	x := p.parseOperand()
	return &UnaryExpr{
		exprBase: exprBase{role: RoleExpr},
		OpPos:    pos,
		Op:       op,
		Expr:     x,
	}
}

func (p *Parser) parseBinaryExpr(x Expr) Expr {
	if p.trace {
		defer untracep(tracep(p, "BinaryExpr"))
	}

	p.checkExpr(x)
	p.expect(token.Period)
	op := p.parseOperand()
	p.expect(token.Period)
	y := p.parseOperand()
	return &BinaryExpr{
		exprBase: exprBase{role: RoleExpr},
		X:        x,
		Op:       op,
		Y:        y,
	}
}

func (p *Parser) parseIsExpr(x Expr) Expr {
	if p.trace {
		defer untracep(tracep(p, "IsExpr"))
	}

	p.checkPattern(x)
	for n := 0; p.token == token.Is; n++ {
		pos := p.pos
		p.next()
		y := p.parsePrefixExpr()
		p.checkPattern(y)

		role, _ := x.Role().Combine(y.Role())
		if n > 0 {
			role = RolePattern
		}
		x = &IsExpr{
			exprBase: exprBase{role: role},
			X:        x,
			IsPos:    pos,
			Y:        y,
		}
	}
	return x
}

func (p *Parser) parsePrefixExpr() Expr {
	if p.trace {
		defer untracep(tracep(p, "PrefixExpr"))
	}

	x := p.parsePrimaryExpr()
	for {
		switch p.token {
		case token.LParen:
			p.checkExpr(x)
			x = p.parseCall(x)
		case token.LBrace:
			p.checkExpr(x)
			x = p.parseBraceCall(x)
		case token.LBrack:
			p.checkExpr(x)
			x = p.parseSubscript(x)
		case token.Attribute:
			p.checkExpr(x)
			p.next()
			x = &AttrExpr{
				exprBase: exprBase{role: RoleExpr},
				Expr:     x,
				Sel:      p.parseIdent(),
			}
		default:
			return x
		}
	}
}

func (p *Parser) parsePrimaryExpr() Expr {
	switch p.token {
	case token.Ident:
		if p.peek() == token.Module {
			return p.parseModule()
		}
		return p.parseIdent()
	case token.Int, token.Hex, token.Oct, token.Float,
		token.String, token.StripString:
		x := &BasicLit{
			Token:    p.token,
			Value:    p.tokenLit,
			ValuePos: p.pos,
		}
		p.next()
		return x
	case token.Module:
		return p.parseModule()
	case token.LParen:
		return p.parseParenOrTuple()
	case token.LBrack:
		return p.parseList()
	case token.LBrace:
		return p.parseSetOrDict()
	}
	p.errorUnexpected()
	return nil
}

func (p *Parser) parseIdent() *Ident {
	pos := p.pos
	name := "_"

	if p.token == token.Ident {
		name = p.tokenLit
		p.next()
	} else {
		p.expect(token.Ident)
	}
	return &Ident{Name: name, NamePos: pos}
}

func (p *Parser) parseModule() Expr {
	if p.trace {
		defer untracep(tracep(p, "Module"))
	}

	m := &ModuleExpr{exprBase: exprBase{role: RoleExpr}, NamePos: p.pos}
	if p.token == token.Ident {
		m.Name = p.tokenLit
		p.next()
	}
	p.expect(token.Module)

	for p.token == token.Ident {
		ident := &Ident{Name: p.tokenLit, NamePos: p.pos}
		if p.peek() != token.Module {
			p.next()
			return &AttrExpr{
				exprBase: exprBase{role: RoleExpr},
				Expr:     m,
				Sel:      ident,
			}
		}
		p.next()
		p.next()
		m = &ModuleExpr{
			exprBase: exprBase{role: RoleExpr},
			Parent:   m,
			Name:     ident.Name,
			NamePos:  ident.NamePos,
		}
	}
	return m
}

func (p *Parser) parseParenOrTuple() Expr {
	if p.trace {
		defer untracep(tracep(p, "ParenOrTuple"))
	}

	lparen := p.expect(token.LParen)
	if p.token == token.RParen {
		p.next()
		return &TupleLit{LParen: lparen}
	}

	if p.token != token.Mul {
		x := p.parseElem()
		if p.token != token.Comma {
			p.expect(token.RParen)
			p.checkExpr(x)
			return &ParenExpr{
				exprBase: exprBase{role: RoleExpr},
				LParen:   lparen,
				Expr:     x,
			}
		}
		p.next()

		var elems []Expr
		if p.token != token.RParen {
			elems = p.parseElemList(token.RParen)
		}
		elems = append([]Expr{x}, elems...)
		p.expect(token.RParen)
		return &TupleLit{
			exprBase: exprBase{role: p.combineRoles(elems)},
			LParen:   lparen,
			Elems:    elems,
		}
	}

	elems := p.parseElemList(token.RParen)
	p.expect(token.RParen)
	return &TupleLit{
		exprBase: exprBase{role: p.combineRoles(elems)},
		LParen:   lparen,
		Elems:    elems,
	}
}

func (p *Parser) parseList() Expr {
	if p.trace {
		defer untracep(tracep(p, "List"))
	}

	lbrack := p.expect(token.LBrack)
	var elems []Expr
	if p.token != token.RBrack {
		elems = p.parseElemList(token.RBrack)
	}
	p.expect(token.RBrack)
	return &ListLit{
		exprBase: exprBase{role: p.combineRoles(elems)},
		LBrack:   lbrack,
		Elems:    elems,
	}
}

func (p *Parser) parseSetOrDict() Expr {
	if p.trace {
		defer untracep(tracep(p, "SetOrDict"))
	}

	lbrace := p.expect(token.LBrace)
	switch p.token {
	case token.Quo:
		p.next()
		p.expect(token.RBrace)
		return &SetLit{LBrace: lbrace}
	case token.RBrace:
		p.next()
		return &DictLit{LBrace: lbrace}
	case token.MapUnpack:
		return p.parseDictBody(lbrace, nil)
	case token.Mul:
		return p.parseSetBody(lbrace, nil)
	}

	x := p.parseElem()
	if p.token == token.Colon {
		return p.parseDictBody(lbrace, x)
	}
	return p.parseSetBody(lbrace, x)
}

func (p *Parser) parseSetBody(lbrace Pos, first Expr) Expr {
	var elems []Expr
	if first != nil {
		elems = append(elems, first)
		if p.token == token.Comma {
			p.next()
		} else {
			p.expect(token.RBrace)
			return &SetLit{
				exprBase: exprBase{role: first.Role()},
				LBrace:   lbrace,
				Elems:    elems,
			}
		}
	}

	if p.token != token.RBrace {
		elems = append(elems, p.parseElemList(token.RBrace)...)
	}
	p.expect(token.RBrace)
	return &SetLit{
		exprBase: exprBase{role: p.combineRoles(elems)},
		LBrace:   lbrace,
		Elems:    elems,
	}
}

func (p *Parser) parseDictBody(lbrace Pos, key Expr) Expr {
	if p.trace {
		defer untracep(tracep(p, "Dict"))
	}

	var elems []Expr
	for {
		switch {
		case key != nil:
			elems = append(elems, p.parseField(key))
			key = nil
		case p.token == token.MapUnpack:
			elems = append(elems, p.parseUnpack(p.parseElem))
		default:
			elems = append(elems, p.parseField(p.parseElem()))
		}

		if p.token != token.Comma {
			break
		}
		p.next()
		if p.token == token.RBrace {
			break
		}
	}
	p.expect(token.RBrace)
	return &DictLit{
		exprBase: exprBase{role: p.combineRoles(elems)},
		LBrace:   lbrace,
		Elems:    elems,
	}
}

func (p *Parser) parseField(key Expr) Expr {
	p.checkExpr(key)
	p.expect(token.Colon)

	f := &FieldExpr{Key: key, Value: p.parseElem()}
	f.role = f.Value.Role()
	if p.token == token.Assign {
		p.checkPattern(f.Value)
		p.next()
		f.Default = p.parseExpr()
		f.role = RolePattern
	}
	return f
}

// parseElemList parses comma separated elements with optional *unpacking
// up to the end token. A trailing comma is allowed.
func (p *Parser) parseElemList(end token.Token) (list []Expr) {
	for {
		if p.token == token.Mul {
			list = append(list, p.parseUnpack(p.parseElem))
		} else {
			list = append(list, p.parseElem())
		}

		if p.token != token.Comma {
			return
		}
		p.next()
		if p.token == end {
			return
		}
	}
}

func (p *Parser) parseUnpack(parse func() Expr) *UnpackExpr {
	tok, pos := p.token, p.pos
	p.next()
	x := parse()
	return &UnpackExpr{
		exprBase: exprBase{role: x.Role()},
		Token:    tok,
		StarPos:  pos,
		Expr:     x,
	}
}

func (p *Parser) parseCall(x Expr) Expr {
	if p.trace {
		defer untracep(tracep(p, "Call"))
	}

	call := &CallExpr{Func: x, LParen: p.expect(token.LParen)}
	for p.token != token.RParen {
		switch {
		case p.token == token.Mul:
			u := p.parseUnpack(p.parseElem)
			if len(call.Keywords) > 0 {
				call.Keywords = append(call.Keywords, u)
			} else {
				call.Args = append(call.Args, u)
			}
		case p.token == token.MapUnpack:
			call.Keywords = append(call.Keywords, p.parseUnpack(p.parseElem))
		case p.isKeywordStart(false):
			call.Keywords = append(call.Keywords, p.parseKeyword())
		default:
			if len(call.Keywords) > 0 {
				p.error(SyntaxError, p.pos,
					fmt.Sprintf("Invalid token %q", p.tokenLit))
			}
			call.Args = append(call.Args, p.parseElem())
		}

		if p.token != token.Comma {
			break
		}
		p.next()
	}
	p.expect(token.RParen)

	call.role = p.combineRoles(call.Args)
	call.role = p.combineRole(call.role, p.combineRoles(call.Keywords), call.Pos())
	return call
}

func (p *Parser) parseBraceCall(x Expr) Expr {
	if p.trace {
		defer untracep(tracep(p, "BraceCall"))
	}

	call := &CallExpr{Func: x, LParen: p.expect(token.LBrace), Brace: true}
	for p.token != token.RBrace {
		switch {
		case p.token == token.MapUnpack:
			call.Keywords = append(call.Keywords, p.parseUnpack(p.parseElem))
		case p.isKeywordStart(true):
			call.Keywords = append(call.Keywords, p.parseKeyword())
		default:
			p.errorUnexpected()
		}

		if p.token != token.Comma {
			break
		}
		p.next()
	}
	p.expect(token.RBrace)

	call.role = p.combineRoles(call.Keywords)
	return call
}

// isKeywordStart reports whether a keyword argument starts at the current
// token: name: or end: or name=, and a bare name in brace calls.
func (p *Parser) isKeywordStart(brace bool) bool {
	switch p.token {
	case token.Ident:
		switch p.peek() {
		case token.Colon, token.Assign:
			return true
		case token.Comma, token.RBrace:
			return brace
		}
	case token.End:
		return p.peek() == token.Colon
	}
	return false
}

func (p *Parser) parseKeyword() Expr {
	if p.trace {
		defer untracep(tracep(p, "Keyword"))
	}

	name := &Ident{Name: p.tokenLit, NamePos: p.pos}
	p.next()

	kw := &KeywordExpr{Name: name}
	switch p.token {
	case token.Colon:
		p.next()
		kw.Value = p.parseElem()
		kw.role = kw.Value.Role()
		if p.token == token.Assign {
			p.checkPattern(kw.Value)
			p.next()
			kw.Default = p.parseExpr()
			kw.role = RolePattern
		}
	case token.Assign:
		p.next()
		kw.Value = &Ident{Name: name.Name, NamePos: name.NamePos}
		kw.Default = p.parseExpr()
		kw.role = RolePattern
	default:
		kw.Value = &Ident{Name: name.Name, NamePos: name.NamePos}
	}
	return kw
}

func (p *Parser) parseSubscript(x Expr) Expr {
	if p.trace {
		defer untracep(tracep(p, "Subscript"))
	}

	lbrack := p.expect(token.LBrack)
	var index Expr
	if p.token == token.Mul {
		elems := p.parseElemList(token.RBrack)
		index = &TupleLit{exprBase: exprBase{role: RoleExpr}, LParen: lbrack, Elems: elems}
	} else {
		index = p.parseElem()
		if p.token == token.Comma {
			p.next()
			elems := []Expr{index}
			if p.token != token.RBrack {
				elems = append(elems, p.parseElemList(token.RBrack)...)
			}
			index = &TupleLit{exprBase: exprBase{role: RoleExpr}, LParen: lbrack, Elems: elems}
		}
	}
	p.expect(token.RBrack)

	if t, ok := index.(*TupleLit); ok {
		for _, e := range t.Elems {
			p.checkExpr(e)
		}
	} else {
		p.checkExpr(index)
	}

	return &SubscriptExpr{
		exprBase: exprBase{role: RoleExpr},
		Expr:     x,
		LBrack:   lbrack,
		Index:    index,
	}
}

func (p *Parser) combineRoles(list []Expr) Role {
	role := RoleBoth
	for _, e := range list {
		role = p.combineRole(role, e.Role(), e.Pos())
	}
	return role
}

func (p *Parser) combineRole(r, o Role, pos Pos) Role {
	role, ok := r.Combine(o)
	if !ok {
		p.error(SyntaxError, pos,
			"patterns and expressions cannot be mixed")
	}
	return role
}

func (p *Parser) checkExpr(x Expr) {
	if !x.Role().IsExpr() {
		p.error(SyntaxError, x.Pos(), "pattern is not valid as an expression")
	}
}

func (p *Parser) checkPattern(x Expr) {
	if !x.Role().IsPattern() {
		p.error(SyntaxError, x.Pos(), "expression is not valid as a pattern")
	}
}

func (p *Parser) expect(tok token.Token) Pos {
	pos := p.pos
	if p.token != tok {
		p.errorUnexpected()
	}
	p.next()
	return pos
}

func (p *Parser) errorUnexpected() {
	switch p.token {
	case token.EOF:
		p.error(IncompleteInput, p.pos, "unexpected end of input")
	case token.Illegal:
		kind := SyntaxError
		if p.scanner.Incomplete() {
			kind = IncompleteInput
		}
		p.error(kind, p.pos, fmt.Sprintf("Invalid token %q", p.tokenLit))
	default:
		p.error(SyntaxError, p.pos, fmt.Sprintf("Invalid token %q", p.tokenLit))
	}
}

// error records the first error and stops parsing. A lexer error reported
// earlier takes precedence.
func (p *Parser) error(kind ErrorKind, pos Pos, msg string) {
	if p.err == nil {
		p.err = &Error{Kind: kind, Pos: p.file.Position(p.safePos(pos)), Msg: msg}
	}
	panic(bailout{})
}

func (p *Parser) peek() token.Token {
	if len(p.ahead) == 0 {
		tok, lit, pos := p.scanner.Scan()
		p.ahead = append(p.ahead, scanned{tok: tok, lit: lit, pos: pos})
	}
	return p.ahead[0].tok
}

func (p *Parser) next() {
	if p.trace && p.pos.IsValid() {
		s := p.token.String()
		switch {
		case p.token.IsLiteral():
			p.printTrace(s, p.tokenLit)
		case p.token.IsOperator(), p.token.IsKeyword():
			p.printTrace(`"` + s + `"`)
		default:
			p.printTrace(s)
		}
	}

	if len(p.ahead) > 0 {
		t := p.ahead[0]
		p.ahead = p.ahead[1:]
		p.token, p.tokenLit, p.pos = t.tok, t.lit, t.pos
		return
	}
	p.token, p.tokenLit, p.pos = p.scanner.Scan()
}

func (p *Parser) printTrace(a ...interface{}) {
	const (
		dots = ". . . . . . . . . . . . . . . . . . . . . . . . . . . . . . . "
		n    = len(dots)
	)

	filePos := p.file.Position(p.safePos(p.pos))
	_, _ = fmt.Fprintf(p.traceOut, "%5d: %5d:%3d: ", p.pos, filePos.Line,
		filePos.Column)
	i := 2 * p.indent
	for i > n {
		_, _ = fmt.Fprint(p.traceOut, dots)
		i -= n
	}
	_, _ = fmt.Fprint(p.traceOut, dots[0:i])
	_, _ = fmt.Fprintln(p.traceOut, a...)
}

func (p *Parser) safePos(pos Pos) Pos {
	fileBase := p.file.Base
	fileSize := p.file.Size

	if int(pos) < fileBase || int(pos) > fileBase+fileSize {
		return Pos(fileBase + fileSize)
	}
	return pos
}

func tracep(p *Parser, msg string) *Parser {
	p.printTrace(msg, "(")
	p.indent++
	return p
}

func untracep(p *Parser) {
	p.indent--
	p.printTrace(")")
}

// ParseSource parses src as a file named filename in a new file set.
func ParseSource(filename string, src []byte, trace io.Writer) (*File, error) {
	fileSet := NewFileSet()
	srcFile := fileSet.AddFile(filename, -1, src)
	return NewParser(srcFile, src, trace).ParseFile()
}
