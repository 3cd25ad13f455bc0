// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package token

import "strconv"

// Token represents a token kind.
type Token int

// List of tokens
const (
	Illegal Token = iota
	EOF
	Comment
	_literalBeg
	Ident
	Int
	Hex
	Oct
	Float
	String
	StripString
	_literalEnd
	_operatorBeg
	Attribute  // ->
	MapUnpack  // **
	Module     // ::
	Semicolon  // ;
	Comma      // ,
	Period     // .
	Colon      // :
	Underscore // _
	LParen     // (
	RParen     // )
	Assign     // =
	LBrack     // [
	RBrack     // ]
	LBrace     // {
	RBrace     // }
	Pipe       // |
	Mul        // *
	Quo        // /
	_operatorEnd
	_keywordBeg
	Def
	Else
	End
	If
	Is
	Let
	Return
	_keywordEnd
)

var tokens = [...]string{
	Illegal:     "ILLEGAL",
	EOF:         "EOF",
	Comment:     "COMMENT",
	Ident:       "NAME",
	Int:         "DEC",
	Hex:         "HEX",
	Oct:         "OCT",
	Float:       "FLOAT",
	String:      "STRING",
	StripString: "STRIP_STRING",
	Attribute:   "->",
	MapUnpack:   "**",
	Module:      "::",
	Semicolon:   ";",
	Comma:       ",",
	Period:      ".",
	Colon:       ":",
	Underscore:  "_",
	LParen:      "(",
	RParen:      ")",
	Assign:      "=",
	LBrack:      "[",
	RBrack:      "]",
	LBrace:      "{",
	RBrace:      "}",
	Pipe:        "|",
	Mul:         "*",
	Quo:         "/",
	Def:         "def",
	Else:        "else",
	End:         "end",
	If:          "if",
	Is:          "is",
	Let:         "let",
	Return:      "return",
}

func (tok Token) String() string {
	s := ""

	if 0 <= tok && tok < Token(len(tokens)) {
		s = tokens[tok]
	}

	if s == "" {
		s = "token(" + strconv.Itoa(int(tok)) + ")"
	}
	return s
}

// IsLiteral returns true if the token is a literal.
func (tok Token) IsLiteral() bool {
	return _literalBeg < tok && tok < _literalEnd
}

// IsOperator returns true if the token is an operator or a delimiter.
func (tok Token) IsOperator() bool {
	return _operatorBeg < tok && tok < _operatorEnd
}

// IsKeyword returns true if the token is a keyword.
func (tok Token) IsKeyword() bool {
	return _keywordBeg < tok && tok < _keywordEnd
}

var keywords map[string]Token

var singles map[byte]Token

func init() {
	keywords = make(map[string]Token)
	for i := _keywordBeg + 1; i < _keywordEnd; i++ {
		keywords[tokens[i]] = i
	}

	singles = make(map[byte]Token)
	for i := Semicolon; i <= Quo; i++ {
		singles[tokens[i][0]] = i
	}
}

// Lookup returns corresponding keyword if ident is a keyword, otherwise Ident.
func Lookup(ident string) Token {
	if tok, isKeyword := keywords[ident]; isKeyword {
		return tok
	}
	return Ident
}

// LookupSingle returns the token of a one character delimiter, or Illegal.
func LookupSingle(ch byte) Token {
	if tok, ok := singles[ch]; ok {
		return tok
	}
	return Illegal
}
