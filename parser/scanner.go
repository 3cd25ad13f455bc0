// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package parser

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ozanh/ulan/token"
)

// ScannerErrorHandler is an error handler for the scanner.
type ScannerErrorHandler func(pos SourceFilePos, msg string)

// Scanner reads the source text and produces tokens one at a time. A Scanner
// cannot be rewound; scan the text again with a new Scanner instead.
type Scanner struct {
	file         *SourceFile
	src          []byte
	ch           rune // current character, -1 means end of file
	offset       int  // character offset
	readOffset   int  // reading offset (position after current character)
	errorHandler ScannerErrorHandler
	errorCount   int
	incomplete   bool
}

// NewScanner creates a Scanner.
func NewScanner(file *SourceFile, src []byte, errorHandler ScannerErrorHandler) *Scanner {
	if file.Size != len(src) {
		panic(fmt.Sprintf("file size (%d) does not match src len (%d)",
			file.Size, len(src)))
	}

	s := &Scanner{
		file:         file,
		src:          src,
		errorHandler: errorHandler,
		ch:           ' ',
	}

	s.next()
	return s
}

// ErrorCount returns the number of errors.
func (s *Scanner) ErrorCount() int {
	return s.errorCount
}

// Incomplete reports whether the scanner ran out of input inside a token,
// e.g. an unterminated string.
func (s *Scanner) Incomplete() bool {
	return s.incomplete
}

// Scan returns the next token. For string tokens the literal is the decoded
// string value; for the other literal tokens it is the source text.
func (s *Scanner) Scan() (tok token.Token, literal string, pos Pos) {
	s.skipIgnored()

	pos = s.file.Pos(s.offset)

	switch ch := s.ch; {
	case isLetter(ch):
		literal = s.scanIdentifier()
		tok = token.Lookup(literal)
	case isDecimal(ch) || (ch == '.' && isDecimal(rune(s.peek()))):
		tok, literal = s.scanNumber()
	default:
		s.next() // always make progress

		switch ch {
		case -1:
			tok = token.EOF
		case '-':
			if s.ch == '>' {
				s.next()
				tok, literal = token.Attribute, "->"
				break
			}
			s.error(s.offset-1, fmt.Sprintf("Bad character %q", ch))
			tok, literal = token.Illegal, string(ch)
		case '*':
			tok, literal = s.switch2(token.Mul, '*', token.MapUnpack)
		case ':':
			tok, literal = s.switch2(token.Colon, ':', token.Module)
		case '{':
			if kind, marker, ok := s.stringStart(); ok {
				tok, literal = s.scanString(kind, marker)
				break
			}
			tok, literal = token.LBrace, "{"
		default:
			tok = token.LookupSingle(byte(ch))
			literal = string(ch)
			if ch >= utf8.RuneSelf {
				start := s.offset - 1
				r, size := utf8.DecodeRune(s.src[start:])
				for i := 1; i < size; i++ {
					s.next()
				}
				literal = string(r)
				s.error(start, fmt.Sprintf("Bad character %q", r))
				tok = token.Illegal
			} else if tok == token.Illegal {
				s.error(s.offset-1, fmt.Sprintf("Bad character %q", ch))
			}
		}
	}
	return
}

func (s *Scanner) next() {
	if s.readOffset < len(s.src) {
		s.offset = s.readOffset
		if s.ch == '\n' {
			s.file.AddLine(s.offset)
		}
		s.ch = rune(s.src[s.readOffset])
		s.readOffset++
	} else {
		s.offset = len(s.src)
		if s.ch == '\n' {
			s.file.AddLine(s.offset)
		}
		s.ch = -1 // eof
	}
}

func (s *Scanner) peek() byte {
	if s.readOffset < len(s.src) {
		return s.src[s.readOffset]
	}
	return 0
}

func (s *Scanner) error(offset int, msg string) {
	if s.errorHandler != nil {
		s.errorHandler(s.file.Position(s.file.Pos(offset)), msg)
	}
	s.errorCount++
}

func (s *Scanner) skipIgnored() {
	for {
		switch s.ch {
		case ' ', '\t', '\r', '\n':
			s.next()
		case '#':
			for s.ch != '\n' && s.ch >= 0 {
				s.next()
			}
		default:
			return
		}
	}
}

func (s *Scanner) scanIdentifier() string {
	offs := s.offset
	for isLetter(s.ch) || isDecimal(s.ch) {
		s.next()
	}
	return string(s.src[offs:s.offset])
}

func (s *Scanner) scanDigits(valid func(rune) bool) int {
	n := 0
	for valid(s.ch) {
		s.next()
		n++
	}
	return n
}

func (s *Scanner) scanNumber() (token.Token, string) {
	offs := s.offset

	if s.ch == '0' {
		switch s.peek() {
		case 'x', 'X':
			s.next()
			s.next()
			if s.scanDigits(isHex) == 0 {
				s.error(offs, "hexadecimal literal has no digits")
				return token.Illegal, string(s.src[offs:s.offset])
			}
			return token.Hex, string(s.src[offs:s.offset])
		case 'o', 'O':
			s.next()
			s.next()
			if s.scanDigits(isOctal) == 0 {
				s.error(offs, "octal literal has no digits")
				return token.Illegal, string(s.src[offs:s.offset])
			}
			return token.Oct, string(s.src[offs:s.offset])
		}
	}

	tok := token.Int
	s.scanDigits(isDecimal)

	// a period makes a float only when a digit follows, so `1 .gt. 2` and
	// `1.gt.2` keep the period as an operator delimiter
	if s.ch == '.' && isDecimal(rune(s.peek())) {
		tok = token.Float
		s.next()
		s.scanDigits(isDecimal)
	}

	if s.ch == 'e' || s.ch == 'E' {
		save := *s
		s.next()
		if s.ch == '+' || s.ch == '-' {
			s.next()
		}
		if s.scanDigits(isDecimal) > 0 {
			tok = token.Float
		} else {
			*s = save
		}
	}
	return tok, string(s.src[offs:s.offset])
}

func (s *Scanner) switch2(tok0 token.Token, ch byte, tok1 token.Token) (token.Token, string) {
	if s.ch == rune(ch) {
		s.next()
		return tok1, tok1.String()
	}
	return tok0, tok0.String()
}

// stringStart checks whether the opening brace just consumed starts a string
// of the form {==[ or {--[ and consumes the marker and the bracket.
func (s *Scanner) stringStart() (kind token.Token, marker string, ok bool) {
	i := s.offset
	if i >= len(s.src) {
		return
	}

	kind = token.String
	c := s.src[i]
	if c == '-' {
		kind = token.StripString
	} else if c != '=' && c != '[' {
		return
	}

	j := i
	if c != '[' {
		for j < len(s.src) && s.src[j] == c {
			j++
		}
	}
	if j >= len(s.src) || s.src[j] != '[' {
		return
	}

	marker = string(s.src[i:j])
	for s.offset <= j {
		s.next()
	}
	return kind, marker, true
}

func (s *Scanner) scanString(kind token.Token, marker string) (token.Token, string) {
	start := s.offset
	closing := "]" + marker + "}"

	end := strings.Index(string(s.src[start:]), closing)
	if end < 0 {
		s.incomplete = true
		s.error(start, "string literal not terminated")
		for s.ch >= 0 {
			s.next()
		}
		return token.Illegal, string(s.src[start:])
	}

	value := string(s.src[start : start+end])
	for s.offset < start+end+len(closing) {
		s.next()
	}

	if kind == token.StripString {
		return kind, strings.TrimSpace(value)
	}

	if marker != "" {
		if p := strings.IndexByte(value, '\n'); p >= 0 &&
			strings.TrimSpace(value[:p]) == "" {
			value = value[p+1:]
		}
		if p := strings.LastIndexByte(value, '\n'); p >= 0 &&
			strings.TrimSpace(value[p:]) == "" {
			value = value[:p]
		}
	}
	return kind, value
}

func isLetter(ch rune) bool {
	return 'a' <= ch && ch <= 'z' || 'A' <= ch && ch <= 'Z' || ch == '_'
}

func isDecimal(ch rune) bool { return '0' <= ch && ch <= '9' }

func isOctal(ch rune) bool { return '0' <= ch && ch <= '7' }

func isHex(ch rune) bool {
	return '0' <= ch && ch <= '9' || 'a' <= lower(ch) && lower(ch) <= 'f'
}

func lower(ch rune) rune { return ('a' - 'A') | ch }
