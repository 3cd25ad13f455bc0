// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package ulan

import (
	"fmt"
	"strings"
)

// Compile time error kinds. A *CompilerError wraps one of them.
var (
	// ErrLex is the kind of errors for characters no token starts with.
	ErrLex = &Error{Name: "LexError"}

	// ErrParse is the kind of errors for unexpected tokens.
	ErrParse = &Error{Name: "ParseError"}

	// ErrIncompleteInput is the kind of parse errors caused by the end of
	// input. A REPL reads more lines instead of reporting it.
	ErrIncompleteInput = &Error{Name: "IncompleteInput"}

	// ErrScope is the kind of errors for names that are not defined.
	ErrScope = &Error{Name: "ScopeError"}

	// ErrSyntax is the kind of errors for illegal self and super module
	// paths, duplicate parameters and invalid literals.
	ErrSyntax = &Error{Name: "SyntaxError"}
)

var (
	// ErrMatchException is the cause of the exceptions raised when a let
	// statement or a function call does not match.
	ErrMatchException = &Error{Name: "MatchException"}

	// ErrName represents a reference to an unbound name at run time.
	ErrName = &Error{Name: "NameError"}

	// ErrStackOverflow represents a stack overflow error.
	ErrStackOverflow = &Error{Name: "StackOverflowError"}

	// ErrVMAborted represents a VM aborted error.
	ErrVMAborted = &Error{Name: "VMAbortedError"}

	// ErrWrongNumArguments represents a wrong number of arguments error.
	ErrWrongNumArguments = &Error{Name: "WrongNumberOfArgumentsError"}

	// ErrIndexOutOfBounds represents an out of bounds index error.
	ErrIndexOutOfBounds = &Error{Name: "IndexOutOfBoundsError"}

	// ErrKey represents a missing dict key.
	ErrKey = &Error{Name: "KeyError"}

	// ErrAttribute represents a missing attribute.
	ErrAttribute = &Error{Name: "AttributeError"}

	// ErrImport represents a module that cannot be imported.
	ErrImport = &Error{Name: "ImportError"}

	// ErrNotIndexable is an error where an Object is not indexable.
	ErrNotIndexable = &Error{Name: "NotIndexableError"}

	// ErrNotCallable is an error where Object is not callable.
	ErrNotCallable = &Error{Name: "NotCallableError"}

	// ErrType represents a type error.
	ErrType = &Error{Name: "TypeError"}

	// ErrException is the cause of exceptions raised with objects that are
	// not errors.
	ErrException = &Error{Name: "Exception"}
)

// NewArgumentTypeError creates a new Error from ErrType.
func NewArgumentTypeError(pos, expectType, foundType string) *Error {
	return ErrType.NewError(
		fmt.Sprintf("invalid type for argument '%s': expected %s, found %s",
			pos, expectType, foundType))
}

// NewIndexTypeError creates a new Error from ErrType.
func NewIndexTypeError(expectType, foundType string) *Error {
	return ErrType.NewError(
		fmt.Sprintf("index type expected %s, found %s", expectType, foundType))
}

// CompilerError represents a compile time error with the position of the
// offending source text.
type CompilerError struct {
	Kind     *Error
	Filename string
	Line     int
	Column   int
	LineText string
	Msg      string
	Err      error
}

func (e *CompilerError) Error() string {
	var sb strings.Builder
	_, _ = fmt.Fprintf(&sb, "File \"%s\", line %d\n", e.Filename, e.Line)
	if e.LineText != "" {
		sb.WriteString("    ")
		sb.WriteString(e.LineText)
		sb.WriteString("\n    ")
		sb.WriteString(e.Caret())
		sb.WriteByte('\n')
	}
	sb.WriteString(e.Kind.Name)
	sb.WriteString(": ")
	sb.WriteString(e.Msg)
	return sb.String()
}

// Caret returns a line pointing at Column of LineText. Tabs are kept so the
// caret lines up when printed under LineText.
func (e *CompilerError) Caret() string {
	var sb strings.Builder
	for i, r := range []rune(e.LineText) {
		if i >= e.Column-1 {
			break
		}
		if r == '\t' {
			sb.WriteRune(r)
		} else {
			sb.WriteByte(' ')
		}
	}
	sb.WriteByte('^')
	return sb.String()
}

// Unwrap returns the error kind and the underlying error.
func (e *CompilerError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
