// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package ulan

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"

	"github.com/sirupsen/logrus"

	"github.com/ozanh/ulan/ast"
	"github.com/ozanh/ulan/parser"
)

// Names of the builtins generated code refers to.
const (
	matchMethod        = "__umatch__"
	builtinValue       = ".value"
	builtinVar         = ".var"
	builtinGlobalVar   = ".gvar"
	builtinNew         = ".new"
	builtinGlobalNew   = ".gnew"
	builtinGlobals     = ".globals"
	builtinMatchExc    = ".MatchException"
	builtinTupleMatch  = ".tuple"
	builtinListMatch   = ".list"
	builtinSetMatch    = ".set"
	builtinDictMatch   = ".dict"
	builtinCallMatch   = ".call"
	builtinAndMatch    = ".and"
	builtinRestMatch   = ".rest"
	defaultFilename    = "(main)"
	builtinsModuleName = "builtins"
)

// CompilerOptions represents customizable options for Compile().
type CompilerOptions struct {
	// Filename is reported in errors and tracebacks.
	Filename string
	// Globals are the names known to be bound in the global namespace the
	// code runs in, such as the names bound by previous REPL inputs.
	Globals       []string
	Trace         io.Writer
	TraceParser   bool
	TraceCompiler bool
	Logger        logrus.FieldLogger
}

var (
	// DefaultCompilerOptions holds default Compiler options.
	DefaultCompilerOptions = CompilerOptions{
		Filename: defaultFilename,
	}
	// TraceCompilerOptions holds Compiler options to print trace output
	// to stdout for Parser and Compiler.
	TraceCompilerOptions = CompilerOptions{
		Filename:      defaultFilename,
		Trace:         os.Stdout,
		TraceParser:   true,
		TraceCompiler: true,
	}
)

func (opts *CompilerOptions) logger() logrus.FieldLogger {
	if opts.Logger != nil {
		return opts.Logger
	}
	return discardLogger
}

var discardLogger = func() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}()

// Compiler generates the code of a single scope of a resolved file.
type Compiler struct {
	parent *Compiler
	file   *parser.SourceFile
	res    *Resolution
	scope  ScopeID
	asm    *Assembler
	opts   CompilerOptions
	trace  io.Writer
	indent int
}

// NewCompiler creates a Compiler for the file scope of a resolved file.
func NewCompiler(file *parser.SourceFile, res *Resolution, opts CompilerOptions) *Compiler {
	var trace io.Writer
	if opts.TraceCompiler {
		trace = opts.Trace
	}
	return &Compiler{
		file:  file,
		res:   res,
		scope: res.Table.FileScope(),
		asm:   NewAssembler(1),
		opts:  opts,
		trace: trace,
	}
}

// Compile compiles given source to a code unit. It returns a
// *CompilerError if src cannot be lexed, parsed or resolved. No code is
// returned in that case.
func Compile(src []byte, opts CompilerOptions) (*Code, error) {
	if opts.Filename == "" {
		opts.Filename = defaultFilename
	}
	log := opts.logger().WithField("file", opts.Filename)

	fileSet := parser.NewFileSet()
	srcFile := fileSet.AddFile(opts.Filename, -1, src)

	var trace io.Writer
	if opts.TraceParser {
		trace = opts.Trace
	}
	pf, err := parser.NewParser(srcFile, src, trace).ParseFile()
	if err != nil {
		return nil, newCompilerError(srcFile, err)
	}
	log.Debug("parsed")

	file, err := ast.Transform(pf)
	if err != nil {
		return nil, newCompilerError(srcFile, err)
	}
	log.WithField("nodes", file.NumIDs).Debug("transformed")

	res, err := Resolve(file, opts.Globals)
	if err != nil {
		return nil, newCompilerError(srcFile, err)
	}
	log.Debug("resolved")

	code := NewCompiler(srcFile, res, opts).CompileFile(file)
	log.WithFields(logrus.Fields{
		"consts": len(code.Consts),
		"names":  len(code.Names),
		"bytes":  len(code.Code),
	}).Debug("compiled")
	return code, nil
}

// CompileFile generates the code unit of file.
func (c *Compiler) CompileFile(file *ast.File) *Code {
	if c.trace != nil {
		defer untracec(tracec(c, "File"))
	}

	c.compileStmts(file.Body)
	c.asm.EmitConst(None)
	c.asm.Emit(OpReturnValue, 0)
	return c.build(filepath.Base(c.opts.Filename), 1, 0, 0, 0)
}

// fork returns a Compiler for the function scope of fn.
func (c *Compiler) fork(fn *ast.Function) *Compiler {
	child := &Compiler{
		parent: c,
		file:   c.file,
		res:    c.res,
		scope:  c.res.Scope(fn),
		asm:    NewAssembler(c.file.Line(fn.Pos())),
		opts:   c.opts,
		trace:  c.trace,
		indent: c.indent,
	}
	return child
}

// build packages the assembled instructions into a Code.
func (c *Compiler) build(name string, firstLine, argCount, kwOnlyCount, flags int) *Code {
	code, lnotab := c.asm.Assemble(firstLine)
	varNames, cellVars, freeVars := c.res.Table.Slots(c.scope)

	if len(cellVars) == 0 && len(freeVars) == 0 {
		flags |= CodeNoFree
	}
	if len(freeVars) > 0 {
		flags |= CodeNested
	}

	consts := append([]Object(nil), c.asm.Consts()...)
	if c.trace != nil {
		c.printTrace(fmt.Sprintf("<code %s: %d bytes, %d consts, stack %d>",
			name, len(code), len(consts), c.asm.MaxDepth()))
	}
	return &Code{
		ArgCount:       argCount,
		KwOnlyArgCount: kwOnlyCount,
		NLocals:        len(varNames),
		StackSize:      c.asm.MaxDepth(),
		Flags:          flags,
		Code:           code,
		Consts:         consts,
		Names:          append([]string(nil), c.asm.Names()...),
		VarNames:       append([]string(nil), varNames...),
		Filename:       c.opts.Filename,
		Name:           name,
		FirstLineNo:    firstLine,
		LnoTab:         lnotab,
		FreeVars:       append([]string(nil), freeVars...),
		CellVars:       append([]string(nil), cellVars...),
	}
}

// newCompilerError converts errors of the compile passes into a
// *CompilerError.
func newCompilerError(file *parser.SourceFile, err error) error {
	var (
		kind *Error
		pos  parser.SourceFilePos
		msg  string
	)

	var (
		pe *parser.Error
		ae *ast.Error
		se *scopeError
	)
	switch {
	case errors.As(err, &pe):
		switch pe.Kind {
		case parser.LexError:
			kind = ErrLex
		case parser.IncompleteInput:
			kind = ErrIncompleteInput
		default:
			kind = ErrParse
		}
		pos, msg = pe.Pos, pe.Msg
	case errors.As(err, &ae):
		kind, pos, msg = ErrSyntax, ae.Pos, ae.Msg
	case errors.As(err, &se):
		kind, pos, msg = ErrScope, file.Position(se.pos), se.msg
	default:
		return err
	}

	filename := pos.Filename
	if filename == "" {
		filename = file.Name
	}
	return &CompilerError{
		Kind:     kind,
		Filename: filename,
		Line:     pos.Line,
		Column:   pos.Column,
		LineText: file.LineText(pos.Line),
		Msg:      msg,
		Err:      err,
	}
}

func (c *Compiler) printTrace(a ...interface{}) {
	const (
		dots = ". . . . . . . . . . . . . . . . . . . . . . . . . . . . . . . "
		n    = len(dots)
	)

	i := 2 * c.indent
	for i > n {
		_, _ = fmt.Fprint(c.trace, dots)
		i -= n
	}
	_, _ = fmt.Fprint(c.trace, dots[0:i])
	_, _ = fmt.Fprintln(c.trace, a...)
}

func tracec(c *Compiler, msg string) *Compiler {
	c.printTrace(msg, "{")
	c.indent++
	return c
}

func untracec(c *Compiler) {
	c.indent--
	c.printTrace("}")
}

func nodeName(n ast.Node) string {
	return reflect.TypeOf(n).Elem().Name()
}
