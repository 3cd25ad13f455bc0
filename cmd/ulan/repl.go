// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/peterh/liner"

	"github.com/ozanh/ulan"
	"github.com/ozanh/ulan/token"
)

const (
	promptPrefix  = ">>> "
	promptPrefix2 = "... "
)

const history = "let x = 1;\n" +
	"let (a, *b) = (1, 2, 3);\n" +
	"def f(a, b=1, *c, **kw): return a .add. b; end\n" +
	"if let [x, y] = [1, 2]: ::print(x, y); end\n" +
	"::print({[hello]}, end:{[]});\n"

// Sentinel errors for repl.
var (
	errExit  = errors.New("exit")
	errReset = errors.New("reset")
)

var suggestions []suggest
var initialSuggLen int

type suggest struct {
	text        string
	description string
	typ         string
}

type repl struct {
	ctx         context.Context
	eval        *ulan.Eval
	out         io.Writer
	commands    map[string]func(string) error
	script      *bytes.Buffer
	lastCode    *ulan.Code
	lastResult  ulan.Object
	isMultiline bool
}

func newREPL(ctx context.Context, a *app, stdout io.Writer) *repl {
	if stdout == nil {
		stdout = os.Stdout
	}

	opts := a.compilerOptions(replFilename)
	if opts.Trace != nil {
		opts.Trace = stdout
	}

	// names of the namespace are passed to the compiler by Eval
	opts.Globals = nil
	globals, err := a.cfg.globalDict()
	if err != nil {
		a.log.WithError(err).Warn("globals are ignored")
		globals = nil
	}

	eval := ulan.NewEval(opts, globals)
	eval.VM.SetModuleMap(a.moduleMap("."))

	r := &repl{
		ctx:    ctx,
		eval:   eval,
		out:    stdout,
		script: bytes.NewBuffer(nil),
	}
	r.setGlobalSuggestions()

	r.commands = map[string]func(string) error{
		".commands": r.cmdCommands,
		".builtins": r.cmdBuiltins,
		".keywords": r.cmdKeywords,
		".code":     r.cmdCode,
		".globals":  r.cmdGlobals,
		".return":   r.cmdReturn,
		".return+":  r.cmdReturnVerbose,
		".gc":       r.cmdGC,
		".reset":    func(string) error { return errReset },
		".exit":     func(string) error { return errExit },
	}
	return r
}

func (r *repl) cmdCommands(_ string) error {
	suggs, pad := r.rangeSuggestions(
		func(s suggest) bool { return s.typ == "" },
	)
	r.printSuggestions(suggs, pad)
	return nil
}

func (r *repl) cmdBuiltins(_ string) error {
	suggs, pad := r.rangeSuggestions(
		func(s suggest) bool { return s.typ == "builtin" },
	)
	sort.Slice(suggs, func(i, j int) bool {
		return suggs[i].text < suggs[j].text
	})
	r.printSuggestions(suggs, pad)
	return nil
}

func (r *repl) cmdKeywords(_ string) error {
	suggs, pad := r.rangeSuggestions(
		func(s suggest) bool { return s.typ == "keyword" },
	)
	r.printSuggestions(suggs, pad)
	return nil
}

func (*repl) rangeSuggestions(filter func(suggest) bool) ([]suggest, int) {
	var suggs []suggest
	var maxtext int
	for _, v := range suggestions {
		if !filter(v) {
			continue
		}
		suggs = append(suggs, v)
		if maxtext < len(v.text) {
			maxtext = len(v.text)
		}
	}
	return suggs, maxtext
}

func (r *repl) printSuggestions(suggs []suggest, maxtext int) {
	for _, cmd := range suggs {
		_, _ = fmt.Fprintf(r.out, "%s", cmd.text)
		if len(cmd.description) > 0 {
			_, _ = fmt.Fprintf(r.out, "%s", strings.Repeat(" ", maxtext-len(cmd.text)))
			_, _ = fmt.Fprintf(r.out, "\t%v", cmd.description)
		}
		_, _ = fmt.Fprintln(r.out)
	}
}

func (r *repl) cmdCode(_ string) error {
	if r.lastCode != nil {
		r.lastCode.Fprint(r.out)
	}
	return nil
}

func (*repl) cmdGC(_ string) error {
	runtime.GC()
	return nil
}

func (r *repl) cmdGlobals(_ string) error {
	_, _ = fmt.Fprintf(r.out, "%s\n", r.eval.Globals)
	return nil
}

func (r *repl) cmdReturn(_ string) error {
	if r.lastResult != nil {
		_, _ = fmt.Fprintln(r.out, ulan.Repr(r.lastResult))
	}
	return nil
}

func (r *repl) cmdReturnVerbose(_ string) error {
	if r.lastResult != nil {
		_, _ = fmt.Fprintf(r.out,
			"GoType:%[1]T, TypeName:%[2]s, Value:%#[1]v\n",
			r.lastResult, r.lastResult.TypeName())
	} else {
		_, _ = fmt.Fprintln(r.out, "<nil>")
	}
	return nil
}

func (r *repl) writeString(msg string) {
	_, _ = fmt.Fprint(r.out, msg)
	_, _ = fmt.Fprintln(r.out)
}

func (r *repl) execute(line string) error {
	switch {
	case !r.isMultiline && strings.TrimSpace(line) == "":
		return nil
	case !r.isMultiline && len(line) > 0 && line[0] == '.':
		cmd := strings.Fields(line)[0]
		if fn, ok := r.commands[cmd]; ok {
			return fn(line)
		}
	}

	r.script.WriteString(line)
	r.script.WriteString("\n")

	if r.executeScript() {
		r.isMultiline = true
		return nil
	}

	r.isMultiline = false
	r.setGlobalSuggestions()
	r.script.Reset()
	return nil
}

// executeScript runs the buffered script and reports whether more input is
// needed to complete it.
func (r *repl) executeScript() bool {
	var err error

	r.lastResult, r.lastCode, err = r.eval.Run(r.ctx, r.script.Bytes())
	if err != nil {
		if errors.Is(err, ulan.ErrIncompleteInput) {
			return true
		}
		printDiagnostic(r.out, err)
		return false
	}
	r.writeString(fmt.Sprintf("⇦   %s", ulan.Repr(r.lastResult)))
	return false
}

func (r *repl) setGlobalSuggestions() {
	suggestions = suggestions[:initialSuggLen]
	for _, name := range r.eval.GlobalNames() {
		if strings.HasPrefix(name, "__") {
			continue
		}
		suggestions = append(suggestions,
			suggest{
				text:        name,
				description: "global",
				typ:         "global",
			},
		)
	}
}

func (r *repl) prefix() string {
	if r.isMultiline {
		return promptPrefix2
	}
	return promptPrefix
}

func (r *repl) printInfo() {
	_, _ = fmt.Fprintln(r.out, infoStyleBG.Sprint(" ulan "),
		"Build:", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	_, _ = fmt.Fprintln(r.out, "Write .commands to list available commands")
	_, _ = fmt.Fprintln(r.out, "Press Ctrl+D or write .exit command to exit")
	_, _ = fmt.Fprintln(r.out)
}

func (r *repl) run(history io.Reader) error {
	line := liner.NewLiner()
	defer line.Close()

	line.SetMultiLineMode(true)
	line.SetCompleter(complete)
	_, err := line.ReadHistory(history)
	if err != nil {
		err = &ulan.Error{Message: "failed history read", Cause: err}
		return err
	}
	r.printInfo()

	var str string

	for err == nil {
		str, err = line.Prompt(r.prefix())
		if err != nil {
			if err == io.EOF {
				err = nil
				break
			}
			err = &ulan.Error{Message: "prompt error", Cause: err}
			break
		}
		err = r.execute(str)
		if err == nil {
			if v := strings.TrimSpace(str); len(v) > 0 {
				line.AppendHistory(v)
			}
		}
	}
	return err
}

// complete returns the suggestions starting with line first, followed by the
// fuzzy matches.
func complete(line string) (completions []string) {
	if line == "" {
		return nil
	}
	targets := make([]string, 0, len(suggestions))
	for _, v := range suggestions {
		if strings.HasPrefix(v.text, line) {
			completions = append(completions, v.text)
		} else {
			targets = append(targets, v.text)
		}
	}
	completions = append(completions, fuzzy.Find(line, targets)...)
	return
}

func initSuggestions() {
	suggestions = []suggest{
		// Commands
		{text: ".commands", description: "Print REPL commands"},
		{text: ".builtins", description: "Print Builtins"},
		{text: ".keywords", description: "Print Keywords"},
		{text: ".code", description: "Print Code of the last input"},
		{text: ".globals", description: "Print Globals"},
		{text: ".return", description: "Print Last Return Result"},
		{text: ".return+", description: "Print Last Return Result (verbose)"},
		{text: ".gc", description: "Run Garbage Collector"},
		{text: ".reset", description: "Reset"},
		{text: ".exit", description: "Exit"},
	}

	for name := range ulan.BuiltinsMap {
		o, _ := ulan.LookupBuiltin(name)
		desc := "Builtin"
		switch o.(type) {
		case *ulan.BuiltinFunction:
			desc = "Builtin Function"
		case *ulan.Type:
			desc = "Builtin Type"
		}
		suggestions = append(suggestions,
			suggest{
				text:        name,
				description: desc,
				typ:         "builtin",
			},
		)
	}

	for tok := token.Def; tok.IsKeyword(); tok++ {
		suggestions = append(suggestions, suggest{
			text: tok.String(),
			typ:  "keyword",
		})
	}
	initialSuggLen = len(suggestions)
}
