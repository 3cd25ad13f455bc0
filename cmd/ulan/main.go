// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

//go:build !js
// +build !js

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ComedicChimera/olive"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/ozanh/ulan"
	"github.com/ozanh/ulan/encoder"
	"github.com/ozanh/ulan/importers"
	"github.com/ozanh/ulan/stdlib"
)

const (
	title        = "ulan"
	compiledExt  = ".ulc"
	stdinName    = "(stdin)"
	replFilename = "(repl)"
)

// app holds the state shared by subcommands.
type app struct {
	cfg    *config
	log    *logrus.Logger
	stdout io.Writer
	stderr io.Writer
}

func newApp(cfg *config, debug bool) *app {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	if debug || cfg.Debug {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.WarnLevel)
	}
	return &app{
		cfg:    cfg,
		log:    log,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
}

func (a *app) compilerOptions(filename string) ulan.CompilerOptions {
	opts := ulan.DefaultCompilerOptions
	opts.Filename = filename
	opts.Logger = a.log
	opts.Globals = a.cfg.globalNames()
	if a.cfg.Trace.Parser || a.cfg.Trace.Compiler {
		opts.Trace = a.stdout
		opts.TraceParser = a.cfg.Trace.Parser
		opts.TraceCompiler = a.cfg.Trace.Compiler
	}
	return opts
}

func (a *app) moduleMap(workdir string) *ulan.ModuleMap {
	paths := []string{workdir}
	for _, p := range a.cfg.Modules.Paths {
		if !filepath.IsAbs(p) {
			p = filepath.Join(a.cfg.dir, p)
		}
		paths = append(paths, p)
	}
	return stdlib.Modules().SetExtImporter(
		&importers.FileImporter{
			Paths:  paths,
			Ext:    a.cfg.Modules.Ext,
			Logger: a.log,
		},
	)
}

// load returns the code of the file at path, compiled files are decoded.
func (a *app) load(path string) (*ulan.Code, error) {
	if strings.HasSuffix(path, compiledExt) {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		a.log.WithField("file", path).Debug("decoding compiled file")
		return encoder.DecodeCodeFrom(f)
	}

	var (
		src []byte
		err error
	)
	filename := path
	if path == "-" {
		filename = stdinName
		src, err = io.ReadAll(os.Stdin)
	} else {
		src, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	return ulan.Compile(src, a.compilerOptions(filename))
}

func (a *app) runFile(ctx context.Context, path string) error {
	code, err := a.load(path)
	if err != nil {
		return err
	}

	workdir := "."
	if path != "-" {
		workdir = filepath.Dir(path)
	}

	globals, err := a.cfg.globalDict()
	if err != nil {
		return err
	}

	vm := ulan.NewVM(code).
		SetRecover(true).
		SetModuleMap(a.moduleMap(workdir))
	if a.cfg.Run.MaxFrames > 0 {
		vm.SetMaxFrames(a.cfg.Run.MaxFrames)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err = vm.Run(globals)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		vm.Abort()
		<-done
		if err == nil {
			err = ctx.Err()
		}
	}
	return err
}

// checkFiles compiles every source file found under paths and returns all
// compile errors.
func (a *app) checkFiles(paths ...string) error {
	var result *multierror.Error
	for _, root := range paths {
		files, err := sourceFiles(root, a.cfg.ext())
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		for _, file := range files {
			src, err := os.ReadFile(file)
			if err != nil {
				result = multierror.Append(result, err)
				continue
			}
			if _, err = ulan.Compile(src, a.compilerOptions(file)); err != nil {
				result = multierror.Append(result, err)
				continue
			}
			a.log.WithField("file", file).Debug("ok")
		}
	}
	return result.ErrorOrNil()
}

func (a *app) disassemble(path string) error {
	code, err := a.load(path)
	if err != nil {
		return err
	}
	code.Fprint(a.stdout)
	return nil
}

func (a *app) build(path, out string) (string, error) {
	if out == "" {
		out = strings.TrimSuffix(path, filepath.Ext(path)) + compiledExt
	}
	code, err := a.load(path)
	if err != nil {
		return "", err
	}
	if err = encoder.Validate(code); err != nil {
		return "", err
	}

	f, err := os.Create(out)
	if err != nil {
		return "", err
	}
	if err = encoder.EncodeCodeTo(code, f); err != nil {
		_ = f.Close()
		return "", err
	}
	a.log.WithFields(logrus.Fields{"src": path, "out": out}).Debug("compiled")
	return out, f.Close()
}

func sourceFiles(root, ext string) ([]string, error) {
	st, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !st.IsDir() {
		return []string{root}, nil
	}
	var files []string
	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ext {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func parseArgs(args []string) (*olive.ArgParseResult, error) {
	cli := olive.NewCLI(title, "ulan compiles and runs ulan programs", true)
	cli.AddFlag("debug", "d", "enable debug logging")
	cli.AddStringArg("trace", "t", "comma separated units to trace: parser,compiler", false)
	cli.AddStringArg("config", "c", "path of the ulan.toml file", false)

	runCmd := cli.AddSubcommand("run", "compile and run a source or compiled file", true)
	runCmd.AddPrimaryArg("file", "the file to run, - reads from stdin", true)
	runCmd.AddStringArg("timeout", "to", "program timeout such as 5s", false)

	cli.AddSubcommand("repl", "start the interactive terminal", false)

	checkCmd := cli.AddSubcommand("check", "compile files and report errors", true)
	checkCmd.AddPrimaryArg("path", "a source file or a directory of source files", true)

	disCmd := cli.AddSubcommand("dis", "print the bytecode of a file", true)
	disCmd.AddPrimaryArg("file", "the file to disassemble", true)

	buildCmd := cli.AddSubcommand("build", "compile a source file to a "+compiledExt+" file", true)
	buildCmd.AddPrimaryArg("file", "the file to compile", true)
	buildCmd.AddStringArg("output", "o", "the output path", false)
	return olive.ParseArgs(cli, args)
}

func stringArg(result *olive.ArgParseResult, name string) string {
	if v, ok := result.Arguments[name]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func main() {
	result, err := parseArgs(os.Args)
	if err != nil {
		printErrorMessage(os.Stderr, "Usage Error", err)
		os.Exit(2)
	}

	subcmdName, subResult, _ := result.Subcommand()
	if subcmdName == "" {
		subcmdName = "repl"
	}

	primary := ""
	if subResult != nil {
		primary, _ = subResult.PrimaryArg()
	}

	cfgPath := stringArg(result, "config")
	if cfgPath == "" {
		dir := "."
		if primary != "" && primary != "-" {
			dir = filepath.Dir(primary)
		}
		cfgPath = findConfig(dir)
	}
	cfg, err := loadConfig(cfgPath)
	checkErr(err, nil)
	cfg.setTrace(stringArg(result, "trace"))

	a := newApp(cfg, result.HasFlag("debug"))
	a.log.WithFields(logrus.Fields{
		"command": subcmdName,
		"config":  cfgPath,
	}).Debug("starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	switch subcmdName {
	case "run":
		timeout, err := cfg.timeout(stringArg(subResult, "timeout"))
		checkErr(err, cancel)
		if timeout > 0 {
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		checkErr(a.runFile(ctx, primary), cancel)
	case "check":
		err = a.checkFiles(primary)
		var merr *multierror.Error
		if errors.As(err, &merr) {
			for _, e := range merr.Errors {
				printDiagnostic(os.Stderr, e)
			}
			_, _ = fmt.Fprintf(os.Stderr, "%d file(s) with errors\n", len(merr.Errors))
			os.Exit(1)
		}
	case "dis":
		checkErr(a.disassemble(primary), cancel)
	case "build":
		out, err := a.build(primary, stringArg(subResult, "output"))
		checkErr(err, cancel)
		printInfoMessage(os.Stdout, "Built", out)
	case "repl":
		if !hasMode(os.Stdout, os.ModeCharDevice) {
			_, _ = fmt.Fprintln(os.Stderr, "not a terminal")
			os.Exit(1)
		}
		initSuggestions()
		setTerminalTitle(title)
		for {
			err = newREPL(ctx, a, os.Stdout).run(strings.NewReader(history))
			if err == errReset {
				continue
			}
			if err != errExit {
				checkErr(err, cancel)
			}
			break
		}
	}
}

func checkErr(err error, fn func()) {
	if err == nil {
		return
	}

	defer os.Exit(1)
	printDiagnostic(os.Stderr, err)
	if fn != nil {
		fn()
	}
}

func hasMode(f *os.File, m os.FileMode) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&m == m
}

func setTerminalTitle(title string) {
	if os.Getenv("TERM") == "" {
		return
	}
	_, _ = os.Stdout.Write([]byte{0x1b, ']', '2', ';'})
	_, _ = os.Stdout.Write([]byte(title))
	_, _ = os.Stdout.Write([]byte{0x07})
}
