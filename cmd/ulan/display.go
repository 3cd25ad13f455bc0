// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pterm/pterm"

	"github.com/ozanh/ulan"
)

var (
	errorColorFG = pterm.FgRed
	errorStyleBG = pterm.NewStyle(pterm.BgRed, pterm.FgWhite)
	infoColorFG  = pterm.FgLightGreen
	infoStyleBG  = pterm.NewStyle(pterm.BgLightGreen, pterm.FgBlack)
)

func printErrorMessage(w io.Writer, tag string, err error) {
	_, _ = fmt.Fprint(w, errorStyleBG.Sprint(tag))
	_, _ = fmt.Fprintln(w, errorColorFG.Sprint(" "+err.Error()))
}

func printInfoMessage(w io.Writer, tag, msg string) {
	_, _ = fmt.Fprint(w, infoStyleBG.Sprint(tag))
	_, _ = fmt.Fprintln(w, infoColorFG.Sprint(" "+msg))
}

// printDiagnostic prints err, compiler errors are shown with the offending
// line and a caret under the reported column.
func printDiagnostic(w io.Writer, err error) {
	var (
		merr *multierror.Error
		cerr *ulan.CompilerError
		rerr *ulan.RuntimeError
	)
	switch {
	case errors.As(err, &merr):
		for _, e := range merr.Errors {
			printDiagnostic(w, e)
		}
	case errors.As(err, &cerr):
		printCompilerError(w, cerr)
	case errors.As(err, &rerr):
		_, _ = fmt.Fprint(w, errorStyleBG.Sprint("Runtime Error"))
		_, _ = fmt.Fprintf(w, "\n%+v\n", rerr)
	default:
		printErrorMessage(w, "Error", err)
	}
}

func printCompilerError(w io.Writer, e *ulan.CompilerError) {
	_, _ = fmt.Fprint(w, "-- ")
	_, _ = fmt.Fprint(w, errorStyleBG.Sprint(e.Kind.Name))
	_, _ = fmt.Fprint(w, " ")
	_, _ = fmt.Fprintln(w, infoColorFG.Sprint(e.Filename+":"+strconv.Itoa(e.Line)+":"+strconv.Itoa(e.Column)))

	if e.LineText != "" {
		num := strconv.Itoa(e.Line)
		gutter := strings.Repeat(" ", len(num)+1) + "|  "
		_, _ = fmt.Fprint(w, infoColorFG.Sprint(num+" "))
		_, _ = fmt.Fprintln(w, "|  "+e.LineText)
		_, _ = fmt.Fprint(w, gutter)
		_, _ = fmt.Fprintln(w, errorColorFG.Sprint(e.Caret()))
	}
	_, _ = fmt.Fprintln(w, e.Msg)
}
