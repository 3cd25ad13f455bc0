// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package encoder

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/hashicorp/go-multierror"

	"github.com/ozanh/ulan"
)

// EncodeCodeTo encodes given code to w io.Writer.
func EncodeCodeTo(code *ulan.Code, w io.Writer) error {
	return (*Code)(code).Encode(w)
}

// DecodeCodeFrom decodes *ulan.Code from given r io.Reader.
func DecodeCodeFrom(r io.Reader) (*ulan.Code, error) {
	var c Code
	err := c.Decode(r)
	return (*ulan.Code)(&c), err
}

// Encode writes encoded data of Code to writer.
func (o *Code) Encode(w io.Writer) error {
	data, err := o.MarshalBinary()
	if err != nil {
		return err
	}

	n, err := w.Write(data)
	if err != nil {
		return err
	}

	if n != len(data) {
		return errors.New("short write")
	}
	return nil
}

// Decode decodes Code data from the reader.
func (o *Code) Decode(r io.Reader) error {
	dst := bytes.NewBuffer(nil)
	if _, err := io.Copy(dst, r); err != nil {
		return err
	}
	return o.UnmarshalBinary(dst.Bytes())
}

// Validate checks that the instructions of code and of the codes in its
// constants only refer to existing constants, names, slots and offsets.
// All problems found are returned as a *multierror.Error.
func Validate(code *ulan.Code) error {
	var result *multierror.Error
	validate(code, &result)
	return result.ErrorOrNil()
}

func validate(code *ulan.Code, result **multierror.Error) {
	fail := func(offset int, format string, args ...interface{}) {
		*result = multierror.Append(*result, fmt.Errorf("%s+%d: %s",
			code.Name, offset, fmt.Sprintf(format, args...)))
	}

	if code.NLocals != len(code.VarNames) {
		fail(0, "nlocals %d does not match %d varnames",
			code.NLocals, len(code.VarNames))
	}
	if code.ArgCount+code.KwOnlyArgCount > code.NLocals {
		fail(0, "%d arguments exceed %d locals",
			code.ArgCount+code.KwOnlyArgCount, code.NLocals)
	}
	if len(code.Code)%2 != 0 {
		fail(len(code.Code), "odd code length")
	}

	starts := make(map[int]bool)
	code.IterateInstructions(func(offset int, _ ulan.Opcode, _ int) bool {
		starts[offset] = true
		return true
	})
	starts[len(code.Code)] = false

	ncells := len(code.CellVars) + len(code.FreeVars)
	code.IterateInstructions(func(offset int, op ulan.Opcode, arg int) bool {
		_, _, next := ulan.ReadInstruction(code.Code, offset)
		limit, what := -1, ""
		switch op {
		case ulan.OpLoadConst:
			limit, what = len(code.Consts), "constant"
		case ulan.OpLoadName, ulan.OpLoadGlobal, ulan.OpStoreGlobal,
			ulan.OpLoadAttr, ulan.OpImportName, ulan.OpImportFrom:
			limit, what = len(code.Names), "name"
		case ulan.OpLoadFast, ulan.OpStoreFast:
			limit, what = code.NLocals, "local"
		case ulan.OpLoadClosure, ulan.OpLoadDeref, ulan.OpStoreDeref:
			limit, what = ncells, "cell"
		}
		if limit >= 0 && arg >= limit {
			fail(offset, "%s index %d out of range", what, arg)
		}

		target := -1
		switch {
		case ulan.IsJumpAbs(op):
			target = arg
		case ulan.IsJumpRel(op):
			target = next + arg
		}
		if target >= 0 && !starts[target] {
			fail(offset, "jump target %d is not an instruction", target)
		}
		return true
	})

	for _, c := range code.Consts {
		if child, ok := c.(*ulan.Code); ok {
			validate(child, result)
		}
	}
}
