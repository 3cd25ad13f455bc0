// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package ulan

import (
	"context"

	"golang.org/x/exp/slices"
)

// Eval compiles and runs scripts within same global namespace, names bound
// by a script are known to the scripts run after it.
// If the last statement of a script is an expression, its value is
// returned.
// Warning: Eval is not safe to use concurrently.
type Eval struct {
	Globals *Dict
	Opts    CompilerOptions
	VM      *VM
}

// NewEval returns new Eval object.
func NewEval(opts CompilerOptions, globals *Dict) *Eval {
	if globals == nil {
		globals = NewDict()
	}
	return &Eval{
		Globals: globals,
		Opts:    opts,
		VM:      NewVM(nil).SetRecover(true),
	}
}

// GlobalNames returns the sorted names bound in the global namespace.
func (r *Eval) GlobalNames() []string {
	var names []string
	for _, k := range r.Globals.Keys() {
		if s, ok := k.(String); ok {
			names = append(names, string(s))
		}
	}
	slices.Sort(names)
	return names
}

// Run compiles, runs given script and returns the value of its last
// expression statement, or None.
func (r *Eval) Run(ctx context.Context, script []byte) (Object, *Code, error) {
	opts := r.Opts
	opts.Globals = append(r.GlobalNames(), opts.Globals...)

	code, err := Compile(script, opts)
	if err != nil {
		return nil, nil, err
	}
	r.fixOpPop(code)
	r.VM.SetCode(code)

	if ctx == nil {
		ctx = context.Background()
	}

	ret, err := r.run(ctx)
	if err != nil {
		return nil, code, err
	}
	return ret, code, nil
}

func (r *Eval) run(ctx context.Context) (ret Object, err error) {
	ret = None
	doneCh := make(chan struct{})
	// Always check whether context is done before running VM because
	// parser and compiler may take longer than expected or context may be
	// canceled for any reason before run, so use two selects.
	select {
	case <-ctx.Done():
		r.VM.Abort()
		err = ctx.Err()
	default:
		go func() {
			defer close(doneCh)
			ret, err = r.VM.Run(r.Globals)
		}()

		select {
		case <-ctx.Done():
			r.VM.Abort()
			<-doneCh
			if err == nil {
				err = ctx.Err()
			}
		case <-doneCh:
		}
	}
	return
}

// fixOpPop changes the trailing POP_TOP and LOAD_CONST None of the file code
// to NOP to force VM to return the value of the last expression statement.
// The code is left unchanged if a jump lands on the LOAD_CONST.
func (*Eval) fixOpPop(code *Code) {
	type inst struct {
		offset int
		op     Opcode
		arg    int
	}

	var (
		last    []inst
		targets = make(map[int]bool)
	)
	code.IterateInstructions(func(offset int, op Opcode, arg int) bool {
		_, _, next := ReadInstruction(code.Code, offset)
		switch {
		case IsJumpAbs(op):
			targets[arg] = true
		case IsJumpRel(op):
			targets[next+arg] = true
		}
		last = append(last, inst{offset: offset, op: op, arg: arg})
		if len(last) > 3 {
			last = last[1:]
		}
		return true
	})

	if len(last) != 3 ||
		last[0].op != OpPopTop ||
		last[1].op != OpLoadConst ||
		last[2].op != OpReturnValue {
		return
	}
	if code.Consts[last[1].arg] != None || targets[last[1].offset] {
		return
	}

	code.Code[last[0].offset] = OpNop
	for i := last[1].offset; i < last[2].offset; i += 2 {
		code.Code[i] = OpNop
		code.Code[i+1] = 0
	}
}
