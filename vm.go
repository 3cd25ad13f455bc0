// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package ulan

import (
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
)

const (
	// DefaultMaxFrames is the default limit of nested calls.
	DefaultMaxFrames = 1024

	mainModuleName = "__main__"
	nameKey        = "__name__"
)

// VM executes code units produced by Compile.
type VM struct {
	abort     int64
	mu        sync.Mutex
	code      *Code
	moduleMap *ModuleMap
	modules   map[string]*Module
	importing map[string]bool
	frame     *frame
	depth     int
	maxFrames int
	noPanic   bool
}

type frame struct {
	parent  *frame
	code    *Code
	globals *Dict
	locals  []Object
	cells   []*Cell
	stack   []Object
	ip      int
}

// NewVM creates a VM object for code.
func NewVM(code *Code) *VM {
	return &VM{
		code:      code,
		maxFrames: DefaultMaxFrames,
	}
}

// SetRecover recovers panic when Run panics and returns panic as an error.
func (vm *VM) SetRecover(v bool) *VM {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.noPanic = v
	return vm
}

// SetCode sets the code unit Run executes. Imported modules are kept.
func (vm *VM) SetCode(code *Code) *VM {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.code = code
	return vm
}

// SetModuleMap sets the modules import instructions look up.
func (vm *VM) SetModuleMap(m *ModuleMap) *VM {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.moduleMap = m
	vm.modules = nil
	return vm
}

// SetMaxFrames sets the limit of nested calls.
func (vm *VM) SetMaxFrames(n int) *VM {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if n <= 0 {
		n = DefaultMaxFrames
	}
	vm.maxFrames = n
	return vm
}

// Clear removes imported modules from the cache.
func (vm *VM) Clear() *VM {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.modules = nil
	return vm
}

// Abort aborts the VM execution. It is safe to call from another goroutine.
func (vm *VM) Abort() {
	atomic.StoreInt64(&vm.abort, 1)
}

// Run runs the code with globals as the global namespace and returns the
// returned value. If globals is nil, a new namespace is used. __name__ of
// globals is set to "__main__" unless it is already set.
func (vm *VM) Run(globals *Dict) (ret Object, err error) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if vm.code == nil {
		return nil, errors.New("invalid code")
	}
	if globals == nil {
		globals = NewDict()
	}
	if _, ok := globals.GetStr(nameKey); !ok {
		globals.SetStr(nameKey, String(mainModuleName))
	}

	atomic.StoreInt64(&vm.abort, 0)
	vm.frame = nil
	vm.depth = 0

	if vm.noPanic {
		defer func() {
			if r := recover(); r != nil {
				ret = nil
				err = fmt.Errorf("panic: %v\nGo Stack:\n%s", r, debug.Stack())
			}
		}()
	}
	return vm.execute(vm.code, globals, nil, nil)
}

// Globals returns the global namespace of the running frame.
func (vm *VM) Globals() *Dict {
	if vm.frame == nil {
		return nil
	}
	return vm.frame.globals
}

// callFunction binds args and kwargs to the argument slots of fn and runs
// it. Arguments that cannot be bound raise a match exception with the
// (args, kwargs) tuple, as a failing parameter pattern does.
func (vm *VM) callFunction(fn *CompiledFunction, args []Object, kwargs *Dict) (Object, error) {
	locals, ok := bindArguments(fn, args, kwargs)
	if !ok {
		if kwargs == nil {
			kwargs = NewDict()
		}
		return nil, ErrMatchException.NewErrorValue(
			Tuple{append(Tuple(nil), args...), kwargs})
	}

	code := fn.Code
	cells := make([]*Cell, 0, len(code.CellVars)+len(code.FreeVars))
	for range code.CellVars {
		cells = append(cells, &Cell{})
	}
	cells = append(cells, fn.Closure...)
	return vm.execute(code, fn.Globals, locals, cells)
}

func bindArguments(fn *CompiledFunction, args []Object, kwargs *Dict) ([]Object, bool) {
	code := fn.Code
	nargs, nkwonly := code.ArgCount, code.KwOnlyArgCount
	locals := make([]Object, code.NLocals)

	n := len(args)
	if n > nargs {
		n = nargs
	}
	copy(locals, args[:n])

	slot := nargs + nkwonly
	if code.Flags&CodeVarargs != 0 {
		locals[slot] = append(Tuple{}, args[n:]...)
		slot++
	} else if len(args) > nargs {
		return nil, false
	}

	var extra *Dict
	if code.Flags&CodeVarKeywords != 0 {
		extra = NewDict()
		locals[slot] = extra
	}

	if kwargs != nil {
		keys, values := kwargs.Keys(), kwargs.Values()
		for i, k := range keys {
			name, ok := k.(String)
			if !ok {
				return nil, false
			}
			idx := -1
			for j := 0; j < nargs+nkwonly; j++ {
				if code.VarNames[j] == "."+string(name) {
					idx = j
					break
				}
			}
			switch {
			case idx >= 0:
				if locals[idx] != nil {
					return nil, false
				}
				locals[idx] = values[i]
			case extra != nil:
				extra.SetStr(string(name), values[i])
			default:
				return nil, false
			}
		}
	}

	firstDefault := nargs - len(fn.Defaults)
	for i := n; i < nargs; i++ {
		if locals[i] != nil {
			continue
		}
		if i < firstDefault {
			return nil, false
		}
		locals[i] = fn.Defaults[i-firstDefault]
	}
	for i := nargs; i < nargs+nkwonly; i++ {
		if locals[i] != nil {
			continue
		}
		var v Object
		if fn.KwDefaults != nil {
			v, _ = fn.KwDefaults.GetStr(strings.TrimPrefix(code.VarNames[i], "."))
		}
		if v == nil {
			return nil, false
		}
		locals[i] = v
	}
	return locals, true
}

// execute runs code in a new frame.
func (vm *VM) execute(code *Code, globals *Dict, locals []Object, cells []*Cell) (Object, error) {
	if vm.depth >= vm.maxFrames {
		return nil, ErrStackOverflow.NewError(
			fmt.Sprintf("maximum number of frames %d exceeded", vm.maxFrames))
	}
	if locals == nil {
		locals = make([]Object, code.NLocals)
	}

	f := &frame{
		parent:  vm.frame,
		code:    code,
		globals: globals,
		locals:  locals,
		cells:   cells,
		stack:   make([]Object, 0, code.StackSize),
	}
	vm.frame = f
	vm.depth++
	defer func() {
		vm.frame = f.parent
		vm.depth--
	}()

	ret, err := vm.run(f)
	if err != nil {
		return nil, vm.addTrace(f, err)
	}
	return ret, nil
}

func (vm *VM) addTrace(f *frame, err error) *RuntimeError {
	var rerr *RuntimeError
	if !errors.As(err, &rerr) {
		rerr = &RuntimeError{Err: toError(err)}
	}
	rerr.addTrace(TraceEntry{
		Filename: f.code.Filename,
		Name:     f.code.Name,
		Line:     f.code.Line(f.ip),
	})
	return rerr
}

func toError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Name: "error", Message: err.Error(), Cause: err}
}

func (f *frame) push(v Object) {
	f.stack = append(f.stack, v)
}

func (f *frame) pop() Object {
	n := len(f.stack) - 1
	v := f.stack[n]
	f.stack[n] = nil
	f.stack = f.stack[:n]
	return v
}

func (f *frame) top() Object {
	return f.stack[len(f.stack)-1]
}

// popN pops n values and returns them in push order.
func (f *frame) popN(n int) []Object {
	start := len(f.stack) - n
	values := make([]Object, n)
	copy(values, f.stack[start:])
	for i := start; i < len(f.stack); i++ {
		f.stack[i] = nil
	}
	f.stack = f.stack[:start]
	return values
}

func (vm *VM) run(f *frame) (Object, error) {
	code := f.code
	next := 0
	for {
		if atomic.LoadInt64(&vm.abort) == 1 {
			return nil, ErrVMAborted
		}
		if next >= len(code.Code) {
			return nil, fmt.Errorf("execution reached the end of %s", code.Name)
		}

		f.ip = next
		var (
			op  Opcode
			arg int
		)
		op, arg, next = ReadInstruction(code.Code, f.ip)

		switch op {
		case OpNop:
		case OpPopTop:
			f.pop()
		case OpRotTwo:
			n := len(f.stack)
			f.stack[n-1], f.stack[n-2] = f.stack[n-2], f.stack[n-1]
		case OpRotThree:
			n := len(f.stack)
			f.stack[n-1], f.stack[n-2], f.stack[n-3] =
				f.stack[n-2], f.stack[n-3], f.stack[n-1]
		case OpDupTop:
			f.push(f.top())
		case OpBinarySubscr:
			index := f.pop()
			container := f.pop()
			v, err := subscript(container, index)
			if err != nil {
				return nil, err
			}
			f.push(v)
		case OpReturnValue:
			return f.pop(), nil
		case OpStoreGlobal:
			f.globals.SetStr(code.Names[arg], f.pop())
		case OpLoadConst:
			f.push(code.Consts[arg])
		case OpLoadName, OpLoadGlobal:
			name := code.Names[arg]
			v, ok := f.globals.GetStr(name)
			if !ok {
				v, ok = LookupBuiltin(name)
			}
			if !ok {
				return nil, ErrName.NewError(
					fmt.Sprintf("name '%s' is not defined", name))
			}
			f.push(v)
		case OpBuildTuple:
			f.push(Tuple(f.popN(arg)))
		case OpBuildList:
			f.push(List(f.popN(arg)))
		case OpBuildSet:
			s, err := NewSet(f.popN(arg)...)
			if err != nil {
				return nil, err
			}
			f.push(s)
		case OpBuildMap:
			items := f.popN(2 * arg)
			d := NewDict()
			for i := 0; i < len(items); i += 2 {
				if err := d.Set(items[i], items[i+1]); err != nil {
					return nil, err
				}
			}
			f.push(d)
		case OpBuildConstKeyMap:
			keys, ok := f.pop().(Tuple)
			if !ok || len(keys) != arg {
				return nil, ErrType.NewError("invalid keys of BUILD_CONST_KEY_MAP")
			}
			values := f.popN(arg)
			d := NewDict()
			for i := range keys {
				if err := d.Set(keys[i], values[i]); err != nil {
					return nil, err
				}
			}
			f.push(d)
		case OpLoadAttr:
			v, err := getAttr(f.pop(), code.Names[arg])
			if err != nil {
				return nil, err
			}
			f.push(v)
		case OpCompareOp:
			right := f.pop()
			left := f.pop()
			switch arg {
			case CompareIs:
				f.push(Bool(identical(left, right)))
			case CompareIsNot:
				f.push(Bool(!identical(left, right)))
			default:
				return nil, ErrType.NewError(
					fmt.Sprintf("unsupported comparison %d", arg))
			}
		case OpImportName:
			f.pop() // fromlist
			level, ok := f.pop().(Int)
			if !ok {
				return nil, ErrType.NewError("import level must be an int")
			}
			m, err := vm.importModule(f, code.Names[arg], int(level))
			if err != nil {
				return nil, err
			}
			f.push(m)
		case OpImportFrom:
			m := f.top()
			v, err := getAttr(m, code.Names[arg])
			if err != nil {
				return nil, ErrImport.NewError(
					fmt.Sprintf("cannot import name '%s' from %s",
						code.Names[arg], m))
			}
			f.push(v)
		case OpJumpForward:
			next += arg
		case OpJumpAbsolute:
			next = arg
		case OpPopJumpIfFalse:
			if f.pop().IsFalsy() {
				next = arg
			}
		case OpPopJumpIfTrue:
			if !f.pop().IsFalsy() {
				next = arg
			}
		case OpLoadFast:
			v := f.locals[arg]
			if v == nil {
				return nil, ErrName.NewError(fmt.Sprintf(
					"local variable '%s' referenced before assignment",
					code.VarNames[arg]))
			}
			f.push(v)
		case OpStoreFast:
			f.locals[arg] = f.pop()
		case OpRaiseVarargs:
			if arg != 1 {
				return nil, ErrType.NewError("exception to raise is required")
			}
			v := f.pop()
			if e, ok := v.(*Error); ok {
				return nil, e
			}
			return nil, ErrException.NewErrorValue(v)
		case OpCallFunction:
			args := f.popN(arg)
			ret, err := vm.call(f.pop(), args, nil)
			if err != nil {
				return nil, err
			}
			f.push(ret)
		case OpCallFunctionKw:
			names, ok := f.pop().(Tuple)
			if !ok || len(names) > arg {
				return nil, ErrType.NewError("invalid keyword names")
			}
			values := f.popN(arg)
			npos := arg - len(names)
			kwargs := NewDict()
			for i, name := range names {
				if err := kwargs.Set(name, values[npos+i]); err != nil {
					return nil, err
				}
			}
			ret, err := vm.call(f.pop(), values[:npos], kwargs)
			if err != nil {
				return nil, err
			}
			f.push(ret)
		case OpCallFunctionEx:
			var kwargs *Dict
			if arg&0x01 != 0 {
				d, ok := f.pop().(*Dict)
				if !ok {
					return nil, ErrType.NewError("keyword arguments must be a dict")
				}
				kwargs = d
			}
			args, ok := f.pop().(Tuple)
			if !ok {
				return nil, ErrType.NewError("positional arguments must be a tuple")
			}
			ret, err := vm.call(f.pop(), args, kwargs)
			if err != nil {
				return nil, err
			}
			f.push(ret)
		case OpMakeFunction:
			fn, err := makeFunction(f, arg)
			if err != nil {
				return nil, err
			}
			f.push(fn)
		case OpLoadClosure:
			f.push(f.cells[arg])
		case OpLoadDeref:
			v := f.cells[arg].Value
			if v == nil {
				return nil, ErrName.NewError(fmt.Sprintf(
					"free variable '%s' referenced before assignment",
					cellName(code, arg)))
			}
			f.push(v)
		case OpStoreDeref:
			f.cells[arg].Value = f.pop()
		case OpBuildTupleUnpack, OpBuildTupleUnpackWithCall:
			elems, err := concatElems(f.popN(arg))
			if err != nil {
				return nil, err
			}
			f.push(Tuple(elems))
		case OpBuildListUnpack:
			elems, err := concatElems(f.popN(arg))
			if err != nil {
				return nil, err
			}
			f.push(List(elems))
		case OpBuildSetUnpack:
			elems, err := concatElems(f.popN(arg))
			if err != nil {
				return nil, err
			}
			s, err := NewSet(elems...)
			if err != nil {
				return nil, err
			}
			f.push(s)
		case OpBuildMapUnpack, OpBuildMapUnpackWithCall:
			d, err := mergeDicts(f.popN(arg), op == OpBuildMapUnpackWithCall)
			if err != nil {
				return nil, err
			}
			f.push(d)
		default:
			return nil, fmt.Errorf("unknown opcode %s", opcodeName(op))
		}
	}
}

func (vm *VM) call(fn Object, args []Object, kwargs *Dict) (Object, error) {
	callable, ok := fn.(Callable)
	if !ok {
		return nil, ErrNotCallable.NewError(
			fmt.Sprintf("'%s' object is not callable", fn.TypeName()))
	}
	ret, err := callable.Call(NewCall(vm, args, kwargs))
	if err != nil {
		return nil, err
	}
	if ret == nil {
		ret = None
	}
	return ret, nil
}

func makeFunction(f *frame, flags int) (Object, error) {
	name, _ := f.pop().(String)
	code, ok := f.pop().(*Code)
	if !ok {
		return nil, ErrType.NewError("MAKE_FUNCTION requires a code object")
	}
	fn := &CompiledFunction{
		Name:    string(name),
		Code:    code,
		Globals: f.globals,
	}
	if flags&MakeFunctionClosure != 0 {
		closure, ok := f.pop().(Tuple)
		if !ok {
			return nil, ErrType.NewError("closure must be a tuple")
		}
		for _, c := range closure {
			cell, ok := c.(*Cell)
			if !ok {
				return nil, ErrType.NewError("closure must contain cells")
			}
			fn.Closure = append(fn.Closure, cell)
		}
	}
	if flags&MakeFunctionKwDefaults != 0 {
		d, ok := f.pop().(*Dict)
		if !ok {
			return nil, ErrType.NewError("keyword defaults must be a dict")
		}
		fn.KwDefaults = d
	}
	if flags&MakeFunctionDefaults != 0 {
		t, ok := f.pop().(Tuple)
		if !ok {
			return nil, ErrType.NewError("defaults must be a tuple")
		}
		fn.Defaults = t
	}
	return fn, nil
}

func cellName(code *Code, i int) string {
	if i < len(code.CellVars) {
		return code.CellVars[i]
	}
	if i -= len(code.CellVars); i < len(code.FreeVars) {
		return code.FreeVars[i]
	}
	return "?"
}

func subscript(container, index Object) (Object, error) {
	ig, ok := container.(IndexGetter)
	if !ok {
		return nil, ErrNotIndexable.NewError(
			fmt.Sprintf("'%s' object is not subscriptable", container.TypeName()))
	}
	return ig.IndexGet(index)
}

func getAttr(v Object, name string) (Object, error) {
	if m, ok := v.(Matcher); ok && name == matchMethod {
		return boundMatch(m), nil
	}
	if ag, ok := v.(AttrGetter); ok {
		return ag.GetAttr(name)
	}
	return nil, ErrAttribute.NewError(
		fmt.Sprintf("'%s' object has no attribute '%s'", v.TypeName(), name))
}

// identical reports whether a and b are the same object. Values of
// immutable scalar types are identical if they are equal.
func identical(a, b Object) bool {
	switch a := a.(type) {
	case Tuple:
		b, ok := b.(Tuple)
		return ok && sameSlice(a, b)
	case List:
		b, ok := b.(List)
		return ok && sameSlice(a, b)
	}
	switch b.(type) {
	case Tuple, List:
		return false
	}
	return a == b
}

func sameSlice(a, b []Object) bool {
	if len(a) != len(b) {
		return false
	}
	return len(a) == 0 || &a[0] == &b[0]
}

func concatElems(parts []Object) ([]Object, error) {
	var elems []Object
	for _, p := range parts {
		it, ok := p.(Iterable)
		if !ok {
			return nil, ErrType.NewError(
				fmt.Sprintf("'%s' object is not iterable", p.TypeName()))
		}
		elems = append(elems, it.Elems()...)
	}
	return elems, nil
}

func mergeDicts(parts []Object, call bool) (*Dict, error) {
	d := NewDict()
	for _, p := range parts {
		src, ok := p.(*Dict)
		if !ok {
			return nil, ErrType.NewError(
				fmt.Sprintf("'%s' object is not a mapping", p.TypeName()))
		}
		keys, values := src.Keys(), src.Values()
		for i, k := range keys {
			if call {
				if _, ok := k.(String); !ok {
					return nil, ErrType.NewError("keywords must be strings")
				}
				if _, dup := d.Get(k); dup {
					return nil, ErrType.NewError(fmt.Sprintf(
						"got multiple values for keyword argument '%s'", k))
				}
			}
			if err := d.Set(k, values[i]); err != nil {
				return nil, err
			}
		}
	}
	return d, nil
}
