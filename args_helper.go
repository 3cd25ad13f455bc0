// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package ulan

// Wrappers adapting Go functions of fixed positional arity to the
// func(Call) (Object, error) signature of builtin functions. Names follow
// the pattern func<P: parameters><R: results>, O is Object and e is error.

func funcPORO(fn func(Object) Object) func(Call) (Object, error) {
	return func(c Call) (Object, error) {
		if err := checkPositional(&c, 1); err != nil {
			return nil, err
		}
		return fn(c.Get(0)), nil
	}
}

func funcPOROe(fn func(Object) (Object, error)) func(Call) (Object, error) {
	return func(c Call) (Object, error) {
		if err := checkPositional(&c, 1); err != nil {
			return nil, err
		}
		return fn(c.Get(0))
	}
}

func funcPOOROe(fn func(Object, Object) (Object, error)) func(Call) (Object, error) {
	return func(c Call) (Object, error) {
		if err := checkPositional(&c, 2); err != nil {
			return nil, err
		}
		return fn(c.Get(0), c.Get(1))
	}
}

func checkPositional(c *Call, n int) error {
	if err := c.CheckKwargs(); err != nil {
		return err
	}
	return c.CheckLen(n)
}
