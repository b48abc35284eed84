// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package controller

import (
	"fmt"
	"reflect"
)

// Values maps import keys to either a literal value or a zero argument
// provider. The binder never modifies it.
type Values map[string]any

// MissingImportError is returned when an imported key is absent from [Values].
type MissingImportError struct {
	Name string
	Key  string
}

// Error implements the [builtin.error] interface.
func (e MissingImportError) Error() string {
	return fmt.Sprintf("no import value for %s under key %q", e.Name, e.Key)
}

// ImportTypeError is returned when an import value can not be assigned
// to the property importing it.
type ImportTypeError struct {
	Name string
	Key  string
	Want string
	Got  string
}

// Error implements the [builtin.error] interface.
func (e ImportTypeError) Error() string {
	return fmt.Sprintf("import value %q for %s is a %s, want %s or a provider of it", e.Key, e.Name, e.Got, e.Want)
}

// Injectable is implemented by [Value].
type Injectable interface {
	inject(name, key string, raw any) error
}

// Value is a read only property resolved from [Values] when its
// controller is bound.
type Value[T any] struct {
	get func() T
}

// Get returns the constant the value was resolved to, or invokes the
// provider it was resolved to on every call. An unresolved Value returns
// the zero value of T.
func (v *Value[T]) Get() T {
	if v.get == nil {
		var zero T
		return zero
	}
	return v.get()
}

func (v *Value[T]) inject(name, key string, raw any) error {
	switch x := raw.(type) {
	case nil:
		var zero T
		v.get = func() T { return zero }
	case T:
		v.get = func() T { return x }
	case func() T:
		v.get = x
	case func() any:
		v.get = func() T {
			t, _ := x().(T)
			return t
		}
	default:
		return ImportTypeError{
			Name: name,
			Key:  key,
			Want: reflect.TypeFor[T]().String(),
			Got:  fmt.Sprintf("%T", raw),
		}
	}
	return nil
}

func resolveImports(specs []importSpec, values Values) error {
	for _, spec := range specs {
		raw, ok := values[spec.key]
		if !ok {
			return MissingImportError{Name: spec.name, Key: spec.key}
		}
		err := spec.target.inject(spec.name, spec.key, raw)
		if err != nil {
			return err
		}
	}
	return nil
}
