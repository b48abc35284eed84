// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"context"
	"errors"
)

// ErrValueNotSet is returned by [Read] when a [Reader] has no value.
var ErrValueNotSet = errors.New("config value not set")

// Value is a configuration value which may not be set.
type Value[T any] struct {
	v   T
	set bool
}

// ValueOf returns a set [Value] holding v.
func ValueOf[T any](v T) Value[T] {
	return Value[T]{v: v, set: true}
}

// Value returns the underlying value and whether it is set.
func (v Value[T]) Value() (T, bool) {
	return v.v, v.set
}

// Reader reads a configuration value.
type Reader[T any] interface {
	Read(context.Context) (Value[T], error)
}

// ReaderFunc is a func variant of the [Reader] interface.
type ReaderFunc[T any] func(context.Context) (Value[T], error)

// Read implements the [Reader] interface.
func (f ReaderFunc[T]) Read(ctx context.Context) (Value[T], error) {
	return f(ctx)
}

// Read reads r and reports an unset value as [ErrValueNotSet].
func Read[T any](ctx context.Context, r Reader[T]) (T, error) {
	val, err := r.Read(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	v, ok := val.Value()
	if !ok {
		var zero T
		return zero, ErrValueNotSet
	}
	return v, nil
}

// Must is like [Read] but panics on any error.
func Must[T any](ctx context.Context, r Reader[T]) T {
	v, err := Read(ctx, r)
	if err != nil {
		panic(err)
	}
	return v
}

// MustOr returns def if r is nil or has no value, and panics if r fails.
func MustOr[T any](ctx context.Context, def T, r Reader[T]) T {
	if r == nil {
		return def
	}
	return Must(ctx, Default(def, r))
}

// ReaderOf returns a [Reader] which always yields v.
func ReaderOf[T any](v T) Reader[T] {
	return ReaderFunc[T](func(ctx context.Context) (Value[T], error) {
		return ValueOf(v), nil
	})
}

// Default falls back to def when r has no value.
func Default[T any](def T, r Reader[T]) Reader[T] {
	return ReaderFunc[T](func(ctx context.Context) (Value[T], error) {
		val, err := r.Read(ctx)
		if err != nil {
			return Value[T]{}, err
		}
		if _, ok := val.Value(); ok {
			return val, nil
		}
		return ValueOf(def), nil
	})
}

// Or returns the first set value of rs, in order.
func Or[T any](rs ...Reader[T]) Reader[T] {
	return ReaderFunc[T](func(ctx context.Context) (Value[T], error) {
		for _, r := range rs {
			val, err := r.Read(ctx)
			if err != nil {
				return Value[T]{}, err
			}
			if _, ok := val.Value(); ok {
				return val, nil
			}
		}
		return Value[T]{}, nil
	})
}

// Map transforms the value of r with f. Unset values are passed through.
func Map[T, U any](r Reader[T], f func(context.Context, T) (U, error)) Reader[U] {
	return ReaderFunc[U](func(ctx context.Context) (Value[U], error) {
		val, err := r.Read(ctx)
		if err != nil {
			return Value[U]{}, err
		}
		v, ok := val.Value()
		if !ok {
			return Value[U]{}, nil
		}
		u, err := f(ctx, v)
		if err != nil {
			return Value[U]{}, err
		}
		return ValueOf(u), nil
	})
}

// Bind reads the [Reader] f builds from the value of r.
func Bind[T, U any](r Reader[T], f func(context.Context, T) Reader[U]) Reader[U] {
	return ReaderFunc[U](func(ctx context.Context) (Value[U], error) {
		val, err := r.Read(ctx)
		if err != nil {
			return Value[U]{}, err
		}
		v, ok := val.Value()
		if !ok {
			return Value[U]{}, nil
		}
		return f(ctx, v).Read(ctx)
	})
}
