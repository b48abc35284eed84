// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"context"
	"encoding"
	"errors"
	"fmt"
	"io"
	"reflect"
	"time"

	"github.com/z5labs/switchyard/internal/try"

	"github.com/go-viper/mapstructure/v2"
	"gopkg.in/yaml.v3"
)

// InvalidYamlError occurs if a source does not contain valid YAML.
type InvalidYamlError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e InvalidYamlError) Error() string {
	return fmt.Sprintf("invalid yaml: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e InvalidYamlError) Unwrap() error {
	return e.Cause
}

// Yaml decodes the YAML read from src into a T. Fields of T are matched
// by their `config` struct tag. Strings are decoded into
// [encoding.TextUnmarshaler] fields and durations are accepted as either
// strings or integers. src is closed after reading if it is an [io.Closer].
func Yaml[T any, R io.Reader](src Reader[R]) Reader[T] {
	return Map(src, func(_ context.Context, r R) (_ T, err error) {
		defer try.Close(&err, r)

		var v T
		b, err := io.ReadAll(r)
		if err != nil {
			return v, err
		}

		m := make(map[string]any)
		err = yaml.Unmarshal(b, &m)
		if err != nil {
			return v, InvalidYamlError{Cause: err}
		}

		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			TagName: "config",
			Result:  &v,
			DecodeHook: composeDecodeHooks(
				textUnmarshalerHookFunc(),
				timeDurationHookFunc(),
			),
		})
		if err != nil {
			return v, err
		}
		err = dec.Decode(m)
		return v, err
	})
}

var errInvalidDecodeCondition = errors.New("invalid decode condition")

// TypeCoercionError occurs when a config value can not be coerced into
// the type of the struct field it is decoded into.
type TypeCoercionError struct {
	From  reflect.Type
	To    reflect.Type
	Cause error
}

// Error implements the [builtin.error] interface.
func (e TypeCoercionError) Error() string {
	return fmt.Sprintf("failed to coerce value from %s to %s: %s", e.From, e.To, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e TypeCoercionError) Unwrap() error {
	return e.Cause
}

func composeDecodeHooks(hs ...mapstructure.DecodeHookFunc) mapstructure.DecodeHookFuncValue {
	return func(f, t reflect.Value) (any, error) {
		for _, h := range hs {
			v, err := mapstructure.DecodeHookExec(h, f, t)
			if err == nil {
				return v, nil
			}
			if errors.Is(err, errInvalidDecodeCondition) {
				continue
			}
			return nil, TypeCoercionError{
				From:  f.Type(),
				To:    t.Type(),
				Cause: err,
			}
		}
		return f.Interface(), nil
	}
}

func textUnmarshalerHookFunc() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data any) (any, error) {
		if f.Kind() != reflect.String {
			return nil, errInvalidDecodeCondition
		}
		result := reflect.New(t).Interface()
		u, ok := result.(encoding.TextUnmarshaler)
		if !ok {
			return nil, errInvalidDecodeCondition
		}
		err := u.UnmarshalText([]byte(data.(string)))
		if err != nil {
			return nil, err
		}
		return result, nil
	}
}

func timeDurationHookFunc() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data any) (any, error) {
		if t != reflect.TypeFor[time.Duration]() {
			return nil, errInvalidDecodeCondition
		}

		switch f.Kind() {
		case reflect.String:
			return time.ParseDuration(data.(string))
		case reflect.Int:
			return time.Duration(data.(int)), nil
		default:
			return nil, errInvalidDecodeCondition
		}
	}
}
