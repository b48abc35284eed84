// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"text/template"

	"github.com/z5labs/switchyard/internal/try"
)

// TemplateOption configures [Template].
type TemplateOption func(*templateOptions)

type templateOptions struct {
	leftDelim  string
	rightDelim string
	funcs      template.FuncMap
}

// TemplateFunc registers f for use in the template under name.
func TemplateFunc(name string, f any) TemplateOption {
	return func(to *templateOptions) {
		to.funcs[name] = f
	}
}

// TemplateDelims sets the action delimiters. An empty delimiter stands
// for the corresponding default: {{ or }}.
func TemplateDelims(left, right string) TemplateOption {
	return func(to *templateOptions) {
		to.leftDelim = left
		to.rightDelim = right
	}
}

// TemplateParseError occurs when a config template fails to be parsed.
type TemplateParseError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e TemplateParseError) Error() string {
	return fmt.Sprintf("failed to parse config template: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e TemplateParseError) Unwrap() error {
	return e.Cause
}

// TemplateExecError occurs when a config template fails to execute.
type TemplateExecError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e TemplateExecError) Error() string {
	return fmt.Sprintf("failed to exec config template: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e TemplateExecError) Unwrap() error {
	return e.Cause
}

// Template renders the text read from src as a [text/template]. The
// "env" func, returning the value of an environment variable, is always
// available. src is closed after reading if it is an [io.Closer].
func Template[R io.Reader](src Reader[R], opts ...TemplateOption) Reader[io.Reader] {
	to := &templateOptions{
		funcs: template.FuncMap{
			"env": os.Getenv,
		},
	}
	for _, opt := range opts {
		opt(to)
	}

	return Map(src, func(_ context.Context, r R) (_ io.Reader, err error) {
		defer try.Close(&err, r)

		b, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}

		tmpl, err := template.New("config").
			Delims(to.leftDelim, to.rightDelim).
			Funcs(to.funcs).
			Parse(string(b))
		if err != nil {
			return nil, TemplateParseError{Cause: err}
		}

		var buf bytes.Buffer
		err = try.Do(func() error {
			return tmpl.Execute(&buf, struct{}{})
		})
		if err != nil {
			return nil, TemplateExecError{Cause: err}
		}
		return &buf, nil
	})
}
