// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"

	"github.com/z5labs/switchyard/controller"
	"github.com/z5labs/switchyard/pipeline"
)

const maxBodyBytes = 1 << 20

type bodyKey struct{}

// UnsupportedFormatError is returned for body formats other than "json".
type UnsupportedFormatError struct {
	Format string
}

// Error implements the [builtin.error] interface.
func (e UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported body format: %s", e.Format)
}

// parseJSON decodes the request body into a new value of the schema type.
func parseJSON(spec controller.BodySpec) (pipeline.Middleware, error) {
	if spec.Format != "json" {
		return nil, UnsupportedFormatError{Format: spec.Format}
	}
	typ := reflect.TypeOf(spec.Schema)
	if typ == nil {
		return nil, fmt.Errorf("json body requires a schema")
	}

	return pipeline.MiddlewareFunc(func(w http.ResponseWriter, r *http.Request, next *pipeline.Next) error {
		v := reflect.New(typ)
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		dec.DisallowUnknownFields()
		err := dec.Decode(v.Interface())
		if err != nil {
			next.Advance(badRequest{Cause: err})
			return nil
		}

		ctx := context.WithValue(r.Context(), bodyKey{}, v.Elem().Interface())
		next.WithRequest(r.WithContext(ctx))
		next.Advance(nil)
		return nil
	}), nil
}

func bodyOf[T any](r *http.Request) (T, bool) {
	v, ok := r.Context().Value(bodyKey{}).(T)
	return v, ok
}

type badRequest struct {
	Cause error
}

func (e badRequest) Error() string {
	return fmt.Sprintf("bad request: %s", e.Cause)
}

func (e badRequest) Unwrap() error {
	return e.Cause
}
