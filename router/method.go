// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package router

import (
	"fmt"
	"net/http"
	"slices"
)

// Method defines an HTTP method a route can be registered for.
type Method string

const (
	MethodGet     Method = http.MethodGet
	MethodHead    Method = http.MethodHead
	MethodPost    Method = http.MethodPost
	MethodPut     Method = http.MethodPut
	MethodPatch   Method = http.MethodPatch
	MethodDelete  Method = http.MethodDelete
	MethodOptions Method = http.MethodOptions
	MethodTrace   Method = http.MethodTrace
	MethodConnect Method = http.MethodConnect
)

// Methods lists every [Method] a route can be registered for.
var Methods = []Method{
	MethodGet,
	MethodHead,
	MethodPost,
	MethodPut,
	MethodPatch,
	MethodDelete,
	MethodOptions,
	MethodTrace,
	MethodConnect,
}

// Valid reports whether m is one of [Methods].
func (m Method) Valid() bool {
	return slices.Contains(Methods, m)
}

// UnknownMethodError is returned when registering a route for a method outside of [Methods].
type UnknownMethodError struct {
	Method Method
}

// Error implements the [builtin.error] interface.
func (e UnknownMethodError) Error() string {
	return fmt.Sprintf("unknown http method: %q", string(e.Method))
}
