// Copyright (c) 2023 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package slogfield standardizes the slog attribute keys used across switchyard.
package slogfield

import (
	"log/slog"
	"net/http"
)

// Any returns an slog.Attr for the supplied value.
func Any(key string, value any) slog.Attr {
	return slog.Any(key, value)
}

// Error returns an slog.Attr for a error.
func Error(err error) slog.Attr {
	return slog.Any("error", err)
}

// String returns an slog.Attr for a string.
func String(key, value string) slog.Attr {
	return slog.String(key, value)
}

// Strings returns an slog.Attr for a slice of strings.
func Strings(key string, values []string) slog.Attr {
	return slog.Any(key, values)
}

// Int returns an slog.Attr for a int.
func Int(key string, n int) slog.Attr {
	return slog.Int(key, n)
}

// Method returns the attribute for an HTTP method.
func Method(method string) slog.Attr {
	return slog.String("http.method", method)
}

// Route returns the attribute for a route pattern.
func Route(pattern string) slog.Attr {
	return slog.String("http.route", pattern)
}

// Request groups the method and path of r.
func Request(r *http.Request) slog.Attr {
	return slog.Group(
		"http",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)
}

// File returns the attribute for a root-relative controller file.
func File(path string) slog.Attr {
	return slog.String("controller.file", path)
}

// Event returns the attribute for a lifecycle event name.
func Event(name string) slog.Attr {
	return slog.String("lifecycle.event", name)
}
