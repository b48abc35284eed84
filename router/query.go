// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package router

import (
	"context"
	"net/http"
	"net/url"

	"github.com/z5labs/switchyard/pipeline"
)

type queryKey struct{}

// ParseQuery returns the [pipeline.Middleware] installed by [AutoParseQuery].
// It parses the query string once and stores it in the request context.
func ParseQuery() pipeline.Middleware {
	return pipeline.MiddlewareFunc(func(w http.ResponseWriter, r *http.Request, next *pipeline.Next) error {
		ctx := context.WithValue(r.Context(), queryKey{}, r.URL.Query())
		next.WithRequest(r.WithContext(ctx))
		next.Advance(nil)
		return nil
	})
}

// Query returns the query values stored by [ParseQuery], parsing the
// query string when they are absent.
func Query(r *http.Request) url.Values {
	if v, ok := r.Context().Value(queryKey{}).(url.Values); ok {
		return v
	}
	return r.URL.Query()
}
