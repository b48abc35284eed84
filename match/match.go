// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package match implements the path predicates routes are selected by.
//
// Every matcher compares against the escaped request path after it has been
// normalized by [Normalize], so the query string and trailing slashes never
// influence a match. Parameter values are handed out exactly as they appear
// in the path, without decoding or type coercion.
package match

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
)

// ParamMarker prefixes a parameter segment in a path template.
const ParamMarker = ':'

// Params holds the named path parameters extracted by a [Matcher].
type Params map[string]string

// Matcher decides whether a request belongs to a route.
type Matcher interface {
	// Match reports whether r matches. On success the returned Params
	// may be nil when the matcher does not extract parameters.
	Match(r *http.Request) (Params, bool, error)

	// String describes the matcher, e.g. "/users/:id".
	String() string
}

// Normalize strips the query string and any trailing slashes from p.
// An empty result becomes "/" and a missing leading slash is added.
func Normalize(p string) string {
	p, _, _ = strings.Cut(p, "?")
	p = strings.TrimRight(p, "/")
	if p == "" {
		return "/"
	}
	if p[0] != '/' {
		p = "/" + p
	}
	return p
}

// RequestPath returns the normalized, still escaped, path of r.
func RequestPath(r *http.Request) string {
	if r.URL == nil {
		return "/"
	}
	return Normalize(r.URL.EscapedPath())
}

type literal string

// Literal returns a [Matcher] which only matches requests whose
// normalized path equals the normalized p.
func Literal(p string) Matcher {
	return literal(Normalize(p))
}

func (m literal) Match(r *http.Request) (Params, bool, error) {
	return nil, RequestPath(r) == string(m), nil
}

func (m literal) String() string {
	return string(m)
}

type segment struct {
	value string
	param bool
}

type template struct {
	pattern  string
	segments []segment
}

// ErrEmptyParamName is returned for a template segment consisting of only the parameter marker.
var ErrEmptyParamName = errors.New("empty path parameter name")

// InvalidTemplateError is returned when a path template can not be compiled.
type InvalidTemplateError struct {
	Template string
	Cause    error
}

// Error implements the [builtin.error] interface.
func (e InvalidTemplateError) Error() string {
	return fmt.Sprintf("invalid path template %q: %s", e.Template, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e InvalidTemplateError) Unwrap() error {
	return e.Cause
}

// Template compiles p into a segment-by-segment [Matcher]. Segments
// starting with [ParamMarker] match any non-empty request segment
// and are returned as Params keyed by the text following the marker.
func Template(p string) (Matcher, error) {
	p = Normalize(p)
	parts := split(p)

	m := &template{
		pattern:  p,
		segments: make([]segment, len(parts)),
	}
	seen := make(map[string]struct{}, len(parts))
	for i, part := range parts {
		if len(part) == 0 || part[0] != ParamMarker {
			m.segments[i] = segment{value: part}
			continue
		}

		name := part[1:]
		if name == "" {
			return nil, InvalidTemplateError{Template: p, Cause: ErrEmptyParamName}
		}
		if _, exists := seen[name]; exists {
			return nil, InvalidTemplateError{
				Template: p,
				Cause:    fmt.Errorf("duplicate path parameter name: %s", name),
			}
		}
		seen[name] = struct{}{}
		m.segments[i] = segment{value: name, param: true}
	}
	return m, nil
}

func (m *template) Match(r *http.Request) (Params, bool, error) {
	parts := split(RequestPath(r))
	if len(parts) != len(m.segments) {
		return nil, false, nil
	}

	var params Params
	for i, seg := range m.segments {
		part := parts[i]
		if !seg.param {
			if part != seg.value {
				return nil, false, nil
			}
			continue
		}
		if part == "" {
			return nil, false, nil
		}
		if params == nil {
			params = make(Params, len(m.segments))
		}
		params[seg.value] = part
	}
	return params, true, nil
}

func (m *template) String() string {
	return m.pattern
}

func split(p string) []string {
	return strings.Split(strings.TrimPrefix(p, "/"), "/")
}

// HasParams reports whether p contains a parameter segment.
func HasParams(p string) bool {
	for _, part := range split(Normalize(p)) {
		if len(part) > 0 && part[0] == ParamMarker {
			return true
		}
	}
	return false
}

// Path returns a [Template] matcher when p contains a parameter
// segment and a [Literal] matcher otherwise.
func Path(p string) (Matcher, error) {
	if HasParams(p) {
		return Template(p)
	}
	return Literal(p), nil
}

// MustPath is like [Path] but panics if p is an invalid template.
func MustPath(p string) Matcher {
	m, err := Path(p)
	if err != nil {
		panic(err)
	}
	return m
}

type regexpMatcher struct {
	re *regexp.Regexp
}

// Regexp returns a [Matcher] which evaluates re against the normalized
// request path. Named capture groups are returned as Params.
func Regexp(re *regexp.Regexp) Matcher {
	return regexpMatcher{re: re}
}

func (m regexpMatcher) Match(r *http.Request) (Params, bool, error) {
	groups := m.re.FindStringSubmatch(RequestPath(r))
	if groups == nil {
		return nil, false, nil
	}

	var params Params
	for i, name := range m.re.SubexpNames() {
		if i == 0 || name == "" {
			continue
		}
		if params == nil {
			params = make(Params)
		}
		params[name] = groups[i]
	}
	return params, true, nil
}

func (m regexpMatcher) String() string {
	return m.re.String()
}

type funcMatcher struct {
	name string
	f    func(*http.Request) (bool, error)
}

// Func returns a [Matcher] backed by a custom predicate. The predicate
// may block, e.g. on I/O, and any error it returns fails the request.
func Func(name string, f func(*http.Request) (bool, error)) Matcher {
	return funcMatcher{name: name, f: f}
}

func (m funcMatcher) Match(r *http.Request) (Params, bool, error) {
	ok, err := m.f(r)
	return nil, ok, err
}

func (m funcMatcher) String() string {
	return m.name
}

type paramsKey struct{}

// NewContext returns a copy of parent carrying params.
func NewContext(parent context.Context, params Params) context.Context {
	return context.WithValue(parent, paramsKey{}, params)
}

// ParamsFromContext returns the Params stored in ctx, if any.
func ParamsFromContext(ctx context.Context) Params {
	params, _ := ctx.Value(paramsKey{}).(Params)
	return params
}

// WithParams returns a shallow copy of r carrying params both in its
// context and as [http.Request.PathValue]s.
func WithParams(r *http.Request, params Params) *http.Request {
	if len(params) == 0 {
		return r
	}
	r = r.WithContext(NewContext(r.Context(), params))
	for name, value := range params {
		r.SetPathValue(name, value)
	}
	return r
}
