// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package controller

import (
	"errors"
	"fmt"
	"slices"

	"github.com/z5labs/switchyard/pipeline"
	"github.com/z5labs/switchyard/router"
)

// DuplicateActionError is reported when the same HTTP method is declared
// twice for one action.
type DuplicateActionError struct {
	Action string
	Method router.Method
}

// Error implements the [builtin.error] interface.
func (e DuplicateActionError) Error() string {
	return fmt.Sprintf("action %s already handles %s", e.Action, e.Method)
}

// DuplicateImportError is reported when a property is imported twice.
type DuplicateImportError struct {
	Name string
}

// Error implements the [builtin.error] interface.
func (e DuplicateImportError) Error() string {
	return fmt.Sprintf("property %s is already imported", e.Name)
}

// ActionError is reported for an invalid action declaration.
type ActionError struct {
	Action string
	Cause  error
}

// Error implements the [builtin.error] interface.
func (e ActionError) Error() string {
	return fmt.Sprintf("invalid action %s: %s", e.Action, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e ActionError) Unwrap() error {
	return e.Cause
}

// BodySpec describes the request body an action expects.
type BodySpec struct {
	Format string
	Schema any
}

// MethodHandler is one HTTP method bound to an action.
type MethodHandler struct {
	Method  router.Method
	Handler pipeline.Handler
}

// Action is the route metadata of a single controller action. Every
// HTTP method declared for the action shares it and is registered as
// its own route.
type Action struct {
	Name       string
	Path       string
	HasPath    bool
	Params     []string
	Middleware []pipeline.Middleware
	Body       *BodySpec
	ManualEnd  bool
	Handlers   []MethodHandler
}

// ActionOption configures an [Action].
type ActionOption func(*Action)

// Path overrides the segment derived from the action name.
func Path(p string) ActionOption {
	return func(a *Action) {
		a.Path = p
		a.HasPath = true
	}
}

// Param appends one path parameter segment per name.
func Param(names ...string) ActionOption {
	return func(a *Action) {
		a.Params = append(a.Params, names...)
	}
}

// Middleware appends action specific middleware. They run after the
// middleware declared with [Routes.Use].
func Middleware(mw ...pipeline.Middleware) ActionOption {
	return func(a *Action) {
		a.Middleware = append(a.Middleware, mw...)
	}
}

// Body declares the body format and schema of the action. The
// [BodyParser] given to the [Binder] turns it into middleware.
func Body(format string, schema any) ActionOption {
	return func(a *Action) {
		a.Body = &BodySpec{Format: format, Schema: schema}
	}
}

// ManualEnd hands ending the response over to the action handlers.
func ManualEnd() ActionOption {
	return func(a *Action) {
		a.ManualEnd = true
	}
}

type importSpec struct {
	name   string
	key    string
	target Injectable
}

// Routes collects the declarations of a [Controller].
type Routes struct {
	middleware []pipeline.Middleware
	imports    []importSpec
	actions    []*Action
	byName     map[string]*Action
	errs       []error
}

func newRoutes() *Routes {
	return &Routes{
		byName: make(map[string]*Action),
	}
}

// Use appends middleware which precede the middleware of every action.
func (rs *Routes) Use(mw ...pipeline.Middleware) {
	for i, m := range mw {
		if m == nil {
			rs.errs = append(rs.errs, fmt.Errorf("controller middleware at index %d: %w", i, router.ErrNilMiddleware))
			return
		}
	}
	rs.middleware = append(rs.middleware, mw...)
}

// Import injects the import value named name into target.
func (rs *Routes) Import(name string, target Injectable) {
	rs.ImportKey(name, name, target)
}

// ImportKey injects the import value stored under key into target.
func (rs *Routes) ImportKey(name, key string, target Injectable) {
	if target == nil {
		rs.errs = append(rs.errs, fmt.Errorf("import %s: target must not be nil", name))
		return
	}
	for _, spec := range rs.imports {
		if spec.name == name {
			rs.errs = append(rs.errs, DuplicateImportError{Name: name})
			return
		}
	}
	rs.imports = append(rs.imports, importSpec{name: name, key: key, target: target})
}

// Handle binds h to method for the action called name. Options given with
// every method of the same action accumulate on the shared [Action].
func (rs *Routes) Handle(method router.Method, name string, h pipeline.Handler, opts ...ActionOption) {
	if !method.Valid() {
		rs.errs = append(rs.errs, ActionError{Action: name, Cause: router.UnknownMethodError{Method: method}})
		return
	}
	if h == nil {
		rs.errs = append(rs.errs, ActionError{Action: name, Cause: router.ErrNilHandler})
		return
	}

	a, ok := rs.byName[name]
	if !ok {
		a = &Action{Name: name}
		rs.byName[name] = a
		rs.actions = append(rs.actions, a)
	}

	for _, mh := range a.Handlers {
		if mh.Method == method {
			rs.errs = append(rs.errs, DuplicateActionError{Action: name, Method: method})
			return
		}
	}
	a.Handlers = append(a.Handlers, MethodHandler{Method: method, Handler: h})

	for _, opt := range opts {
		opt(a)
	}
	if slices.Contains(a.Middleware, nil) {
		rs.errs = append(rs.errs, ActionError{Action: name, Cause: router.ErrNilMiddleware})
	}
}

// Get is shorthand for [Routes.Handle] with [router.MethodGet].
func (rs *Routes) Get(name string, h pipeline.Handler, opts ...ActionOption) {
	rs.Handle(router.MethodGet, name, h, opts...)
}

// Head is shorthand for [Routes.Handle] with [router.MethodHead].
func (rs *Routes) Head(name string, h pipeline.Handler, opts ...ActionOption) {
	rs.Handle(router.MethodHead, name, h, opts...)
}

// Post is shorthand for [Routes.Handle] with [router.MethodPost].
func (rs *Routes) Post(name string, h pipeline.Handler, opts ...ActionOption) {
	rs.Handle(router.MethodPost, name, h, opts...)
}

// Put is shorthand for [Routes.Handle] with [router.MethodPut].
func (rs *Routes) Put(name string, h pipeline.Handler, opts ...ActionOption) {
	rs.Handle(router.MethodPut, name, h, opts...)
}

// Patch is shorthand for [Routes.Handle] with [router.MethodPatch].
func (rs *Routes) Patch(name string, h pipeline.Handler, opts ...ActionOption) {
	rs.Handle(router.MethodPatch, name, h, opts...)
}

// Delete is shorthand for [Routes.Handle] with [router.MethodDelete].
func (rs *Routes) Delete(name string, h pipeline.Handler, opts ...ActionOption) {
	rs.Handle(router.MethodDelete, name, h, opts...)
}

// Options is shorthand for [Routes.Handle] with [router.MethodOptions].
func (rs *Routes) Options(name string, h pipeline.Handler, opts ...ActionOption) {
	rs.Handle(router.MethodOptions, name, h, opts...)
}

// Actions returns the declared actions in declaration order.
func (rs *Routes) Actions() []Action {
	actions := make([]Action, len(rs.actions))
	for i, a := range rs.actions {
		actions[i] = *a
	}
	return actions
}

// Err returns every declaration error joined together.
func (rs *Routes) Err() error {
	return errors.Join(rs.errs...)
}
