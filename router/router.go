// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package router implements the route table and request dispatcher.
//
// Routes are kept in one bucket per [Method] and evaluated in registration
// order; the first route whose [match.Matcher] succeeds handles the request.
// Every route owns a compiled [pipeline.Pipeline] made of the server wide
// middleware followed by its own middleware. The pipeline is recompiled
// eagerly, and swapped atomically, whenever either middleware list changes.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/z5labs/switchyard/internal/otelslog"
	"github.com/z5labs/switchyard/internal/slogfield"
	"github.com/z5labs/switchyard/internal/try"
	"github.com/z5labs/switchyard/match"
	"github.com/z5labs/switchyard/pipeline"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/z5labs/switchyard/router"

var (
	ErrNilHandler    = errors.New("handler must not be nil")
	ErrNilMatcher    = errors.New("path matcher must not be nil")
	ErrNilMiddleware = errors.New("middleware must not be nil")
)

// InvalidRouteError is returned when a route registration is rejected.
type InvalidRouteError struct {
	Method  Method
	Pattern string
	Cause   error
}

// Error implements the [builtin.error] interface.
func (e InvalidRouteError) Error() string {
	return fmt.Sprintf("invalid route %s %s: %s", e.Method, e.Pattern, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e InvalidRouteError) Unwrap() error {
	return e.Cause
}

// ErrorHandler handles a failure raised while dispatching a request.
// It is expected to write the response for the failure.
type ErrorHandler interface {
	HandleError(w http.ResponseWriter, r *http.Request, err error) error
}

// ErrorHandlerFunc is a func variant of the [ErrorHandler] interface.
type ErrorHandlerFunc func(http.ResponseWriter, *http.Request, error) error

// HandleError implements the [ErrorHandler] interface.
func (f ErrorHandlerFunc) HandleError(w http.ResponseWriter, r *http.Request, err error) error {
	return f(w, r, err)
}

// Option configures a [Router].
type Option func(*Router)

// NotFoundHandler will register the given [pipeline.Handler] to handle
// any request which matches no route for its method.
func NotFoundHandler(h pipeline.Handler) Option {
	return func(rt *Router) {
		rt.notFound = h
	}
}

// OnError will register the given [ErrorHandler] for failures raised by
// path matchers, middleware and handlers.
func OnError(h ErrorHandler) Option {
	return func(rt *Router) {
		rt.onError = h
	}
}

// AutoParseQuery installs [ParseQuery] as the first stage of every route.
func AutoParseQuery() Option {
	return func(rt *Router) {
		rt.pre = []pipeline.Middleware{ParseQuery()}
	}
}

// LogHandler sets the [slog.Handler] secondary failures are logged to.
func LogHandler(h slog.Handler) Option {
	return func(rt *Router) {
		rt.log = otelslog.New(h)
	}
}

// TracerProvider sets the provider of the tracer used for dispatch spans.
func TracerProvider(tp trace.TracerProvider) Option {
	return func(rt *Router) {
		rt.tracer = tp.Tracer(instrumentationName)
	}
}

// MeterProvider sets the provider of the meter used for request counting.
func MeterProvider(mp metric.MeterProvider) Option {
	return func(rt *Router) {
		rt.meter = mp.Meter(instrumentationName)
	}
}

// Route is a single entry of the route table.
type Route struct {
	method     Method
	matcher    match.Matcher
	middleware []pipeline.Middleware
	handler    pipeline.Handler
	manualEnd  bool

	compiled atomic.Pointer[pipeline.Pipeline]
}

// Method returns the method the route is registered for.
func (r *Route) Method() Method {
	return r.method
}

// Pattern describes the path matcher of the route.
func (r *Route) Pattern() string {
	return r.matcher.String()
}

// ManualEnd reports whether the handler, instead of the router, ends the response.
func (r *Route) ManualEnd() bool {
	return r.manualEnd
}

// Pipeline returns the currently compiled pipeline of the route.
func (r *Route) Pipeline() *pipeline.Pipeline {
	return r.compiled.Load()
}

func (r *Route) compile(pre, global []pipeline.Middleware) {
	r.compiled.Store(pipeline.Compile(r.handler, r.middleware, global, pre...))
}

type routeOptions struct {
	middleware []pipeline.Middleware
	manualEnd  bool
}

// RouteOption configures a single route registration.
type RouteOption func(*routeOptions)

// WithMiddleware appends route specific middleware. They run after every
// server wide middleware, in the order given.
func WithMiddleware(mw ...pipeline.Middleware) RouteOption {
	return func(ro *routeOptions) {
		ro.middleware = append(ro.middleware, mw...)
	}
}

// ManualEnd hands ending the response over to the handler. The router
// then waits for [Response.End] or for the request context to be done.
func ManualEnd() RouteOption {
	return func(ro *routeOptions) {
		ro.manualEnd = true
	}
}

// RouteInfo describes a registered route.
type RouteInfo struct {
	Method     Method
	Pattern    string
	ManualEnd  bool
	Middleware int
}

// Router is the route table and dispatcher. It implements [http.Handler].
type Router struct {
	mu       sync.RWMutex
	routes   map[Method][]*Route
	order    []*Route
	global   []pipeline.Middleware
	pre      []pipeline.Middleware
	notFound pipeline.Handler
	onError  ErrorHandler

	log      *slog.Logger
	tracer   trace.Tracer
	meter    metric.Meter
	requests metric.Int64Counter
}

// New initializes a [Router].
func New(opts ...Option) *Router {
	rt := &Router{
		routes: make(map[Method][]*Route),
		log:    otelslog.New(nil),
		tracer: otel.GetTracerProvider().Tracer(instrumentationName),
		meter:  otel.GetMeterProvider().Meter(instrumentationName),
	}
	rt.notFound = pipeline.HandlerFunc(notFound)
	rt.onError = ErrorHandlerFunc(rt.internalError)
	for _, opt := range opts {
		opt(rt)
	}

	requests, err := rt.meter.Int64Counter(
		"switchyard.router.requests",
		metric.WithDescription("Number of requests dispatched by outcome."),
	)
	if err != nil {
		rt.log.Warn("failed to create request counter", slogfield.Error(err))
	}
	rt.requests = requests
	return rt
}

func notFound(w http.ResponseWriter, r *http.Request) error {
	http.NotFound(w, r)
	return nil
}

func (rt *Router) internalError(w http.ResponseWriter, r *http.Request, err error) error {
	rt.log.ErrorContext(r.Context(), "failed to handle request", slogfield.Request(r), slogfield.Error(err))
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	return nil
}

// Register appends a route for method to the route table. The new route
// is compiled immediately; existing routes are left untouched.
func (rt *Router) Register(method Method, m match.Matcher, h pipeline.Handler, opts ...RouteOption) (*Route, error) {
	pattern := ""
	if m != nil {
		pattern = m.String()
	}
	invalid := func(cause error) error {
		return InvalidRouteError{Method: method, Pattern: pattern, Cause: cause}
	}

	if !method.Valid() {
		return nil, invalid(UnknownMethodError{Method: method})
	}
	if m == nil {
		return nil, invalid(ErrNilMatcher)
	}
	if h == nil {
		return nil, invalid(ErrNilHandler)
	}

	ro := &routeOptions{}
	for _, opt := range opts {
		opt(ro)
	}
	if err := validateMiddleware(ro.middleware); err != nil {
		return nil, invalid(err)
	}

	route := &Route{
		method:     method,
		matcher:    m,
		middleware: ro.middleware,
		handler:    h,
		manualEnd:  ro.manualEnd,
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()

	route.compile(rt.pre, rt.global)
	rt.routes[method] = append(rt.routes[method], route)
	rt.order = append(rt.order, route)
	return route, nil
}

func validateMiddleware(mw []pipeline.Middleware) error {
	for i, m := range mw {
		if m == nil {
			return fmt.Errorf("middleware at index %d: %w", i, ErrNilMiddleware)
		}
	}
	return nil
}

// Handle registers h for method and path. Paths containing a ':' segment
// are compiled into a template matcher. Handle panics if the registration
// is invalid.
func (rt *Router) Handle(method Method, path string, h pipeline.Handler, opts ...RouteOption) *Route {
	m, err := match.Path(path)
	if err != nil {
		panic(InvalidRouteError{Method: method, Pattern: path, Cause: err})
	}
	route, err := rt.Register(method, m, h, opts...)
	if err != nil {
		panic(err)
	}
	return route
}

// Get is shorthand for [Router.Handle] with [MethodGet].
func (rt *Router) Get(path string, h pipeline.Handler, opts ...RouteOption) *Route {
	return rt.Handle(MethodGet, path, h, opts...)
}

// Head is shorthand for [Router.Handle] with [MethodHead].
func (rt *Router) Head(path string, h pipeline.Handler, opts ...RouteOption) *Route {
	return rt.Handle(MethodHead, path, h, opts...)
}

// Post is shorthand for [Router.Handle] with [MethodPost].
func (rt *Router) Post(path string, h pipeline.Handler, opts ...RouteOption) *Route {
	return rt.Handle(MethodPost, path, h, opts...)
}

// Put is shorthand for [Router.Handle] with [MethodPut].
func (rt *Router) Put(path string, h pipeline.Handler, opts ...RouteOption) *Route {
	return rt.Handle(MethodPut, path, h, opts...)
}

// Patch is shorthand for [Router.Handle] with [MethodPatch].
func (rt *Router) Patch(path string, h pipeline.Handler, opts ...RouteOption) *Route {
	return rt.Handle(MethodPatch, path, h, opts...)
}

// Delete is shorthand for [Router.Handle] with [MethodDelete].
func (rt *Router) Delete(path string, h pipeline.Handler, opts ...RouteOption) *Route {
	return rt.Handle(MethodDelete, path, h, opts...)
}

// Options is shorthand for [Router.Handle] with [MethodOptions].
func (rt *Router) Options(path string, h pipeline.Handler, opts ...RouteOption) *Route {
	return rt.Handle(MethodOptions, path, h, opts...)
}

// Use appends server wide middleware and recompiles every registered route.
// Server wide middleware always run before route middleware, no matter
// when they were added.
func (rt *Router) Use(mw ...pipeline.Middleware) error {
	if err := validateMiddleware(mw); err != nil {
		return err
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()

	rt.global = append(rt.global, mw...)
	for _, route := range rt.order {
		route.compile(rt.pre, rt.global)
	}
	return nil
}

// SetErrorHandler replaces the [ErrorHandler]. A nil h restores the default.
func (rt *Router) SetErrorHandler(h ErrorHandler) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if h == nil {
		h = ErrorHandlerFunc(rt.internalError)
	}
	rt.onError = h
}

// SetNotFoundHandler replaces the not found handler. A nil h restores the default.
func (rt *Router) SetNotFoundHandler(h pipeline.Handler) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if h == nil {
		h = pipeline.HandlerFunc(notFound)
	}
	rt.notFound = h
}

// Routes lists every registered route in registration order.
func (rt *Router) Routes() []RouteInfo {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	infos := make([]RouteInfo, len(rt.order))
	for i, route := range rt.order {
		infos[i] = RouteInfo{
			Method:     route.method,
			Pattern:    route.Pattern(),
			ManualEnd:  route.manualEnd,
			Middleware: len(route.middleware),
		}
	}
	return infos
}

type outcome string

const (
	outcomeHandled  outcome = "handled"
	outcomeNotFound outcome = "not_found"
	outcomeError    outcome = "error"
)

// ServeHTTP implements the [http.Handler] interface.
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, span := rt.tracer.Start(r.Context(), "router.dispatch", trace.WithAttributes(
		attribute.String("http.request.method", r.Method),
	))
	defer span.End()
	r = r.WithContext(ctx)

	res := NewResponse(w)

	rt.mu.RLock()
	routes := rt.routes[Method(r.Method)]
	notFoundHandler := rt.notFound
	errorHandler := rt.onError
	rt.mu.RUnlock()

	o := rt.dispatch(res, r, routes, notFoundHandler, errorHandler)
	if rt.requests != nil {
		rt.requests.Add(ctx, 1, metric.WithAttributes(
			attribute.String("http.request.method", r.Method),
			attribute.String("outcome", string(o)),
		))
	}
}

func (rt *Router) dispatch(res *Response, r *http.Request, routes []*Route, notFoundHandler pipeline.Handler, errorHandler ErrorHandler) outcome {
	span := trace.SpanFromContext(r.Context())

	route, params, err := find(routes, r)
	if err != nil {
		rt.fail(res, r, errorHandler, err)
		return outcomeError
	}
	if route == nil {
		rt.notFoundFallback(res, r, notFoundHandler)
		return outcomeNotFound
	}
	span.SetAttributes(attribute.String("http.route", route.Pattern()))

	r = match.WithParams(r, params)
	err = route.Pipeline().Handle(res, r)
	if err != nil {
		rt.fail(res, r, errorHandler, err)
		return outcomeError
	}
	if !route.manualEnd {
		res.End()
		return outcomeHandled
	}

	select {
	case <-res.Done():
	case <-r.Context().Done():
	}
	return outcomeHandled
}

func find(routes []*Route, r *http.Request) (*Route, match.Params, error) {
	for _, route := range routes {
		var (
			params match.Params
			ok     bool
		)
		err := try.Do(func() (err error) {
			params, ok, err = route.matcher.Match(r)
			return err
		})
		if err != nil {
			return nil, nil, err
		}
		if ok {
			return route, params, nil
		}
	}
	return nil, nil, nil
}

func (rt *Router) notFoundFallback(res *Response, r *http.Request, h pipeline.Handler) {
	defer res.end(http.StatusNotFound)

	err := try.Do(func() error {
		return h.Handle(res, r)
	})
	if err != nil {
		rt.log.ErrorContext(r.Context(), "not found handler failed", slogfield.Request(r), slogfield.Error(err))
	}
}

func (rt *Router) fail(res *Response, r *http.Request, h ErrorHandler, cause error) {
	defer res.end(http.StatusInternalServerError)

	span := trace.SpanFromContext(r.Context())
	span.RecordError(cause)
	span.SetStatus(codes.Error, cause.Error())

	err := try.Do(func() error {
		return h.HandleError(res, r, cause)
	})
	if err != nil {
		rt.log.ErrorContext(r.Context(), "error handler failed", slogfield.Request(r), slogfield.Error(errors.Join(cause, err)))
	}
}

type routerKey struct{}

// NewContext returns a copy of parent carrying rt.
func NewContext(parent context.Context, rt *Router) context.Context {
	return context.WithValue(parent, routerKey{}, rt)
}

// FromContext returns the [Router] stored in ctx by [NewContext].
func FromContext(ctx context.Context) (*Router, bool) {
	rt, ok := ctx.Value(routerKey{}).(*Router)
	return rt, ok
}
