// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package pipeline composes middleware and a terminal handler into a
// single sequentially executed unit.
//
// A [Pipeline] is an immutable, ordered list of stages driven by a cursor.
// Each [Middleware] receives a [Next] which it uses to either advance the
// cursor or fail the whole pipeline:
//
//	pipeline.MiddlewareFunc(func(w http.ResponseWriter, r *http.Request, next *pipeline.Next) error {
//	    if r.Header.Get("Authorization") == "" {
//	        next.Advance(ErrUnauthorized)
//	        return nil
//	    }
//	    next.Advance(nil)
//	    return nil
//	})
//
// Returning a non-nil error or panicking is equivalent to advancing with an
// error. A middleware which returns without advancing declines the request,
// usually because it already wrote the response itself.
package pipeline

import (
	"net/http"
	"slices"
	"sync"

	"github.com/z5labs/switchyard/internal/try"
)

// Handler terminates a [Pipeline].
type Handler interface {
	Handle(http.ResponseWriter, *http.Request) error
}

// HandlerFunc is a func variant of the [Handler] interface.
type HandlerFunc func(http.ResponseWriter, *http.Request) error

// Handle implements the [Handler] interface.
func (f HandlerFunc) Handle(w http.ResponseWriter, r *http.Request) error {
	return f(w, r)
}

type stdHandler struct {
	h http.Handler
}

func (h stdHandler) Handle(w http.ResponseWriter, r *http.Request) error {
	h.h.ServeHTTP(w, r)
	return nil
}

// Std lifts a [http.Handler] into a [Handler] which never fails.
func Std(h http.Handler) Handler {
	return stdHandler{h: h}
}

// Middleware is a unit of per-request logic executed ahead of a [Handler].
type Middleware interface {
	Serve(w http.ResponseWriter, r *http.Request, next *Next) error
}

// MiddlewareFunc is a func variant of the [Middleware] interface.
type MiddlewareFunc func(http.ResponseWriter, *http.Request, *Next) error

// Serve implements the [Middleware] interface.
func (f MiddlewareFunc) Serve(w http.ResponseWriter, r *http.Request, next *Next) error {
	return f(w, r, next)
}

// Next is the cursor handle given to a single [Middleware] invocation.
// Only the first call to Advance is honoured and it must happen before
// the middleware returns.
type Next struct {
	mu       sync.Mutex
	closed   bool
	advanced bool
	err      error
	req      *http.Request
}

// Advance moves the pipeline on to the next stage when err is nil.
// A non-nil err aborts the pipeline and is returned by [Pipeline.Handle]
// unchanged.
func (n *Next) Advance(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed || n.advanced {
		return
	}
	n.advanced = true
	n.err = err
}

// WithRequest replaces the request handed to every following stage.
func (n *Next) WithRequest(r *http.Request) {
	if r == nil {
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return
	}
	n.req = r
}

func (n *Next) close() (*http.Request, bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.closed = true
	return n.req, n.advanced, n.err
}

// Pipeline is an immutable composition of middleware and a terminal [Handler].
type Pipeline struct {
	stages   []Middleware
	terminal Handler
}

// Compile orders the stages as pre, then global, then route middleware,
// followed by terminal. The given slices are copied so later changes to
// them never affect the returned [Pipeline].
func Compile(terminal Handler, route, global []Middleware, pre ...Middleware) *Pipeline {
	stages := make([]Middleware, 0, len(pre)+len(global)+len(route))
	stages = append(stages, pre...)
	stages = append(stages, global...)
	stages = append(stages, route...)

	return &Pipeline{
		stages:   slices.Clip(stages),
		terminal: terminal,
	}
}

// Len returns the number of middleware stages ahead of the terminal handler.
func (p *Pipeline) Len() int {
	return len(p.stages)
}

// Handle implements the [Handler] interface. It returns once the terminal
// handler has returned, as soon as any stage fails, or when a stage declines
// to advance.
func (p *Pipeline) Handle(w http.ResponseWriter, r *http.Request) error {
	for _, stage := range p.stages {
		next := &Next{req: r}

		err := try.Do(func() error {
			return stage.Serve(w, r, next)
		})

		req, advanced, advanceErr := next.close()
		if err != nil {
			return err
		}
		if advanceErr != nil {
			return advanceErr
		}
		if !advanced {
			return nil
		}
		r = req
	}

	return try.Do(func() error {
		return p.terminal.Handle(w, r)
	})
}
