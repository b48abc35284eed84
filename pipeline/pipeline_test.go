// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/z5labs/switchyard/internal/try"

	"github.com/stretchr/testify/assert"
)

func record(calls *[]string, name string) Middleware {
	return MiddlewareFunc(func(w http.ResponseWriter, r *http.Request, next *Next) error {
		*calls = append(*calls, name)
		next.Advance(nil)
		return nil
	})
}

func terminal(calls *[]string) Handler {
	return HandlerFunc(func(w http.ResponseWriter, r *http.Request) error {
		*calls = append(*calls, "handler")
		return nil
	})
}

func TestCompile(t *testing.T) {
	t.Run("will execute pre, global and route middleware in order", func(t *testing.T) {
		var calls []string
		p := Compile(
			terminal(&calls),
			[]Middleware{record(&calls, "route-1"), record(&calls, "route-2")},
			[]Middleware{record(&calls, "global-1"), record(&calls, "global-2")},
			record(&calls, "query"),
		)

		err := p.Handle(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		if !assert.Nil(t, err) {
			return
		}
		if !assert.Equal(t, 5, p.Len()) {
			return
		}
		assert.Equal(t, []string{"query", "global-1", "global-2", "route-1", "route-2", "handler"}, calls)
	})

	t.Run("will not be affected by later changes to the given slices", func(t *testing.T) {
		var calls []string
		global := make([]Middleware, 1, 4)
		global[0] = record(&calls, "global-1")

		p := Compile(terminal(&calls), nil, global)
		_ = append(global, record(&calls, "global-2"))
		global[0] = record(&calls, "replaced")

		err := p.Handle(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		if !assert.Nil(t, err) {
			return
		}
		assert.Equal(t, []string{"global-1", "handler"}, calls)
	})
}

func TestPipeline_Handle(t *testing.T) {
	t.Run("will short circuit", func(t *testing.T) {
		t.Run("if a middleware advances with an error", func(t *testing.T) {
			boom := errors.New("boom")
			var calls []string
			p := Compile(
				terminal(&calls),
				[]Middleware{
					record(&calls, "first"),
					MiddlewareFunc(func(w http.ResponseWriter, r *http.Request, next *Next) error {
						calls = append(calls, "failing")
						next.Advance(boom)
						return nil
					}),
					record(&calls, "last"),
				},
				nil,
			)

			err := p.Handle(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
			if !assert.Equal(t, boom, err) {
				return
			}
			assert.Equal(t, []string{"first", "failing"}, calls)
		})

		t.Run("if a middleware returns an error", func(t *testing.T) {
			boom := errors.New("boom")
			var calls []string
			p := Compile(
				terminal(&calls),
				[]Middleware{
					MiddlewareFunc(func(w http.ResponseWriter, r *http.Request, next *Next) error {
						next.Advance(nil)
						return boom
					}),
				},
				nil,
			)

			err := p.Handle(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
			if !assert.Equal(t, boom, err) {
				return
			}
			assert.Empty(t, calls)
		})

		t.Run("if a middleware panics", func(t *testing.T) {
			var calls []string
			p := Compile(
				terminal(&calls),
				nil,
				[]Middleware{
					MiddlewareFunc(func(w http.ResponseWriter, r *http.Request, next *Next) error {
						panic("unexpected")
					}),
				},
			)

			err := p.Handle(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

			var perr try.PanicError
			if !assert.ErrorAs(t, err, &perr) {
				return
			}
			assert.Empty(t, calls)
		})
	})

	t.Run("will stop without an error", func(t *testing.T) {
		t.Run("if a middleware declines to advance", func(t *testing.T) {
			var calls []string
			p := Compile(
				terminal(&calls),
				[]Middleware{
					MiddlewareFunc(func(w http.ResponseWriter, r *http.Request, next *Next) error {
						w.WriteHeader(http.StatusTeapot)
						return nil
					}),
					record(&calls, "never"),
				},
				nil,
			)

			w := httptest.NewRecorder()
			err := p.Handle(w, httptest.NewRequest(http.MethodGet, "/", nil))
			if !assert.Nil(t, err) {
				return
			}
			if !assert.Equal(t, http.StatusTeapot, w.Code) {
				return
			}
			assert.Empty(t, calls)
		})
	})

	t.Run("will only honour the first advance", func(t *testing.T) {
		boom := errors.New("boom")
		var calls []string
		p := Compile(
			terminal(&calls),
			[]Middleware{
				MiddlewareFunc(func(w http.ResponseWriter, r *http.Request, next *Next) error {
					next.Advance(nil)
					next.Advance(boom)
					return nil
				}),
			},
			nil,
		)

		err := p.Handle(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		if !assert.Nil(t, err) {
			return
		}
		assert.Equal(t, []string{"handler"}, calls)
	})

	t.Run("will ignore an advance after the middleware returned", func(t *testing.T) {
		var late *Next
		var calls []string
		p := Compile(
			terminal(&calls),
			[]Middleware{
				MiddlewareFunc(func(w http.ResponseWriter, r *http.Request, next *Next) error {
					late = next
					return nil
				}),
			},
			nil,
		)

		err := p.Handle(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		if !assert.Nil(t, err) {
			return
		}
		late.Advance(nil)
		assert.Empty(t, calls)
	})

	t.Run("will hand the replaced request to following stages", func(t *testing.T) {
		type key struct{}
		var got any
		p := Compile(
			HandlerFunc(func(w http.ResponseWriter, r *http.Request) error {
				got = r.Context().Value(key{})
				return nil
			}),
			[]Middleware{
				MiddlewareFunc(func(w http.ResponseWriter, r *http.Request, next *Next) error {
					next.WithRequest(r.WithContext(context.WithValue(r.Context(), key{}, "value")))
					next.Advance(nil)
					return nil
				}),
			},
			nil,
		)

		err := p.Handle(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		if !assert.Nil(t, err) {
			return
		}
		assert.Equal(t, "value", got)
	})

	t.Run("will return the terminal handler error", func(t *testing.T) {
		handlerErr := errors.New("handler failed")
		p := Compile(
			HandlerFunc(func(w http.ResponseWriter, r *http.Request) error {
				return handlerErr
			}),
			nil,
			nil,
		)

		err := p.Handle(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, handlerErr, err)
	})
}

func TestStd(t *testing.T) {
	h := Std(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	w := httptest.NewRecorder()
	err := h.Handle(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if !assert.Nil(t, err) {
		return
	}
	assert.Equal(t, http.StatusAccepted, w.Code)
}
