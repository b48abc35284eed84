// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

type wrappedWriter struct {
	http.ResponseWriter
}

func (w wrappedWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func TestResponse(t *testing.T) {
	t.Run("will only forward the first status code", func(t *testing.T) {
		w := httptest.NewRecorder()
		res := NewResponse(w)

		res.WriteHeader(http.StatusAccepted)
		res.WriteHeader(http.StatusTeapot)

		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.Equal(t, http.StatusAccepted, res.Status())
		assert.True(t, res.Written())
	})

	t.Run("will not wrap a response twice", func(t *testing.T) {
		res := NewResponse(httptest.NewRecorder())
		assert.Same(t, res, NewResponse(res))
	})

	t.Run("will send 200 on end if nothing was written", func(t *testing.T) {
		w := httptest.NewRecorder()
		res := NewResponse(w)

		res.End()

		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, w.Flushed)
		assert.True(t, res.Ended())
		select {
		case <-res.Done():
		default:
			t.Error("expected done to be closed")
		}
	})

	t.Run("will ignore repeated calls to end", func(t *testing.T) {
		res := NewResponse(httptest.NewRecorder())

		res.End()
		res.End()

		assert.True(t, res.Ended())
	})

	t.Run("will keep the status written before end", func(t *testing.T) {
		w := httptest.NewRecorder()
		res := NewResponse(w)

		res.WriteHeader(http.StatusCreated)
		res.End()

		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("will return an error", func(t *testing.T) {
		t.Run("if written to after end", func(t *testing.T) {
			w := httptest.NewRecorder()
			res := NewResponse(w)
			res.End()

			n, err := res.Write([]byte("late"))
			if !assert.ErrorIs(t, err, ErrResponseEnded) {
				return
			}
			assert.Zero(t, n)
			assert.Empty(t, w.Body.String())
		})
	})
}

func TestEnd(t *testing.T) {
	t.Run("will end a wrapped response", func(t *testing.T) {
		res := NewResponse(httptest.NewRecorder())

		found := End(wrappedWriter{ResponseWriter: res})
		if !assert.True(t, found) {
			return
		}
		assert.True(t, res.Ended())
	})

	t.Run("will report false for a plain response writer", func(t *testing.T) {
		assert.False(t, End(httptest.NewRecorder()))
	})
}
