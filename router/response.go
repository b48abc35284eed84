// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package router

import (
	"errors"
	"net/http"
	"sync"
)

// ErrResponseEnded is returned when writing to a [Response] after [Response.End].
var ErrResponseEnded = errors.New("response already ended")

// Response is the [http.ResponseWriter] every pipeline writes to. It
// remembers the status written and whether the response has been ended.
type Response struct {
	w http.ResponseWriter

	mu          sync.Mutex
	status      int
	wroteHeader bool
	ended       bool
	done        chan struct{}
}

// NewResponse wraps w. If w already is a [*Response] it is returned as is.
func NewResponse(w http.ResponseWriter) *Response {
	if res, ok := w.(*Response); ok {
		return res
	}
	return &Response{
		w:      w,
		status: http.StatusOK,
		done:   make(chan struct{}),
	}
}

// Header implements the [http.ResponseWriter] interface.
func (res *Response) Header() http.Header {
	return res.w.Header()
}

// WriteHeader implements the [http.ResponseWriter] interface.
// Only the first status written is forwarded.
func (res *Response) WriteHeader(statusCode int) {
	res.mu.Lock()
	defer res.mu.Unlock()

	res.writeHeader(statusCode)
}

func (res *Response) writeHeader(statusCode int) {
	if res.wroteHeader || res.ended {
		return
	}
	res.wroteHeader = true
	res.status = statusCode
	res.w.WriteHeader(statusCode)
}

// Write implements the [http.ResponseWriter] interface.
func (res *Response) Write(b []byte) (int, error) {
	res.mu.Lock()
	defer res.mu.Unlock()

	if res.ended {
		return 0, ErrResponseEnded
	}
	res.writeHeader(http.StatusOK)
	return res.w.Write(b)
}

// Flush sends any buffered data to the client.
func (res *Response) Flush() {
	res.mu.Lock()
	defer res.mu.Unlock()

	if res.ended {
		return
	}
	res.writeHeader(http.StatusOK)
	if f, ok := res.w.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap returns the underlying [http.ResponseWriter] for use with [http.ResponseController].
func (res *Response) Unwrap() http.ResponseWriter {
	return res.w
}

// Status returns the status code written, or 200 if none has been written yet.
func (res *Response) Status() int {
	res.mu.Lock()
	defer res.mu.Unlock()

	return res.status
}

// Written reports whether a status code has been sent.
func (res *Response) Written() bool {
	res.mu.Lock()
	defer res.mu.Unlock()

	return res.wroteHeader
}

// End finishes the response. A response with nothing written yet is sent
// with status 200 and an empty body. Calling End more than once is a no-op.
func (res *Response) End() {
	res.end(http.StatusOK)
}

// Ended reports whether [Response.End] has been called.
func (res *Response) Ended() bool {
	res.mu.Lock()
	defer res.mu.Unlock()

	return res.ended
}

// Done is closed once the response has been ended.
func (res *Response) Done() <-chan struct{} {
	return res.done
}

func (res *Response) end(statusCode int) {
	res.mu.Lock()
	defer res.mu.Unlock()

	if res.ended {
		return
	}
	res.writeHeader(statusCode)
	if f, ok := res.w.(http.Flusher); ok {
		f.Flush()
	}
	res.ended = true
	close(res.done)
}

// End ends w if it is, or wraps, a [*Response]. It reports whether a
// [*Response] was found.
func End(w http.ResponseWriter) bool {
	for {
		switch x := w.(type) {
		case *Response:
			x.End()
			return true
		case interface{ Unwrap() http.ResponseWriter }:
			w = x.Unwrap()
		default:
			return false
		}
	}
}
