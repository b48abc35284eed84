// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package switchyard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/z5labs/switchyard/config"
	"github.com/z5labs/switchyard/controller"
	"github.com/z5labs/switchyard/internal/otelslog"
	"github.com/z5labs/switchyard/internal/slogfield"
	"github.com/z5labs/switchyard/lifecycle"
	"github.com/z5labs/switchyard/router"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Option configures a [Server].
type Option func(*Server)

// Addr sets the TCP address the server listens on. The default is ":8080".
func Addr(addr config.Reader[string]) Option {
	return func(s *Server) {
		s.addr = addr
	}
}

// Listener makes the server accept connections on ln instead of
// listening on [Addr].
func Listener(ln net.Listener) Option {
	return func(s *Server) {
		s.ln = ln
	}
}

// ReadTimeout sets the maximum duration for reading an entire request,
// including the body. The default is 5 seconds.
func ReadTimeout(d config.Reader[time.Duration]) Option {
	return func(s *Server) {
		s.readTimeout = d
	}
}

// ReadHeaderTimeout sets the maximum duration for reading request headers.
// The default is 2 seconds.
func ReadHeaderTimeout(d config.Reader[time.Duration]) Option {
	return func(s *Server) {
		s.readHeaderTimeout = d
	}
}

// WriteTimeout sets the maximum duration before timing out writes of the
// response. The default is 10 seconds.
func WriteTimeout(d config.Reader[time.Duration]) Option {
	return func(s *Server) {
		s.writeTimeout = d
	}
}

// IdleTimeout sets the maximum duration to wait for the next request when
// keep-alives are enabled. The default is 120 seconds.
func IdleTimeout(d config.Reader[time.Duration]) Option {
	return func(s *Server) {
		s.idleTimeout = d
	}
}

// ShutdownTimeout bounds the graceful shutdown. The default is 30 seconds.
func ShutdownTimeout(d config.Reader[time.Duration]) Option {
	return func(s *Server) {
		s.shutdownTimeout = d
	}
}

// MaxHeaderBytes sets the maximum number of bytes read parsing request
// headers. The default is 1048576 bytes (1 MB).
func MaxHeaderBytes(n config.Reader[int]) Option {
	return func(s *Server) {
		s.maxHeaderBytes = n
	}
}

// LogHandler sets the [slog.Handler] used by the server, its router and
// the controllers it binds.
func LogHandler(h slog.Handler) Option {
	return func(s *Server) {
		s.logHandler = h
	}
}

// TracerProvider sets the provider of the tracers used for server and
// dispatch spans.
func TracerProvider(tp trace.TracerProvider) Option {
	return func(s *Server) {
		s.routerOpts = append(s.routerOpts, router.TracerProvider(tp))
		s.otelOpts = append(s.otelOpts, otelhttp.WithTracerProvider(tp))
	}
}

// MeterProvider sets the provider of the meters used for server and
// router metrics.
func MeterProvider(mp metric.MeterProvider) Option {
	return func(s *Server) {
		s.routerOpts = append(s.routerOpts, router.MeterProvider(mp))
		s.otelOpts = append(s.otelOpts, otelhttp.WithMeterProvider(mp))
	}
}

// RouterOptions configures the embedded [router.Router].
func RouterOptions(opts ...router.Option) Option {
	return func(s *Server) {
		s.routerOpts = append(s.routerOpts, opts...)
	}
}

// Server is an HTTP server dispatching to its embedded [router.Router].
type Server struct {
	*router.Router

	bus         *lifecycle.Bus
	descriptors []controller.Descriptor
	log         *slog.Logger
	logHandler  slog.Handler
	routerOpts  []router.Option
	otelOpts    []otelhttp.Option

	addr              config.Reader[string]
	ln                net.Listener
	readTimeout       config.Reader[time.Duration]
	readHeaderTimeout config.Reader[time.Duration]
	writeTimeout      config.Reader[time.Duration]
	idleTimeout       config.Reader[time.Duration]
	shutdownTimeout   config.Reader[time.Duration]
	maxHeaderBytes    config.Reader[int]
}

// New initializes a [Server].
func New(opts ...Option) *Server {
	s := &Server{
		bus: &lifecycle.Bus{},
	}
	for _, opt := range opts {
		opt(s)
	}

	s.log = otelslog.New(s.logHandler)
	routerOpts := append([]router.Option{router.LogHandler(s.logHandler)}, s.routerOpts...)
	s.Router = router.New(routerOpts...)
	return s
}

// Bus returns the [lifecycle.Bus] server and controller events are emitted on.
func (s *Server) Bus() *lifecycle.Bus {
	return s.bus
}

// ListenError is returned when the server fails to start listening.
type ListenError struct {
	Addr  string
	Cause error
}

// Error implements the [builtin.error] interface.
func (e ListenError) Error() string {
	return fmt.Sprintf("failed to listen on %s: %s", e.Addr, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e ListenError) Unwrap() error {
	return e.Cause
}

// Run serves requests until ctx is cancelled and then shuts down
// gracefully. It emits [lifecycle.ServerListen] before accepting
// connections, [lifecycle.ServerListening] once accepting them,
// [lifecycle.ServerClose] when shutdown begins and
// [lifecycle.ServerClosed] after it completes.
func (s *Server) Run(ctx context.Context) error {
	ln, err := s.listen(ctx)
	if err != nil {
		return err
	}
	payload := lifecycle.Listener{
		Network: ln.Addr().Network(),
		Addr:    ln.Addr().String(),
	}

	err = s.bus.Emit(ctx, lifecycle.ServerListen, payload)
	if err != nil {
		return errors.Join(err, ln.Close())
	}

	srv := &http.Server{
		Handler:           otelhttp.NewHandler(s.Router, "switchyard", s.otelOpts...),
		ReadTimeout:       config.MustOr(ctx, 5*time.Second, s.readTimeout),
		ReadHeaderTimeout: config.MustOr(ctx, 2*time.Second, s.readHeaderTimeout),
		WriteTimeout:      config.MustOr(ctx, 10*time.Second, s.writeTimeout),
		IdleTimeout:       config.MustOr(ctx, 120*time.Second, s.idleTimeout),
		MaxHeaderBytes:    config.MustOr(ctx, 1048576, s.maxHeaderBytes),
		ErrorLog:          slog.NewLogLogger(s.log.Handler(), slog.LevelError),
		BaseContext: func(net.Listener) context.Context {
			return lifecycle.NewContext(context.WithoutCancel(ctx), s.bus)
		},
	}
	shutdownTimeout := config.MustOr(ctx, 30*time.Second, s.shutdownTimeout)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		listeningErr := s.bus.Emit(gctx, lifecycle.ServerListening, payload)
		if listeningErr == nil {
			s.log.InfoContext(gctx, "listening", slogfield.String("addr", payload.Addr))
			<-gctx.Done()
		}
		return errors.Join(listeningErr, s.shutdown(ctx, srv, payload, shutdownTimeout))
	})

	err = g.Wait()
	if err == nil || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Server) listen(ctx context.Context) (net.Listener, error) {
	if s.ln != nil {
		return s.ln, nil
	}
	addr := config.MustOr(ctx, ":8080", s.addr)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, ListenError{Addr: addr, Cause: err}
	}
	return ln, nil
}

func (s *Server) shutdown(ctx context.Context, srv *http.Server, payload lifecycle.Listener, timeout time.Duration) error {
	ctx = context.WithoutCancel(ctx)
	s.log.InfoContext(ctx, "shutting down", slogfield.String("addr", payload.Addr))

	closeErr := s.bus.Emit(ctx, lifecycle.ServerClose, payload)

	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	shutdownErr := srv.Shutdown(shutdownCtx)

	closedErr := s.bus.Emit(ctx, lifecycle.ServerClosed, payload)
	return errors.Join(closeErr, shutdownErr, closedErr)
}
