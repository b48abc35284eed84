// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package telemetry wraps a runtime with OpenTelemetry providers.
//
// The providers are registered globally before the wrapped runtime runs
// and shut down once it returns. Routers and servers created before
// [Runtime.Run] pick them up through the global delegates.
//
//	tp, err := telemetry.StdoutTracerProvider(os.Stderr, "accounts")
//	...
//	rt := telemetry.Wrap(srv, telemetry.TracerProvider(tp))
//	err = switchyard.Run(ctx, rt, os.Interrupt)
//
// Any errors from provider shutdown are joined with the runtime error.
package telemetry

import (
	"context"
	"errors"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Runner is anything that runs until its context is cancelled.
type Runner interface {
	Run(context.Context) error
}

// Option configures a [Runtime].
type Option func(*Runtime)

// TracerProvider registers tp as the global tracer provider.
func TracerProvider(tp trace.TracerProvider) Option {
	return func(r *Runtime) {
		r.tracerProvider = tp
	}
}

// MeterProvider registers mp as the global meter provider.
func MeterProvider(mp metric.MeterProvider) Option {
	return func(r *Runtime) {
		r.meterProvider = mp
	}
}

// Propagator registers p as the global text map propagator. The default
// propagates W3C trace context and baggage.
func Propagator(p propagation.TextMapPropagator) Option {
	return func(r *Runtime) {
		r.propagator = p
	}
}

// Runtime runs a [Runner] with OpenTelemetry providers installed.
type Runtime struct {
	propagator     propagation.TextMapPropagator
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	runner         Runner
}

// Wrap returns a Runtime which runs r.
func Wrap(r Runner, opts ...Option) *Runtime {
	rt := &Runtime{
		propagator: propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
		runner: r,
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

type shutdowner interface {
	Shutdown(context.Context) error
}

// Run installs the configured providers, runs the wrapped runner and
// then shuts down every provider which supports it. Shutdown is not
// bound to the cancellation of ctx.
func (r *Runtime) Run(ctx context.Context) (err error) {
	var shutdowns []func(context.Context) error

	otel.SetTextMapPropagator(r.propagator)

	if r.tracerProvider != nil {
		otel.SetTracerProvider(r.tracerProvider)
		if sd, ok := r.tracerProvider.(shutdowner); ok {
			shutdowns = append(shutdowns, sd.Shutdown)
		}
	}
	if r.meterProvider != nil {
		otel.SetMeterProvider(r.meterProvider)
		if sd, ok := r.meterProvider.(shutdowner); ok {
			shutdowns = append(shutdowns, sd.Shutdown)
		}
	}

	defer func() {
		sdCtx := context.WithoutCancel(ctx)
		errs := []error{err}
		for _, shutdown := range shutdowns {
			errs = append(errs, shutdown(sdCtx))
		}
		err = errors.Join(errs...)
	}()

	return r.runner.Run(ctx)
}

func serviceResource(service string) *resource.Resource {
	return resource.NewSchemaless(attribute.String("service.name", service))
}

// StdoutTracerProvider returns a tracer provider which batches spans and
// writes them to w as JSON.
func StdoutTracerProvider(w io.Writer, service string) (*sdktrace.TracerProvider, error) {
	exp, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(serviceResource(service)),
		sdktrace.WithBatcher(exp),
	)
	return tp, nil
}

// StdoutMeterProvider returns a meter provider which periodically writes
// metrics to w as JSON.
func StdoutMeterProvider(w io.Writer, service string) (*sdkmetric.MeterProvider, error) {
	exp, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
	if err != nil {
		return nil, err
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(serviceResource(service)),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)),
	)
	return mp, nil
}
