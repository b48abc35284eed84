// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"context"
	"embed"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/z5labs/switchyard"
	"github.com/z5labs/switchyard/config"
	"github.com/z5labs/switchyard/controller"
	"github.com/z5labs/switchyard/router"
	"github.com/z5labs/switchyard/telemetry"
)

//go:embed all:controllers
var controllers embed.FS

func newServer(ctx context.Context, logHandler slog.Handler, opts ...switchyard.Option) (*switchyard.Server, error) {
	log := slog.New(logHandler)

	opts = append([]switchyard.Option{
		switchyard.LogHandler(logHandler),
		switchyard.Addr(config.Default(":8080", config.Env("ADDR"))),
		switchyard.ShutdownTimeout(config.DurationFromString(config.Env("SHUTDOWN_TIMEOUT"))),
		switchyard.RouterOptions(
			router.AutoParseQuery(),
			router.OnError(router.ErrorHandlerFunc(handleError(log))),
		),
	}, opts...)
	srv := switchyard.New(opts...)

	tree, err := fs.Sub(controllers, "controllers")
	if err != nil {
		return nil, err
	}

	err = srv.Extend(ctx, switchyard.Controllers(
		controller.Manifests(controllerTypes),
		"controllers",
		[]string{"**/*.yaml"},
		controller.Values{
			"store":       NewStore(),
			"now":         time.Now,
			"log":         log,
			"currentUser": func() string { return os.Getenv("USER") },
		},
		controller.FS(tree),
		controller.Parser(controller.BodyParserFunc(parseJSON)),
	))
	if err != nil {
		return nil, err
	}
	return srv, nil
}

func main() {
	logHandler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{AddSource: true})
	log := slog.New(logHandler)

	ctx := context.Background()
	srv, err := newServer(ctx, logHandler)
	if err != nil {
		log.Error("failed to build server", slog.Any("error", err))
		os.Exit(1)
	}

	rt, err := withTelemetry(ctx, srv)
	if err != nil {
		log.Error("failed to configure telemetry", slog.Any("error", err))
		os.Exit(1)
	}

	err = switchyard.Run(ctx, rt, os.Interrupt)
	if err != nil {
		log.Error("server failed", slog.Any("error", err))
		os.Exit(1)
	}
}

// withTelemetry writes traces and metrics to stderr when OTEL_STDOUT is set.
func withTelemetry(ctx context.Context, srv *switchyard.Server) (switchyard.Runtime, error) {
	enabled, err := config.Read(ctx, config.Default(false, config.BoolFromString(config.Env("OTEL_STDOUT"))))
	if err != nil {
		return nil, err
	}
	if !enabled {
		return srv, nil
	}

	tp, err := telemetry.StdoutTracerProvider(os.Stderr, "accounts")
	if err != nil {
		return nil, err
	}
	mp, err := telemetry.StdoutMeterProvider(os.Stderr, "accounts")
	if err != nil {
		return nil, err
	}
	return telemetry.Wrap(srv, telemetry.TracerProvider(tp), telemetry.MeterProvider(mp)), nil
}
