// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package controller

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/z5labs/switchyard/internal/otelslog"
	"github.com/z5labs/switchyard/internal/slogfield"
	"github.com/z5labs/switchyard/internal/try"
	"github.com/z5labs/switchyard/lifecycle"
	"github.com/z5labs/switchyard/match"
	"github.com/z5labs/switchyard/pipeline"
	"github.com/z5labs/switchyard/router"
)

var (
	ErrNilController = errors.New("factory returned a nil controller")
	ErrNoBodyParser  = errors.New("action declares a body but no body parser is configured")
)

// BindError is returned when a discovered controller can not be bound.
type BindError struct {
	Path  string
	Cause error
}

// Error implements the [builtin.error] interface.
func (e BindError) Error() string {
	return fmt.Sprintf("failed to bind controller %s: %s", e.Path, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e BindError) Unwrap() error {
	return e.Cause
}

// BinderOption configures a [Binder].
type BinderOption func(*Binder)

// Bus sets the [lifecycle.Bus] the binder emits [lifecycle.ControllerCreated] on.
func Bus(bus *lifecycle.Bus) BinderOption {
	return func(b *Binder) {
		b.bus = bus
	}
}

// FS overrides the file system discovery walks. By default the root
// directory given to [Binder.Bind] is used.
func FS(fsys fs.FS) BinderOption {
	return func(b *Binder) {
		b.fsys = fsys
	}
}

// LogHandler sets the [slog.Handler] the binder logs to.
func LogHandler(h slog.Handler) BinderOption {
	return func(b *Binder) {
		b.log = otelslog.New(h)
	}
}

// Parser sets the [BodyParser] for actions declared with [Body].
func Parser(p BodyParser) BinderOption {
	return func(b *Binder) {
		b.parser = p
	}
}

// Binder discovers, loads and registers controllers.
type Binder struct {
	reg    Registrar
	loader Loader
	bus    *lifecycle.Bus
	fsys   fs.FS
	log    *slog.Logger
	parser BodyParser
}

// NewBinder initializes a [Binder] registering routes with reg and
// resolving controller files with loader.
func NewBinder(reg Registrar, loader Loader, opts ...BinderOption) *Binder {
	b := &Binder{
		reg:    reg,
		loader: loader,
		log:    otelslog.New(nil),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Bind discovers every file below root matching patterns and binds the
// controllers they export, in [Sort] order. It stops at the first failure.
func (b *Binder) Bind(ctx context.Context, root string, patterns []string, values Values) ([]Descriptor, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	fsys := b.fsys
	if fsys == nil {
		fsys = os.DirFS(root)
	}

	files, err := Discover(fsys, patterns)
	if err != nil {
		return nil, err
	}
	b.log.DebugContext(ctx, "discovered controller files", slogfield.Strings("controller.files", files))

	var descs []Descriptor
	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		f := File{
			FS:       fsys,
			Path:     rel,
			Root:     root,
			Filename: filepath.Join(root, filepath.FromSlash(rel)),
		}
		desc, ok, err := b.bindFile(ctx, f, values)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		descs = append(descs, desc)
	}
	return descs, nil
}

func (b *Binder) bindFile(ctx context.Context, f File, values Values) (Descriptor, bool, error) {
	var export any
	err := try.Do(func() (err error) {
		export, err = b.loader.Load(ctx, f)
		return err
	})
	if err != nil {
		return Descriptor{}, false, LoadError{Path: f.Path, Cause: err}
	}

	factory, ok := asFactory(export)
	if !ok {
		b.log.DebugContext(ctx, "skipping file without controller export", slogfield.File(f.Path))
		return Descriptor{}, false, nil
	}

	ctrl, rs, err := instantiate(factory, f.Filename)
	if err != nil {
		return Descriptor{}, false, BindError{Path: f.Path, Cause: err}
	}

	err = resolveImports(rs.imports, values)
	if err != nil {
		return Descriptor{}, false, BindError{Path: f.Path, Cause: err}
	}

	desc := Descriptor{
		Factory:    factory,
		Controller: ctrl,
		Filename:   f.Filename,
		Path:       f.Path,
		Root:       f.Root,
	}
	for _, a := range rs.actions {
		bindings, err := b.register(rs.middleware, f.Path, a)
		if err != nil {
			return Descriptor{}, false, BindError{Path: f.Path, Cause: err}
		}
		desc.Bindings = append(desc.Bindings, bindings...)
	}
	b.log.InfoContext(ctx, "bound controller", slogfield.File(f.Path), slogfield.Int("controller.routes", len(desc.Bindings)))

	if b.bus != nil {
		err = b.bus.Emit(ctx, lifecycle.ControllerCreated, Created{Descriptor: desc})
		if err != nil {
			return Descriptor{}, false, BindError{Path: f.Path, Cause: err}
		}
	}
	return desc, true, nil
}

func asFactory(export any) (Factory, bool) {
	switch f := export.(type) {
	case Factory:
		return f, f != nil
	case func(string) (Controller, error):
		return f, f != nil
	default:
		return nil, false
	}
}

func instantiate(factory Factory, filename string) (ctrl Controller, rs *Routes, err error) {
	rs = newRoutes()
	err = try.Do(func() (err error) {
		ctrl, err = factory(filename)
		if err != nil {
			return err
		}
		if ctrl == nil {
			return ErrNilController
		}
		ctrl.Routes(rs)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	err = rs.Err()
	if err != nil {
		return nil, nil, err
	}
	return ctrl, rs, nil
}

func (b *Binder) register(classMiddleware []pipeline.Middleware, rel string, a *Action) ([]Binding, error) {
	mw := slices.Clone(classMiddleware)
	if a.Body != nil {
		if b.parser == nil {
			return nil, ActionError{Action: a.Name, Cause: ErrNoBodyParser}
		}
		parse, err := b.parser.Parse(*a.Body)
		if err != nil {
			return nil, ActionError{Action: a.Name, Cause: err}
		}
		mw = append(mw, parse)
	}
	mw = append(mw, a.Middleware...)

	p := RoutePath(rel, *a)
	m, err := match.Path(p)
	if err != nil {
		return nil, ActionError{Action: a.Name, Cause: err}
	}

	opts := []router.RouteOption{router.WithMiddleware(mw...)}
	if a.ManualEnd {
		opts = append(opts, router.ManualEnd())
	}

	bindings := make([]Binding, 0, len(a.Handlers))
	for _, mh := range a.Handlers {
		route, err := b.reg.Register(mh.Method, m, mh.Handler, opts...)
		if err != nil {
			return nil, ActionError{Action: a.Name, Cause: err}
		}
		bindings = append(bindings, Binding{
			Action: a.Name,
			Method: mh.Method,
			Path:   p,
			Route:  route,
		})
	}
	return bindings, nil
}
