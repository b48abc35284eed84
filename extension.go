// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package switchyard

import (
	"context"
	"fmt"

	"github.com/z5labs/switchyard/controller"
)

// Extension builds an add-on capability on top of a [Server], typically
// by registering routes or subscribing to its [Server.Bus].
type Extension interface {
	Extend(context.Context, *Server) error
}

// ExtensionFunc is a func variant of the [Extension] interface.
type ExtensionFunc func(context.Context, *Server) error

// Extend implements the [Extension] interface.
func (f ExtensionFunc) Extend(ctx context.Context, s *Server) error {
	return f(ctx, s)
}

// ExtensionError is returned by [Server.Extend] for a failing [Extension].
type ExtensionError struct {
	Index int
	Cause error
}

// Error implements the [builtin.error] interface.
func (e ExtensionError) Error() string {
	return fmt.Sprintf("extension %d failed: %s", e.Index, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e ExtensionError) Unwrap() error {
	return e.Cause
}

// Extend applies exts in order and stops at the first failure.
func (s *Server) Extend(ctx context.Context, exts ...Extension) error {
	for i, ext := range exts {
		err := ext.Extend(ctx, s)
		if err != nil {
			return ExtensionError{Index: i, Cause: err}
		}
	}
	return nil
}

// Controllers binds every controller file below root matching patterns.
// The binder emits [lifecycle.ControllerCreated] on the [Server.Bus] and
// logs to the handler given with [LogHandler]; opts may override both.
func Controllers(loader controller.Loader, root string, patterns []string, values controller.Values, opts ...controller.BinderOption) Extension {
	return ExtensionFunc(func(ctx context.Context, s *Server) error {
		binderOpts := []controller.BinderOption{
			controller.Bus(s.bus),
			controller.LogHandler(s.logHandler),
		}
		binderOpts = append(binderOpts, opts...)

		descs, err := controller.NewBinder(s.Router, loader, binderOpts...).Bind(ctx, root, patterns, values)
		if err != nil {
			return err
		}
		s.descriptors = append(s.descriptors, descs...)
		return nil
	})
}

// Controllers returns the descriptors of every controller bound with
// the [Controllers] extension, in binding order.
func (s *Server) Controllers() []controller.Descriptor {
	return s.descriptors
}
