// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package controller turns a directory of controller files into routes.
//
// Binding happens in two independent phases. [Discover] walks a file
// system and returns the matching files in a deterministic order, and
// [RoutePath] maps a file and one of its actions to a route path. The
// [Binder] combines both with a [Loader], which resolves the [Factory]
// exported for each file, and registers every action with a [Registrar].
package controller

import (
	"github.com/z5labs/switchyard/match"
	"github.com/z5labs/switchyard/pipeline"
	"github.com/z5labs/switchyard/router"
)

// Controller declares its routes, middleware and imports.
type Controller interface {
	Routes(*Routes)
}

// Factory is the export which marks a file as a controller. It receives
// the absolute file name of the controller file.
type Factory func(filename string) (Controller, error)

// Registrar is where a [Binder] registers routes. It is implemented by [*router.Router].
type Registrar interface {
	Register(method router.Method, m match.Matcher, h pipeline.Handler, opts ...router.RouteOption) (*router.Route, error)
}

// BodyParser builds the middleware which parses a request body for an
// action declared with [Body].
type BodyParser interface {
	Parse(spec BodySpec) (pipeline.Middleware, error)
}

// BodyParserFunc is a func variant of the [BodyParser] interface.
type BodyParserFunc func(BodySpec) (pipeline.Middleware, error)

// Parse implements the [BodyParser] interface.
func (f BodyParserFunc) Parse(spec BodySpec) (pipeline.Middleware, error) {
	return f(spec)
}

// Binding is one route registered for a controller action.
type Binding struct {
	Action string
	Method router.Method
	Path   string
	Route  *router.Route
}

// Descriptor describes a bound controller.
type Descriptor struct {
	Factory    Factory
	Controller Controller

	// Filename is the absolute file name.
	Filename string

	// Path is the slash separated file path relative to Root.
	Path string

	// Root is the absolute root directory.
	Root string

	Bindings []Binding
}

// Created is the payload of the [lifecycle.ControllerCreated] event.
type Created struct {
	Descriptor Descriptor
}

// Func adapts a func to the [Controller] interface.
type Func func(*Routes)

// Routes implements the [Controller] interface.
func (f Func) Routes(rs *Routes) {
	f(rs)
}
