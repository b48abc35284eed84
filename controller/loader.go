// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package controller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"

	"github.com/z5labs/switchyard/internal/try"

	"gopkg.in/yaml.v3"
)

// File is a discovered controller file.
type File struct {
	// FS is the file system the file was discovered in.
	FS fs.FS

	// Path is the slash separated path relative to Root.
	Path string

	// Root is the absolute root directory.
	Root string

	// Filename is the absolute file name.
	Filename string
}

// Module returns the module name of the file, its path without extension.
func (f File) Module() string {
	return strings.TrimSuffix(f.Path, path.Ext(f.Path))
}

// Loader resolves the export of a discovered controller file. Only
// exports which are a [Factory] are bound; anything else, including a
// nil export, is skipped.
type Loader interface {
	Load(context.Context, File) (any, error)
}

// LoaderFunc is a func variant of the [Loader] interface.
type LoaderFunc func(context.Context, File) (any, error)

// Load implements the [Loader] interface.
func (f LoaderFunc) Load(ctx context.Context, file File) (any, error) {
	return f(ctx, file)
}

// LoadError is returned when a [Loader] fails.
type LoadError struct {
	Path  string
	Cause error
}

// Error implements the [builtin.error] interface.
func (e LoadError) Error() string {
	return fmt.Sprintf("failed to load controller %s: %s", e.Path, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e LoadError) Unwrap() error {
	return e.Cause
}

// Registry is a [Loader] backed by exports registered ahead of time under
// their module name, e.g. "admin/@id/index" for "admin/@id/index.go".
type Registry map[string]any

// Load implements the [Loader] interface.
func (r Registry) Load(_ context.Context, f File) (any, error) {
	return r[f.Module()], nil
}

// UnknownTypeError is returned by [Manifests] for a manifest naming an
// unregistered controller type.
type UnknownTypeError struct {
	Type string
}

// Error implements the [builtin.error] interface.
func (e UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown controller type: %s", e.Type)
}

// Manifest is the YAML document read by [Manifests].
type Manifest struct {
	Controller string `yaml:"controller"`
}

// Manifests returns a [Loader] which reads every discovered file as a YAML
// [Manifest] and resolves its controller type from types. An empty
// manifest, or one without a controller type, is skipped.
func Manifests(types map[string]Factory) Loader {
	return LoaderFunc(func(_ context.Context, f File) (_ any, err error) {
		file, err := f.FS.Open(f.Path)
		if err != nil {
			return nil, err
		}
		defer try.Close(&err, file)

		var m Manifest
		err = yaml.NewDecoder(file).Decode(&m)
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		if m.Controller == "" {
			return nil, nil
		}

		factory, ok := types[m.Controller]
		if !ok {
			return nil, UnknownTypeError{Type: m.Controller}
		}
		return factory, nil
	})
}
