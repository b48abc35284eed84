// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package controller

import (
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

const (
	// ExcludeMarker prefixes files and directories skipped by [Discover].
	ExcludeMarker = "_"

	// ElevationMarker prefixes files and directories which are sorted
	// after their siblings. It is rewritten to a parameter marker when
	// a route path is derived.
	ElevationMarker = "@"
)

var (
	ErrNoControllers = errors.New("no controller files matched")
	ErrNoPatterns    = errors.New("at least one glob pattern is required")
)

// DiscoveryError is returned when a controller tree can not be discovered.
type DiscoveryError struct {
	Patterns []string
	Cause    error
}

// Error implements the [builtin.error] interface.
func (e DiscoveryError) Error() string {
	return fmt.Sprintf("failed to discover controllers matching %v: %s", e.Patterns, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e DiscoveryError) Unwrap() error {
	return e.Cause
}

// Discover walks fsys and returns the slash separated paths of every file
// matching at least one doublestar glob pattern, ordered by [Sort]. Files
// and directories whose name starts with [ExcludeMarker] are skipped.
func Discover(fsys fs.FS, patterns []string) ([]string, error) {
	if len(patterns) == 0 {
		return nil, DiscoveryError{Cause: ErrNoPatterns}
	}
	for _, pattern := range patterns {
		if !doublestar.ValidatePattern(pattern) {
			return nil, DiscoveryError{
				Patterns: patterns,
				Cause:    fmt.Errorf("%w: %s", doublestar.ErrBadPattern, pattern),
			}
		}
	}

	var files []string
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p != "." && strings.HasPrefix(d.Name(), ExcludeMarker) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if matchAny(patterns, p) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, DiscoveryError{Patterns: patterns, Cause: err}
	}
	if len(files) == 0 {
		return nil, DiscoveryError{Patterns: patterns, Cause: ErrNoControllers}
	}

	Sort(files)
	return files, nil
}

func matchAny(patterns []string, p string) bool {
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, p); ok {
			return true
		}
	}
	return false
}

// Sort orders slash separated file paths so literal paths are registered
// ahead of parameterized ones. Paths are ordered by
//
//  1. ascending segment count
//  2. directories starting with [ElevationMarker] last
//  3. other directories case insensitively
//  4. files starting with [ElevationMarker] last
//  5. other files case insensitively
//
// Paths equal under these rules fall back to byte order, so the result
// never depends on the input order.
func Sort(files []string) {
	slices.SortFunc(files, compareFiles)
}

func compareFiles(a, b string) int {
	as := strings.Split(a, "/")
	bs := strings.Split(b, "/")
	if n := len(as) - len(bs); n != 0 {
		return n
	}

	last := len(as) - 1
	for i := range last {
		if c := compareSegments(as[i], bs[i]); c != 0 {
			return c
		}
	}
	if c := compareSegments(as[last], bs[last]); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}

func compareSegments(a, b string) int {
	ae := strings.HasPrefix(a, ElevationMarker)
	be := strings.HasPrefix(b, ElevationMarker)
	switch {
	case ae && !be:
		return 1
	case !ae && be:
		return -1
	}
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}
