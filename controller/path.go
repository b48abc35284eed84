// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package controller

import (
	"path"
	"slices"
	"strings"

	"github.com/z5labs/switchyard/match"
)

// IndexName is the file and action name which adds no path segment.
const IndexName = "index"

// RoutePath derives the route path of an action declared by the
// controller at rel, a slash separated path relative to the root.
//
// The path is built from the directory part of rel, the file name
// without extension unless it is "index", then either the explicit path
// of the action or its name unless that is "index", followed by one
// parameter segment per declared param. Every [ElevationMarker] is
// rewritten to [match.ParamMarker].
func RoutePath(rel string, a Action) string {
	var segments []string

	dir := path.Dir(rel)
	if dir != "." {
		segments = append(segments, strings.Split(dir, "/")...)
	}

	base := path.Base(rel)
	base = strings.TrimSuffix(base, path.Ext(base))
	if base != IndexName {
		segments = append(segments, base)
	}

	switch {
	case a.HasPath:
		segments = append(segments, strings.Split(a.Path, "/")...)
	case a.Name != IndexName:
		segments = append(segments, a.Name)
	}

	for _, param := range a.Params {
		segments = append(segments, string(match.ParamMarker)+param)
	}

	segments = slices.DeleteFunc(segments, func(s string) bool {
		return s == ""
	})

	p := "/" + strings.Join(segments, "/")
	return strings.ReplaceAll(p, ElevationMarker, string(match.ParamMarker))
}
