// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()

	dir := t.TempDir()
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		err := os.MkdirAll(filepath.Dir(p), 0o755)
		if err != nil {
			t.Fatal(err)
		}
		err = os.WriteFile(p, []byte(content), 0o644)
		if err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func execute(args ...string) (string, error) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func fields(out string) [][]string {
	var rows [][]string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		rows = append(rows, strings.Fields(line))
	}
	return rows
}

func TestPrintRoutes(t *testing.T) {
	t.Run("will list files in binding order", func(t *testing.T) {
		fsys := fstest.MapFS{
			"index.yaml":          {Data: []byte("controller: Health\n")},
			"users/@id.yaml":      {Data: []byte("controller: User\n")},
			"users/me.yaml":       {Data: []byte("controller: Me\n")},
			"users/_private.yaml": {Data: []byte("controller: Hidden\n")},
			"docs/readme.txt":     {Data: []byte("hello")},
		}

		var out bytes.Buffer
		err := printRoutes(context.Background(), &out, fsys, []string{"**/*"})
		if !assert.Nil(t, err) {
			return
		}

		rows := fields(out.String())
		expected := [][]string{
			{"ORDER", "FILE", "ROUTE", "CONTROLLER"},
			{"1", "index.yaml", "/", "Health"},
			{"2", "docs/readme.txt", "/docs/readme", "-"},
			{"3", "users/me.yaml", "/users/me", "Me"},
			{"4", "users/@id.yaml", "/users/:id", "User"},
		}
		assert.Equal(t, expected, rows)
	})

	t.Run("will return an error", func(t *testing.T) {
		t.Run("if a manifest is not valid yaml", func(t *testing.T) {
			fsys := fstest.MapFS{
				"index.yaml": {Data: []byte("controller: [\n")},
			}

			var out bytes.Buffer
			err := printRoutes(context.Background(), &out, fsys, []string{"*.yaml"})
			if !assert.Error(t, err) {
				return
			}
			assert.Contains(t, err.Error(), "index.yaml")
		})

		t.Run("if nothing matches", func(t *testing.T) {
			var out bytes.Buffer
			err := printRoutes(context.Background(), &out, fstest.MapFS{}, []string{"*.yaml"})
			assert.Error(t, err)
		})
	})
}

func TestRoutesCommand(t *testing.T) {
	t.Run("will read root and patterns from flags", func(t *testing.T) {
		dir := writeTree(t, map[string]string{
			"index.yaml":      "controller: Health\n",
			"users/list.yaml": "controller: List\n",
			"users/notes.txt": "",
		})

		out, err := execute("routes", "--root", dir, "--pattern", "**/*.yaml")
		if !assert.Nil(t, err) {
			return
		}

		rows := fields(out)
		if !assert.Len(t, rows, 3) {
			return
		}
		assert.Equal(t, []string{"2", "users/list.yaml", "/users/list", "List"}, rows[2])
	})

	t.Run("will read root and patterns from a config file", func(t *testing.T) {
		dir := writeTree(t, map[string]string{
			"controllers/index.yaml": "controller: Health\n",
			"controllers/skip.txt":   "",
		})
		t.Setenv("ROUTES_TEST_DIR", filepath.Join(dir, "controllers"))

		cfg := filepath.Join(dir, "switchyard.yaml")
		err := os.WriteFile(cfg, []byte("root: {{env \"ROUTES_TEST_DIR\"}}\npatterns:\n  - \"*.yaml\"\n"), 0o644)
		if !assert.Nil(t, err) {
			return
		}

		out, err := execute("routes", "--config", cfg)
		if !assert.Nil(t, err) {
			return
		}

		rows := fields(out)
		expected := [][]string{
			{"ORDER", "FILE", "ROUTE", "CONTROLLER"},
			{"1", "index.yaml", "/", "Health"},
		}
		assert.Equal(t, expected, rows)
	})

	t.Run("will prefer flags over the config file", func(t *testing.T) {
		dir := writeTree(t, map[string]string{
			"a/index.yaml": "controller: A\n",
			"b/index.yaml": "controller: B\n",
		})

		cfg := filepath.Join(dir, "switchyard.yaml")
		err := os.WriteFile(cfg, []byte("root: "+filepath.Join(dir, "a")+"\n"), 0o644)
		if !assert.Nil(t, err) {
			return
		}

		out, err := execute("routes", "--config", cfg, "--root", filepath.Join(dir, "b"), "--pattern", "*.yaml")
		if !assert.Nil(t, err) {
			return
		}

		rows := fields(out)
		if !assert.Len(t, rows, 2) {
			return
		}
		assert.Equal(t, "B", rows[1][3])
	})

	t.Run("will read settings from the environment", func(t *testing.T) {
		dir := writeTree(t, map[string]string{
			"index.yaml": "controller: Health\n",
			"about.txt":  "",
		})
		t.Setenv("SWITCHYARD_ROOT", dir)
		t.Setenv("SWITCHYARD_PATTERNS", "*.txt")

		out, err := execute("routes")
		if !assert.Nil(t, err) {
			return
		}

		rows := fields(out)
		expected := [][]string{
			{"ORDER", "FILE", "ROUTE", "CONTROLLER"},
			{"1", "about.txt", "/about", "-"},
		}
		assert.Equal(t, expected, rows)
	})

	t.Run("will return an error", func(t *testing.T) {
		t.Run("if the config file does not exist", func(t *testing.T) {
			_, err := execute("routes", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
			if !assert.Error(t, err) {
				return
			}
			assert.Contains(t, err.Error(), "config file not found")
		})

		t.Run("if a pattern is invalid", func(t *testing.T) {
			_, err := execute("routes", "--root", t.TempDir(), "--pattern", "[")
			assert.Error(t, err)
		})
	})
}
