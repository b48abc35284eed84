// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type settings struct {
	Addr     string        `config:"addr"`
	Timeout  time.Duration `config:"timeout"`
	Idle     time.Duration `config:"idle"`
	Patterns []string      `config:"patterns"`
	Server   struct {
		MaxHeaderBytes int `config:"max_header_bytes"`
	} `config:"server"`
}

type closer struct {
	io.Reader
	closed bool
}

func (c *closer) Close() error {
	c.closed = true
	return nil
}

func TestReadFile(t *testing.T) {
	t.Run("opens an existing file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "switchyard.yaml")
		require.NoError(t, os.WriteFile(path, []byte("addr: :8080"), 0o600))

		f, err := Read(context.Background(), ReadFile(path))
		require.NoError(t, err)
		require.NoError(t, f.Close())
	})

	t.Run("is unset for a missing file", func(t *testing.T) {
		_, err := Read(context.Background(), ReadFile(filepath.Join(t.TempDir(), "missing.yaml")))
		require.ErrorIs(t, err, ErrValueNotSet)
	})
}

func TestYaml(t *testing.T) {
	t.Run("decodes config tagged fields", func(t *testing.T) {
		src := &closer{Reader: strings.NewReader(`
addr: ":8080"
timeout: 5s
idle: 1000
patterns:
  - "**/*.yaml"
server:
  max_header_bytes: 4096
`)}

		v, err := Read(context.Background(), Yaml[settings](ReaderOf[io.Reader](src)))
		require.NoError(t, err)
		require.Equal(t, ":8080", v.Addr)
		require.Equal(t, 5*time.Second, v.Timeout)
		require.Equal(t, time.Duration(1000), v.Idle)
		require.Equal(t, []string{"**/*.yaml"}, v.Patterns)
		require.Equal(t, 4096, v.Server.MaxHeaderBytes)
		require.True(t, src.closed)
	})

	t.Run("returns an InvalidYamlError for malformed yaml", func(t *testing.T) {
		_, err := Read(context.Background(), Yaml[settings](ReaderOf[io.Reader](strings.NewReader("addr: [\n"))))

		var iye InvalidYamlError
		require.ErrorAs(t, err, &iye)
	})

	t.Run("returns a TypeCoercionError for an invalid duration", func(t *testing.T) {
		_, err := Read(context.Background(), Yaml[settings](ReaderOf[io.Reader](strings.NewReader("timeout: soon\n"))))

		require.ErrorContains(t, err, "failed to coerce value")
	})

	t.Run("is unset when the source is unset", func(t *testing.T) {
		_, err := Read(context.Background(), Yaml[settings](unset[io.Reader]()))
		require.ErrorIs(t, err, ErrValueNotSet)
	})
}

func TestTemplate(t *testing.T) {
	t.Run("renders environment variables", func(t *testing.T) {
		t.Setenv("SWITCHYARD_TEST_PORT", "9090")

		src := ReaderOf[io.Reader](strings.NewReader(`addr: ":{{ env "SWITCHYARD_TEST_PORT" }}"`))
		v, err := Read(context.Background(), Yaml[settings](Template(src)))
		require.NoError(t, err)
		require.Equal(t, ":9090", v.Addr)
	})

	t.Run("supports custom funcs and delimiters", func(t *testing.T) {
		src := ReaderOf[io.Reader](strings.NewReader(`addr: "<< addr >>"`))
		r := Template(src, TemplateDelims("<<", ">>"), TemplateFunc("addr", func() string { return ":7070" }))

		v, err := Read(context.Background(), Yaml[settings](r))
		require.NoError(t, err)
		require.Equal(t, ":7070", v.Addr)
	})

	t.Run("returns a TemplateParseError for an invalid template", func(t *testing.T) {
		_, err := Read(context.Background(), Template(ReaderOf[io.Reader](strings.NewReader("{{ hello"))))

		var tpe TemplateParseError
		require.ErrorAs(t, err, &tpe)
	})

	t.Run("returns a TemplateExecError if a func fails", func(t *testing.T) {
		src := ReaderOf[io.Reader](strings.NewReader("{{ hello }}"))
		_, err := Read(context.Background(), Template(src, TemplateFunc("hello", func() (string, error) {
			return "", errors.New("boom")
		})))

		var tee TemplateExecError
		require.ErrorAs(t, err, &tee)
	})
}
