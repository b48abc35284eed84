// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"text/tabwriter"

	"github.com/z5labs/switchyard/config"
	"github.com/z5labs/switchyard/controller"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type routesConfig struct {
	Root     string   `config:"root"`
	Patterns []string `config:"patterns"`
}

func newRoutesCmd() *cobra.Command {
	var (
		root       string
		patterns   []string
		configPath string
	)

	cmd := &cobra.Command{
		Use:   "routes",
		Short: "Print controller files in binding order with their base route",
		Long: `Print every controller file in the order it is bound, together with
the route path of its index action and, for YAML manifests, the
controller type it names.

Settings are taken from flags, then the --config file, then the
SWITCHYARD_ROOT and SWITCHYARD_PATTERNS environment variables.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var fc routesConfig
			if configPath != "" {
				var err error
				fc, err = config.Read(ctx, config.Yaml[routesConfig](config.Template(config.ReadFile(configPath))))
				if errors.Is(err, config.ErrValueNotSet) {
					return fmt.Errorf("config file not found: %s", configPath)
				}
				if err != nil {
					return err
				}
			}

			dir, err := config.Read(ctx, config.Default(".", config.Or(
				flag(cmd, "root", root),
				nonEmpty(fc.Root),
				config.Env("SWITCHYARD_ROOT"),
			)))
			if err != nil {
				return err
			}

			pats, err := config.Read(ctx, config.Default([]string{"**/*"}, config.Or(
				flag(cmd, "pattern", patterns),
				nonEmpty(fc.Patterns),
				config.StringsFromString(config.Env("SWITCHYARD_PATTERNS")),
			)))
			if err != nil {
				return err
			}

			return printRoutes(ctx, cmd.OutOrStdout(), os.DirFS(dir), pats)
		},
	}

	cmd.Flags().StringVar(&root, "root", ".", "controller root directory")
	cmd.Flags().StringSliceVar(&patterns, "pattern", nil, "glob pattern selecting controller files, may be repeated")
	cmd.Flags().StringVar(&configPath, "config", "", "YAML file providing root and patterns")
	return cmd
}

func flag[T any](cmd *cobra.Command, name string, v T) config.Reader[T] {
	return config.ReaderFunc[T](func(ctx context.Context) (config.Value[T], error) {
		if !cmd.Flags().Changed(name) {
			return config.Value[T]{}, nil
		}
		return config.ValueOf(v), nil
	})
}

func nonEmpty[T string | []string](v T) config.Reader[T] {
	return config.ReaderFunc[T](func(ctx context.Context) (config.Value[T], error) {
		if len(v) == 0 {
			return config.Value[T]{}, nil
		}
		return config.ValueOf(v), nil
	})
}

func printRoutes(ctx context.Context, w io.Writer, fsys fs.FS, patterns []string) error {
	files, err := controller.Discover(fsys, patterns)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ORDER\tFILE\tROUTE\tCONTROLLER")
	for i, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}

		route := controller.RoutePath(f, controller.Action{Name: controller.IndexName})
		typ, err := manifestType(fsys, f)
		if err != nil {
			return fmt.Errorf("%s: %w", f, err)
		}
		if typ == "" {
			typ = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i+1, f, route, typ)
	}
	return tw.Flush()
}

func manifestType(fsys fs.FS, name string) (string, error) {
	switch path.Ext(name) {
	case ".yaml", ".yml":
	default:
		return "", nil
	}

	b, err := fs.ReadFile(fsys, name)
	if err != nil {
		return "", err
	}

	var m controller.Manifest
	err = yaml.Unmarshal(b, &m)
	if err != nil {
		return "", err
	}
	return m.Controller, nil
}
