package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/alembic-run/alembic/internal/manifest"
	"github.com/alembic-run/alembic/internal/prompt"
)

func newInitCmd(stdout, stderr io.Writer) *cobra.Command {
	var nameFlag string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Scaffold a formula.toml in the current directory",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if cmdInit(nameFlag, os.Stdin, stdout, stderr) != 0 {
				return errExit
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&nameFlag, "name", "", "Formula name (default: ask, falling back to the directory name)")
	return cmd
}

func cmdInit(nameFlag string, stdin io.Reader, stdout, stderr io.Writer) int {
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(stderr, "alembic init: %v\n", err) //nolint:errcheck // best-effort stderr
		return 1
	}
	return doInit(cwd, nameFlag, stdin, stdout, stderr)
}

// doInit scaffolds a manifest in dir. Accepts the dir directly for
// testability.
func doInit(dir, nameFlag string, stdin io.Reader, stdout, stderr io.Writer) int {
	path := filepath.Join(dir, manifest.Filename)
	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(stderr, "alembic init: %s already exists\n", path) //nolint:errcheck // best-effort stderr
		return 1
	}

	name := nameFlag
	if name == "" {
		def := filepath.Base(dir)
		if manifest.ValidateName(def) != nil {
			def = ""
		}
		if stdin != nil {
			p := prompt.NewTerminal(stdin, stdout)
			answered, err := p.Input("Formula name", def)
			if err != nil {
				fmt.Fprintf(stderr, "alembic init: %v\n", err) //nolint:errcheck // best-effort stderr
				return 1
			}
			name = answered
		} else {
			name = def
		}
	}
	if err := manifest.ValidateName(name); err != nil {
		fmt.Fprintf(stderr, "alembic init: %v\n", err) //nolint:errcheck // best-effort stderr
		return 1
	}

	m := &manifest.Manifest{Name: name, Version: "0.1.0"}
	data, err := manifest.Encode(m)
	if err != nil {
		fmt.Fprintf(stderr, "alembic init: %v\n", err) //nolint:errcheck // best-effort stderr
		return 1
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		fmt.Fprintf(stderr, "alembic init: %v\n", err) //nolint:errcheck // best-effort stderr
		return 1
	}
	fmt.Fprintf(stdout, "Initialized formula %q at %s\n", name, path) //nolint:errcheck // best-effort stdout
	return 0
}
