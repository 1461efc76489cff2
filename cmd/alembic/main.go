// alembic is a package manager for reusable formula bundles —
// collections of instruction and rule files shared across AI-assistant
// platforms.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/alembic-run/alembic/internal/events"
	"github.com/alembic-run/alembic/internal/fsys"
	"github.com/alembic-run/alembic/internal/manifest"
	"github.com/alembic-run/alembic/internal/registry"
	"github.com/alembic-run/alembic/internal/telemetry"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// errExit is a sentinel error returned by cobra RunE functions to signal
// non-zero exit. The command has already written its own error to stderr.
var errExit = errors.New("exit")

// registryFlag holds the value of the --registry persistent flag.
// Empty means "consult ALEMBIC_REGISTRY, then ~/.alembic/registry."
var registryFlag string

// workspaceFlag holds the value of the --workspace persistent flag.
// Empty means "walk up from cwd looking for formula.toml."
var workspaceFlag string

// run executes the alembic CLI with the given args, writing output to
// stdout and errors to stderr. Returns the exit code.
func run(args []string, stdout, stderr io.Writer) int {
	ctx := context.Background()
	shutdown, err := telemetry.Init(ctx, buildVersion)
	if err != nil {
		fmt.Fprintf(stderr, "alembic: telemetry disabled: %v\n", err) //nolint:errcheck // best-effort stderr
	} else if shutdown != nil {
		defer shutdown(ctx) //nolint:errcheck // best-effort flush
	}

	root := newRootCmd(stdout, stderr)
	if args == nil {
		args = []string{}
	}
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.Execute(); err != nil {
		return 1
	}
	return 0
}

// newRootCmd creates the root cobra command with all subcommands.
func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "alembic",
		Short:         "alembic — package manager for AI-assistant formula bundles",
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			fmt.Fprintf(stderr, "alembic: unknown command %q\n", args[0]) //nolint:errcheck // best-effort stderr
			return errExit
		},
	}
	root.PersistentFlags().StringVar(&registryFlag, "registry", "",
		"path to the local registry (default: $ALEMBIC_REGISTRY or ~/.alembic/registry)")
	root.PersistentFlags().StringVar(&workspaceFlag, "workspace", "",
		"path to the workspace (default: walk up from cwd)")
	root.CompletionOptions.DisableDefaultCmd = true
	root.AddCommand(
		newInitCmd(stdout, stderr),
		newInstallCmd(stdout, stderr),
		newSaveCmd(stdout, stderr),
		newPushCmd(stdout, stderr),
		newSyncCmd(stdout, stderr),
		newListCmd(stdout, stderr),
		newDeleteCmd(stdout, stderr),
		newVersionCmd(stdout),
	)
	return root
}

// registryRoot resolves the registry directory from the --registry
// flag, ALEMBIC_REGISTRY, or the home default, creating it as needed.
func registryRoot() (string, error) {
	dir := registryFlag
	if dir == "" {
		dir = os.Getenv("ALEMBIC_REGISTRY")
	}
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("locating home directory: %w", err)
		}
		dir = filepath.Join(home, ".alembic", "registry")
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating registry directory: %w", err)
	}
	return dir, nil
}

// openRegistry opens the local registry over the real filesystem.
func openRegistry() (*registry.Registry, string, error) {
	root, err := registryRoot()
	if err != nil {
		return nil, "", err
	}
	return registry.New(fsys.OSFS{}, root), root, nil
}

// findWorkspace walks dir upward looking for a directory containing
// formula.toml. Returns the workspace root path or an error.
func findWorkspace(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		if fi, err := os.Stat(filepath.Join(dir, manifest.Filename)); err == nil && !fi.IsDir() {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("not in a formula workspace (no %s found)", manifest.Filename)
		}
		dir = parent
	}
}

// resolveWorkspace returns the workspace root. If --workspace was
// provided, it verifies formula.toml exists there. Otherwise falls back
// to os.Getwd() → findWorkspace().
func resolveWorkspace() (string, error) {
	if workspaceFlag != "" {
		p, err := filepath.Abs(workspaceFlag)
		if err != nil {
			return "", err
		}
		if fi, err := os.Stat(filepath.Join(p, manifest.Filename)); err != nil || fi.IsDir() {
			return "", fmt.Errorf("not a formula workspace: %s (no %s found)", p, manifest.Filename)
		}
		return p, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return findWorkspace(cwd)
}

// loadWorkspaceManifest reads and validates the workspace declaration.
func loadWorkspaceManifest(workspace string) (*manifest.Manifest, error) {
	data, err := os.ReadFile(filepath.Join(workspace, manifest.Filename))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", manifest.Filename, err)
	}
	m, err := manifest.Parse(data)
	if err != nil {
		return nil, err
	}
	if err := manifest.Validate(m); err != nil {
		return nil, err
	}
	return m, nil
}

// writeWorkspaceManifest persists an updated workspace declaration.
func writeWorkspaceManifest(workspace string, m *manifest.Manifest) error {
	data, err := manifest.Encode(m)
	if err != nil {
		return err
	}
	path := filepath.Join(workspace, manifest.Filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", manifest.Filename, err)
	}
	return nil
}

// acquireRegistryLock takes an exclusive lock on <root>/.lock so two
// CLI processes don't mutate the registry concurrently. Returns the
// held lock (caller must defer Unlock) or an error.
func acquireRegistryLock(root string) (*flock.Flock, error) {
	fl := flock.New(filepath.Join(root, ".lock"))
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("locking registry: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("registry is locked by another alembic process")
	}
	return fl, nil
}

// openRecorder opens the workspace event log, falling back to Discard
// when it cannot be created. Events are best-effort.
func openRecorder(workspace string, stderr io.Writer) (events.Recorder, func()) {
	path := filepath.Join(workspace, ".alembic", "events.jsonl")
	r, err := events.NewFileRecorder(path, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "alembic: event log unavailable: %v\n", err) //nolint:errcheck // best-effort stderr
		return events.Discard, func() {}
	}
	return r, func() { _ = r.Close() }
}
