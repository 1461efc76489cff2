package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/alembic-run/alembic/internal/events"
	"github.com/alembic-run/alembic/internal/fsys"
	"github.com/alembic-run/alembic/internal/manifest"
	"github.com/alembic-run/alembic/internal/platform"
	"github.com/alembic-run/alembic/internal/prompt"
	"github.com/alembic-run/alembic/internal/registry"
	"github.com/alembic-run/alembic/internal/resolve"
	"github.com/alembic-run/alembic/internal/sync"
	"github.com/alembic-run/alembic/internal/telemetry"
)

func newInstallCmd(stdout, stderr io.Writer) *cobra.Command {
	var forceFlag bool
	var devFlag bool
	cmd := &cobra.Command{
		Use:   "install [formula[@version]]",
		Short: "Resolve dependencies and write formula files into the workspace",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			target := ""
			if len(args) == 1 {
				target = args[0]
			}
			if cmdInstall(target, forceFlag, devFlag, stdout, stderr) != 0 {
				return errExit
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&forceFlag, "force", false, "Resolve version conflicts by picking the highest available version")
	cmd.Flags().BoolVar(&devFlag, "dev", false, "Also install dev dependencies")
	return cmd
}

func cmdInstall(target string, force, dev bool, stdout, stderr io.Writer) int {
	workspace, err := resolveWorkspace()
	if err != nil {
		fmt.Fprintf(stderr, "alembic install: %v\n", err) //nolint:errcheck // best-effort stderr
		return 1
	}
	return doInstall(workspace, target, force, dev, os.Stdin, stdout, stderr)
}

// doInstall resolves and projects the dependency tree. Accepts the
// workspace directly for testability.
func doInstall(workspace, target string, force, dev bool, stdin io.Reader, stdout, stderr io.Writer) int {
	ctx := context.Background()
	m, err := loadWorkspaceManifest(workspace)
	if err != nil {
		fmt.Fprintf(stderr, "alembic install: %v\n", err) //nolint:errcheck // best-effort stderr
		return 1
	}
	reg, root, err := openRegistry()
	if err != nil {
		fmt.Fprintf(stderr, "alembic install: %v\n", err) //nolint:errcheck // best-effort stderr
		return 1
	}
	lock, err := acquireRegistryLock(root)
	if err != nil {
		fmt.Fprintf(stderr, "alembic install: %v\n", err) //nolint:errcheck // best-effort stderr
		return 1
	}
	defer lock.Unlock() //nolint:errcheck // best-effort unlock
	recorder, closeRecorder := openRecorder(workspace, stderr)
	defer closeRecorder()

	if target != "" {
		name, rng := splitTarget(target)
		if err := manifest.ValidateName(name); err != nil {
			fmt.Fprintf(stderr, "alembic install: %v\n", err) //nolint:errcheck // best-effort stderr
			return 1
		}
		if rng == "" {
			rng = defaultRange(reg, name)
		}
		upsertDependency(m, name, rng, dev)
		if err := writeWorkspaceManifest(workspace, m); err != nil {
			fmt.Fprintf(stderr, "alembic install: %v\n", err) //nolint:errcheck // best-effort stderr
			return 1
		}
	}

	resolver := &resolve.Resolver{Registry: reg}
	choose := conflictChooser(force, stdin, stdout, recorder)
	pin := func(name, ver string) error {
		m.SetOverride(name, ver)
		recorder.Record(events.Event{Type: events.VersionPinned, Formula: name, Version: ver})
		return writeWorkspaceManifest(workspace, m)
	}

	start := time.Now()
	res, err := resolver.ResolveProjectWithRetry(m, dev, choose, pin)
	telemetry.RecordResolveDuration(ctx, m.Name, float64(time.Since(start).Milliseconds()), err)
	if err != nil {
		telemetry.RecordInstall(ctx, m.Name, "", err)
		fmt.Fprintf(stderr, "alembic install: %v\n", err) //nolint:errcheck // best-effort stderr
		return 1
	}

	for _, miss := range res.Missing {
		fmt.Fprintf(stderr, "alembic install: formula %q not found in registry (wanted %s, required by %s) — save or fetch it first\n", //nolint:errcheck // best-effort stderr
			miss.Name, miss.Constraint, miss.RequiredBy)
	}

	platforms := platform.Detect(fsys.OSFS{}, workspace)
	if len(platforms) == 0 {
		fmt.Fprintln(stdout, "No platform directories detected; resolved without writing files.") //nolint:errcheck // best-effort stdout
	}
	writer := &sync.Writer{FS: fsys.OSFS{}, Workspace: workspace, Stderr: stderr}
	total := sync.WriteCounts{}
	for _, rf := range res.Formulas {
		f, err := reg.LoadFormula(rf.Name, rf.Version)
		if err != nil {
			fmt.Fprintf(stderr, "alembic install: loading %s@%s: %v\n", rf.Name, rf.Version, err) //nolint:errcheck // best-effort stderr
			return 1
		}
		counts := writer.WriteFormula(f, platforms)
		total.Written += counts.Written
		total.Skipped += counts.Skipped
		recorder.Record(events.Event{Type: events.FormulaInstalled, Formula: rf.Name, Version: rf.Version})
		telemetry.RecordInstall(ctx, rf.Name, rf.Version, nil)
		fmt.Fprintf(stdout, "installed %s@%s\n", rf.Name, rf.Version) //nolint:errcheck // best-effort stdout
	}
	fmt.Fprintf(stdout, "%d formulas resolved, %d files written, %d skipped\n", //nolint:errcheck // best-effort stdout
		len(res.Formulas), total.Written, total.Skipped)
	if len(res.Missing) > 0 {
		return 1
	}
	return 0
}

// conflictChooser builds the pin-and-retry chooser: --force picks the
// highest available version, otherwise the user picks interactively.
func conflictChooser(force bool, stdin io.Reader, stdout io.Writer, recorder events.Recorder) func(*resolve.VersionConflict) (string, error) {
	return func(c *resolve.VersionConflict) (string, error) {
		telemetry.RecordVersionConflict(context.Background(), c.Name, c.Requested)
		recorder.Record(events.Event{
			Type:    events.ConflictResolved,
			Formula: c.Name,
			Message: fmt.Sprintf("requested %s", strings.Join(c.Requested, ", ")),
		})
		if force {
			return c.Available[len(c.Available)-1], nil
		}
		if stdin == nil {
			return "", fmt.Errorf("version conflict for %q and no terminal to resolve it (re-run with --force)", c.Name)
		}
		p := prompt.NewTerminal(stdin, stdout)
		question := fmt.Sprintf("Conflicting requirements for %q (%s). Pin which version?",
			c.Name, strings.Join(c.Requested, " vs "))
		idx, err := p.Select(question, c.Available)
		if err != nil {
			return "", err
		}
		return c.Available[idx], nil
	}
}

// splitTarget parses "name[@version]" install arguments. Scoped names
// keep their leading @.
func splitTarget(target string) (name, rng string) {
	at := strings.LastIndex(target, "@")
	if at <= 0 { // -1 no version, 0 scoped name without version
		return target, ""
	}
	return target[:at], target[at+1:]
}

// defaultRange derives the range recorded for a bare "install name":
// caret on the latest stable, or latest itself when nothing is stable.
func defaultRange(reg *registry.Registry, name string) string {
	latest, err := reg.Latest(name)
	if err != nil {
		return "*"
	}
	return "^" + latest
}

// upsertDependency adds or updates a dependency record in place.
func upsertDependency(m *manifest.Manifest, name, rng string, dev bool) {
	list := &m.Dependencies
	if dev {
		list = &m.DevDependencies
	}
	for i := range *list {
		if (*list)[i].Name == name {
			(*list)[i].Range = rng
			return
		}
	}
	*list = append(*list, manifest.Dependency{Name: name, Range: rng})
}
