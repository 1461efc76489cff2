package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alembic-run/alembic/internal/events"
	"github.com/alembic-run/alembic/internal/fsys"
	"github.com/alembic-run/alembic/internal/platform"
	"github.com/alembic-run/alembic/internal/resolve"
	"github.com/alembic-run/alembic/internal/sync"
	"github.com/alembic-run/alembic/internal/watch"
)

func newSyncCmd(stdout, stderr io.Writer) *cobra.Command {
	var watchFlag bool
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Re-project resolved formulas into platform files",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if cmdSync(watchFlag, stdout, stderr) != 0 {
				return errExit
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&watchFlag, "watch", false, "Keep running and re-sync when platform files change")
	return cmd
}

func cmdSync(watchMode bool, stdout, stderr io.Writer) int {
	workspace, err := resolveWorkspace()
	if err != nil {
		fmt.Fprintf(stderr, "alembic sync: %v\n", err) //nolint:errcheck // best-effort stderr
		return 1
	}
	return doSync(workspace, watchMode, stdout, stderr)
}

// doSync projects the resolved dependency set into the workspace. It
// never writes to the registry, so no lock is taken. Watch mode repeats
// the pass on debounced platform-file changes until interrupted.
func doSync(workspace string, watchMode bool, stdout, stderr io.Writer) int {
	if code := syncOnce(workspace, stdout, stderr); code != 0 || !watchMode {
		return code
	}

	platforms := platform.Detect(fsys.OSFS{}, workspace)
	w, err := watch.New(workspace, platforms)
	if err != nil {
		fmt.Fprintf(stderr, "alembic sync: %v\n", err) //nolint:errcheck // best-effort stderr
		return 1
	}
	if err := w.Start(); err != nil {
		fmt.Fprintf(stderr, "alembic sync: %v\n", err) //nolint:errcheck // best-effort stderr
		return 1
	}
	fmt.Fprintln(stdout, "watching for changes (ctrl-c to stop)") //nolint:errcheck // best-effort stdout

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)

	for {
		select {
		case batch, ok := <-w.Changes:
			if !ok {
				return 0
			}
			fmt.Fprintf(stdout, "%d files changed, re-syncing\n", len(batch)) //nolint:errcheck // best-effort stdout
			if code := syncOnce(workspace, stdout, stderr); code != 0 {
				w.Stop()
				return code
			}
		case <-sigs:
			w.Stop()
			return 0
		}
	}
}

func syncOnce(workspace string, stdout, stderr io.Writer) int {
	m, err := loadWorkspaceManifest(workspace)
	if err != nil {
		fmt.Fprintf(stderr, "alembic sync: %v\n", err) //nolint:errcheck // best-effort stderr
		return 1
	}
	reg, _, err := openRegistry()
	if err != nil {
		fmt.Fprintf(stderr, "alembic sync: %v\n", err) //nolint:errcheck // best-effort stderr
		return 1
	}
	recorder, closeRecorder := openRecorder(workspace, stderr)
	defer closeRecorder()

	resolver := &resolve.Resolver{Registry: reg}
	res, err := resolver.ResolveProject(m, false)
	if err != nil {
		fmt.Fprintf(stderr, "alembic sync: %v\n", err) //nolint:errcheck // best-effort stderr
		return 1
	}
	for _, miss := range res.Missing {
		fmt.Fprintf(stderr, "alembic sync: formula %q not found in registry (wanted %s, required by %s) — install it first\n", //nolint:errcheck // best-effort stderr
			miss.Name, miss.Constraint, miss.RequiredBy)
	}

	platforms := platform.Detect(fsys.OSFS{}, workspace)
	writer := &sync.Writer{FS: fsys.OSFS{}, Workspace: workspace, Stderr: stderr}
	total := sync.WriteCounts{}
	for _, rf := range res.Formulas {
		f, err := reg.LoadFormula(rf.Name, rf.Version)
		if err != nil {
			fmt.Fprintf(stderr, "alembic sync: loading %s@%s: %v\n", rf.Name, rf.Version, err) //nolint:errcheck // best-effort stderr
			return 1
		}
		counts := writer.WriteFormula(f, platforms)
		total.Written += counts.Written
		total.Skipped += counts.Skipped
	}
	recorder.Record(events.Event{
		Type:    events.SyncCompleted,
		Formula: m.Name,
		Message: fmt.Sprintf("%d written, %d skipped", total.Written, total.Skipped),
	})
	fmt.Fprintf(stdout, "synced %d formulas: %d files written, %d skipped\n", //nolint:errcheck // best-effort stdout
		len(res.Formulas), total.Written, total.Skipped)
	if len(res.Missing) > 0 {
		return 1
	}
	return 0
}
