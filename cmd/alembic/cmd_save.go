package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/alembic-run/alembic/internal/events"
	"github.com/alembic-run/alembic/internal/fsys"
	"github.com/alembic-run/alembic/internal/platform"
	"github.com/alembic-run/alembic/internal/prompt"
	"github.com/alembic-run/alembic/internal/registry"
	"github.com/alembic-run/alembic/internal/sync"
	"github.com/alembic-run/alembic/internal/telemetry"
	"github.com/alembic-run/alembic/internal/version"
)

func newSaveCmd(stdout, stderr io.Writer) *cobra.Command {
	var forceFlag bool
	cmd := &cobra.Command{
		Use:   "save",
		Short: "Capture workspace edits as a new work-in-progress version",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if cmdSave(forceFlag, stdout, stderr) != 0 {
				return errExit
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&forceFlag, "force", false, "Resolve content conflicts without prompting")
	return cmd
}

func cmdSave(force bool, stdout, stderr io.Writer) int {
	workspace, err := resolveWorkspace()
	if err != nil {
		fmt.Fprintf(stderr, "alembic save: %v\n", err) //nolint:errcheck // best-effort stderr
		return 1
	}
	return doSave(workspace, force, os.Stdin, stdout, stderr)
}

// doSave reconciles workspace copies against the latest registry
// version and stores the result under a fresh WIP version.
func doSave(workspace string, force bool, stdin io.Reader, stdout, stderr io.Writer) int {
	ctx := context.Background()
	m, err := loadWorkspaceManifest(workspace)
	if err != nil {
		fmt.Fprintf(stderr, "alembic save: %v\n", err) //nolint:errcheck // best-effort stderr
		return 1
	}
	reg, root, err := openRegistry()
	if err != nil {
		fmt.Fprintf(stderr, "alembic save: %v\n", err) //nolint:errcheck // best-effort stderr
		return 1
	}
	lock, err := acquireRegistryLock(root)
	if err != nil {
		fmt.Fprintf(stderr, "alembic save: %v\n", err) //nolint:errcheck // best-effort stderr
		return 1
	}
	defer lock.Unlock() //nolint:errcheck // best-effort unlock
	recorder, closeRecorder := openRecorder(workspace, stderr)
	defer closeRecorder()

	var local *registry.Formula
	localDir := ""
	// The manifest version may itself be a WIP prerelease; strip to
	// the stable base before stamping a new one.
	base := m.Version
	if b, err := version.ExtractBase(m.Version); err == nil {
		base = b
	}
	if latest, err := reg.Latest(m.Name); err == nil {
		local, err = reg.LoadFormula(m.Name, latest)
		if err != nil {
			fmt.Fprintf(stderr, "alembic save: %v\n", err) //nolint:errcheck // best-effort stderr
			return 1
		}
		localDir = reg.VersionDir(m.Name, latest)
		if b, err := version.ExtractBase(latest); err == nil {
			base = b
		}
	}

	wip, err := version.GenerateWip(base, workspace, time.Now())
	if err != nil {
		fmt.Fprintf(stderr, "alembic save: %v\n", err) //nolint:errcheck // best-effort stderr
		return 1
	}

	platforms := platform.Detect(fsys.OSFS{}, workspace)
	if len(platforms) == 0 && local == nil {
		fmt.Fprintf(stderr, "alembic save: no platform files found in %s and no prior version to carry\n", workspace) //nolint:errcheck // best-effort stderr
		return 1
	}

	loader := &sync.Loader{FS: fsys.OSFS{}, Workspace: workspace, LocalDir: localDir, Name: m.Name}
	groups, err := loader.BuildCandidateGroups(local, platforms)
	if err != nil {
		fmt.Fprintf(stderr, "alembic save: %v\n", err) //nolint:errcheck // best-effort stderr
		return 1
	}

	var prompter prompt.Prompter = &prompt.Fake{}
	if stdin != nil {
		prompter = prompt.NewTerminal(stdin, stdout)
	}
	engine := &sync.Engine{Prompt: prompter, Force: force}
	result, err := engine.Run(groups, loader.LocalSidecars(local))
	if err != nil {
		if errors.Is(err, prompt.ErrCancelled) {
			fmt.Fprintln(stderr, "alembic save: cancelled, registry unchanged") //nolint:errcheck // best-effort stderr
			return 1
		}
		fmt.Fprintf(stderr, "alembic save: %v\n", err) //nolint:errcheck // best-effort stderr
		return 1
	}

	saved := *m
	saved.Version = wip
	if err := reg.SaveFormula(&registry.Formula{Manifest: &saved, Files: result.Files}); err != nil {
		telemetry.RecordSave(ctx, m.Name, wip, err)
		fmt.Fprintf(stderr, "alembic save: %v\n", err) //nolint:errcheck // best-effort stderr
		return 1
	}
	recorder.Record(events.Event{Type: events.FormulaSaved, Formula: m.Name, Version: wip})
	telemetry.RecordSave(ctx, m.Name, wip, nil)
	fmt.Fprintf(stdout, "saved %s@%s (%d files, %d updated, %d unchanged)\n", //nolint:errcheck // best-effort stdout
		m.Name, wip, len(result.Files), result.Updated, result.Skipped)
	return 0
}
