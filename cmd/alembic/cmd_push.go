package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/alembic-run/alembic/internal/events"
	"github.com/alembic-run/alembic/internal/prompt"
	"github.com/alembic-run/alembic/internal/registry"
	"github.com/alembic-run/alembic/internal/telemetry"
	"github.com/alembic-run/alembic/internal/version"
)

// newRemoteClient is the seam for the publish collaborator. The default
// records locally; tests and future transports swap it out.
var newRemoteClient = func() registry.RemoteClient {
	return &registry.RemoteFake{}
}

func newPushCmd(stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "push [version]",
		Short: "Publish a stable version of the workspace formula",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			target := ""
			if len(args) == 1 {
				target = args[0]
			}
			if cmdPush(target, stdout, stderr) != 0 {
				return errExit
			}
			return nil
		},
	}
	return cmd
}

func cmdPush(target string, stdout, stderr io.Writer) int {
	workspace, err := resolveWorkspace()
	if err != nil {
		fmt.Fprintf(stderr, "alembic push: %v\n", err) //nolint:errcheck // best-effort stderr
		return 1
	}
	return doPush(workspace, target, os.Stdin, stdout, stderr)
}

// doPush publishes target (or the latest version when target is empty).
// WIP versions never leave the machine: an explicit WIP target is
// refused, an implicit one is offered for conversion to the next free
// stable patch first.
func doPush(workspace, target string, stdin io.Reader, stdout, stderr io.Writer) int {
	ctx := context.Background()
	m, err := loadWorkspaceManifest(workspace)
	if err != nil {
		fmt.Fprintf(stderr, "alembic push: %v\n", err) //nolint:errcheck // best-effort stderr
		return 1
	}
	reg, root, err := openRegistry()
	if err != nil {
		fmt.Fprintf(stderr, "alembic push: %v\n", err) //nolint:errcheck // best-effort stderr
		return 1
	}
	lock, err := acquireRegistryLock(root)
	if err != nil {
		fmt.Fprintf(stderr, "alembic push: %v\n", err) //nolint:errcheck // best-effort stderr
		return 1
	}
	defer lock.Unlock() //nolint:errcheck // best-effort unlock
	recorder, closeRecorder := openRecorder(workspace, stderr)
	defer closeRecorder()

	explicit := target != ""
	if !explicit {
		target, err = reg.Latest(m.Name)
		if err != nil {
			fmt.Fprintf(stderr, "alembic push: %v\n", err) //nolint:errcheck // best-effort stderr
			return 1
		}
	}

	if version.IsLocal(target) {
		if explicit {
			fmt.Fprintf(stderr, "alembic push: %s is a work-in-progress version and cannot be published; run push without a version to convert it\n", target) //nolint:errcheck // best-effort stderr
			return 1
		}
		target, err = convertWip(reg, m.Name, target, stdin, stdout)
		if err != nil {
			fmt.Fprintf(stderr, "alembic push: %v\n", err) //nolint:errcheck // best-effort stderr
			return 1
		}
		if target == "" {
			fmt.Fprintln(stdout, "push cancelled") //nolint:errcheck // best-effort stdout
			return 1
		}
	}

	f, err := reg.LoadFormula(m.Name, target)
	if err != nil {
		fmt.Fprintf(stderr, "alembic push: %v\n", err) //nolint:errcheck // best-effort stderr
		return 1
	}
	if err := newRemoteClient().Publish(f); err != nil {
		telemetry.RecordPush(ctx, m.Name, target, err)
		fmt.Fprintf(stderr, "alembic push: %v\n", err) //nolint:errcheck // best-effort stderr
		return 1
	}
	recorder.Record(events.Event{Type: events.FormulaPushed, Formula: m.Name, Version: target})
	telemetry.RecordPush(ctx, m.Name, target, nil)
	fmt.Fprintf(stdout, "pushed %s@%s\n", m.Name, target) //nolint:errcheck // best-effort stdout
	return 0
}

// convertWip offers to republish a WIP version under the next free
// stable patch. Returns the stable version saved, or "" when the user
// declines.
func convertWip(reg *registry.Registry, name, wip string, stdin io.Reader, stdout io.Writer) (string, error) {
	taken, err := reg.ListVersions(name)
	if err != nil {
		return "", err
	}
	stable, err := version.NextStable(wip, taken)
	if err != nil {
		return "", err
	}
	if stdin == nil {
		return "", fmt.Errorf("latest version %s is work-in-progress; no terminal to confirm conversion to %s", wip, stable)
	}
	p := prompt.NewTerminal(stdin, stdout)
	ok, err := p.Confirm(fmt.Sprintf("Latest version %s is work-in-progress. Publish as %s?", wip, stable))
	if err != nil || !ok {
		return "", err
	}
	f, err := reg.LoadFormula(name, wip)
	if err != nil {
		return "", err
	}
	saved := *f.Manifest
	saved.Version = stable
	if err := reg.SaveFormula(&registry.Formula{Manifest: &saved, Files: f.Files}); err != nil {
		return "", err
	}
	return stable, nil
}
