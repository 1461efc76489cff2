package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/alembic-run/alembic/internal/events"
	"github.com/alembic-run/alembic/internal/prompt"
)

func newDeleteCmd(stdout, stderr io.Writer) *cobra.Command {
	var forceFlag bool
	cmd := &cobra.Command{
		Use:   "delete formula[@version]",
		Short: "Delete one version, or a whole formula, from the registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if cmdDelete(args[0], forceFlag, stdout, stderr) != 0 {
				return errExit
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&forceFlag, "force", false, "Delete without confirmation")
	return cmd
}

func cmdDelete(target string, force bool, stdout, stderr io.Writer) int {
	return doDelete(target, force, os.Stdin, stdout, stderr)
}

func doDelete(target string, force bool, stdin io.Reader, stdout, stderr io.Writer) int {
	name, ver := splitTarget(target)
	reg, root, err := openRegistry()
	if err != nil {
		fmt.Fprintf(stderr, "alembic delete: %v\n", err) //nolint:errcheck // best-effort stderr
		return 1
	}
	lock, err := acquireRegistryLock(root)
	if err != nil {
		fmt.Fprintf(stderr, "alembic delete: %v\n", err) //nolint:errcheck // best-effort stderr
		return 1
	}
	defer lock.Unlock() //nolint:errcheck // best-effort unlock

	if !reg.Exists(name) {
		fmt.Fprintf(stderr, "alembic delete: formula %q not found in local registry\n", name) //nolint:errcheck // best-effort stderr
		return 1
	}

	if !force {
		if stdin == nil {
			fmt.Fprintln(stderr, "alembic delete: no terminal to confirm; re-run with --force") //nolint:errcheck // best-effort stderr
			return 1
		}
		what := fmt.Sprintf("Delete %s and all its versions?", name)
		if ver != "" {
			what = fmt.Sprintf("Delete %s@%s?", name, ver)
		}
		ok, err := prompt.NewTerminal(stdin, stdout).Confirm(what)
		if err != nil {
			fmt.Fprintf(stderr, "alembic delete: %v\n", err) //nolint:errcheck // best-effort stderr
			return 1
		}
		if !ok {
			fmt.Fprintln(stdout, "delete cancelled") //nolint:errcheck // best-effort stdout
			return 1
		}
	}

	if ver != "" {
		err = reg.DeleteVersion(name, ver)
	} else {
		err = reg.DeleteFormula(name)
	}
	if err != nil {
		fmt.Fprintf(stderr, "alembic delete: %v\n", err) //nolint:errcheck // best-effort stderr
		return 1
	}

	if workspace, err := resolveWorkspace(); err == nil {
		recorder, closeRecorder := openRecorder(workspace, stderr)
		recorder.Record(events.Event{Type: events.FormulaDeleted, Formula: name, Version: ver})
		closeRecorder()
	}
	if ver != "" {
		fmt.Fprintf(stdout, "deleted %s@%s\n", name, ver) //nolint:errcheck // best-effort stdout
	} else {
		fmt.Fprintf(stdout, "deleted %s\n", name) //nolint:errcheck // best-effort stdout
	}
	return 0
}
