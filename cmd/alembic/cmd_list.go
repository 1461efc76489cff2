package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newListCmd(stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list [formula]",
		Short: "List registry formulas, or the versions of one formula",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			if cmdList(name, stdout, stderr) != 0 {
				return errExit
			}
			return nil
		},
	}
	return cmd
}

func cmdList(name string, stdout, stderr io.Writer) int {
	reg, _, err := openRegistry()
	if err != nil {
		fmt.Fprintf(stderr, "alembic list: %v\n", err) //nolint:errcheck // best-effort stderr
		return 1
	}

	if name != "" {
		versions, err := reg.ListVersions(name)
		if err != nil {
			fmt.Fprintf(stderr, "alembic list: %v\n", err) //nolint:errcheck // best-effort stderr
			return 1
		}
		for _, v := range versions {
			fmt.Fprintln(stdout, v) //nolint:errcheck // best-effort stdout
		}
		return 0
	}

	names, err := reg.ListFormulas()
	if err != nil {
		fmt.Fprintf(stderr, "alembic list: %v\n", err) //nolint:errcheck // best-effort stderr
		return 1
	}
	if len(names) == 0 {
		fmt.Fprintln(stdout, "registry is empty") //nolint:errcheck // best-effort stdout
		return 0
	}
	tw := tabwriter.NewWriter(stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tLATEST\tVERSIONS") //nolint:errcheck // best-effort stdout
	for _, n := range names {
		versions, err := reg.ListVersions(n)
		if err != nil {
			fmt.Fprintf(stderr, "alembic list: %s: %v\n", n, err) //nolint:errcheck // best-effort stderr
			continue
		}
		latest := ""
		if len(versions) > 0 {
			latest = versions[len(versions)-1]
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\n", n, latest, len(versions)) //nolint:errcheck // best-effort stdout
	}
	tw.Flush() //nolint:errcheck // best-effort stdout
	return 0
}
