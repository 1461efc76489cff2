package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// Build metadata — injected via ldflags at build time.
var (
	buildVersion = "dev"
	buildCommit  = "unknown"
	buildDate    = "unknown"
)

func newVersionCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print alembic version information",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(stdout, "alembic %s (commit: %s, built: %s)\n", buildVersion, buildCommit, buildDate) //nolint:errcheck // best-effort stdout
		},
	}
}
