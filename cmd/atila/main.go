package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

const defaultConfigPath = "atila.yaml"

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "atila",
		Short: "Adaptive ticket ranking",
		Long: `ATILA keeps every project's worklist ranked. Each ticket is scored from its
priority and age, then placed in the Active, Backlog or Completed band.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newDBCmd())
	cmd.AddCommand(newProjectCmd())
	cmd.AddCommand(newTicketCmd())
	cmd.AddCommand(newRecalcCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newNormalizeCmd())
	cmd.AddCommand(newImportCmd())
	cmd.AddCommand(newDigestCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "atila %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
