package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devisauto",
		Short: "Devis Auto — car repair quote reconciliation",
		Long:  "Devis Auto fans customer repair requests out to garages by email, ingests their replies, and compiles quote summaries back to the customer.",
	}

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newDispatchCmd())
	cmd.AddCommand(newPollCmd())
	cmd.AddCommand(newRespondCmd())
	cmd.AddCommand(newGaragesCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "devisauto %s (commit: %s, built: %s)\n", Version, Commit, Date)
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
	// Credentials may live in a local .env during development; absence is
	// not an error.
	_ = godotenv.Load()
	os.Exit(execute(newRootCmd()))
}
