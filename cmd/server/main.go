package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	serve := newServeCmd()
	root := &cobra.Command{
		Use:           "planbox",
		Short:         "Planbox HTTP API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			// a missing .env is fine; real deployments use the environment
			if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("load .env: %w", err)
			}
			return nil
		},
		RunE: serve.RunE,
	}
	root.Flags().AddFlagSet(serve.Flags())
	root.AddCommand(serve, newMigrateCmd())
	return root
}
