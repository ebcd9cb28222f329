package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/iliyamo/planbox/internal/app"
	"github.com/iliyamo/planbox/internal/config"
	"github.com/iliyamo/planbox/internal/database"
	"github.com/iliyamo/planbox/internal/logging"
)

func newServeCmd() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := config.Load()
			log := logging.New(os.Stdout, cfg.IsProd(), cfg.LogLevel)

			a, err := app.New(ctx, cfg, log)
			if err != nil {
				return err
			}
			if migrate {
				if err := database.Migrate(ctx, a.DB(), "up"); err != nil {
					return err
				}
			}
			return a.Run(ctx)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply pending migrations before serving")
	return cmd
}
