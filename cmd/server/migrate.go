package main

import (
	"github.com/spf13/cobra"

	"github.com/iliyamo/planbox/internal/config"
	"github.com/iliyamo/planbox/internal/database"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|status]",
		Short:     "Apply, roll back or inspect schema migrations",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "status"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
			if err != nil {
				return err
			}
			defer db.Close()
			return database.Migrate(cmd.Context(), db.DB, args[0])
		},
	}
}
