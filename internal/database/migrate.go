package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"

	"github.com/iliyamo/planbox/internal/database/migrations"
)

// gooseRun is a seam for tests.
var gooseRun = func(ctx context.Context, db *sql.DB, command string) error {
	return goose.RunContext(ctx, command, db, ".")
}

// Migrate applies a goose command ("up", "down", "status", ...) using the
// embedded SQL migrations.
func Migrate(ctx context.Context, db *sql.DB, command string) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("mysql"); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if err := gooseRun(ctx, db, command); err != nil {
		return fmt.Errorf("migrate %s: %w", command, err)
	}
	return nil
}
