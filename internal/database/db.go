package database

import (
	"context"
	"net"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

// DSN builds the MySQL connection string.
func DSN(user, pass, host, port, name string) string {
	cfg := mysql.NewConfig()
	cfg.User = user
	cfg.Passwd = pass
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(host, port)
	cfg.DBName = name
	// parseTime -> DATETIME as time.Time | loc=UTC keeps times consistent
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	// RowsAffected must count matched rows, not changed rows, so an update
	// that rewrites identical values is not mistaken for "not owned".
	cfg.ClientFoundRows = true
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg.FormatDSN()
}

// Open connects to MySQL and verifies the connection.
func Open(user, pass, host, port, name string) (*sqlx.DB, error) {
	db, err := sqlx.Open("mysql", DSN(user, pass, host, port, name))
	if err != nil {
		return nil, err
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	// Ping with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
