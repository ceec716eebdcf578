// Package db provides database connection helpers, schema migration, and the
// data access used to persist VOD metadata, chat transcripts and activity runs.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx postgres driver registered as 'pgx'

	"github.com/onnwee/chat-tender/backend/telemetry"
)

// Pool limits applied by Connect.
const (
	maxOpenConns    = 10
	maxIdleConns    = 5
	connMaxLifetime = 30 * time.Minute
)

// Connect opens a Postgres connection pool for dsn. The pool is lazy; use
// Ping to check reachability.
func Connect(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("empty database dsn")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)
	return db, nil
}

// Ping verifies the database answers within ctx.
func Ping(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("database not configured")
	}
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

// ReportPoolMetrics samples the pool stats into the db gauges every interval
// until ctx is done.
func ReportPoolMetrics(ctx context.Context, db *sql.DB, interval time.Duration) {
	if db == nil || interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		st := db.Stats()
		telemetry.UpdateDatabasePoolMetrics(st.OpenConnections, st.InUse)
		select {
		case <-ctx.Done():
			slog.Debug("pool metrics reporter stopped", slog.String("component", "db"))
			return
		case <-t.C:
		}
	}
}
