// Package migration creates the query log schema on startup.
package migration

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

type migrationStep struct {
	Name string
	SQL  string
}

var steps = []migrationStep{
	{
		Name: "create_table_query_logs",
		SQL: `CREATE TABLE IF NOT EXISTS query_logs (
  id                UUID        PRIMARY KEY,
  request_id        TEXT        NOT NULL,
  package_id        TEXT        NOT NULL,
  ano               INTEGER     NOT NULL,
  mes               INTEGER     CHECK (mes BETWEEN 1 AND 12),
  nome_reservatorio TEXT,
  page              INTEGER     NOT NULL CHECK (page >= 1),
  page_size         INTEGER     NOT NULL CHECK (page_size >= 1),
  resource_url      TEXT        NOT NULL DEFAULT '',
  rows_returned     INTEGER     NOT NULL DEFAULT 0,
  rows_scanned      BIGINT      NOT NULL DEFAULT 0,
  has_more          BOOLEAN     NOT NULL DEFAULT false,
  status            TEXT        NOT NULL,
  duration_ms       BIGINT      NOT NULL DEFAULT 0,
  created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_index_query_logs_created_at",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_query_logs_created_at ON query_logs (created_at);`,
	},
	{
		Name: "create_index_query_logs_package_id",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_query_logs_package_id ON query_logs (package_id, ano);`,
	},
}

// EnsureMigrated checks if the query_logs table exists and runs migrations if it doesn't.
func EnsureMigrated(ctx context.Context, db *sql.DB, logger *slog.Logger, dbHost string) error {
	start := time.Now()
	logger = logger.With("component", "database", "db_host", dbHost)
	logger.Info("db_migration_check", "status", "starting")

	var exists bool
	query := "SELECT to_regclass('public.query_logs') IS NOT NULL"
	if err := db.QueryRowContext(ctx, query).Scan(&exists); err != nil {
		logger.Error("db_migration_failed",
			"status", "error",
			"error_message", fmt.Sprintf("failed to check sentinel table: %v", err),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return fmt.Errorf("failed to check sentinel table: %w", err)
	}

	if exists {
		logger.Info("db_migration_skip",
			"status", "success",
			"msg", "schema already exists, skipping migration",
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return nil
	}

	logger.Info("db_migration_start", "status", "in_progress")

	for _, step := range steps {
		stepStart := time.Now()
		if _, err := db.ExecContext(ctx, step.SQL); err != nil {
			logger.Error("db_migration_failed",
				"status", "error",
				"migration_step", step.Name,
				"error_message", err.Error(),
				"duration_ms", time.Since(start).Milliseconds(),
				"step_duration_ms", time.Since(stepStart).Milliseconds(),
			)
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}

		logger.Info("db_migration_step",
			"status", "success",
			"migration_step", step.Name,
			"step_duration_ms", time.Since(stepStart).Milliseconds(),
		)
	}

	logger.Info("db_migration_success",
		"status", "success",
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}
