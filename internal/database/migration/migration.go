// Package migration creates the document schema on first start.
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
		Name: "create_table_documents",
		SQL: `CREATE TABLE IF NOT EXISTS documents (
  id               BIGSERIAL   PRIMARY KEY,
  external_id      UUID        NOT NULL,
  file_name        VARCHAR(50) NOT NULL,
  file_description VARCHAR(50),
  file_type        VARCHAR(8)  NOT NULL,
  content_key      TEXT,
  thumbnail_key    TEXT,
  page_count       INTEGER     CHECK (page_count >= 0),
  created_at       TIMESTAMPTZ,
  uploaded_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
  organization_ref VARCHAR(36),
  user_ref         VARCHAR(36),
  contact_ref      VARCHAR(36),
  workflow_scope_1 TEXT[]      NOT NULL DEFAULT '{}',
  workflow_scope_2 TEXT[]      NOT NULL DEFAULT '{}',
  CHECK (thumbnail_key IS NULL OR content_key IS NOT NULL)
);`,
	},
	{
		Name: "create_unique_index_documents_external_id",
		SQL:  `CREATE UNIQUE INDEX IF NOT EXISTS uq_documents_external_id ON documents (external_id);`,
	},
	{
		Name: "create_index_documents_file_type",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_documents_file_type ON documents (file_type);`,
	},
	{
		Name: "create_index_documents_contact_ref",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_documents_contact_ref ON documents (contact_ref);`,
	},
	{
		Name: "create_index_documents_uploaded_at",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_documents_uploaded_at ON documents (uploaded_at, id);`,
	},
	{
		Name: "create_index_documents_created_at",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents ((COALESCE(created_at, '-infinity'::timestamptz)), id);`,
	},
	{
		Name: "create_index_documents_workflow_scope_1",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_documents_workflow_scope_1 ON documents USING GIN (workflow_scope_1);`,
	},
	{
		Name: "create_index_documents_workflow_scope_2",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_documents_workflow_scope_2 ON documents USING GIN (workflow_scope_2);`,
	},
}

// EnsureMigrated checks if the 'documents' table exists and runs migrations if it doesn't.
func EnsureMigrated(ctx context.Context, db *sql.DB, log *slog.Logger, dbHost string) error {
	start := time.Now()
	log = log.With("component", "database", "db_host", dbHost)

	log.InfoContext(ctx, "db_migration_check", "status", "starting")

	var exists bool
	err := db.QueryRowContext(ctx, "SELECT to_regclass('public.documents') IS NOT NULL").Scan(&exists)
	if err != nil {
		log.ErrorContext(ctx, "db_migration_failed",
			"status", "error",
			"error_message", fmt.Sprintf("failed to check sentinel table: %v", err),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return fmt.Errorf("failed to check sentinel table: %w", err)
	}

	if exists {
		log.InfoContext(ctx, "db_migration_skip",
			"status", "success",
			"detail", "schema already exists, skipping migration",
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return nil
	}

	log.InfoContext(ctx, "db_migration_start", "status", "in_progress", "steps", len(steps))

	for _, step := range steps {
		stepStart := time.Now()
		if _, err := db.ExecContext(ctx, step.SQL); err != nil {
			log.ErrorContext(ctx, "db_migration_failed",
				"status", "error",
				"migration_step", step.Name,
				"error_message", err.Error(),
				"duration_ms", time.Since(start).Milliseconds(),
				"step_duration_ms", time.Since(stepStart).Milliseconds(),
			)
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}

		log.InfoContext(ctx, "db_migration_step",
			"status", "success",
			"migration_step", step.Name,
			"step_duration_ms", time.Since(stepStart).Milliseconds(),
		)
	}

	log.InfoContext(ctx, "db_migration_success",
		"status", "success",
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}
