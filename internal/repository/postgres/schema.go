package postgres

import (
	"context"

	"tradelens/pkg/errors"
)

// savedAnalysesDDL creates the saved analyses table and its lookup index.
// Statements are idempotent so startup can apply them on every boot.
var savedAnalysesDDL = []string{
	`CREATE TABLE IF NOT EXISTS saved_analyses (
		id           UUID PRIMARY KEY,
		user_id      TEXT NOT NULL,
		title        TEXT NOT NULL,
		description  TEXT,
		query_params JSONB NOT NULL,
		results      JSONB,
		is_public    BOOLEAN NOT NULL DEFAULT FALSE,
		view_count   INTEGER NOT NULL DEFAULT 0,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_saved_analyses_user_created
		ON saved_analyses (user_id, created_at DESC)`,
}

// EnsureSchema applies the table definitions this package relies on
func EnsureSchema(ctx context.Context, db DBTX) error {
	for _, stmt := range savedAnalysesDDL {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "apply postgres schema")
		}
	}
	return nil
}
