package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureSchema creates the folders table and its indexes if they do not exist.
//
// parent_id carries no foreign key: deleting a folder leaves its children in
// place with a dangling reference, and the tree builder re-roots them on read.
// Sibling name uniqueness is enforced in code rather than by a unique index.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, tables *TableNames) error {
	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id         TEXT PRIMARY KEY,
			parent_id  TEXT,
			user_id    TEXT NOT NULL,
			name       TEXT NOT NULL,
			items      JSONB,
			meta       JSONB,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL
		)`, tables.Folders),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_user_id ON %s (user_id)`, tables.Folders, tables.Folders),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_parent_id ON %s (parent_id, user_id)`, tables.Folders, tables.Folders),
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// DropSchema removes the folders table and everything in it.
func DropSchema(ctx context.Context, pool *pgxpool.Pool, tables *TableNames) error {
	if _, err := pool.Exec(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, tables.Folders)); err != nil {
		return fmt.Errorf("drop schema: %w", err)
	}
	return nil
}
