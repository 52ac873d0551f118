package sqlite

// Schema is the folder store schema. Timestamps are Unix seconds; items and
// meta are JSON text. parent_id carries no foreign key so a delete can leave
// dangling children for the tree builder to re-root, and sibling name
// uniqueness is enforced in code rather than by a unique index.
const Schema = `
-- User folder hierarchy
CREATE TABLE IF NOT EXISTS folders (
    id         TEXT PRIMARY KEY,
    parent_id  TEXT,
    user_id    TEXT NOT NULL,
    name       TEXT NOT NULL,
    items      TEXT,
    meta       TEXT,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_folders_user ON folders(user_id);
CREATE INDEX IF NOT EXISTS idx_folders_parent ON folders(parent_id, user_id);
`

const dropSchema = `
DROP INDEX IF EXISTS idx_folders_parent;
DROP INDEX IF EXISTS idx_folders_user;
DROP TABLE IF EXISTS folders;
`
