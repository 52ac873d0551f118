package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"alcove/internal/domain"
	"alcove/internal/domain/models"
	"alcove/internal/domain/repositories"
)

// RepositoryConfig holds configuration for repository implementations
type RepositoryConfig struct {
	DB     *sql.DB
	Logger *slog.Logger

	// Now supplies folder timestamps in Unix seconds. Defaults to the wall
	// clock; tests override it to pin updated_at assertions.
	Now func() int64
}

func (c *RepositoryConfig) clock() func() int64 {
	if c.Now != nil {
		return c.Now
	}
	return func() int64 { return time.Now().Unix() }
}

// SQLiteFolderRepository implements the FolderRepository interface
type SQLiteFolderRepository struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() int64
}

// NewFolderRepository creates a new folder repository
func NewFolderRepository(config *RepositoryConfig) repositories.FolderRepository {
	return &SQLiteFolderRepository{
		db:     config.DB,
		logger: config.Logger,
		now:    config.clock(),
	}
}

// encodeItems marshals the item payload for the TEXT column. A nil payload
// becomes SQL NULL.
func encodeItems(items *models.FolderItems) (any, error) {
	if items == nil {
		return nil, nil
	}
	data, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("encode items: %w", err)
	}
	return string(data), nil
}

// encodeMeta marshals the meta payload for the TEXT column. A nil map
// becomes SQL NULL.
func encodeMeta(meta map[string]any) (any, error) {
	if meta == nil {
		return nil, nil
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encode meta: %w", err)
	}
	return string(data), nil
}

func decodeFolder(folder *models.Folder, itemsJSON, metaJSON sql.NullString) error {
	if itemsJSON.Valid {
		var items models.FolderItems
		if err := json.Unmarshal([]byte(itemsJSON.String), &items); err != nil {
			return fmt.Errorf("decode items: %w", err)
		}
		folder.Items = &items
	}
	if metaJSON.Valid {
		if err := json.Unmarshal([]byte(metaJSON.String), &folder.Meta); err != nil {
			return fmt.Errorf("decode meta: %w", err)
		}
	}
	return nil
}

func scanFolder(row *sql.Row) (*models.Folder, error) {
	var folder models.Folder
	var itemsJSON, metaJSON sql.NullString
	err := row.Scan(
		&folder.ID, &folder.ParentID, &folder.UserID, &folder.Name,
		&itemsJSON, &metaJSON, &folder.CreatedAt, &folder.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := decodeFolder(&folder, itemsJSON, metaJSON); err != nil {
		return nil, err
	}
	return &folder, nil
}

func scanFolderRows(rows *sql.Rows) (*models.Folder, error) {
	var folder models.Folder
	var itemsJSON, metaJSON sql.NullString
	err := rows.Scan(
		&folder.ID, &folder.ParentID, &folder.UserID, &folder.Name,
		&itemsJSON, &metaJSON, &folder.CreatedAt, &folder.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan folder: %w", err)
	}
	if err := decodeFolder(&folder, itemsJSON, metaJSON); err != nil {
		return nil, err
	}
	return &folder, nil
}

// Create creates a new folder owned by userID under parentID (nil = root).
// The id is generated here; created_at and updated_at start equal.
func (r *SQLiteFolderRepository) Create(ctx context.Context, userID, name string, parentID *string) (*models.Folder, error) {
	executor := getExecutor(ctx, r.db)

	now := r.now()
	folder := &models.Folder{
		ID:        uuid.New().String(),
		ParentID:  parentID,
		UserID:    userID,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}

	itemsJSON, err := encodeItems(folder.Items)
	if err != nil {
		return nil, err
	}
	metaJSON, err := encodeMeta(folder.Meta)
	if err != nil {
		return nil, err
	}

	_, err = executor.ExecContext(ctx, `
		INSERT INTO folders (id, parent_id, user_id, name, items, meta, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		folder.ID, folder.ParentID, folder.UserID, folder.Name,
		itemsJSON, metaJSON, folder.CreatedAt, folder.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create folder: %w", err)
	}

	return folder, nil
}

// GetByID retrieves a folder by ID
func (r *SQLiteFolderRepository) GetByID(ctx context.Context, id, userID string) (*models.Folder, error) {
	executor := getExecutor(ctx, r.db)

	row := executor.QueryRowContext(ctx, `
		SELECT id, parent_id, user_id, name, items, meta, created_at, updated_at
		FROM folders
		WHERE id = ? AND user_id = ?`, id, userID)

	folder, err := scanFolder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("folder %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get folder: %w", err)
	}

	return folder, nil
}

// ListByUser retrieves every folder the user owns, oldest first
func (r *SQLiteFolderRepository) ListByUser(ctx context.Context, userID string) ([]models.Folder, error) {
	executor := getExecutor(ctx, r.db)

	rows, err := executor.QueryContext(ctx, `
		SELECT id, parent_id, user_id, name, items, meta, created_at, updated_at
		FROM folders
		WHERE user_id = ?
		ORDER BY created_at ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	defer rows.Close()

	folders := []models.Folder{}
	for rows.Next() {
		folder, err := scanFolderRows(rows)
		if err != nil {
			return nil, err
		}
		folders = append(folders, *folder)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate folders: %w", err)
	}

	return folders, nil
}

// FindByParentAndName looks up a child of parentID by name.
// Only the search term is lower-cased; stored names keep their case and are
// matched exactly against the lowered term.
func (r *SQLiteFolderRepository) FindByParentAndName(ctx context.Context, parentID *string, userID, name string) (*models.Folder, error) {
	executor := getExecutor(ctx, r.db)

	term := strings.ToLower(name)

	var row *sql.Row
	if parentID == nil {
		row = executor.QueryRowContext(ctx, `
			SELECT id, parent_id, user_id, name, items, meta, created_at, updated_at
			FROM folders
			WHERE user_id = ? AND parent_id IS NULL AND name = ?`, userID, term)
	} else {
		row = executor.QueryRowContext(ctx, `
			SELECT id, parent_id, user_id, name, items, meta, created_at, updated_at
			FROM folders
			WHERE user_id = ? AND parent_id = ? AND name = ?`, userID, *parentID, term)
	}

	folder, err := scanFolder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("folder '%s': %w", name, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("find folder by name: %w", err)
	}

	return folder, nil
}

// ListByParent lists immediate children of parentID (nil = root), by name
func (r *SQLiteFolderRepository) ListByParent(ctx context.Context, parentID *string, userID string) ([]models.Folder, error) {
	executor := getExecutor(ctx, r.db)

	var rows *sql.Rows
	var err error
	if parentID == nil {
		rows, err = executor.QueryContext(ctx, `
			SELECT id, parent_id, user_id, name, items, meta, created_at, updated_at
			FROM folders
			WHERE user_id = ? AND parent_id IS NULL
			ORDER BY name ASC`, userID)
	} else {
		rows, err = executor.QueryContext(ctx, `
			SELECT id, parent_id, user_id, name, items, meta, created_at, updated_at
			FROM folders
			WHERE user_id = ? AND parent_id = ?
			ORDER BY name ASC`, userID, *parentID)
	}
	if err != nil {
		return nil, fmt.Errorf("list folder children: %w", err)
	}
	defer rows.Close()

	folders := []models.Folder{}
	for rows.Next() {
		folder, err := scanFolderRows(rows)
		if err != nil {
			return nil, err
		}
		folders = append(folders, *folder)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate folders: %w", err)
	}

	return folders, nil
}

// SetParent moves a folder under a new parent (nil = root).
// The new parent is not validated to exist; dangling references are allowed
// and resolved by the tree builder.
func (r *SQLiteFolderRepository) SetParent(ctx context.Context, id, userID string, parentID *string) (*models.Folder, error) {
	executor := getExecutor(ctx, r.db)

	result, err := executor.ExecContext(ctx, `
		UPDATE folders
		SET parent_id = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		parentID, r.now(), id, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("set folder parent: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("set folder parent: %w", err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("folder %s: %w", id, domain.ErrNotFound)
	}

	return r.GetByID(ctx, id, userID)
}

// Rename changes a folder's name.
// The sibling scan matches the exact new name with no exclusion for the
// folder being renamed, so renaming a folder to its current name reports a
// conflict with itself.
func (r *SQLiteFolderRepository) Rename(ctx context.Context, id, userID, name string) (*models.Folder, error) {
	executor := getExecutor(ctx, r.db)

	var parentID *string
	err := executor.QueryRowContext(ctx, `
		SELECT parent_id FROM folders WHERE id = ? AND user_id = ?`, id, userID,
	).Scan(&parentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("folder %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get folder for rename: %w", err)
	}

	var row *sql.Row
	if parentID == nil {
		row = executor.QueryRowContext(ctx, `
			SELECT id FROM folders
			WHERE user_id = ? AND parent_id IS NULL AND name = ?`, userID, name)
	} else {
		row = executor.QueryRowContext(ctx, `
			SELECT id FROM folders
			WHERE user_id = ? AND parent_id = ? AND name = ?`, userID, *parentID, name)
	}

	var existingID string
	err = row.Scan(&existingID)
	if err == nil {
		return nil, &domain.ConflictError{
			Message:      fmt.Sprintf("folder '%s' already exists", name),
			ResourceType: "folder",
			ResourceID:   existingID,
		}
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("check sibling name: %w", err)
	}

	result, err := executor.ExecContext(ctx, `
		UPDATE folders
		SET name = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		name, r.now(), id, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("rename folder: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rename folder: %w", err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("folder %s: %w", id, domain.ErrNotFound)
	}

	return r.GetByID(ctx, id, userID)
}

// ReplaceItems overwrites the folder's item payload wholesale
func (r *SQLiteFolderRepository) ReplaceItems(ctx context.Context, id, userID string, items *models.FolderItems) (*models.Folder, error) {
	executor := getExecutor(ctx, r.db)

	itemsJSON, err := encodeItems(items)
	if err != nil {
		return nil, err
	}

	result, err := executor.ExecContext(ctx, `
		UPDATE folders
		SET items = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		itemsJSON, r.now(), id, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("replace folder items: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("replace folder items: %w", err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("folder %s: %w", id, domain.ErrNotFound)
	}

	return r.GetByID(ctx, id, userID)
}

// Delete removes the folder row. Children keep their parent_id and surface
// at the root of the tree; their items are untouched.
func (r *SQLiteFolderRepository) Delete(ctx context.Context, id, userID string) error {
	executor := getExecutor(ctx, r.db)

	result, err := executor.ExecContext(ctx, `
		DELETE FROM folders WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete folder: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete folder: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("folder %s: %w", id, domain.ErrNotFound)
	}

	return nil
}
