package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"alcove/internal/domain"
	"alcove/internal/domain/models"
	"alcove/internal/domain/repositories"
)

// PostgresFolderRepository implements the FolderRepository interface
type PostgresFolderRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
	now    func() int64
}

// NewFolderRepository creates a new folder repository
func NewFolderRepository(config *RepositoryConfig) repositories.FolderRepository {
	return &PostgresFolderRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
		now:    config.clock(),
	}
}

// Create creates a new folder owned by userID under parentID (nil = root).
// The id is generated here; created_at and updated_at start equal.
func (r *PostgresFolderRepository) Create(ctx context.Context, userID, name string, parentID *string) (*models.Folder, error) {
	executor := GetExecutor(ctx, r.pool)

	now := r.now()
	folder := &models.Folder{
		ID:        uuid.New().String(),
		ParentID:  parentID,
		UserID:    userID,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, parent_id, user_id, name, items, meta, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, r.tables.Folders)

	_, err := executor.Exec(ctx, query,
		folder.ID,
		folder.ParentID,
		folder.UserID,
		folder.Name,
		folder.Items,
		folder.Meta,
		folder.CreatedAt,
		folder.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create folder: %w", err)
	}

	return folder, nil
}

// GetByID retrieves a folder by ID
func (r *PostgresFolderRepository) GetByID(ctx context.Context, id, userID string) (*models.Folder, error) {
	executor := GetExecutor(ctx, r.pool)

	query := fmt.Sprintf(`
		SELECT id, parent_id, user_id, name, items, meta, created_at, updated_at
		FROM %s
		WHERE id = $1 AND user_id = $2
	`, r.tables.Folders)

	var folder models.Folder
	err := executor.QueryRow(ctx, query, id, userID).Scan(
		&folder.ID,
		&folder.ParentID,
		&folder.UserID,
		&folder.Name,
		&folder.Items,
		&folder.Meta,
		&folder.CreatedAt,
		&folder.UpdatedAt,
	)
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("folder %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get folder: %w", err)
	}

	return &folder, nil
}

// ListByUser retrieves every folder the user owns, oldest first
func (r *PostgresFolderRepository) ListByUser(ctx context.Context, userID string) ([]models.Folder, error) {
	executor := GetExecutor(ctx, r.pool)

	query := fmt.Sprintf(`
		SELECT id, parent_id, user_id, name, items, meta, created_at, updated_at
		FROM %s
		WHERE user_id = $1
		ORDER BY created_at ASC
	`, r.tables.Folders)

	rows, err := executor.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	defer rows.Close()

	folders := []models.Folder{}
	for rows.Next() {
		var folder models.Folder
		err := rows.Scan(
			&folder.ID,
			&folder.ParentID,
			&folder.UserID,
			&folder.Name,
			&folder.Items,
			&folder.Meta,
			&folder.CreatedAt,
			&folder.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan folder: %w", err)
		}
		folders = append(folders, folder)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate folders: %w", err)
	}

	return folders, nil
}

// FindByParentAndName looks up a child of parentID by name.
// Only the search term is lower-cased; stored names keep their case and are
// matched exactly against the lowered term.
func (r *PostgresFolderRepository) FindByParentAndName(ctx context.Context, parentID *string, userID, name string) (*models.Folder, error) {
	executor := GetExecutor(ctx, r.pool)

	term := strings.ToLower(name)

	var query string
	var args []interface{}

	if parentID == nil {
		query = fmt.Sprintf(`
			SELECT id, parent_id, user_id, name, items, meta, created_at, updated_at
			FROM %s
			WHERE user_id = $1 AND parent_id IS NULL AND name = $2
		`, r.tables.Folders)
		args = append(args, userID, term)
	} else {
		query = fmt.Sprintf(`
			SELECT id, parent_id, user_id, name, items, meta, created_at, updated_at
			FROM %s
			WHERE user_id = $1 AND parent_id = $2 AND name = $3
		`, r.tables.Folders)
		args = append(args, userID, *parentID, term)
	}

	var folder models.Folder
	err := executor.QueryRow(ctx, query, args...).Scan(
		&folder.ID,
		&folder.ParentID,
		&folder.UserID,
		&folder.Name,
		&folder.Items,
		&folder.Meta,
		&folder.CreatedAt,
		&folder.UpdatedAt,
	)
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("folder '%s': %w", name, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("find folder by name: %w", err)
	}

	return &folder, nil
}

// ListByParent lists immediate children of parentID (nil = root), by name
func (r *PostgresFolderRepository) ListByParent(ctx context.Context, parentID *string, userID string) ([]models.Folder, error) {
	executor := GetExecutor(ctx, r.pool)

	var query string
	var args []interface{}

	if parentID == nil {
		query = fmt.Sprintf(`
			SELECT id, parent_id, user_id, name, items, meta, created_at, updated_at
			FROM %s
			WHERE user_id = $1 AND parent_id IS NULL
			ORDER BY name ASC
		`, r.tables.Folders)
		args = append(args, userID)
	} else {
		query = fmt.Sprintf(`
			SELECT id, parent_id, user_id, name, items, meta, created_at, updated_at
			FROM %s
			WHERE user_id = $1 AND parent_id = $2
			ORDER BY name ASC
		`, r.tables.Folders)
		args = append(args, userID, *parentID)
	}

	rows, err := executor.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list folder children: %w", err)
	}
	defer rows.Close()

	folders := []models.Folder{}
	for rows.Next() {
		var folder models.Folder
		err := rows.Scan(
			&folder.ID,
			&folder.ParentID,
			&folder.UserID,
			&folder.Name,
			&folder.Items,
			&folder.Meta,
			&folder.CreatedAt,
			&folder.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan folder: %w", err)
		}
		folders = append(folders, folder)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate folders: %w", err)
	}

	return folders, nil
}

// SetParent moves a folder under a new parent (nil = root).
// The new parent is not validated to exist; dangling references are allowed
// and resolved by the tree builder.
func (r *PostgresFolderRepository) SetParent(ctx context.Context, id, userID string, parentID *string) (*models.Folder, error) {
	executor := GetExecutor(ctx, r.pool)

	query := fmt.Sprintf(`
		UPDATE %s
		SET parent_id = $1, updated_at = $2
		WHERE id = $3 AND user_id = $4
		RETURNING id, parent_id, user_id, name, items, meta, created_at, updated_at
	`, r.tables.Folders)

	var folder models.Folder
	err := executor.QueryRow(ctx, query, parentID, r.now(), id, userID).Scan(
		&folder.ID,
		&folder.ParentID,
		&folder.UserID,
		&folder.Name,
		&folder.Items,
		&folder.Meta,
		&folder.CreatedAt,
		&folder.UpdatedAt,
	)
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("folder %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("set folder parent: %w", err)
	}

	return &folder, nil
}

// Rename changes a folder's name.
// The sibling scan matches the exact new name with no exclusion for the
// folder being renamed, so renaming a folder to its current name reports a
// conflict with itself.
func (r *PostgresFolderRepository) Rename(ctx context.Context, id, userID, name string) (*models.Folder, error) {
	executor := GetExecutor(ctx, r.pool)

	var parentID *string
	lookup := fmt.Sprintf(`
		SELECT parent_id
		FROM %s
		WHERE id = $1 AND user_id = $2
	`, r.tables.Folders)

	if err := executor.QueryRow(ctx, lookup, id, userID).Scan(&parentID); err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("folder %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get folder for rename: %w", err)
	}

	var query string
	var args []interface{}

	if parentID == nil {
		query = fmt.Sprintf(`
			SELECT id
			FROM %s
			WHERE user_id = $1 AND parent_id IS NULL AND name = $2
		`, r.tables.Folders)
		args = append(args, userID, name)
	} else {
		query = fmt.Sprintf(`
			SELECT id
			FROM %s
			WHERE user_id = $1 AND parent_id = $2 AND name = $3
		`, r.tables.Folders)
		args = append(args, userID, *parentID, name)
	}

	var existingID string
	err := executor.QueryRow(ctx, query, args...).Scan(&existingID)
	if err == nil {
		return nil, &domain.ConflictError{
			Message:      fmt.Sprintf("folder '%s' already exists", name),
			ResourceType: "folder",
			ResourceID:   existingID,
		}
	}
	if !IsPgNoRowsError(err) {
		return nil, fmt.Errorf("check sibling name: %w", err)
	}

	update := fmt.Sprintf(`
		UPDATE %s
		SET name = $1, updated_at = $2
		WHERE id = $3 AND user_id = $4
		RETURNING id, parent_id, user_id, name, items, meta, created_at, updated_at
	`, r.tables.Folders)

	var folder models.Folder
	err = executor.QueryRow(ctx, update, name, r.now(), id, userID).Scan(
		&folder.ID,
		&folder.ParentID,
		&folder.UserID,
		&folder.Name,
		&folder.Items,
		&folder.Meta,
		&folder.CreatedAt,
		&folder.UpdatedAt,
	)
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("folder %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("rename folder: %w", err)
	}

	return &folder, nil
}

// ReplaceItems overwrites the folder's item payload wholesale
func (r *PostgresFolderRepository) ReplaceItems(ctx context.Context, id, userID string, items *models.FolderItems) (*models.Folder, error) {
	executor := GetExecutor(ctx, r.pool)

	query := fmt.Sprintf(`
		UPDATE %s
		SET items = $1, updated_at = $2
		WHERE id = $3 AND user_id = $4
		RETURNING id, parent_id, user_id, name, items, meta, created_at, updated_at
	`, r.tables.Folders)

	var folder models.Folder
	err := executor.QueryRow(ctx, query, items, r.now(), id, userID).Scan(
		&folder.ID,
		&folder.ParentID,
		&folder.UserID,
		&folder.Name,
		&folder.Items,
		&folder.Meta,
		&folder.CreatedAt,
		&folder.UpdatedAt,
	)
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("folder %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("replace folder items: %w", err)
	}

	return &folder, nil
}

// Delete removes the folder row. Children keep their parent_id and surface
// at the root of the tree; their items are untouched.
func (r *PostgresFolderRepository) Delete(ctx context.Context, id, userID string) error {
	executor := GetExecutor(ctx, r.pool)

	query := fmt.Sprintf(`
		DELETE FROM %s
		WHERE id = $1 AND user_id = $2
	`, r.tables.Folders)

	result, err := executor.Exec(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("delete folder: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("folder %s: %w", id, domain.ErrNotFound)
	}

	return nil
}
