package repositories

import (
	"context"

	"alcove/internal/domain/models"
)

// FolderRepository defines data access operations for folders.
// Every operation is scoped to the owning user: a folder that exists but
// belongs to someone else behaves exactly like a folder that does not exist.
type FolderRepository interface {
	// Create inserts a new folder owned by userID under parentID (nil = root)
	Create(ctx context.Context, userID, name string, parentID *string) (*models.Folder, error)

	// GetByID retrieves a folder by ID
	GetByID(ctx context.Context, id, userID string) (*models.Folder, error)

	// ListByUser retrieves every folder the user owns, oldest first
	ListByUser(ctx context.Context, userID string) ([]models.Folder, error)

	// FindByParentAndName looks up a child of parentID by name.
	// The search term is lower-cased before matching.
	FindByParentAndName(ctx context.Context, parentID *string, userID, name string) (*models.Folder, error)

	// ListByParent lists immediate children of parentID (nil = root), by name
	ListByParent(ctx context.Context, parentID *string, userID string) ([]models.Folder, error)

	// SetParent moves a folder under a new parent (nil = root) and returns
	// the updated folder
	SetParent(ctx context.Context, id, userID string, parentID *string) (*models.Folder, error)

	// Rename changes a folder's name and returns the updated folder. Fails
	// with a conflict when a folder with that exact name already exists under
	// the same parent.
	Rename(ctx context.Context, id, userID, name string) (*models.Folder, error)

	// ReplaceItems overwrites the folder's item payload wholesale and returns
	// the updated folder
	ReplaceItems(ctx context.Context, id, userID string, items *models.FolderItems) (*models.Folder, error)

	// Delete removes the folder row. Children and their items are untouched.
	Delete(ctx context.Context, id, userID string) error
}
