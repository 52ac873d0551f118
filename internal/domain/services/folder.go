package services

import (
	"context"

	"alcove/internal/domain/models"
)

// FolderService handles folder business logic
type FolderService interface {
	// CreateFolder creates a new folder for the user
	CreateFolder(ctx context.Context, userID string, req *CreateFolderRequest) (*models.Folder, error)

	// GetFolder retrieves a single folder
	GetFolder(ctx context.Context, id, userID string) (*models.Folder, error)

	// ListFolders returns every folder the user owns, oldest first
	ListFolders(ctx context.Context, userID string) ([]models.Folder, error)

	// ListChildren lists the immediate children of a folder (nil = root level)
	ListChildren(ctx context.Context, parentID *string, userID string) ([]models.Folder, error)

	// FolderTree builds the user's nested folder tree
	FolderTree(ctx context.Context, userID string) ([]*models.FolderTreeNode, error)

	// RenameFolder changes a folder's name
	RenameFolder(ctx context.Context, id, userID, name string) (*models.Folder, error)

	// MoveFolder re-parents a folder (nil = move to root)
	MoveFolder(ctx context.Context, id, userID string, parentID *string) (*models.Folder, error)

	// UpdateItems replaces the folder's item payload
	UpdateItems(ctx context.Context, id, userID string, items *models.FolderItems) (*models.Folder, error)

	// DeleteFolder deletes a single folder. Children keep their parent
	// reference and surface at the root of the tree.
	DeleteFolder(ctx context.Context, id, userID string) error
}

// CreateFolderRequest represents a folder creation request
type CreateFolderRequest struct {
	Name     string  `json:"name"`
	ParentID *string `json:"parent_id,omitempty"` // null for root folders
}
