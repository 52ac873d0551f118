package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"alcove/internal/config"
	"alcove/internal/domain"
	"alcove/internal/domain/models"
	"alcove/internal/domain/repositories"
	"alcove/internal/domain/services"
)

var folderNamePattern = regexp.MustCompile(`^[^/]+$`)

type folderService struct {
	folderRepo repositories.FolderRepository
	txManager  repositories.TransactionManager
	logger     *slog.Logger
}

// NewFolderService creates a new folder service
func NewFolderService(
	folderRepo repositories.FolderRepository,
	txManager repositories.TransactionManager,
	logger *slog.Logger,
) services.FolderService {
	return &folderService{
		folderRepo: folderRepo,
		txManager:  txManager,
		logger:     logger,
	}
}

// CreateFolder creates a new folder for the user
func (s *folderService) CreateFolder(ctx context.Context, userID string, req *services.CreateFolderRequest) (*models.Folder, error) {
	// Normalize empty string to nil for root-level folders
	if req.ParentID != nil && *req.ParentID == "" {
		req.ParentID = nil
	}
	req.Name = strings.TrimSpace(req.Name)

	if err := s.validateName(req.Name); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	// Duplicate check lives here; the store inserts unchecked. The lookup
	// lowers the search term only, so a sibling stored with upper-case
	// letters is not matched.
	existing, err := s.folderRepo.FindByParentAndName(ctx, req.ParentID, userID, req.Name)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("check for duplicate name: %w", err)
	}
	if existing != nil {
		return nil, &domain.ConflictError{
			Message:      fmt.Sprintf("a folder named %q already exists in this location", req.Name),
			ResourceType: "folder",
			ResourceID:   existing.ID,
		}
	}

	folder, err := s.folderRepo.Create(ctx, userID, req.Name, req.ParentID)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("folder created", "folder_id", folder.ID, "user_id", userID)
	return folder, nil
}

// GetFolder retrieves a single folder
func (s *folderService) GetFolder(ctx context.Context, id, userID string) (*models.Folder, error) {
	return s.folderRepo.GetByID(ctx, id, userID)
}

// ListFolders returns every folder the user owns, oldest first
func (s *folderService) ListFolders(ctx context.Context, userID string) ([]models.Folder, error) {
	return s.folderRepo.ListByUser(ctx, userID)
}

// ListChildren lists the immediate children of a folder (nil = root level)
func (s *folderService) ListChildren(ctx context.Context, parentID *string, userID string) ([]models.Folder, error) {
	return s.folderRepo.ListByParent(ctx, parentID, userID)
}

// FolderTree builds the user's nested folder tree from the flat list
func (s *folderService) FolderTree(ctx context.Context, userID string) ([]*models.FolderTreeNode, error) {
	allFolders, err := s.folderRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Name order here propagates to every children slice in the tree
	sort.Slice(allFolders, func(i, j int) bool {
		return allFolders[i].Name < allFolders[j].Name
	})

	// First pass: create all folder nodes
	folderMap := make(map[string]*models.FolderTreeNode, len(allFolders))
	for _, folder := range allFolders {
		folderMap[folder.ID] = &models.FolderTreeNode{
			ID:        folder.ID,
			Name:      folder.Name,
			ParentID:  folder.ParentID,
			CreatedAt: folder.CreatedAt,
			UpdatedAt: folder.UpdatedAt,
			Children:  []*models.FolderTreeNode{},
		}
	}

	// Second pass: nest folders by connecting children to parents.
	// A node whose parent id no longer resolves surfaces at the root.
	roots := []*models.FolderTreeNode{}
	for _, folder := range allFolders {
		node := folderMap[folder.ID]
		if folder.ParentID == nil {
			roots = append(roots, node)
			continue
		}
		if parent, exists := folderMap[*folder.ParentID]; exists {
			parent.Children = append(parent.Children, node)
		} else {
			roots = append(roots, node)
		}
	}

	return roots, nil
}

// RenameFolder changes a folder's name
func (s *folderService) RenameFolder(ctx context.Context, id, userID, name string) (*models.Folder, error) {
	name = strings.TrimSpace(name)
	if err := s.validateName(name); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	var folder *models.Folder
	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		var err error
		folder, err = s.folderRepo.Rename(txCtx, id, userID, name)
		return err
	})
	if err != nil {
		return nil, err
	}

	return folder, nil
}

// MoveFolder re-parents a folder (nil = move to root)
func (s *folderService) MoveFolder(ctx context.Context, id, userID string, parentID *string) (*models.Folder, error) {
	// Normalize empty string to nil for moves to the root level
	if parentID != nil && *parentID == "" {
		parentID = nil
	}

	if _, err := s.folderRepo.GetByID(ctx, id, userID); err != nil {
		return nil, err
	}

	if parentID != nil {
		if err := s.validateNoCircularReference(ctx, id, *parentID, userID); err != nil {
			return nil, err
		}
		s.logger.Debug("moving folder to new parent",
			"folder_id", id,
			"new_parent_id", *parentID,
		)
	} else {
		s.logger.Debug("moving folder to root", "folder_id", id)
	}

	var folder *models.Folder
	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		var err error
		folder, err = s.folderRepo.SetParent(txCtx, id, userID, parentID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return folder, nil
}

// UpdateItems replaces the folder's item payload
func (s *folderService) UpdateItems(ctx context.Context, id, userID string, items *models.FolderItems) (*models.Folder, error) {
	var folder *models.Folder
	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		var err error
		folder, err = s.folderRepo.ReplaceItems(txCtx, id, userID, items)
		return err
	})
	if err != nil {
		return nil, err
	}

	return folder, nil
}

// DeleteFolder deletes a single folder. Children keep their parent reference
// and surface at the root of the tree; referenced chats and files are not
// touched.
func (s *folderService) DeleteFolder(ctx context.Context, id, userID string) error {
	if err := s.folderRepo.Delete(ctx, id, userID); err != nil {
		return err
	}

	s.logger.Debug("folder deleted", "folder_id", id, "user_id", userID)
	return nil
}

// validateName validates a folder name
func (s *folderService) validateName(name string) error {
	return validation.Validate(name,
		validation.Required,
		validation.Length(1, config.MaxFolderNameLength),
		validation.Match(folderNamePattern).Error("folder name cannot contain slashes"),
	)
}

// validateNoCircularReference ensures moving a folder won't create circular references
func (s *folderService) validateNoCircularReference(ctx context.Context, folderID, newParentID, userID string) error {
	// Can't move folder to be its own parent
	if folderID == newParentID {
		return fmt.Errorf("%w: cannot move folder to be its own parent", domain.ErrValidation)
	}

	// Walk the ancestor chain of the new parent. A missing ancestor ends the
	// walk, since dangling parent references are legal data. The visited set
	// bounds the walk when stored data already contains a cycle.
	visited := map[string]bool{folderID: true}
	currentID := newParentID
	for {
		if visited[currentID] {
			return fmt.Errorf("%w: cannot move folder to be a child of its own descendant", domain.ErrValidation)
		}
		visited[currentID] = true

		parent, err := s.folderRepo.GetByID(ctx, currentID, userID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil
			}
			return err
		}

		if parent.ParentID == nil {
			// Reached root, no circular reference
			return nil
		}

		currentID = *parent.ParentID
	}
}
