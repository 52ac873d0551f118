// Package seed loads a YAML manifest of folder trees and creates them
// through the folder service, so seeded data obeys the same rules as data
// created over the API (name validation, sibling uniqueness).
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"alcove/internal/domain/models"
	"alcove/internal/domain/services"
)

// Manifest is the top-level seed file shape.
type Manifest struct {
	User    string       `yaml:"user"`
	Folders []FolderSeed `yaml:"folders"`
}

// FolderSeed describes one folder and its subtree.
type FolderSeed struct {
	Name     string       `yaml:"name"`
	Items    *ItemsSeed   `yaml:"items,omitempty"`
	Children []FolderSeed `yaml:"children,omitempty"`
}

// ItemsSeed lists the chat and file ids filed under a seeded folder.
type ItemsSeed struct {
	ChatIDs []string `yaml:"chat_ids,omitempty"`
	FileIDs []string `yaml:"file_ids,omitempty"`
}

// LoadManifest reads and parses the manifest at path.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if m.User == "" {
		return nil, fmt.Errorf("manifest missing user id")
	}
	return &m, nil
}

// Apply creates the manifest's folder trees for userID. Duplicate names
// surface as conflicts from the service rather than silently stacking up.
func Apply(ctx context.Context, svc services.FolderService, userID string, m *Manifest, logger *slog.Logger) error {
	return applyLevel(ctx, svc, userID, m.Folders, nil, logger)
}

func applyLevel(ctx context.Context, svc services.FolderService, userID string, seeds []FolderSeed, parentID *string, logger *slog.Logger) error {
	for _, seed := range seeds {
		folder, err := svc.CreateFolder(ctx, userID, &services.CreateFolderRequest{
			Name:     seed.Name,
			ParentID: parentID,
		})
		if err != nil {
			return fmt.Errorf("create folder %q: %w", seed.Name, err)
		}

		if seed.Items != nil {
			items := &models.FolderItems{
				ChatIDs: seed.Items.ChatIDs,
				FileIDs: seed.Items.FileIDs,
			}
			if _, err := svc.UpdateItems(ctx, folder.ID, userID, items); err != nil {
				return fmt.Errorf("set items on %q: %w", seed.Name, err)
			}
		}

		logger.Info("seeded folder", "name", seed.Name, "folder_id", folder.ID)

		if err := applyLevel(ctx, svc, userID, seed.Children, &folder.ID, logger); err != nil {
			return err
		}
	}
	return nil
}
