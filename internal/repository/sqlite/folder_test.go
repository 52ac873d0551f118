package sqlite

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"alcove/internal/domain"
	"alcove/internal/domain/models"
	"alcove/internal/domain/repositories"
)

// testClock is an adjustable second counter so updated_at progression is
// observable without sleeping through wall-clock seconds.
type testClock struct {
	now int64
}

func (c *testClock) Advance(seconds int64) { c.now += seconds }

func openTestRepo(t *testing.T) (repositories.FolderRepository, repositories.TransactionManager, *testClock) {
	t.Helper()

	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// Each connection to :memory: is its own database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	clock := &testClock{now: 1_700_000_000}
	repo := NewFolderRepository(&RepositoryConfig{
		DB:     db,
		Logger: slog.Default(),
		Now:    func() int64 { return clock.now },
	})
	return repo, NewTransactionManager(db), clock
}

func mustCreate(t *testing.T, repo repositories.FolderRepository, userID, name string, parentID *string) *models.Folder {
	t.Helper()
	folder, err := repo.Create(context.Background(), userID, name, parentID)
	if err != nil {
		t.Fatalf("create %q: %v", name, err)
	}
	return folder
}

func TestCreateThenGet(t *testing.T) {
	repo, _, _ := openTestRepo(t)
	ctx := context.Background()

	parent := mustCreate(t, repo, "u1", "parent", nil)
	folder := mustCreate(t, repo, "u1", "child", &parent.ID)

	got, err := repo.GetByID(ctx, folder.ID, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "child" || got.UserID != "u1" {
		t.Errorf("got name=%q user=%q, want child/u1", got.Name, got.UserID)
	}
	if got.ParentID == nil || *got.ParentID != parent.ID {
		t.Errorf("parent_id = %v, want %s", got.ParentID, parent.ID)
	}
	if got.CreatedAt != got.UpdatedAt {
		t.Errorf("fresh folder has created_at=%d updated_at=%d, want equal", got.CreatedAt, got.UpdatedAt)
	}
}

func TestGetScopedByUser(t *testing.T) {
	repo, _, _ := openTestRepo(t)
	ctx := context.Background()

	folder := mustCreate(t, repo, "u1", "private", nil)

	_, err := repo.GetByID(ctx, folder.ID, "u2")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("foreign user get = %v, want ErrNotFound", err)
	}
}

func TestRenameSiblingConflict(t *testing.T) {
	repo, _, clock := openTestRepo(t)
	ctx := context.Background()

	a := mustCreate(t, repo, "u1", "Work", nil)
	b := mustCreate(t, repo, "u1", "Personal", nil)

	clock.Advance(5)

	_, err := repo.Rename(ctx, b.ID, "u1", "Work")
	var conflict *domain.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("rename to sibling name = %v, want ConflictError", err)
	}
	if conflict.ResourceID != a.ID {
		t.Errorf("conflict resource id = %s, want %s", conflict.ResourceID, a.ID)
	}
	if !errors.Is(err, domain.ErrConflict) {
		t.Error("ConflictError should match ErrConflict via errors.Is")
	}

	// The rejected rename must not have touched the folder
	unchanged, err := repo.GetByID(ctx, b.ID, "u1")
	if err != nil {
		t.Fatalf("get after conflict: %v", err)
	}
	if unchanged.Name != "Personal" {
		t.Errorf("name after rejected rename = %q, want Personal", unchanged.Name)
	}
	if unchanged.UpdatedAt != b.UpdatedAt {
		t.Errorf("updated_at after rejected rename = %d, want %d", unchanged.UpdatedAt, b.UpdatedAt)
	}

	renamed, err := repo.Rename(ctx, b.ID, "u1", "Play")
	if err != nil {
		t.Fatalf("rename to free name: %v", err)
	}
	if renamed.Name != "Play" {
		t.Errorf("name = %q, want Play", renamed.Name)
	}
	if renamed.UpdatedAt <= b.UpdatedAt {
		t.Errorf("updated_at not bumped: %d <= %d", renamed.UpdatedAt, b.UpdatedAt)
	}

	roots, err := repo.ListByParent(ctx, nil, "u1")
	if err != nil {
		t.Fatalf("list roots: %v", err)
	}
	names := map[string]bool{}
	for _, f := range roots {
		names[f.Name] = true
	}
	if len(roots) != 2 || !names["Work"] || !names["Play"] {
		t.Errorf("roots = %v, want {Work, Play}", names)
	}
}

func TestRenameSameNameDifferentParent(t *testing.T) {
	repo, _, _ := openTestRepo(t)
	ctx := context.Background()

	parent := mustCreate(t, repo, "u1", "projects", nil)
	mustCreate(t, repo, "u1", "archive", nil)
	nested := mustCreate(t, repo, "u1", "notes", &parent.ID)

	// "archive" exists at the root but not under "projects"
	renamed, err := repo.Rename(ctx, nested.ID, "u1", "archive")
	if err != nil {
		t.Fatalf("rename under different parent: %v", err)
	}
	if renamed.Name != "archive" {
		t.Errorf("name = %q, want archive", renamed.Name)
	}
}

func TestSetParentBumpsUpdatedAt(t *testing.T) {
	repo, _, clock := openTestRepo(t)
	ctx := context.Background()

	parent := mustCreate(t, repo, "u1", "parent", nil)
	folder := mustCreate(t, repo, "u1", "mover", nil)

	clock.Advance(3)

	moved, err := repo.SetParent(ctx, folder.ID, "u1", &parent.ID)
	if err != nil {
		t.Fatalf("set parent: %v", err)
	}
	if moved.ParentID == nil || *moved.ParentID != parent.ID {
		t.Errorf("parent_id = %v, want %s", moved.ParentID, parent.ID)
	}
	if moved.UpdatedAt <= folder.UpdatedAt {
		t.Errorf("updated_at not increased: %d <= %d", moved.UpdatedAt, folder.UpdatedAt)
	}

	// Back to root via nil
	clock.Advance(3)
	rooted, err := repo.SetParent(ctx, folder.ID, "u1", nil)
	if err != nil {
		t.Fatalf("set parent nil: %v", err)
	}
	if rooted.ParentID != nil {
		t.Errorf("parent_id = %v, want nil", rooted.ParentID)
	}
}

func TestSetParentAcceptsDanglingReference(t *testing.T) {
	repo, _, _ := openTestRepo(t)
	ctx := context.Background()

	folder := mustCreate(t, repo, "u1", "orphan-to-be", nil)

	ghost := "no-such-folder"
	moved, err := repo.SetParent(ctx, folder.ID, "u1", &ghost)
	if err != nil {
		t.Fatalf("set parent to missing id: %v", err)
	}
	if moved.ParentID == nil || *moved.ParentID != ghost {
		t.Errorf("parent_id = %v, want %s", moved.ParentID, ghost)
	}
}

func TestDeleteScopedByUser(t *testing.T) {
	repo, _, _ := openTestRepo(t)
	ctx := context.Background()

	folder := mustCreate(t, repo, "u1", "keep", nil)

	if err := repo.Delete(ctx, folder.ID, "u2"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("foreign delete = %v, want ErrNotFound", err)
	}

	// Still there for the owner
	if _, err := repo.GetByID(ctx, folder.ID, "u1"); err != nil {
		t.Errorf("folder gone after foreign delete attempt: %v", err)
	}

	if err := repo.Delete(ctx, folder.ID, "u1"); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
	if _, err := repo.GetByID(ctx, folder.ID, "u1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("get after delete = %v, want ErrNotFound", err)
	}
}

func TestListByParentRootOnly(t *testing.T) {
	repo, _, _ := openTestRepo(t)
	ctx := context.Background()

	rootA := mustCreate(t, repo, "u1", "a", nil)
	mustCreate(t, repo, "u1", "b", nil)
	mustCreate(t, repo, "u1", "nested", &rootA.ID)
	mustCreate(t, repo, "u2", "other-user-root", nil)

	roots, err := repo.ListByParent(ctx, nil, "u1")
	if err != nil {
		t.Fatalf("list roots: %v", err)
	}
	if len(roots) != 2 {
		t.Fatalf("got %d roots, want 2", len(roots))
	}
	for _, f := range roots {
		if f.ParentID != nil {
			t.Errorf("root listing returned nested folder %q", f.Name)
		}
		if f.UserID != "u1" {
			t.Errorf("root listing returned foreign folder %q", f.Name)
		}
	}
}

func TestListByUserEmpty(t *testing.T) {
	repo, _, _ := openTestRepo(t)

	folders, err := repo.ListByUser(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if folders == nil {
		t.Error("want empty slice, got nil")
	}
	if len(folders) != 0 {
		t.Errorf("got %d folders, want 0", len(folders))
	}
}

func TestFindByParentAndNameLowersSearchTermOnly(t *testing.T) {
	repo, _, _ := openTestRepo(t)
	ctx := context.Background()

	mustCreate(t, repo, "u1", "work", nil)
	mustCreate(t, repo, "u1", "Mixed", nil)

	// Stored lower-case name is found regardless of the query's case
	found, err := repo.FindByParentAndName(ctx, nil, "u1", "WORK")
	if err != nil {
		t.Fatalf("find lower-case stored name: %v", err)
	}
	if found.Name != "work" {
		t.Errorf("found %q, want work", found.Name)
	}

	// Stored mixed-case name never matches: the term is lowered, the
	// stored value is not
	_, err = repo.FindByParentAndName(ctx, nil, "u1", "Mixed")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("find mixed-case stored name = %v, want ErrNotFound", err)
	}
}

func TestReplaceItemsIsFullReplace(t *testing.T) {
	repo, _, clock := openTestRepo(t)
	ctx := context.Background()

	folder := mustCreate(t, repo, "u1", "inbox", nil)

	first := &models.FolderItems{
		ChatIDs: []string{"c1", "c2"},
		FileIDs: []string{"f1"},
		Extra:   map[string]any{"pinned": true},
	}
	clock.Advance(2)
	updated, err := repo.ReplaceItems(ctx, folder.ID, "u1", first)
	if err != nil {
		t.Fatalf("replace items: %v", err)
	}
	if updated.UpdatedAt <= folder.UpdatedAt {
		t.Errorf("updated_at not bumped: %d <= %d", updated.UpdatedAt, folder.UpdatedAt)
	}

	// Unknown keys survive the round trip through the TEXT column
	got, err := repo.GetByID(ctx, folder.ID, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Items == nil || len(got.Items.ChatIDs) != 2 || len(got.Items.FileIDs) != 1 {
		t.Fatalf("items = %+v, want 2 chats / 1 file", got.Items)
	}
	if pinned, ok := got.Items.Extra["pinned"].(bool); !ok || !pinned {
		t.Errorf("extra key lost in round trip: %+v", got.Items.Extra)
	}

	// Second replace drops everything the payload does not carry
	second := &models.FolderItems{ChatIDs: []string{"c9"}}
	if _, err := repo.ReplaceItems(ctx, folder.ID, "u1", second); err != nil {
		t.Fatalf("second replace: %v", err)
	}
	got, err = repo.GetByID(ctx, folder.ID, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Items.ChatIDs) != 1 || got.Items.ChatIDs[0] != "c9" {
		t.Errorf("chat_ids = %v, want [c9]", got.Items.ChatIDs)
	}
	if len(got.Items.FileIDs) != 0 || len(got.Items.Extra) != 0 {
		t.Errorf("replace merged instead of overwriting: %+v", got.Items)
	}
}

func TestExecTxRollsBackOnError(t *testing.T) {
	repo, txManager, _ := openTestRepo(t)
	ctx := context.Background()

	folder := mustCreate(t, repo, "u1", "stable", nil)

	boom := errors.New("boom")
	err := txManager.ExecTx(ctx, func(txCtx context.Context) error {
		if _, err := repo.Rename(txCtx, folder.ID, "u1", "renamed"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("ExecTx = %v, want boom", err)
	}

	got, err := repo.GetByID(ctx, folder.ID, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "stable" {
		t.Errorf("name = %q after rollback, want stable", got.Name)
	}
}
