package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"alcove/internal/domain"
	"alcove/internal/domain/models"
	"alcove/internal/middleware"
	"alcove/internal/repository/sqlite"
	"alcove/internal/service"
)

// staticVerifier accepts tokens of the form "token-<userid>".
type staticVerifier struct{}

func (staticVerifier) VerifyToken(tokenString string) (*models.AccessClaims, error) {
	userID, ok := strings.CutPrefix(tokenString, "token-")
	if !ok {
		return nil, domain.ErrUnauthorized
	}
	return &models.AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: userID},
	}, nil
}

func (staticVerifier) Close() error { return nil }

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	db, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	logger := slog.Default()
	repo := sqlite.NewFolderRepository(&sqlite.RepositoryConfig{DB: db, Logger: logger})
	svc := service.NewFolderService(repo, sqlite.NewTransactionManager(db), logger)
	h := NewFolderHandler(svc, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.HealthCheck)
	mux.HandleFunc("GET /api/folders", h.ListFolders)
	mux.HandleFunc("POST /api/folders", h.CreateFolder)
	mux.HandleFunc("GET /api/folders/tree", h.GetTree)
	mux.HandleFunc("GET /api/folders/children", h.ListRootChildren)
	mux.HandleFunc("GET /api/folders/{id}", h.GetFolder)
	mux.HandleFunc("PATCH /api/folders/{id}", h.UpdateFolder)
	mux.HandleFunc("DELETE /api/folders/{id}", h.DeleteFolder)
	mux.HandleFunc("GET /api/folders/{id}/children", h.ListChildren)
	mux.HandleFunc("PUT /api/folders/{id}/items", h.UpdateItems)

	var root http.Handler = mux
	root = middleware.Auth(staticVerifier{}, logger)(root)
	root = middleware.Recovery(logger)(root)

	server := httptest.NewServer(root)
	t.Cleanup(server.Close)
	return server
}

func doJSON(t *testing.T, server *httptest.Server, method, path, userID string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, server.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("Authorization", "Bearer token-"+userID)
	}

	resp, err := server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, buf.Bytes()
}

func createFolder(t *testing.T, server *httptest.Server, userID, name string, parentID *string) models.Folder {
	t.Helper()

	body := map[string]any{"name": name}
	if parentID != nil {
		body["parent_id"] = *parentID
	}
	resp, data := doJSON(t, server, http.MethodPost, "/api/folders", userID, body)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create %q: status %d: %s", name, resp.StatusCode, data)
	}

	var folder models.Folder
	if err := json.Unmarshal(data, &folder); err != nil {
		t.Fatalf("decode folder: %v", err)
	}
	return folder
}

func TestHealthNoAuth(t *testing.T) {
	server := newTestServer(t)

	resp, err := server.Client().Get(server.URL + "/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d, want 200", resp.StatusCode)
	}
}

func TestCreateFolderEndpoint(t *testing.T) {
	server := newTestServer(t)

	folder := createFolder(t, server, "u1", "inbox", nil)
	if folder.ID == "" || folder.Name != "inbox" || folder.UserID != "u1" {
		t.Errorf("unexpected folder: %+v", folder)
	}

	// Duplicate name comes back as 409 carrying the existing folder
	resp, data := doJSON(t, server, http.MethodPost, "/api/folders", "u1", map[string]any{"name": "inbox"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate status = %d, want 409", resp.StatusCode)
	}
	var existing models.Folder
	if err := json.Unmarshal(data, &existing); err != nil {
		t.Fatalf("decode conflict body: %v", err)
	}
	if existing.ID != folder.ID {
		t.Errorf("conflict body id = %s, want %s", existing.ID, folder.ID)
	}

	// Invalid name
	resp, _ = doJSON(t, server, http.MethodPost, "/api/folders", "u1", map[string]any{"name": "a/b"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid name status = %d, want 400", resp.StatusCode)
	}
}

func TestGetFolderScoping(t *testing.T) {
	server := newTestServer(t)

	folder := createFolder(t, server, "u1", "secrets", nil)

	resp, _ := doJSON(t, server, http.MethodGet, "/api/folders/"+folder.ID, "u1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("owner get status = %d, want 200", resp.StatusCode)
	}

	// Another user sees 404, not 403: the folder does not exist for them
	resp, _ = doJSON(t, server, http.MethodGet, "/api/folders/"+folder.ID, "u2", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("foreign get status = %d, want 404", resp.StatusCode)
	}

	resp, _ = doJSON(t, server, http.MethodGet, "/api/folders/"+folder.ID, "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("anonymous get status = %d, want 401", resp.StatusCode)
	}
}

func TestUpdateFolderTriState(t *testing.T) {
	server := newTestServer(t)

	parent := createFolder(t, server, "u1", "parent", nil)
	folder := createFolder(t, server, "u1", "wanderer", &parent.ID)

	// Absent parent_id: rename only, parent untouched
	resp, data := doJSON(t, server, http.MethodPatch, "/api/folders/"+folder.ID, "u1",
		map[string]any{"name": "renamed"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("rename status = %d: %s", resp.StatusCode, data)
	}
	var got models.Folder
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Name != "renamed" {
		t.Errorf("name = %q, want renamed", got.Name)
	}
	if got.ParentID == nil || *got.ParentID != parent.ID {
		t.Errorf("absent parent_id moved the folder: %v", got.ParentID)
	}

	// Explicit null: move to root
	resp, data = doJSON(t, server, http.MethodPatch, "/api/folders/"+folder.ID, "u1",
		json.RawMessage(`{"parent_id": null}`))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("move to root status = %d: %s", resp.StatusCode, data)
	}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ParentID != nil {
		t.Errorf("parent_id = %v after null, want root", got.ParentID)
	}

	// Value: move back under the parent
	resp, data = doJSON(t, server, http.MethodPatch, "/api/folders/"+folder.ID, "u1",
		map[string]any{"parent_id": parent.ID})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("move status = %d: %s", resp.StatusCode, data)
	}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ParentID == nil || *got.ParentID != parent.ID {
		t.Errorf("parent_id = %v, want %s", got.ParentID, parent.ID)
	}

	// Empty body has nothing to do
	resp, _ = doJSON(t, server, http.MethodPatch, "/api/folders/"+folder.ID, "u1", map[string]any{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty patch status = %d, want 400", resp.StatusCode)
	}
}

func TestUpdateFolderConflictAndCycle(t *testing.T) {
	server := newTestServer(t)

	a := createFolder(t, server, "u1", "alpha", nil)
	b := createFolder(t, server, "u1", "beta", nil)
	child := createFolder(t, server, "u1", "nested", &a.ID)

	resp, _ := doJSON(t, server, http.MethodPatch, "/api/folders/"+b.ID, "u1",
		map[string]any{"name": "alpha"})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("rename conflict status = %d, want 409", resp.StatusCode)
	}

	resp, _ = doJSON(t, server, http.MethodPatch, "/api/folders/"+a.ID, "u1",
		map[string]any{"parent_id": child.ID})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("cycle move status = %d, want 400", resp.StatusCode)
	}
}

func TestUpdateItemsEndpoint(t *testing.T) {
	server := newTestServer(t)

	folder := createFolder(t, server, "u1", "inbox", nil)

	resp, data := doJSON(t, server, http.MethodPut, "/api/folders/"+folder.ID+"/items", "u1",
		map[string]any{"items": map[string]any{
			"chat_ids": []string{"c1", "c2"},
			"file_ids": []string{"f1"},
		}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("put items status = %d: %s", resp.StatusCode, data)
	}

	var got models.Folder
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Items == nil || len(got.Items.ChatIDs) != 2 || len(got.Items.FileIDs) != 1 {
		t.Errorf("items = %+v, want 2 chats / 1 file", got.Items)
	}
}

func TestDeleteFolderEndpoint(t *testing.T) {
	server := newTestServer(t)

	folder := createFolder(t, server, "u1", "doomed", nil)

	resp, _ := doJSON(t, server, http.MethodDelete, "/api/folders/"+folder.ID, "u2", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("foreign delete status = %d, want 404", resp.StatusCode)
	}

	resp, _ = doJSON(t, server, http.MethodDelete, "/api/folders/"+folder.ID, "u1", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", resp.StatusCode)
	}

	resp, _ = doJSON(t, server, http.MethodDelete, "/api/folders/"+folder.ID, "u1", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", resp.StatusCode)
	}
}

func TestTreeAndChildrenEndpoints(t *testing.T) {
	server := newTestServer(t)

	root := createFolder(t, server, "u1", "root", nil)
	createFolder(t, server, "u1", "kid-b", &root.ID)
	createFolder(t, server, "u1", "kid-a", &root.ID)

	resp, data := doJSON(t, server, http.MethodGet, "/api/folders/tree", "u1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("tree status = %d", resp.StatusCode)
	}
	var tree []models.FolderTreeNode
	if err := json.Unmarshal(data, &tree); err != nil {
		t.Fatalf("decode tree: %v", err)
	}
	if len(tree) != 1 || len(tree[0].Children) != 2 {
		t.Fatalf("tree shape = %+v, want 1 root with 2 children", tree)
	}
	if tree[0].Children[0].Name != "kid-a" {
		t.Errorf("children not in name order: %s first", tree[0].Children[0].Name)
	}

	resp, data = doJSON(t, server, http.MethodGet, fmt.Sprintf("/api/folders/%s/children", root.ID), "u1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("children status = %d", resp.StatusCode)
	}
	var children []models.Folder
	if err := json.Unmarshal(data, &children); err != nil {
		t.Fatalf("decode children: %v", err)
	}
	if len(children) != 2 {
		t.Errorf("got %d children, want 2", len(children))
	}

	resp, data = doJSON(t, server, http.MethodGet, "/api/folders/children", "u1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("root children status = %d", resp.StatusCode)
	}
	var roots []models.Folder
	if err := json.Unmarshal(data, &roots); err != nil {
		t.Fatalf("decode roots: %v", err)
	}
	if len(roots) != 1 || roots[0].ID != root.ID {
		t.Errorf("root children = %+v, want just the root folder", roots)
	}
}
