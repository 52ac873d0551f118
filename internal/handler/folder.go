package handler

import (
	"log/slog"
	"net/http"

	"alcove/internal/domain/models"
	"alcove/internal/domain/services"
	"alcove/internal/httputil"
)

// FolderHandler handles folder HTTP requests
type FolderHandler struct {
	folderService services.FolderService
	logger        *slog.Logger
}

// NewFolderHandler creates a new folder handler
func NewFolderHandler(folderService services.FolderService, logger *slog.Logger) *FolderHandler {
	return &FolderHandler{
		folderService: folderService,
		logger:        logger,
	}
}

// HealthCheck responds to liveness probes
// GET /health
func (h *FolderHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// CreateFolder creates a new folder
// POST /api/folders
// Returns 201 if created, 409 with the existing folder if the name is taken
func (h *FolderHandler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)

	var req services.CreateFolderRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	folder, err := h.folderService.CreateFolder(r.Context(), userID, &req)
	if err != nil {
		// A name conflict returns the folder already holding the name
		HandleCreateConflict(w, err, func(existingID string) (*models.Folder, error) {
			return h.folderService.GetFolder(r.Context(), existingID, userID)
		})
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, folder)
}

// ListFolders lists every folder the user owns (flat)
// GET /api/folders
func (h *FolderHandler) ListFolders(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)

	folders, err := h.folderService.ListFolders(r.Context(), userID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, folders)
}

// GetTree returns the user's folders as a nested tree
// GET /api/folders/tree
func (h *FolderHandler) GetTree(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)

	tree, err := h.folderService.FolderTree(r.Context(), userID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, tree)
}

// GetFolder retrieves a folder by ID
// GET /api/folders/{id}
func (h *FolderHandler) GetFolder(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)

	id, ok := PathParam(w, r, "id", "Folder ID")
	if !ok {
		return
	}

	folder, err := h.folderService.GetFolder(r.Context(), id, userID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, folder)
}

// ListRootChildren lists the user's root-level folders
// GET /api/folders/children
func (h *FolderHandler) ListRootChildren(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)

	folders, err := h.folderService.ListChildren(r.Context(), nil, userID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, folders)
}

// ListChildren lists the immediate children of a folder
// GET /api/folders/{id}/children
func (h *FolderHandler) ListChildren(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)

	id, ok := PathParam(w, r, "id", "Folder ID")
	if !ok {
		return
	}

	folders, err := h.folderService.ListChildren(r.Context(), &id, userID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, folders)
}

// UpdateFolderRequest represents a rename and/or move request.
// ParentID distinguishes "absent" (keep the current parent) from explicit
// null (move to root) from a value (move under that folder).
type UpdateFolderRequest struct {
	Name     *string                 `json:"name,omitempty"`
	ParentID httputil.OptionalString `json:"parent_id"`
}

// UpdateFolder renames and/or moves a folder
// PATCH /api/folders/{id}
func (h *FolderHandler) UpdateFolder(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)

	id, ok := PathParam(w, r, "id", "Folder ID")
	if !ok {
		return
	}

	var req UpdateFolderRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Name == nil && !req.ParentID.Present {
		httputil.RespondError(w, http.StatusBadRequest, "Nothing to update")
		return
	}

	var folder *models.Folder
	var err error

	if req.ParentID.Present {
		folder, err = h.folderService.MoveFolder(r.Context(), id, userID, req.ParentID.Value)
		if err != nil {
			handleError(w, err)
			return
		}
	}

	if req.Name != nil {
		folder, err = h.folderService.RenameFolder(r.Context(), id, userID, *req.Name)
		if err != nil {
			handleError(w, err)
			return
		}
	}

	httputil.RespondJSON(w, http.StatusOK, folder)
}

// UpdateItemsRequest carries the full replacement item payload
type UpdateItemsRequest struct {
	Items *models.FolderItems `json:"items"`
}

// UpdateItems replaces the folder's item payload wholesale
// PUT /api/folders/{id}/items
func (h *FolderHandler) UpdateItems(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)

	id, ok := PathParam(w, r, "id", "Folder ID")
	if !ok {
		return
	}

	var req UpdateItemsRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	folder, err := h.folderService.UpdateItems(r.Context(), id, userID, req.Items)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, folder)
}

// DeleteFolder deletes a folder. Children are left in place with a dangling
// parent reference; referenced chats and files are untouched.
// DELETE /api/folders/{id}
func (h *FolderHandler) DeleteFolder(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)

	id, ok := PathParam(w, r, "id", "Folder ID")
	if !ok {
		return
	}

	if err := h.folderService.DeleteFolder(r.Context(), id, userID); err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
