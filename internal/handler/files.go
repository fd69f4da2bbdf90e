package handler

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"drivechat/internal/httputil"
	"drivechat/internal/service"
)

// maxUploadBytes caps the multipart form, slightly above the payload limit
// so the limit check in the service produces the clearer error.
const maxUploadBytes = 64 << 20

// FileHandler exposes the file tree operations over HTTP.
type FileHandler struct {
	files  *service.FileService
	logger *slog.Logger
}

// NewFileHandler creates a file handler.
func NewFileHandler(files *service.FileService, logger *slog.Logger) *FileHandler {
	return &FileHandler{files: files, logger: logger}
}

// HealthCheck handles GET /health
func (h *FileHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createFolderRequest struct {
	Name     string  `json:"name"`
	ParentID *string `json:"parent_id"`
}

type updateNodeRequest struct {
	Name     *string                  `json:"name"`
	ParentID httputil.OptionalString `json:"parent_id"`
}

type batchDeleteRequest struct {
	IDs []string `json:"ids"`
}

type batchMoveRequest struct {
	IDs      []string `json:"ids"`
	ParentID *string  `json:"parent_id"`
}

// parentIDParam reads the optional parent_id query parameter, empty
// meaning the root level.
func parentIDParam(r *http.Request) *string {
	if v := r.URL.Query().Get("parent_id"); v != "" {
		return &v
	}
	return nil
}

// ListFolder handles GET /api/files
func (h *FileHandler) ListFolder(w http.ResponseWriter, r *http.Request) {
	nodes, err := h.files.ListFolder(r.Context(), httputil.GetUserID(r), parentIDParam(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, map[string]any{
		"files": nodes,
		"total": len(nodes),
	})
}

// GetNode handles GET /api/files/{id}
func (h *FileHandler) GetNode(w http.ResponseWriter, r *http.Request) {
	node, err := h.files.GetNode(r.Context(), httputil.GetUserID(r), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, node)
}

// Upload handles POST /api/files as a multipart form with a "file" part
// and an optional "parent_id" field.
func (h *FileHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}
	part, header, err := r.FormFile("file")
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "missing file part")
		return
	}
	defer part.Close()

	data, err := io.ReadAll(part)
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "failed to read file part")
		return
	}

	var parentID *string
	if v := r.FormValue("parent_id"); v != "" {
		parentID = &v
	}

	node, err := h.files.Upload(r.Context(), httputil.GetToken(r), httputil.GetUserID(r), &service.UploadRequest{
		Name:     header.Filename,
		MimeType: header.Header.Get("Content-Type"),
		ParentID: parentID,
		Data:     data,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, node)
}

// CreateFolder handles POST /api/folders
func (h *FileHandler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	var req createFolderRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	node, err := h.files.CreateFolder(r.Context(), httputil.GetUserID(r), req.Name, req.ParentID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, node)
}

// UpdateNode handles PATCH /api/files/{id}. A null parent_id moves the
// node to the root; an absent parent_id keeps its place.
func (h *FileHandler) UpdateNode(w http.ResponseWriter, r *http.Request) {
	var req updateNodeRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == nil && !req.ParentID.Present {
		httputil.RespondError(w, http.StatusBadRequest, "nothing to update")
		return
	}

	node, err := h.files.Move(r.Context(), httputil.GetUserID(r), r.PathValue("id"), &service.MoveRequest{
		NewName: req.Name,
		NewParent: service.ParentField{
			Present: req.ParentID.Present,
			Value:   req.ParentID.Value,
		},
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, node)
}

// DeleteNode handles DELETE /api/files/{id}
func (h *FileHandler) DeleteNode(w http.ResponseWriter, r *http.Request) {
	if err := h.files.Delete(r.Context(), httputil.GetUserID(r), r.PathValue("id")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// BatchDelete handles POST /api/files/batch-delete
func (h *FileHandler) BatchDelete(w http.ResponseWriter, r *http.Request) {
	var req batchDeleteRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.IDs) == 0 {
		httputil.RespondError(w, http.StatusBadRequest, "ids is required")
		return
	}
	deleted, failed := h.files.DeleteMany(r.Context(), httputil.GetUserID(r), req.IDs)
	httputil.RespondJSON(w, http.StatusOK, map[string]any{
		"deleted": deleted,
		"failed":  failed,
	})
}

// BatchMove handles POST /api/files/batch-move
func (h *FileHandler) BatchMove(w http.ResponseWriter, r *http.Request) {
	var req batchMoveRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.IDs) == 0 {
		httputil.RespondError(w, http.StatusBadRequest, "ids is required")
		return
	}
	moved, failed := h.files.MoveMany(r.Context(), httputil.GetUserID(r), req.IDs, req.ParentID)
	httputil.RespondJSON(w, http.StatusOK, map[string]any{
		"moved":  moved,
		"failed": failed,
	})
}

// Download handles GET /api/files/{id}/download
func (h *FileHandler) Download(w http.ResponseWriter, r *http.Request) {
	node, data, err := h.files.Download(r.Context(), httputil.GetUserID(r), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if node.MimeType != nil {
		w.Header().Set("Content-Type", *node.MimeType)
	} else {
		w.Header().Set("Content-Type", "application/octet-stream")
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", node.Name))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logger.Debug("download write failed", "id", node.ID, "error", err)
	}
}

// Search handles GET /api/files/search?q=
func (h *FileHandler) Search(w http.ResponseWriter, r *http.Request) {
	nodes, err := h.files.Search(r.Context(), httputil.GetUserID(r), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, map[string]any{
		"files": nodes,
		"total": len(nodes),
	})
}

// Recent handles GET /api/files/recent
func (h *FileHandler) Recent(w http.ResponseWriter, r *http.Request) {
	nodes, err := h.files.Recent(r.Context(), httputil.GetUserID(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, map[string]any{
		"files": nodes,
		"total": len(nodes),
	})
}
