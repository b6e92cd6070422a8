package fileHandler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"document-service/internal/model/document"
	"document-service/internal/service/documentService"
	"document-service/internal/service/editorService"
	"document-service/internal/service/sheetService"
	"document-service/pkg/logger"
)

const maxUploadMemory = 32 << 20

type Handler struct {
	docs   *documentService.Service
	editor *editorService.Service
	sheets *sheetService.Service
}

func New(docs *documentService.Service, editor *editorService.Service, sheets *sheetService.Service) *Handler {
	return &Handler{docs: docs, editor: editor, sheets: sheets}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Route("/api/files", func(r chi.Router) {
		r.Post("/", h.upload)
		r.Get("/", h.list)
		r.Get("/trash", h.listTrash)
		r.Post("/blank/{type}", h.createBlank)
		r.Get("/user/{userID}", h.listByUser)
		r.Patch("/restore-multiple", h.restoreMany)
		r.Patch("/restore/{fileID}", h.restore)
		r.Delete("/permanent/{fileID}", h.hardDelete)
		r.Patch("/favourite/{fileID}", h.toggleFavourite)
		r.Get("/editor-config/{fileID}", h.editorConfig)
		r.Post("/save-callback/{fileID}", h.saveCallback)
		r.Get("/download/{fileID}", h.download)
		r.Get("/sheet/{fileID}", h.readSheet)
		r.Patch("/sheet/{fileID}", h.updateSheet)
		r.Get("/{fileID}", h.get)
		r.Delete("/{fileID}", h.softDelete)
		r.Patch("/{fileID}", h.rename)
	})
	return r
}

// requestUser returns the caller identity set by the auth gateway. Session
// handling itself lives outside this service.
func requestUser(r *http.Request) editorService.User {
	u := editorService.User{
		ID:    r.Header.Get("X-User-Id"),
		Email: r.Header.Get("X-User-Email"),
	}
	if u.ID == "" {
		u.ID = "anonymous"
	}
	return u
}

func parseFileID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "fileID"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid file id: %w", err)
	}
	return id, nil
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, r, document.ErrNoFileProvided)
		return
	}

	var headers []*multipart.FileHeader
	if r.MultipartForm != nil {
		headers = append(headers, r.MultipartForm.File["file"]...)
		headers = append(headers, r.MultipartForm.File["files"]...)
	}

	var incoming []documentService.Incoming
	for _, fh := range headers {
		part, err := fh.Open()
		if err != nil {
			writeError(w, r, err)
			return
		}
		data, err := io.ReadAll(part)
		part.Close()
		if err != nil {
			writeError(w, r, err)
			return
		}
		incoming = append(incoming, documentService.Incoming{
			Name:     fh.Filename,
			MimeType: fh.Header.Get("Content-Type"),
			Data:     data,
		})
	}

	docs, err := h.docs.Upload(r.Context(), requestUser(r).ID, incoming)
	if err != nil {
		writeError(w, r, err)
		return
	}
	msg := "File uploaded successfully"
	if len(docs) > 1 {
		msg = "Multiple files uploaded successfully"
	}
	writeJSON(w, http.StatusCreated, msg, docs)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	docs, err := h.docs.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Files fetched successfully", docs)
}

func (h *Handler) listTrash(w http.ResponseWriter, r *http.Request) {
	docs, err := h.docs.ListTrashed(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Trashed files fetched successfully", docs)
}

func (h *Handler) listByUser(w http.ResponseWriter, r *http.Request) {
	docs, err := h.docs.ListByOwner(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "User files fetched successfully", docs)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := parseFileID(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	doc, err := h.docs.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "File fetched successfully", doc)
}

func (h *Handler) softDelete(w http.ResponseWriter, r *http.Request) {
	id, err := parseFileID(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	doc, err := h.docs.SoftDelete(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "File deleted successfully", doc)
}

func (h *Handler) restore(w http.ResponseWriter, r *http.Request) {
	id, err := parseFileID(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	doc, err := h.docs.Restore(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "File restored successfully", doc)
}

func (h *Handler) restoreMany(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []uuid.UUID `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, err)
		return
	}
	count, err := h.docs.RestoreMany(r.Context(), req.IDs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fmt.Sprintf("%d file(s) restored successfully", count), nil)
}

func (h *Handler) hardDelete(w http.ResponseWriter, r *http.Request) {
	id, err := parseFileID(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	err = h.docs.HardDelete(r.Context(), id)
	if errors.Is(err, document.ErrBlobPurgeFailed) {
		// Metadata is gone; the orphaned blob is a cleanup-job concern.
		writeJSON(w, http.StatusOK, "File permanently deleted; blob purge pending cleanup", nil)
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "File permanently deleted", nil)
}

func (h *Handler) rename(w http.ResponseWriter, r *http.Request) {
	id, err := parseFileID(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	var req struct {
		FileName string `json:"file_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.FileName == "" {
		writeBadRequest(w, errors.New("file_name is required"))
		return
	}
	doc, err := h.docs.Rename(r.Context(), id, req.FileName)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "File updated successfully", doc)
}

func (h *Handler) toggleFavourite(w http.ResponseWriter, r *http.Request) {
	id, err := parseFileID(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	doc, err := h.docs.ToggleFavorite(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	msg := "File removed from favourites"
	if doc.IsFavorite {
		msg = "File marked as favourite"
	}
	writeJSON(w, http.StatusOK, msg, doc)
}

func (h *Handler) createBlank(w http.ResponseWriter, r *http.Request) {
	class, err := document.ParseClass(chi.URLParam(r, "type"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	doc, err := h.docs.CreateBlank(r.Context(), requestUser(r).ID, class)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "File created successfully", doc)
}

func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	id, err := parseFileID(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	data, doc, err := h.docs.Download(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Name))
	w.Header().Set("Content-Type", "application/octet-stream")
	if _, err := w.Write(data); err != nil {
		logger.GetLogger(r.Context()).Warn("download write failed",
			zap.String("id", id.String()), zap.Error(err))
	}
}

func (h *Handler) editorConfig(w http.ResponseWriter, r *http.Request) {
	id, err := parseFileID(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	sess, err := h.editor.CreateSession(r.Context(), id, requestUser(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Editor config generated", sess)
}

func (h *Handler) saveCallback(w http.ResponseWriter, r *http.Request) {
	id, err := parseFileID(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	var cb editorService.Callback
	if err := json.NewDecoder(r.Body).Decode(&cb); err != nil {
		writeBadRequest(w, err)
		return
	}
	saved, err := h.editor.HandleSaveCallback(r.Context(), id, cb)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !saved {
		writeJSON(w, http.StatusOK, "Nothing to save", nil)
		return
	}
	writeJSON(w, http.StatusOK, "File saved successfully", nil)
}

func (h *Handler) readSheet(w http.ResponseWriter, r *http.Request) {
	id, err := parseFileID(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	wb, err := h.sheets.Read(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Workbook fetched successfully", wb)
}

func (h *Handler) updateSheet(w http.ResponseWriter, r *http.Request) {
	id, err := parseFileID(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	var req struct {
		Sheets []sheetService.SheetUpdate `json:"sheets"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, err)
		return
	}
	doc, err := h.sheets.Apply(r.Context(), id, req.Sheets, requestUser(r).ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Workbook updated successfully", doc)
}
