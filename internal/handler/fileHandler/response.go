package fileHandler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"document-service/internal/model/document"
	"document-service/pkg/logger"
)

type response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response{Success: true, Message: message, Data: data})
}

func writeBadRequest(w http.ResponseWriter, err error) {
	writeFailure(w, http.StatusBadRequest, err)
}

func writeFailure(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response{Success: false, Message: err.Error()})
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.GetLogger(r.Context()).Error("request failed",
			zap.String("path", r.URL.Path), zap.Error(err))
		writeFailure(w, status, errors.New("internal server error"))
		return
	}
	writeFailure(w, status, err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, document.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, document.ErrNoFileProvided),
		errors.Is(err, document.ErrUnsupportedFileType),
		errors.Is(err, document.ErrSheetNotFound),
		errors.Is(err, document.ErrCorruptDocument):
		return http.StatusBadRequest
	case errors.Is(err, document.ErrNotTrashed),
		errors.Is(err, document.ErrConcurrentModification):
		return http.StatusConflict
	case errors.Is(err, document.ErrSaveReconciliationFailed):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
