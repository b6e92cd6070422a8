package document

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MimeClass is the closed set of file kinds the service accepts.
type MimeClass string

const (
	ClassPDF  MimeClass = "pdf"
	ClassDocx MimeClass = "docx"
	ClassXlsx MimeClass = "xlsx"
	ClassPNG  MimeClass = "png"
	ClassJPG  MimeClass = "jpg"
	ClassWebp MimeClass = "webp"
)

// ClassifyMime maps a MIME type onto the closed class set. Anything outside
// the set is a hard failure, never a silent default.
func ClassifyMime(mimeType string) (MimeClass, error) {
	switch {
	case strings.Contains(mimeType, "pdf"):
		return ClassPDF, nil
	case strings.Contains(mimeType, "msword"), strings.Contains(mimeType, "wordprocessingml"):
		return ClassDocx, nil
	case strings.Contains(mimeType, "excel"), strings.Contains(mimeType, "spreadsheetml"):
		return ClassXlsx, nil
	case strings.Contains(mimeType, "image/png"):
		return ClassPNG, nil
	case strings.Contains(mimeType, "image/jpg"), strings.Contains(mimeType, "image/jpeg"):
		return ClassJPG, nil
	case strings.Contains(mimeType, "image/webp"):
		return ClassWebp, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFileType, mimeType)
}

// ParseClass validates a bare class name ("docx", "xlsx", ...).
func ParseClass(s string) (MimeClass, error) {
	switch c := MimeClass(strings.ToLower(s)); c {
	case ClassPDF, ClassDocx, ClassXlsx, ClassPNG, ClassJPG, ClassWebp:
		return c, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFileType, s)
}

func (c MimeClass) Ext() string {
	return "." + string(c)
}

// Document is the metadata record for one stored file. StorageKey is the
// blob locator and is never serialized to clients; ContentURL is the public
// identity derived from it.
type Document struct {
	ID          uuid.UUID  `json:"id"`
	OwnerID     string     `json:"owner_id"`
	Name        string     `json:"file_name"`
	Class       MimeClass  `json:"file_type"`
	Size        int64      `json:"file_size"`
	StorageKey  string     `json:"-"`
	ContentURL  string     `json:"file_url"`
	Version     int        `json:"version"`
	Snapshot    []byte     `json:"-"`
	IsFavorite  bool       `json:"is_favorite"`
	IsDeleted   bool       `json:"is_deleted"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
	LastSavedAt *time.Time `json:"last_saved_at,omitempty"`
	LastSavedBy string     `json:"last_saved_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// EditorKey is the cache-busting document key the external editor sees.
// It changes with every version so the editor never serves stale content.
func (d *Document) EditorKey() string {
	return fmt.Sprintf("%s-%d", d.ID, d.Version)
}

// ContentUpdate is the only update variant allowed to reach the version
// counter. Metadata-only edits (rename, favorite) have their own repository
// operations and cannot bump the version by construction.
type ContentUpdate struct {
	Size     int64
	Snapshot []byte
	SavedAt  time.Time
	SavedBy  string
}
