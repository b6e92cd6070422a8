package blobstore

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"document-service/internal/model/document"
)

var ErrBlobNotFound = errors.New("blob not found")

// Store abstracts "save bytes at a locator, read bytes, delete bytes".
// Put is create-or-overwrite: locators are deterministic per record, so a
// retried Put after a failure lands on the same key instead of orphaning a
// new blob. Delete of an absent locator is success, which keeps hard-delete
// idempotent.
type Store interface {
	Put(ctx context.Context, locator string, data []byte) error
	Get(ctx context.Context, locator string) ([]byte, error)
	Delete(ctx context.Context, locator string) error
	PublicURL(locator string) string
}

// Locator derives the deterministic storage key for a record.
func Locator(id uuid.UUID, class document.MimeClass) string {
	return id.String() + class.Ext()
}
