package documentRepo

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"document-service/internal/model/document"
)

// MemoryRepository is an in-process Repository used by service tests and
// single-node runs. CompareAndSwapVersion holds the repository lock for the
// whole check-and-update, matching the SQL implementation's atomicity.
type MemoryRepository struct {
	mu   sync.RWMutex
	docs map[uuid.UUID]*document.Document
}

func NewMemory() *MemoryRepository {
	return &MemoryRepository{docs: make(map[uuid.UUID]*document.Document)}
}

func clone(doc *document.Document) *document.Document {
	cp := *doc
	if doc.DeletedAt != nil {
		t := *doc.DeletedAt
		cp.DeletedAt = &t
	}
	if doc.LastSavedAt != nil {
		t := *doc.LastSavedAt
		cp.LastSavedAt = &t
	}
	cp.Snapshot = append([]byte(nil), doc.Snapshot...)
	return &cp
}

func (r *MemoryRepository) Create(_ context.Context, doc *document.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[doc.ID] = clone(doc)
	return nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id uuid.UUID) (*document.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.docs[id]
	if !ok {
		return nil, document.ErrNotFound
	}
	return clone(doc), nil
}

func (r *MemoryRepository) listWhere(keep func(*document.Document) bool) []*document.Document {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var docs []*document.Document
	for _, doc := range r.docs {
		if keep(doc) {
			docs = append(docs, clone(doc))
		}
	}
	return docs
}

// Listings skip rows still in the blank-create transient state (empty
// StorageKey), matching the SQL implementation.

func (r *MemoryRepository) ListActive(context.Context) ([]*document.Document, error) {
	return r.listWhere(func(d *document.Document) bool {
		return !d.IsDeleted && d.StorageKey != ""
	}), nil
}

func (r *MemoryRepository) ListTrashed(context.Context) ([]*document.Document, error) {
	return r.listWhere(func(d *document.Document) bool {
		return d.IsDeleted && d.StorageKey != ""
	}), nil
}

func (r *MemoryRepository) ListByOwner(_ context.Context, ownerID string) ([]*document.Document, error) {
	return r.listWhere(func(d *document.Document) bool {
		return d.OwnerID == ownerID && !d.IsDeleted && d.StorageKey != ""
	}), nil
}

func (r *MemoryRepository) update(id uuid.UUID, apply func(*document.Document)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok {
		return document.ErrNotFound
	}
	apply(doc)
	return nil
}

func (r *MemoryRepository) Rename(_ context.Context, id uuid.UUID, newName string) error {
	return r.update(id, func(d *document.Document) { d.Name = newName })
}

func (r *MemoryRepository) SetFavorite(_ context.Context, id uuid.UUID, favorite bool) error {
	return r.update(id, func(d *document.Document) { d.IsFavorite = favorite })
}

func (r *MemoryRepository) SoftDelete(_ context.Context, id uuid.UUID, at time.Time) error {
	return r.update(id, func(d *document.Document) {
		d.IsDeleted = true
		t := at
		d.DeletedAt = &t
	})
}

func (r *MemoryRepository) Restore(_ context.Context, id uuid.UUID) error {
	return r.update(id, func(d *document.Document) {
		d.IsDeleted = false
		d.DeletedAt = nil
	})
}

func (r *MemoryRepository) RestoreMany(_ context.Context, ids []uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var restored int64
	for _, id := range ids {
		doc, ok := r.docs[id]
		if !ok || !doc.IsDeleted {
			continue
		}
		doc.IsDeleted = false
		doc.DeletedAt = nil
		restored++
	}
	return restored, nil
}

func (r *MemoryRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[id]; !ok {
		return document.ErrNotFound
	}
	delete(r.docs, id)
	return nil
}

func (r *MemoryRepository) FinalizeLocator(_ context.Context, id uuid.UUID, locator, contentURL string) error {
	return r.update(id, func(d *document.Document) {
		d.StorageKey = locator
		d.ContentURL = contentURL
	})
}

func (r *MemoryRepository) CompareAndSwapVersion(_ context.Context, id uuid.UUID, expected int, upd document.ContentUpdate) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok {
		// Same shape as the SQL variant: a vanished row loses the swap.
		return false, nil
	}
	if doc.Version != expected {
		return false, nil
	}
	doc.Version++
	doc.Size = upd.Size
	doc.Snapshot = append([]byte(nil), upd.Snapshot...)
	t := upd.SavedAt
	doc.LastSavedAt = &t
	doc.LastSavedBy = upd.SavedBy
	return true, nil
}
