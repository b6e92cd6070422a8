package documentService

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"document-service/internal/blobstore"
	"document-service/internal/model/document"
	"document-service/internal/repository/documentRepo"
	"document-service/pkg/logger"
)

// maxSaveAttempts bounds the compare-and-swap retry loop for content saves.
const maxSaveAttempts = 3

// SnapshotCache is the optional fast path for latest-version bytes.
type SnapshotCache interface {
	Store(ctx context.Context, id uuid.UUID, version int, data []byte) error
	Load(ctx context.Context, id uuid.UUID, version int) ([]byte, bool, error)
	Invalidate(ctx context.Context, id uuid.UUID, version int) error
}

type Service struct {
	repo      documentRepo.Repository
	store     blobstore.Store
	snapshots SnapshotCache
}

func New(repo documentRepo.Repository, store blobstore.Store, snapshots SnapshotCache) *Service {
	return &Service{repo: repo, store: store, snapshots: snapshots}
}

// Incoming is one raw upload payload.
type Incoming struct {
	Name     string
	MimeType string
	Data     []byte
}

// Upload validates and persists a batch of files. The batch is all-or-nothing:
// if any metadata insert fails, every blob and row already written for the
// batch is rolled back before the error surfaces.
func (s *Service) Upload(ctx context.Context, ownerID string, incoming []Incoming) ([]*document.Document, error) {
	if len(incoming) == 0 {
		return nil, document.ErrNoFileProvided
	}

	// Classify everything up front so validation failures reject the batch
	// before any byte hits the store.
	classes := make([]document.MimeClass, len(incoming))
	for i, in := range incoming {
		class, err := document.ClassifyMime(in.MimeType)
		if err != nil {
			return nil, err
		}
		classes[i] = class
	}

	var created []*document.Document
	rollback := func() {
		log := logger.GetLogger(ctx)
		for _, doc := range created {
			if err := s.store.Delete(ctx, doc.StorageKey); err != nil {
				log.Warn("upload rollback: blob delete failed",
					zap.String("locator", doc.StorageKey), zap.Error(err))
			}
			if err := s.repo.Delete(ctx, doc.ID); err != nil && !errors.Is(err, document.ErrNotFound) {
				log.Warn("upload rollback: metadata delete failed",
					zap.String("id", doc.ID.String()), zap.Error(err))
			}
		}
	}

	for i, in := range incoming {
		doc := &document.Document{
			ID:        uuid.New(),
			OwnerID:   ownerID,
			Name:      in.Name,
			Class:     classes[i],
			Size:      int64(len(in.Data)),
			Version:   1,
			CreatedAt: time.Now(),
		}
		doc.StorageKey = blobstore.Locator(doc.ID, doc.Class)
		doc.ContentURL = s.store.PublicURL(doc.StorageKey)

		if err := s.store.Put(ctx, doc.StorageKey, in.Data); err != nil {
			rollback()
			return nil, fmt.Errorf("upload blob %q: %w", in.Name, err)
		}
		created = append(created, doc)

		if err := s.repo.Create(ctx, doc); err != nil {
			rollback()
			return nil, fmt.Errorf("create document record %q: %w", in.Name, err)
		}
	}
	return created, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*document.Document, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]*document.Document, error) {
	return s.repo.ListActive(ctx)
}

func (s *Service) ListTrashed(ctx context.Context) ([]*document.Document, error) {
	return s.repo.ListTrashed(ctx)
}

func (s *Service) ListByOwner(ctx context.Context, ownerID string) ([]*document.Document, error) {
	return s.repo.ListByOwner(ctx, ownerID)
}

func (s *Service) Rename(ctx context.Context, id uuid.UUID, newName string) (*document.Document, error) {
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Rename(ctx, id, newName); err != nil {
		return nil, fmt.Errorf("rename document: %w", err)
	}
	doc.Name = newName
	return doc, nil
}

// SoftDelete moves an active document to trash. Re-deleting a trashed
// document is a no-op success and keeps the original trash timestamp.
func (s *Service) SoftDelete(ctx context.Context, id uuid.UUID) (*document.Document, error) {
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.IsDeleted {
		return doc, nil
	}
	now := time.Now()
	if err := s.repo.SoftDelete(ctx, id, now); err != nil {
		return nil, fmt.Errorf("soft delete: %w", err)
	}
	doc.IsDeleted = true
	doc.DeletedAt = &now
	return doc, nil
}

// Restore moves a trashed document back to active. Unlike SoftDelete it is
// strict: restoring an active document signals a client logic error.
func (s *Service) Restore(ctx context.Context, id uuid.UUID) (*document.Document, error) {
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !doc.IsDeleted {
		return nil, fmt.Errorf("%w: %s", document.ErrNotTrashed, id)
	}
	if err := s.repo.Restore(ctx, id); err != nil {
		return nil, fmt.Errorf("restore: %w", err)
	}
	doc.IsDeleted = false
	doc.DeletedAt = nil
	return doc, nil
}

// RestoreMany restores every trashed id and reports how many actually
// changed state. Ids that are missing or active are skipped silently.
func (s *Service) RestoreMany(ctx context.Context, ids []uuid.UUID) (int64, error) {
	return s.repo.RestoreMany(ctx, ids)
}

// HardDelete purges metadata first, then best-effort deletes the blob.
// Metadata is the source of truth for visibility: if the blob delete fails
// the deletion stands and ErrBlobPurgeFailed is surfaced as a warning for
// the out-of-band cleanup sweep.
func (s *Service) HardDelete(ctx context.Context, id uuid.UUID) error {
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete document record: %w", err)
	}
	if s.snapshots != nil {
		_ = s.snapshots.Invalidate(ctx, id, doc.Version)
	}
	if doc.StorageKey == "" {
		return nil
	}
	if err := s.store.Delete(ctx, doc.StorageKey); err != nil {
		logger.GetLogger(ctx).Warn("hard delete: blob purge failed",
			zap.String("id", id.String()),
			zap.String("locator", doc.StorageKey),
			zap.Error(err))
		return fmt.Errorf("%w: %v", document.ErrBlobPurgeFailed, err)
	}
	return nil
}

// ToggleFavorite flips the favorite flag and returns the updated record so
// callers can render the right message without a second read. It never
// touches the version counter.
func (s *Service) ToggleFavorite(ctx context.Context, id uuid.UUID) (*document.Document, error) {
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	doc.IsFavorite = !doc.IsFavorite
	if err := s.repo.SetFavorite(ctx, id, doc.IsFavorite); err != nil {
		return nil, fmt.Errorf("toggle favorite: %w", err)
	}
	return doc, nil
}

// Download returns the latest bytes, preferring the snapshot cache, then the
// inline snapshot, then the blob store.
func (s *Service) Download(ctx context.Context, id uuid.UUID) ([]byte, *document.Document, error) {
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if s.snapshots != nil {
		if data, ok, err := s.snapshots.Load(ctx, id, doc.Version); err == nil && ok {
			return data, doc, nil
		}
	}
	if len(doc.Snapshot) > 0 {
		return doc.Snapshot, doc, nil
	}
	data, err := s.store.Get(ctx, doc.StorageKey)
	if errors.Is(err, blobstore.ErrBlobNotFound) {
		return nil, nil, fmt.Errorf("%w: blob missing for %s", document.ErrNotFound, id)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read blob: %w", err)
	}
	if s.snapshots != nil {
		_ = s.snapshots.Store(ctx, id, doc.Version, data)
	}
	return data, doc, nil
}

// SaveContent is the serialization point for editor save callbacks. The
// payload is a complete replacement, so each attempt rebases onto whatever
// version is current at write time and compare-and-swaps against it;
// out-of-order or duplicated callbacks can neither lose nor double-apply an
// increment.
func (s *Service) SaveContent(ctx context.Context, id uuid.UUID, data []byte, savedBy string) (*document.Document, error) {
	for attempt := 0; attempt < maxSaveAttempts; attempt++ {
		doc, err := s.repo.GetByID(ctx, id)
		if errors.Is(err, document.ErrNotFound) {
			return nil, fmt.Errorf("%w: record vanished before write", document.ErrSaveReconciliationFailed)
		}
		if err != nil {
			return nil, err
		}

		saved, ok, err := s.saveAt(ctx, doc, data, savedBy)
		if err != nil {
			return nil, err
		}
		if ok {
			return saved, nil
		}
	}
	return nil, fmt.Errorf("%w: save lost the version race %d times", document.ErrConcurrentModification, maxSaveAttempts)
}

// SaveContentAt persists content that was derived from a read of version
// expected. Unlike SaveContent it never rebases: once the stored version has
// moved past expected, the caller's payload was built from content it no
// longer matches, and the save fails with ErrConcurrentModification so the
// caller can re-read and reapply.
func (s *Service) SaveContentAt(ctx context.Context, id uuid.UUID, expected int, data []byte, savedBy string) (*document.Document, error) {
	doc, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, document.ErrNotFound) {
		return nil, fmt.Errorf("%w: record vanished before write", document.ErrSaveReconciliationFailed)
	}
	if err != nil {
		return nil, err
	}
	if doc.Version != expected {
		return nil, fmt.Errorf("%w: version moved from %d to %d",
			document.ErrConcurrentModification, expected, doc.Version)
	}

	saved, ok, err := s.saveAt(ctx, doc, data, savedBy)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: version moved past %d", document.ErrConcurrentModification, expected)
	}
	return saved, nil
}

// saveAt overwrites the blob and compare-and-swaps the version against
// doc.Version. ok is false when a concurrent writer won the swap.
func (s *Service) saveAt(ctx context.Context, doc *document.Document, data []byte, savedBy string) (*document.Document, bool, error) {
	locator := doc.StorageKey
	if locator == "" {
		locator = blobstore.Locator(doc.ID, doc.Class)
	}
	if err := s.store.Put(ctx, locator, data); err != nil {
		return nil, false, fmt.Errorf("%w: blob write: %v", document.ErrSaveReconciliationFailed, err)
	}

	now := time.Now()
	ok, err := s.repo.CompareAndSwapVersion(ctx, doc.ID, doc.Version, document.ContentUpdate{
		Size:     int64(len(data)),
		Snapshot: data,
		SavedAt:  now,
		SavedBy:  savedBy,
	})
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	doc.Version++
	doc.Size = int64(len(data))
	doc.Snapshot = data
	doc.LastSavedAt = &now
	doc.LastSavedBy = savedBy
	if s.snapshots != nil {
		_ = s.snapshots.Store(ctx, doc.ID, doc.Version, data)
	}
	return doc, true, nil
}
