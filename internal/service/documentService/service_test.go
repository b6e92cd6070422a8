package documentService_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"document-service/internal/blobstore"
	"document-service/internal/model/document"
	"document-service/internal/repository/documentRepo"
	"document-service/internal/service/documentService"
)

func newService(t *testing.T) (*documentService.Service, *documentRepo.MemoryRepository, *blobstore.MemoryStore) {
	t.Helper()
	repo := documentRepo.NewMemory()
	store := blobstore.NewMemory("http://files.local")
	return documentService.New(repo, store, nil), repo, store
}

func uploadOne(t *testing.T, svc *documentService.Service, name, mime string, data []byte) *document.Document {
	t.Helper()
	docs, err := svc.Upload(context.Background(), "user-1", []documentService.Incoming{
		{Name: name, MimeType: mime, Data: data},
	})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	return docs[0]
}

// failingCreateRepo breaks metadata creation after n successful inserts.
type failingCreateRepo struct {
	*documentRepo.MemoryRepository
	allow int
	calls int
}

func (r *failingCreateRepo) Create(ctx context.Context, doc *document.Document) error {
	r.calls++
	if r.calls > r.allow {
		return errors.New("insert failed")
	}
	return r.MemoryRepository.Create(ctx, doc)
}

// failingDeleteStore refuses every blob delete.
type failingDeleteStore struct {
	*blobstore.MemoryStore
}

func (s *failingDeleteStore) Delete(context.Context, string) error {
	return errors.New("storage unavailable")
}

func TestUpload(t *testing.T) {
	ctx := context.Background()

	t.Run("single file starts at version 1 and round-trips bytes", func(t *testing.T) {
		svc, _, store := newService(t)
		doc := uploadOne(t, svc, "report.pdf", "application/pdf", []byte("pdf bytes"))

		assert.Equal(t, 1, doc.Version)
		assert.Equal(t, document.ClassPDF, doc.Class)
		assert.Equal(t, int64(len("pdf bytes")), doc.Size)
		assert.False(t, doc.IsDeleted)
		assert.Nil(t, doc.DeletedAt)
		assert.NotEmpty(t, doc.ContentURL)

		data, err := store.Get(ctx, doc.StorageKey)
		require.NoError(t, err)
		assert.Equal(t, []byte("pdf bytes"), data)
	})

	t.Run("empty batch", func(t *testing.T) {
		svc, _, _ := newService(t)
		_, err := svc.Upload(ctx, "user-1", nil)
		assert.ErrorIs(t, err, document.ErrNoFileProvided)
	})

	t.Run("unsupported mime rejects before any blob write", func(t *testing.T) {
		svc, _, store := newService(t)
		_, err := svc.Upload(ctx, "user-1", []documentService.Incoming{
			{Name: "ok.pdf", MimeType: "application/pdf", Data: []byte("a")},
			{Name: "bad.zip", MimeType: "application/zip", Data: []byte("b")},
		})
		assert.ErrorIs(t, err, document.ErrUnsupportedFileType)
		assert.Equal(t, 0, store.Len())
	})

	t.Run("metadata failure rolls back the whole batch", func(t *testing.T) {
		repo := &failingCreateRepo{MemoryRepository: documentRepo.NewMemory(), allow: 1}
		store := blobstore.NewMemory("http://files.local")
		svc := documentService.New(repo, store, nil)

		_, err := svc.Upload(ctx, "user-1", []documentService.Incoming{
			{Name: "first.pdf", MimeType: "application/pdf", Data: []byte("one")},
			{Name: "second.pdf", MimeType: "application/pdf", Data: []byte("two")},
		})
		require.Error(t, err)

		// No orphan blobs, and the first file's row is gone too.
		assert.Equal(t, 0, store.Len())
		docs, err := repo.ListActive(ctx)
		require.NoError(t, err)
		assert.Empty(t, docs)
	})
}

func TestSoftDeleteAndRestore(t *testing.T) {
	ctx := context.Background()

	t.Run("soft delete sets both fields together", func(t *testing.T) {
		svc, _, _ := newService(t)
		doc := uploadOne(t, svc, "a.pdf", "application/pdf", []byte("a"))

		trashed, err := svc.SoftDelete(ctx, doc.ID)
		require.NoError(t, err)
		assert.True(t, trashed.IsDeleted)
		require.NotNil(t, trashed.DeletedAt)
	})

	t.Run("soft delete is idempotent and keeps the original timestamp", func(t *testing.T) {
		svc, _, _ := newService(t)
		doc := uploadOne(t, svc, "a.pdf", "application/pdf", []byte("a"))

		first, err := svc.SoftDelete(ctx, doc.ID)
		require.NoError(t, err)
		second, err := svc.SoftDelete(ctx, doc.ID)
		require.NoError(t, err)

		assert.True(t, second.IsDeleted)
		require.NotNil(t, second.DeletedAt)
		assert.Equal(t, first.DeletedAt.UnixNano(), second.DeletedAt.UnixNano())
	})

	t.Run("restore clears both fields and leaves version alone", func(t *testing.T) {
		svc, _, _ := newService(t)
		doc := uploadOne(t, svc, "a.pdf", "application/pdf", []byte("a"))
		_, err := svc.SoftDelete(ctx, doc.ID)
		require.NoError(t, err)

		restored, err := svc.Restore(ctx, doc.ID)
		require.NoError(t, err)
		assert.False(t, restored.IsDeleted)
		assert.Nil(t, restored.DeletedAt)
		assert.Equal(t, 1, restored.Version)
	})

	t.Run("restore of an active document fails", func(t *testing.T) {
		svc, _, _ := newService(t)
		doc := uploadOne(t, svc, "a.pdf", "application/pdf", []byte("a"))

		_, err := svc.Restore(ctx, doc.ID)
		assert.ErrorIs(t, err, document.ErrNotTrashed)
	})

	t.Run("restore many counts only trashed ids", func(t *testing.T) {
		svc, _, _ := newService(t)
		a := uploadOne(t, svc, "a.pdf", "application/pdf", []byte("a"))
		b := uploadOne(t, svc, "b.pdf", "application/pdf", []byte("b"))
		c := uploadOne(t, svc, "c.pdf", "application/pdf", []byte("c"))
		_, err := svc.SoftDelete(ctx, a.ID)
		require.NoError(t, err)
		_, err = svc.SoftDelete(ctx, b.ID)
		require.NoError(t, err)

		count, err := svc.RestoreMany(ctx, []uuid.UUID{a.ID, b.ID, c.ID, uuid.New()})
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)
	})
}

func TestHardDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("removes metadata and blob", func(t *testing.T) {
		svc, _, store := newService(t)
		doc := uploadOne(t, svc, "a.pdf", "application/pdf", []byte("a"))

		require.NoError(t, svc.HardDelete(ctx, doc.ID))

		_, err := svc.Get(ctx, doc.ID)
		assert.ErrorIs(t, err, document.ErrNotFound)
		_, err = store.Get(ctx, doc.StorageKey)
		assert.ErrorIs(t, err, blobstore.ErrBlobNotFound)
	})

	t.Run("works from trashed state too", func(t *testing.T) {
		svc, _, _ := newService(t)
		doc := uploadOne(t, svc, "a.pdf", "application/pdf", []byte("a"))
		_, err := svc.SoftDelete(ctx, doc.ID)
		require.NoError(t, err)

		require.NoError(t, svc.HardDelete(ctx, doc.ID))
		_, err = svc.Get(ctx, doc.ID)
		assert.ErrorIs(t, err, document.ErrNotFound)
	})

	t.Run("blob purge failure keeps the metadata deletion", func(t *testing.T) {
		repo := documentRepo.NewMemory()
		store := &failingDeleteStore{MemoryStore: blobstore.NewMemory("http://files.local")}
		svc := documentService.New(repo, store, nil)
		doc := uploadOne(t, svc, "a.pdf", "application/pdf", []byte("a"))

		err := svc.HardDelete(ctx, doc.ID)
		assert.ErrorIs(t, err, document.ErrBlobPurgeFailed)

		_, err = svc.Get(ctx, doc.ID)
		assert.ErrorIs(t, err, document.ErrNotFound)
	})
}

func TestToggleFavorite(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)
	doc := uploadOne(t, svc, "a.pdf", "application/pdf", []byte("a"))

	on, err := svc.ToggleFavorite(ctx, doc.ID)
	require.NoError(t, err)
	assert.True(t, on.IsFavorite)

	off, err := svc.ToggleFavorite(ctx, doc.ID)
	require.NoError(t, err)
	assert.False(t, off.IsFavorite)

	// Metadata-only edits never touch the content-mutation fields.
	assert.Equal(t, 1, off.Version)
	assert.Nil(t, off.LastSavedAt)
	assert.Empty(t, off.LastSavedBy)
}

func TestSaveContent(t *testing.T) {
	ctx := context.Background()

	t.Run("overwrites bytes and bumps version by one", func(t *testing.T) {
		svc, _, store := newService(t)
		doc := uploadOne(t, svc, "a.pdf", "application/pdf", []byte("v1"))

		saved, err := svc.SaveContent(ctx, doc.ID, []byte("v2 content"), "user-2")
		require.NoError(t, err)
		assert.Equal(t, 2, saved.Version)
		assert.Equal(t, "user-2", saved.LastSavedBy)
		require.NotNil(t, saved.LastSavedAt)

		data, err := store.Get(ctx, doc.StorageKey)
		require.NoError(t, err)
		assert.Equal(t, []byte("v2 content"), data)
	})

	t.Run("vanished record", func(t *testing.T) {
		svc, _, _ := newService(t)
		_, err := svc.SaveContent(ctx, uuid.New(), []byte("x"), "user-2")
		assert.ErrorIs(t, err, document.ErrSaveReconciliationFailed)
	})

	t.Run("concurrent saves neither lose nor double-apply increments", func(t *testing.T) {
		svc, _, _ := newService(t)
		doc := uploadOne(t, svc, "a.pdf", "application/pdf", []byte("v1"))

		const k = 16
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			successes int
		)
		for i := 0; i < k; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := svc.SaveContent(ctx, doc.ID, []byte("concurrent"), "user-2")
				if err == nil {
					mu.Lock()
					successes++
					mu.Unlock()
					return
				}
				assert.ErrorIs(t, err, document.ErrConcurrentModification)
			}()
		}
		wg.Wait()

		final, err := svc.Get(ctx, doc.ID)
		require.NoError(t, err)
		assert.Positive(t, successes)
		assert.Equal(t, 1+successes, final.Version)
	})
}

func TestSaveContentAt(t *testing.T) {
	ctx := context.Background()

	t.Run("matching version persists and bumps", func(t *testing.T) {
		svc, _, store := newService(t)
		doc := uploadOne(t, svc, "a.pdf", "application/pdf", []byte("v1"))

		saved, err := svc.SaveContentAt(ctx, doc.ID, 1, []byte("v2 content"), "user-2")
		require.NoError(t, err)
		assert.Equal(t, 2, saved.Version)

		data, err := store.Get(ctx, doc.StorageKey)
		require.NoError(t, err)
		assert.Equal(t, []byte("v2 content"), data)
	})

	t.Run("stale version fails instead of rebasing", func(t *testing.T) {
		svc, _, store := newService(t)
		doc := uploadOne(t, svc, "a.pdf", "application/pdf", []byte("v1"))
		_, err := svc.SaveContent(ctx, doc.ID, []byte("winner"), "user-2")
		require.NoError(t, err)

		_, err = svc.SaveContentAt(ctx, doc.ID, 1, []byte("built from stale content"), "user-3")
		assert.ErrorIs(t, err, document.ErrConcurrentModification)

		got, err := svc.Get(ctx, doc.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, got.Version)
		assert.Equal(t, "user-2", got.LastSavedBy)
		data, err := store.Get(ctx, doc.StorageKey)
		require.NoError(t, err)
		assert.Equal(t, []byte("winner"), data)
	})

	t.Run("vanished record", func(t *testing.T) {
		svc, _, _ := newService(t)
		_, err := svc.SaveContentAt(ctx, uuid.New(), 1, []byte("x"), "user-2")
		assert.ErrorIs(t, err, document.ErrSaveReconciliationFailed)
	})
}

func TestDownload(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)
	doc := uploadOne(t, svc, "a.pdf", "application/pdf", []byte("payload"))

	data, got, err := svc.Download(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)
	assert.Equal(t, doc.ID, got.ID)

	_, _, err = svc.Download(ctx, uuid.New())
	assert.ErrorIs(t, err, document.ErrNotFound)
}
