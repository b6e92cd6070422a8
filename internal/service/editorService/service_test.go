package editorService_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"document-service/internal/blobstore"
	"document-service/internal/model/document"
	"document-service/internal/repository/documentRepo"
	"document-service/internal/service/documentService"
	"document-service/internal/service/editorService"
)

type stubFetcher struct {
	data []byte
	err  error
}

func (f *stubFetcher) Fetch(context.Context, string) ([]byte, error) {
	return f.data, f.err
}

type fixture struct {
	repo   *documentRepo.MemoryRepository
	store  *blobstore.MemoryStore
	docs   *documentService.Service
	editor *editorService.Service
}

func newFixture(t *testing.T, fetcher editorService.Fetcher, secret string) *fixture {
	t.Helper()
	repo := documentRepo.NewMemory()
	store := blobstore.NewMemory("http://files.local")
	docs := documentService.New(repo, store, nil)
	return &fixture{
		repo:   repo,
		store:  store,
		docs:   docs,
		editor: editorService.New(repo, docs, fetcher, "http://api.local/", secret),
	}
}

func (f *fixture) upload(t *testing.T, name, mime string, data []byte) *document.Document {
	t.Helper()
	docs, err := f.docs.Upload(context.Background(), "user-1", []documentService.Incoming{
		{Name: name, MimeType: mime, Data: data},
	})
	require.NoError(t, err)
	return docs[0]
}

func TestCreateSession(t *testing.T) {
	ctx := context.Background()

	t.Run("descriptor fields", func(t *testing.T) {
		f := newFixture(t, &stubFetcher{}, "")
		doc := f.upload(t, "notes.docx",
			"application/vnd.openxmlformats-officedocument.wordprocessingml.document", []byte("x"))

		sess, err := f.editor.CreateSession(ctx, doc.ID, editorService.User{ID: "user-1", Email: "u@example.com"})
		require.NoError(t, err)

		assert.Equal(t, fmt.Sprintf("%s-1", doc.ID), sess.Document.Key)
		assert.Equal(t, "notes.docx", sess.Document.Title)
		assert.Equal(t, "docx", sess.Document.FileType)
		assert.Equal(t, doc.ContentURL, sess.Document.URL)
		assert.True(t, sess.Document.Permissions.Edit)
		assert.Equal(t, "text", sess.DocumentType)
		assert.Equal(t, fmt.Sprintf("http://api.local/api/files/save-callback/%s", doc.ID),
			sess.EditorConfig.CallbackURL)
		assert.Empty(t, sess.Token)
	})

	t.Run("spreadsheets get the spreadsheet editor", func(t *testing.T) {
		f := newFixture(t, &stubFetcher{}, "")
		doc := f.upload(t, "sheet.xlsx",
			"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", []byte("x"))

		sess, err := f.editor.CreateSession(ctx, doc.ID, editorService.User{ID: "user-1"})
		require.NoError(t, err)
		assert.Equal(t, "spreadsheet", sess.DocumentType)
		assert.Equal(t, "Anonymous", sess.EditorConfig.User.Email)
	})

	t.Run("document key changes with the version", func(t *testing.T) {
		f := newFixture(t, &stubFetcher{}, "")
		doc := f.upload(t, "a.pdf", "application/pdf", []byte("v1"))

		_, err := f.docs.SaveContent(ctx, doc.ID, []byte("v2"), "user-1")
		require.NoError(t, err)

		sess, err := f.editor.CreateSession(ctx, doc.ID, editorService.User{ID: "user-1"})
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("%s-2", doc.ID), sess.Document.Key)
	})

	t.Run("config is signed when a secret is set", func(t *testing.T) {
		f := newFixture(t, &stubFetcher{}, "editor-secret")
		doc := f.upload(t, "a.pdf", "application/pdf", []byte("x"))

		sess, err := f.editor.CreateSession(ctx, doc.ID, editorService.User{ID: "user-1"})
		require.NoError(t, err)
		require.NotEmpty(t, sess.Token)

		parsed, err := jwt.Parse(sess.Token, func(*jwt.Token) (any, error) {
			return []byte("editor-secret"), nil
		})
		require.NoError(t, err)
		assert.True(t, parsed.Valid)
	})

	t.Run("unknown document", func(t *testing.T) {
		f := newFixture(t, &stubFetcher{}, "")
		_, err := f.editor.CreateSession(ctx, uuid.New(), editorService.User{ID: "user-1"})
		assert.ErrorIs(t, err, document.ErrNotFound)
	})
}

func TestHandleSaveCallback(t *testing.T) {
	ctx := context.Background()

	t.Run("non-save statuses are benign no-ops", func(t *testing.T) {
		f := newFixture(t, &stubFetcher{data: []byte("should not be used")}, "")
		doc := f.upload(t, "a.pdf", "application/pdf", []byte("v1"))

		for _, status := range []int{0, 1, 3, 4, 6, 7} {
			saved, err := f.editor.HandleSaveCallback(ctx, doc.ID, editorService.Callback{
				Status: status, URL: "http://editor/doc",
			})
			assert.NoError(t, err, "status %d", status)
			assert.False(t, saved, "status %d", status)
		}

		got, err := f.docs.Get(ctx, doc.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, got.Version)
	})

	t.Run("ready-to-save persists and bumps the version", func(t *testing.T) {
		f := newFixture(t, &stubFetcher{data: []byte("edited bytes")}, "")
		doc := f.upload(t, "a.pdf", "application/pdf", []byte("v1"))

		saved, err := f.editor.HandleSaveCallback(ctx, doc.ID, editorService.Callback{
			Status: editorService.StatusReadyToSave,
			URL:    "http://editor/doc",
			Users:  []string{"user-2"},
		})
		require.NoError(t, err)
		assert.True(t, saved)

		got, err := f.docs.Get(ctx, doc.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, got.Version)
		assert.Equal(t, "user-2", got.LastSavedBy)

		data, err := f.store.Get(ctx, doc.StorageKey)
		require.NoError(t, err)
		assert.Equal(t, []byte("edited bytes"), data)
	})

	t.Run("fetch failure leaves the version untouched", func(t *testing.T) {
		f := newFixture(t, &stubFetcher{err: errors.New("connection refused")}, "")
		doc := f.upload(t, "a.pdf", "application/pdf", []byte("v1"))

		_, err := f.editor.HandleSaveCallback(ctx, doc.ID, editorService.Callback{
			Status: editorService.StatusReadyToSave,
			URL:    "http://editor/doc",
		})
		assert.ErrorIs(t, err, document.ErrSaveReconciliationFailed)

		got, err := f.docs.Get(ctx, doc.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, got.Version)
	})

	t.Run("vanished record", func(t *testing.T) {
		f := newFixture(t, &stubFetcher{data: []byte("x")}, "")
		_, err := f.editor.HandleSaveCallback(ctx, uuid.New(), editorService.Callback{
			Status: editorService.StatusReadyToSave,
			URL:    "http://editor/doc",
		})
		assert.ErrorIs(t, err, document.ErrSaveReconciliationFailed)
	})

	t.Run("concurrent callbacks serialize on the version", func(t *testing.T) {
		f := newFixture(t, &stubFetcher{data: []byte("edited")}, "")
		doc := f.upload(t, "a.pdf", "application/pdf", []byte("v1"))

		const k = 10
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			persisted int
		)
		for i := 0; i < k; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				saved, err := f.editor.HandleSaveCallback(ctx, doc.ID, editorService.Callback{
					Status: editorService.StatusReadyToSave,
					URL:    "http://editor/doc",
				})
				if err != nil {
					assert.ErrorIs(t, err, document.ErrConcurrentModification)
					return
				}
				if saved {
					mu.Lock()
					persisted++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		got, err := f.docs.Get(ctx, doc.ID)
		require.NoError(t, err)
		assert.Equal(t, 1+persisted, got.Version)
	})
}
