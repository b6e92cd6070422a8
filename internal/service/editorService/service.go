package editorService

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"document-service/internal/model/document"
	"document-service/internal/repository/documentRepo"
)

// StatusReadyToSave is the one callback status that triggers persistence.
// The value belongs to the external editor's wire contract.
const StatusReadyToSave = 2

// Fetcher retrieves the saved bytes from the URL the editor hands back.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// ContentSaver is the per-id serialization point shared with the structured
// sheet editor; documentService.SaveContent implements it.
type ContentSaver interface {
	SaveContent(ctx context.Context, id uuid.UUID, data []byte, savedBy string) (*document.Document, error)
}

type HTTPFetcher struct {
	client *http.Client
}

func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{client: &http.Client{Timeout: 30 * time.Second}}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// User identifies the co-editing participant a session is issued to.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type Permissions struct {
	Edit bool `json:"edit"`
}

type SessionDocument struct {
	Title       string      `json:"title"`
	FileType    string      `json:"fileType"`
	URL         string      `json:"url"`
	Key         string      `json:"key"`
	Permissions Permissions `json:"permissions"`
}

type EditorConfig struct {
	CallbackURL string `json:"callbackUrl"`
	User        User   `json:"user"`
}

// Session is the descriptor the external editor consumes. Key changes with
// every version, so the editor can never serve cached content after a save.
type Session struct {
	Document     SessionDocument `json:"document"`
	DocumentType string          `json:"documentType"`
	EditorConfig EditorConfig    `json:"editorConfig"`
	Token        string          `json:"token,omitempty"`
}

// Callback is the editor's inbound save notification.
type Callback struct {
	Status int      `json:"status"`
	URL    string   `json:"url"`
	Users  []string `json:"users"`
}

type Service struct {
	repo         documentRepo.Repository
	saver        ContentSaver
	fetcher      Fetcher
	callbackBase string
	jwtSecret    string
}

func New(repo documentRepo.Repository, saver ContentSaver, fetcher Fetcher, callbackBase, jwtSecret string) *Service {
	return &Service{
		repo:         repo,
		saver:        saver,
		fetcher:      fetcher,
		callbackBase: strings.TrimRight(callbackBase, "/"),
		jwtSecret:    jwtSecret,
	}
}

// CreateSession issues the edit-session descriptor for one document.
func (s *Service) CreateSession(ctx context.Context, id uuid.UUID, user User) (*Session, error) {
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.ContentURL == "" {
		return nil, fmt.Errorf("%w: document %s has no content URL yet", document.ErrNotFound, id)
	}
	if user.Email == "" {
		user.Email = "Anonymous"
	}

	documentType := "text"
	if doc.Class == document.ClassXlsx {
		documentType = "spreadsheet"
	}

	sess := &Session{
		Document: SessionDocument{
			Title:       doc.Name,
			FileType:    string(doc.Class),
			URL:         doc.ContentURL,
			Key:         doc.EditorKey(),
			Permissions: Permissions{Edit: true},
		},
		DocumentType: documentType,
		EditorConfig: EditorConfig{
			CallbackURL: fmt.Sprintf("%s/api/files/save-callback/%s", s.callbackBase, doc.ID),
			User:        user,
		},
	}
	if s.jwtSecret != "" {
		token, err := s.signSession(sess)
		if err != nil {
			return nil, fmt.Errorf("sign session config: %w", err)
		}
		sess.Token = token
	}
	return sess, nil
}

func (s *Service) signSession(sess *Session) (string, error) {
	claims := jwt.MapClaims{
		"document":     sess.Document,
		"documentType": sess.DocumentType,
		"editorConfig": sess.EditorConfig,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.jwtSecret))
}

// HandleSaveCallback ingests the editor's save notification. Any status
// other than StatusReadyToSave is a benign no-op: the editor polls with
// intermediate states and expects a 200 for all of them. On the triggering
// status the saved bytes are fetched and persisted through the shared
// compare-and-swap save path. Returns whether anything was persisted.
func (s *Service) HandleSaveCallback(ctx context.Context, id uuid.UUID, cb Callback) (bool, error) {
	if cb.Status != StatusReadyToSave || cb.URL == "" {
		return false, nil
	}

	data, err := s.fetcher.Fetch(ctx, cb.URL)
	if err != nil {
		// No version bump without a corresponding content change.
		return false, fmt.Errorf("%w: fetch saved content: %v", document.ErrSaveReconciliationFailed, err)
	}

	savedBy := ""
	if len(cb.Users) > 0 {
		savedBy = cb.Users[0]
	}
	if _, err := s.saver.SaveContent(ctx, id, data, savedBy); err != nil {
		return false, err
	}
	return true, nil
}
