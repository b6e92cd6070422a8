package sheetService

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"document-service/internal/blobstore"
	"document-service/internal/model/document"
	"document-service/internal/repository/documentRepo"
)

// maxApplyAttempts bounds how many times a structured update is rebased and
// reapplied after losing the version race to another writer.
const maxApplyAttempts = 3

// ContentSaver is the shared per-id serialization point; structured updates
// go through the same compare-and-swap path as editor save callbacks, pinned
// to the version their content basis was read at.
type ContentSaver interface {
	SaveContentAt(ctx context.Context, id uuid.UUID, expected int, data []byte, savedBy string) (*document.Document, error)
}

// Workbook is the decoded tabular view of an xlsx blob. It always carries at
// least one sheet with at least one row, so callers never branch on an
// empty-workbook case.
type Workbook struct {
	Sheets []Sheet `json:"sheets"`
}

type Sheet struct {
	Name string     `json:"name"`
	Rows [][]string `json:"rows"`
}

// SheetUpdate replaces the entire row set of one sheet. Full-replace keeps
// the operation unambiguous under concurrent edits; there is no diff/patch.
type SheetUpdate struct {
	Name string     `json:"name"`
	Rows [][]string `json:"rows"`
}

type Service struct {
	repo  documentRepo.Repository
	store blobstore.Store
	saver ContentSaver
}

func New(repo documentRepo.Repository, store blobstore.Store, saver ContentSaver) *Service {
	return &Service{repo: repo, store: store, saver: saver}
}

func (s *Service) loadWorkbookBytes(ctx context.Context, id uuid.UUID) (*document.Document, []byte, error) {
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if doc.Class != document.ClassXlsx {
		return nil, nil, fmt.Errorf("%w: %s is not a spreadsheet", document.ErrUnsupportedFileType, doc.Class)
	}
	if len(doc.Snapshot) > 0 {
		return doc, doc.Snapshot, nil
	}
	data, err := s.store.Get(ctx, doc.StorageKey)
	if errors.Is(err, blobstore.ErrBlobNotFound) {
		return nil, nil, fmt.Errorf("%w: blob missing for %s", document.ErrNotFound, id)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read workbook blob: %w", err)
	}
	return doc, data, nil
}

// Read decodes the workbook into its sheet/row/cell view.
func (s *Service) Read(ctx context.Context, id uuid.UUID) (*Workbook, error) {
	_, data, err := s.loadWorkbookBytes(ctx, id)
	if err != nil {
		return nil, err
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", document.ErrCorruptDocument, err)
	}
	defer f.Close()

	wb := &Workbook{}
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("%w: sheet %q: %v", document.ErrCorruptDocument, name, err)
		}
		if len(rows) == 0 {
			rows = [][]string{{""}}
		}
		wb.Sheets = append(wb.Sheets, Sheet{Name: name, Rows: rows})
	}
	if len(wb.Sheets) == 0 {
		wb.Sheets = []Sheet{{Name: "Sheet1", Rows: [][]string{{""}}}}
	}
	return wb, nil
}

// Apply replaces the row sets of the targeted sheets, re-serializes the
// workbook, and persists it guarded by the version the workbook was read at.
// A save landing between the read and the write fails the swap, and the whole
// read-validate-replace cycle reruns against the new content, so an
// interleaved writer's changes to non-targeted sheets are never reverted.
func (s *Service) Apply(ctx context.Context, id uuid.UUID, updates []SheetUpdate, editorID string) (*document.Document, error) {
	for attempt := 0; attempt < maxApplyAttempts; attempt++ {
		doc, err := s.applyOnce(ctx, id, updates, editorID)
		if errors.Is(err, document.ErrConcurrentModification) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return doc, nil
	}
	return nil, fmt.Errorf("%w: structured update lost the version race %d times",
		document.ErrConcurrentModification, maxApplyAttempts)
}

func (s *Service) applyOnce(ctx context.Context, id uuid.UUID, updates []SheetUpdate, editorID string) (*document.Document, error) {
	doc, data, err := s.loadWorkbookBytes(ctx, id)
	if err != nil {
		return nil, err
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", document.ErrCorruptDocument, err)
	}
	defer f.Close()

	names := f.GetSheetList()
	for _, upd := range updates {
		if !slices.Contains(names, upd.Name) {
			return nil, fmt.Errorf("%w: %s", document.ErrSheetNotFound, upd.Name)
		}
	}

	for _, upd := range updates {
		if err := replaceRows(f, upd.Name, upd.Rows); err != nil {
			return nil, fmt.Errorf("replace rows in %q: %w", upd.Name, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("serialize workbook: %w", err)
	}
	return s.saver.SaveContentAt(ctx, id, doc.Version, buf.Bytes(), editorID)
}

func replaceRows(f *excelize.File, sheet string, rows [][]string) error {
	existing, err := f.GetRows(sheet)
	if err != nil {
		return err
	}
	// Bottom-up so indices stay valid while rows shift.
	for i := len(existing); i > 0; i-- {
		if err := f.RemoveRow(sheet, i); err != nil {
			return err
		}
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
	}
	return nil
}
