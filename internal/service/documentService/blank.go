package documentService

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"document-service/internal/blobstore"
	"document-service/internal/model/document"
)

// CreateBlank creates an empty document of the given class. The flow is
// two-phase: the metadata row is created first with an empty locator, then
// the blob is written under the record id, then the row is finalized with
// the locator and public URL. The empty-locator state is transient and the
// row is not handed to callers until finalized.
func (s *Service) CreateBlank(ctx context.Context, ownerID string, class document.MimeClass) (*document.Document, error) {
	var (
		data []byte
		err  error
	)
	switch class {
	case document.ClassDocx:
		data, err = blankDocx()
	case document.ClassXlsx:
		data, err = blankXlsx()
	case document.ClassPDF:
		data, err = blankPdf()
	default:
		return nil, fmt.Errorf("%w: blank %s", document.ErrUnsupportedFileType, class)
	}
	if err != nil {
		return nil, fmt.Errorf("generate blank %s: %w", class, err)
	}

	doc := &document.Document{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Name:      "Untitled" + class.Ext(),
		Class:     class,
		Size:      int64(len(data)),
		Version:   1,
		Snapshot:  data,
		CreatedAt: time.Now(),
	}
	if err := s.repo.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create blank record: %w", err)
	}

	locator := blobstore.Locator(doc.ID, class)
	if err := s.store.Put(ctx, locator, data); err != nil {
		_ = s.repo.Delete(ctx, doc.ID)
		return nil, fmt.Errorf("write blank blob: %w", err)
	}

	contentURL := s.store.PublicURL(locator)
	if err := s.repo.FinalizeLocator(ctx, doc.ID, locator, contentURL); err != nil {
		_ = s.store.Delete(ctx, locator)
		_ = s.repo.Delete(ctx, doc.ID)
		return nil, fmt.Errorf("finalize blank record: %w", err)
	}
	doc.StorageKey = locator
	doc.ContentURL = contentURL
	return doc, nil
}

func blankXlsx() ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetCellValue("Sheet1", "A1", ""); err != nil {
		return nil, err
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// blankDocx writes the minimal OOXML package a word processor accepts: the
// content-types part, the package relationship, and a document with one
// empty paragraph. No docx authoring library is carried for a static
// three-part archive.
func blankDocx() ([]byte, error) {
	parts := []struct{ name, body string }{
		{"[Content_Types].xml", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"><Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/><Default Extension="xml" ContentType="application/xml"/><Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/></Types>`},
		{"_rels/.rels", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"><Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/></Relationships>`},
		{"word/document.xml", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p/></w:body></w:document>`},
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, part := range parts {
		w, err := zw.Create(part.name)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write([]byte(part.body)); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// blankPdf emits a one-page PDF skeleton (catalog, page tree, page) with a
// correct xref table built from the actual object offsets.
func blankPdf() ([]byte, error) {
	objects := []string{
		"<</Type/Catalog/Pages 2 0 R>>",
		"<</Type/Pages/Kids[3 0 R]/Count 1>>",
		"<</Type/Page/Parent 2 0 R/MediaBox[0 0 612 792]/Resources<<>>>>",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xrefStart := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<</Size %d/Root 1 0 R>>\nstartxref\n%d\n%%%%EOF\n",
		len(objects)+1, xrefStart)
	return buf.Bytes(), nil
}
