package document

import "errors"

var (
	ErrNotFound                 = errors.New("document not found")
	ErrUnsupportedFileType      = errors.New("unsupported file type")
	ErrNoFileProvided           = errors.New("no file provided")
	ErrNotTrashed               = errors.New("document is not in trash")
	ErrSheetNotFound            = errors.New("sheet not found")
	ErrCorruptDocument          = errors.New("corrupt document")
	ErrSaveReconciliationFailed = errors.New("save reconciliation failed")
	// ErrBlobPurgeFailed is a non-fatal warning: the metadata row is gone,
	// the leftover blob is a cleanup-job concern.
	ErrBlobPurgeFailed        = errors.New("blob purge failed")
	ErrConcurrentModification = errors.New("concurrent modification")
)
