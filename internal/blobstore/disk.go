package blobstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DiskStore keeps blobs as flat files under an injected root directory.
type DiskStore struct {
	root       string
	publicBase string
}

func NewDisk(root, publicBaseURL string) (*DiskStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root %q: %w", root, err)
	}
	return &DiskStore{
		root:       root,
		publicBase: strings.TrimRight(publicBaseURL, "/"),
	}, nil
}

func (d *DiskStore) path(locator string) string {
	return filepath.Join(d.root, filepath.Base(locator))
}

func (d *DiskStore) Put(_ context.Context, locator string, data []byte) error {
	return os.WriteFile(d.path(locator), data, 0o644)
}

func (d *DiskStore) Get(_ context.Context, locator string) ([]byte, error) {
	data, err := os.ReadFile(d.path(locator))
	if os.IsNotExist(err) {
		return nil, ErrBlobNotFound
	}
	return data, err
}

func (d *DiskStore) Delete(_ context.Context, locator string) error {
	err := os.Remove(d.path(locator))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (d *DiskStore) PublicURL(locator string) string {
	return d.publicBase + "/uploads/" + locator
}
