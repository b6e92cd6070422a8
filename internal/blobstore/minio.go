package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type MinioConfig struct {
	Endpoint      string `env:"MINIO_ENDPOINT" env-default:"minio:9000"`
	BucketName    string `env:"MINIO_BUCKET_NAME" env-default:"documents"`
	AccessKey     string `env:"MINIO_ACCESS_KEY" env-default:"admin"`
	SecretKey     string `env:"MINIO_SECRET_KEY"`
	UseSSL        bool   `env:"MINIO_USE_SSL" env-default:"false"`
	PublicBaseURL string `env:"MINIO_PUBLIC_BASE_URL" env-default:"http://localhost:9000"`
}

// MinioStore keeps blobs in an S3-compatible bucket.
type MinioStore struct {
	client     *minio.Client
	bucket     string
	publicBase string
}

func NewMinio(ctx context.Context, cfg MinioConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	if err := client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{}); err != nil {
		exists, errBucketExists := client.BucketExists(ctx, cfg.BucketName)
		if !(errBucketExists == nil && exists) {
			return nil, fmt.Errorf("create bucket %q: %w", cfg.BucketName, err)
		}
	}

	return &MinioStore{
		client:     client,
		bucket:     cfg.BucketName,
		publicBase: strings.TrimRight(cfg.PublicBaseURL, "/"),
	}, nil
}

func (m *MinioStore) Put(ctx context.Context, locator string, data []byte) error {
	_, err := m.client.PutObject(ctx, m.bucket, locator,
		bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{})
	return err
}

func (m *MinioStore) Get(ctx context.Context, locator string) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, locator, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		var resp minio.ErrorResponse
		if errors.As(err, &resp) && resp.Code == "NoSuchKey" {
			return nil, ErrBlobNotFound
		}
		return nil, err
	}
	return data, nil
}

func (m *MinioStore) Delete(ctx context.Context, locator string) error {
	// RemoveObject on a missing key is already a no-op success.
	return m.client.RemoveObject(ctx, m.bucket, locator, minio.RemoveObjectOptions{})
}

func (m *MinioStore) PublicURL(locator string) string {
	return m.publicBase + "/" + m.bucket + "/" + locator
}
