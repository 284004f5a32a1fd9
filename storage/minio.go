package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/cppla/photoshare/config"
)

// MinIOHost stores images in a MinIO (or any S3 compatible) bucket.
type MinIOHost struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

// NewMinIOHost connects to MinIO and makes sure the bucket exists.
func NewMinIOHost(ctx context.Context, cfg config.AppConfig) (*MinIOHost, error) {
	client, err := minio.New(cfg.MinIOEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinIOAccessKey, cfg.MinIOSecretKey, ""),
		Secure: cfg.MinIOUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.MinIOBucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.MinIOBucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinIOBucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.MinIOBucket, err)
		}
	}

	publicURL := cfg.MinIOPublicURL
	if publicURL == "" {
		scheme := "http"
		if cfg.MinIOUseSSL {
			scheme = "https"
		}
		publicURL = scheme + "://" + cfg.MinIOEndpoint
	}

	return &MinIOHost{
		client:    client,
		bucket:    cfg.MinIOBucket,
		publicURL: strings.TrimRight(publicURL, "/"),
	}, nil
}

// Upload stores the object under publicID.
func (m *MinIOHost) Upload(ctx context.Context, publicID string, r io.Reader, size int64, contentType string) (Asset, error) {
	_, err := m.client.PutObject(ctx, m.bucket, publicID, r, size, minio.PutObjectOptions{
		ContentType: contentType,
		UserMetadata: map[string]string{
			"uploaded-at": time.Now().Format(time.RFC3339),
		},
	})
	if err != nil {
		return Asset{}, fmt.Errorf("upload %s: %w", publicID, err)
	}
	return Asset{PublicID: publicID, URL: m.url(publicID)}, nil
}

// Open streams the object back.
func (m *MinIOHost) Open(ctx context.Context, publicID string) (io.ReadCloser, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, publicID, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", publicID, err)
	}
	// GetObject is lazy; Stat surfaces a missing key.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("stat %s: %w", publicID, err)
	}
	return obj, nil
}

// Delete removes the object. Deleting a missing object is not an error.
func (m *MinIOHost) Delete(ctx context.Context, publicID string) error {
	err := m.client.RemoveObject(ctx, m.bucket, publicID, minio.RemoveObjectOptions{})
	if err != nil {
		var resp minio.ErrorResponse
		if errors.As(err, &resp) && resp.Code == "NoSuchKey" {
			return nil
		}
		return fmt.Errorf("delete %s: %w", publicID, err)
	}
	return nil
}

func (m *MinIOHost) url(publicID string) string {
	return m.publicURL + "/" + m.bucket + "/" + publicID
}
