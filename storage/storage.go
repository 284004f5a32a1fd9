// Package storage hosts uploaded images. Objects are addressed by their public ID,
// which is the object name inside the bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrObjectNotFound is returned when a public ID does not exist at the host.
var ErrObjectNotFound = errors.New("object not found")

// Asset identifies an uploaded object.
type Asset struct {
	PublicID string
	URL      string
}

// ImageHost is the external image store.
type ImageHost interface {
	Upload(ctx context.Context, publicID string, r io.Reader, size int64, contentType string) (Asset, error)
	Open(ctx context.Context, publicID string) (io.ReadCloser, error)
	Delete(ctx context.Context, publicID string) error
}

// ObjectName builds a unique public ID such as posts/7/2024/05/<uuid>.png.
func ObjectName(prefix string, ownerID uint, fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	if ext == "" {
		ext = ".jpg"
	}
	now := time.Now()
	return fmt.Sprintf("%s/%d/%d/%02d/%s%s", prefix, ownerID, now.Year(), now.Month(), uuid.NewString(), ext)
}

// Only raster formats are ever served with an image type.
var rasterTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// ContentType returns the MIME type of a stored object from its name. Anything that is
// not a raster image is application/octet-stream.
func ContentType(fileName string) string {
	if ct, ok := rasterTypes[strings.ToLower(filepath.Ext(fileName))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// IsRaster reports whether contentType is one of the served image types.
func IsRaster(contentType string) bool {
	for _, ct := range rasterTypes {
		if ct == contentType {
			return true
		}
	}
	return false
}
