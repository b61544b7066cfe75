// Package storage provides the content storage capability used for video
// files and course images. References are opaque strings owned by the store.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"learnhub/backend/config"

	"github.com/google/uuid"
)

var ErrBlobNotFound = errors.New("blob not found")

type BlobStore interface {
	// Put stores r under prefix and returns the new reference.
	Put(ctx context.Context, prefix, filename string, r io.Reader) (string, error)
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
	Delete(ctx context.Context, ref string) error
}

// New builds the store selected by STORAGE_BACKEND.
func New(ctx context.Context, cfg *config.Config) (BlobStore, error) {
	switch cfg.StorageBackend {
	case "local", "":
		return NewLocalStore(cfg.StorageDir)
	case "gcs":
		if cfg.GCSBucket == "" {
			return nil, errors.New("GCS_BUCKET is required for the gcs storage backend")
		}
		return NewGCSStore(ctx, cfg.GCSBucket)
	default:
		return nil, fmt.Errorf("unsupported STORAGE_BACKEND %q", cfg.StorageBackend)
	}
}

// newKey returns prefix/<uuid><ext>, keeping only the extension of the
// client-supplied name.
func newKey(prefix, filename string) string {
	ext := strings.ToLower(path.Ext(path.Base(strings.ReplaceAll(filename, "\\", "/"))))
	if len(ext) > 10 {
		ext = ""
	}
	prefix = strings.Trim(path.Clean("/"+prefix), "/")
	if prefix == "" {
		return uuid.NewString() + ext
	}
	return prefix + "/" + uuid.NewString() + ext
}

func contentTypeForKey(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".mp4", ".m4v":
		return "video/mp4"
	case ".webm":
		return "video/webm"
	case ".mov":
		return "video/quicktime"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}

// ContentType guesses a MIME type from a reference.
func ContentType(ref string) string { return contentTypeForKey(ref) }
