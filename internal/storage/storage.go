// Package storage persists dump reports in object storage.
package storage

import (
	"context"
	"io"
	"path"
	"strings"
	"time"

	"github.com/heap-dump/pkg/compression"
	"github.com/heap-dump/pkg/config"

	apperrors "github.com/heap-dump/pkg/errors"
)

// Storage defines the interface for report storage operations.
type Storage interface {
	// Upload uploads data from reader to the specified key.
	Upload(ctx context.Context, key string, reader io.Reader) error

	// Download opens the object at the specified key.
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// DownloadFile downloads the object at key to a local file.
	DownloadFile(ctx context.Context, key string, localPath string) error

	// Delete deletes the object at the specified key.
	Delete(ctx context.Context, key string) error

	// Exists checks if an object exists at the specified key.
	Exists(ctx context.Context, key string) (bool, error)

	// List returns objects whose key starts with prefix, newest first.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)

	// GetURL returns the URL for the specified key (if applicable).
	GetURL(key string) string
}

// ObjectInfo describes one stored report.
type ObjectInfo struct {
	Key      string
	Size     int64
	Modified time.Time
}

// StorageType represents the type of storage backend.
type StorageType string

const (
	StorageTypeLocal StorageType = "local"
	StorageTypeCOS   StorageType = "cos"
)

// NewStorage creates a new Storage instance based on the configuration.
func NewStorage(cfg *config.StorageConfig) (Storage, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	switch StorageType(cfg.Type) {
	case StorageTypeCOS:
		return NewCOSStorage(&COSConfig{
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			SecretID:  cfg.SecretID,
			SecretKey: cfg.SecretKey,
			Domain:    cfg.Domain,
			Scheme:    cfg.Scheme,
		})
	default:
		return NewLocalStorage(cfg.LocalPath)
	}
}

// ValidateConfig validates the storage configuration.
func ValidateConfig(cfg *config.StorageConfig) error {
	if cfg == nil {
		return apperrors.New(apperrors.CodeConfigError, "storage config is nil")
	}

	storageType := StorageType(cfg.Type)
	if storageType == "" {
		storageType = StorageTypeLocal
	}

	switch storageType {
	case StorageTypeCOS:
		if cfg.Bucket == "" {
			return apperrors.New(apperrors.CodeConfigError, "COS bucket is required")
		}
		if cfg.Region == "" {
			return apperrors.New(apperrors.CodeConfigError, "COS region is required")
		}
		if cfg.SecretID == "" || cfg.SecretKey == "" {
			return apperrors.New(apperrors.CodeConfigError, "COS credentials are required")
		}
	case StorageTypeLocal:
		if cfg.LocalPath == "" {
			return apperrors.New(apperrors.CodeConfigError, "local storage path is required")
		}
	default:
		return apperrors.Newf(apperrors.CodeConfigError, "unsupported storage type: %s", cfg.Type)
	}
	return nil
}

// CleanKey normalizes an object key and rejects keys that escape the store.
func CleanKey(key string) (string, error) {
	key = strings.TrimSpace(strings.ReplaceAll(key, "\\", "/"))
	if key == "" {
		return "", apperrors.New(apperrors.CodeInvalidInput, "empty storage key")
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == ".." {
			return "", apperrors.Newf(apperrors.CodeInvalidInput, "invalid storage key %q", key)
		}
	}
	cleaned := path.Clean(strings.TrimLeft(key, "/"))
	if cleaned == "." {
		return "", apperrors.Newf(apperrors.CodeInvalidInput, "invalid storage key %q", key)
	}
	return cleaned, nil
}

// ContentType returns the MIME type stored with a report key.
func ContentType(key string) string {
	if ct := compression.ForName(key).ContentType(); ct != "" {
		return ct
	}
	if strings.HasSuffix(key, ".json") {
		return "application/json"
	}
	return "application/xml"
}

func canceled(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
