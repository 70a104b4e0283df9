// Package storage holds the module metadata of each repository as an
// object blob, on the local filesystem or in a MinIO bucket.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/rpm-software-management/libdnf-sub006/internal/config"
)

// ErrNotFound is returned by Get for a missing object.
var ErrNotFound = errors.New("object not found")

// Provider is an object store.
type Provider interface {
	// Put stores size bytes from reader under key.
	Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	// Get opens the object under key. The caller closes the reader.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes key; removing a missing key is not an error.
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// New returns the provider selected by cfg.StorageType.
func New(ctx context.Context, cfg config.Config, log *zap.Logger) (Provider, error) {
	if log == nil {
		log = zap.NewNop()
	}
	storageType := strings.ToLower(cfg.StorageType)
	log.Info("initializing storage provider", zap.String("type", storageType))

	switch storageType {
	case "minio":
		p, err := NewMinioStorage(ctx, cfg, log)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Minio storage: %w", err)
		}
		return p, nil
	case "local":
		p, err := NewLocalStorage(cfg.LocalStoragePath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize local storage: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("invalid STORAGE_TYPE: %s. Must be 'minio' or 'local'", cfg.StorageType)
	}
}

const metadataContentType = "application/x-yaml"

// MetadataKey is the object key of a repository's module metadata.
func MetadataKey(repoID string) string {
	return "repos/" + repoID + "/modules.yaml"
}

// ReadMetadata returns the module metadata of repoID. A repository without
// metadata yields ErrNotFound.
func ReadMetadata(ctx context.Context, p Provider, repoID string) ([]byte, error) {
	key := MetadataKey(repoID)
	ok, err := p.Exists(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("metadata of repo %s: %w", repoID, ErrNotFound)
	}
	rc, err := p.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// WriteMetadata replaces the module metadata of repoID.
func WriteMetadata(ctx context.Context, p Provider, repoID string, raw []byte) error {
	return p.Put(ctx, MetadataKey(repoID), bytes.NewReader(raw), int64(len(raw)), metadataContentType)
}

// DeleteMetadata removes the module metadata of repoID.
func DeleteMetadata(ctx context.Context, p Provider, repoID string) error {
	return p.Delete(ctx, MetadataKey(repoID))
}
