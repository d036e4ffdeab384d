// Package storage keeps appointment-record attachments in an object store.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/GurgoSoft/MIND-sub001/config"
	"github.com/google/uuid"
)

const (
	BackendMinio = "minio"
	BackendGCS   = "gcs"
	BackendNone  = "none"
)

var (
	// ErrDisabled is returned when STORAGE_BACKEND=none.
	ErrDisabled       = errors.New("object storage is not configured")
	ErrObjectNotFound = errors.New("object not found")
)

// Object describes a stored blob.
type Object struct {
	Key         string
	Size        int64
	ContentType string
}

// Backend is implemented by each object store client.
type Backend interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, Object, error)
	Delete(ctx context.Context, key string) error
	Bucket() string
}

// Attachments stores files under a per-record prefix.
type Attachments struct {
	backend Backend
}

func NewAttachments(backend Backend) *Attachments {
	return &Attachments{backend: backend}
}

// Open builds the backend selected by cfg.Backend and ensures its bucket.
// A nil *Attachments is returned for "none"; its methods report ErrDisabled.
func Open(ctx context.Context, cfg config.StorageConfig) (*Attachments, error) {
	var (
		backend Backend
		err     error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case BackendNone, "":
		return nil, nil
	case BackendMinio:
		backend, err = NewMinioClient(cfg.Minio)
	case BackendGCS:
		backend, err = NewGCSClient(ctx, cfg.GCS)
	default:
		return nil, fmt.Errorf("unknown STORAGE_BACKEND %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	if err := backend.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket %s: %w", backend.Bucket(), err)
	}
	return NewAttachments(backend), nil
}

// Upload stores r for recordID and returns the generated key.
func (a *Attachments) Upload(ctx context.Context, recordID, filename string, r io.Reader, size int64, contentType string) (Object, error) {
	if a == nil {
		return Object{}, ErrDisabled
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	key := recordKey(recordID, uuid.NewString()+"-"+sanitizeName(filename))
	if err := a.backend.Put(ctx, key, r, size, contentType); err != nil {
		return Object{}, fmt.Errorf("put %s: %w", key, err)
	}
	return Object{Key: key, Size: size, ContentType: contentType}, nil
}

// Open returns a reader for key. The key must belong to recordID.
func (a *Attachments) Open(ctx context.Context, recordID, key string) (io.ReadCloser, Object, error) {
	if a == nil {
		return nil, Object{}, ErrDisabled
	}
	if !strings.HasPrefix(key, recordKey(recordID, "")) {
		return nil, Object{}, ErrObjectNotFound
	}
	return a.backend.Get(ctx, key)
}

func (a *Attachments) Delete(ctx context.Context, recordID, key string) error {
	if a == nil {
		return ErrDisabled
	}
	if !strings.HasPrefix(key, recordKey(recordID, "")) {
		return ErrObjectNotFound
	}
	return a.backend.Delete(ctx, key)
}

func recordKey(recordID, name string) string {
	return "records/" + recordID + "/" + name
}

func sanitizeName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "file"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
