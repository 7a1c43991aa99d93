package app

import (
	"context"
	"io"
	"time"
)

// ObjectStore is the only way the gallery reaches the bucket. Implementations
// return *StorageError values whose kind is one of ErrNotFound,
// ErrStorageUnavailable or ErrStorage.
type ObjectStore interface {
	HeadBucket(ctx context.Context) error
	ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error)
	PutObject(ctx context.Context, key string, body io.Reader, size int64, contentType string, metadata map[string]string) error
	GetObject(ctx context.Context, key string) (*Object, error)
	DeleteObject(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Presign(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// ObjectInfo is what a listing yields per object.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// Object is an open object body. The caller must close Body.
type Object struct {
	Body        io.ReadCloser
	ContentType string
	Size        int64
}

const defaultContentType = "application/octet-stream"
