// Package apptest holds an in-memory ObjectStore for tests of the gallery
// and its HTTP handlers.
package apptest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"nkpgallery/src/app"
)

type StoredObject struct {
	Data         []byte
	ContentType  string
	Metadata     map[string]string
	LastModified time.Time
}

// MemoryStore keeps objects in a map. Setting one of the *Err fields makes the
// matching operation fail with a StorageError of the corresponding kind.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string]StoredObject
	puts    []string
	now     func() time.Time

	HeadErr   error
	ListErr   error
	PutErr    error
	DeleteErr error
	GetErr    error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: map[string]StoredObject{}, now: time.Now}
}

// Seed stores an object directly, bypassing PutObject bookkeeping.
func (m *MemoryStore) Seed(key string, data []byte, contentType string, lastModified time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = StoredObject{Data: data, ContentType: contentType, LastModified: lastModified}
}

func (m *MemoryStore) Object(key string) (StoredObject, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	return obj, ok
}

// Puts lists keys passed to PutObject, in call order.
func (m *MemoryStore) Puts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.puts...)
}

func (m *MemoryStore) HeadBucket(ctx context.Context) error {
	if m.HeadErr != nil {
		return &app.StorageError{Kind: app.ErrStorageUnavailable, Op: "head bucket", Err: m.HeadErr}
	}
	return nil
}

func (m *MemoryStore) ListObjects(ctx context.Context, prefix string) ([]app.ObjectInfo, error) {
	if m.ListErr != nil {
		return nil, &app.StorageError{Kind: app.ErrStorage, Op: "list", Key: prefix, Err: m.ListErr}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]app.ObjectInfo, 0, len(m.objects))
	for key, obj := range m.objects {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		result = append(result, app.ObjectInfo{Key: key, Size: int64(len(obj.Data)), LastModified: obj.LastModified})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result, nil
}

func (m *MemoryStore) PutObject(ctx context.Context, key string, body io.Reader, size int64, contentType string, metadata map[string]string) error {
	m.mu.Lock()
	m.puts = append(m.puts, key)
	m.mu.Unlock()
	if m.PutErr != nil {
		return &app.StorageError{Kind: app.ErrStorage, Op: "put", Key: key, Err: m.PutErr}
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	if size >= 0 && int64(len(data)) != size {
		return fmt.Errorf("size mismatch for %s: declared %d, read %d", key, size, len(data))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = StoredObject{Data: data, ContentType: contentType, Metadata: metadata, LastModified: m.now()}
	return nil
}

func (m *MemoryStore) GetObject(ctx context.Context, key string) (*app.Object, error) {
	if m.GetErr != nil {
		return nil, &app.StorageError{Kind: app.ErrStorage, Op: "get", Key: key, Err: m.GetErr}
	}
	obj, ok := m.Object(key)
	if !ok {
		return nil, &app.StorageError{Kind: app.ErrNotFound, Op: "get", Key: key, Err: errors.New("The specified key does not exist.")}
	}
	return &app.Object{
		Body:        io.NopCloser(bytes.NewReader(obj.Data)),
		ContentType: obj.ContentType,
		Size:        int64(len(obj.Data)),
	}, nil
}

func (m *MemoryStore) DeleteObject(ctx context.Context, key string) error {
	if m.DeleteErr != nil {
		return &app.StorageError{Kind: app.ErrStorage, Op: "delete", Key: key, Err: m.DeleteErr}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *MemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := m.Object(key)
	return ok, nil
}

// Presign returns a URL shaped like an S3 presigned GET.
func (m *MemoryStore) Presign(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return fmt.Sprintf("https://s3.example.com/bucket/%s?X-Amz-Expires=%d&X-Amz-Signature=test", key, int(ttl.Seconds())), nil
}
