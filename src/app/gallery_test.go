package app_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nkpgallery/src/app"
	"nkpgallery/src/app/apptest"
	cfg "nkpgallery/src/configuration"
)

// Smallest valid PNG header, enough for content sniffing.
var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func clock() time.Time {
	return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
}

func testConfig(proxy bool) *cfg.Properties {
	return &cfg.Properties{
		S3:      cfg.S3Properties{Bucket: "nkp-gallery-demo", Endpoint: "http://minio:9000"},
		Gallery: cfg.GalleryProperties{ImageProxy: proxy, MaxFileSize: 1},
	}
}

func newGallery(proxy bool) (*app.Gallery, *apptest.MemoryStore) {
	store := apptest.NewMemoryStore()
	log := logrus.New()
	log.SetOutput(io.Discard)
	g := app.NewGallery(testConfig(proxy), store, app.NewKeyCodecWithClock(clock), logrus.NewEntry(log))
	return g, store
}

func file(name, contentType string, data []byte) app.UploadFile {
	return app.UploadFile{
		Filename:    name,
		ContentType: contentType,
		Size:        int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

func TestListExcludesPseudoDirectories(t *testing.T) {
	g, store := newGallery(true)
	store.Seed("images/", nil, "", clock())
	store.Seed("images/20240101T120000_a.png", pngBytes, "image/png", clock())
	store.Seed("images/20240101T120000_b.png", pngBytes, "image/png", clock())

	images, err := g.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, images, 2)
	for _, img := range images {
		assert.False(t, strings.HasSuffix(img.Key, "/"))
	}
}

func TestListSortsNewestFirst(t *testing.T) {
	g, store := newGallery(true)
	t1 := clock()
	t2 := t1.Add(time.Minute)
	store.Seed("images/20240101T120000_old.png", pngBytes, "image/png", t1)
	store.Seed("images/20240101T120100_new.png", pngBytes, "image/png", t2)

	images, err := g.List(context.Background())
	require.NoError(t, err)
	require.Len(t, images, 2)
	assert.Equal(t, "new.png", images[0].Filename)
	assert.Equal(t, "old.png", images[1].Filename)
	assert.Equal(t, "/api/image/images/20240101T120100_new.png", images[0].URL)
	assert.Equal(t, int64(len(pngBytes)), images[0].Size)
	assert.Equal(t, "16 B", images[0].SizeHuman)
}

func TestHumanSize(t *testing.T) {
	assert.Equal(t, "0 B", app.HumanSize(-1))
	assert.Equal(t, "16 B", app.HumanSize(16))
	assert.Equal(t, "1.0 MiB", app.HumanSize(1024*1024))
	assert.Equal(t, "10 MiB", app.HumanSize(10*1024*1024))
}

func TestListPresignedURLs(t *testing.T) {
	g, store := newGallery(false)
	store.Seed("images/20240101T120000_a.png", pngBytes, "image/png", clock())

	images, err := g.List(context.Background())
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Contains(t, images[0].URL, "X-Amz-Expires=3600")
}

func TestListFailure(t *testing.T) {
	g, store := newGallery(true)
	store.ListErr = errors.New("Access Denied")

	_, err := g.List(context.Background())
	assert.ErrorIs(t, err, app.ErrStorage)
	assert.EqualError(t, err, "Access Denied")
}

func TestUploadStoresWithMetadata(t *testing.T) {
	g, store := newGallery(true)

	results, err := g.Upload(context.Background(), []app.UploadFile{file("my cat.png", "image/png", pngBytes)})
	require.NoError(t, err)
	require.Len(t, results, 1)

	res := results[0]
	assert.True(t, res.OK())
	assert.Equal(t, "my cat.png", res.Filename)
	assert.Equal(t, "images/20240101T120000_my_cat.png", res.Key)
	assert.Equal(t, int64(len(pngBytes)), res.Size)
	assert.Equal(t, "16 B", res.SizeHuman)
	assert.Equal(t, "/api/image/images/20240101T120000_my_cat.png", res.URL)

	obj, ok := store.Object(res.Key)
	require.True(t, ok)
	assert.Equal(t, pngBytes, obj.Data)
	assert.Equal(t, "image/png", obj.ContentType)
	assert.Equal(t, "my cat.png", obj.Metadata["original-filename"])
	assert.Equal(t, "image/png", obj.Metadata["detected-content-type"])
}

func TestUploadRejectsDisallowedExtension(t *testing.T) {
	g, store := newGallery(true)

	results, err := g.Upload(context.Background(), []app.UploadFile{file("notes.txt", "text/plain", []byte("hi"))})
	assert.ErrorIs(t, err, app.ErrValidation)
	require.Len(t, results, 1)
	assert.Equal(t, app.UploadResult{Filename: "notes.txt", Error: "File type not allowed"}, results[0])
	assert.Empty(t, store.Puts())
}

func TestUploadRejectsOversize(t *testing.T) {
	g, store := newGallery(true)
	big := make([]byte, 1024*1024+1)

	results, err := g.Upload(context.Background(), []app.UploadFile{file("big.png", "image/png", big)})
	assert.ErrorIs(t, err, app.ErrValidation)
	require.Len(t, results, 1)
	assert.Equal(t, "File exceeds 1MB limit", results[0].Error)
	assert.Empty(t, store.Puts())
}

func TestUploadRejectsUnderstatedSize(t *testing.T) {
	g, store := newGallery(true)
	f := file("big.png", "image/png", make([]byte, 1024*1024+1))
	f.Size = 10

	results, err := g.Upload(context.Background(), []app.UploadFile{f})
	assert.ErrorIs(t, err, app.ErrValidation)
	assert.Equal(t, "File exceeds 1MB limit", results[0].Error)
	assert.Empty(t, store.Puts())
}

func TestUploadUnderstatedSizeCheckedBeforeContentType(t *testing.T) {
	g, store := newGallery(true)
	f := file("big.png", "application/pdf", make([]byte, 1024*1024+1))
	f.Size = 10

	results, err := g.Upload(context.Background(), []app.UploadFile{f})
	assert.ErrorIs(t, err, app.ErrValidation)
	require.Len(t, results, 1)
	assert.Equal(t, "File exceeds 1MB limit", results[0].Error)
	assert.Empty(t, store.Puts())
}

func TestUploadPartialSuccess(t *testing.T) {
	g, store := newGallery(true)

	results, err := g.Upload(context.Background(), []app.UploadFile{
		file("a.png", "image/png", pngBytes),
		file("b.gif", "application/octet-stream", pngBytes),
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].OK())
	assert.Equal(t, "Invalid content type", results[1].Error)
	assert.Equal(t, []string{"images/20240101T120000_a.png"}, store.Puts())
}

func TestUploadEmptyBatch(t *testing.T) {
	g, _ := newGallery(true)
	results, err := g.Upload(context.Background(), nil)
	assert.Nil(t, results)
	assert.ErrorIs(t, err, app.ErrNoFiles)
}

func TestUploadStorageFailureIsPerFile(t *testing.T) {
	g, store := newGallery(true)
	store.PutErr = errors.New("SlowDown")

	results, err := g.Upload(context.Background(), []app.UploadFile{file("a.png", "image/png", pngBytes)})
	require.NoError(t, err)
	assert.Equal(t, "SlowDown", results[0].Error)
}

func TestUploadKeyCollision(t *testing.T) {
	g, store := newGallery(true)
	store.Seed("images/20240101T120000_a.png", []byte("first"), "image/png", clock())

	results, err := g.Upload(context.Background(), []app.UploadFile{file("a.png", "image/png", pngBytes)})
	require.NoError(t, err)
	key := results[0].Key
	assert.NotEqual(t, "images/20240101T120000_a.png", key)
	assert.Regexp(t, `^images/20240101T120000-[0-9a-f]{8}_a\.png$`, key)

	first, _ := store.Object("images/20240101T120000_a.png")
	assert.Equal(t, []byte("first"), first.Data)
	assert.Equal(t, "a.png", app.ParseDisplayName(key))
}

func TestDelete(t *testing.T) {
	g, store := newGallery(true)
	store.Seed("images/20240101T120000_a.png", pngBytes, "image/png", clock())

	require.NoError(t, g.Delete(context.Background(), "images/20240101T120000_a.png"))
	_, ok := store.Object("images/20240101T120000_a.png")
	assert.False(t, ok)

	// no existence check: the backend decides
	assert.NoError(t, g.Delete(context.Background(), "images/never-there.png"))

	store.DeleteErr = errors.New("Access Denied")
	err := g.Delete(context.Background(), "images/x.png")
	assert.ErrorIs(t, err, app.ErrStorage)
	assert.EqualError(t, err, "Access Denied")
}

func TestFetch(t *testing.T) {
	g, store := newGallery(true)
	store.Seed("images/20240101T120000_a.png", pngBytes, "image/png", clock())

	obj, err := g.Fetch(context.Background(), "images/20240101T120000_a.png")
	require.NoError(t, err)
	defer obj.Body.Close()
	data, err := io.ReadAll(obj.Body)
	require.NoError(t, err)
	assert.Equal(t, pngBytes, data)
	assert.Equal(t, "image/png", obj.ContentType)

	_, err = g.Fetch(context.Background(), "images/missing.png")
	assert.ErrorIs(t, err, app.ErrNotFound)
}

func TestHealth(t *testing.T) {
	g, store := newGallery(true)
	assert.NoError(t, g.Health(context.Background()))

	store.HeadErr = errors.New("connection refused")
	err := g.Health(context.Background())
	assert.ErrorIs(t, err, app.ErrStorageUnavailable)
}

func TestInfo(t *testing.T) {
	g, _ := newGallery(true)
	info := g.Info()
	assert.Equal(t, "nkp-gallery-demo", info["bucket"])
	assert.Equal(t, "http://minio:9000", info["endpoint"])
	assert.NotEmpty(t, info["hostname"])
	assert.True(t, strings.HasPrefix(info["color"], "#"))
}
