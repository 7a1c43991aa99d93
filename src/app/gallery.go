package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/sirupsen/logrus"

	cfg "nkpgallery/src/configuration"
)

const (
	metaOriginalFilename = "original-filename"
	metaDetectedType     = "detected-content-type"
)

// ErrNoValidFiles is returned by Upload when the request carried no files or
// every file failed validation.
var ErrNoValidFiles = &ValidationError{Reason: "No valid files uploaded"}

// ErrNoFiles is returned by Upload for an empty batch.
var ErrNoFiles = &ValidationError{Reason: "No file provided"}

// Gallery implements the list, upload, delete, fetch and health operations
// on top of an ObjectStore. It holds no state between requests.
type Gallery struct {
	store     ObjectStore
	validator *UploadValidator
	keys      *KeyCodec
	delivery  *DeliveryResolver
	bucket    string
	endpoint  string
	log       *logrus.Entry
}

func NewGallery(config *cfg.Properties, store ObjectStore, keys *KeyCodec, log *logrus.Entry) *Gallery {
	return &Gallery{
		store:     store,
		validator: NewUploadValidator(config.Gallery.MaxUploadBytes()),
		keys:      keys,
		delivery:  NewDeliveryResolver(config.Gallery.ImageProxy, store),
		bucket:    config.S3.Bucket,
		endpoint:  config.S3.Endpoint,
		log:       log,
	}
}

// NewObjectStore picks the gateway backend named by the configuration.
func NewObjectStore(ctx context.Context, props cfg.S3Properties, log *logrus.Entry) (ObjectStore, error) {
	if props.Driver == cfg.DriverAWS {
		client, err := NewAWSS3Client(ctx, props, log)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
	client, err := NewMinioS3Client(props, log)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (g *Gallery) Bucket() string {
	return g.bucket
}

// Info reports pod identity together with the bucket being served.
func (g *Gallery) Info() map[string]string {
	pod := CurrentPod()
	return map[string]string{
		"hostname": pod.Hostname,
		"color":    pod.Color,
		"bucket":   g.bucket,
		"endpoint": g.endpoint,
	}
}

func (g *Gallery) Health(ctx context.Context) error {
	if err := g.store.HeadBucket(ctx); err != nil {
		g.log.WithError(err).Warn("bucket unreachable")
		return err
	}
	return nil
}

// List returns the images under the images/ prefix, newest first.
func (g *Gallery) List(ctx context.Context) ([]ImageRecord, error) {
	objects, err := g.store.ListObjects(ctx, ImagePrefix)
	if err != nil {
		return nil, err
	}

	images := make([]ImageRecord, 0, len(objects))
	for _, obj := range objects {
		if strings.HasSuffix(obj.Key, "/") {
			continue
		}
		url, err := g.delivery.URL(ctx, obj.Key)
		if err != nil {
			return nil, err
		}
		images = append(images, ImageRecord{
			Key:          obj.Key,
			Filename:     ParseDisplayName(obj.Key),
			Size:         obj.Size,
			SizeHuman:    HumanSize(obj.Size),
			LastModified: obj.LastModified,
			URL:          url,
		})
	}
	sort.SliceStable(images, func(i, j int) bool {
		return images[i].LastModified.After(images[j].LastModified)
	})
	return images, nil
}

// Upload stores each valid file and reports one result per file. A file that
// fails does not stop the rest of the batch. The error is non-nil only when
// the batch is empty or no file passed validation; results are returned in
// that case too.
func (g *Gallery) Upload(ctx context.Context, files []UploadFile) ([]UploadResult, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}

	results := make([]UploadResult, 0, len(files))
	accepted := 0
	for _, file := range files {
		result, valid := g.uploadOne(ctx, file)
		if valid {
			accepted++
		}
		results = append(results, result)
	}
	if accepted == 0 {
		return results, ErrNoValidFiles
	}
	return results, nil
}

// uploadOne reports whether the file passed validation alongside its result.
func (g *Gallery) uploadOne(ctx context.Context, file UploadFile) (UploadResult, bool) {
	log := g.log.WithField("filename", file.Filename)
	failed := func(err error) UploadResult {
		return UploadResult{Filename: file.Filename, Error: err.Error()}
	}

	rejected := func(err error) (UploadResult, bool) {
		log.WithField("reason", err.Error()).Info("upload rejected")
		return failed(err), false
	}

	// The measured size is checked before the content type, same as the
	// declared one.
	if err := g.validator.CheckHeader(file); err != nil {
		return rejected(err)
	}
	data, readErr := g.readBody(file)
	if errors.Is(readErr, ErrValidation) {
		return rejected(readErr)
	}
	if err := g.validator.CheckContentType(file); err != nil {
		return rejected(err)
	}
	if readErr != nil {
		log.WithError(readErr).Warn("could not read upload")
		return failed(readErr), true
	}

	key, err := g.freeKey(ctx, file.Filename)
	if err != nil {
		log.WithError(err).Warn("could not check key")
		return failed(err), true
	}

	metadata := map[string]string{metaOriginalFilename: file.Filename}
	detected := mimetype.Detect(data).String()
	metadata[metaDetectedType] = detected
	if !mimetype.EqualsAny(detected, file.ContentType) {
		log.WithFields(logrus.Fields{"declared": file.ContentType, "detected": detected}).
			Warn("declared content type does not match content")
	}

	err = g.store.PutObject(ctx, key, bytes.NewReader(data), int64(len(data)), file.ContentType, metadata)
	if err != nil {
		log.WithError(err).WithField("key", key).Error("put failed")
		return failed(err), true
	}

	url, err := g.delivery.URL(ctx, key)
	if err != nil {
		log.WithError(err).WithField("key", key).Error("stored but url resolution failed")
		return failed(err), true
	}

	size := int64(len(data))
	log.WithField("key", key).Infof("stored %s", HumanSize(size))
	return UploadResult{
		Filename:  file.Filename,
		Key:       key,
		Size:      size,
		SizeHuman: HumanSize(size),
		URL:       url,
	}, true
}

// readBody reads at most one byte past the limit, so an understated size
// cannot smuggle a larger body through.
func (g *Gallery) readBody(file UploadFile) ([]byte, error) {
	if file.Open == nil {
		return nil, fmt.Errorf("file %s has no body", file.Filename)
	}
	body, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, g.validator.MaxBytes()+1))
	if err != nil {
		return nil, err
	}
	if err := g.validator.CheckSize(file.Filename, int64(len(data))); err != nil {
		return nil, err
	}
	return data, nil
}

// freeKey derives the key for filename and, if an object already sits there,
// switches to a disambiguated key instead of overwriting it.
func (g *Gallery) freeKey(ctx context.Context, filename string) (string, error) {
	key := g.keys.DeriveKey(filename)
	taken, err := g.store.Exists(ctx, key)
	if err != nil {
		return "", err
	}
	if !taken {
		return key, nil
	}
	alt := g.keys.DisambiguatedKey(filename)
	g.log.WithFields(logrus.Fields{"key": key, "alt": alt}).Info("key collision")
	return alt, nil
}

// Delete removes key without checking that it exists first; whatever the
// backend reports is passed on.
func (g *Gallery) Delete(ctx context.Context, key string) error {
	if err := g.store.DeleteObject(ctx, key); err != nil {
		g.log.WithError(err).WithField("key", key).Error("delete failed")
		return err
	}
	g.log.WithField("key", key).Info("deleted")
	return nil
}

// Fetch opens the object for streaming. The caller closes the body.
func (g *Gallery) Fetch(ctx context.Context, key string) (*Object, error) {
	obj, err := g.store.GetObject(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			g.log.WithError(err).WithField("key", key).Error("fetch failed")
		}
		return nil, err
	}
	return obj, nil
}
