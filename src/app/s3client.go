package app

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sirupsen/logrus"

	cfg "nkpgallery/src/configuration"
)

// ClientMinio is the part of *minio.Client the gateway uses, so tests can
// substitute it.
type ClientMinio interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expires time.Duration, reqParams url.Values) (*url.URL, error)
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (info minio.UploadInfo, err error)
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (*minio.Object, error)
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

type MinioS3Client struct {
	bucketName string
	client     ClientMinio
	log        *logrus.Entry
}

// NewMinioS3Client creates a gateway backed by minio-go. The region is set
// explicitly so presigning never needs a bucket-location round trip.
func NewMinioS3Client(props cfg.S3Properties, log *logrus.Entry) (*MinioS3Client, error) {
	host, secure, err := props.HostAndSecure()
	if err != nil {
		return nil, err
	}
	opts := &minio.Options{
		Creds:  credentials.NewStaticV4(props.AccessKey, props.SecretKey, ""),
		Secure: secure,
		Region: props.Region,
	}
	if secure && !props.VerifySSL {
		transport, err := minio.DefaultTransport(secure)
		if err != nil {
			return nil, fmt.Errorf("build minio transport: %w", err)
		}
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		opts.Transport = transport
	}

	minioClient, err := minio.New(host, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client for %s: %w", host, err)
	}
	return NewMinioS3ClientWith(minioClient, props.Bucket, log), nil
}

func NewMinioS3ClientWith(client ClientMinio, bucketName string, log *logrus.Entry) *MinioS3Client {
	return &MinioS3Client{
		bucketName: bucketName,
		client:     client,
		log:        log,
	}
}

func (s3 *MinioS3Client) HeadBucket(ctx context.Context) error {
	ok, err := s3.client.BucketExists(ctx, s3.bucketName)
	if err != nil {
		return newStorageError(ErrStorageUnavailable, "head bucket", s3.bucketName, err)
	}
	if !ok {
		return newStorageError(ErrStorageUnavailable, "head bucket", s3.bucketName,
			fmt.Errorf("bucket %s does not exist", s3.bucketName))
	}
	return nil
}

func (s3 *MinioS3Client) ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	result := make([]ObjectInfo, 0)
	objectCh := s3.client.ListObjects(ctx, s3.bucketName, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})
	for object := range objectCh {
		if object.Err != nil {
			return nil, translateMinioError("list", prefix, object.Err)
		}
		result = append(result, ObjectInfo{
			Key:          object.Key,
			Size:         object.Size,
			LastModified: object.LastModified,
		})
	}
	return result, nil
}

func (s3 *MinioS3Client) PutObject(ctx context.Context, key string, body io.Reader, size int64, contentType string, metadata map[string]string) error {
	if contentType == "" {
		contentType = defaultContentType
	}
	_, err := s3.client.PutObject(ctx, s3.bucketName, key, body, size, minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: metadata,
	})
	if err != nil {
		return translateMinioError("put", key, err)
	}
	return nil
}

// GetObject stats the key first: minio reports a missing object only on the
// first read, and the stat also carries the content type.
func (s3 *MinioS3Client) GetObject(ctx context.Context, key string) (*Object, error) {
	info, err := s3.client.StatObject(ctx, s3.bucketName, key, minio.StatObjectOptions{})
	if err != nil {
		return nil, translateMinioError("get", key, err)
	}
	obj, err := s3.client.GetObject(ctx, s3.bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, translateMinioError("get", key, err)
	}
	contentType := info.ContentType
	if contentType == "" {
		contentType = defaultContentType
	}
	return &Object{Body: obj, ContentType: contentType, Size: info.Size}, nil
}

func (s3 *MinioS3Client) DeleteObject(ctx context.Context, key string) error {
	err := s3.client.RemoveObject(ctx, s3.bucketName, key, minio.RemoveObjectOptions{})
	if err != nil {
		return translateMinioError("delete", key, err)
	}
	s3.log.WithField("key", key).Debug("removed object")
	return nil
}

func (s3 *MinioS3Client) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s3.client.StatObject(ctx, s3.bucketName, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	serr := translateMinioError("stat", key, err)
	if errors.Is(serr, ErrNotFound) {
		return false, nil
	}
	return false, serr
}

func (s3 *MinioS3Client) Presign(ctx context.Context, key string, ttl time.Duration) (string, error) {
	u, err := s3.client.PresignedGetObject(ctx, s3.bucketName, key, ttl, url.Values{})
	if err != nil {
		return "", translateMinioError("presign", key, err)
	}
	return u.String(), nil
}

var minioNotFoundCodes = map[string]bool{
	"NoSuchKey":    true,
	"NotFound":     true,
	"NoSuchObject": true,
}

// translateMinioError maps minio's error vocabulary onto the error kinds.
func translateMinioError(op, key string, err error) *StorageError {
	resp := minio.ToErrorResponse(err)
	switch {
	case minioNotFoundCodes[resp.Code], resp.StatusCode == http.StatusNotFound && resp.Code != "NoSuchBucket":
		return newStorageError(ErrNotFound, op, key, err)
	case isNetworkError(err):
		return newStorageError(ErrStorageUnavailable, op, key, err)
	default:
		return newStorageError(ErrStorage, op, key, err)
	}
}

func isNetworkError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr)
}
