package app

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/sirupsen/logrus"

	cfg "nkpgallery/src/configuration"
)

// S3API is the part of *s3.Client the AWS gateway uses.
type S3API interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Presigner is satisfied by *s3.PresignClient.
type S3Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

type AWSS3Client struct {
	api       S3API
	presigner S3Presigner
	bucket    string
	log       *logrus.Entry
}

// NewAWSS3Client builds a gateway on aws-sdk-go-v2. Path-style addressing is
// forced whenever a custom endpoint is configured, which is what S3-compatible
// stores expect.
func NewAWSS3Client(ctx context.Context, props cfg.S3Properties, log *logrus.Entry) (*AWSS3Client, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(props.Region),
	}
	if props.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(props.AccessKey, props.SecretKey, "")))
	}
	if !props.VerifySSL {
		// A buildable client keeps AWS_CA_BUNDLE and ca_bundle loadable on top.
		client := awshttp.NewBuildableClient().WithTransportOptions(func(tr *http.Transport) {
			if tr.TLSClientConfig == nil {
				tr.TLSClientConfig = &tls.Config{}
			}
			tr.TLSClientConfig.InsecureSkipVerify = true
		})
		opts = append(opts, config.WithHTTPClient(client))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	endpoint := props.EndpointURL()
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	return NewAWSS3ClientWith(client, s3.NewPresignClient(client), props.Bucket, log), nil
}

func NewAWSS3ClientWith(api S3API, presigner S3Presigner, bucket string, log *logrus.Entry) *AWSS3Client {
	return &AWSS3Client{api: api, presigner: presigner, bucket: bucket, log: log}
}

func (a *AWSS3Client) HeadBucket(ctx context.Context) error {
	_, err := a.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(a.bucket)})
	if err != nil {
		return newStorageError(ErrStorageUnavailable, "head bucket", a.bucket, err)
	}
	return nil
}

func (a *AWSS3Client) ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(a.bucket),
		Prefix: aws.String(prefix),
	}

	result := make([]ObjectInfo, 0)
	paginator := s3.NewListObjectsV2Paginator(a.api, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, translateAWSError("list", prefix, err)
		}
		for _, obj := range page.Contents {
			result = append(result, ObjectInfo{
				Key:          aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
	}
	return result, nil
}

func (a *AWSS3Client) PutObject(ctx context.Context, key string, body io.Reader, size int64, contentType string, metadata map[string]string) error {
	if contentType == "" {
		contentType = defaultContentType
	}
	input := &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	}
	if size >= 0 {
		input.ContentLength = aws.Int64(size)
	}
	if len(metadata) > 0 {
		input.Metadata = metadata
	}

	if _, err := a.api.PutObject(ctx, input); err != nil {
		return translateAWSError("put", key, err)
	}
	return nil
}

func (a *AWSS3Client) GetObject(ctx context.Context, key string) (*Object, error) {
	resp, err := a.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, translateAWSError("get", key, err)
	}
	contentType := aws.ToString(resp.ContentType)
	if contentType == "" {
		contentType = defaultContentType
	}
	size := int64(-1)
	if resp.ContentLength != nil {
		size = *resp.ContentLength
	}
	return &Object{Body: resp.Body, ContentType: contentType, Size: size}, nil
}

func (a *AWSS3Client) DeleteObject(ctx context.Context, key string) error {
	_, err := a.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return translateAWSError("delete", key, err)
	}
	a.log.WithField("key", key).Debug("removed object")
	return nil
}

func (a *AWSS3Client) Exists(ctx context.Context, key string) (bool, error) {
	_, err := a.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	serr := translateAWSError("stat", key, err)
	if errors.Is(serr, ErrNotFound) {
		return false, nil
	}
	return false, serr
}

func (a *AWSS3Client) Presign(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, err := a.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", translateAWSError("presign", key, err)
	}
	return req.URL, nil
}

// translateAWSError maps SDK errors onto the error kinds. Typed S3 errors are
// checked first, then the generic API error code, then the HTTP status.
func translateAWSError(op, key string, err error) *StorageError {
	var (
		noSuchKey *types.NoSuchKey
		notFound  *types.NotFound
		apiErr    smithy.APIError
		respErr   *awshttp.ResponseError
	)
	switch {
	case errors.As(err, &noSuchKey), errors.As(err, &notFound):
		return newStorageError(ErrNotFound, op, key, err)
	case errors.As(err, &apiErr) && (apiErr.ErrorCode() == "NoSuchKey" || apiErr.ErrorCode() == "NotFound"):
		return newStorageError(ErrNotFound, op, key, err)
	case errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound && !isBucketMissing(apiErr):
		return newStorageError(ErrNotFound, op, key, err)
	case respErr == nil && isNetworkError(err):
		return newStorageError(ErrStorageUnavailable, op, key, err)
	default:
		return newStorageError(ErrStorage, op, key, err)
	}
}

func isBucketMissing(apiErr smithy.APIError) bool {
	return apiErr != nil && apiErr.ErrorCode() == "NoSuchBucket"
}
