package app

import (
	"context"
	"net/url"
	"strings"
	"time"
)

const (
	ProxyPathPrefix = "/api/image/"
	PresignTTL      = time.Hour
)

// Presigner is the slice of ObjectStore the resolver needs.
type Presigner interface {
	Presign(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// DeliveryResolver picks the URL a browser uses to fetch an image: a
// same-origin proxy path, or a presigned link straight to the bucket.
// Nothing is cached; every call recomputes.
type DeliveryResolver struct {
	proxy     bool
	presigner Presigner
}

func NewDeliveryResolver(proxy bool, presigner Presigner) *DeliveryResolver {
	return &DeliveryResolver{proxy: proxy, presigner: presigner}
}

func (d *DeliveryResolver) URL(ctx context.Context, key string) (string, error) {
	if d.proxy {
		return ProxyPath(key), nil
	}
	return d.presigner.Presign(ctx, key, PresignTTL)
}

// ProxyPath escapes each segment of key so names holding '?', '#' or '%'
// still route back to the object. The router decodes them again.
func ProxyPath(key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return ProxyPathPrefix + strings.Join(segments, "/")
}

func (d *DeliveryResolver) Proxy() bool {
	return d.proxy
}
