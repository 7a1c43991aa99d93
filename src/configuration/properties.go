package configuration

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
)

type (
	Properties struct {
		LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
		LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

		S3      S3Properties         `envPrefix:"S3_"`
		Server  HttpServerProperties
		Gallery GalleryProperties
	}

	HttpServerProperties struct {
		Port            string        `env:"PORT" envDefault:"8080"`
		ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
		WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"60s"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
		CORSOrigins     []string      `env:"HTTP_CORS_ORIGINS" envSeparator:","`
		Pprof           bool          `env:"HTTP_PPROF" envDefault:"false"`
	}

	S3Properties struct {
		Endpoint  string `env:"ENDPOINT"`
		AccessKey string `env:"ACCESS_KEY"`
		SecretKey string `env:"SECRET_KEY"`
		Bucket    string `env:"BUCKET" envDefault:"nkp-gallery-demo"`
		Region    string `env:"REGION" envDefault:"us-east-1"`
		VerifySSL bool   `env:"VERIFY_SSL" envDefault:"true"`
		Driver    string `env:"DRIVER" envDefault:"minio"`
	}

	GalleryProperties struct {
		ImageProxy bool `env:"IMAGE_PROXY" envDefault:"true"`
		// MaxFileSize is expressed in MiB.
		MaxFileSize int `env:"MAX_FILE_SIZE" envDefault:"10"`
	}
)

const (
	DriverMinio = "minio"
	DriverAWS   = "aws"

	defaultS3Host = "s3.amazonaws.com"
)

// ReadProperties parses the process environment and panics on a malformed
// or inconsistent configuration.
func ReadProperties() *Properties {
	config, err := LoadProperties()
	if err != nil {
		panic(fmt.Errorf("read config error: %w", err))
	}
	return config
}

func LoadProperties() (*Properties, error) {
	config := &Properties{}
	if err := env.Parse(config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (p *Properties) Validate() error {
	switch p.S3.Driver {
	case DriverMinio, DriverAWS:
	default:
		return fmt.Errorf("unknown storage driver %q", p.S3.Driver)
	}
	if p.S3.Bucket == "" {
		return fmt.Errorf("bucket name is empty")
	}
	if p.Gallery.MaxFileSize <= 0 {
		return fmt.Errorf("max file size must be positive, got %d", p.Gallery.MaxFileSize)
	}
	return nil
}

// MaxUploadBytes is the upload limit in bytes.
func (g GalleryProperties) MaxUploadBytes() int64 {
	return int64(g.MaxFileSize) * 1024 * 1024
}

// HostAndSecure splits the configured endpoint into the host[:port] form the
// minio client wants and whether TLS is in use. An empty endpoint means AWS.
func (s S3Properties) HostAndSecure() (string, bool, error) {
	if s.Endpoint == "" {
		return defaultS3Host, true, nil
	}
	if !strings.Contains(s.Endpoint, "://") {
		return s.Endpoint, true, nil
	}
	u, err := url.Parse(s.Endpoint)
	if err != nil {
		return "", false, fmt.Errorf("parse endpoint %q: %w", s.Endpoint, err)
	}
	if u.Host == "" {
		return "", false, fmt.Errorf("endpoint %q has no host", s.Endpoint)
	}
	return u.Host, u.Scheme != "http", nil
}

// EndpointURL returns the endpoint with a scheme, or "" for the AWS default.
func (s S3Properties) EndpointURL() string {
	if s.Endpoint == "" || strings.Contains(s.Endpoint, "://") {
		return s.Endpoint
	}
	return "https://" + s.Endpoint
}
