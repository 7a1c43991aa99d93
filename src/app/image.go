package app

import (
	"time"

	"github.com/dustin/go-humanize"
)

// ImageRecord is an image as listed back to clients. It is rebuilt from the
// bucket listing on every request.
type ImageRecord struct {
	// Full storage key, images/<timestamp>_<name>.
	Key string `json:"key"`

	// Display name recovered from the key.
	Filename string `json:"filename"`

	// Size in bytes, from object metadata.
	Size int64 `json:"size"`

	// Size for display, e.g. "1.2 MiB".
	SizeHuman string `json:"size_human"`

	LastModified time.Time `json:"last_modified"`

	// Proxy path or presigned URL, resolved at read time.
	URL string `json:"url"`
}

// UploadResult is the outcome for one file of an upload request. Error is set
// only for failures, the other fields only for successes.
type UploadResult struct {
	Filename  string `json:"filename"`
	Key       string `json:"key,omitempty"`
	Size      int64  `json:"size,omitempty"`
	SizeHuman string `json:"size_human,omitempty"`
	URL       string `json:"url,omitempty"`
	Error     string `json:"error,omitempty"`
}

// HumanSize renders a byte count the way listings and upload results show it.
func HumanSize(size int64) string {
	if size < 0 {
		size = 0
	}
	return humanize.IBytes(uint64(size))
}

func (r UploadResult) OK() bool {
	return r.Error == ""
}
