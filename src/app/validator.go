package app

import (
	"fmt"
	"io"
	"path"
	"strings"
)

// Rejection messages returned to clients.
const (
	ReasonNoFilename      = "No filename"
	ReasonTypeNotAllowed  = "File type not allowed"
	ReasonInvalidMimeType = "Invalid content type"
)

var (
	allowedExtensions = map[string]bool{
		"jpg":  true,
		"jpeg": true,
		"png":  true,
		"gif":  true,
		"webp": true,
	}
	allowedContentTypes = map[string]bool{
		"image/jpeg": true,
		"image/png":  true,
		"image/gif":  true,
		"image/webp": true,
	}
)

// UploadFile is one file of an upload request as the HTTP layer hands it over.
// Size is the length the client sent; Open yields the body.
type UploadFile struct {
	Filename    string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

type UploadValidator struct {
	maxBytes int64
}

func NewUploadValidator(maxBytes int64) *UploadValidator {
	return &UploadValidator{maxBytes: maxBytes}
}

// Validate applies the checks in a fixed order and stops at the first failure:
// filename, extension, size, content type.
func (v *UploadValidator) Validate(file UploadFile) error {
	if err := v.CheckHeader(file); err != nil {
		return err
	}
	return v.CheckContentType(file)
}

// CheckHeader covers everything up to and including the declared size.
func (v *UploadValidator) CheckHeader(file UploadFile) error {
	if file.Filename == "" {
		return &ValidationError{Reason: ReasonNoFilename}
	}
	if !allowedExtension(file.Filename) {
		return &ValidationError{Filename: file.Filename, Reason: ReasonTypeNotAllowed}
	}
	return v.CheckSize(file.Filename, file.Size)
}

func (v *UploadValidator) CheckContentType(file UploadFile) error {
	if !allowedContentTypes[file.ContentType] {
		return &ValidationError{Filename: file.Filename, Reason: ReasonInvalidMimeType}
	}
	return nil
}

// CheckSize is also applied to the bytes actually read, since the declared
// size comes from the client.
func (v *UploadValidator) CheckSize(filename string, size int64) error {
	if size > v.maxBytes {
		return &ValidationError{
			Filename: filename,
			Reason:   fmt.Sprintf("File exceeds %dMB limit", v.maxBytes/(1024*1024)),
		}
	}
	return nil
}

func (v *UploadValidator) MaxBytes() int64 {
	return v.maxBytes
}

func allowedExtension(filename string) bool {
	ext := path.Ext(filename)
	if ext == "" {
		return false
	}
	return allowedExtensions[strings.ToLower(ext[1:])]
}
