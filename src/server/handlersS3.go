package server

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	app "nkpgallery/src/app"
)

const (
	uploadField    = "file"
	imageCacheTime = "public, max-age=3600"
)

func (a *AppHandler) GetImageList(c *gin.Context) {
	images, err := a.gallery.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"images": images, "count": len(images)})
}

func (a *AppHandler) PostImages(c *gin.Context) {
	var headers []*multipart.FileHeader
	if form, err := c.MultipartForm(); err == nil {
		headers = form.File[uploadField]
	}

	files := make([]app.UploadFile, 0, len(headers))
	for _, fh := range headers {
		fh := fh
		files = append(files, app.UploadFile{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Open: func() (io.ReadCloser, error) {
				return fh.Open()
			},
		})
	}

	results, err := a.gallery.Upload(c.Request.Context(), files)
	if err != nil {
		body := gin.H{"error": err.Error()}
		if len(results) > 0 {
			body["uploaded"] = results
		}
		c.JSON(http.StatusBadRequest, body)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"uploaded": results})
}

func (a *AppHandler) DeleteImage(c *gin.Context) {
	key := objectKey(c)
	if err := a.gallery.Delete(c.Request.Context(), key); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": key})
}

// GetImage streams an object through the service so browsers never talk to
// the bucket directly.
func (a *AppHandler) GetImage(c *gin.Context) {
	obj, err := a.gallery.Fetch(c.Request.Context(), objectKey(c))
	if err != nil {
		if errors.Is(err, app.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Image not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer obj.Body.Close()

	c.Header("Cache-Control", imageCacheTime)
	if obj.Size < 0 {
		c.Header("Content-Type", obj.ContentType)
		c.Status(http.StatusOK)
		if _, err := io.Copy(c.Writer, obj.Body); err != nil {
			a.log.WithError(err).Warn("image stream interrupted")
		}
		return
	}
	c.DataFromReader(http.StatusOK, obj.Size, obj.ContentType, obj.Body, nil)
}

// objectKey reads the catch-all key parameter, which gin hands over with a
// leading slash.
func objectKey(c *gin.Context) string {
	return strings.TrimPrefix(c.Param("key"), "/")
}
