package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	app "nkpgallery/src/app"
)

type AppHandler struct {
	gallery *app.Gallery
	log     *logrus.Entry
}

func NewHandler(gallery *app.Gallery, log *logrus.Entry) *AppHandler {
	return &AppHandler{
		gallery: gallery,
		log:     log,
	}
}

// Root renders the gallery page.
func (a *AppHandler) Root(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", a.gallery.Info())
}

func (a *AppHandler) GetInfo(c *gin.Context) {
	c.JSON(http.StatusOK, a.gallery.Info())
}

// GetHealth reports whether the bucket is reachable. A failure degrades the
// response to 503 but never stops the process.
func (a *AppHandler) GetHealth(c *gin.Context) {
	if err := a.gallery.Health(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "bucket": a.gallery.Bucket()})
}
