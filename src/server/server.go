package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	app "nkpgallery/src/app"
	cfg "nkpgallery/src/configuration"
	"nkpgallery/src/logging"
)

//go:embed templates/*.html
var templatesFS embed.FS

// NewRouter wires the gallery routes. Keys may contain slashes, so the key
// routes use catch-all parameters.
func NewRouter(config *cfg.Properties, handler *AppHandler, log *logrus.Entry) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log))

	if len(config.Server.CORSOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:  config.Server.CORSOrigins,
			AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowHeaders:  []string{"Origin", "Content-Type", "Content-Length", "Accept-Encoding"},
			ExposeHeaders: []string{"Content-Length"},
			MaxAge:        12 * time.Hour,
		}))
	}
	if config.Server.Pprof {
		pprof.Register(router)
	}

	router.SetHTMLTemplate(template.Must(template.ParseFS(templatesFS, "templates/*.html")))

	router.GET("/", handler.Root)
	api := router.Group("/api")
	api.GET("/info", handler.GetInfo)
	api.GET("/health", handler.GetHealth)
	api.GET("/images", handler.GetImageList)
	api.POST("/upload", handler.PostImages)
	api.DELETE("/delete/*key", handler.DeleteImage)
	api.GET("/image/*key", handler.GetImage)

	router.NoRoute(func(ctx *gin.Context) { ctx.JSON(http.StatusNotFound, gin.H{"error": "not found"}) })
	return router
}

// RunServer builds the storage gateway and gallery once, serves until SIGINT
// or SIGTERM, then drains in-flight requests.
func RunServer(config *cfg.Properties, logger *logrus.Logger) error {
	ctx := context.Background()
	store, err := app.NewObjectStore(ctx, config.S3, logging.Component(logger, "storage"))
	if err != nil {
		return fmt.Errorf("create storage gateway: %w", err)
	}

	gallery := app.NewGallery(config, store, app.NewKeyCodec(), logging.Component(logger, "gallery"))
	if err := gallery.Health(ctx); err != nil {
		logger.WithError(err).Warn("bucket not reachable at start-up, serving anyway")
	}

	handler := NewHandler(gallery, logging.Component(logger, "http"))
	router := NewRouter(config, handler, logging.Component(logger, "http"))

	srv := &http.Server{
		Addr:         ":" + config.Server.Port,
		Handler:      router,
		ReadTimeout:  config.Server.ReadTimeout,
		WriteTimeout: config.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{
			"port":   config.Server.Port,
			"bucket": config.S3.Bucket,
			"driver": config.S3.Driver,
			"proxy":  config.Gallery.ImageProxy,
		}).Info("gallery listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
