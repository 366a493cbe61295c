package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/audiolyze/stage/internal/analysis"
	"github.com/audiolyze/stage/internal/config"
	"github.com/audiolyze/stage/internal/logger"
	"github.com/audiolyze/stage/internal/media"
	"github.com/audiolyze/stage/internal/metrics"
	"github.com/audiolyze/stage/internal/soundcloud"
	"github.com/audiolyze/stage/internal/stage"
)

func corsMiddleware(allowedOrigins string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", allowedOrigins)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

func main() {
	cfg := config.Load()

	log := logger.New(logger.FromConfig(cfg.LogLevel, cfg.LogFormat))

	log.Info("setting gin mode", slog.String("mode", cfg.GinMode))
	gin.SetMode(cfg.GinMode)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	uploadStore, err := media.NewStore(cfg.UploadDir, log)
	if err != nil {
		log.Error("initializing upload store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	mediaHandler := media.NewHandler(uploadStore, cfg.MaxUploadSizeMB, log)

	scService, err := soundcloud.NewService(
		cfg.YtdlpPath,
		cfg.DownloadDir,
		time.Duration(cfg.InfoTimeoutSeconds)*time.Second,
		time.Duration(cfg.DownloadTimeoutSeconds)*time.Second,
		log,
	)
	if err != nil {
		log.Error("initializing soundcloud service", slog.String("error", err.Error()))
		os.Exit(1)
	}
	scHandler := soundcloud.NewHandler(scService, log)

	analysisClient := analysis.NewClient(
		cfg.AnalyzerBaseURL,
		cfg.SynthesizerBaseURL,
		time.Duration(cfg.DownloadTimeoutSeconds)*time.Second,
		log,
	)
	analysisHandler := analysis.NewHandler(analysisClient, analysisClient, log)

	stageServer := stage.NewServer(log, m, stage.Options{
		Uploads:                uploadStore,
		Downloader:             scService,
		DownloadTimeout:        time.Duration(cfg.DownloadTimeoutSeconds) * time.Second,
		MaxConcurrentDownloads: int64(cfg.MaxConcurrentDownloads),
	})
	stageHandler := stage.NewHandler(stageServer, log)

	router := gin.Default()
	router.Use(corsMiddleware(cfg.CORSAllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	rooms := router.Group("/rooms")
	{
		rooms.GET("/ws", stageHandler.ServeWS)
		rooms.GET("/public", stageHandler.ListPublicRooms)
		rooms.GET("/uploads/:filename", mediaHandler.ServeUpload)
	}

	router.POST("/upload-audio", mediaHandler.UploadAudio)

	sc := router.Group("/soundcloud")
	{
		sc.POST("/info", scHandler.Info)
		sc.POST("/download", scHandler.Download)
		sc.GET("/file/:filename", scHandler.File)
	}

	router.POST("/analyze", analysisHandler.Analyze)
	router.POST("/generate-params", analysisHandler.GenerateParams)
	router.POST("/score", analysisHandler.Score)
	router.GET("/history", analysisHandler.History)

	port := ":" + cfg.Port
	log.Info("stage server listening on " + port)

	srv := &http.Server{
		Addr:    port,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("failed to start server", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ServerShutdownTimeoutSeconds)*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log.Info("server exited")
}
