package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/home-services-api/config"
	"github.com/kendall-kelly/home-services-api/logger"
	"github.com/kendall-kelly/home-services-api/middleware"
	"github.com/kendall-kelly/home-services-api/server"
	"github.com/kendall-kelly/home-services-api/services"
	"go.uber.org/zap"
)

// collaborators builds the production clients for the external systems
func collaborators(ctx context.Context, cfg *config.Config) (server.Collaborators, error) {
	ext := server.Collaborators{
		Gateway:  services.NewRazorpayGateway(cfg),
		Email:    services.NewEmailSender(cfg),
		UserInfo: services.NewAuth0Service(cfg),
	}
	if cfg.AWSS3Bucket == "" {
		logger.Log.Warn("AWS_S3_BUCKET not set, completion photo uploads are disabled")
		return ext, nil
	}

	store, err := services.NewS3Service(ctx, cfg)
	if err != nil {
		return ext, err
	}
	ext.Images = services.NewImageService(store)
	return ext, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatal("Failed to load configuration", zap.Error(err))
	}

	if err := logger.Initialize(cfg.LogLevel); err != nil {
		logger.Log.Fatal("Failed to initialize logger", zap.Error(err))
	}
	defer logger.Sync()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	logger.Log.Info("Starting Home Services API server...", zap.String("env", cfg.GoEnv))

	if err := config.ConnectDatabase(cfg); err != nil {
		logger.Log.Fatal("Failed to connect to database", zap.Error(err))
	}
	db := config.GetDB()
	if err := config.MigrateDatabase(db); err != nil {
		logger.Log.Fatal("Failed to migrate database", zap.Error(err))
	}

	ext, err := collaborators(context.Background(), cfg)
	if err != nil {
		logger.Log.Fatal("Failed to initialize S3", zap.Error(err))
	}

	svc := server.NewServices(db, cfg, ext)
	svc.Dispatcher.Start()

	router := server.SetupRouter(server.NewApplication(svc, cfg, middleware.EnsureValidToken(cfg)))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Log.Info("Server is running", zap.String("addr", "http://localhost:"+cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}

	// Queued notifications are flushed after the last request finishes
	svc.Dispatcher.Stop()
	logger.Log.Info("Server exited")
}
