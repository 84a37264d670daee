package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"marketsync/internal/client/marketplace"
	"marketsync/internal/config"
	cronrunner "marketsync/internal/cron"
	"marketsync/internal/db"
	"marketsync/internal/handler"
	"marketsync/internal/logger"
	"marketsync/internal/ratelimit"
	gormrepository "marketsync/internal/repository/gorm"
	"marketsync/internal/syncengine"

	_ "marketsync/docs"
)

func main() {
	cfgPath := os.Getenv("MS_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("MS_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	limiter := ratelimit.New(cfg.RateLimits)
	apiHTTP := &http.Client{Timeout: cfg.Marketplace.Timeout}
	apiClient := marketplace.NewClient(apiHTTP, limiter, cfg.Marketplace)
	store := gormrepository.New(dbConn.Gorm)

	accounts := make([]string, 0, len(cfg.Marketplace.Accounts))
	for _, account := range cfg.Marketplace.Accounts {
		accounts = append(accounts, account.Scope)
	}
	orchestrator := syncengine.NewOrchestrator(ctx, store, apiClient, logger, cfg.Sync, accounts)

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())

	healthHandler := &handler.HealthHandler{DB: dbConn.Gorm}
	healthHandler.Register(engine)
	syncHandler := &handler.SyncHandler{
		Orchestrator: orchestrator,
		Store:        store,
		Logger:       logger,
	}
	syncHandler.Register(engine)
	outboundHandler := &handler.OutboundHandler{
		Client: apiClient,
		Logger: logger,
	}
	outboundHandler.Register(engine)

	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	cronRunner := cronrunner.New(logger, ctx)
	if cfg.Cron.Enabled {
		jobs := &cronrunner.Jobs{
			Orchestrator: orchestrator,
			Store:        store,
			Logger:       logger,
			Sync:         cfg.Sync,
			Retention:    cfg.Registry.RetentionWindow,
		}
		if err := jobs.Register(cronRunner, cfg.Cron); err != nil {
			logger.Warn("cron job registration failed", zap.Error(err))
		}
		cronRunner.Start()
		defer cronRunner.Stop()
	}

	errCh := make(chan error, 2)

	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)

	// In-flight runs finalize before the process exits, so no run is left
	// behind in running state for the reaper to clean up later.
	orchestrator.Wait()
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
