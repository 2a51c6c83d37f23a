package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"recipe-importer/internal/core/ai"
	"recipe-importer/internal/core/jobs"
	"recipe-importer/internal/core/pipeline"
	"recipe-importer/internal/core/store"
	"recipe-importer/internal/infrastructure/config"
	"recipe-importer/internal/pkg/common"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("Warning: .env file not found")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := common.InitLogger(cfg.LogLevel); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer common.Sync()

	cacheManager := ai.NewCacheManager(cfg)
	if cfg.Cache.Enabled && cacheManager == nil {
		common.LogFatal("Failed to initialize cache manager")
	}
	defer cacheManager.Close()

	aiService := ai.NewService(cfg, cacheManager)
	defer aiService.Close()

	st, err := store.Open(cfg)
	if err != nil {
		common.LogFatal("Failed to open recipe store", zap.Error(err))
	}
	defer st.Close()

	queue, err := jobs.NewQueue(cfg)
	if err != nil {
		common.LogFatal("Failed to connect to job queue", zap.Error(err))
	}
	defer queue.Close()

	runner := jobs.NewRunner(cfg, queue, pipeline.New(cfg, aiService, st))

	common.LogInfo("starting application",
		zap.String("version", cfg.App.Version),
		zap.String("env", cfg.App.Env),
		zap.Int("workers", cfg.Queue.Workers),
	)
	runner.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	common.LogInfo("Shutting down server...")
	runner.Stop()
	common.LogInfo("Server exited")
}
