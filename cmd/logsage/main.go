package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/logsage/logsage/internal/ai"
	"github.com/logsage/logsage/internal/config"
	"github.com/logsage/logsage/internal/db"
	"github.com/logsage/logsage/internal/embedcache"
	"github.com/logsage/logsage/internal/filestore"
	"github.com/logsage/logsage/internal/handler"
	"github.com/logsage/logsage/internal/job"
	"github.com/logsage/logsage/internal/middleware"
	"github.com/logsage/logsage/internal/repo"
	"github.com/logsage/logsage/internal/schedule"
	"github.com/logsage/logsage/internal/service"
	"github.com/logsage/logsage/internal/vectorstore"
	_ "github.com/logsage/logsage/internal/vectorstore/flat"
	_ "github.com/logsage/logsage/internal/vectorstore/pgvec"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "logsage",
		Short: "logsage backend server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run logsage server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

			conn, err := db.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			if err := db.ApplyMigrations(conn); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			return runServer(cfg, conn)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func runServer(cfg *config.Config, conn *sql.DB) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("file_store", cfg.FileStore.Type),
		zap.String("vector_store", cfg.VectorStore.Type),
	)

	fileRepo := repo.NewFileRepo(conn)
	entryRepo := repo.NewLogEntryRepo(conn)
	chunkRepo := repo.NewChunkRepo(conn)
	anomalyRepo := repo.NewAnomalyRepo(conn)
	turnRepo := repo.NewConversationRepo(conn)
	cacheRepo := repo.NewEmbeddingCacheRepo(conn)

	store, err := filestore.New(cfg.FileStore)
	if err != nil {
		return fmt.Errorf("init file store: %w", err)
	}
	vectors, err := vectorstore.New(cfg.VectorStore.Type, &vectorstore.FactoryArgs{
		DB:        conn,
		Dir:       cfg.VectorStore.Dir,
		Dimension: cfg.AI.Dimension,
	})
	if err != nil {
		return fmt.Errorf("init vector store: %w", err)
	}

	embedder, err := buildEmbedder(cfg.AI, cacheRepo)
	if err != nil {
		return fmt.Errorf("init embedder: %w", err)
	}
	generator, err := buildGenerator(cfg.AI)
	if err != nil {
		return fmt.Errorf("init generator: %w", err)
	}

	fileService := service.NewFileService(fileRepo, entryRepo, chunkRepo, anomalyRepo, turnRepo,
		store, vectors, cfg.Upload.MaxSizeBytes)
	indexService := service.NewIndexService(fileRepo, entryRepo, chunkRepo, embedder, vectors,
		cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	retrievalService := service.NewRetrievalService(chunkRepo, embedder, vectors, indexService,
		cfg.RAG.TopK, cfg.RAG.SimilarityThreshold)
	chatService := service.NewChatService(retrievalService, generator, turnRepo, fileRepo,
		cfg.RAG.MaxContextLength, cfg.RAG.HistoryTurns)
	anomalyService := service.NewAnomalyService(fileRepo, entryRepo, anomalyRepo)
	summaryService := service.NewSummaryService(fileRepo, entryRepo, anomalyRepo, generator)

	deps := handler.RouterDeps{
		Files:        handler.NewFileHandler(fileService, indexService, cfg.Upload.MaxSizeBytes),
		Logs:         handler.NewLogHandler(fileService),
		Anomalies:    handler.NewAnomalyHandler(anomalyService),
		Search:       handler.NewSearchHandler(retrievalService),
		Chat:         handler.NewChatHandler(chatService),
		Summaries:    handler.NewSummaryHandler(summaryService),
		Status:       handler.NewStatusHandler(embedder, generator, cfg.VectorStore.Type),
		AIRateWindow: time.Duration(cfg.AIRateLimitMS) * time.Millisecond,
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(nil),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := schedule.NewCronScheduler()
	if cfg.Jobs.CacheCleanupSpec != "" {
		if err := scheduler.AddJob(job.NewEmbeddingCacheCleanupJob(cacheRepo, cfg.Jobs.CacheMaxAgeDays), cfg.Jobs.CacheCleanupSpec); err != nil {
			return err
		}
	}
	if cfg.Jobs.IndexBacklogSpec != "" {
		if err := scheduler.AddJob(job.NewIndexBacklogJob(fileRepo, indexService, uint(cfg.Jobs.IndexBacklogBatch)), cfg.Jobs.IndexBacklogSpec); err != nil {
			return err
		}
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}

// buildEmbedder resolves the configured embedding provider, swapping in the
// demo provider when the real one carries no usable credential, then stacks
// the in-process and persistent caches on top.
func buildEmbedder(cfg config.AIConfig, cacheRepo *repo.EmbeddingCacheRepo) (ai.IEmbedder, error) {
	provider, err := ai.NewEmbedProvider(cfg.EmbedProvider, providerArgs(cfg))
	if err != nil {
		return nil, err
	}
	if !provider.Available() {
		logutil.GetLogger(context.Background()).Warn("embed provider has no credential, falling back to demo mode",
			zap.String("provider", cfg.EmbedProvider))
		provider, err = ai.NewEmbedProvider(ai.DemoProviderName, map[string]interface{}{"dimension": cfg.Dimension})
		if err != nil {
			return nil, err
		}
	}
	embedder := ai.NewEmbedder(provider, ai.EmbedderConfig{
		Model:     cfg.EmbedModel,
		Dimension: cfg.Dimension,
		BatchSize: cfg.BatchSize,
		MaxChars:  cfg.MaxInputChars,
	})
	embedder = embedcache.WrapDBCacheToEmbedder(embedder, cacheRepo)
	embedder = embedcache.WrapLruCacheToEmbedder(embedder, cfg.CacheSize, time.Duration(cfg.CacheTTLHours)*time.Hour)
	return embedder, nil
}

func buildGenerator(cfg config.AIConfig) (ai.IGenerator, error) {
	provider, err := ai.NewChatProvider(cfg.ChatProvider, providerArgs(cfg))
	if err != nil {
		return nil, err
	}
	if !provider.Available() {
		logutil.GetLogger(context.Background()).Warn("chat provider has no credential, falling back to demo mode",
			zap.String("provider", cfg.ChatProvider))
		provider, err = ai.NewChatProvider(ai.DemoProviderName, map[string]interface{}{})
		if err != nil {
			return nil, err
		}
	}
	return ai.NewGenerator(provider, ai.GeneratorConfig{
		Model:       cfg.ChatModel,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		Timeout:     time.Duration(cfg.TimeoutSecs) * time.Second,
	}), nil
}

func providerArgs(cfg config.AIConfig) interface{} {
	if cfg.Data != nil {
		return cfg.Data
	}
	return map[string]interface{}{}
}
