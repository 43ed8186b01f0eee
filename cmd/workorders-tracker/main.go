package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/health"

	"github.com/joseph-ayodele/workorders-tracker/internal/chat"
	"github.com/joseph-ayodele/workorders-tracker/internal/common"
	"github.com/joseph-ayodele/workorders-tracker/internal/export"
	"github.com/joseph-ayodele/workorders-tracker/internal/llm"
	"github.com/joseph-ayodele/workorders-tracker/internal/llm/gemini"
	"github.com/joseph-ayodele/workorders-tracker/internal/llm/openai"
	"github.com/joseph-ayodele/workorders-tracker/internal/pipeline"
	repo "github.com/joseph-ayodele/workorders-tracker/internal/repository"
	"github.com/joseph-ayodele/workorders-tracker/internal/server"
	"github.com/joseph-ayodele/workorders-tracker/internal/storage"
)

func main() {
	cfg, err := common.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(2)
	}
	logger := common.NewLogger(cfg.Log, os.Stdout)
	slog.SetDefault(logger)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	drv, pool, err := repo.Connect(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err, "driver", cfg.Database.Driver)
		os.Exit(1)
	}
	defer repo.Close(drv, pool, logger)

	if err := repo.HealthCheck(ctx, drv, 5*time.Second, logger); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	if err := repo.EnsureSchema(ctx, drv, logger); err != nil {
		logger.Error("failed to apply schema", "error", err)
		os.Exit(1)
	}

	workOrders := repo.NewWorkOrderRepository(drv, logger)
	files := repo.NewWorkOrderFileRepository(drv, logger)
	tasks := repo.NewWorkOrderTaskRepository(drv, logger)
	messages := repo.NewChatMessageRepository(drv, logger)

	store, err := storage.New(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Error("failed to open object store", "error", err, "backend", cfg.Storage.Backend)
		os.Exit(1)
	}
	if c, ok := store.(io.Closer); ok {
		defer c.Close()
	}

	// a provider without a key stays unregistered and requests for it fail with MISSING_CREDENTIALS
	var providers []llm.Provider
	if cfg.LLM.OpenAI.APIKey != "" {
		providers = append(providers, openai.NewClient(openai.ConfigFrom(cfg.LLM.OpenAI, cfg.LLM.Timeout), logger))
	}
	if cfg.LLM.Gemini.APIKey != "" {
		providers = append(providers, gemini.NewClient(gemini.ConfigFrom(cfg.LLM.Gemini, cfg.LLM.Timeout), logger))
	}
	if len(providers) == 0 {
		logger.Warn("no extraction provider configured, processing requests will fail")
	}

	collector := pipeline.NewCollector(files, store, cfg.Storage.KeyPrefix, cfg.Pipeline.DownloadConcurrency, logger)
	writer := pipeline.NewWriter(workOrders, tasks, logger)
	processor := pipeline.NewProcessor(logger, workOrders, collector, writer, providers, pipeline.Options{
		DefaultProvider: cfg.LLM.Provider,
		ClaimTTL:        cfg.Pipeline.ClaimTTL,
		Timeout:         cfg.Pipeline.ProcessTimeout,
	})

	hub := chat.NewHub(messages, cfg.Chat, logger)

	router := server.NewRouter(server.Deps{
		Processor:      processor,
		WorkOrders:     workOrders,
		Files:          files,
		Tasks:          tasks,
		Store:          store,
		KeyPrefix:      cfg.Storage.KeyPrefix,
		Export:         export.NewService(workOrders, tasks, logger),
		Hub:            hub,
		DB:             drv,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         logger,
	})
	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	healthServer := health.NewServer()
	grpcServer := server.NewGRPCServer(healthServer)
	monitor := server.NewHealthMonitor(drv, healthServer, cfg.Server.HealthInterval, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("workorders-tracker listening", "addr", cfg.Server.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if cfg.Server.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
			os.Exit(1)
		}
		g.Go(func() error {
			logger.Info("grpc health listening", "addr", cfg.Server.GRPCAddr)
			return grpcServer.Serve(lis)
		})
	}
	g.Go(func() error {
		monitor.Run(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		hub.Shutdown()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown", "error", err)
		}
		grpcServer.GracefulStop()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("stopped")
}
