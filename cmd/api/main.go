package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	v1 "github.com/QNhatCNTT/employee-task-management/cmd/api/router/v1"
	"github.com/QNhatCNTT/employee-task-management/internal/config"
	"github.com/QNhatCNTT/employee-task-management/internal/infrastructure/database"
	qadapter "github.com/QNhatCNTT/employee-task-management/internal/infrastructure/queue/adapter"
	"github.com/QNhatCNTT/employee-task-management/internal/infrastructure/realtime"
	"github.com/QNhatCNTT/employee-task-management/internal/pkg/chat/application/usecase"
	"github.com/QNhatCNTT/employee-task-management/internal/pkg/chat/auth"
	"github.com/QNhatCNTT/employee-task-management/internal/pkg/chat/guard"
	"github.com/QNhatCNTT/employee-task-management/internal/pkg/chat/presence"
	"github.com/QNhatCNTT/employee-task-management/internal/pkg/chat/presentation/controller"
	"github.com/QNhatCNTT/employee-task-management/internal/pkg/chat/store/adapter"
	"github.com/QNhatCNTT/employee-task-management/internal/pkg/chat/store/port"
	"github.com/QNhatCNTT/employee-task-management/internal/pkg/chat/tasks"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		logger.Warn(".env file not found or could not be loaded", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Message store: Postgres when configured, in-memory otherwise.
	var store port.MessageStore
	if cfg.DatabaseURL != "" {
		connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		pool, err := database.Connect(connectCtx, cfg.DatabaseURL)
		cancel()
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		store = adapter.NewPgMessageStore(pool)
	} else {
		logger.Warn("DB_URL not set, using in-memory message store")
		store = adapter.NewMemoryStore()
	}

	// Presence: in-process by default, Redis-backed for multi-process runs.
	var tracker presence.Tracker
	if cfg.PresenceBackend == "redis" {
		rt, err := presence.NewRedisTracker(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("failed to connect presence tracker", "error", err)
			os.Exit(1)
		}
		defer rt.Close()
		tracker = rt
	} else {
		tracker = presence.NewMemoryTracker()
	}

	hub := realtime.NewHub()
	defer hub.Close()

	deliverUC := usecase.NewDeliverPendingUseCase(store)

	// Delivery sweep: queued through asynq when Redis is available, inline
	// goroutine otherwise.
	var sweeper tasks.Sweeper
	if cfg.RedisURL != "" {
		qclient, err := qadapter.NewAsynqClient(cfg.RedisURL)
		if err != nil {
			logger.Error("failed to create queue client", "error", err)
			os.Exit(1)
		}
		defer qclient.Close()

		qserver, err := qadapter.NewAsynqServer(cfg.RedisURL, logger)
		if err != nil {
			logger.Error("failed to create queue server", "error", err)
			os.Exit(1)
		}
		qserver.Register(tasks.TypeDeliverPending, tasks.NewDeliverPendingHandler(deliverUC, hub, logger))
		go func() {
			if err := qserver.Run(ctx); err != nil {
				logger.Error("queue server stopped", "error", err)
			}
		}()

		sweeper = &tasks.QueueSweeper{Queue: qclient}
	} else {
		sweeper = &tasks.InlineSweeper{UC: deliverUC, Hub: hub, Logger: logger}
	}

	verifier := auth.NewTokenVerifier(cfg.JWTSecret)
	policy := guard.ParticipantPolicy{}

	socketCtl := controller.NewChatSocketController(store, policy, hub, tracker, sweeper, logger, cfg.HistoryPageSize)
	historyCtl := controller.NewChatHistoryController(store, policy, logger)

	r := gin.Default()
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})
	v1.RegisterRoutes(r, verifier, socketCtl, historyCtl)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}
