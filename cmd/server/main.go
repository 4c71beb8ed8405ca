package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/atrai/atrai-backend-go/internal/api"
	"github.com/atrai/atrai-backend-go/internal/config"
	"github.com/atrai/atrai-backend-go/internal/database"
	"github.com/atrai/atrai-backend-go/internal/logging"
	"github.com/atrai/atrai-backend-go/internal/service"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.New(cfg.Debug)
	defer logger.Sync()

	// 初始化数据库
	if err := database.Init(database.Config{Path: cfg.DBPath, Logger: logger}); err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	container, err := service.NewContainer(ctx, database.GetDB(), cfg, logger)
	if err != nil {
		logger.Fatal("failed to build services", zap.Error(err))
	}
	defer container.Close()

	// 初始化路由
	router := api.SetupRouter(cfg, api.Services{Tasks: container.Tasks, Queries: container.Queries}, logger)
	srv := &http.Server{
		Addr:              cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server starting",
			zap.String("addr", cfg.Port),
			zap.String("policy", cfg.Policy.Version),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
}
