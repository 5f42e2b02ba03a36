package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LJTian/InTheLoop/internal/api"
	"github.com/LJTian/InTheLoop/internal/config"
	"github.com/LJTian/InTheLoop/internal/di"
	"github.com/LJTian/InTheLoop/internal/logger"
	"github.com/LJTian/InTheLoop/internal/pipeline"
	"github.com/LJTian/InTheLoop/internal/scheduler"
	"github.com/gin-gonic/gin"
	"github.com/samber/do/v2"
	sloghttp "github.com/samber/slog-http"
)

func main() {
	cfg := config.Load()
	log := logger.Init(cfg.Debug)

	injector := di.Setup(cfg, log)

	p, err := do.Invoke[*pipeline.Pipeline](injector)
	if err != nil {
		log.Error("init pipeline failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// 从 Redis 镜像预热，重启后首屏无需等待全量拉取
	p.Warm(ctx)

	s, err := do.Invoke[*scheduler.Scheduler](injector)
	if err != nil {
		log.Error("init scheduler failed", "error", err)
		os.Exit(1)
	}
	s.Start()

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	// 若配置了全局访问密码，则启用 Basic Auth 保护（/health 仍然免认证）
	if cfg.BasicAuthUser != "" && cfg.BasicAuthPass != "" {
		r.Use(api.BasicAuth(cfg.BasicAuthUser, cfg.BasicAuthPass))
	}

	server := do.MustInvoke[*api.Server](injector)
	server.RegisterRoutes(r)

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           sloghttp.New(log)(r),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("starting api server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server exit", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down...")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", "error", err)
	}
	if err := di.Shutdown(injector, true); err != nil {
		log.Error("close resources failed", "error", err)
	}
}
