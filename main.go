package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"tablefilter/config"
	"tablefilter/handlers"
	"tablefilter/logging"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}

	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	reg := handlers.NewRegistry(handlers.SessionDefaults{
		DebounceWindow:     cfg.DebounceWindow,
		EventBuffer:        cfg.EventBuffer,
		DefaultPeriodIndex: cfg.DefaultPeriodIndex,
	}, log)
	defer reg.Close()

	if cfg.APIKey == "" {
		log.Warn("FILTERD_API_KEY not set, session API is unauthenticated")
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handlers.NewRouter(reg, cfg.APIKey, log),
		ReadHeaderTimeout: 10 * time.Second,
	}
	// Closing the sessions ends their event streams so Shutdown can drain.
	srv.RegisterOnShutdown(reg.Close)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.WithField("addr", cfg.Addr).Info("filter server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()

	// Create context with timeout for draining open requests
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
	log.Info("filter server stopped")
}
