// cmd/server is the HTTP entry point. It wires together all layers and
// starts the API with graceful shutdown.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/okulikov/session-enroll/internal/config"
	"github.com/okulikov/session-enroll/internal/database"
	"github.com/okulikov/session-enroll/internal/handler"
	"github.com/okulikov/session-enroll/internal/logger"
	"github.com/okulikov/session-enroll/internal/notify"
	"github.com/okulikov/session-enroll/internal/repository"
	"github.com/okulikov/session-enroll/internal/service"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zlog, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	pool, err := database.NewPool(ctx, cfg.DB, zlog)
	if err != nil {
		zlog.Fatalw("database connect failed", "error", err)
	}
	defer pool.Close()
	if err := database.Migrate(ctx, pool); err != nil {
		zlog.Fatalw("database migrate failed", "error", err)
	}
	zlog.Infow("connected to postgres", "host", cfg.DB.Host, "db", cfg.DB.Name)

	sessionRepo := repository.NewSessionRepository(pool)
	enrollmentRepo := repository.NewEnrollmentRepository(pool)

	var dispatcher notify.Dispatcher
	if cfg.Notify.Endpoint != "" {
		dispatcher = notify.NewWebhookDispatcher(cfg.Notify, zlog)
	} else {
		dispatcher = &notify.LogDispatcher{Log: zlog}
	}

	sessionSvc := service.NewSessionService(sessionRepo)
	registrationSvc := service.NewRegistrationService(sessionRepo, enrollmentRepo, dispatcher, zlog)
	api := handler.NewAPI(sessionSvc, registrationSvc)

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(handler.AccessLog(zlog))
	r.Use(handler.CORS)
	api.Routes(r)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		zlog.Infow("server listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatalw("server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatalw("graceful shutdown failed", "error", err)
	}
	zlog.Infow("server stopped")
}
