package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"castplay/internal/platform/config"
	"castplay/internal/platform/logger"
	"castplay/internal/platform/metrics"
	"castplay/internal/playback"
	"castplay/internal/session"

	"github.com/go-chi/chi/v5"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()

	port := config.GetEnv("PORT", "8080")
	logLevel := config.GetEnv("LOG_LEVEL", "info")
	logFormat := config.GetEnv("LOG_FORMAT", "json")
	dbPath := config.GetEnv("RECORDINGS_DB", "")
	fetchTimeout := config.GetEnvDuration("FETCH_TIMEOUT", 15*time.Second)
	idleTimeLimit := config.GetEnvFloat("IDLE_TIME_LIMIT", 0)
	minFrameTime := config.GetEnvFloat("MIN_FRAME_TIME", playback.DefaultMinFrameTime)
	sessionIdle := config.GetEnvDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute)

	log := logger.New(logLevel, logFormat)

	var store session.Store = session.NewInMemoryStore()
	if dbPath != "" {
		bolt, err := session.NewBoltStore(dbPath)
		if err != nil {
			log.Error("open recordings database", "path", dbPath, "error", err)
			os.Exit(1)
		}
		store = bolt
	}

	repo := session.NewRepositoryWithStore(store)
	met := metrics.New()
	svc := session.NewService(repo, session.Config{
		IdleTimeLimit: idleTimeLimit,
		MinFrameTime:  minFrameTime,
		FetchTimeout:  fetchTimeout,
	}, log, met)
	h := session.NewHandler(svc, log)

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		met.Handler(func() {
			met.SetActiveSessions(svc.ActiveSessionCount())
			met.SetRecordings(svc.RecordingCount())
		}).ServeHTTP(w, r)
	})
	h.Routes(r)

	addr := ":" + port
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	reaperDone := make(chan struct{})
	if sessionIdle > 0 {
		go reapSessions(svc, sessionIdle, reaperDone, log)
	}

	log.Info("server starting",
		"port", port,
		"recordings_db", dbPath,
		"idle_time_limit", idleTimeLimit,
		"session_idle_timeout", sessionIdle.String(),
		"log_level", logLevel,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining connections")
	close(reaperDone)
	svc.CloseAll()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	if err := store.Close(); err != nil {
		log.Error("close recordings store", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}

// reapSessions closes sessions nobody has used for maxIdle.
func reapSessions(svc *session.Service, maxIdle time.Duration, done <-chan struct{}, log *slog.Logger) {
	ticker := time.NewTicker(maxIdle / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := svc.ReapIdle(maxIdle); n > 0 {
				log.Info("reaped idle sessions", "count", n)
			}
		case <-done:
			return
		}
	}
}
