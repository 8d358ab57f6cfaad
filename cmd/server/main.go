package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/rs/zerolog"

	"github.com/agep/exam-backend/internal/config"
	"github.com/agep/exam-backend/internal/database"
	"github.com/agep/exam-backend/internal/handler"
	"github.com/agep/exam-backend/internal/kvstore"
	"github.com/agep/exam-backend/internal/lock"
	"github.com/agep/exam-backend/internal/logger"
	"github.com/agep/exam-backend/internal/middleware"
	"github.com/agep/exam-backend/internal/repository"
	"github.com/agep/exam-backend/internal/router"
	"github.com/agep/exam-backend/internal/service"
	"github.com/agep/exam-backend/internal/validator"
	"github.com/agep/exam-backend/internal/worker"
)

const workerDrainTimeout = 10 * time.Second

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Str("kv_backend", cfg.KVBackend).
		Msg("Starting exam backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Transient Store ───────────────────────────────────────────────
	var kv kvstore.Backend
	switch cfg.KVBackend {
	case config.KVBackendMemory:
		log.Warn().Msg("Using in-memory KV backend; locks are not shared between processes")
		kv = kvstore.NewMemory()
	default:
		rdb, err := database.NewRedisClient(ctx, cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()
		kv = kvstore.NewRedis(rdb)
	}

	reportLoc, err := time.LoadLocation(cfg.ReportTimezone)
	if err != nil {
		log.Warn().Err(err).Str("timezone", cfg.ReportTimezone).Msg("Unknown report timezone, using UTC")
		reportLoc = time.UTC
	}

	// ─── Initialize Repositories ───────────────────────────────────────
	examRepo := repository.NewExamRepository(pool)
	attemptRepo := repository.NewAttemptRepository(pool)
	examStore := service.NewCachedExamStore(examRepo, kv, cfg.ExamCacheTTL, log)

	// ─── Initialize Services ──────────────────────────────────────────
	var cleanupQueue kvstore.Queue
	if !cfg.CleanupQueueDisabled {
		cleanupQueue = kv
	}

	authService := service.NewAuthService(cfg)
	draftService := service.NewDraftService(kv, cfg.DraftTTL, log)
	submissionService := service.NewSubmissionService(
		examStore, attemptRepo, lock.NewManager(kv), draftService,
		kv, cleanupQueue, cfg.SubmitLockTTL, log,
	)
	sessionService := service.NewExamSessionService(examStore, attemptRepo, draftService, log)
	examService := service.NewExamService(examStore, attemptRepo, log)
	reportService := service.NewReportService(examStore, attemptRepo, reportLoc, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:       handler.NewAuthHandler(),
		Student:    handler.NewStudentHandler(sessionService, draftService, submissionService, reportService, log),
		Instructor: handler.NewInstructorHandler(examService, reportService, log),
		Feed:       handler.NewFeedHandler(examService, kv, log),
		WS:         handler.NewWSHandler(draftService, submissionService, log, cfg.AllowedOrigins),
		System: handler.NewSystemHandler(map[string]handler.Check{
			"postgres": pool.Ping,
			"kv":       kv.Ping,
		}, log),
	}

	limiterDone := make(chan struct{})
	limiters := &router.Limiters{
		Submit: middleware.NewRateLimiter(cfg.SubmitRatePerMinute, time.Minute, middleware.ByUser),
	}
	go limiters.Submit.Run(limiterDone)

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	workerDone := make(chan struct{})

	if cleanupQueue != nil {
		cleanupWorker := worker.NewDraftCleanupWorker(kv, cleanupQueue, log)
		go func() {
			defer close(workerDone)
			cleanupWorker.Start(workerCtx)
		}()
	} else {
		close(workerDone)
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, limiters, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests. In-flight submissions finish or
	// their locks expire on their own.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}
	close(limiterDone)

	// 2. Stop the cleanup worker and let it flush what it already popped.
	workerCancel()
	select {
	case <-workerDone:
	case <-time.After(workerDrainTimeout):
		log.Warn().Msg("Cleanup worker did not drain in time")
	}

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
