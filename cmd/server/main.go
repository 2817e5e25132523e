package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coursekit/mailsched/config"
	"github.com/coursekit/mailsched/internal/audience"
	"github.com/coursekit/mailsched/internal/gateway"
	"github.com/coursekit/mailsched/internal/health"
	"github.com/coursekit/mailsched/internal/infrastructure/postgres"
	ctxlog "github.com/coursekit/mailsched/internal/log"
	"github.com/coursekit/mailsched/internal/metrics"
	"github.com/coursekit/mailsched/internal/scheduler"
	httptransport "github.com/coursekit/mailsched/internal/transport/http"
	"github.com/coursekit/mailsched/internal/transport/http/handler"
	"github.com/coursekit/mailsched/internal/usecase"
	"github.com/gin-gonic/gin"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := newLogger(cfg.Env, cfg.SlogLevel())

	if cfg.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		stop()
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	programRepo := postgres.NewProgramRepository(pool)
	versionRepo := postgres.NewVersionRepository(pool)
	runRepo := postgres.NewRunRepository(pool)
	contactRepo := postgres.NewContactRepository(pool)
	automationRepo := postgres.NewAutomationRepository(pool)
	enrollmentRepo := postgres.NewEnrollmentRepository(pool)
	ledgerRepo := postgres.NewLedgerRepository(pool)

	sender := gateway.NewThrottledSender(
		gateway.NewSender(cfg.Env, cfg.ResendAPIKey, logger),
		cfg.SendRatePerSec,
		2*time.Minute,
	)
	resolver := audience.NewResolver(contactRepo, logger)

	programRunner := scheduler.NewProgramRunner(
		programRepo, versionRepo, runRepo, resolver, sender, logger,
		scheduler.ProgramRunnerConfig{
			From:               cfg.MailFrom,
			UnsubscribeBaseURL: cfg.UnsubscribeBaseURL,
			BatchSize:          cfg.SendBatchSize,
			ClaimTTL:           time.Duration(cfg.ClaimTTLSec) * time.Second,
			ClaimLimit:         cfg.ClaimBatchLimit,
		},
	)
	automationRunner := scheduler.NewAutomationRunner(
		automationRepo, enrollmentRepo, ledgerRepo, sender, logger,
		scheduler.AutomationRunnerConfig{
			From:       cfg.MailFrom,
			ClaimTTL:   time.Duration(cfg.ClaimTTLSec) * time.Second,
			ClaimLimit: cfg.ClaimBatchLimit,
		},
	)

	programUsecase := usecase.NewProgramUsecase(programRepo, versionRepo, runRepo)
	automationUsecase := usecase.NewAutomationUsecase(automationRepo, automationRunner)

	programHandler := handler.NewProgramHandler(programUsecase, logger)
	automationHandler := handler.NewAutomationHandler(automationUsecase, logger)
	triggerHandler := handler.NewTriggerHandler(programRunner, automationRunner, logger)

	metrics.Register()
	checker := health.NewChecker(pool, logger, prometheus.DefaultRegisterer)

	srv := http.Server{
		Addr:    ":" + cfg.Port,
		Handler: httptransport.NewRouter(logger, programHandler, automationHandler, triggerHandler),
	}

	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, checker)

	go func() {
		logger.Info("server started", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "error", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}
}

func newLogger(env string, level slog.Level) *slog.Logger {
	var inner slog.Handler
	if env == "local" {
		inner = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	} else {
		inner = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}
	return slog.New(ctxlog.NewContextHandler(inner))
}
