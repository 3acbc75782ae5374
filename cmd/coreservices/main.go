// Package main is the entry point for the core runtime services process:
// the resilience fabric, multi-tenancy enforcement, trade execution
// pipeline, and capacity control plane, exposed over the ops HTTP API.
//
// This is the module's only binary.
package main

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/aristath/sentinel/internal/capacity"
	"github.com/aristath/sentinel/internal/ops"
	"github.com/aristath/sentinel/internal/resilience"
	"github.com/aristath/sentinel/internal/tenancy"
	"github.com/aristath/sentinel/internal/tradepipeline"
	"github.com/aristath/sentinel/pkg/logger"
)

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	_ = godotenv.Load()

	log := logger.New(logger.Config{Level: getEnv("LOG_LEVEL", "info"), Pretty: getEnv("DEV_MODE", "") != ""})
	log.Info().Msg("starting core runtime services")

	cbRegistry, bhRegistry, rlRegistry := resilience.DefaultRegistries(log)

	tenants := tenancy.NewManager(1000, log)
	policies := tenancy.NewPolicyEngine(tenancy.DefaultPolicyEngineConfig(), log)

	bridge := tradepipeline.NewSignalBridge(tradepipeline.DefaultBridgeConfig())
	startEquity := bridge.AccountEquity()
	pipeline, err := tradepipeline.NewPipeline(tradepipeline.DefaultPipelineConfig(), startEquity, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to construct trade pipeline")
	}
	reconciler, err := tradepipeline.NewReconciler(tradepipeline.DefaultReconcilerConfig(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to construct reconciler")
	}

	monitor, err := capacity.NewMonitor(capacity.DefaultMonitorConfig(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to construct resource monitor")
	}
	forecaster, err := capacity.NewForecaster(capacity.DefaultForecasterConfig(), monitor, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to construct forecaster")
	}
	_ = forecaster // constructed and validated at startup; no route or scheduled job uses it
	scaling, err := capacity.NewScalingManager(capacity.DefaultScalingManagerConfig(), monitor, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to construct scaling manager")
	}
	costs, err := capacity.NewCostAnalyzer(capacity.DefaultCostAnalyzerConfig(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to construct cost analyzer")
	}

	controller := capacity.NewController(monitor, scaling, log)
	if err := controller.ScheduleHostIngest("*/30 * * * * *"); err != nil {
		log.Fatal().Err(err).Msg("failed to schedule host ingest")
	}
	if err := controller.ScheduleEvaluation("0 * * * * *"); err != nil {
		log.Fatal().Err(err).Msg("failed to schedule scaling evaluation")
	}
	controller.Start()
	defer controller.Stop()

	router := ops.NewRouter(ops.Dependencies{
		CircuitBreakers: cbRegistry,
		Bulkheads:       bhRegistry,
		RateLimiters:    rlRegistry,
		Policies:        policies,
		Tenants:         tenants,
		Pipeline:        pipeline,
		Reconciler:      reconciler,
		Monitor:         monitor,
		Scaling:         scaling,
		Costs:           costs,
	}, log)

	port := getEnv("OPS_PORT", "8090")
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("port", port).Msg("ops API listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("ops API failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down core runtime services")
}
