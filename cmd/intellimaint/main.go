// Command intellimaint runs the Assessment & Diagnostics Engine core:
// the scheduler drives feature extraction, baseline learning, health
// scoring, correlation, trend/RUL forecasting, motor and work-cycle
// fault detection, and broadcast fan-out, while a thin HTTP surface
// exposes only /healthz, /readyz and /metrics — the business REST API
// and edge collectors are external collaborators, not part of this
// process. Grounded on the teacher's cmd/iotsense/main.go wiring and
// graceful-shutdown pattern.
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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/savegress/intellimaint/internal/alarms"
	"github.com/savegress/intellimaint/internal/api"
	"github.com/savegress/intellimaint/internal/baseline"
	"github.com/savegress/intellimaint/internal/broadcast"
	"github.com/savegress/intellimaint/internal/config"
	"github.com/savegress/intellimaint/internal/correlation"
	"github.com/savegress/intellimaint/internal/cycle"
	"github.com/savegress/intellimaint/internal/devices"
	"github.com/savegress/intellimaint/internal/features"
	"github.com/savegress/intellimaint/internal/health"
	"github.com/savegress/intellimaint/internal/importance"
	"github.com/savegress/intellimaint/internal/motor"
	"github.com/savegress/intellimaint/internal/obs"
	"github.com/savegress/intellimaint/internal/predict"
	"github.com/savegress/intellimaint/internal/scheduler"
	"github.com/savegress/intellimaint/internal/telemetry"
	"github.com/savegress/intellimaint/pkg/models"
)

func main() {
	var cfg *config.Config
	if configPath := os.Getenv("CONFIG_PATH"); configPath != "" {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	} else {
		cfg = config.Default()
	}

	log.Printf("Starting IntelliMaint Assessment & Diagnostics Engine")
	log.Printf("Environment: %s", cfg.Server.Environment)

	registry := prometheus.NewRegistry()
	metrics := obs.NewMetrics(registry)
	tracerProvider := obs.NewTracerProvider("intellimaint-engine")
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			log.Printf("tracer provider shutdown: %v", err)
		}
	}()
	tracer := tracerProvider.Tracer("scheduler")

	telemetryStore := telemetry.NewMemStore()
	deviceRepo := devices.NewMemDeviceRepository()

	matcher := importance.NewMatcher(models.ParseImportance(cfg.Importance.DefaultTagImportance))

	extractor := features.NewExtractor(telemetryStore)
	baselines := baseline.NewStore(telemetryStore, baseline.Config{
		MinSampleCount:         cfg.DynamicBaseline.MinSampleCount,
		AnomalyFilterThreshold: cfg.DynamicBaseline.AnomalyFilterThreshold,
		IncrementalWeight:      cfg.DynamicBaseline.IncrementalWeight,
		AgingFactor:            cfg.DynamicBaseline.AgingFactor,
		UpdateIntervalHours:    cfg.DynamicBaseline.UpdateIntervalHours,
	})
	calculator := health.NewCalculator(
		health.Weights{
			Deviation: cfg.Health.WeightDeviation,
			Trend:     cfg.Health.WeightTrend,
			Stability: cfg.Health.WeightStability,
			Alarm:     cfg.Health.WeightAlarm,
		},
		health.Thresholds{
			HealthyMin:   cfg.Health.HealthyMin,
			AttentionMin: cfg.Health.AttentionMin,
			WarningMin:   cfg.Health.WarningMin,
		},
		health.AlarmScoreConfig{
			CriticalPenalty:       cfg.AlarmScore.CriticalPenalty,
			ErrorPenalty:          cfg.AlarmScore.ErrorPenalty,
			WarningPenalty:        cfg.AlarmScore.WarningPenalty,
			InfoPenalty:           cfg.AlarmScore.InfoPenalty,
			ConsiderDuration:      cfg.AlarmScore.ConsiderDuration,
			DurationFactorPerHour: cfg.AlarmScore.DurationFactorPerHour,
			MaxDurationMultiplier: cfg.AlarmScore.MaxDurationMultiplier,
			MinScore:              cfg.AlarmScore.MinScore,
		},
		matcher,
	)
	correlationAnalyzer := correlation.NewAnalyzer(telemetryStore)

	alarmEval := alarms.NewEvaluator()
	if cfg.Server.Environment == "development" {
		alarmEval.AddNotifier(alarms.NewConsoleNotifier())
	}

	hub := broadcast.NewHub(broadcast.Config{
		BufferSize: cfg.Broadcast.SubscriberQueueSize,
		Metrics:    metrics,
	})

	schedCfg := scheduler.Config{
		AssessInterval:       cfg.Scheduler.AssessInterval,
		BaselineInterval:     cfg.Scheduler.DynamicBaselineInterval,
		CorrelationInterval:  cfg.Scheduler.CorrelationRefreshInterval,
		TrendInterval:        cfg.Scheduler.TrendRulInterval,
		MotorInterval:        cfg.Scheduler.MotorDiagnosisInterval,
		CycleInterval:        time.Minute,
		BroadcastInterval:    cfg.Scheduler.BroadcastTickInterval,
		FeatureWindowMinutes: cfg.Scheduler.FeatureWindowMinutes,
		HealthHistoryDepth:   168,
		PoolWorkers:          cfg.Scheduler.Workers,
		PoolQueueSize:        256,
		Trend: predict.TrendPredictionConfig{
			Enabled:                    cfg.TrendPrediction.Enabled,
			HistoryWindowHours:         cfg.TrendPrediction.HistoryWindowHours,
			MinDataPoints:              cfg.TrendPrediction.MinDataPoints,
			SmoothingAlpha:             cfg.TrendPrediction.SmoothingAlpha,
			PredictionHorizonHours:     cfg.TrendPrediction.PredictionHorizonHours,
			TrendSignificanceThreshold: cfg.TrendPrediction.TrendSignificanceThreshold,
			ConfidenceThreshold:        cfg.TrendPrediction.ConfidenceThreshold,
		},
		Rul: predict.RulConfig{
			Enabled:           cfg.RulPrediction.Enabled,
			MinDataPoints:     cfg.RulPrediction.MinDataPoints,
			FailureThreshold:  cfg.RulPrediction.FailureThreshold,
			MaxPredictionDays: cfg.RulPrediction.MaxPredictionDays,
		},
		Degradation: predict.DegradationConfig{
			Enabled:                  cfg.Degradation.Enabled,
			DetectionWindowDays:      cfg.Degradation.DetectionWindowDays,
			NoiseFilterWindowHours:   cfg.Degradation.NoiseFilterWindowHours,
			ConfirmationCount:        cfg.Degradation.ConfirmationCount,
			DegradationRateThreshold: cfg.Degradation.DegradationRateThreshold,
		},
		Motor: motor.FaultConfig{
			PhaseImbalanceThresholdPct: cfg.FaultDetection.PhaseImbalanceThreshold,
			BearingFaultGainThreshold:  cfg.FaultDetection.BearingFaultGainThreshold,
			ThdThreshold:               cfg.FaultDetection.ThdThreshold,
		},
		Cycle: cycle.Config{
			AngleThresholdDeg: cfg.Cycle.AngleThresholdDeg,
			MinCycleDuration:  cfg.Cycle.MinCycleDuration,
			MaxCycleDuration:  cfg.Cycle.MaxCycleDuration,
			OverCurrentAmps:   cfg.Cycle.OverCurrentAmps,
		},
	}

	sched := scheduler.New(schedCfg, scheduler.Dependencies{
		TelemetryRepo: telemetryStore,
		DeviceRepo:    deviceRepo,
		Extractor:     extractor,
		Baselines:     baselines,
		Calculator:    calculator,
		Correlation:   correlationAnalyzer,
		AlarmEval:     alarmEval,
		Matcher:       matcher,
		Hub:           hub,
		Metrics:       metrics,
		Tracer:        tracer,
	}, nil)

	sched.Start()
	log.Println("Scheduler started")

	statusMonitor := devices.NewStatusMonitor(deviceRepo, 5*time.Minute)
	statusMonitor.OnStatusChange(func(deviceID string, online bool) {
		log.Printf("device %s online=%v", deviceID, online)
	})
	statusMonitor.Start(time.Minute, func() int64 { return time.Now().UnixMilli() })

	server := api.NewServer(sched, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: server.Handler(),
	}

	go func() {
		log.Printf("HTTP ops surface listening on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	statusMonitor.Stop()
	sched.Stop()

	log.Println("IntelliMaint engine stopped")
}
