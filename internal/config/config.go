// Package config holds configuration for the IntelliMaint assessment
// & diagnostics engine, loaded the way the teacher loads it: YAML via
// gopkg.in/yaml.v3, with an environment-variable fallback.
package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the engine.
type Config struct {
	Server          ServerConfig          `yaml:"server"`
	Scheduler       SchedulerConfig       `yaml:"scheduler"`
	Health          HealthConfig          `yaml:"health"`
	Importance      ImportanceConfig      `yaml:"importance"`
	AlarmScore      AlarmScoreConfig      `yaml:"alarm_score"`
	DynamicBaseline DynamicBaselineConfig `yaml:"dynamic_baseline"`
	MultiScale      MultiScaleConfig      `yaml:"multi_scale"`
	Degradation     DegradationConfig     `yaml:"degradation"`
	TrendPrediction TrendPredictionConfig `yaml:"trend_prediction"`
	RulPrediction   RulPredictionConfig   `yaml:"rul_prediction"`
	FaultDetection  FaultDetectionConfig  `yaml:"fault_detection"`
	Cycle           CycleConfig           `yaml:"cycle"`
	Broadcast       BroadcastConfig       `yaml:"broadcast"`
}

// ServerConfig holds the thin operational HTTP surface (health/metrics
// only — the business REST API is out of scope for this core).
type ServerConfig struct {
	Port        int    `yaml:"port"`
	Environment string `yaml:"environment"`
}

// SchedulerConfig holds the C12 periodic-driver intervals.
type SchedulerConfig struct {
	AssessInterval             time.Duration `yaml:"assess_interval"`
	DynamicBaselineInterval    time.Duration `yaml:"dynamic_baseline_interval"`
	CorrelationRefreshInterval time.Duration `yaml:"correlation_refresh_interval"`
	TrendRulInterval           time.Duration `yaml:"trend_rul_interval"`
	MotorDiagnosisInterval     time.Duration `yaml:"motor_diagnosis_interval"`
	BroadcastTickInterval      time.Duration `yaml:"broadcast_tick_interval"`
	Workers                    int           `yaml:"workers"`
	FeatureWindowMinutes       int           `yaml:"feature_window_minutes"`
}

// HealthConfig holds C5 weights and level thresholds.
type HealthConfig struct {
	WeightDeviation float64 `yaml:"weight_deviation"`
	WeightTrend     float64 `yaml:"weight_trend"`
	WeightStability float64 `yaml:"weight_stability"`
	WeightAlarm     float64 `yaml:"weight_alarm"`

	HealthyMin   float64 `yaml:"healthy_min"`
	AttentionMin float64 `yaml:"attention_min"`
	WarningMin   float64 `yaml:"warning_min"`
}

// ImportanceConfig holds the C2 default.
type ImportanceConfig struct {
	DefaultTagImportance string `yaml:"default_tag_importance"`
}

// AlarmScoreConfig holds C5's alarm sub-score parameters.
type AlarmScoreConfig struct {
	CriticalPenalty       float64 `yaml:"critical_penalty"`
	ErrorPenalty          float64 `yaml:"error_penalty"`
	WarningPenalty        float64 `yaml:"warning_penalty"`
	InfoPenalty           float64 `yaml:"info_penalty"`
	ConsiderDuration      bool    `yaml:"consider_duration"`
	DurationFactorPerHour float64 `yaml:"duration_factor_per_hour"`
	MaxDurationMultiplier float64 `yaml:"max_duration_multiplier"`
	MinScore              float64 `yaml:"min_score"`
}

// DynamicBaselineConfig holds C4's periodic updater parameters.
type DynamicBaselineConfig struct {
	Enabled                bool    `yaml:"enabled"`
	UpdateIntervalHours    float64 `yaml:"update_interval_hours"`
	MinSampleCount         int     `yaml:"min_sample_count"`
	AnomalyFilterThreshold float64 `yaml:"anomaly_filter_threshold"`
	IncrementalWeight      float64 `yaml:"incremental_weight"`
	AgingFactor            float64 `yaml:"aging_factor"`
}

// MultiScaleConfig holds C8's multi-window composition parameters.
type MultiScaleConfig struct {
	Enabled           bool    `yaml:"enabled"`
	ShortTermMinutes  int     `yaml:"short_term_minutes"`
	MediumTermMinutes int     `yaml:"medium_term_minutes"`
	LongTermMinutes   int     `yaml:"long_term_minutes"`
	ShortTermWeight   float64 `yaml:"short_term_weight"`
	MediumTermWeight  float64 `yaml:"medium_term_weight"`
	LongTermWeight    float64 `yaml:"long_term_weight"`
}

// DegradationConfig holds C8's degradation detector parameters.
type DegradationConfig struct {
	Enabled                  bool    `yaml:"enabled"`
	DetectionWindowDays      float64 `yaml:"detection_window_days"`
	NoiseFilterWindowHours   float64 `yaml:"noise_filter_window_hours"`
	ConfirmationCount        int     `yaml:"confirmation_count"`
	DegradationRateThreshold float64 `yaml:"degradation_rate_threshold"`
}

// TrendPredictionConfig holds C8's exponential-smoothed trend forecaster.
type TrendPredictionConfig struct {
	Enabled                    bool    `yaml:"enabled"`
	HistoryWindowHours         float64 `yaml:"history_window_hours"`
	MinDataPoints              int     `yaml:"min_data_points"`
	SmoothingAlpha             float64 `yaml:"smoothing_alpha"`
	PredictionHorizonHours     float64 `yaml:"prediction_horizon_hours"`
	TrendSignificanceThreshold float64 `yaml:"trend_significance_threshold"`
	ConfidenceThreshold        float64 `yaml:"confidence_threshold"`
}

// RulPredictionConfig holds C8's RUL predictor.
type RulPredictionConfig struct {
	Enabled           bool    `yaml:"enabled"`
	HistoryWindowDays float64 `yaml:"history_window_days"`
	MinDataPoints     int     `yaml:"min_data_points"`
	FailureThreshold  float64 `yaml:"failure_threshold"`
	MaxPredictionDays float64 `yaml:"max_prediction_days"`
	ModelType         string  `yaml:"model_type"`
}

// FaultDetectionConfig holds C10's motor fault thresholds.
type FaultDetectionConfig struct {
	MinorThreshold            float64 `yaml:"minor_threshold"`
	ModerateThreshold         float64 `yaml:"moderate_threshold"`
	SevereThreshold           float64 `yaml:"severe_threshold"`
	CriticalThreshold         float64 `yaml:"critical_threshold"`
	PhaseImbalanceThreshold   float64 `yaml:"phase_imbalance_threshold"`
	ThdThreshold              float64 `yaml:"thd_threshold"`
	BearingFaultGainThreshold float64 `yaml:"bearing_fault_gain_threshold"`
	MinConfidence             float64 `yaml:"min_confidence"`
}

// CycleConfig holds C9's work-cycle detector thresholds.
type CycleConfig struct {
	AngleThresholdDeg float64 `yaml:"angle_threshold_deg"`
	MinCycleDuration  float64 `yaml:"min_cycle_duration_seconds"`
	MaxCycleDuration  float64 `yaml:"max_cycle_duration_seconds"`
	OverCurrentAmps   float64 `yaml:"over_current_amps"`
}

// BroadcastConfig holds the C11 hub's per-subscriber bounded queue size.
type BroadcastConfig struct {
	SubscriberQueueSize int `yaml:"subscriber_queue_size"`
}

// Load loads configuration from a YAML file, expanding environment
// variables first, exactly as the teacher does.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns the configuration defaults mirroring spec.md's
// recognized configuration keys and suggested intervals.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        getEnvInt("PORT", 8090),
			Environment: getEnv("ENVIRONMENT", "development"),
		},
		Scheduler: SchedulerConfig{
			AssessInterval:             getEnvDuration("ASSESS_INTERVAL", 30*time.Second),
			DynamicBaselineInterval:    getEnvDuration("DYNAMIC_BASELINE_INTERVAL", time.Hour),
			CorrelationRefreshInterval: getEnvDuration("CORRELATION_REFRESH_INTERVAL", 5*time.Minute),
			TrendRulInterval:           getEnvDuration("TREND_RUL_INTERVAL", 5*time.Minute),
			MotorDiagnosisInterval:     getEnvDuration("MOTOR_DIAGNOSIS_INTERVAL", time.Second),
			BroadcastTickInterval:      getEnvDuration("BROADCAST_TICK_INTERVAL", time.Second),
			Workers:                    getEnvInt("SCHEDULER_WORKERS", 8),
			FeatureWindowMinutes:       getEnvInt("FEATURE_WINDOW_MINUTES", 15),
		},
		Health: HealthConfig{
			WeightDeviation: 0.40,
			WeightTrend:     0.30,
			WeightStability: 0.20,
			WeightAlarm:     0.10,
			HealthyMin:      80,
			AttentionMin:    60,
			WarningMin:      40,
		},
		Importance: ImportanceConfig{
			DefaultTagImportance: "Minor",
		},
		AlarmScore: AlarmScoreConfig{
			CriticalPenalty:       40,
			ErrorPenalty:          25,
			WarningPenalty:        12,
			InfoPenalty:           5,
			ConsiderDuration:      true,
			DurationFactorPerHour: 0.05,
			MaxDurationMultiplier: 2.0,
			MinScore:              0,
		},
		DynamicBaseline: DynamicBaselineConfig{
			Enabled:                true,
			UpdateIntervalHours:    1,
			MinSampleCount:         100,
			AnomalyFilterThreshold: 3.0,
			IncrementalWeight:      0.2,
			AgingFactor:            0.01,
		},
		MultiScale: MultiScaleConfig{
			Enabled:           true,
			ShortTermMinutes:  15,
			MediumTermMinutes: 60,
			LongTermMinutes:   240,
			ShortTermWeight:   0.5,
			MediumTermWeight:  0.3,
			LongTermWeight:    0.2,
		},
		Degradation: DegradationConfig{
			Enabled:                  true,
			DetectionWindowDays:      7,
			NoiseFilterWindowHours:   6,
			ConfirmationCount:        3,
			DegradationRateThreshold: 1.0,
		},
		TrendPrediction: TrendPredictionConfig{
			Enabled:                    true,
			HistoryWindowHours:         72,
			MinDataPoints:              20,
			SmoothingAlpha:             0.3,
			PredictionHorizonHours:     168,
			TrendSignificanceThreshold: 0.01,
			ConfidenceThreshold:        0.6,
		},
		RulPrediction: RulPredictionConfig{
			Enabled:           true,
			HistoryWindowDays: 14,
			MinDataPoints:     10,
			FailureThreshold:  40,
			MaxPredictionDays: 90,
			ModelType:         "linear",
		},
		FaultDetection: FaultDetectionConfig{
			MinorThreshold:            2,
			ModerateThreshold:         3,
			SevereThreshold:           4,
			CriticalThreshold:         5,
			PhaseImbalanceThreshold:   10,
			ThdThreshold:              10,
			BearingFaultGainThreshold: 5,
			MinConfidence:             50,
		},
		Cycle: CycleConfig{
			AngleThresholdDeg: 10,
			MinCycleDuration:  30,
			MaxCycleDuration:  120,
			OverCurrentAmps:   12000,
		},
		Broadcast: BroadcastConfig{
			SubscriberQueueSize: 256,
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
