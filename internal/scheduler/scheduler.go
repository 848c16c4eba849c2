// Package scheduler owns the periodic drivers (C12) that tie the
// telemetry store to feature extraction, baselines, health scoring,
// correlation, alarms, predictors, and the broadcast hub. Grounded on
// the teacher's ticker + stopCh + select loop idiom (internal/oee/tracker.go,
// internal/digitaltwin/sync.go), generalized to several independent
// timers instead of one.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/savegress/intellimaint/internal/alarms"
	"github.com/savegress/intellimaint/internal/baseline"
	"github.com/savegress/intellimaint/internal/broadcast"
	"github.com/savegress/intellimaint/internal/correlation"
	"github.com/savegress/intellimaint/internal/cycle"
	"github.com/savegress/intellimaint/internal/devices"
	"github.com/savegress/intellimaint/internal/features"
	"github.com/savegress/intellimaint/internal/health"
	"github.com/savegress/intellimaint/internal/importance"
	"github.com/savegress/intellimaint/internal/motor"
	"github.com/savegress/intellimaint/internal/obs"
	"github.com/savegress/intellimaint/internal/predict"
	"github.com/savegress/intellimaint/internal/telemetry"
	"github.com/savegress/intellimaint/internal/workerpool"
	"github.com/savegress/intellimaint/pkg/models"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Config controls each driver's interval and the fan-out worker pool size.
type Config struct {
	AssessInterval       time.Duration // ~30s
	BaselineInterval     time.Duration // ~hourly
	CorrelationInterval  time.Duration // minutes
	TrendInterval        time.Duration // ~5min
	MotorInterval        time.Duration // ~1s per instance, capped
	CycleInterval        time.Duration // ~1min per instance
	BroadcastInterval    time.Duration // ~1s
	FeatureWindowMinutes int
	HealthHistoryDepth   int
	PoolWorkers          int
	PoolQueueSize        int
	Trend                predict.TrendPredictionConfig
	Rul                  predict.RulConfig
	Degradation          predict.DegradationConfig
	Motor                motor.FaultConfig
	Cycle                cycle.Config
}

// CycleInstanceSource supplies the raw angle/current series needed to
// run work-cycle detection for one cycle-monitored axis.
type CycleInstanceSource interface {
	ListInstances() []CycleInstanceRef
	Series(instanceID string, nowMs int64) (deviceID string, ts []int64, angle, current1, current2 []float64, baseline cycle.MotorBaseline, hasBaseline bool, err error)
}

// CycleInstanceRef names one work-cycle-monitored instance.
type CycleInstanceRef struct {
	InstanceID string
	DeviceID   string
}

// MotorInstanceSource supplies the live readings needed to run fault
// detection for one motor instance. Implementations map mapped
// telemetry tags to MotorParameter readings against a learned
// per-(mode, parameter) baseline.
type MotorInstanceSource interface {
	ListInstances() []MotorInstanceRef
	Readings(instanceID string, nowMs int64) (deviceID, modeID string, readings []motor.Reading, err error)
}

// MotorInstanceRef names one motor instance to diagnose.
type MotorInstanceRef struct {
	InstanceID string
	DeviceID   string
}

// DefaultConfig returns the interval defaults named in the spec.
func DefaultConfig() Config {
	return Config{
		AssessInterval:       30 * time.Second,
		BaselineInterval:     time.Hour,
		CorrelationInterval:  5 * time.Minute,
		TrendInterval:        5 * time.Minute,
		MotorInterval:        time.Second,
		CycleInterval:        time.Minute,
		BroadcastInterval:    time.Second,
		FeatureWindowMinutes: 60,
		HealthHistoryDepth:   168, // entries kept per device; one is appended per assess-all run
		PoolWorkers:          4,
		PoolQueueSize:        256,
	}
}

// NowFunc abstracts the wall clock so callers can inject deterministic
// time in tests.
type NowFunc func() int64

// Scheduler owns one timer per periodic driver.
type Scheduler struct {
	cfg Config
	now NowFunc

	telemetryRepo telemetry.Repository
	deviceRepo    devices.DeviceRepository
	extractor     *features.Extractor
	baselines     *baseline.Store
	calculator    *health.Calculator
	correlation   *correlation.Analyzer
	alarmEval     *alarms.Evaluator
	matcher       *importance.Matcher
	hub           *broadcast.Hub
	motorSource   MotorInstanceSource
	cycleSource   CycleInstanceSource
	pool          *workerpool.Pool
	metrics       *obs.Metrics
	tracer        trace.Tracer

	mu         sync.Mutex
	lastHealth map[string]models.HealthScore
	healthHist map[string][]float64

	stop chan struct{}
	wg   sync.WaitGroup
}

// Dependencies bundles the collaborators the scheduler drives. Every
// field is required except MotorSource and CycleSource, which disable
// the motor diagnosis and cycle detection drivers when nil, and
// Metrics and Tracer, which may be nil.
type Dependencies struct {
	TelemetryRepo telemetry.Repository
	DeviceRepo    devices.DeviceRepository
	Extractor     *features.Extractor
	Baselines     *baseline.Store
	Calculator    *health.Calculator
	Correlation   *correlation.Analyzer
	AlarmEval     *alarms.Evaluator
	Matcher       *importance.Matcher
	Hub           *broadcast.Hub
	MotorSource   MotorInstanceSource
	CycleSource   CycleInstanceSource
	Metrics       *obs.Metrics
	Tracer        trace.Tracer
}

// New builds a Scheduler. now defaults to time.Now in milliseconds if nil.
func New(cfg Config, deps Dependencies, now NowFunc) *Scheduler {
	if now == nil {
		now = func() int64 { return time.Now().UnixMilli() }
	}
	return &Scheduler{
		cfg:           cfg,
		now:           now,
		telemetryRepo: deps.TelemetryRepo,
		deviceRepo:    deps.DeviceRepo,
		extractor:     deps.Extractor,
		baselines:     deps.Baselines,
		calculator:    deps.Calculator,
		correlation:   deps.Correlation,
		alarmEval:     deps.AlarmEval,
		matcher:       deps.Matcher,
		hub:           deps.Hub,
		motorSource:   deps.MotorSource,
		cycleSource:   deps.CycleSource,
		pool:          workerpool.New(cfg.PoolWorkers, cfg.PoolQueueSize),
		metrics:       deps.Metrics,
		tracer:        deps.Tracer,
		lastHealth:    make(map[string]models.HealthScore),
		healthHist:    make(map[string][]float64),
		stop:          make(chan struct{}),
	}
}

// Start launches every driver on its own ticker. Each driver catches
// and logs its own errors rather than killing the loop.
func (s *Scheduler) Start() {
	s.startDriver("assess-all", s.cfg.AssessInterval, s.runAssessAll)
	s.startDriver("baseline-update", s.cfg.BaselineInterval, s.runBaselineUpdate)
	s.startDriver("correlation-refresh", s.cfg.CorrelationInterval, s.runCorrelationRefresh)
	s.startDriver("trend-rul", s.cfg.TrendInterval, s.runTrendAndRUL)
	s.startDriver("motor-diagnosis", s.cfg.MotorInterval, s.runMotorDiagnosis)
	s.startDriver("cycle-detection", s.cfg.CycleInterval, s.runCycleDetection)
	s.startDriver("broadcast-tick", s.cfg.BroadcastInterval, s.runBroadcastTick)
}

// Stop cancels every driver and the worker pool, waiting for
// in-flight iterations to finish.
func (s *Scheduler) Stop() {
	close(s.stop)
	s.wg.Wait()
	s.pool.Stop()
}

func (s *Scheduler) startDriver(name string, interval time.Duration, run func()) {
	if interval <= 0 {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				s.safeRun(name, run)
			}
		}
	}()
}

func (s *Scheduler) safeRun(name string, run func()) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveTick(name, time.Since(start).Seconds())
		if r := recover(); r != nil {
			s.metrics.IncFailure(name)
			log.Printf("scheduler: driver %s panicked: %v", name, r)
		}
	}()
	run()
}

// runAssessAll extracts features, updates health scores, and
// evaluates alarms for every enabled device, fanned out across the
// bounded worker pool.
func (s *Scheduler) runAssessAll() {
	devs, err := s.deviceRepo.ListEnabled()
	if err != nil {
		log.Printf("scheduler: assess-all: listing devices: %v", err)
		return
	}

	nowMs := s.now()
	var fns []func()
	for _, d := range devs {
		device := d
		fns = append(fns, func() { s.assessDevice(device, nowMs) })
	}
	s.pool.RunAll(fns)

	for _, severity := range []int{1, 2, 3, 4} {
		count := 0
		for _, d := range devs {
			for _, sv := range s.alarmEval.OpenAlarmSeverities(d.DeviceID) {
				if sv == severity {
					count++
				}
			}
		}
		s.metrics.SetOpenAlarms(fmt.Sprintf("%d", severity), count)
	}
}

func (s *Scheduler) assessDevice(device models.Device, nowMs int64) {
	_, span := obs.StartSpan(context.Background(), s.tracer, "scheduler.assess_device")
	span.SetAttributes(attribute.String("device_id", device.DeviceID))
	defer span.End()

	feats, err := s.extractor.Extract(device.DeviceID, s.cfg.FeatureWindowMinutes, nowMs)
	if err != nil {
		log.Printf("scheduler: assess %s: extracting features: %v", device.DeviceID, err)
		return
	}

	baselineSnapshot, hasBaseline := s.baselines.Get(device.DeviceID)
	severities := s.alarmEval.OpenAlarmSeverities(device.DeviceID)

	score := s.calculator.Calculate(device.DeviceID, nowMs, feats, baselineSnapshot, hasBaseline, severities)

	s.mu.Lock()
	s.lastHealth[device.DeviceID] = score
	hist := append(s.healthHist[device.DeviceID], score.Index)
	if depth := s.cfg.HealthHistoryDepth; depth > 0 && len(hist) > depth {
		hist = hist[len(hist)-depth:]
	}
	s.healthHist[device.DeviceID] = hist
	s.mu.Unlock()

	for tagID, tf := range feats.TagFeatures {
		for _, record := range s.alarmEval.Evaluate(device.DeviceID, tagID, tf.Latest, nowMs) {
			_ = record
		}
	}

	s.hub.Publish(broadcast.DeviceTopic(device.DeviceID), score)
}

// LatestHealth returns the most recently computed HealthScore for a device.
func (s *Scheduler) LatestHealth(deviceID string) (models.HealthScore, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.lastHealth[deviceID]
	return v, ok
}

func (s *Scheduler) runBaselineUpdate() {
	devs, err := s.deviceRepo.ListEnabled()
	if err != nil {
		log.Printf("scheduler: baseline-update: listing devices: %v", err)
		return
	}
	nowMs := s.now()
	windowStart := nowMs - int64(s.cfg.FeatureWindowMinutes)*60*1000

	var fns []func()
	for _, d := range devs {
		deviceID := d.DeviceID
		fns = append(fns, func() {
			if _, updated, err := s.baselines.Update(deviceID, windowStart, nowMs, nowMs); err != nil {
				log.Printf("scheduler: baseline-update %s: %v", deviceID, err)
			} else if updated {
				log.Printf("scheduler: baseline-update %s: refreshed", deviceID)
			}
		})
	}
	s.pool.RunAll(fns)
}

func (s *Scheduler) runCorrelationRefresh() {
	devs, err := s.deviceRepo.ListEnabled()
	if err != nil {
		log.Printf("scheduler: correlation-refresh: listing devices: %v", err)
		return
	}
	nowMs := s.now()
	windowStart := nowMs - int64(s.cfg.FeatureWindowMinutes)*60*1000

	var fns []func()
	for _, d := range devs {
		deviceID := d.DeviceID
		fns = append(fns, func() {
			if _, err := s.correlation.Analyze(deviceID, windowStart, nowMs); err != nil {
				log.Printf("scheduler: correlation-refresh %s: %v", deviceID, err)
			}
		})
	}
	s.pool.RunAll(fns)
}

// runBroadcastTick reads the latest sample per tag for every device
// and publishes any new ones; the hub itself enforces monotone Ts per
// (DeviceId, TagId) so republishing a stale sample is a no-op.
func (s *Scheduler) runBroadcastTick() {
	devs, err := s.deviceRepo.ListEnabled()
	if err != nil {
		log.Printf("scheduler: broadcast-tick: listing devices: %v", err)
		return
	}

	for _, d := range devs {
		latest, err := s.telemetryRepo.GetLatestAll(d.DeviceID)
		if err != nil {
			log.Printf("scheduler: broadcast-tick %s: %v", d.DeviceID, err)
			continue
		}
		for tagID, point := range latest {
			s.hub.PublishTelemetryPoint(d.DeviceID, tagID, point.Ts, point)
		}
	}
}

// runTrendAndRUL runs degradation detection and a remaining-useful-life
// estimate on each device's accumulated health-index history.
func (s *Scheduler) runTrendAndRUL() {
	s.mu.Lock()
	snapshots := make(map[string][]float64, len(s.healthHist))
	for deviceID, hist := range s.healthHist {
		snapshots[deviceID] = append([]float64(nil), hist...)
	}
	s.mu.Unlock()

	for deviceID, hist := range snapshots {
		if len(hist) < s.cfg.Rul.MinDataPoints {
			continue
		}
		current := hist[len(hist)-1]

		degradation := predict.Detect(s.cfg.Degradation, hist, float64(len(hist))/24)
		rul := predict.Estimate(s.cfg.Rul, hist, current)

		if degradation.Type != predict.DegradationNone || rul.Status != predict.RulHealthy {
			log.Printf("scheduler: trend-rul %s: degradation=%v rul=%v", deviceID, degradation.Type, rul.Status)
		}
	}
}

// runMotorDiagnosis runs FFT-backed fault detection for every
// registered motor instance, capped at one pass per tick. Disabled
// when no MotorInstanceSource was wired.
func (s *Scheduler) runMotorDiagnosis() {
	if s.motorSource == nil {
		return
	}
	nowMs := s.now()
	for _, ref := range s.motorSource.ListInstances() {
		deviceID, modeID, readings, err := s.motorSource.Readings(ref.InstanceID, nowMs)
		if err != nil {
			log.Printf("scheduler: motor-diagnosis %s: %v", ref.InstanceID, err)
			continue
		}
		result := motor.Detect(s.cfg.Motor, ref.InstanceID, deviceID, modeID, nowMs, readings)
		s.hub.Publish(broadcast.DeviceTopic(deviceID), result)
	}
}

// runCycleDetection segments each registered axis's latest angle
// series into work cycles and scores them against its learned
// baseline. Disabled when no CycleInstanceSource was wired.
func (s *Scheduler) runCycleDetection() {
	if s.cycleSource == nil {
		return
	}
	nowMs := s.now()
	detector := cycle.NewDetector(s.cfg.Cycle)
	for _, ref := range s.cycleSource.ListInstances() {
		deviceID, ts, angle, current1, current2, baseline, hasBaseline, err := s.cycleSource.Series(ref.InstanceID, nowMs)
		if err != nil {
			log.Printf("scheduler: cycle-detection %s: %v", ref.InstanceID, err)
			continue
		}
		cycles := detector.DetectCycles(deviceID, ts, angle, current1, current2, baseline, hasBaseline)
		for _, wc := range cycles {
			s.hub.Publish(broadcast.DeviceTopic(deviceID), wc)
		}
	}
}
