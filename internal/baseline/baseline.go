// Package baseline implements the Baseline Store & Dynamic Updater
// (C4): learned per-tag statistics with periodic aging-weighted
// blending, grounded on the teacher's MetricBaseline EMA/Welford
// update (internal/maintenance/predictive.go, updateBaseline) and
// generalized to spec'd weighted blending over learning windows.
package baseline

import (
	"math"
	"sync"

	"github.com/savegress/intellimaint/internal/apperr"
	"github.com/savegress/intellimaint/internal/telemetry"
	"github.com/savegress/intellimaint/pkg/models"
)

const minLearnSamples = 100

// Config controls the dynamic update cadence and blending.
type Config struct {
	Enabled                bool
	UpdateIntervalHours    float64
	MinSampleCount         int
	AnomalyFilterThreshold float64 // z-score cutoff
	IncrementalWeight      float64 // w_new
	AgingFactor            float64 // per-day decay applied to w_old
}

// Store holds learned DeviceBaselines, keyed by DeviceID.
type Store struct {
	mu        sync.RWMutex
	baselines map[string]models.DeviceBaseline
	cfg       Config
	repo      telemetry.Repository
}

// NewStore creates an empty baseline store reading raw points from repo.
func NewStore(repo telemetry.Repository, cfg Config) *Store {
	return &Store{baselines: make(map[string]models.DeviceBaseline), cfg: cfg, repo: repo}
}

// Get returns the learned baseline for a device.
func (s *Store) Get(deviceID string) (models.DeviceBaseline, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.baselines[deviceID]
	return b, ok
}

// Learn computes a fresh DeviceBaseline from raw points in
// [startTs, endTs), requiring at least 100 samples per tag.
func (s *Store) Learn(deviceID string, startTs, endTs, nowMs int64) (models.DeviceBaseline, error) {
	pts, err := s.repo.QuerySimple(deviceID, "", startTs, endTs, 0)
	if err != nil {
		return models.DeviceBaseline{}, apperr.Dependency("TELEMETRY_QUERY_FAILED", "querying learning window", err)
	}

	byTag := groupByTag(pts)
	tagBaselines := make(map[string]models.TagBaseline)
	for tagID, values := range byTag {
		if len(values) < minLearnSamples {
			continue
		}
		tagBaselines[tagID] = statsToBaseline(values)
	}
	if len(tagBaselines) == 0 {
		return models.DeviceBaseline{}, apperr.InsufficientData("INSUFFICIENT_BASELINE_SAMPLES", "no tag reached the minimum sample count to learn a baseline")
	}

	b := models.DeviceBaseline{
		DeviceID:      deviceID,
		CreatedUtcMs:  nowMs,
		UpdatedUtcMs:  nowMs,
		SampleCount:   int64(len(pts)),
		LearningHours: float64(endTs-startTs) / 3_600_000,
		TagBaselines:  tagBaselines,
	}

	s.mu.Lock()
	s.baselines[deviceID] = b
	s.mu.Unlock()
	return b, nil
}

// Update performs the periodic dynamic blend for deviceID against a
// recent window [startTs, endTs), when enough time has passed since
// the last update and enough new samples are available. Returns
// (updated, true) on success, (zero, false) if skipped (not due yet,
// insufficient new data, or no existing baseline).
func (s *Store) Update(deviceID string, startTs, endTs, nowMs int64) (models.DeviceBaseline, bool, error) {
	s.mu.RLock()
	existing, ok := s.baselines[deviceID]
	s.mu.RUnlock()
	if !ok {
		return models.DeviceBaseline{}, false, nil
	}

	hoursSinceUpdate := float64(nowMs-existing.UpdatedUtcMs) / 3_600_000
	if hoursSinceUpdate < s.cfg.UpdateIntervalHours {
		return models.DeviceBaseline{}, false, nil
	}

	pts, err := s.repo.QuerySimple(deviceID, "", startTs, endTs, 0)
	if err != nil {
		return models.DeviceBaseline{}, false, apperr.Dependency("TELEMETRY_QUERY_FAILED", "querying update window", err)
	}
	byTag := groupByTag(pts)
	if totalSamples(byTag) < s.cfg.MinSampleCount {
		return models.DeviceBaseline{}, false, nil
	}

	daysSinceCreation := float64(nowMs-existing.CreatedUtcMs) / 86_400_000
	agingFactor := math.Max(1-daysSinceCreation*s.cfg.AgingFactor, 0.5)

	newTagBaselines := make(map[string]models.TagBaseline, len(existing.TagBaselines))
	for tagID, old := range existing.TagBaselines {
		newTagBaselines[tagID] = old
	}

	for tagID, values := range byTag {
		filtered := filterAnomalies(values, s.cfg.AnomalyFilterThreshold)
		if len(filtered) == 0 {
			continue
		}
		newStats := statsToBaseline(filtered)

		old, hasOld := existing.TagBaselines[tagID]
		if !hasOld {
			newTagBaselines[tagID] = newStats
			continue
		}

		wNew := s.cfg.IncrementalWeight
		wOld := (1 - wNew) * agingFactor
		denom := wNew + wOld
		blended := models.TagBaseline{
			TagID:        tagID,
			NormalMean:   (old.NormalMean*wOld + newStats.NormalMean*wNew) / denom,
			NormalStdDev: (old.NormalStdDev*wOld + newStats.NormalStdDev*wNew) / denom,
			NormalMin:    math.Min(old.NormalMin, newStats.NormalMin),
			NormalMax:    math.Max(old.NormalMax, newStats.NormalMax),
		}
		blended.NormalCV = coefficientOfVariation(blended.NormalMean, blended.NormalStdDev)
		newTagBaselines[tagID] = blended
	}

	updated := models.DeviceBaseline{
		DeviceID:      deviceID,
		CreatedUtcMs:  existing.CreatedUtcMs,
		UpdatedUtcMs:  nowMs,
		SampleCount:   existing.SampleCount + int64(totalSamples(byTag)),
		LearningHours: existing.LearningHours,
		TagBaselines:  newTagBaselines,
	}

	s.mu.Lock()
	s.baselines[deviceID] = updated
	s.mu.Unlock()
	return updated, true, nil
}

func groupByTag(pts []models.TelemetryPoint) map[string][]float64 {
	out := make(map[string][]float64)
	for _, p := range pts {
		if v, ok := p.AsFloat64(); ok {
			out[p.TagID] = append(out[p.TagID], v)
		}
	}
	return out
}

func totalSamples(byTag map[string][]float64) int {
	n := 0
	for _, v := range byTag {
		n += len(v)
	}
	return n
}

func statsToBaseline(values []float64) models.TagBaseline {
	n := float64(len(values))
	sum, min, max := 0.0, values[0], values[0]
	for _, v := range values {
		sum += v
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	mean := sum / n
	sqDiff := 0.0
	for _, v := range values {
		d := v - mean
		sqDiff += d * d
	}
	stddev := math.Sqrt(sqDiff / n)
	return models.TagBaseline{
		NormalMean:   mean,
		NormalStdDev: stddev,
		NormalMin:    min,
		NormalMax:    max,
		NormalCV:     coefficientOfVariation(mean, stddev),
	}
}

func coefficientOfVariation(mean, stddev float64) float64 {
	if math.Abs(mean) < 1e-9 {
		return 0
	}
	return stddev / math.Abs(mean)
}

// filterAnomalies drops points whose z-score against the window's own
// mean/stddev exceeds threshold.
func filterAnomalies(values []float64, threshold float64) []float64 {
	if threshold <= 0 || len(values) < 2 {
		return values
	}
	stats := statsToBaseline(values)
	if stats.NormalStdDev < 1e-9 {
		return values
	}
	out := make([]float64, 0, len(values))
	for _, v := range values {
		z := math.Abs(v-stats.NormalMean) / stats.NormalStdDev
		if z <= threshold {
			out = append(out, v)
		}
	}
	return out
}
