// Package features implements the Feature Extractor (C3): per-tag
// summary statistics and trend direction over a recent window,
// grounded on the teacher's Aggregator windowing
// (internal/telemetry/engine.go) generalized across all tags of a
// device.
package features

import (
	"math"
	"sort"

	"github.com/savegress/intellimaint/internal/apperr"
	"github.com/savegress/intellimaint/internal/devices"
	"github.com/savegress/intellimaint/internal/telemetry"
	"github.com/savegress/intellimaint/pkg/models"
)

const (
	maxWindowPoints   = 2000
	trendEpsilon      = 1e-9
	trendUpThreshold  = 0.001
	trendDownThresh   = -0.001
)

// Extractor computes DeviceFeatures from a telemetry.Repository.
type Extractor struct {
	repo telemetry.Repository
}

// NewExtractor creates an Extractor reading from repo.
func NewExtractor(repo telemetry.Repository) *Extractor {
	return &Extractor{repo: repo}
}

// Extract computes per-tag features for deviceID over the last
// windowMinutes, capped at maxWindowPoints samples per tag for
// performance. nowMs is the reference "now" for the window start.
func (e *Extractor) Extract(deviceID string, windowMinutes int, nowMs int64) (models.DeviceFeatures, error) {
	startTs := nowMs - int64(windowMinutes)*60_000
	pts, err := e.repo.QuerySimple(deviceID, "", startTs, nowMs, 0)
	if err != nil {
		return models.DeviceFeatures{}, apperr.Dependency("TELEMETRY_QUERY_FAILED", "querying device window", err)
	}

	byTag := make(map[string][]models.TelemetryPoint)
	for _, p := range pts {
		byTag[p.TagID] = append(byTag[p.TagID], p)
	}

	out := models.DeviceFeatures{
		DeviceID:      deviceID,
		Timestamp:     nowMs,
		WindowMinutes: windowMinutes,
		TagFeatures:   make(map[string]models.TagFeatures, len(byTag)),
	}

	for tagID, series := range byTag {
		sort.Slice(series, func(i, j int) bool { return series[i].Ts < series[j].Ts })
		if len(series) > maxWindowPoints {
			series = series[len(series)-maxWindowPoints:]
		}

		values := make([]float64, 0, len(series))
		for _, p := range series {
			if v, ok := p.AsFloat64(); ok {
				values = append(values, v)
			}
		}
		if len(values) < 2 {
			continue
		}

		tf := computeTagFeatures(values)
		out.TagFeatures[tagID] = tf
		out.SampleCount += tf.Count
	}

	return out, nil
}

func computeTagFeatures(values []float64) models.TagFeatures {
	n := len(values)
	sum := 0.0
	min, max := values[0], values[0]
	for _, v := range values {
		sum += v
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	mean := sum / float64(n)

	sqDiff := 0.0
	for _, v := range values {
		d := v - mean
		sqDiff += d * d
	}
	stddev := math.Sqrt(sqDiff / float64(n))

	cv := 0.0
	if math.Abs(mean) >= trendEpsilon {
		cv = stddev / math.Abs(mean)
	}

	slope := leastSquaresSlope(values)
	norm := 0.0
	if math.Abs(mean) >= trendEpsilon {
		norm = math.Abs(slope) / math.Abs(mean)
	}
	dir := models.TrendFlat
	switch {
	case norm > trendUpThreshold && slope > 0:
		dir = models.TrendUp
	case norm > trendUpThreshold && slope < 0:
		dir = models.TrendDown
	}

	return models.TagFeatures{
		Count:                  n,
		Mean:                   mean,
		StdDev:                 stddev,
		Min:                    min,
		Max:                    max,
		Latest:                 values[n-1],
		TrendSlope:             slope,
		TrendDirection:         dir,
		CoefficientOfVariation: cv,
		Range:                  max - min,
	}
}

// leastSquaresSlope fits a line to values against their sample index
// (0..n-1) and returns the OLS slope.
func leastSquaresSlope(values []float64) float64 {
	n := float64(len(values))
	if n < 2 {
		return 0
	}
	var sumX, sumY, sumXY, sumXX float64
	for i, v := range values {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if math.Abs(denom) < trendEpsilon {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

// ExtractAll extracts features for every enabled device, isolating
// per-device failures (a single device error does not abort the rest).
func (e *Extractor) ExtractAll(deviceRepo devices.DeviceRepository, windowMinutes int, nowMs int64) (map[string]models.DeviceFeatures, map[string]error) {
	devs, err := deviceRepo.ListEnabled()
	if err != nil {
		return nil, map[string]error{"*": err}
	}

	results := make(map[string]models.DeviceFeatures)
	errs := make(map[string]error)
	for _, d := range devs {
		f, ferr := e.Extract(d.DeviceID, windowMinutes, nowMs)
		if ferr != nil {
			errs[d.DeviceID] = ferr
			continue
		}
		results[d.DeviceID] = f
	}
	return results, errs
}
