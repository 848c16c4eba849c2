// Package predict implements the multi-scale health composite,
// degradation classifier, trend forecaster and RUL estimator (C8),
// grounded on the teacher's PredictiveEngine
// (internal/maintenance/predictive.go) and generalized to the spec'd
// windowed-composite / OLS-forecast model.
package predict

import "math"

// MultiScaleConfig configures the three evaluation windows and weights.
type MultiScaleConfig struct {
	Enabled             bool
	ShortTermMinutes    int
	MediumTermMinutes   int
	LongTermMinutes     int
	ShortTermWeight     float64
	MediumTermWeight    float64
	LongTermWeight      float64
}

// TrendCategory classifies the short/medium/long-term health delta.
type TrendCategory int

const (
	TrendSharpDeterioration TrendCategory = -2
	TrendDeclining          TrendCategory = -1
	TrendStable             TrendCategory = 0
	TrendImproving          TrendCategory = 1
	TrendRapidRecovery      TrendCategory = 2
)

// MultiScaleResult is the C8 multi-scale composite output.
type MultiScaleResult struct {
	ShortTermIndex  float64
	MediumTermIndex float64
	LongTermIndex   float64
	Composite       float64
	Trend           TrendCategory
}

// Combine derives the multi-scale composite from three already-computed
// health indices (one per window), using cfg's weights.
func Combine(cfg MultiScaleConfig, shortIndex, mediumIndex, longIndex float64) MultiScaleResult {
	composite := math.Round(shortIndex*cfg.ShortTermWeight + mediumIndex*cfg.MediumTermWeight + longIndex*cfg.LongTermWeight)

	shortDelta := shortIndex - longIndex
	mediumDelta := mediumIndex - longIndex

	var trend TrendCategory
	switch {
	case shortDelta <= -15:
		trend = TrendSharpDeterioration
	case shortDelta <= -5 || mediumDelta <= -5:
		trend = TrendDeclining
	case shortDelta >= 15:
		trend = TrendRapidRecovery
	case shortDelta >= 5 || mediumDelta >= 5:
		trend = TrendImproving
	default:
		trend = TrendStable
	}

	return MultiScaleResult{
		ShortTermIndex:  shortIndex,
		MediumTermIndex: mediumIndex,
		LongTermIndex:   longIndex,
		Composite:       composite,
		Trend:           trend,
	}
}
