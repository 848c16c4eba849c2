package predict

import "math"

// TrendPredictionConfig configures the per-tag trend forecaster.
type TrendPredictionConfig struct {
	Enabled                    bool
	HistoryWindowHours         float64
	MinDataPoints              int
	SmoothingAlpha             float64
	PredictionHorizonHours     float64
	TrendSignificanceThreshold float64
	ConfidenceThreshold        float64
}

// AlertLevel is the urgency bucket of a trend forecast's
// hours-to-threshold estimate.
type AlertLevel string

const (
	AlertCritical AlertLevel = "Critical"
	AlertHigh     AlertLevel = "High"
	AlertMedium   AlertLevel = "Medium"
	AlertLow      AlertLevel = "Low"
	AlertNone     AlertLevel = "None"
)

const maxHoursToThreshold = 720

// OLSResult is a fitted line with goodness of fit.
type OLSResult struct {
	Slope     float64
	Intercept float64
	RSquared  float64
}

// TrendForecast is the C8 trend-forecast output for one tag.
type TrendForecast struct {
	Fit              OLSResult
	ThresholdRuleID  string
	HoursToThreshold float64
	HasThreshold     bool
	AlertLevel       AlertLevel
}

// ExponentialSmooth applies single exponential smoothing with the
// configured alpha.
func ExponentialSmooth(values []float64, alpha float64) []float64 {
	if len(values) == 0 {
		return nil
	}
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// OLS fits y = slope*x + intercept over values against sample index,
// returning R² goodness of fit.
func OLS(values []float64) OLSResult {
	n := float64(len(values))
	if n < 2 {
		return OLSResult{}
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
	if math.Abs(denom) < 1e-9 {
		return OLSResult{}
	}
	slope := (n*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / n

	meanY := sumY / n
	var ssTot, ssRes float64
	for i, v := range values {
		x := float64(i)
		predicted := slope*x + intercept
		ssRes += (v - predicted) * (v - predicted)
		ssTot += (v - meanY) * (v - meanY)
	}
	rSquared := 1.0
	if ssTot > 1e-9 {
		rSquared = 1 - ssRes/ssTot
	}
	return OLSResult{Slope: slope, Intercept: intercept, RSquared: rSquared}
}

// Forecast smooths values, fits a trend line, and solves for the
// number of samples until the slope-consistent ruleThreshold is
// crossed, classifying the result into an AlertLevel.
func Forecast(cfg TrendPredictionConfig, values []float64, ruleID string, ruleThreshold float64, thresholdIsUpper bool) TrendForecast {
	smoothed := ExponentialSmooth(values, cfg.SmoothingAlpha)
	fit := OLS(smoothed)

	if len(values) == 0 {
		return TrendForecast{Fit: fit, AlertLevel: AlertNone}
	}

	current := smoothed[len(smoothed)-1]
	consistent := (thresholdIsUpper && fit.Slope > 0) || (!thresholdIsUpper && fit.Slope < 0)
	if !consistent || math.Abs(fit.Slope) < 1e-9 {
		return TrendForecast{Fit: fit, ThresholdRuleID: ruleID, AlertLevel: AlertNone}
	}

	samplesToThreshold := (ruleThreshold - current) / fit.Slope
	hours := samplesToThreshold // each sample is assumed one reporting tick; caller scales externally if needed
	hours = math.Min(math.Max(hours, 0), maxHoursToThreshold)

	level := classifyAlertLevel(hours)
	if fit.RSquared < cfg.ConfidenceThreshold {
		level = scaleDownSeverity(level)
	}

	return TrendForecast{
		Fit:              fit,
		ThresholdRuleID:  ruleID,
		HoursToThreshold: hours,
		HasThreshold:     true,
		AlertLevel:       level,
	}
}

func classifyAlertLevel(hours float64) AlertLevel {
	switch {
	case hours <= 24:
		return AlertCritical
	case hours <= 48:
		return AlertHigh
	case hours <= 72:
		return AlertMedium
	case hours <= 168:
		return AlertLow
	default:
		return AlertNone
	}
}

// scaleDownSeverity halves the urgency of a low-confidence forecast
// by stepping one level down.
func scaleDownSeverity(level AlertLevel) AlertLevel {
	switch level {
	case AlertCritical:
		return AlertHigh
	case AlertHigh:
		return AlertMedium
	case AlertMedium:
		return AlertLow
	default:
		return AlertNone
	}
}
