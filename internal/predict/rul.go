package predict

import "math"

// RulConfig configures the remaining-useful-life estimator.
type RulConfig struct {
	Enabled           bool
	HistoryWindowDays float64
	MinDataPoints     int
	FailureThreshold  float64
	MaxPredictionDays float64
	ModelType         string
}

// RulStatus classifies the daily degradation slope.
type RulStatus string

const (
	RulHealthy                RulStatus = "Healthy"
	RulNormalDegradation      RulStatus = "NormalDegradation"
	RulAcceleratedDegradation RulStatus = "AcceleratedDegradation"
	RulNearFailure            RulStatus = "NearFailure"
)

// RiskBucket classifies days-to-failure into an operational urgency band.
type RiskBucket string

const (
	RiskCritical RiskBucket = "Critical"
	RiskHigh     RiskBucket = "High"
	RiskMedium   RiskBucket = "Medium"
	RiskLow      RiskBucket = "Low"
)

// RulEstimate is the C8 remaining-useful-life output.
type RulEstimate struct {
	Status                RulStatus
	Risk                  RiskBucket
	RemainingUsefulLifeH  float64
	HasETA                bool
	RecommendedMaintDay   float64 // days from now; only meaningful when HasETA
}

// Estimate fits OLS on (Index vs. hours) snapshots and derives RUL per
// spec.md's daily-slope classification rules.
func Estimate(cfg RulConfig, hourlyIndices []float64, currentIndex float64) RulEstimate {
	if currentIndex <= cfg.FailureThreshold {
		return RulEstimate{Status: RulNearFailure, Risk: RiskCritical, RemainingUsefulLifeH: 0, HasETA: true}
	}

	fit := OLS(hourlyIndices)
	if fit.Slope >= -0.001 {
		return RulEstimate{Status: RulHealthy, Risk: RiskLow, HasETA: false}
	}

	hoursToFail := (cfg.FailureThreshold - currentIndex) / fit.Slope
	maxHours := cfg.MaxPredictionDays * 24
	hoursToFail = math.Min(math.Max(hoursToFail, 0), maxHours)

	dailySlope := fit.Slope * 24
	var status RulStatus
	switch {
	case dailySlope < -2:
		status = RulAcceleratedDegradation
	case dailySlope < -0.5:
		status = RulNormalDegradation
	default:
		status = RulHealthy
	}

	daysToFail := hoursToFail / 24
	var risk RiskBucket
	switch {
	case daysToFail < 1:
		risk = RiskCritical
	case daysToFail < 7:
		risk = RiskHigh
	case daysToFail < 30:
		risk = RiskMedium
	default:
		risk = RiskLow
	}

	return RulEstimate{
		Status:               status,
		Risk:                 risk,
		RemainingUsefulLifeH: hoursToFail,
		HasETA:               true,
		RecommendedMaintDay:  daysToFail - 7,
	}
}
