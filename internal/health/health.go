// Package health implements the Health Score Calculator (C5):
// deviation/trend/stability/alarm sub-scores combined into a weighted
// composite index, grounded on the teacher's HealthScore calculation
// (internal/maintenance/predictive.go) and generalized to the spec'd
// sigmoid/log-smoothed scoring rules.
package health

import (
	"math"
	"sort"

	"github.com/savegress/intellimaint/internal/importance"
	"github.com/savegress/intellimaint/pkg/models"
)

// Weights configures the composite blend of the four sub-scores.
type Weights struct {
	Deviation float64
	Trend     float64
	Stability float64
	Alarm     float64
}

// Thresholds configures HealthLevel classification boundaries.
type Thresholds struct {
	HealthyMin   float64
	AttentionMin float64
	WarningMin   float64
}

// AlarmScoreConfig configures the open-alarm-severity penalty model.
type AlarmScoreConfig struct {
	CriticalPenalty       float64
	ErrorPenalty          float64
	WarningPenalty        float64
	InfoPenalty           float64
	ConsiderDuration      bool
	DurationFactorPerHour float64
	MaxDurationMultiplier float64
	MinScore              float64
}

const (
	deviationZClip = 10.0
	sigmoidCenter  = 3.0
	sigmoidK       = 1.2
	trendEpsilon   = 1e-9
)

var problemThresholdByImportance = map[models.Importance]float64{
	models.ImportanceCritical: 2.0,
	models.ImportanceMajor:    2.5,
	models.ImportanceMinor:    3.0,
	models.ImportanceTrivial:  3.5,
}

var trendSignificanceByImportance = map[models.Importance]float64{
	models.ImportanceCritical: 0.5,
	models.ImportanceMajor:    0.8,
}

const trendSignificanceDefault = 1.0

// sigmoid computes σ(x,k) = 1/(1+e^{-kx}).
func sigmoid(x, k float64) float64 {
	return 1 / (1 + math.Exp(-k*x))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Calculator computes HealthScore from extracted features, a
// baseline, open alarms and tag importance weights.
type Calculator struct {
	weights    Weights
	thresholds Thresholds
	alarmCfg   AlarmScoreConfig
	matcher    *importance.Matcher
}

// NewCalculator creates a Calculator.
func NewCalculator(weights Weights, thresholds Thresholds, alarmCfg AlarmScoreConfig, matcher *importance.Matcher) *Calculator {
	return &Calculator{weights: weights, thresholds: thresholds, alarmCfg: alarmCfg, matcher: matcher}
}

// Calculate computes the composite HealthScore for a device.
func (c *Calculator) Calculate(deviceID string, ts int64, feats models.DeviceFeatures, baseline models.DeviceBaseline, hasBaseline bool, openAlarmSeverities []int) models.HealthScore {
	var problemTags []models.ProblemTag

	devScore, devProblems := c.deviationScore(feats, baseline, hasBaseline)
	trendScore, trendProblems := c.trendScore(feats)
	stabilityScore := c.stabilityScore(feats, baseline, hasBaseline)
	alarmScore := c.CalculateAlarmScore(openAlarmSeverities)

	problemTags = append(problemTags, devProblems...)
	problemTags = append(problemTags, trendProblems...)

	index := devScore*c.weights.Deviation + trendScore*c.weights.Trend + stabilityScore*c.weights.Stability + alarmScore*c.weights.Alarm
	index = clamp(math.Round(index), 0, 100)

	level := c.classify(index)

	sort.Slice(problemTags, func(i, j int) bool {
		if problemTags[i].Importance != problemTags[j].Importance {
			return problemTags[i].Importance > problemTags[j].Importance
		}
		return problemTags[i].ZScore > problemTags[j].ZScore
	})
	top := problemTags
	if len(top) > 3 {
		top = top[:3]
	}

	return models.HealthScore{
		DeviceID:         deviceID,
		Timestamp:        ts,
		Index:            index,
		Level:            level,
		DeviationScore:   devScore,
		TrendScore:       trendScore,
		StabilityScore:   stabilityScore,
		AlarmScore:       alarmScore,
		HasBaseline:      hasBaseline,
		ProblemTags:      top,
		DiagnosticMessage: diagnosticMessage(top),
	}
}

func (c *Calculator) classify(index float64) models.HealthLevel {
	switch {
	case index >= c.thresholds.HealthyMin:
		return models.HealthHealthy
	case index >= c.thresholds.AttentionMin:
		return models.HealthAttention
	case index >= c.thresholds.WarningMin:
		return models.HealthWarning
	default:
		return models.HealthCritical
	}
}

func (c *Calculator) deviationScore(feats models.DeviceFeatures, baseline models.DeviceBaseline, hasBaseline bool) (float64, []models.ProblemTag) {
	if !hasBaseline {
		return 80, nil
	}

	var weightedSum, weightSum float64
	var problems []models.ProblemTag

	for tagID, tf := range feats.TagFeatures {
		tb, ok := baseline.TagBaselines[tagID]
		if !ok || tb.NormalStdDev < trendEpsilon {
			continue
		}
		z := math.Abs(tf.Mean-tb.NormalMean) / tb.NormalStdDev
		zClipped := math.Min(z, deviationZClip)
		score := 100 * (1 - sigmoid(zClipped-sigmoidCenter, sigmoidK)*0.95)
		score = clamp(score, 5, 100)

		imp := c.matcher.Match(tagID)
		weight := imp.Rank()
		weightedSum += score * weight
		weightSum += weight

		if z > problemThresholdByImportance[imp] {
			problems = append(problems, models.ProblemTag{TagID: tagID, Importance: imp, ZScore: z, Reason: "deviation"})
		}
	}

	if weightSum < trendEpsilon {
		return 80, nil
	}
	return weightedSum / weightSum, problems
}

func (c *Calculator) trendScore(feats models.DeviceFeatures) (float64, []models.ProblemTag) {
	var weightedSum, weightSum float64
	var problems []models.ProblemTag

	for tagID, tf := range feats.TagFeatures {
		var norm float64
		if math.Abs(tf.Mean) >= trendEpsilon {
			norm = math.Abs(tf.TrendSlope) / math.Abs(tf.Mean) * 100
		} else {
			norm = math.Min(10*math.Abs(tf.TrendSlope), 20)
		}
		score := clamp(100-8*math.Sqrt(norm), 20, 100)

		imp := c.matcher.Match(tagID)
		weight := imp.Rank()
		weightedSum += score * weight
		weightSum += weight

		sigThreshold := trendSignificanceDefault
		if t, ok := trendSignificanceByImportance[imp]; ok {
			sigThreshold = t
		}
		if tf.TrendDirection != models.TrendFlat && norm > sigThreshold {
			problems = append(problems, models.ProblemTag{TagID: tagID, Importance: imp, ZScore: norm, Reason: "trend"})
		}
	}

	if weightSum < trendEpsilon {
		return 100, nil
	}
	return weightedSum / weightSum, problems
}

func (c *Calculator) stabilityScore(feats models.DeviceFeatures, baseline models.DeviceBaseline, hasBaseline bool) float64 {
	var weightedSum, weightSum float64

	for tagID, tf := range feats.TagFeatures {
		cv := tf.CoefficientOfVariation
		if math.IsNaN(cv) || math.IsInf(cv, 0) {
			weightedSum += 80 * c.matcher.Weight(tagID)
			weightSum += c.matcher.Weight(tagID)
			continue
		}

		cvThreshold := 0.2
		if hasBaseline {
			if tb, ok := baseline.TagBaselines[tagID]; ok {
				cvThreshold = clamp(1.5*tb.NormalCV, 0.05, 0.5)
			}
		}

		score := 100.0
		if cv > cvThreshold {
			excess := cv / cvThreshold
			score = clamp(100-40*math.Log(excess+1), 20, 100)
		}

		weight := c.matcher.Weight(tagID)
		weightedSum += score * weight
		weightSum += weight
	}

	if weightSum < trendEpsilon {
		return 100
	}
	return weightedSum / weightSum
}

// CalculateAlarmScore derives the alarm sub-score from the severities
// of currently open alarms (1=Info..4/5=Critical, both treated as
// Critical). hoursOpen is not tracked per-alarm here; callers needing
// the duration multiplier should use CalculateAlarmScoreWithAge.
func (c *Calculator) CalculateAlarmScore(openAlarmSeverities []int) float64 {
	if len(openAlarmSeverities) == 0 {
		return 100
	}
	total := 0.0
	for _, sev := range openAlarmSeverities {
		total += c.basePenalty(sev)
	}
	return math.Max(100-total, c.alarmCfg.MinScore)
}

// CalculateAlarmScoreWithAge applies the duration multiplier using
// per-alarm age in hours, matching hoursOpen in the spec's penalty formula.
func (c *Calculator) CalculateAlarmScoreWithAge(severities []int, hoursOpen []float64) float64 {
	if len(severities) == 0 {
		return 100
	}
	total := 0.0
	for i, sev := range severities {
		base := c.basePenalty(sev)
		mult := 1.0
		if c.alarmCfg.ConsiderDuration {
			age := 0.0
			if i < len(hoursOpen) {
				age = hoursOpen[i]
			}
			mult = 1 + math.Min(age*c.alarmCfg.DurationFactorPerHour, c.alarmCfg.MaxDurationMultiplier-1)
		}
		total += base * mult
	}
	return math.Max(100-total, c.alarmCfg.MinScore)
}

func (c *Calculator) basePenalty(severity int) float64 {
	switch {
	case severity >= 4:
		return c.alarmCfg.CriticalPenalty
	case severity == 3:
		return c.alarmCfg.ErrorPenalty
	case severity == 2:
		return c.alarmCfg.WarningPenalty
	default:
		return c.alarmCfg.InfoPenalty
	}
}

// CountOnlyAlarmScore is the count-only fallback when per-alarm
// severity/age isn't available: {0:100, 1:80, 2:60, 3:40, >=4:20}.
func CountOnlyAlarmScore(count int) float64 {
	switch {
	case count <= 0:
		return 100
	case count == 1:
		return 80
	case count == 2:
		return 60
	case count == 3:
		return 40
	default:
		return 20
	}
}

func diagnosticMessage(top []models.ProblemTag) string {
	if len(top) == 0 {
		return ""
	}
	msg := "Attention needed: "
	for i, pt := range top {
		if i > 0 {
			msg += "; "
		}
		msg += pt.TagID + " (" + pt.Reason + ")"
	}
	return msg
}
