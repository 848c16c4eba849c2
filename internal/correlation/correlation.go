// Package correlation implements the Correlation Analyzer (C6): rule
// matching between pairs of aligned tag series, grounded on the
// teacher's rule-list-plus-pattern-cache style
// (internal/alerts/engine.go) and internal/patternmatch, reused for
// paired-tag wildcard matching.
package correlation

import (
	"math"
	"sort"
	"sync"

	"github.com/savegress/intellimaint/internal/patternmatch"
	"github.com/savegress/intellimaint/internal/telemetry"
	"github.com/savegress/intellimaint/pkg/models"
)

const minCommonPoints = 3

// Analyzer evaluates CorrelationRules against a device's recent telemetry.
type Analyzer struct {
	mu    sync.RWMutex
	rules []models.CorrelationRule
	cache *patternmatch.Cache
	repo  telemetry.Repository
}

// NewAnalyzer creates an Analyzer reading raw points from repo.
func NewAnalyzer(repo telemetry.Repository) *Analyzer {
	return &Analyzer{cache: patternmatch.NewCache(), repo: repo}
}

// Refresh atomically swaps the enabled rule set and clears the pattern cache.
func (a *Analyzer) Refresh(rules []models.CorrelationRule) {
	enabled := make([]models.CorrelationRule, 0, len(rules))
	for _, r := range rules {
		if r.Enabled {
			enabled = append(enabled, r)
		}
	}
	a.mu.Lock()
	a.rules = enabled
	a.mu.Unlock()
	a.cache.Reset()
}

// Analyze evaluates all rules whose DevicePattern matches deviceID
// against the device's current telemetry, returning one
// CorrelationAnomaly per triggered rule.
func (a *Analyzer) Analyze(deviceID string, startTs, endTs int64) ([]models.CorrelationAnomaly, error) {
	a.mu.RLock()
	rules := a.rules
	a.mu.RUnlock()

	var anomalies []models.CorrelationAnomaly
	for _, rule := range rules {
		if !a.cache.Get(rule.DevicePattern).Match(deviceID) {
			continue
		}

		tags, err := a.repo.GetTags()
		if err != nil {
			return nil, err
		}
		tag1, ok1 := firstMatchingTag(tags, deviceID, a.cache.Get(rule.Tag1Pattern))
		tag2, ok2 := firstMatchingTag(tags, deviceID, a.cache.Get(rule.Tag2Pattern))
		if !ok1 || !ok2 || tag1 == tag2 {
			continue
		}

		series1, err := a.repo.QuerySimple(deviceID, tag1, startTs, endTs, 0)
		if err != nil {
			return nil, err
		}
		series2, err := a.repo.QuerySimple(deviceID, tag2, startTs, endTs, 0)
		if err != nil {
			return nil, err
		}

		v1, v2, ok := alignSeries(series1, series2)
		if !ok || len(v1) < minCommonPoints {
			continue
		}

		if triggered := evaluateRule(rule, v1, v2); triggered {
			anomalies = append(anomalies, models.CorrelationAnomaly{
				RuleID:          rule.ID,
				RuleName:        rule.RiskDescription,
				Tag1:            tag1,
				Tag2:            tag2,
				Correlation:     pearson(v1, v2),
				RiskDescription: rule.RiskDescription,
				PenaltyScore:    rule.PenaltyScore,
			})
		}
	}

	sort.Slice(anomalies, func(i, j int) bool { return anomalies[i].PenaltyScore > anomalies[j].PenaltyScore })
	return anomalies, nil
}

func firstMatchingTag(tags []telemetry.TagSummary, deviceID string, pattern *patternmatch.Compiled) (string, bool) {
	for _, t := range tags {
		if t.DeviceID == deviceID && pattern.Match(t.TagID) {
			return t.TagID, true
		}
	}
	return "", false
}

// alignSeries intersects two point series by exact Ts match; falls
// back to index-alignment (truncated to the shorter length) when no
// timestamps coincide.
func alignSeries(s1, s2 []models.TelemetryPoint) ([]float64, []float64, bool) {
	byTs := make(map[int64]float64, len(s2))
	for _, p := range s2 {
		if v, ok := p.AsFloat64(); ok {
			byTs[p.Ts] = v
		}
	}

	var v1, v2 []float64
	for _, p := range s1 {
		v, ok := p.AsFloat64()
		if !ok {
			continue
		}
		if other, ok := byTs[p.Ts]; ok {
			v1 = append(v1, v)
			v2 = append(v2, other)
		}
	}
	if len(v1) >= minCommonPoints {
		return v1, v2, true
	}

	// Fallback: index-align, truncated to the shorter series.
	n := len(s1)
	if len(s2) < n {
		n = len(s2)
	}
	v1, v2 = v1[:0], v2[:0]
	for i := 0; i < n; i++ {
		a, ok1 := s1[i].AsFloat64()
		b, ok2 := s2[i].AsFloat64()
		if ok1 && ok2 {
			v1 = append(v1, a)
			v2 = append(v2, b)
		}
	}
	return v1, v2, len(v1) > 0
}

func evaluateRule(rule models.CorrelationRule, v1, v2 []float64) bool {
	switch rule.Type {
	case models.CorrSameDirection:
		s1, s2 := normalizedSlope(v1), normalizedSlope(v2)
		return math.Abs(s1) > rule.Threshold && math.Abs(s2) > rule.Threshold && sameSign(s1, s2)
	case models.CorrOppositeDirection:
		s1, s2 := normalizedSlope(v1), normalizedSlope(v2)
		return math.Abs(s1) > rule.Threshold && math.Abs(s2) > rule.Threshold && !sameSign(s1, s2)
	case models.CorrThresholdCombination:
		z1 := latestZScore(v1)
		z2 := latestZScore(v2)
		return math.Abs(z1) > rule.Threshold && math.Abs(z2) > rule.Threshold
	default:
		return false
	}
}

func sameSign(a, b float64) bool {
	return (a >= 0 && b >= 0) || (a < 0 && b < 0)
}

// normalizedSlope returns the OLS slope over sample index normalized
// by the series mean (so it is comparable across differently-scaled tags).
func normalizedSlope(values []float64) float64 {
	mean := mean(values)
	slope := leastSquaresSlope(values)
	if math.Abs(mean) < 1e-9 {
		return slope
	}
	return slope / math.Abs(mean)
}

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
	if math.Abs(denom) < 1e-9 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stddev(values []float64, m float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sq := 0.0
	for _, v := range values {
		d := v - m
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(values)))
}

func latestZScore(values []float64) float64 {
	m := mean(values)
	sd := stddev(values, m)
	if sd < 1e-9 {
		return 0
	}
	return (values[len(values)-1] - m) / sd
}

func pearson(x, y []float64) float64 {
	n := len(x)
	if n == 0 || n != len(y) {
		return 0
	}
	mx, my := mean(x), mean(y)
	var num, dx2, dy2 float64
	for i := 0; i < n; i++ {
		dx := x[i] - mx
		dy := y[i] - my
		num += dx * dy
		dx2 += dx * dx
		dy2 += dy * dy
	}
	denom := math.Sqrt(dx2 * dy2)
	if denom < 1e-9 {
		return 0
	}
	return num / denom
}

// ApplyPenalties re-derives a health index and level from correlation
// anomalies, prepending the top two risk descriptions to msg.
func ApplyPenalties(index float64, minScore float64, anomalies []models.CorrelationAnomaly, diagnosticMessage string) (float64, string) {
	total := 0.0
	for _, a := range anomalies {
		total += a.PenaltyScore
	}
	newIndex := math.Max(index-total, minScore)

	prefix := ""
	for i, a := range anomalies {
		if i >= 2 {
			break
		}
		if i > 0 {
			prefix += "; "
		}
		prefix += a.RiskDescription
	}
	if prefix != "" && diagnosticMessage != "" {
		return newIndex, prefix + "; " + diagnosticMessage
	}
	if prefix != "" {
		return newIndex, prefix
	}
	return newIndex, diagnosticMessage
}
