// Package cycle implements the Work-Cycle Detector (C9): angle-crossing
// boundary detection, per-cycle motor-current feature extraction and
// anomaly scoring, grounded on the teacher's ticker-driven periodic
// aggregation loop (internal/oee/tracker.go) and generalized from
// equipment-state accounting to angle/current segmentation.
package cycle

import (
	"math"

	"github.com/savegress/intellimaint/pkg/models"
)

// Config controls boundary and duration thresholds.
type Config struct {
	AngleThresholdDeg float64
	MinCycleDuration  float64 // seconds
	MaxCycleDuration  float64 // seconds
	OverCurrentAmps   float64
}

// MotorBaseline holds a fitted current(angle) quadratic and balance stats.
type MotorBaseline struct {
	A, B, C        float64 // current = A*angle^2 + B*angle + C
	RSquared       float64
	SampleCount    int
	BalanceMean    float64
	BalanceStdDev  float64
	DurationMean   float64
	DurationStdDev float64
}

// Detector finds work cycles in an angle series and scores them against a baseline.
type Detector struct {
	cfg Config
}

// NewDetector creates a Detector.
func NewDetector(cfg Config) *Detector {
	return &Detector{cfg: cfg}
}

// boundary is an inclusive [startIdx, endIdx] index range into an angle series.
type boundary struct {
	startIdx, endIdx int
}

// findBoundaries scans angle for open/close transitions against
// AngleThresholdDeg. A cycle opens when the previous sample is below
// threshold and the current sample is at or above it; it closes when
// the sample returns below threshold and the interior peak exceeded 30°.
func (d *Detector) findBoundaries(angle []float64) []boundary {
	var out []boundary
	open := -1
	peak := -math.MaxFloat64

	for i := 1; i < len(angle); i++ {
		prev, cur := angle[i-1], angle[i]
		if open < 0 && prev < d.cfg.AngleThresholdDeg && cur >= d.cfg.AngleThresholdDeg {
			open = i
			peak = cur
			continue
		}
		if open >= 0 {
			if cur > peak {
				peak = cur
			}
			if prev >= d.cfg.AngleThresholdDeg && cur < d.cfg.AngleThresholdDeg {
				if peak > 30 {
					out = append(out, boundary{startIdx: open, endIdx: i})
				}
				open = -1
				peak = -math.MaxFloat64
			}
		}
	}
	return out
}

// DetectCycles scans aligned angle/current1/current2/ts series and
// returns scored WorkCycles, discarding those outside
// [MinCycleDuration, MaxCycleDuration].
func (d *Detector) DetectCycles(deviceID string, ts []int64, angle, current1, current2 []float64, baseline MotorBaseline, hasBaseline bool) []models.WorkCycle {
	var cycles []models.WorkCycle
	for _, b := range d.findBoundaries(angle) {
		durationSec := float64(ts[b.endIdx]-ts[b.startIdx]) / 1000
		if durationSec < d.cfg.MinCycleDuration || durationSec > d.cfg.MaxCycleDuration {
			continue
		}

		segAngle := angle[b.startIdx : b.endIdx+1]
		segI1 := current1[b.startIdx : b.endIdx+1]
		segI2 := current2[b.startIdx : b.endIdx+1]
		segTs := ts[b.startIdx : b.endIdx+1]

		maxAngle := maxOf(segAngle)
		peak1, avg1, energy1 := motorStats(segTs, segI1)
		peak2, avg2, energy2 := motorStats(segTs, segI2)

		balanceRatio := 0.0
		if avg2 != 0 {
			balanceRatio = avg1 / avg2
		}

		baselineDeviationPct := 0.0
		if hasBaseline {
			baselineDeviationPct = avgDeviationFromBaseline(segAngle, segI1, baseline) * 100
		}

		wc := models.WorkCycle{
			DeviceID:                 deviceID,
			StartTimeUtcMs:           ts[b.startIdx],
			EndTimeUtcMs:             ts[b.endIdx],
			DurationSeconds:          durationSec,
			MaxAngle:                 maxAngle,
			Motor1PeakCurrent:        peak1,
			Motor1AvgCurrent:         avg1,
			Motor1EnergyCurrent:      energy1,
			Motor2PeakCurrent:        peak2,
			Motor2AvgCurrent:         avg2,
			Motor2EnergyCurrent:      energy2,
			MotorBalanceRatio:        balanceRatio,
			BaselineDeviationPercent: baselineDeviationPct,
		}

		score, anomalyType := d.score(wc, baseline, hasBaseline)
		wc.AnomalyScore = score
		wc.IsAnomaly = score >= 30
		wc.AnomalyType = anomalyType

		cycles = append(cycles, wc)
	}
	return cycles
}

func (d *Detector) score(wc models.WorkCycle, baseline MotorBaseline, hasBaseline bool) (float64, models.WorkCycleAnomalyType) {
	contributions := map[models.WorkCycleAnomalyType]float64{}

	if wc.DurationSeconds > 120 {
		contributions[models.CycleAnomalyTimeout] = 30 + (wc.DurationSeconds-120)/10
	}
	if wc.DurationSeconds < 30 {
		contributions[models.CycleAnomalyTooShort] = 30 + (30 - wc.DurationSeconds)
	}

	peakMax := math.Max(wc.Motor1PeakCurrent, wc.Motor2PeakCurrent)
	if peakMax > 12000 {
		overPct := (peakMax - 12000) / 12000 * 100
		contributions[models.CycleAnomalyOverCurrent] = 20 + overPct
	}

	lowerRatio, upperRatio := 0.7, 1.3
	useBaselineBand := hasBaseline && baseline.BalanceStdDev > 0
	if useBaselineBand {
		lowerRatio = baseline.BalanceMean - 2*baseline.BalanceStdDev
		upperRatio = baseline.BalanceMean + 2*baseline.BalanceStdDev
	}
	if wc.MotorBalanceRatio < lowerRatio || wc.MotorBalanceRatio > upperRatio {
		if useBaselineBand {
			contributions[models.CycleAnomalyMotorImbalance] = math.Abs(wc.MotorBalanceRatio-baseline.BalanceMean) / baseline.BalanceStdDev * 10
		} else {
			contributions[models.CycleAnomalyMotorImbalance] = math.Abs(wc.MotorBalanceRatio-1) * 50
		}
	}

	if wc.BaselineDeviationPercent > 20 {
		contributions[models.CycleAnomalyBaselineDeviation] = wc.BaselineDeviationPercent
	}

	if wc.MaxAngle < 100 {
		contributions[models.CycleAnomalyAngleStall] = 20 + (100-wc.MaxAngle)/2
	}

	total := 0.0
	var primary models.WorkCycleAnomalyType
	maxContribution := 0.0
	for t, v := range contributions {
		total += v
		if v > maxContribution {
			maxContribution = v
			primary = t
		}
	}

	score := math.Min(100, total)
	if primary == "" {
		primary = models.CycleAnomalyNone
	}
	return score, primary
}

func motorStats(ts []int64, current []float64) (peak, avg, energy float64) {
	if len(current) == 0 {
		return 0, 0, 0
	}
	sum := 0.0
	for i, c := range current {
		if c > peak {
			peak = c
		}
		sum += c
		if i > 0 {
			dtSec := float64(ts[i]-ts[i-1]) / 1000
			energy += (current[i-1] + current[i]) / 2 * dtSec
		}
	}
	avg = sum / float64(len(current))
	return
}

func maxOf(values []float64) float64 {
	m := -math.MaxFloat64
	for _, v := range values {
		if v > m {
			m = v
		}
	}
	return m
}

func avgDeviationFromBaseline(angle, current []float64, baseline MotorBaseline) float64 {
	if len(angle) == 0 {
		return 0
	}
	sum := 0.0
	for i := range angle {
		predicted := baseline.A*angle[i]*angle[i] + baseline.B*angle[i] + baseline.C
		if predicted == 0 {
			continue
		}
		sum += math.Abs(current[i]-predicted) / math.Abs(predicted)
	}
	return sum / float64(len(angle))
}

// LearnMotorBaseline fits current = A*angle^2 + B*angle + C via
// least-squares normal equations solved with Gaussian elimination
// (partial pivoting), requiring at least 30 pairs with angle > 5° and
// current > 100.
func LearnMotorBaseline(angle, current []float64) (MotorBaseline, bool) {
	var fa, fc []float64
	for i := range angle {
		if angle[i] > 5 && current[i] > 100 {
			fa = append(fa, angle[i])
			fc = append(fc, current[i])
		}
	}
	if len(fa) < 30 {
		return MotorBaseline{}, false
	}

	a, b, c, r2 := fitQuadratic(fa, fc)
	return MotorBaseline{A: a, B: b, C: c, RSquared: r2, SampleCount: len(fa)}, true
}

// LearnBalanceBaseline computes mean/stddev of i1/i2 across paired
// samples, requiring at least 30 pairs with both currents > 500.
func LearnBalanceBaseline(i1, i2 []float64) (mean, stddev float64, sampleCount int, ok bool) {
	var ratios []float64
	for idx := range i1 {
		if i1[idx] > 500 && i2[idx] > 500 {
			ratios = append(ratios, i1[idx]/i2[idx])
		}
	}
	if len(ratios) < 30 {
		return 0, 0, 0, false
	}
	m := meanOf(ratios)
	sd := stddevOf(ratios, m)
	return m, sd, len(ratios), true
}

// LearnDurationBaseline computes mean/stddev of cycle durations,
// requiring at least 5 cycles.
func LearnDurationBaseline(durations []float64) (mean, stddev float64, ok bool) {
	if len(durations) < 5 {
		return 0, 0, false
	}
	m := meanOf(durations)
	return m, stddevOf(durations, m), true
}

func meanOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stddevOf(values []float64, m float64) float64 {
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

// fitQuadratic solves the 3x3 normal-equations system for
// y = a*x^2 + b*x + c via Gaussian elimination with partial pivoting,
// returning the coefficients and R².
func fitQuadratic(x, y []float64) (a, b, c, rSquared float64) {
	n := float64(len(x))
	var sx, sx2, sx3, sx4, sy, sxy, sx2y float64
	for i := range x {
		xi, yi := x[i], y[i]
		sx += xi
		sx2 += xi * xi
		sx3 += xi * xi * xi
		sx4 += xi * xi * xi * xi
		sy += yi
		sxy += xi * yi
		sx2y += xi * xi * yi
	}

	// Normal equations matrix for [a b c]^T (coefficients of x^2, x, 1).
	m := [3][4]float64{
		{sx4, sx3, sx2, sx2y},
		{sx3, sx2, sx, sxy},
		{sx2, sx, n, sy},
	}

	solved := gaussianEliminate(m)
	a, b, c = solved[0], solved[1], solved[2]

	meanY := sy / n
	var ssTot, ssRes float64
	for i := range x {
		predicted := a*x[i]*x[i] + b*x[i] + c
		ssRes += (y[i] - predicted) * (y[i] - predicted)
		ssTot += (y[i] - meanY) * (y[i] - meanY)
	}
	rSquared = 1.0
	if ssTot > 1e-9 {
		rSquared = 1 - ssRes/ssTot
	}
	return
}

// gaussianEliminate solves a 3x3 augmented system with partial pivoting.
func gaussianEliminate(m [3][4]float64) [3]float64 {
	for col := 0; col < 3; col++ {
		pivot := col
		for row := col + 1; row < 3; row++ {
			if math.Abs(m[row][col]) > math.Abs(m[pivot][col]) {
				pivot = row
			}
		}
		m[col], m[pivot] = m[pivot], m[col]

		if math.Abs(m[col][col]) < 1e-12 {
			continue
		}
		for row := col + 1; row < 3; row++ {
			factor := m[row][col] / m[col][col]
			for k := col; k < 4; k++ {
				m[row][k] -= factor * m[col][k]
			}
		}
	}

	var x [3]float64
	for row := 2; row >= 0; row-- {
		sum := m[row][3]
		for k := row + 1; k < 3; k++ {
			sum -= m[row][k] * x[k]
		}
		if math.Abs(m[row][row]) < 1e-12 {
			x[row] = 0
			continue
		}
		x[row] = sum / m[row][row]
	}
	return x
}
