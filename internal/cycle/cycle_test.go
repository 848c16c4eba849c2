package cycle

import (
	"testing"

	"github.com/savegress/intellimaint/pkg/models"
)

// buildSeries lays out samples 10s apart so a 5-sample-wide cycle
// lands inside [30,120]s and does not also trip the CycleTooShort
// or CycleTimeout score contributions.
func buildSeries(n int, angleFn func(i int) float64, i1, i2 float64) ([]int64, []float64, []float64, []float64) {
	ts := make([]int64, n)
	angle := make([]float64, n)
	c1 := make([]float64, n)
	c2 := make([]float64, n)
	for i := 0; i < n; i++ {
		ts[i] = int64(i) * 10000
		angle[i] = angleFn(i)
		c1[i] = i1
		c2[i] = i2
	}
	return ts, angle, c1, c2
}

func TestFindBoundaries_DetectsOpenClose(t *testing.T) {
	d := NewDetector(Config{AngleThresholdDeg: 10, MinCycleDuration: 1, MaxCycleDuration: 120})
	angle := []float64{0, 5, 15, 60, 90, 60, 15, 5, 0}
	bounds := d.findBoundaries(angle)
	if len(bounds) != 1 {
		t.Fatalf("expected exactly one cycle boundary, got %d", len(bounds))
	}
	if bounds[0].startIdx != 2 || bounds[0].endIdx != 7 {
		t.Errorf("unexpected boundary indices: %+v", bounds[0])
	}
}

func TestFindBoundaries_IgnoresShallowCrossing(t *testing.T) {
	d := NewDetector(Config{AngleThresholdDeg: 10, MinCycleDuration: 1, MaxCycleDuration: 120})
	// crosses threshold but never exceeds 30 degrees.
	angle := []float64{0, 5, 15, 20, 15, 5, 0}
	bounds := d.findBoundaries(angle)
	if len(bounds) != 0 {
		t.Errorf("expected no boundaries for a shallow crossing, got %d", len(bounds))
	}
}

func TestDetectCycles_DiscardsOutOfRangeDuration(t *testing.T) {
	d := NewDetector(Config{AngleThresholdDeg: 10, MinCycleDuration: 100, MaxCycleDuration: 200})
	ts, angle, c1, c2 := buildSeries(9, func(i int) float64 {
		shape := []float64{0, 5, 15, 60, 90, 60, 15, 5, 0}
		return shape[i]
	}, 3000, 3000)
	cycles := d.DetectCycles("dev1", ts, angle, c1, c2, MotorBaseline{}, false)
	if len(cycles) != 0 {
		t.Errorf("expected the short cycle to be discarded, got %d cycles", len(cycles))
	}
}

func TestDetectCycles_ComputesMotorStatsAndScores(t *testing.T) {
	d := NewDetector(Config{AngleThresholdDeg: 10, MinCycleDuration: 1, MaxCycleDuration: 120, OverCurrentAmps: 12000})
	shape := []float64{0, 5, 15, 60, 90, 60, 15, 5, 0}
	ts, angle, c1, c2 := buildSeries(len(shape), func(i int) float64 { return shape[i] }, 3000, 3000)

	cycles := d.DetectCycles("dev1", ts, angle, c1, c2, MotorBaseline{}, false)
	if len(cycles) != 1 {
		t.Fatalf("expected one cycle, got %d", len(cycles))
	}
	c := cycles[0]
	if c.Motor1PeakCurrent != 3000 || c.Motor1AvgCurrent != 3000 {
		t.Errorf("unexpected motor1 stats: %+v", c)
	}
	if c.MotorBalanceRatio != 1 {
		t.Errorf("expected balanced ratio of 1, got %v", c.MotorBalanceRatio)
	}
	if c.MaxAngle != 90 {
		t.Errorf("expected max angle 90, got %v", c.MaxAngle)
	}
}

func TestDetectCycles_FlagsOverCurrent(t *testing.T) {
	d := NewDetector(Config{AngleThresholdDeg: 10, MinCycleDuration: 1, MaxCycleDuration: 120})
	shape := []float64{0, 5, 15, 60, 90, 60, 15, 5, 0}
	// both motors over-current with equal load, so imbalance does not outweigh over-current.
	ts, angle, c1, c2 := buildSeries(len(shape), func(i int) float64 { return shape[i] }, 15000, 15000)

	cycles := d.DetectCycles("dev1", ts, angle, c1, c2, MotorBaseline{}, false)
	if len(cycles) != 1 {
		t.Fatalf("expected one cycle, got %d", len(cycles))
	}
	if !cycles[0].IsAnomaly {
		t.Error("expected an over-current cycle to be flagged anomalous")
	}
	if cycles[0].AnomalyType != models.CycleAnomalyOverCurrent {
		t.Errorf("expected OverCurrent, got %v", cycles[0].AnomalyType)
	}
}

func TestDetectCycles_AngleStallFlagged(t *testing.T) {
	d := NewDetector(Config{AngleThresholdDeg: 10, MinCycleDuration: 1, MaxCycleDuration: 120})
	// crosses threshold, peaks just above 30 (so the cycle is recorded) but stays well under 100.
	// 10s ticks keep the cycle duration inside [30,120]s so CycleTooShort does not also trigger.
	shape := []float64{0, 5, 15, 35, 40, 35, 15, 5, 0}
	ts := make([]int64, len(shape))
	angle := make([]float64, len(shape))
	c1 := make([]float64, len(shape))
	c2 := make([]float64, len(shape))
	for i, a := range shape {
		ts[i] = int64(i) * 10000
		angle[i] = a
		c1[i] = 3000
		c2[i] = 3000
	}

	cycles := d.DetectCycles("dev1", ts, angle, c1, c2, MotorBaseline{}, false)
	if len(cycles) != 1 {
		t.Fatalf("expected one cycle, got %d", len(cycles))
	}
	if cycles[0].AnomalyType != models.CycleAnomalyAngleStall {
		t.Errorf("expected AngleStall, got %v", cycles[0].AnomalyType)
	}
}

func TestLearnMotorBaseline_RequiresMinimumSamples(t *testing.T) {
	angle := []float64{10, 20, 30}
	current := []float64{200, 300, 400}
	if _, ok := LearnMotorBaseline(angle, current); ok {
		t.Error("expected failure with fewer than 30 qualifying samples")
	}
}

func TestLearnMotorBaseline_FitsQuadratic(t *testing.T) {
	var angle, current []float64
	for i := 0; i < 40; i++ {
		a := float64(10 + i)
		angle = append(angle, a)
		current = append(current, 0.5*a*a+2*a+100)
	}
	baseline, ok := LearnMotorBaseline(angle, current)
	if !ok {
		t.Fatal("expected baseline to be learned")
	}
	if baseline.RSquared < 0.99 {
		t.Errorf("expected a near-perfect fit, got R^2=%v", baseline.RSquared)
	}
	if baseline.SampleCount != 40 {
		t.Errorf("expected 40 samples, got %d", baseline.SampleCount)
	}
}

func TestLearnBalanceBaseline_RequiresMinimumPairs(t *testing.T) {
	i1 := []float64{600, 600}
	i2 := []float64{600, 600}
	if _, _, _, ok := LearnBalanceBaseline(i1, i2); ok {
		t.Error("expected failure with fewer than 30 qualifying pairs")
	}
}

func TestLearnDurationBaseline_RequiresMinimumCycles(t *testing.T) {
	if _, _, ok := LearnDurationBaseline([]float64{60, 62, 58}); ok {
		t.Error("expected failure with fewer than 5 cycles")
	}
	mean, _, ok := LearnDurationBaseline([]float64{60, 62, 58, 61, 59})
	if !ok {
		t.Fatal("expected success with 5 cycles")
	}
	if mean < 58 || mean > 62 {
		t.Errorf("unexpected mean duration: %v", mean)
	}
}
