package motor

import (
	"math"
	"testing"

	"github.com/savegress/intellimaint/pkg/models"
)

func sineWave(n int, sampleRateHz float64, freqs []float64, amps []float64) []float64 {
	samples := make([]float64, n)
	for i := 0; i < n; i++ {
		t := float64(i) / sampleRateHz
		v := 0.0
		for k, f := range freqs {
			v += amps[k] * math.Sin(2*math.Pi*f*t)
		}
		samples[i] = v
	}
	return samples
}

func TestFFT_FundamentalDominatesBearingTone(t *testing.T) {
	samples := sineWave(8192, 1000, []float64{50, 97}, []float64{1.0, 0.1})
	spectrum := FFT(samples, 1000)

	a1 := spectrum.AmplitudeAt(50)
	abpfo := spectrum.AmplitudeAt(97)

	if a1 <= 0 {
		t.Fatal("expected a nonzero fundamental amplitude at 50Hz")
	}
	if abpfo <= 0 {
		t.Fatal("expected a nonzero bearing-tone amplitude at 97Hz")
	}
	if abpfo >= a1 {
		t.Errorf("expected the bearing tone amplitude to be much smaller than the fundamental: a1=%v abpfo=%v", a1, abpfo)
	}
	ratio := abpfo / a1
	if ratio < 0.05 || ratio > 0.2 {
		t.Errorf("expected bearing/fundamental ratio near 0.1, got %v", ratio)
	}
}

func TestFFT_EmptyInputYieldsEmptySpectrum(t *testing.T) {
	spectrum := FFT(nil, 1000)
	if len(spectrum.Magnitudes) != 0 {
		t.Errorf("expected an empty spectrum for no samples, got %d bins", len(spectrum.Magnitudes))
	}
}

func TestBearingFrequencies_ZeroBearingCountIsEmpty(t *testing.T) {
	freqs := BearingFrequencies(BearingGeometry{}, 50)
	if len(freqs) != 0 {
		t.Errorf("expected no frequencies for zero bearing count, got %v", freqs)
	}
}

func TestBearingFrequencies_ComputesAllFour(t *testing.T) {
	geo := BearingGeometry{BearingCount: 8, BallDiameterMM: 10, PitchDiameterMM: 60, ContactAngleDeg: 0}
	freqs := BearingFrequencies(geo, 25)
	for _, name := range []string{"BPFO", "BPFI", "BSF", "FTF"} {
		if _, ok := freqs[name]; !ok {
			t.Errorf("expected %s to be present", name)
		}
	}
	if freqs["BPFO"] >= freqs["BPFI"] {
		t.Errorf("expected BPFO < BPFI for a positive contact angle cosine, got BPFO=%v BPFI=%v", freqs["BPFO"], freqs["BPFI"])
	}
}

func TestTHD_ZeroFundamentalIsZero(t *testing.T) {
	if thd := THD(0, 1, 1); thd != 0 {
		t.Errorf("expected 0 THD with zero fundamental, got %v", thd)
	}
}

func TestLearnBaseline_RequiresMinimumSamples(t *testing.T) {
	_, ok := LearnBaseline(BaselineConfig{MinSamples: 50}, "m1", "mode1", models.ParamCurrentRMS, []float64{1, 2, 3}, nil, BearingGeometry{}, 0)
	if ok {
		t.Error("expected failure with too few samples")
	}
}

func TestLearnBaseline_ComputesStats(t *testing.T) {
	samples := make([]float64, 200)
	for i := range samples {
		samples[i] = 100 + float64(i%5)
	}
	profile, ok := LearnBaseline(BaselineConfig{MinSamples: 50}, "m1", "mode1", models.ParamCurrentRMS, samples, nil, BearingGeometry{}, 0)
	if !ok {
		t.Fatal("expected baseline to be learned")
	}
	if profile.SampleCount != 200 {
		t.Errorf("expected 200 samples, got %d", profile.SampleCount)
	}
	if profile.Mean < 100 || profile.Mean > 105 {
		t.Errorf("unexpected mean: %v", profile.Mean)
	}
}

func TestWelfordState_MatchesBatchStats(t *testing.T) {
	samples := []float64{10, 12, 14, 11, 13, 15, 9, 16}
	var w WelfordState
	for _, s := range samples {
		w.Add(s)
	}
	batchMean := meanOf(samples)
	if math.Abs(w.Mean-batchMean) > 1e-9 {
		t.Errorf("expected Welford mean %v, got %v", batchMean, w.Mean)
	}
}

func TestDetect_OvercurrentFault(t *testing.T) {
	readings := []Reading{
		{Parameter: models.ParamCurrentRMS, Value: 150, Baseline: models.BaselineProfile{Mean: 100, StdDev: 10}},
	}
	result := Detect(FaultConfig{PhaseImbalanceThresholdPct: 10, BearingFaultGainThreshold: 5, ThdThreshold: 10}, "inst1", "dev1", "mode1", 1000, readings)
	if len(result.Faults) != 1 {
		t.Fatalf("expected exactly one fault, got %d", len(result.Faults))
	}
	if result.Faults[0].Type != "Overcurrent" {
		t.Errorf("expected Overcurrent, got %v", result.Faults[0].Type)
	}
	if result.Faults[0].Severity != models.FaultCritical {
		t.Errorf("expected Critical severity for z=5, got %v", result.Faults[0].Severity)
	}
}

func TestDetect_NoFaultWithinBand(t *testing.T) {
	readings := []Reading{
		{Parameter: models.ParamCurrentRMS, Value: 101, Baseline: models.BaselineProfile{Mean: 100, StdDev: 10}},
	}
	result := Detect(FaultConfig{}, "inst1", "dev1", "mode1", 1000, readings)
	if len(result.Faults) != 0 {
		t.Errorf("expected no faults for z<2, got %d", len(result.Faults))
	}
	if result.HealthScore < 95 {
		t.Errorf("expected a near-perfect health score, got %v", result.HealthScore)
	}
}

func TestDetect_PhaseImbalance(t *testing.T) {
	readings := []Reading{
		{Parameter: models.ParamCurrentPhaseA, Value: 100, Baseline: models.BaselineProfile{Mean: 100, StdDev: 1000}},
		{Parameter: models.ParamCurrentPhaseB, Value: 100, Baseline: models.BaselineProfile{Mean: 100, StdDev: 1000}},
		{Parameter: models.ParamCurrentPhaseC, Value: 140, Baseline: models.BaselineProfile{Mean: 100, StdDev: 1000}},
	}
	result := Detect(FaultConfig{PhaseImbalanceThresholdPct: 5}, "inst1", "dev1", "mode1", 1000, readings)
	found := false
	for _, f := range result.Faults {
		if f.Type == "PhaseImbalance" {
			found = true
		}
	}
	if !found {
		t.Error("expected a PhaseImbalance fault to be detected")
	}
}

func TestDetect_RecommendsImmediateStopForSevereFault(t *testing.T) {
	readings := []Reading{
		{Parameter: models.ParamCurrentRMS, Value: 150, Baseline: models.BaselineProfile{Mean: 100, StdDev: 12.5}},
	}
	result := Detect(FaultConfig{}, "inst1", "dev1", "mode1", 1000, readings)
	found := false
	for _, r := range result.Recommendations {
		if r == "schedule immediate stop" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected an immediate-stop recommendation for a severe fault, got %v", result.Recommendations)
	}
}
