package predict

import "testing"

func TestCombine_StableWhenAllEqual(t *testing.T) {
	cfg := MultiScaleConfig{ShortTermWeight: 0.3, MediumTermWeight: 0.3, LongTermWeight: 0.4}
	res := Combine(cfg, 80, 80, 80)
	if res.Trend != TrendStable {
		t.Errorf("expected stable trend, got %v", res.Trend)
	}
	if res.Composite != 80 {
		t.Errorf("expected composite 80, got %v", res.Composite)
	}
}

func TestCombine_SharpDeterioration(t *testing.T) {
	cfg := MultiScaleConfig{ShortTermWeight: 0.3, MediumTermWeight: 0.3, LongTermWeight: 0.4}
	res := Combine(cfg, 40, 70, 90)
	if res.Trend != TrendSharpDeterioration {
		t.Errorf("expected sharp deterioration, got %v", res.Trend)
	}
}

func TestDetect_GradualDecrease(t *testing.T) {
	values := []float64{100, 98, 95, 90, 85, 80, 75, 70, 65, 60}
	res := Detect(DegradationConfig{ConfirmationCount: 2, DegradationRateThreshold: 0.1}, values, 10)
	if res.Type != DegradationGradualDecrease {
		t.Errorf("expected gradual decrease, got %v", res.Type)
	}
	if res.DailyRate >= 0 {
		t.Errorf("expected negative daily rate, got %v", res.DailyRate)
	}
}

func TestDetect_NoneWhenFlat(t *testing.T) {
	values := []float64{80, 80, 80, 80, 80, 80, 80, 80, 80, 80}
	res := Detect(DegradationConfig{ConfirmationCount: 2, DegradationRateThreshold: 0.1}, values, 10)
	if res.Type != DegradationNone {
		t.Errorf("expected no degradation for a flat series, got %v", res.Type)
	}
}

func TestOLS_PerfectLine(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	fit := OLS(values)
	if fit.Slope != 1 {
		t.Errorf("expected slope 1, got %v", fit.Slope)
	}
	if fit.RSquared < 0.999 {
		t.Errorf("expected R^2 near 1 for a perfect line, got %v", fit.RSquared)
	}
}

func TestForecast_RisingTowardUpperThreshold(t *testing.T) {
	values := []float64{10, 12, 14, 16, 18, 20}
	cfg := TrendPredictionConfig{SmoothingAlpha: 1.0, ConfidenceThreshold: 0.5}
	forecast := Forecast(cfg, values, "rule1", 40, true)
	if !forecast.HasThreshold {
		t.Fatal("expected a threshold crossing to be found")
	}
	if forecast.AlertLevel == AlertNone {
		t.Error("expected a non-None alert level for a converging trend")
	}
}

func TestForecast_InconsistentDirectionYieldsNone(t *testing.T) {
	values := []float64{20, 18, 16, 14, 12, 10}
	cfg := TrendPredictionConfig{SmoothingAlpha: 1.0, ConfidenceThreshold: 0.5}
	forecast := Forecast(cfg, values, "rule1", 40, true)
	if forecast.AlertLevel != AlertNone {
		t.Errorf("expected None for a falling series approaching an upper threshold, got %v", forecast.AlertLevel)
	}
}

func TestEstimate_NearFailure(t *testing.T) {
	est := Estimate(RulConfig{FailureThreshold: 30}, []float64{40, 38, 35}, 25)
	if est.Status != RulNearFailure || est.RemainingUsefulLifeH != 0 {
		t.Errorf("expected NearFailure with zero RUL, got %+v", est)
	}
}

func TestEstimate_HealthyWhenSlopeFlat(t *testing.T) {
	est := Estimate(RulConfig{FailureThreshold: 30, MaxPredictionDays: 90}, []float64{80, 80, 80, 80}, 80)
	if est.Status != RulHealthy || est.HasETA {
		t.Errorf("expected Healthy with no ETA, got %+v", est)
	}
}

func TestEstimate_AcceleratedDegradation(t *testing.T) {
	values := make([]float64, 48)
	for i := range values {
		values[i] = 100 - float64(i)*0.2 // -0.2/hour = -4.8/day
	}
	est := Estimate(RulConfig{FailureThreshold: 30, MaxPredictionDays: 90}, values, values[len(values)-1])
	if est.Status != RulAcceleratedDegradation {
		t.Errorf("expected AcceleratedDegradation for a steep slope, got %v", est.Status)
	}
	if !est.HasETA {
		t.Error("expected an ETA for a degrading device")
	}
}
