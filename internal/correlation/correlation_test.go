package correlation

import (
	"testing"

	"github.com/savegress/intellimaint/internal/telemetry"
	"github.com/savegress/intellimaint/pkg/models"
)

func seed(repo telemetry.Repository, deviceID, tagID string, values []float64) {
	pts := make([]models.TelemetryPoint, 0, len(values))
	for i, v := range values {
		pts = append(pts, models.FloatPoint(deviceID, tagID, int64(i)*1000, v))
	}
	_ = repo.Append(pts)
}

func TestAnalyzer_SameDirectionTriggers(t *testing.T) {
	repo := telemetry.NewMemStore()
	seed(repo, "dev1", "tagA", []float64{1, 2, 3, 4, 5})
	seed(repo, "dev1", "tagB", []float64{10, 20, 30, 40, 50})

	a := NewAnalyzer(repo)
	a.Refresh([]models.CorrelationRule{
		{ID: "r1", DevicePattern: "dev1", Tag1Pattern: "tagA", Tag2Pattern: "tagB", Type: models.CorrSameDirection, Threshold: 0.01, PenaltyScore: 10, RiskDescription: "rising together", Enabled: true},
	})

	anomalies, err := a.Analyze("dev1", 0, 5000)
	if err != nil {
		t.Fatal(err)
	}
	if len(anomalies) != 1 {
		t.Fatalf("expected one anomaly, got %d", len(anomalies))
	}
	if anomalies[0].Correlation < 0.9 {
		t.Errorf("expected strong positive correlation, got %v", anomalies[0].Correlation)
	}
}

func TestAnalyzer_OppositeDirectionDoesNotTriggerSameDirectionRule(t *testing.T) {
	repo := telemetry.NewMemStore()
	seed(repo, "dev1", "tagA", []float64{1, 2, 3, 4, 5})
	seed(repo, "dev1", "tagB", []float64{50, 40, 30, 20, 10})

	a := NewAnalyzer(repo)
	a.Refresh([]models.CorrelationRule{
		{ID: "r1", DevicePattern: "dev1", Tag1Pattern: "tagA", Tag2Pattern: "tagB", Type: models.CorrSameDirection, Threshold: 0.01, PenaltyScore: 10, RiskDescription: "rising together", Enabled: true},
	})

	anomalies, err := a.Analyze("dev1", 0, 5000)
	if err != nil {
		t.Fatal(err)
	}
	if len(anomalies) != 0 {
		t.Fatalf("expected no anomalies for opposing series, got %d", len(anomalies))
	}
}

func TestAnalyzer_ThresholdCombination(t *testing.T) {
	repo := telemetry.NewMemStore()
	seed(repo, "dev1", "tagA", []float64{1, 1, 1, 1, 100})
	seed(repo, "dev1", "tagB", []float64{1, 1, 1, 1, 100})

	a := NewAnalyzer(repo)
	a.Refresh([]models.CorrelationRule{
		{ID: "r1", DevicePattern: "dev1", Tag1Pattern: "tagA", Tag2Pattern: "tagB", Type: models.CorrThresholdCombination, Threshold: 1.0, PenaltyScore: 5, RiskDescription: "joint spike", Enabled: true},
	})

	anomalies, err := a.Analyze("dev1", 0, 5000)
	if err != nil {
		t.Fatal(err)
	}
	if len(anomalies) != 1 {
		t.Fatalf("expected one anomaly for joint spike, got %d", len(anomalies))
	}
}

func TestApplyPenalties(t *testing.T) {
	newIndex, msg := ApplyPenalties(90, 0, []models.CorrelationAnomaly{
		{RiskDescription: "risk A", PenaltyScore: 10},
		{RiskDescription: "risk B", PenaltyScore: 5},
	}, "diagnostic")
	if newIndex != 75 {
		t.Errorf("expected index reduced by total penalty to 75, got %v", newIndex)
	}
	if msg != "risk A; risk B; diagnostic" {
		t.Errorf("unexpected message: %q", msg)
	}
}
