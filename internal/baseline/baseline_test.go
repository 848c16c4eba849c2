package baseline

import (
	"testing"

	"github.com/savegress/intellimaint/internal/apperr"
	"github.com/savegress/intellimaint/internal/telemetry"
	"github.com/savegress/intellimaint/pkg/models"
)

func seedPoints(repo telemetry.Repository, deviceID, tagID string, count int, value func(i int) float64) {
	pts := make([]models.TelemetryPoint, 0, count)
	for i := 0; i < count; i++ {
		pts = append(pts, models.FloatPoint(deviceID, tagID, int64(i)*1000, value(i)))
	}
	_ = repo.Append(pts)
}

func TestStore_Learn_RequiresMinimumSamples(t *testing.T) {
	repo := telemetry.NewMemStore()
	seedPoints(repo, "dev1", "tag1", 50, func(i int) float64 { return 10.0 })

	store := NewStore(repo, Config{})
	_, err := store.Learn("dev1", 0, 50000, 50000)
	if !apperr.Is(err, apperr.KindInsufficientData) {
		t.Fatalf("expected InsufficientData, got %v", err)
	}
}

func TestStore_Learn_Succeeds(t *testing.T) {
	repo := telemetry.NewMemStore()
	seedPoints(repo, "dev1", "tag1", 150, func(i int) float64 { return 10.0 + float64(i%3) })

	store := NewStore(repo, Config{})
	b, err := store.Learn("dev1", 0, 150000, 150000)
	if err != nil {
		t.Fatalf("Learn failed: %v", err)
	}
	tb, ok := b.TagBaselines["tag1"]
	if !ok {
		t.Fatal("expected tag1 baseline")
	}
	if tb.NormalMean <= 0 {
		t.Errorf("expected positive mean, got %v", tb.NormalMean)
	}
}

func TestStore_Update_SkippedWhenNotDue(t *testing.T) {
	repo := telemetry.NewMemStore()
	seedPoints(repo, "dev1", "tag1", 150, func(i int) float64 { return 10.0 })

	store := NewStore(repo, Config{UpdateIntervalHours: 24, MinSampleCount: 10, IncrementalWeight: 0.2, AgingFactor: 0.01})
	if _, err := store.Learn("dev1", 0, 150000, 150000); err != nil {
		t.Fatal(err)
	}

	_, updated, err := store.Update("dev1", 0, 150000, 150000+1000)
	if err != nil {
		t.Fatal(err)
	}
	if updated {
		t.Error("expected update to be skipped before the interval elapses")
	}
}

func TestStore_Update_BlendsExistingBaseline(t *testing.T) {
	repo := telemetry.NewMemStore()
	seedPoints(repo, "dev1", "tag1", 150, func(i int) float64 { return 10.0 })

	cfg := Config{UpdateIntervalHours: 1, MinSampleCount: 10, AnomalyFilterThreshold: 3.0, IncrementalWeight: 0.2, AgingFactor: 0.01}
	store := NewStore(repo, cfg)
	nowMs := int64(150000)
	if _, err := store.Learn("dev1", 0, nowMs, nowMs); err != nil {
		t.Fatal(err)
	}

	laterNow := nowMs + int64(2*3_600_000)
	newPts := make([]models.TelemetryPoint, 0, 20)
	for i := 0; i < 20; i++ {
		newPts = append(newPts, models.FloatPoint("dev1", "tag1", nowMs+int64(i)*1000, 20.0))
	}
	_ = repo.Append(newPts)

	updated, didUpdate, err := store.Update("dev1", nowMs, laterNow, laterNow)
	if err != nil {
		t.Fatal(err)
	}
	if !didUpdate {
		t.Fatal("expected update to run")
	}
	tb := updated.TagBaselines["tag1"]
	if tb.NormalMean <= 10.0 || tb.NormalMean >= 20.0 {
		t.Errorf("expected blended mean strictly between old and new, got %v", tb.NormalMean)
	}
}
