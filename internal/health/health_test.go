package health

import (
	"testing"

	"github.com/savegress/intellimaint/internal/importance"
	"github.com/savegress/intellimaint/pkg/models"
)

func newTestCalculator() *Calculator {
	m := importance.NewMatcher(models.ImportanceMinor)
	m.Refresh([]importance.Rule{
		{Pattern: "*", Importance: models.ImportanceMinor, Priority: 0, Enabled: true},
	})
	return NewCalculator(
		Weights{Deviation: 0.40, Trend: 0.30, Stability: 0.20, Alarm: 0.10},
		Thresholds{HealthyMin: 80, AttentionMin: 60, WarningMin: 40},
		AlarmScoreConfig{CriticalPenalty: 40, ErrorPenalty: 25, WarningPenalty: 10, InfoPenalty: 5, MinScore: 0},
		m,
	)
}

func TestCalculator_NoBaselineDefaultsDeviation(t *testing.T) {
	c := newTestCalculator()
	feats := models.DeviceFeatures{TagFeatures: map[string]models.TagFeatures{
		"tag1": {Mean: 10, StdDev: 1, TrendDirection: models.TrendFlat},
	}}
	score := c.Calculate("dev1", 1000, feats, models.DeviceBaseline{}, false, nil)
	if score.DeviationScore != 80 {
		t.Errorf("expected default deviation score 80 without baseline, got %v", score.DeviationScore)
	}
}

func TestCalculator_HighZScoreLowersDeviationScore(t *testing.T) {
	c := newTestCalculator()
	feats := models.DeviceFeatures{TagFeatures: map[string]models.TagFeatures{
		"tag1": {Mean: 50, StdDev: 1, TrendDirection: models.TrendFlat},
	}}
	baseline := models.DeviceBaseline{TagBaselines: map[string]models.TagBaseline{
		"tag1": {NormalMean: 10, NormalStdDev: 1},
	}}
	score := c.Calculate("dev1", 1000, feats, baseline, true, nil)
	if score.DeviationScore >= 50 {
		t.Errorf("expected low deviation score for large z-score, got %v", score.DeviationScore)
	}
	if len(score.ProblemTags) == 0 {
		t.Error("expected a flagged problem tag for extreme deviation")
	}
}

func TestCalculator_AlarmScorePenalizesSeverity(t *testing.T) {
	c := newTestCalculator()
	score := c.CalculateAlarmScore([]int{4, 4})
	if score >= 100 {
		t.Errorf("expected alarm score penalized below 100, got %v", score)
	}
}

func TestCalculator_AlarmScoreNoOpenAlarms(t *testing.T) {
	c := newTestCalculator()
	if got := c.CalculateAlarmScore(nil); got != 100 {
		t.Errorf("expected 100 with no open alarms, got %v", got)
	}
}

func TestCountOnlyAlarmScore(t *testing.T) {
	cases := map[int]float64{0: 100, 1: 80, 2: 60, 3: 40, 5: 20}
	for count, want := range cases {
		if got := CountOnlyAlarmScore(count); got != want {
			t.Errorf("count=%d: expected %v, got %v", count, want, got)
		}
	}
}

func TestCalculator_LevelClassification(t *testing.T) {
	c := newTestCalculator()
	feats := models.DeviceFeatures{TagFeatures: map[string]models.TagFeatures{
		"tag1": {Mean: 10, StdDev: 0, TrendDirection: models.TrendFlat},
	}}
	score := c.Calculate("dev1", 1000, feats, models.DeviceBaseline{}, false, nil)
	if score.Level != models.HealthHealthy && score.Level != models.HealthAttention {
		t.Errorf("expected a reasonably healthy level absent baseline/alarms, got %v", score.Level)
	}
}
