package alarms

import (
	"testing"

	"github.com/savegress/intellimaint/internal/apperr"
	"github.com/savegress/intellimaint/pkg/models"
)

func rule() models.AlarmRule {
	return models.AlarmRule{
		RuleID:        "r1",
		TagPattern:    "Motor1.Current",
		ConditionType: models.CondGT,
		Threshold:     100,
		DwellMs:       0,
		HysteresisPct: 0.1,
		Severity:      3,
		Enabled:       true,
	}
}

func TestEvaluator_FiresAfterDwell(t *testing.T) {
	e := NewEvaluator()
	r := rule()
	r.DwellMs = 2000
	e.Refresh([]models.AlarmRule{r})

	fired := e.Evaluate("dev1", "Motor1.Current", 150, 1000)
	if len(fired) != 0 {
		t.Fatal("expected no alarm before dwell elapses")
	}
	fired = e.Evaluate("dev1", "Motor1.Current", 150, 3500)
	if len(fired) != 1 {
		t.Fatalf("expected one alarm after dwell elapses, got %d", len(fired))
	}
}

func TestEvaluator_GroupsRepeatedFires(t *testing.T) {
	e := NewEvaluator()
	r := rule()
	e.Refresh([]models.AlarmRule{r})

	e.Evaluate("dev1", "Motor1.Current", 150, 1000)
	e.Evaluate("dev1", "Motor1.Current", 50, 2000) // drops below threshold, re-arms
	e.Evaluate("dev1", "Motor1.Current", 150, 3000)

	open := e.OpenAlarmSeverities("dev1")
	if len(open) != 2 {
		t.Fatalf("expected two fired alarms grouped under one rule, got %d", len(open))
	}
}

func TestEvaluator_HysteresisPreventsRefire(t *testing.T) {
	e := NewEvaluator()
	r := rule() // threshold=100, hysteresis=0.1 -> must drop below 90 to re-arm
	e.Refresh([]models.AlarmRule{r})

	e.Evaluate("dev1", "Motor1.Current", 150, 1000)
	e.Evaluate("dev1", "Motor1.Current", 95, 2000) // still within hysteresis band, not released
	fired := e.Evaluate("dev1", "Motor1.Current", 150, 3000)
	if len(fired) != 0 {
		t.Fatalf("expected no re-fire while inside the hysteresis band, got %d", len(fired))
	}
}

func TestEvaluator_AckThenCloseForwardOnly(t *testing.T) {
	e := NewEvaluator()
	e.Refresh([]models.AlarmRule{rule()})

	fired := e.Evaluate("dev1", "Motor1.Current", 150, 1000)
	if len(fired) != 1 {
		t.Fatal("expected alarm to fire")
	}
	alarmID := fired[0].AlarmID

	acked, err := e.Ack(alarmID, "operator", "investigating", 2000)
	if err != nil || acked.Status != models.AlarmAcked {
		t.Fatalf("expected ack to succeed, got status=%v err=%v", acked.Status, err)
	}

	closed, err := e.Close(alarmID, 3000)
	if err != nil || closed.Status != models.AlarmClosed {
		t.Fatalf("expected close to succeed, got status=%v err=%v", closed.Status, err)
	}

	_, err = e.Ack(alarmID, "operator", "too late", 4000)
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected ConflictState acking a closed alarm, got %v", err)
	}
}

func TestEvaluator_CloseGroupRecomputesAggregateStatus(t *testing.T) {
	e := NewEvaluator()
	e.Refresh([]models.AlarmRule{rule()})

	e.Evaluate("dev1", "Motor1.Current", 150, 1000)
	e.Evaluate("dev1", "Motor1.Current", 50, 2000)
	e.Evaluate("dev1", "Motor1.Current", 150, 3000)

	var groupID string
	for _, g := range e.groups {
		groupID = g.GroupID
	}

	group, err := e.CloseGroup(groupID, 4000)
	if err != nil {
		t.Fatal(err)
	}
	if group.AggregateStatus != models.AlarmClosed {
		t.Errorf("expected aggregate status Closed, got %v", group.AggregateStatus)
	}
	if len(e.OpenAlarmSeverities("dev1")) != 0 {
		t.Error("expected no open alarms remaining after group close")
	}
}
