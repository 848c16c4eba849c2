package importance

import (
	"testing"

	"github.com/savegress/intellimaint/pkg/models"
)

func TestMatcher_DefaultBeforeRefresh(t *testing.T) {
	m := NewMatcher(models.ImportanceMinor)
	if got := m.Match("Motor1.Current"); got != models.ImportanceMinor {
		t.Errorf("expected default Minor before Refresh, got %v", got)
	}
}

func TestMatcher_HighestPriorityWins(t *testing.T) {
	m := NewMatcher(models.ImportanceMinor)
	m.Refresh([]Rule{
		{Pattern: "Motor*.Current", Importance: models.ImportanceMajor, Priority: 1, Enabled: true},
		{Pattern: "Motor1.Current", Importance: models.ImportanceCritical, Priority: 10, Enabled: true},
	})

	if got := m.Match("Motor1.Current"); got != models.ImportanceCritical {
		t.Errorf("expected Critical from higher-priority rule, got %v", got)
	}
	if got := m.Match("Motor2.Current"); got != models.ImportanceMajor {
		t.Errorf("expected Major from the wildcard rule, got %v", got)
	}
}

func TestMatcher_DisabledRuleIgnored(t *testing.T) {
	m := NewMatcher(models.ImportanceMinor)
	m.Refresh([]Rule{
		{Pattern: "Temp*", Importance: models.ImportanceCritical, Priority: 5, Enabled: false},
	})
	if got := m.Match("Temp1"); got != models.ImportanceMinor {
		t.Errorf("expected default for disabled rule, got %v", got)
	}
}

func TestMatcher_NoMatchReturnsDefault(t *testing.T) {
	m := NewMatcher(models.ImportanceTrivial)
	m.Refresh([]Rule{{Pattern: "Pressure*", Importance: models.ImportanceMajor, Priority: 1, Enabled: true}})
	if got := m.Match("Vibration1"); got != models.ImportanceTrivial {
		t.Errorf("expected default Trivial, got %v", got)
	}
}

func TestMatcher_Weight(t *testing.T) {
	m := NewMatcher(models.ImportanceMinor)
	m.Refresh([]Rule{{Pattern: "Critical*", Importance: models.ImportanceCritical, Priority: 1, Enabled: true}})
	if w := m.Weight("Critical.Tag"); w != 4 {
		t.Errorf("expected weight 4 for Critical, got %v", w)
	}
}
