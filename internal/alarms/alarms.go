// Package alarms implements the Alarm Evaluator & Group Aggregator
// (C7): dwell/hysteresis-gated rule evaluation plus open-group
// attachment, grounded on the teacher's rule engine and notifier
// fan-out (internal/alerts/engine.go, notifiers.go), generalized to
// the typed severity/group model.
package alarms

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/savegress/intellimaint/internal/apperr"
	"github.com/savegress/intellimaint/internal/patternmatch"
	"github.com/savegress/intellimaint/pkg/models"
)

// Notifier dispatches a fired alarm to an external channel (console,
// webhook, Slack), mirroring the teacher's Notifier interface.
type Notifier interface {
	Name() string
	Notify(alarm models.AlarmRecord) error
}

type dwellState struct {
	conditionSinceMs int64 // Ts when the condition first started holding, 0 if not holding
	armed            bool  // true when eligible to fire again
}

// Evaluator evaluates AlarmRules against the latest per-(device,tag)
// value and maintains AlarmRecords/AlarmGroups in memory.
type Evaluator struct {
	mu        sync.Mutex
	rules     []models.AlarmRule
	cache     *patternmatch.Cache
	dwell     map[string]*dwellState // ruleID|deviceID|tagID -> state
	alarms    map[string]models.AlarmRecord
	groups    map[string]models.AlarmGroup // deviceID|ruleID -> open group
	notifiers []Notifier
}

// NewEvaluator creates an empty Evaluator.
func NewEvaluator() *Evaluator {
	return &Evaluator{
		cache:  patternmatch.NewCache(),
		dwell:  make(map[string]*dwellState),
		alarms: make(map[string]models.AlarmRecord),
		groups: make(map[string]models.AlarmGroup),
	}
}

// Refresh atomically swaps the enabled rule set.
func (e *Evaluator) Refresh(rules []models.AlarmRule) {
	enabled := make([]models.AlarmRule, 0, len(rules))
	for _, r := range rules {
		if r.Enabled {
			enabled = append(enabled, r)
		}
	}
	e.mu.Lock()
	e.rules = enabled
	e.mu.Unlock()
	e.cache.Reset()
}

// AddNotifier registers a notifier invoked synchronously when an alarm fires.
func (e *Evaluator) AddNotifier(n Notifier) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.notifiers = append(e.notifiers, n)
}

// Evaluate checks every enabled rule against the point, firing alarms
// per dwell/hysteresis gating, and returns any newly fired AlarmRecords.
func (e *Evaluator) Evaluate(deviceID, tagID string, value float64, ts int64) []models.AlarmRecord {
	e.mu.Lock()
	rules := e.rules
	e.mu.Unlock()

	var fired []models.AlarmRecord
	for _, rule := range rules {
		if !e.cache.Get(rule.TagPattern).Match(tagID) {
			continue
		}

		key := rule.RuleID + "|" + deviceID + "|" + tagID
		holds := conditionHolds(rule, value)
		released := conditionReleased(rule, value)

		e.mu.Lock()
		st, ok := e.dwell[key]
		if !ok {
			st = &dwellState{armed: true}
			e.dwell[key] = st
		}

		var shouldFire bool
		if holds {
			if st.conditionSinceMs == 0 {
				st.conditionSinceMs = ts
			}
			if ts-st.conditionSinceMs >= rule.DwellMs && st.armed {
				st.armed = false
				shouldFire = true
			}
		} else {
			st.conditionSinceMs = 0
			if released {
				st.armed = true
			}
		}
		e.mu.Unlock()

		if shouldFire {
			fired = append(fired, e.fire(deviceID, tagID, rule, value, ts))
		}
	}
	return fired
}

func conditionHolds(rule models.AlarmRule, value float64) bool {
	switch rule.ConditionType {
	case models.CondGT:
		return value > rule.Threshold
	case models.CondGTE:
		return value >= rule.Threshold
	case models.CondLT:
		return value < rule.Threshold
	case models.CondLTE:
		return value <= rule.Threshold
	case models.CondEQ:
		return value == rule.Threshold
	case models.CondNEQ:
		return value != rule.Threshold
	case models.CondBetween:
		return value >= rule.Lower && value <= rule.Upper
	case models.CondOutside:
		return value < rule.Lower || value > rule.Upper
	default:
		return false
	}
}

// conditionReleased reports whether value has left the triggering
// condition by at least HysteresisPct of the threshold, re-arming the rule.
func conditionReleased(rule models.AlarmRule, value float64) bool {
	band := rule.Threshold * rule.HysteresisPct
	switch rule.ConditionType {
	case models.CondGT, models.CondGTE:
		return value < rule.Threshold-band
	case models.CondLT, models.CondLTE:
		return value > rule.Threshold+band
	default:
		return !conditionHolds(rule, value)
	}
}

// fire creates an open AlarmRecord and attaches it to the
// (DeviceID, RuleID) group, creating the group if none is open.
func (e *Evaluator) fire(deviceID, tagID string, rule models.AlarmRule, value float64, ts int64) models.AlarmRecord {
	rec := models.AlarmRecord{
		AlarmID:      uuid.NewString(),
		DeviceID:     deviceID,
		TagID:        tagID,
		RuleID:       rule.RuleID,
		Ts:           ts,
		Severity:     rule.Severity,
		Code:         rule.RuleID,
		Message:      fmt.Sprintf("%s triggered on %s (value=%.4f)", rule.RuleID, tagID, value),
		Status:       models.AlarmOpen,
		CreatedUtcMs: ts,
		UpdatedUtcMs: ts,
	}

	e.mu.Lock()
	e.alarms[rec.AlarmID] = rec

	groupKey := deviceID + "|" + rule.RuleID
	group, exists := e.groups[groupKey]
	if !exists {
		group = models.AlarmGroup{
			GroupID:            uuid.NewString(),
			DeviceID:           deviceID,
			RuleID:             rule.RuleID,
			FirstOccurredUtcMs: ts,
			LastOccurredUtcMs:  ts,
			AlarmCount:         1,
			Severity:           rule.Severity,
			Message:            rec.Message,
			AggregateStatus:    models.AlarmOpen,
			ChildAlarmIDs:      []string{rec.AlarmID},
		}
	} else {
		group.AlarmCount++
		group.LastOccurredUtcMs = ts
		if rule.Severity > group.Severity {
			group.Severity = rule.Severity
		}
		group.Message = rec.Message
		group.ChildAlarmIDs = append(group.ChildAlarmIDs, rec.AlarmID)
	}
	e.groups[groupKey] = group
	notifiers := append([]Notifier(nil), e.notifiers...)
	e.mu.Unlock()

	for _, n := range notifiers {
		_ = n.Notify(rec)
	}
	return rec
}

// Ack marks a single open alarm as Acked. Forward-only: acking a
// closed alarm fails with ConflictState.
func (e *Evaluator) Ack(alarmID, ackedBy, note string, nowMs int64) (models.AlarmRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec, ok := e.alarms[alarmID]
	if !ok {
		return models.AlarmRecord{}, apperr.NotFound("ALARM_NOT_FOUND", "alarm "+alarmID+" does not exist")
	}
	if rec.Status == models.AlarmClosed {
		return models.AlarmRecord{}, apperr.Conflict("ALARM_ALREADY_CLOSED", "cannot ack a closed alarm")
	}
	rec.Status = models.AlarmAcked
	rec.AckedBy = ackedBy
	rec.AckedUtcMs = nowMs
	rec.AckNote = note
	rec.UpdatedUtcMs = nowMs
	e.alarms[alarmID] = rec
	return rec, nil
}

// AckGroup marks every open child alarm of a group as Acked.
func (e *Evaluator) AckGroup(groupID, ackedBy, note string, nowMs int64) (models.AlarmGroup, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	groupKey, group, err := e.findGroup(groupID)
	if err != nil {
		return models.AlarmGroup{}, err
	}
	if group.AggregateStatus == models.AlarmClosed {
		return models.AlarmGroup{}, apperr.Conflict("GROUP_ALREADY_CLOSED", "cannot ack a closed group")
	}

	for _, childID := range group.ChildAlarmIDs {
		rec, ok := e.alarms[childID]
		if !ok || rec.Status == models.AlarmClosed {
			continue
		}
		rec.Status = models.AlarmAcked
		rec.AckedBy = ackedBy
		rec.AckedUtcMs = nowMs
		rec.AckNote = note
		rec.UpdatedUtcMs = nowMs
		e.alarms[childID] = rec
	}
	group.AggregateStatus = models.AlarmAcked
	e.groups[groupKey] = group
	return group, nil
}

// Close closes a single alarm.
func (e *Evaluator) Close(alarmID string, nowMs int64) (models.AlarmRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec, ok := e.alarms[alarmID]
	if !ok {
		return models.AlarmRecord{}, apperr.NotFound("ALARM_NOT_FOUND", "alarm "+alarmID+" does not exist")
	}
	if rec.Status == models.AlarmClosed {
		return models.AlarmRecord{}, apperr.Conflict("ALARM_ALREADY_CLOSED", "alarm is already closed")
	}
	rec.Status = models.AlarmClosed
	rec.UpdatedUtcMs = nowMs
	e.alarms[alarmID] = rec
	e.recomputeGroupStatus(rec.DeviceID, rec.RuleID)
	return rec, nil
}

// CloseGroup closes the group and every child alarm, recomputing AggregateStatus.
func (e *Evaluator) CloseGroup(groupID string, nowMs int64) (models.AlarmGroup, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	groupKey, group, err := e.findGroup(groupID)
	if err != nil {
		return models.AlarmGroup{}, err
	}
	if group.AggregateStatus == models.AlarmClosed {
		return models.AlarmGroup{}, apperr.Conflict("GROUP_ALREADY_CLOSED", "group is already closed")
	}

	for _, childID := range group.ChildAlarmIDs {
		rec, ok := e.alarms[childID]
		if !ok {
			continue
		}
		rec.Status = models.AlarmClosed
		rec.UpdatedUtcMs = nowMs
		e.alarms[childID] = rec
	}
	group.AggregateStatus = models.AlarmClosed
	e.groups[groupKey] = group
	return group, nil
}

func (e *Evaluator) findGroup(groupID string) (string, models.AlarmGroup, error) {
	for key, g := range e.groups {
		if g.GroupID == groupID {
			return key, g, nil
		}
	}
	return "", models.AlarmGroup{}, apperr.NotFound("GROUP_NOT_FOUND", "alarm group "+groupID+" does not exist")
}

// recomputeGroupStatus derives AggregateStatus from child statuses:
// Closed only when every child is closed, Acked if none remain Open,
// else Open.
func (e *Evaluator) recomputeGroupStatus(deviceID, ruleID string) {
	groupKey := deviceID + "|" + ruleID
	group, ok := e.groups[groupKey]
	if !ok {
		return
	}

	allClosed, anyOpen := true, false
	for _, childID := range group.ChildAlarmIDs {
		rec, ok := e.alarms[childID]
		if !ok {
			continue
		}
		if rec.Status != models.AlarmClosed {
			allClosed = false
		}
		if rec.Status == models.AlarmOpen {
			anyOpen = true
		}
	}
	switch {
	case allClosed:
		group.AggregateStatus = models.AlarmClosed
	case anyOpen:
		group.AggregateStatus = models.AlarmOpen
	default:
		group.AggregateStatus = models.AlarmAcked
	}
	e.groups[groupKey] = group
}

// OpenAlarmSeverities returns the severities of every currently open
// alarm for a device, consumed by the health calculator's alarm sub-score.
func (e *Evaluator) OpenAlarmSeverities(deviceID string) []int {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []int
	for _, rec := range e.alarms {
		if rec.DeviceID == deviceID && rec.Status == models.AlarmOpen {
			out = append(out, rec.Severity)
		}
	}
	return out
}

// Get returns a single alarm by id.
func (e *Evaluator) Get(alarmID string) (models.AlarmRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rec, ok := e.alarms[alarmID]
	if !ok {
		return models.AlarmRecord{}, apperr.NotFound("ALARM_NOT_FOUND", "alarm "+alarmID+" does not exist")
	}
	return rec, nil
}
