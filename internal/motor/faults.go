package motor

import (
	"fmt"
	"math"
	"sort"

	"github.com/savegress/intellimaint/pkg/models"
)

// FaultConfig controls detection thresholds independent of the
// learned baseline.
type FaultConfig struct {
	PhaseImbalanceThresholdPct float64
	BearingFaultGainThreshold  float64
	ThdThreshold               float64
}

// Reading is one mapped parameter's current value and baseline for
// fault evaluation.
type Reading struct {
	Parameter models.MotorParameter
	Value     float64
	Baseline  models.BaselineProfile
}

var severityThresholds = []struct {
	z float64
	s models.FaultSeverity
}{
	{5, models.FaultCritical},
	{4, models.FaultSevere},
	{3, models.FaultModerate},
	{2, models.FaultMinor},
}

func classifySeverity(absZ float64) (models.FaultSeverity, bool) {
	for _, t := range severityThresholds {
		if absZ >= t.z {
			return t.s, true
		}
	}
	return models.FaultMinor, false
}

func faultConfidence(absZ float64) float64 {
	return math.Min(95, 50+10*absZ)
}

// Detect evaluates per-parameter z-score faults, phase imbalance, and
// bearing/harmonic faults against frequency profiles, returning a
// DiagnosisResult for one motor instance.
func Detect(cfg FaultConfig, instanceID, deviceID, modeID string, ts int64, readings []Reading) models.DiagnosisResult {
	var faults []models.MotorFault
	var absZs []float64

	for _, r := range readings {
		if r.Baseline.StdDev < 1e-9 {
			continue
		}
		z := (r.Value - r.Baseline.Mean) / r.Baseline.StdDev
		absZ := math.Abs(z)
		absZs = append(absZs, absZ)

		severity, ok := classifySeverity(absZ)
		if !ok {
			continue
		}
		faults = append(faults, models.MotorFault{
			Type:        faultTypeFor(r.Parameter, z),
			Parameter:   r.Parameter,
			Severity:    severity,
			ZScore:      z,
			Confidence:  faultConfidence(absZ),
			Description: fmt.Sprintf("%s %s by %.1f standard deviations", r.Parameter, direction(z), absZ),
		})
	}

	if imbalance, ok := phaseImbalance(cfg, readings); ok {
		faults = append(faults, imbalance)
	}

	faults = append(faults, bearingFaults(cfg, readings)...)
	faults = append(faults, harmonicFaults(cfg, readings)...)

	healthScore := 100.0
	if len(absZs) > 0 {
		healthScore -= 15 * meanOf(absZs)
	}
	for _, f := range faults {
		healthScore -= severityPenalty(f.Severity) * f.Confidence / 100
	}
	healthScore = math.Max(0, math.Min(100, healthScore))

	sort.SliceStable(faults, func(i, j int) bool { return faults[i].Severity > faults[j].Severity })
	summary := faults
	if len(summary) > 3 {
		summary = summary[:3]
	}

	return models.DiagnosisResult{
		InstanceID:      instanceID,
		DeviceID:        deviceID,
		Timestamp:       ts,
		ModeID:          modeID,
		HealthScore:     healthScore,
		Faults:          faults,
		Summary:         summary,
		Recommendations: recommendations(faults),
	}
}

func direction(z float64) string {
	if z >= 0 {
		return "above baseline"
	}
	return "below baseline"
}

func faultTypeFor(param models.MotorParameter, z float64) string {
	switch param {
	case models.ParamCurrentPhaseA, models.ParamCurrentPhaseB, models.ParamCurrentPhaseC, models.ParamCurrentRMS:
		if z > 0 {
			return "Overcurrent"
		}
		return "Undercurrent"
	case models.ParamTemp:
		if z > 0 {
			return "Overheating"
		}
		return "TemperatureLow"
	case models.ParamVibration:
		return "VibrationAbnormal"
	case models.ParamSpeed:
		if z > 0 {
			return "Overspeed"
		}
		return "Underspeed"
	default:
		return fmt.Sprintf("%sAbnormal", param)
	}
}

func severityPenalty(s models.FaultSeverity) float64 {
	switch s {
	case models.FaultCritical:
		return 30
	case models.FaultSevere:
		return 20
	case models.FaultModerate:
		return 10
	default:
		return 5
	}
}

func phaseImbalance(cfg FaultConfig, readings []Reading) (models.MotorFault, bool) {
	var phases []float64
	for _, r := range readings {
		switch r.Parameter {
		case models.ParamCurrentPhaseA, models.ParamCurrentPhaseB, models.ParamCurrentPhaseC:
			phases = append(phases, r.Value)
		}
	}
	if len(phases) != 3 {
		return models.MotorFault{}, false
	}
	avg := meanOf(phases)
	if avg == 0 {
		return models.MotorFault{}, false
	}
	maxDevPct := 0.0
	for _, p := range phases {
		devPct := math.Abs(p-avg) / avg * 100
		if devPct > maxDevPct {
			maxDevPct = devPct
		}
	}
	if maxDevPct <= cfg.PhaseImbalanceThresholdPct {
		return models.MotorFault{}, false
	}
	return models.MotorFault{
		Type:        "PhaseImbalance",
		Severity:    models.FaultModerate,
		Confidence:  math.Min(95, 50+maxDevPct),
		Description: fmt.Sprintf("phase current deviation %.1f%% exceeds threshold", maxDevPct),
	}, true
}

func bearingFaults(cfg FaultConfig, readings []Reading) []models.MotorFault {
	var faults []models.MotorFault
	seen := map[string]bool{}
	for _, r := range readings {
		fp := r.Baseline.FrequencyProfile
		if fp == nil {
			continue
		}
		for name, amp := range fp.BearingAmplitudes {
			key := string(r.Parameter) + "|" + name
			if seen[key] {
				continue
			}
			threshold := fp.NoiseFloor * cfg.BearingFaultGainThreshold
			if threshold <= 0 || amp <= threshold {
				continue
			}
			seen[key] = true
			faults = append(faults, models.MotorFault{
				Type:        bearingFaultType(name),
				Parameter:   r.Parameter,
				Severity:    models.FaultSevere,
				Confidence:  math.Min(95, 50+10*(amp/threshold)),
				Description: fmt.Sprintf("%s amplitude %.4f exceeds noise floor gain threshold", name, amp),
			})
		}
	}
	return faults
}

func bearingFaultType(name string) string {
	switch name {
	case "BPFO":
		return "BearingOuterRace"
	case "BPFI":
		return "BearingInnerRace"
	case "BSF":
		return "BearingBallSpin"
	case "FTF":
		return "BearingCageFault"
	default:
		return "BearingFault"
	}
}

func harmonicFaults(cfg FaultConfig, readings []Reading) []models.MotorFault {
	var faults []models.MotorFault
	for _, r := range readings {
		fp := r.Baseline.FrequencyProfile
		if fp == nil || fp.FundamentalAmp == 0 {
			continue
		}
		thd := THD(fp.FundamentalAmp, fp.Harmonic2Amp, fp.Harmonic3Amp)
		if thd <= cfg.ThdThreshold {
			continue
		}
		faults = append(faults, models.MotorFault{
			Type:        "HarmonicAbnormal",
			Parameter:   r.Parameter,
			Severity:    models.FaultModerate,
			Confidence:  math.Min(95, 50+thd),
			Description: fmt.Sprintf("THD %.1f%% exceeds threshold", thd),
		})
	}
	return faults
}

func recommendations(faults []models.MotorFault) []string {
	if len(faults) == 0 {
		return nil
	}
	types := map[string]bool{}
	maxSeverity := models.FaultMinor
	for _, f := range faults {
		types[f.Type] = true
		if f.Severity > maxSeverity {
			maxSeverity = f.Severity
		}
	}

	var recs []string
	if types["Overcurrent"] {
		recs = append(recs, "inspect load and phase wiring for overcurrent condition")
	}
	if types["PhaseImbalance"] {
		recs = append(recs, "check supply voltage balance and motor winding resistance")
	}
	if types["BearingOuterRace"] || types["BearingInnerRace"] || types["BearingBallSpin"] || types["BearingCageFault"] {
		recs = append(recs, "schedule bearing inspection or replacement")
	}
	if types["HarmonicAbnormal"] {
		recs = append(recs, "check for loose connections or winding faults")
	}
	if types["Overheating"] {
		recs = append(recs, "inspect cooling and ventilation")
	}
	if maxSeverity >= models.FaultSevere {
		recs = append(recs, "schedule immediate stop")
	}
	return recs
}
