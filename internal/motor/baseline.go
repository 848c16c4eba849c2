package motor

import (
	"math"
	"sort"

	"github.com/savegress/intellimaint/pkg/models"
)

// BaselineConfig controls per-(mode, parameter) baseline learning.
type BaselineConfig struct {
	MinSamples int
}

// LearnBaseline computes mean/stddev/min/max/median/p05/p95 from
// mapped (scale*x+offset) samples, attaching a FrequencyProfile when
// the parameter is a current channel and a spectrum is supplied.
func LearnBaseline(cfg BaselineConfig, instanceID, modeID string, param models.MotorParameter, samples []float64, spectrum *Spectrum, geometry BearingGeometry, frHz float64) (models.BaselineProfile, bool) {
	if len(samples) < cfg.MinSamples {
		return models.BaselineProfile{}, false
	}

	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)

	mean := meanOf(samples)
	sd := stddevOf(samples, mean)

	profile := models.BaselineProfile{
		InstanceID:    instanceID,
		ModeID:        modeID,
		Parameter:     param,
		Mean:          mean,
		StdDev:        sd,
		Min:           sorted[0],
		Max:           sorted[len(sorted)-1],
		Median:        percentile(sorted, 0.5),
		P05:           percentile(sorted, 0.05),
		P95:           percentile(sorted, 0.95),
		SampleCount:   int64(len(samples)),
		ConfidencePct: confidence(mean, sd, len(samples)),
	}

	if isCurrentParameter(param) && spectrum != nil {
		profile.FrequencyProfile = buildFrequencyProfile(*spectrum, geometry, frHz)
	}

	return profile, true
}

func confidence(mean, sd float64, n int) float64 {
	ratio := 1.0
	if math.Abs(mean) > 1e-9 {
		ratio = math.Min(1, sd/math.Abs(mean))
	}
	return (0.6*(1-ratio) + 0.4*math.Min(1, float64(n)/10000)) * 100
}

func isCurrentParameter(p models.MotorParameter) bool {
	switch p {
	case models.ParamCurrentPhaseA, models.ParamCurrentPhaseB, models.ParamCurrentPhaseC, models.ParamCurrentRMS:
		return true
	default:
		return false
	}
}

func buildFrequencyProfile(spectrum Spectrum, geometry BearingGeometry, frHz float64) *models.FrequencyProfile {
	a1 := spectrum.AmplitudeAt(frHz)
	a2 := spectrum.AmplitudeAt(2 * frHz)
	a3 := spectrum.AmplitudeAt(3 * frHz)

	nyquist := spectrum.SampleRate / 2
	bearing := BearingFrequencies(geometry, frHz)
	bearingAmps := make(map[string]float64, len(bearing))
	for name, f := range bearing {
		bearingAmps[name] = spectrum.AmplitudeAt(f)
	}

	return &models.FrequencyProfile{
		SampleRateHz:   spectrum.SampleRate,
		FundamentalHz:  frHz,
		FundamentalAmp: a1,
		Harmonic2Amp:   a2,
		Harmonic3Amp:   a3,
		BandEnergies: [3]float64{
			spectrum.BandEnergy(0, 100),
			spectrum.BandEnergy(100, 1000),
			spectrum.BandEnergy(1000, nyquist),
		},
		NoiseFloor:        noiseFloor(spectrum),
		BearingAmplitudes: bearingAmps,
	}
}

// noiseFloor approximates the spectral noise floor as the median
// magnitude excluding the DC bin.
func noiseFloor(spectrum Spectrum) float64 {
	if len(spectrum.Magnitudes) <= 1 {
		return 0
	}
	mags := append([]float64(nil), spectrum.Magnitudes[1:]...)
	sort.Float64s(mags)
	return percentile(mags, 0.5)
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := p * float64(len(sorted)-1)
	lo := int(math.Floor(idx))
	hi := int(math.Ceil(idx))
	if lo == hi {
		return sorted[lo]
	}
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func meanOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stddevOf(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sq := 0.0
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(values)))
}

// WelfordState is an incremental mean/variance accumulator for online
// baseline refresh.
type WelfordState struct {
	Count    int64
	Mean     float64
	M2       float64
	Min, Max float64
}

// NewWelfordState seeds a WelfordState from an existing baseline so
// refresh continues from prior statistics.
func NewWelfordState(profile models.BaselineProfile) WelfordState {
	return WelfordState{
		Count: profile.SampleCount,
		Mean:  profile.Mean,
		M2:    profile.StdDev * profile.StdDev * float64(maxInt64(profile.SampleCount, 1)),
		Min:   profile.Min,
		Max:   profile.Max,
	}
}

// Add folds one new sample into the running statistics.
func (w *WelfordState) Add(x float64) {
	w.Count++
	delta := x - w.Mean
	w.Mean += delta / float64(w.Count)
	delta2 := x - w.Mean
	w.M2 += delta * delta2
	if w.Count == 1 || x < w.Min {
		w.Min = x
	}
	if w.Count == 1 || x > w.Max {
		w.Max = x
	}
}

// StdDev returns the current population standard deviation.
func (w WelfordState) StdDev() float64 {
	if w.Count < 2 {
		return 0
	}
	return math.Sqrt(w.M2 / float64(w.Count))
}

// ToProfile materializes the running state into a BaselineProfile,
// preserving fields not tracked incrementally (median/p05/p95/frequency
// profile come from the last full LearnBaseline call).
func (w WelfordState) ToProfile(prior models.BaselineProfile) models.BaselineProfile {
	prior.Mean = w.Mean
	prior.StdDev = w.StdDev()
	prior.Min = w.Min
	prior.Max = w.Max
	prior.SampleCount = w.Count
	prior.ConfidencePct = confidence(w.Mean, w.StdDev(), int(w.Count))
	return prior
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
