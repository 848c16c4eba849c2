package predict

import "math"

// DegradationConfig configures the degradation detector.
type DegradationConfig struct {
	Enabled                  bool
	DetectionWindowDays      float64
	NoiseFilterWindowHours   float64
	ConfirmationCount        int
	DegradationRateThreshold float64 // absolute, applies to both directions
}

// DegradationType classifies the shape of a smoothed health history.
type DegradationType string

const (
	DegradationNone               DegradationType = "None"
	DegradationGradualIncrease    DegradationType = "GradualIncrease"
	DegradationGradualDecrease    DegradationType = "GradualDecrease"
	DegradationIncreasingVariance DegradationType = "IncreasingVariance"
)

// DegradationResult is the C8 degradation-detection output.
type DegradationResult struct {
	Type        DegradationType
	DailyRate   float64
	RateReported bool
}

// Detect classifies a time-ordered series of values (e.g. daily health
// indices) using moving-average smoothing split into at most 5
// segments.
func Detect(cfg DegradationConfig, values []float64, daysSpan float64) DegradationResult {
	if len(values) < 2 {
		return DegradationResult{Type: DegradationNone}
	}

	smoothed := movingAverage(values, smoothingWindow(len(values)))
	segments := splitSegments(smoothed, 5)
	if len(segments) < 2 {
		return DegradationResult{Type: DegradationNone}
	}

	segMeans := make([]float64, len(segments))
	for i, seg := range segments {
		segMeans[i] = mean(seg)
	}

	increasing, decreasing := monotonicRunLengths(segMeans, 0.01)
	confirmations := cfg.ConfirmationCount
	if confirmations <= 0 {
		confirmations = 2
	}

	var degType DegradationType
	switch {
	case increasing >= confirmations:
		degType = DegradationGradualIncrease
	case decreasing >= confirmations:
		degType = DegradationGradualDecrease
	default:
		if varianceIncreasing(segments, confirmations-1) {
			degType = DegradationIncreasingVariance
		} else {
			degType = DegradationNone
		}
	}

	rate := 0.0
	if daysSpan > 0 {
		rate = (values[len(values)-1] - values[0]) / daysSpan
	}
	reported := math.Abs(rate) >= cfg.DegradationRateThreshold

	return DegradationResult{Type: degType, DailyRate: rate, RateReported: reported}
}

func smoothingWindow(n int) int {
	w := n / 10
	if w < 1 {
		w = 1
	}
	return w
}

func movingAverage(values []float64, window int) []float64 {
	if window <= 1 {
		return values
	}
	out := make([]float64, len(values))
	for i := range values {
		start := i - window + 1
		if start < 0 {
			start = 0
		}
		out[i] = mean(values[start : i+1])
	}
	return out
}

func splitSegments(values []float64, maxSegments int) [][]float64 {
	n := len(values)
	segCount := maxSegments
	if n < segCount {
		segCount = n
	}
	if segCount < 1 {
		return nil
	}
	segLen := n / segCount
	if segLen < 1 {
		segLen = 1
	}

	var segments [][]float64
	for i := 0; i < segCount; i++ {
		start := i * segLen
		end := start + segLen
		if i == segCount-1 {
			end = n
		}
		if start >= end {
			continue
		}
		segments = append(segments, values[start:end])
	}
	return segments
}

// monotonicRunLengths returns the length of the longest adjacent run
// increasing (or decreasing) by more than pctThreshold relative to
// the prior segment mean.
func monotonicRunLengths(segMeans []float64, pctThreshold float64) (increasingRun, decreasingRun int) {
	curUp, curDown := 0, 0
	for i := 1; i < len(segMeans); i++ {
		prev := segMeans[i-1]
		cur := segMeans[i]
		if prev == 0 {
			continue
		}
		pctChange := (cur - prev) / math.Abs(prev)
		if pctChange > pctThreshold {
			curUp++
			curDown = 0
		} else if pctChange < -pctThreshold {
			curDown++
			curUp = 0
		} else {
			curUp, curDown = 0, 0
		}
		if curUp > increasingRun {
			increasingRun = curUp
		}
		if curDown > decreasingRun {
			decreasingRun = curDown
		}
	}
	// a run of k adjacent transitions spans k+1 segments.
	if increasingRun > 0 {
		increasingRun++
	}
	if decreasingRun > 0 {
		decreasingRun++
	}
	return
}

// varianceIncreasing reports whether segment stddev grows by more
// than 20% across at least minTransitions adjacent segment pairs.
func varianceIncreasing(segments [][]float64, minTransitions int) bool {
	if len(segments) < 2 {
		return false
	}
	transitions := 0
	for i := 1; i < len(segments); i++ {
		prevSd := stddevOf(segments[i-1])
		curSd := stddevOf(segments[i])
		if prevSd < 1e-9 {
			continue
		}
		if (curSd-prevSd)/prevSd > 0.20 {
			transitions++
		}
	}
	return transitions >= minTransitions && minTransitions > 0
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stddevOf(values []float64) float64 {
	m := mean(values)
	if len(values) == 0 {
		return 0
	}
	sq := 0.0
	for _, v := range values {
		d := v - m
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(values)))
}
