package telemetry

import (
	"sort"
	"sync"

	"github.com/savegress/intellimaint/pkg/models"
)

// MemStore is an in-memory reference Repository implementation,
// generalized from the teacher's TimeSeriesStorage. Points for a given
// (DeviceID, TagID) are kept sorted by Ts so range queries and the
// ~2000-point feature-extraction cap (C3) can slice cheaply.
type MemStore struct {
	mu     sync.RWMutex
	series map[string]map[string][]models.TelemetryPoint // device -> tag -> points, sorted by Ts
	total  int64
}

// NewMemStore creates an empty in-memory telemetry store.
func NewMemStore() *MemStore {
	return &MemStore{series: make(map[string]map[string][]models.TelemetryPoint)}
}

func seriesKey(p models.TelemetryPoint) (string, string) { return p.DeviceID, p.TagID }

// Append upserts each point into its (DeviceID, TagID) series,
// replacing any existing point with the identical (Ts, Seq) key
// (idempotent append).
func (s *MemStore) Append(batch []models.TelemetryPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range batch {
		dev, tag := seriesKey(p)
		if s.series[dev] == nil {
			s.series[dev] = make(map[string][]models.TelemetryPoint)
		}
		pts := s.series[dev][tag]

		idx := sort.Search(len(pts), func(i int) bool { return pts[i].Ts >= p.Ts })
		replaced := false
		for j := idx; j < len(pts) && pts[j].Ts == p.Ts; j++ {
			if pts[j].Seq == p.Seq {
				pts[j] = p
				replaced = true
				break
			}
		}
		if !replaced {
			pts = append(pts, models.TelemetryPoint{})
			copy(pts[idx+1:], pts[idx:])
			pts[idx] = p
			s.total++
		}
		s.series[dev][tag] = pts
	}
	return nil
}

// Query returns points matching f, narrowed to [StartTs, EndTs) when
// set, sorted ascending or descending per f.Ascending, capped at
// f.Limit when positive.
func (s *MemStore) Query(f Filter) ([]models.TelemetryPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.TelemetryPoint
	devices := []string{f.DeviceID}
	if f.DeviceID == "" {
		devices = devices[:0]
		for d := range s.series {
			devices = append(devices, d)
		}
	}

	for _, dev := range devices {
		tagSeries, ok := s.series[dev]
		if !ok {
			continue
		}
		tags := []string{f.TagID}
		if f.TagID == "" {
			tags = tags[:0]
			for t := range tagSeries {
				tags = append(tags, t)
			}
		}
		for _, tag := range tags {
			for _, p := range tagSeries[tag] {
				if f.StartTs != 0 && p.Ts < f.StartTs {
					continue
				}
				if f.EndTs != 0 && p.Ts >= f.EndTs {
					continue
				}
				out = append(out, p)
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if f.Ascending {
			return out[i].Ts < out[j].Ts
		}
		return out[i].Ts > out[j].Ts
	})

	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// QuerySimple is a convenience wrapper over Query for a single device/tag range.
func (s *MemStore) QuerySimple(deviceID, tagID string, startTs, endTs int64, limit int) ([]models.TelemetryPoint, error) {
	return s.Query(Filter{DeviceID: deviceID, TagID: tagID, StartTs: startTs, EndTs: endTs, Limit: limit, Ascending: true})
}

// GetLatest returns the point with the maximum Ts for (deviceID, tagID).
func (s *MemStore) GetLatest(deviceID, tagID string) (models.TelemetryPoint, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pts := s.series[deviceID][tagID]
	if len(pts) == 0 {
		return models.TelemetryPoint{}, false, nil
	}
	return pts[len(pts)-1], true, nil
}

// GetLatestAll returns the latest point for every tag of a device.
func (s *MemStore) GetLatestAll(deviceID string) (map[string]models.TelemetryPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]models.TelemetryPoint)
	for tag, pts := range s.series[deviceID] {
		if len(pts) > 0 {
			out[tag] = pts[len(pts)-1]
		}
	}
	return out, nil
}

// Aggregate buckets points into floor(ts/bucketMs)*bucketMs groups and
// applies fn. Empty buckets are omitted from the result.
func (s *MemStore) Aggregate(deviceID, tagID string, startTs, endTs, bucketMs int64, fn AggregateFn) ([]AggregateBucket, error) {
	if bucketMs <= 0 {
		bucketMs = 1
	}
	pts, err := s.QuerySimple(deviceID, tagID, startTs, endTs, 0)
	if err != nil {
		return nil, err
	}

	type acc struct {
		sum, min, max   float64
		count           int
		first, last     float64
		firstTs, lastTs int64
	}
	buckets := make(map[int64]*acc)
	var order []int64

	for _, p := range pts {
		v, ok := p.AsFloat64()
		if !ok {
			continue
		}
		bucketStart := (p.Ts / bucketMs) * bucketMs
		a, exists := buckets[bucketStart]
		if !exists {
			a = &acc{min: v, max: v, first: v, firstTs: p.Ts}
			buckets[bucketStart] = a
			order = append(order, bucketStart)
		}
		a.sum += v
		a.count++
		if v < a.min {
			a.min = v
		}
		if v > a.max {
			a.max = v
		}
		if p.Ts < a.firstTs {
			a.first, a.firstTs = v, p.Ts
		}
		if p.Ts >= a.lastTs {
			a.last, a.lastTs = v, p.Ts
		}
	}

	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	out := make([]AggregateBucket, 0, len(order))
	for _, bucketStart := range order {
		a := buckets[bucketStart]
		var val float64
		switch fn {
		case AggMin:
			val = a.min
		case AggMax:
			val = a.max
		case AggSum:
			val = a.sum
		case AggCount:
			val = float64(a.count)
		case AggFirst:
			val = a.first
		case AggLast:
			val = a.last
		default: // AggAvg
			val = a.sum / float64(a.count)
		}
		out = append(out, AggregateBucket{BucketStartTs: bucketStart, Value: val, Count: a.count})
	}
	return out, nil
}

// GetTags returns distinct (DeviceID, TagID) pairs with point counts and last Ts.
func (s *MemStore) GetTags() ([]TagSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []TagSummary
	for dev, tagSeries := range s.series {
		for tag, pts := range tagSeries {
			if len(pts) == 0 {
				continue
			}
			out = append(out, TagSummary{
				DeviceID: dev,
				TagID:    tag,
				Count:    int64(len(pts)),
				LastTs:   pts[len(pts)-1].Ts,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DeviceID != out[j].DeviceID {
			return out[i].DeviceID < out[j].DeviceID
		}
		return out[i].TagID < out[j].TagID
	})
	return out, nil
}

// TotalPoints returns the total number of stored points.
func (s *MemStore) TotalPoints() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total
}
