package telemetry

import (
	"testing"

	"github.com/savegress/intellimaint/pkg/models"
)

func TestMemStore_AppendAndGetLatest(t *testing.T) {
	s := NewMemStore()

	err := s.Append([]models.TelemetryPoint{
		models.FloatPoint("dev1", "tag1", 1000, 10.0),
		models.FloatPoint("dev1", "tag1", 2000, 20.0),
		models.FloatPoint("dev1", "tag1", 1500, 15.0),
	})
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	latest, ok, err := s.GetLatest("dev1", "tag1")
	if err != nil || !ok {
		t.Fatalf("GetLatest failed: ok=%v err=%v", ok, err)
	}
	if latest.Ts != 2000 {
		t.Errorf("expected latest Ts=2000, got %d", latest.Ts)
	}
	v, ok := latest.AsFloat64()
	if !ok || v != 20.0 {
		t.Errorf("expected latest value 20.0, got %v ok=%v", v, ok)
	}
}

func TestMemStore_AppendIsIdempotent(t *testing.T) {
	s := NewMemStore()

	p := models.FloatPoint("dev1", "tag1", 1000, 10.0)
	if err := s.Append([]models.TelemetryPoint{p}); err != nil {
		t.Fatal(err)
	}
	p.Float64Value = floatPtr(99.0)
	if err := s.Append([]models.TelemetryPoint{p}); err != nil {
		t.Fatal(err)
	}

	pts, err := s.QuerySimple("dev1", "tag1", 0, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(pts) != 1 {
		t.Fatalf("expected a single upserted point, got %d", len(pts))
	}
	if v, _ := pts[0].AsFloat64(); v != 99.0 {
		t.Errorf("expected upsert to replace value, got %v", v)
	}
}

func TestMemStore_QueryRangeAndLimit(t *testing.T) {
	s := NewMemStore()
	for i := int64(0); i < 10; i++ {
		_ = s.Append([]models.TelemetryPoint{models.FloatPoint("dev1", "tag1", i*1000, float64(i))})
	}

	pts, err := s.Query(Filter{DeviceID: "dev1", TagID: "tag1", StartTs: 2000, EndTs: 7000, Ascending: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(pts) != 5 {
		t.Fatalf("expected 5 points in [2000,7000), got %d", len(pts))
	}
	if pts[0].Ts != 2000 || pts[len(pts)-1].Ts != 6000 {
		t.Errorf("unexpected range boundaries: first=%d last=%d", pts[0].Ts, pts[len(pts)-1].Ts)
	}

	limited, err := s.Query(Filter{DeviceID: "dev1", TagID: "tag1", Limit: 3, Ascending: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 3 {
		t.Fatalf("expected limit of 3, got %d", len(limited))
	}
}

func TestMemStore_QueryNarrowingMonotonicity(t *testing.T) {
	s := NewMemStore()
	for i := int64(0); i < 20; i++ {
		_ = s.Append([]models.TelemetryPoint{models.FloatPoint("dev1", "tag1", i*1000, float64(i))})
	}

	broad, _ := s.Query(Filter{DeviceID: "dev1", TagID: "tag1"})
	narrow, _ := s.Query(Filter{DeviceID: "dev1", TagID: "tag1", StartTs: 5000, EndTs: 10000})
	if len(narrow) > len(broad) {
		t.Fatalf("narrowed filter returned more rows (%d) than broad filter (%d)", len(narrow), len(broad))
	}
}

func TestMemStore_Aggregate(t *testing.T) {
	s := NewMemStore()
	vals := []float64{1, 2, 3, 4, 5, 6}
	for i, v := range vals {
		_ = s.Append([]models.TelemetryPoint{models.FloatPoint("dev1", "tag1", int64(i)*1000, v)})
	}

	buckets, err := s.Aggregate("dev1", "tag1", 0, 6000, 3000, AggAvg)
	if err != nil {
		t.Fatal(err)
	}
	if len(buckets) != 2 {
		t.Fatalf("expected 2 buckets, got %d", len(buckets))
	}
	if buckets[0].Value != 2.0 { // avg(1,2,3)
		t.Errorf("expected first bucket avg 2.0, got %v", buckets[0].Value)
	}
	if buckets[1].Value != 5.0 { // avg(4,5,6)
		t.Errorf("expected second bucket avg 5.0, got %v", buckets[1].Value)
	}
}

func TestMemStore_AggregateOmitsEmptyBuckets(t *testing.T) {
	s := NewMemStore()
	_ = s.Append([]models.TelemetryPoint{
		models.FloatPoint("dev1", "tag1", 0, 1.0),
		models.FloatPoint("dev1", "tag1", 10000, 2.0),
	})

	buckets, err := s.Aggregate("dev1", "tag1", 0, 11000, 1000, AggAvg)
	if err != nil {
		t.Fatal(err)
	}
	if len(buckets) != 2 {
		t.Fatalf("expected only non-empty buckets, got %d", len(buckets))
	}
}

func TestMemStore_GetTags(t *testing.T) {
	s := NewMemStore()
	_ = s.Append([]models.TelemetryPoint{
		models.FloatPoint("dev1", "tagA", 1000, 1.0),
		models.FloatPoint("dev1", "tagB", 1000, 2.0),
		models.FloatPoint("dev2", "tagA", 1000, 3.0),
	})

	tags, err := s.GetTags()
	if err != nil {
		t.Fatal(err)
	}
	if len(tags) != 3 {
		t.Fatalf("expected 3 distinct (device,tag) pairs, got %d", len(tags))
	}
}

func floatPtr(v float64) *float64 { return &v }
