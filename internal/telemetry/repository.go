// Package telemetry implements the Telemetry Access Layer (C1): typed
// point query/append/latest/aggregate, grounded on the teacher's
// TimeSeriesStorage/Aggregator (internal/telemetry/engine.go),
// generalized to the typed TelemetryPoint union and millisecond
// timestamps.
package telemetry

import "github.com/savegress/intellimaint/pkg/models"

// AggregateFn enumerates supported bucket aggregation functions.
type AggregateFn string

const (
	AggAvg   AggregateFn = "avg"
	AggMin   AggregateFn = "min"
	AggMax   AggregateFn = "max"
	AggSum   AggregateFn = "sum"
	AggCount AggregateFn = "count"
	AggFirst AggregateFn = "first"
	AggLast  AggregateFn = "last"
)

// Filter narrows a Query call. Narrowing a filter never returns more
// rows than a broader one (monotonicity, spec.md invariant #I3-adjacent).
type Filter struct {
	DeviceID  string
	TagID     string // empty matches all tags for DeviceID
	StartTs   int64  // inclusive
	EndTs     int64  // exclusive; 0 means unbounded
	Limit     int    // 0 means unbounded
	Ascending bool
}

// AggregateBucket is one non-empty bucket of an Aggregate() call.
type AggregateBucket struct {
	BucketStartTs int64
	Value         float64
	Count         int
}

// TagSummary is one row of GetTags(): a distinct (DeviceID, TagID)
// with its point count and last timestamp.
type TagSummary struct {
	DeviceID  string
	TagID     string
	Count     int64
	LastTs    int64
}

// Repository is the contract consumed by every other component for
// typed point storage and retrieval. Implementations must honor:
//   - Append is idempotent under identical (DeviceID, TagID, Ts, Seq)
//     (upsert semantics).
//   - Aggregate groups by floor(ts/bucketMs)*bucketMs; empty buckets
//     are omitted.
//   - Latest is the row with maximum Ts per (DeviceID, TagID).
type Repository interface {
	Append(batch []models.TelemetryPoint) error
	Query(f Filter) ([]models.TelemetryPoint, error)
	QuerySimple(deviceID, tagID string, startTs, endTs int64, limit int) ([]models.TelemetryPoint, error)
	GetLatest(deviceID, tagID string) (models.TelemetryPoint, bool, error)
	GetLatestAll(deviceID string) (map[string]models.TelemetryPoint, error)
	Aggregate(deviceID, tagID string, startTs, endTs, bucketMs int64, fn AggregateFn) ([]AggregateBucket, error)
	GetTags() ([]TagSummary, error)
}
