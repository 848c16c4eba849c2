// Package models defines the shared data model for the IntelliMaint
// assessment & diagnostics engine: telemetry points, device/tag
// identities, baselines, health scores, alarms, correlations, work
// cycles and motor diagnostics.
package models

import "strings"

// Importance is the ordinal weight of a tag used in weighted averaging.
type Importance int

const (
	ImportanceTrivial Importance = iota + 1
	ImportanceMinor
	ImportanceMajor
	ImportanceCritical
)

// Rank returns the numeric weight used by the health score calculator
// (Critical=4, Major=3, Minor=2, Trivial=1).
func (i Importance) Rank() float64 {
	switch i {
	case ImportanceCritical:
		return 4
	case ImportanceMajor:
		return 3
	case ImportanceMinor:
		return 2
	default:
		return 1
	}
}

func (i Importance) String() string {
	switch i {
	case ImportanceCritical:
		return "Critical"
	case ImportanceMajor:
		return "Major"
	case ImportanceMinor:
		return "Minor"
	default:
		return "Trivial"
	}
}

// ParseImportance parses a case-insensitive importance name, defaulting
// to Minor on no match.
func ParseImportance(s string) Importance {
	switch strings.ToLower(s) {
	case "critical":
		return ImportanceCritical
	case "major":
		return ImportanceMajor
	case "minor":
		return ImportanceMinor
	case "trivial":
		return ImportanceTrivial
	default:
		return ImportanceMinor
	}
}

// ValueType discriminates the typed slot populated on a TelemetryPoint.
type ValueType int

const (
	ValueTypeBool ValueType = iota
	ValueTypeInt8
	ValueTypeInt16
	ValueTypeInt32
	ValueTypeInt64
	ValueTypeUInt8
	ValueTypeUInt16
	ValueTypeUInt32
	ValueTypeUInt64
	ValueTypeFloat32
	ValueTypeFloat64
	ValueTypeString
	ValueTypeDateTime
	ValueTypeByteArray
)

// GoodQuality is the OPC-style "Good" quality code.
const GoodQuality = 192

// TelemetryPoint is a single typed telemetry sample. Primary key is
// (DeviceID, TagID, Ts, Seq). Exactly one typed slot is populated for
// the declared ValueType; numeric/bool types coerce to float64 via
// AsFloat64, String/ByteArray do not.
type TelemetryPoint struct {
	DeviceID  string    `json:"deviceId" yaml:"deviceId"`
	TagID     string    `json:"tagId" yaml:"tagId"`
	Ts        int64     `json:"ts" yaml:"ts"` // unix milliseconds
	Seq       int64     `json:"seq" yaml:"seq"`
	ValueType ValueType `json:"valueType" yaml:"valueType"`
	Quality   int       `json:"quality" yaml:"quality"`
	Unit      string    `json:"unit,omitempty" yaml:"unit,omitempty"`
	Protocol  string    `json:"protocol,omitempty" yaml:"protocol,omitempty"`

	BoolValue      *bool    `json:"boolValue,omitempty" yaml:"boolValue,omitempty"`
	Int64Value     *int64   `json:"int64Value,omitempty" yaml:"int64Value,omitempty"`
	UInt64Value    *uint64  `json:"uint64Value,omitempty" yaml:"uint64Value,omitempty"`
	Float64Value   *float64 `json:"float64Value,omitempty" yaml:"float64Value,omitempty"`
	StringValue    *string  `json:"stringValue,omitempty" yaml:"stringValue,omitempty"`
	ByteArrayValue []byte   `json:"byteArrayValue,omitempty" yaml:"byteArrayValue,omitempty"`
}

// AsFloat64 coerces the populated numeric/bool slot to a float64. It
// returns ok=false for String and ByteArray value types, where
// coercion is undefined.
func (p *TelemetryPoint) AsFloat64() (float64, bool) {
	switch p.ValueType {
	case ValueTypeBool:
		if p.BoolValue == nil {
			return 0, false
		}
		if *p.BoolValue {
			return 1, true
		}
		return 0, true
	case ValueTypeInt8, ValueTypeInt16, ValueTypeInt32, ValueTypeInt64:
		if p.Int64Value == nil {
			return 0, false
		}
		return float64(*p.Int64Value), true
	case ValueTypeUInt8, ValueTypeUInt16, ValueTypeUInt32, ValueTypeUInt64:
		if p.UInt64Value == nil {
			return 0, false
		}
		return float64(*p.UInt64Value), true
	case ValueTypeFloat32, ValueTypeFloat64:
		if p.Float64Value == nil {
			return 0, false
		}
		return *p.Float64Value, true
	default:
		return 0, false
	}
}

// FloatPoint builds a TelemetryPoint carrying a float64 value, the
// most common construction path used by feature extraction, baselines
// and tests.
func FloatPoint(deviceID, tagID string, ts int64, value float64) TelemetryPoint {
	v := value
	return TelemetryPoint{
		DeviceID:     deviceID,
		TagID:        tagID,
		Ts:           ts,
		ValueType:    ValueTypeFloat64,
		Quality:      GoodQuality,
		Float64Value: &v,
	}
}

// Device identifies a physical or virtual device.
type Device struct {
	DeviceID   string `json:"deviceId" yaml:"deviceId"`
	Name       string `json:"name,omitempty" yaml:"name,omitempty"`
	Protocol   string `json:"protocol" yaml:"protocol"`
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	Location   string `json:"location,omitempty" yaml:"location,omitempty"`
	LastSeenMs int64  `json:"lastSeenMs,omitempty" yaml:"lastSeenMs,omitempty"`
}

// Tag identifies a telemetry channel belonging to a Device.
type Tag struct {
	TagID          string `json:"tagId" yaml:"tagId"`
	DeviceID       string `json:"deviceId" yaml:"deviceId"`
	DataType       string `json:"dataType" yaml:"dataType"`
	Enabled        bool   `json:"enabled" yaml:"enabled"`
	Unit           string `json:"unit,omitempty" yaml:"unit,omitempty"`
	Address        string `json:"address,omitempty" yaml:"address,omitempty"`
	ScanIntervalMs int64  `json:"scanIntervalMs,omitempty" yaml:"scanIntervalMs,omitempty"`
	TagGroup       string `json:"tagGroup,omitempty" yaml:"tagGroup,omitempty"`
}

// TagBaseline is the learned statistical fingerprint for a single tag.
type TagBaseline struct {
	TagID        string  `json:"tagId" yaml:"tagId"`
	NormalMean   float64 `json:"normalMean" yaml:"normalMean"`
	NormalStdDev float64 `json:"normalStdDev" yaml:"normalStdDev"`
	NormalMin    float64 `json:"normalMin" yaml:"normalMin"`
	NormalMax    float64 `json:"normalMax" yaml:"normalMax"`
	NormalCV     float64 `json:"normalCV" yaml:"normalCV"`
}

// DeviceBaseline owns the set of per-tag baselines for a device.
type DeviceBaseline struct {
	DeviceID      string                 `json:"deviceId" yaml:"deviceId"`
	CreatedUtcMs  int64                  `json:"createdUtcMs" yaml:"createdUtcMs"`
	UpdatedUtcMs  int64                  `json:"updatedUtcMs" yaml:"updatedUtcMs"`
	SampleCount   int64                  `json:"sampleCount" yaml:"sampleCount"`
	LearningHours float64                `json:"learningHours" yaml:"learningHours"`
	TagBaselines  map[string]TagBaseline `json:"tagBaselines" yaml:"tagBaselines"`
}

// TrendDirection classifies the sign of a least-squares slope.
type TrendDirection int

const (
	TrendDown TrendDirection = -1
	TrendFlat TrendDirection = 0
	TrendUp   TrendDirection = 1
)

// TagFeatures carries per-tag window statistics computed by the
// feature extractor.
type TagFeatures struct {
	Count                  int            `json:"count"`
	Mean                   float64        `json:"mean"`
	StdDev                 float64        `json:"stdDev"`
	Min                    float64        `json:"min"`
	Max                    float64        `json:"max"`
	Latest                 float64        `json:"latest"`
	TrendSlope             float64        `json:"trendSlope"`
	TrendDirection         TrendDirection `json:"trendDirection"`
	CoefficientOfVariation float64        `json:"coefficientOfVariation"`
	Range                  float64        `json:"range"`
}

// DeviceFeatures is the ephemeral per-assessment feature window for a
// device.
type DeviceFeatures struct {
	DeviceID      string                 `json:"deviceId"`
	Timestamp     int64                  `json:"timestamp"`
	WindowMinutes int                    `json:"windowMinutes"`
	SampleCount   int                    `json:"sampleCount"`
	TagFeatures   map[string]TagFeatures `json:"tagFeatures"`
}

// HealthLevel is the banded classification of a HealthScore.Index.
type HealthLevel int

const (
	HealthHealthy HealthLevel = iota
	HealthAttention
	HealthWarning
	HealthCritical
)

func (l HealthLevel) String() string {
	switch l {
	case HealthHealthy:
		return "Healthy"
	case HealthAttention:
		return "Attention"
	case HealthWarning:
		return "Warning"
	default:
		return "Critical"
	}
}

// ProblemTag names a tag contributing to a degraded health score.
type ProblemTag struct {
	TagID      string     `json:"tagId"`
	Importance Importance `json:"importance"`
	ZScore     float64    `json:"zScore"`
	Reason     string     `json:"reason"`
}

// HealthScore is the derived, immutable composite health assessment
// for a device at a point in time.
type HealthScore struct {
	DeviceID          string       `json:"deviceId"`
	Timestamp         int64        `json:"timestamp"`
	Index             float64      `json:"index"`
	Level             HealthLevel  `json:"level"`
	DeviationScore    float64      `json:"deviationScore"`
	TrendScore        float64      `json:"trendScore"`
	StabilityScore    float64      `json:"stabilityScore"`
	AlarmScore        float64      `json:"alarmScore"`
	HasBaseline       bool         `json:"hasBaseline"`
	ProblemTags       []ProblemTag `json:"problemTags"`
	DiagnosticMessage string       `json:"diagnosticMessage,omitempty"`
}

// ConditionType enumerates alarm rule comparison operators.
type ConditionType int

const (
	CondGT ConditionType = iota
	CondGTE
	CondLT
	CondLTE
	CondEQ
	CondNEQ
	CondBetween
	CondOutside
)

// AlarmRule describes a threshold/hysteresis/dwell condition evaluated
// against a (wildcard-addressable) tag.
type AlarmRule struct {
	RuleID        string        `json:"ruleId" yaml:"ruleId"`
	TagPattern    string        `json:"tagPattern" yaml:"tagPattern"`
	ConditionType ConditionType `json:"conditionType" yaml:"conditionType"`
	Threshold     float64       `json:"threshold" yaml:"threshold"`
	Upper         float64       `json:"upper" yaml:"upper"`
	Lower         float64       `json:"lower" yaml:"lower"`
	DwellMs       int64         `json:"dwellMs" yaml:"dwellMs"`
	HysteresisPct float64       `json:"hysteresisPct" yaml:"hysteresisPct"`
	Severity      int           `json:"severity" yaml:"severity"`
	Enabled       bool          `json:"enabled" yaml:"enabled"`
}

// AlarmStatus is the lifecycle state of an AlarmRecord/AlarmGroup.
type AlarmStatus int

const (
	AlarmOpen AlarmStatus = iota
	AlarmAcked
	AlarmClosed
)

// AlarmRecord is a single fired alarm instance.
type AlarmRecord struct {
	AlarmID      string      `json:"alarmId"`
	DeviceID     string      `json:"deviceId"`
	TagID        string      `json:"tagId,omitempty"`
	RuleID       string      `json:"ruleId,omitempty"`
	Ts           int64       `json:"ts"`
	Severity     int         `json:"severity"`
	Code         string      `json:"code"`
	Message      string      `json:"message"`
	Status       AlarmStatus `json:"status"`
	AckedBy      string      `json:"ackedBy,omitempty"`
	AckedUtcMs   int64       `json:"ackedUtcMs,omitempty"`
	AckNote      string      `json:"ackNote,omitempty"`
	CreatedUtcMs int64       `json:"createdUtcMs"`
	UpdatedUtcMs int64       `json:"updatedUtcMs"`
}

// AlarmGroup aggregates the open/closed children alarms for one
// (DeviceID, RuleID) pair.
type AlarmGroup struct {
	GroupID            string      `json:"groupId"`
	DeviceID           string      `json:"deviceId"`
	RuleID             string      `json:"ruleId"`
	FirstOccurredUtcMs int64       `json:"firstOccurredUtcMs"`
	LastOccurredUtcMs  int64       `json:"lastOccurredUtcMs"`
	AlarmCount         int         `json:"alarmCount"`
	Severity           int         `json:"severity"`
	Message            string      `json:"message"`
	AggregateStatus    AlarmStatus `json:"aggregateStatus"`
	ChildAlarmIDs      []string    `json:"childAlarmIds"`
}

// CorrelationType enumerates correlation-rule evaluation modes.
type CorrelationType int

const (
	CorrSameDirection CorrelationType = iota
	CorrOppositeDirection
	CorrThresholdCombination
)

// CorrelationRule describes a pairwise tag correlation check.
type CorrelationRule struct {
	ID              string          `json:"id" yaml:"id"`
	DevicePattern   string          `json:"devicePattern" yaml:"devicePattern"`
	Tag1Pattern     string          `json:"tag1Pattern" yaml:"tag1Pattern"`
	Tag2Pattern     string          `json:"tag2Pattern" yaml:"tag2Pattern"`
	Type            CorrelationType `json:"type" yaml:"type"`
	Threshold       float64         `json:"threshold" yaml:"threshold"`
	PenaltyScore    float64         `json:"penaltyScore" yaml:"penaltyScore"`
	RiskDescription string          `json:"riskDescription" yaml:"riskDescription"`
	Enabled         bool            `json:"enabled" yaml:"enabled"`
}

// CorrelationAnomaly is an emitted correlation-rule violation.
type CorrelationAnomaly struct {
	RuleID          string  `json:"ruleId"`
	RuleName        string  `json:"ruleName"`
	Tag1            string  `json:"tag1"`
	Tag2            string  `json:"tag2"`
	Correlation     float64 `json:"correlation"`
	RiskDescription string  `json:"riskDescription"`
	PenaltyScore    float64 `json:"penaltyScore"`
}

// WorkCycleAnomalyType names the primary (highest-contributing)
// anomaly category for a WorkCycle.
type WorkCycleAnomalyType string

const (
	CycleAnomalyNone              WorkCycleAnomalyType = ""
	CycleAnomalyTimeout           WorkCycleAnomalyType = "CycleTimeout"
	CycleAnomalyTooShort          WorkCycleAnomalyType = "CycleTooShort"
	CycleAnomalyOverCurrent       WorkCycleAnomalyType = "OverCurrent"
	CycleAnomalyMotorImbalance    WorkCycleAnomalyType = "MotorImbalance"
	CycleAnomalyBaselineDeviation WorkCycleAnomalyType = "BaselineDeviation"
	CycleAnomalyAngleStall        WorkCycleAnomalyType = "AngleStall"
)

// WorkCycle is one detected mechanical motion interval with derived
// features and anomaly scoring.
type WorkCycle struct {
	DeviceID                 string               `json:"deviceId"`
	SegmentID                string               `json:"segmentId,omitempty"`
	StartTimeUtcMs           int64                `json:"startTimeUtcMs"`
	EndTimeUtcMs             int64                `json:"endTimeUtcMs"`
	DurationSeconds          float64              `json:"durationSeconds"`
	MaxAngle                 float64              `json:"maxAngle"`
	Motor1PeakCurrent        float64              `json:"motor1PeakCurrent"`
	Motor1AvgCurrent         float64              `json:"motor1AvgCurrent"`
	Motor1EnergyCurrent      float64              `json:"motor1EnergyCurrent"`
	Motor2PeakCurrent        float64              `json:"motor2PeakCurrent"`
	Motor2AvgCurrent         float64              `json:"motor2AvgCurrent"`
	Motor2EnergyCurrent      float64              `json:"motor2EnergyCurrent"`
	MotorBalanceRatio        float64              `json:"motorBalanceRatio"`
	BaselineDeviationPercent float64              `json:"baselineDeviationPercent"`
	AnomalyScore             float64              `json:"anomalyScore"`
	IsAnomaly                bool                 `json:"isAnomaly"`
	AnomalyType              WorkCycleAnomalyType `json:"anomalyType,omitempty"`
}

// MotorParameter enumerates the physical quantities a motor mapping
// may supply.
type MotorParameter string

const (
	ParamCurrentPhaseA MotorParameter = "CurrentPhaseA"
	ParamCurrentPhaseB MotorParameter = "CurrentPhaseB"
	ParamCurrentPhaseC MotorParameter = "CurrentPhaseC"
	ParamCurrentRMS    MotorParameter = "CurrentRMS"
	ParamVoltageA      MotorParameter = "VoltageA"
	ParamVoltageB      MotorParameter = "VoltageB"
	ParamVoltageC      MotorParameter = "VoltageC"
	ParamVoltageRMS    MotorParameter = "VoltageRMS"
	ParamPower         MotorParameter = "Power"
	ParamPF            MotorParameter = "PF"
	ParamFreq          MotorParameter = "Freq"
	ParamTorque        MotorParameter = "Torque"
	ParamSpeed         MotorParameter = "Speed"
	ParamTemp          MotorParameter = "Temp"
	ParamVibration     MotorParameter = "Vibration"
)

// MotorModel captures rated/geometric values shared by instances of
// the same motor type, used for bearing fault frequency calculation.
type MotorModel struct {
	ModelID         string  `json:"modelId" yaml:"modelId"`
	Name            string  `json:"name" yaml:"name"`
	RatedCurrent    float64 `json:"ratedCurrent" yaml:"ratedCurrent"`
	RatedSpeed      float64 `json:"ratedSpeed" yaml:"ratedSpeed"` // rpm
	RatedPower      float64 `json:"ratedPower" yaml:"ratedPower"`
	BearingCount    int     `json:"bearingCount" yaml:"bearingCount"`     // n, rolling elements
	BallDiameterMM  float64 `json:"ballDiameterMm" yaml:"ballDiameterMm"`   // bd
	PitchDiameterMM float64 `json:"pitchDiameterMm" yaml:"pitchDiameterMm"` // pd
	ContactAngleDeg float64 `json:"contactAngleDeg" yaml:"contactAngleDeg"` // theta
}

// MotorInstance binds a DeviceID to a MotorModel.
type MotorInstance struct {
	InstanceID string `json:"instanceId" yaml:"instanceId"`
	DeviceID   string `json:"deviceId" yaml:"deviceId"`
	ModelID    string `json:"modelId" yaml:"modelId"`
	Name       string `json:"name,omitempty" yaml:"name,omitempty"`
}

// MotorParameterMapping declares which TagID supplies which
// MotorParameter, with an affine scaling (factor*x + offset).
type MotorParameterMapping struct {
	InstanceID string         `json:"instanceId" yaml:"instanceId"`
	Parameter  MotorParameter `json:"parameter" yaml:"parameter"`
	TagID      string         `json:"tagId" yaml:"tagId"`
	Factor     float64        `json:"factor" yaml:"factor"`
	Offset     float64        `json:"offset" yaml:"offset"`
}

// OperationMode is a named operating regime (e.g. idle, loaded,
// ramp-up) used to key per-mode baselines.
type OperationMode struct {
	ModeID string `json:"modeId" yaml:"modeId"`
	Name   string `json:"name" yaml:"name"`
}

// FrequencyProfile stores a learned normal spectral fingerprint for a
// current/vibration parameter.
type FrequencyProfile struct {
	SampleRateHz      float64            `json:"sampleRateHz" yaml:"sampleRateHz"`
	FundamentalHz     float64            `json:"fundamentalHz" yaml:"fundamentalHz"`
	FundamentalAmp    float64            `json:"fundamentalAmp" yaml:"fundamentalAmp"`
	Harmonic2Amp      float64            `json:"harmonic2Amp" yaml:"harmonic2Amp"`
	Harmonic3Amp      float64            `json:"harmonic3Amp" yaml:"harmonic3Amp"`
	BandEnergies      [3]float64         `json:"bandEnergies" yaml:"bandEnergies"` // 0-100, 100-1000, 1000-fs/2
	NoiseFloor        float64            `json:"noiseFloor" yaml:"noiseFloor"`
	BearingAmplitudes map[string]float64 `json:"bearingAmplitudes" yaml:"bearingAmplitudes"` // BPFO,BPFI,BSF,FTF
}

// BaselineProfile is the per-(mode, parameter) learned statistical
// fingerprint used by the motor fault detector.
type BaselineProfile struct {
	InstanceID       string            `json:"instanceId" yaml:"instanceId"`
	ModeID           string            `json:"modeId" yaml:"modeId"`
	Parameter        MotorParameter    `json:"parameter" yaml:"parameter"`
	Mean             float64           `json:"mean" yaml:"mean"`
	StdDev           float64           `json:"stdDev" yaml:"stdDev"`
	Min              float64           `json:"min" yaml:"min"`
	Max              float64           `json:"max" yaml:"max"`
	Median           float64           `json:"median" yaml:"median"`
	P05              float64           `json:"p05" yaml:"p05"`
	P95              float64           `json:"p95" yaml:"p95"`
	SampleCount      int64             `json:"sampleCount" yaml:"sampleCount"`
	ConfidencePct    float64           `json:"confidencePct" yaml:"confidencePct"`
	FrequencyProfile *FrequencyProfile `json:"frequencyProfile,omitempty" yaml:"frequencyProfile,omitempty"`
}

// FaultSeverity classifies the magnitude of a motor fault finding.
type FaultSeverity int

const (
	FaultMinor FaultSeverity = iota
	FaultModerate
	FaultSevere
	FaultCritical
)

func (s FaultSeverity) String() string {
	switch s {
	case FaultCritical:
		return "Critical"
	case FaultSevere:
		return "Severe"
	case FaultModerate:
		return "Moderate"
	default:
		return "Minor"
	}
}

// MotorFault is a single detected fault finding.
type MotorFault struct {
	Type        string         `json:"type"`
	Parameter   MotorParameter `json:"parameter,omitempty"`
	Severity    FaultSeverity  `json:"severity"`
	ZScore      float64        `json:"zScore,omitempty"`
	Confidence  float64        `json:"confidence"`
	Description string         `json:"description"`
}

// DiagnosisResult is the emitted per-instance motor fault report.
type DiagnosisResult struct {
	InstanceID      string       `json:"instanceId"`
	DeviceID        string       `json:"deviceId"`
	Timestamp       int64        `json:"timestamp"`
	ModeID          string       `json:"modeId"`
	HealthScore     float64      `json:"healthScore"`
	Faults          []MotorFault `json:"faults"`
	Summary         []MotorFault `json:"summary"` // top 3 by severity
	Recommendations []string     `json:"recommendations"`
}

// BaselineBlob is a versioned, opaque persisted model (polynomial
// coefficients, frequency profiles, motor-balance models). Readers
// must tolerate additional unknown fields.
type BaselineBlob struct {
	Version      int               `json:"version" yaml:"version"`
	Kind         string            `json:"kind" yaml:"kind"`
	Coefficients []float64         `json:"coefficients,omitempty" yaml:"coefficients,omitempty"`
	RSquared     float64           `json:"rSquared,omitempty" yaml:"rSquared,omitempty"`
	SampleCount  int64             `json:"sampleCount" yaml:"sampleCount"`
	Extra        map[string]string `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// HealthSnapshot is an append-only history entry for RUL prediction.
type HealthSnapshot struct {
	DeviceID  string  `json:"deviceId"`
	Timestamp int64   `json:"timestamp"`
	Index     float64 `json:"index"`
}
