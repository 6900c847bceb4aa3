package domain

import (
	"encoding/json"
	"time"
)

// RecordKind identifies the payload variant carried by a raw event.
type RecordKind string

const (
	RecordKindSteps     RecordKind = "Steps"
	RecordKindHeartRate RecordKind = "HeartRate"
	RecordKindSleep     RecordKind = "Sleep"
	// RecordKindUnknown covers payload types this version does not aggregate.
	// They still count toward their day's group and are retired with it.
	RecordKindUnknown RecordKind = ""
)

// RawEvent is one ingested health observation as stored in raw_health_data.
type RawEvent struct {
	ID            int64
	UserID        string
	Timestamp     time.Time
	RecordType    string
	Data          json.RawMessage
	IngestionTime time.Time
}

// RawEventInput is a single record inside an ingestion batch.
type RawEventInput struct {
	Timestamp time.Time
	Data      json.RawMessage
}

// HealthRecord is the decoded form of a raw event payload. Exactly one of the
// metric fields is meaningful depending on Kind.
type HealthRecord struct {
	Kind            RecordKind
	StepCount       int
	BPM             float64
	DurationMinutes int
}

type rawPayload struct {
	Type            string   `json:"type"`
	Count           *int     `json:"count"`
	BPM             *float64 `json:"bpm"`
	DurationMinutes *int     `json:"durationMinutes"`
}

// DecodeRecord inspects the payload's type tag and produces the tagged
// variant consumed by aggregation. Unrecognized or malformed payloads decode
// to RecordKindUnknown rather than an error so a single odd record cannot
// stall a user's backlog.
func DecodeRecord(data json.RawMessage) HealthRecord {
	var payload rawPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return HealthRecord{Kind: RecordKindUnknown}
	}

	switch RecordKind(payload.Type) {
	case RecordKindSteps:
		if payload.Count == nil {
			return HealthRecord{Kind: RecordKindUnknown}
		}
		return HealthRecord{Kind: RecordKindSteps, StepCount: *payload.Count}
	case RecordKindHeartRate:
		if payload.BPM == nil {
			return HealthRecord{Kind: RecordKindUnknown}
		}
		return HealthRecord{Kind: RecordKindHeartRate, BPM: *payload.BPM}
	case RecordKindSleep:
		if payload.DurationMinutes == nil {
			return HealthRecord{Kind: RecordKindUnknown}
		}
		return HealthRecord{Kind: RecordKindSleep, DurationMinutes: *payload.DurationMinutes}
	default:
		return HealthRecord{Kind: RecordKindUnknown}
	}
}

// PayloadType extracts the raw type tag without fully decoding the payload.
// Used at ingestion time to fill the record_type column.
func PayloadType(data json.RawMessage) string {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return ""
	}
	return probe.Type
}
