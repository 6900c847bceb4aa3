package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeRecordKnownKinds(t *testing.T) {
	steps := DecodeRecord(json.RawMessage(`{"type":"Steps","count":5100}`))
	require.Equal(t, RecordKindSteps, steps.Kind)
	require.Equal(t, 5100, steps.StepCount)

	heartRate := DecodeRecord(json.RawMessage(`{"type":"HeartRate","bpm":72.5}`))
	require.Equal(t, RecordKindHeartRate, heartRate.Kind)
	require.InDelta(t, 72.5, heartRate.BPM, 1e-9)

	sleep := DecodeRecord(json.RawMessage(`{"type":"Sleep","durationMinutes":450}`))
	require.Equal(t, RecordKindSleep, sleep.Kind)
	require.Equal(t, 450, sleep.DurationMinutes)
}

func TestDecodeRecordFallsBackToUnknown(t *testing.T) {
	cases := map[string]string{
		"unrecognized type": `{"type":"BloodOxygen","spo2":98}`,
		"missing tag":       `{"count":5100}`,
		"missing field":     `{"type":"Steps"}`,
		"malformed":         `{"type":`,
	}

	for name, payload := range cases {
		record := DecodeRecord(json.RawMessage(payload))
		require.Equal(t, RecordKindUnknown, record.Kind, name)
	}
}

func TestPayloadType(t *testing.T) {
	require.Equal(t, "Steps", PayloadType(json.RawMessage(`{"type":"Steps","count":1}`)))
	require.Equal(t, "", PayloadType(json.RawMessage(`not json`)))
}
