package aggregation

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/healthsync/internal/domain"
)

func event(id int64, user, ts, payload string) domain.RawEvent {
	parsed, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		panic(err)
	}
	return domain.RawEvent{
		ID:        id,
		UserID:    user,
		Timestamp: parsed,
		Data:      json.RawMessage(payload),
	}
}

func TestBuildSummariesSingleDayMetrics(t *testing.T) {
	now := time.Date(2023, time.November, 24, 8, 0, 0, 0, time.UTC)
	events := []domain.RawEvent{
		event(1, "u1", "2023-11-23T09:00:00Z", `{"type":"Steps","count":5100}`),
		event(2, "u1", "2023-11-23T18:00:00Z", `{"type":"Steps","count":8500}`),
		event(3, "u1", "2023-11-23T12:00:00Z", `{"type":"HeartRate","bpm":72}`),
		event(4, "u1", "2023-11-23T23:00:00Z", `{"type":"Sleep","durationMinutes":450}`),
	}

	summaries := BuildSummaries("u1", events, now)
	require.Len(t, summaries, 1)

	summary := summaries[0]
	require.Equal(t, "u1", summary.UserID)
	require.Equal(t, time.Date(2023, time.November, 23, 0, 0, 0, 0, time.UTC), summary.SummaryDate)
	require.Equal(t, 13600, summary.TotalSteps)
	require.InDelta(t, 72.0, summary.AvgHeartRate, 1e-9)
	require.InDelta(t, 7.5, summary.TotalSleepHours, 1e-9)
	require.Equal(t, now, summary.CalculationTime)
}

func TestBuildSummariesGroupsByUTCDay(t *testing.T) {
	events := []domain.RawEvent{
		// 23:30 UTC and 00:30 UTC the next day land in different groups.
		event(1, "u1", "2023-11-23T23:30:00Z", `{"type":"Steps","count":100}`),
		event(2, "u1", "2023-11-24T00:30:00Z", `{"type":"Steps","count":200}`),
	}

	summaries := BuildSummaries("u1", events, time.Now().UTC())
	require.Len(t, summaries, 2)

	byDate := map[string]domain.DailySummary{}
	for _, s := range summaries {
		byDate[s.SummaryDate.Format("2006-01-02")] = s
	}
	require.Equal(t, 100, byDate["2023-11-23"].TotalSteps)
	require.Equal(t, 200, byDate["2023-11-24"].TotalSteps)
}

func TestBuildSummariesAveragesHeartRate(t *testing.T) {
	events := []domain.RawEvent{
		event(1, "u1", "2023-11-23T09:00:00Z", `{"type":"HeartRate","bpm":60}`),
		event(2, "u1", "2023-11-23T10:00:00Z", `{"type":"HeartRate","bpm":80}`),
		event(3, "u1", "2023-11-23T11:00:00Z", `{"type":"HeartRate","bpm":73}`),
	}

	summaries := BuildSummaries("u1", events, time.Now().UTC())
	require.Len(t, summaries, 1)
	require.InDelta(t, 71.0, summaries[0].AvgHeartRate, 1e-9)
}

func TestBuildSummariesNoHeartRateSamples(t *testing.T) {
	events := []domain.RawEvent{
		event(1, "u1", "2023-11-23T09:00:00Z", `{"type":"Steps","count":5100}`),
	}

	summaries := BuildSummaries("u1", events, time.Now().UTC())
	require.Len(t, summaries, 1)
	require.Zero(t, summaries[0].AvgHeartRate)
	require.Zero(t, summaries[0].TotalSleepHours)
}

func TestBuildSummariesIgnoresUnknownPayloadTypes(t *testing.T) {
	events := []domain.RawEvent{
		event(1, "u1", "2023-11-23T09:00:00Z", `{"type":"Steps","count":500}`),
		event(2, "u1", "2023-11-23T10:00:00Z", `{"type":"BloodOxygen","spo2":98}`),
		event(3, "u1", "2023-11-23T11:00:00Z", `{"not-json`),
	}

	summaries := BuildSummaries("u1", events, time.Now().UTC())
	require.Len(t, summaries, 1, "unknown payloads still belong to their day's group")
	require.Equal(t, 500, summaries[0].TotalSteps)
	require.Zero(t, summaries[0].AvgHeartRate)
}

func TestBuildSummariesIsDeterministic(t *testing.T) {
	now := time.Now().UTC()
	events := []domain.RawEvent{
		event(1, "u1", "2023-11-23T09:00:00Z", `{"type":"Steps","count":5100}`),
		event(2, "u1", "2023-11-23T12:00:00Z", `{"type":"HeartRate","bpm":72}`),
	}

	first := BuildSummaries("u1", events, now)
	second := BuildSummaries("u1", events, now)
	require.Equal(t, first, second)
}

func TestBuildSummariesEmptyInput(t *testing.T) {
	require.Nil(t, BuildSummaries("u1", nil, time.Now().UTC()))
}
