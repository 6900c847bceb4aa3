// Package aggregation folds raw health events into per-day summaries.
package aggregation

import (
	"time"

	"example.com/healthsync/internal/domain"
)

// BuildSummaries partitions the events by UTC calendar day and computes the
// three daily metrics for each group. Events whose payload type is not one of
// the known kinds contribute to no metric but still belong to their day's
// group, so they are retired together with the rest.
//
// Running the fold twice over the same events yields identical summaries
// (modulo CalculationTime), which is what makes re-aggregation safe.
func BuildSummaries(userID string, events []domain.RawEvent, calculationTime time.Time) []domain.DailySummary {
	if len(events) == 0 {
		return nil
	}

	type dayTotals struct {
		steps        int
		sleepMinutes int
		bpmSum       float64
		bpmCount     int
	}

	days := make(map[time.Time]*dayTotals)
	order := make([]time.Time, 0)

	for _, event := range events {
		day := domain.Day(event.Timestamp)
		totals, ok := days[day]
		if !ok {
			totals = &dayTotals{}
			days[day] = totals
			order = append(order, day)
		}

		record := domain.DecodeRecord(event.Data)
		switch record.Kind {
		case domain.RecordKindSteps:
			totals.steps += record.StepCount
		case domain.RecordKindHeartRate:
			totals.bpmSum += record.BPM
			totals.bpmCount++
		case domain.RecordKindSleep:
			totals.sleepMinutes += record.DurationMinutes
		}
	}

	summaries := make([]domain.DailySummary, 0, len(order))
	for _, day := range order {
		totals := days[day]

		avgHeartRate := 0.0
		if totals.bpmCount > 0 {
			avgHeartRate = totals.bpmSum / float64(totals.bpmCount)
		}

		summaries = append(summaries, domain.DailySummary{
			UserID:          userID,
			SummaryDate:     day,
			TotalSteps:      totals.steps,
			TotalSleepHours: float64(totals.sleepMinutes) / 60.0,
			AvgHeartRate:    avgHeartRate,
			CalculationTime: calculationTime,
		})
	}

	return summaries
}
