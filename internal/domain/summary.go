package domain

import "time"

// DailySummary is one user's aggregated metrics for one UTC calendar day.
// The (UserID, SummaryDate) pair is the primary key; recomputation overwrites
// the metrics in place.
type DailySummary struct {
	UserID          string
	SummaryDate     time.Time // midnight UTC, date component only
	TotalSteps      int
	TotalSleepHours float64
	AvgHeartRate    float64
	CalculationTime time.Time
}

// ProcessingStatus is the per-user aggregation lock row. IsProcessing is true
// only while an aggregation run is in flight for the user.
type ProcessingStatus struct {
	UserID            string
	IsProcessing      bool
	LastProcessedDate time.Time
}

// Day truncates an instant to its UTC calendar day.
func Day(ts time.Time) time.Time {
	ts = ts.UTC()
	return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
}
