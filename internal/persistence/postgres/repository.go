// Package postgres provides pgx-backed persistence for raw events, daily
// summaries, and the per-user processing lock.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/healthsync/internal/domain"
	"example.com/healthsync/internal/observability"
)

// Repository implements the storage contracts of both the request path and
// the aggregation worker on top of a shared connection pool.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InsertBatch writes every record of an ingestion batch inside one
// transaction. The (user_id, timestamp) uniqueness constraint absorbs
// duplicates via ON CONFLICT DO NOTHING, so a resent batch is a no-op and the
// transaction only aborts on unexpected storage errors.
func (r *Repository) InsertBatch(ctx context.Context, userID string, records []domain.RawEventInput, ingestionTime time.Time) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	const stmt = `INSERT INTO raw_health_data (user_id, timestamp, record_type, data, created_at)
        VALUES ($1,$2,$3,$4,$5)
        ON CONFLICT (user_id, timestamp) DO NOTHING`

	for _, record := range records {
		if _, err = tx.Exec(ctx, stmt,
			userID,
			record.Timestamp.UTC(),
			domain.PayloadType(record.Data),
			record.Data,
			ingestionTime,
		); err != nil {
			return fmt.Errorf("insert raw event: %w", err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return err
	}
	observability.RecordEventsIngested(len(records))
	return nil
}

// ListEvents loads the user's full unconsumed backlog. There is no time
// window: every remaining raw row is eligible for the next aggregation run.
func (r *Repository) ListEvents(ctx context.Context, userID string) ([]domain.RawEvent, error) {
	const query = `SELECT id, user_id, timestamp, record_type, data, created_at
        FROM raw_health_data WHERE user_id=$1 ORDER BY timestamp`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]domain.RawEvent, 0)
	for rows.Next() {
		var event domain.RawEvent
		if err := rows.Scan(&event.ID, &event.UserID, &event.Timestamp, &event.RecordType, &event.Data, &event.IngestionTime); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// ListSummaries returns the user's summaries ordered newest day first. The
// descending order is part of the external query contract.
func (r *Repository) ListSummaries(ctx context.Context, userID string) ([]domain.DailySummary, error) {
	const query = `SELECT user_id, summary_date, total_steps, total_sleep_hours, avg_heart_rate, calculation_time
        FROM daily_summaries WHERE user_id=$1 ORDER BY summary_date DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := make([]domain.DailySummary, 0)
	for rows.Next() {
		var summary domain.DailySummary
		if err := rows.Scan(&summary.UserID, &summary.SummaryDate, &summary.TotalSteps, &summary.TotalSleepHours, &summary.AvgHeartRate, &summary.CalculationTime); err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, rows.Err()
}

// GetStatus fetches the user's processing-lock row, nil when none exists yet.
func (r *Repository) GetStatus(ctx context.Context, userID string) (*domain.ProcessingStatus, error) {
	const query = `SELECT user_id, is_processing, last_processed_date
        FROM processing_status WHERE user_id=$1`

	var status domain.ProcessingStatus
	err := r.pool.QueryRow(ctx, query, userID).Scan(&status.UserID, &status.IsProcessing, &status.LastProcessedDate)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &status, nil
}

// TryAcquireLock atomically flips the user's processing flag to true,
// creating the row on first contact. It is a compare-and-set: when the flag
// is already true the statement matches no row and the acquisition fails with
// domain.ErrUserBusy instead of silently piling a second run onto the user.
func (r *Repository) TryAcquireLock(ctx context.Context, userID string) error {
	const stmt = `INSERT INTO processing_status (user_id, is_processing, last_processed_date)
        VALUES ($1, TRUE, NOW())
        ON CONFLICT (user_id) DO UPDATE SET is_processing = TRUE
        WHERE processing_status.is_processing = FALSE`

	tag, err := r.pool.Exec(ctx, stmt, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserBusy
	}
	return nil
}

// ReleaseLock clears the processing flag. A non-nil processedAt records the
// completion watermark; failed runs pass nil so last_processed_date keeps its
// previous value.
func (r *Repository) ReleaseLock(ctx context.Context, userID string, processedAt *time.Time) error {
	const stmt = `UPDATE processing_status
        SET is_processing = FALSE,
            last_processed_date = COALESCE($2, last_processed_date)
        WHERE user_id=$1`

	_, err := r.pool.Exec(ctx, stmt, userID, processedAt)
	return err
}

// ApplyAggregation commits the outcome of one aggregation run atomically:
// every summary upsert and the retirement of every contributing raw row
// happen in one transaction, so no fetched row is ever orphaned and no
// summary is visible without its inputs having been consumed.
func (r *Repository) ApplyAggregation(ctx context.Context, userID string, summaries []domain.DailySummary, eventIDs []int64) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	const upsert = `INSERT INTO daily_summaries (user_id, summary_date, total_steps, total_sleep_hours, avg_heart_rate, calculation_time)
        VALUES ($1,$2,$3,$4,$5,$6)
        ON CONFLICT (user_id, summary_date) DO UPDATE SET
            total_steps = EXCLUDED.total_steps,
            total_sleep_hours = EXCLUDED.total_sleep_hours,
            avg_heart_rate = EXCLUDED.avg_heart_rate,
            calculation_time = EXCLUDED.calculation_time`

	for _, summary := range summaries {
		if _, err = tx.Exec(ctx, upsert,
			summary.UserID,
			summary.SummaryDate,
			summary.TotalSteps,
			summary.TotalSleepHours,
			summary.AvgHeartRate,
			summary.CalculationTime,
		); err != nil {
			return fmt.Errorf("upsert summary for %s: %w", summary.SummaryDate.Format("2006-01-02"), err)
		}
	}

	if _, err = tx.Exec(ctx, `DELETE FROM raw_health_data WHERE id = ANY($1)`, eventIDs); err != nil {
		return fmt.Errorf("retire raw events: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return err
	}
	observability.RecordSummariesCalculated(len(summaries), time.Now().UTC())
	return nil
}
