package worker

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/healthsync/internal/notify"
)

// DLQWriter parks notifications that exhausted their processing attempts so
// an operator can inspect and replay them via the process endpoint.
type DLQWriter struct {
	pool *pgxpool.Pool
}

// NewDLQWriter initialises a writer backed by the provided connection pool.
func NewDLQWriter(pool *pgxpool.Pool) *DLQWriter {
	return &DLQWriter{pool: pool}
}

// Write records the failed notification alongside the failure reason.
func (w *DLQWriter) Write(ctx context.Context, notification notify.Notification, notificationID, reason string) error {
	_, err := w.pool.Exec(ctx,
		`INSERT INTO aggregation_dlq (notification_id, user_id, record_count, notified_at, reason)
         VALUES ($1,$2,$3,$4,$5)`,
		nullIfEmpty(notificationID),
		notification.UserID,
		notification.RecordCount,
		notification.Timestamp,
		reason,
	)
	return err
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}
