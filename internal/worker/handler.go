package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"example.com/healthsync/internal/aggregation"
	"example.com/healthsync/internal/domain"
	"example.com/healthsync/internal/notify"
)

// Store captures the persistence operations an aggregation run needs.
type Store interface {
	TryAcquireLock(ctx context.Context, userID string) error
	ReleaseLock(ctx context.Context, userID string, processedAt *time.Time) error
	ListEvents(ctx context.Context, userID string) ([]domain.RawEvent, error)
	ApplyAggregation(ctx context.Context, userID string, summaries []domain.DailySummary, eventIDs []int64) error
}

// AggregationHandler executes one aggregation run per notification: acquire
// the user's lock, fold the raw backlog into daily summaries, commit the
// summaries and the retirement of their inputs atomically, release the lock.
type AggregationHandler struct {
	store  Store
	logger *log.Logger
}

// NewAggregationHandler constructs the handler.
func NewAggregationHandler(store Store, logger *log.Logger) *AggregationHandler {
	if logger == nil {
		logger = log.New(log.Writer(), "[aggregation] ", log.LstdFlags)
	}
	return &AggregationHandler{store: store, logger: logger}
}

// Handle runs aggregation for the notified user. The lock acquisition is a
// compare-and-set; a concurrent run for the same user surfaces as
// domain.ErrUserBusy and is retried by the processor. The lock release runs
// on every exit path, detached from the request context so cancellation
// cannot strand the user in "processing".
func (h *AggregationHandler) Handle(ctx context.Context, notification notify.Notification) error {
	userID := notification.UserID

	if err := h.store.TryAcquireLock(ctx, userID); err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}

	start := time.Now()
	var processedAt *time.Time
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := h.store.ReleaseLock(releaseCtx, userID, processedAt); err != nil {
			h.logger.Printf("lock release failed (user=%s): %v", userID, err)
		}
		recordRunDuration(time.Since(start))
	}()

	events, err := h.store.ListEvents(ctx, userID)
	if err != nil {
		return fmt.Errorf("list raw events: %w", err)
	}
	if len(events) == 0 {
		now := time.Now().UTC()
		processedAt = &now
		return nil
	}

	now := time.Now().UTC()
	summaries := aggregation.BuildSummaries(userID, events, now)

	eventIDs := make([]int64, 0, len(events))
	for _, event := range events {
		eventIDs = append(eventIDs, event.ID)
	}

	if err := h.store.ApplyAggregation(ctx, userID, summaries, eventIDs); err != nil {
		return fmt.Errorf("apply aggregation: %w", err)
	}

	h.logger.Printf("aggregated %d events into %d summaries (user=%s)", len(events), len(summaries), userID)
	processedAt = &now
	return nil
}
