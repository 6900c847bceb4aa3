// Package domain defines the business logic for the health analytics service.
package domain

import (
	"context"
	"errors"
	"log"
	"time"
)

var (
	// ErrNoSummaries is returned when a user has no aggregated data.
	ErrNoSummaries = errors.New("no summaries found for user")
	// ErrProcessingInProgress indicates the user's summaries are mid-recomputation.
	ErrProcessingInProgress = errors.New("aggregation in progress for user")
	// ErrUserBusy indicates the per-user processing lock is already held.
	ErrUserBusy = errors.New("user is locked by another aggregation run")
)

// Repository captures the persistence operations the request path needs.
type Repository interface {
	// InsertBatch writes all records in one transaction, silently skipping
	// rows that collide on (user_id, timestamp).
	InsertBatch(ctx context.Context, userID string, records []RawEventInput, ingestionTime time.Time) error
	ListSummaries(ctx context.Context, userID string) ([]DailySummary, error)
	GetStatus(ctx context.Context, userID string) (*ProcessingStatus, error)
}

// NotificationPublisher emits the ingestion-complete signal consumed by the
// aggregation worker.
type NotificationPublisher interface {
	Publish(ctx context.Context, userID string, recordCount int) error
}

// Service orchestrates ingestion and summary queries.
type Service struct {
	repo      Repository
	publisher NotificationPublisher
	logger    *log.Logger
}

// NewService constructs a Service.
func NewService(repo Repository, publisher NotificationPublisher, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(log.Writer(), "[domain] ", log.LstdFlags)
	}
	return &Service{repo: repo, publisher: publisher, logger: logger}
}

// IngestBatch persists a validated batch transactionally and then publishes a
// processing notification. The returned count is the number of submitted
// records, not the number actually new: duplicate (user, timestamp) pairs are
// absorbed by the uniqueness constraint so client retries are safe.
//
// Publish failure is logged, not returned. The batch is already durable at
// that point; a future notification for the same user picks the rows up.
func (s *Service) IngestBatch(ctx context.Context, userID string, records []RawEventInput) (int, error) {
	now := time.Now().UTC()
	if err := s.repo.InsertBatch(ctx, userID, records, now); err != nil {
		return 0, err
	}

	if err := s.publisher.Publish(ctx, userID, len(records)); err != nil {
		s.logger.Printf("notification publish failed (user=%s, records=%d): %v", userID, len(records), err)
	}

	return len(records), nil
}

// QuerySummaries returns a user's daily summaries ordered newest first. While
// the user's aggregation lock is held it returns ErrProcessingInProgress so
// callers never observe a half-updated summary set.
func (s *Service) QuerySummaries(ctx context.Context, userID string) ([]DailySummary, error) {
	status, err := s.repo.GetStatus(ctx, userID)
	if err != nil {
		return nil, err
	}
	if status != nil && status.IsProcessing {
		return nil, ErrProcessingInProgress
	}

	summaries, err := s.repo.ListSummaries(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(summaries) == 0 {
		return nil, ErrNoSummaries
	}
	return summaries, nil
}

// TriggerProcessing publishes a synthetic notification for the user so an
// operator can re-run aggregation after a lost publish. Unlike the ingestion
// path the publish failure is surfaced: the notification is the whole action.
func (s *Service) TriggerProcessing(ctx context.Context, userID string) error {
	return s.publisher.Publish(ctx, userID, 0)
}
