//go:build integration

package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"example.com/healthsync/internal/domain"
	"example.com/healthsync/internal/migrations"
)

func setupRepository(t *testing.T) *Repository {
	t.Helper()
	ctx := context.Background()

	pg, err := postgrescontainer.RunContainer(ctx,
		postgrescontainer.WithDatabase("health_tracker"),
		postgrescontainer.WithUsername("healthsync"),
		postgrescontainer.WithPassword("healthsync"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, waitForDatabase(ctx, connStr))

	db, err := sql.Open("pgx", connStr)
	require.NoError(t, err)
	require.NoError(t, migrations.Run(db, true, nil))
	require.NoError(t, db.Close())

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	return NewRepository(pool)
}

func waitForDatabase(ctx context.Context, connStr string) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		pool, err := pgxpool.New(ctx, connStr)
		if err == nil {
			err = pool.Ping(ctx)
			pool.Close()
			if err == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(time.Second)
	}
}

func TestInsertBatchIsIdempotent(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()
	userID := uuid.NewString()

	batch := []domain.RawEventInput{
		{
			Timestamp: time.Date(2023, 11, 23, 9, 0, 0, 0, time.UTC),
			Data:      json.RawMessage(`{"type":"Steps","count":5100}`),
		},
	}

	require.NoError(t, repo.InsertBatch(ctx, userID, batch, time.Now().UTC()))
	require.NoError(t, repo.InsertBatch(ctx, userID, batch, time.Now().UTC()))

	events, err := repo.ListEvents(ctx, userID)
	require.NoError(t, err)
	require.Len(t, events, 1, "a resent batch must not create duplicate rows")
	require.Equal(t, "Steps", events[0].RecordType)
}

func TestApplyAggregationIsAtomicAndIdempotent(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()
	userID := uuid.NewString()

	base := time.Date(2023, 11, 23, 9, 0, 0, 0, time.UTC)
	batch := []domain.RawEventInput{
		{Timestamp: base, Data: json.RawMessage(`{"type":"Steps","count":5100}`)},
		{Timestamp: base.Add(time.Hour), Data: json.RawMessage(`{"type":"Steps","count":8500}`)},
		{Timestamp: base.Add(2 * time.Hour), Data: json.RawMessage(`{"type":"HeartRate","bpm":72}`)},
		{Timestamp: base.Add(3 * time.Hour), Data: json.RawMessage(`{"type":"Sleep","durationMinutes":450}`)},
	}
	require.NoError(t, repo.InsertBatch(ctx, userID, batch, time.Now().UTC()))

	events, err := repo.ListEvents(ctx, userID)
	require.NoError(t, err)
	require.Len(t, events, 4)

	summary := domain.DailySummary{
		UserID:          userID,
		SummaryDate:     domain.Day(base),
		TotalSteps:      13600,
		TotalSleepHours: 7.5,
		AvgHeartRate:    72,
		CalculationTime: time.Now().UTC(),
	}
	ids := make([]int64, 0, len(events))
	for _, e := range events {
		ids = append(ids, e.ID)
	}

	require.NoError(t, repo.ApplyAggregation(ctx, userID, []domain.DailySummary{summary}, ids))

	remaining, err := repo.ListEvents(ctx, userID)
	require.NoError(t, err)
	require.Empty(t, remaining, "retired rows and the summary commit together")

	summaries, err := repo.ListSummaries(ctx, userID)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	require.Equal(t, 13600, summaries[0].TotalSteps)
	require.InDelta(t, 7.5, summaries[0].TotalSleepHours, 1e-9)

	// Re-running the upsert overwrites in place, never duplicates the key.
	summary.TotalSteps = 14000
	summary.CalculationTime = time.Now().UTC()
	require.NoError(t, repo.ApplyAggregation(ctx, userID, []domain.DailySummary{summary}, nil))

	summaries, err = repo.ListSummaries(ctx, userID)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	require.Equal(t, 14000, summaries[0].TotalSteps)
}

func TestListSummariesOrderedDescending(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()
	userID := uuid.NewString()

	now := time.Now().UTC()
	days := []time.Time{
		time.Date(2023, 11, 21, 0, 0, 0, 0, time.UTC),
		time.Date(2023, 11, 23, 0, 0, 0, 0, time.UTC),
		time.Date(2023, 11, 22, 0, 0, 0, 0, time.UTC),
	}
	for _, day := range days {
		require.NoError(t, repo.ApplyAggregation(ctx, userID, []domain.DailySummary{{
			UserID:          userID,
			SummaryDate:     day,
			CalculationTime: now,
		}}, nil))
	}

	summaries, err := repo.ListSummaries(ctx, userID)
	require.NoError(t, err)
	require.Len(t, summaries, 3)
	require.Equal(t, "2023-11-23", summaries[0].SummaryDate.Format("2006-01-02"))
	require.Equal(t, "2023-11-21", summaries[2].SummaryDate.Format("2006-01-02"))
}

func TestLockIsCompareAndSet(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()
	userID := uuid.NewString()

	status, err := repo.GetStatus(ctx, userID)
	require.NoError(t, err)
	require.Nil(t, status, "no status row before first aggregation")

	require.NoError(t, repo.TryAcquireLock(ctx, userID))
	require.ErrorIs(t, repo.TryAcquireLock(ctx, userID), domain.ErrUserBusy)

	status, err = repo.GetStatus(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, status)
	require.True(t, status.IsProcessing)

	processedAt := time.Now().UTC()
	require.NoError(t, repo.ReleaseLock(ctx, userID, &processedAt))

	status, err = repo.GetStatus(ctx, userID)
	require.NoError(t, err)
	require.False(t, status.IsProcessing)
	require.WithinDuration(t, processedAt, status.LastProcessedDate, time.Second)

	require.NoError(t, repo.TryAcquireLock(ctx, userID), "lock is reacquirable after release")
	require.NoError(t, repo.ReleaseLock(ctx, userID, nil))
}
