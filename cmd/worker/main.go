package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"
	"golang.org/x/sync/errgroup"

	"example.com/healthsync/internal/config"
	persistence "example.com/healthsync/internal/persistence/postgres"
	"example.com/healthsync/internal/worker"
)

func main() {
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	repo := persistence.NewRepository(pool)
	handler := worker.NewAggregationHandler(repo, nil)
	dlq := worker.NewDLQWriter(pool)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:         cfg.KafkaBrokers,
		GroupID:         cfg.ConsumerGroupID,
		Topic:           cfg.IngestTopic,
		MinBytes:        1e3,
		MaxBytes:        10e6,
		CommitInterval:  0, // synchronous commits: the offset is the acknowledgment
		ReadLagInterval: -1,
	})

	processor := worker.NewProcessor(reader, handler, dlq,
		worker.WithRetry(cfg.WorkerAttempts, cfg.WorkerBackoff),
	)

	metricsSrv := &http.Server{Addr: cfg.MetricsAddress, Handler: promhttp.Handler()}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Printf("worker metrics listening on %s", cfg.MetricsAddress)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	group.Go(func() error {
		defer reader.Close()
		log.Printf("aggregation worker started (topic=%s, group=%s)", cfg.IngestTopic, cfg.ConsumerGroupID)
		if err := processor.Run(groupCtx); err != nil && err != context.Canceled {
			return err
		}
		return nil
	})

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("worker shutdown requested")
	case <-groupCtx.Done():
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("metrics server shutdown error: %v", err)
	}

	if err := group.Wait(); err != nil {
		log.Fatalf("worker stopped with error: %v", err)
	}
}
