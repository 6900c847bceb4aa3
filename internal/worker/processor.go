// Package worker consumes ingestion notifications and runs per-user aggregation.
package worker

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"example.com/healthsync/internal/notify"
)

// Reader exposes the minimal kafka.Reader interface needed by the processor.
type Reader interface {
	FetchMessage(context.Context) (kafka.Message, error)
	CommitMessages(context.Context, ...kafka.Message) error
	Close() error
}

// Handler processes one decoded notification.
type Handler interface {
	Handle(ctx context.Context, notification notify.Notification) error
}

// DeadLetterer records notifications whose processing attempts are exhausted.
type DeadLetterer interface {
	Write(ctx context.Context, notification notify.Notification, notificationID, reason string) error
}

// Option configures optional behaviour for the Processor.
type Option func(*Processor)

// WithLogger overrides the logger used to report errors.
func WithLogger(logger *log.Logger) Option {
	return func(p *Processor) {
		p.logger = logger
	}
}

// WithRetry tunes the bounded in-process retry applied before dead-lettering.
func WithRetry(maxAttempts int, backoff time.Duration) Option {
	return func(p *Processor) {
		if maxAttempts > 0 {
			p.maxAttempts = maxAttempts
		}
		p.backoff = backoff
	}
}

// Processor pulls notifications from Kafka and dispatches them to a Handler.
//
// Acknowledgment policy: the offset is committed only once the notification
// is either processed or parked in the dead-letter table. A failed attempt is
// retried in process with backoff; exhaustion dead-letters the notification
// rather than dropping it, and a malformed message is committed immediately
// to avoid poison-pill loops.
type Processor struct {
	reader      Reader
	handler     Handler
	dlq         DeadLetterer
	logger      *log.Logger
	maxAttempts int
	backoff     time.Duration
}

// NewProcessor constructs a Processor with the provided reader and handler.
func NewProcessor(reader Reader, handler Handler, dlq DeadLetterer, opts ...Option) *Processor {
	p := &Processor{
		reader:      reader,
		handler:     handler,
		dlq:         dlq,
		logger:      log.New(log.Writer(), "[worker] ", log.LstdFlags|log.Lshortfile),
		maxAttempts: 3,
		backoff:     time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run starts a blocking loop that processes notifications until the context
// is cancelled.
func (p *Processor) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		msg, err := p.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			p.logger.Printf("fetch error: %v", err)
			continue
		}

		notification, decodeErr := notify.DecodeNotification(msg.Value)
		if decodeErr != nil || notification.UserID == "" {
			p.logger.Printf("invalid notification (topic=%s, partition=%d, offset=%d): %v", msg.Topic, msg.Partition, msg.Offset, decodeErr)
			recordDecodeError(msg.Topic)
			// Commit malformed messages to avoid poison-pill loops.
			if commitErr := p.reader.CommitMessages(ctx, msg); commitErr != nil {
				p.logger.Printf("commit error after decode failure: %v", commitErr)
			}
			continue
		}

		notificationID := headerValue(msg, notify.HeaderNotificationID)

		handleErr := p.handleWithRetry(ctx, msg.Topic, notification, notificationID)
		if handleErr != nil {
			if errors.Is(handleErr, context.Canceled) {
				return handleErr
			}
			reason := handleErr.Error()
			p.logger.Printf("aggregation exhausted retries (user=%s, notification=%s): %v", notification.UserID, notificationID, handleErr)
			if dlqErr := p.dlq.Write(ctx, notification, notificationID, reason); dlqErr != nil {
				// Leave the offset uncommitted so the channel redelivers.
				p.logger.Printf("dead-letter write failed (user=%s): %v", notification.UserID, dlqErr)
				continue
			}
			recordDeadLettered(msg.Topic)
		}

		if commitErr := p.reader.CommitMessages(ctx, msg); commitErr != nil {
			p.logger.Printf("commit error: %v", commitErr)
		} else if handleErr == nil {
			recordProcessed(msg.Topic, msg.Time)
		}
	}
}

func (p *Processor) handleWithRetry(ctx context.Context, topic string, notification notify.Notification, notificationID string) error {
	var lastErr error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		lastErr = p.handler.Handle(ctx, notification)
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, context.Canceled) {
			return lastErr
		}
		recordHandlerError(topic)
		p.logger.Printf("aggregation attempt %d/%d failed (user=%s, notification=%s): %v", attempt, p.maxAttempts, notification.UserID, notificationID, lastErr)

		if attempt < p.maxAttempts && p.backoff > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.backoff * time.Duration(attempt)):
			}
		}
	}
	return lastErr
}

func headerValue(msg kafka.Message, key string) string {
	for _, header := range msg.Headers {
		if header.Key == key {
			return string(header.Value)
		}
	}
	return ""
}
