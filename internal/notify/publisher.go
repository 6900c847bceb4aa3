package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// HeaderNotificationID carries a unique ID per published notification for log
// correlation between the API and the worker.
const HeaderNotificationID = "notification_id"

// KafkaPublisher writes ingestion notifications to a single Kafka topic,
// keyed by user so one user's notifications land on one partition.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher constructs a publisher for the given brokers and topic.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Compression:  kafka.Snappy,
			Async:        false,
		},
	}
}

// Publish emits one notification for the user.
func (p *KafkaPublisher) Publish(ctx context.Context, userID string, recordCount int) error {
	notification := Notification{
		UserID:      userID,
		RecordCount: recordCount,
		Timestamp:   time.Now().UTC(),
	}

	value, err := notification.Encode()
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(userID),
		Value: value,
		Time:  notification.Timestamp,
		Headers: []kafka.Header{
			{Key: HeaderNotificationID, Value: []byte(uuid.NewString())},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write notification: %w", err)
	}
	recordPublished()
	return nil
}

// Close releases the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
