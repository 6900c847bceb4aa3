// Package notify defines the ingestion notification contract and its Kafka transport.
package notify

import (
	"encoding/json"
	"time"
)

// Notification tells the aggregation worker a user has new raw data to fold
// in. Delivery is at-least-once; consumers must tolerate duplicates because
// every run re-derives summaries from the full remaining backlog.
type Notification struct {
	UserID      string    `json:"userId"`
	RecordCount int       `json:"recordCount"`
	Timestamp   time.Time `json:"timestamp"`
}

// Encode serializes the notification for the wire.
func (n Notification) Encode() ([]byte, error) {
	return json.Marshal(n)
}

// DecodeNotification parses a wire message back into a Notification.
func DecodeNotification(value []byte) (Notification, error) {
	var n Notification
	if err := json.Unmarshal(value, &n); err != nil {
		return Notification{}, err
	}
	return n, nil
}
