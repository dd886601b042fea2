package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Subjects published by the API.
const (
	SubjectInterestCreated       = "crops.interest.created"
	SubjectInterestStatusChanged = "crops.interest.status_changed"
)

// InterestEvent is the payload of every interest subject.
type InterestEvent struct {
	CropID     string    `json:"cropId"`
	CropName   string    `json:"cropName"`
	InterestID string    `json:"interestId"`
	UserEmail  string    `json:"userEmail"`
	OwnerEmail string    `json:"ownerEmail"`
	Quantity   int       `json:"quantity"`
	Status     string    `json:"status"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Publisher emits domain events. Publishing is best effort; callers log
// failures and carry on.
type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Close()
}

// NatsPublisher publishes JSON-encoded events on a NATS connection.
type NatsPublisher struct {
	conn *nats.Conn
}

// NewPublisher connects to url. An empty url yields a publisher that drops
// every event, so the API runs without a NATS server.
func NewPublisher(url string, logger *zap.Logger) (Publisher, error) {
	if url == "" {
		logger.Info("NATS_URL not set, interest events disabled")
		return NopPublisher{}, nil
	}
	conn, err := nats.Connect(url,
		nats.Name("krishilink-api"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", zap.Error(err))
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	logger.Info("Connected to NATS", zap.String("url", url))
	return &NatsPublisher{conn: conn}, nil
}

func (p *NatsPublisher) Publish(ctx context.Context, subject string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event for %s: %w", subject, err)
	}
	return p.conn.Publish(subject, jsonData)
}

func (p *NatsPublisher) Close() {
	p.conn.Close()
}

// NopPublisher discards events.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, interface{}) error { return nil }
func (NopPublisher) Close()                                           {}
