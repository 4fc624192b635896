package events

import (
	"context"       // Context for broker writes
	"encoding/json" // Event encoding
	"fmt"           // Error wrapping
	"strconv"       // Message keys
	"time"          // Event timestamps

	"marketplace/internal/domain" // Importing domain models

	"github.com/segmentio/kafka-go" // Kafka client
	"github.com/shopspring/decimal" // Amounts
)

// Event types published for transaction transitions
const (
	TypeTransactionInitiated = "transaction.initiated"
	TypeTransactionConfirmed = "transaction.confirmed"
	TypeTransactionDeclined  = "transaction.declined"
)

// Event describes a transaction state change
type Event struct {
	Type          string                   `json:"type"`
	TransactionID uint                     `json:"transaction_id"`
	ProductID     uint                     `json:"product_id"`
	BuyerID       uint                     `json:"buyer_id"`
	SellerID      uint                     `json:"seller_id"`
	Status        domain.TransactionStatus `json:"status"`
	Amount        decimal.Decimal          `json:"amount"`
	OccurredAt    time.Time                `json:"occurred_at"`
}

// NewTransactionEvent builds an event from a transaction snapshot
func NewTransactionEvent(eventType string, t *domain.Transaction) Event {
	return Event{
		Type:          eventType,
		TransactionID: t.ID,
		ProductID:     t.ProductID,
		BuyerID:       t.BuyerID,
		SellerID:      t.SellerID,
		Status:        t.Status,
		Amount:        t.Amount,
		OccurredAt:    time.Now().UTC(),
	}
}

// Publisher emits events to interested consumers
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// KafkaPublisher writes events to a Kafka topic keyed by product, so a product's history stays ordered
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher creates a publisher for topic on brokers
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           10 * time.Millisecond, // Publish is called inline, do not wait for a full batch
		AllowAutoTopicCreation: true,
	}}
}

// Publish writes one event
func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("kafka: marshal event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(strconv.FormatUint(uint64(e.ProductID), 10)),
		Value: data,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: write %s: %w", e.Type, err)
	}
	return nil
}

// Close flushes and closes the writer
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher drops every event
type NopPublisher struct{}

// Publish does nothing
func (NopPublisher) Publish(context.Context, Event) error { return nil }
