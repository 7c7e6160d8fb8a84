package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/ashendes/order-service/internal/models"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"
)

const (
	TypeOrderCreated = "order.created"
	TypeOrderDeleted = "order.deleted"
)

// batchTimeout bounds how long a synchronous write waits for its batch to fill
const batchTimeout = 10 * time.Millisecond

// Event is the JSON envelope written for every order lifecycle change
type Event struct {
	ID         string       `json:"id"`
	Type       string       `json:"type"`
	OccurredAt time.Time    `json:"occurredAt"`
	Order      models.Order `json:"order"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes order events to a Kafka topic keyed by order id
type KafkaPublisher struct {
	writer messageWriter
	now    func() time.Time
}

// NewKafkaPublisher creates a publisher writing to topic on brokers
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return newKafkaPublisher(newKafkaWriter(brokers, topic))
}

// Every publish waits for its acknowledgement, so batches are flushed after
// batchTimeout instead of the writer's one second default.
func newKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: batchTimeout,
	}
}

func newKafkaPublisher(writer messageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, now: time.Now}
}

// OrderCreated publishes an order.created event and waits for the broker
func (p *KafkaPublisher) OrderCreated(ctx context.Context, order *models.Order) error {
	return p.publish(ctx, TypeOrderCreated, order)
}

// OrderDeleted publishes an order.deleted event and waits for the broker
func (p *KafkaPublisher) OrderDeleted(ctx context.Context, order *models.Order) error {
	return p.publish(ctx, TypeOrderDeleted, order)
}

// Close flushes pending writes and releases the writer
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func (p *KafkaPublisher) publish(ctx context.Context, eventType string, order *models.Order) error {
	event := Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: p.now().UTC(),
		Order:      *order,
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", eventType, err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(order.OrderID, 10)),
		Value: data,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(eventType)},
		},
	})
	if err != nil {
		return fmt.Errorf("publish %s event for order %d: %w", eventType, order.OrderID, err)
	}

	log.WithFields(log.Fields{
		"order_id": order.OrderID,
		"event":    eventType,
		"event_id": event.ID,
	}).Debug("Order event published")
	return nil
}

// NoopPublisher discards events; used when no brokers are configured
type NoopPublisher struct{}

func (NoopPublisher) OrderCreated(context.Context, *models.Order) error { return nil }
func (NoopPublisher) OrderDeleted(context.Context, *models.Order) error { return nil }
func (NoopPublisher) Close() error                                      { return nil }
