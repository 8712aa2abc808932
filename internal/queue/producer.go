// Package queue publishes domain events to Kafka on a best-effort basis.
package queue

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// Event types emitted by the auth service.
const (
	EventUserRegistered = "user.registered"
	EventUserVerified   = "user.verified"
	EventPasswordReset  = "password.reset"
)

// UserEvent is the wire format for user lifecycle events.
type UserEvent struct {
	ID     string    `json:"id"`
	Type   string    `json:"type"`
	UserID uint      `json:"user_id"`
	Email  string    `json:"email"`
	At     time.Time `json:"at"`
}

// Producer writes events to a Kafka topic. A nil Producer (or one built
// without a broker) silently skips publishing so the auth flows never depend
// on the broker being up.
type Producer struct {
	writer *kafka.Writer
}

// NewProducer builds a producer for the broker and topic. An empty broker
// yields an inert producer.
func NewProducer(broker, topic string) *Producer {
	if broker == "" {
		return &Producer{}
	}
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(broker),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireAll,
			Async:        false,
			WriteTimeout: 10 * time.Second,
		},
	}
}

// Publish emits a user lifecycle event, keyed by email. Failures are logged
// and swallowed.
func (p *Producer) Publish(eventType string, userID uint, email string) {
	if p == nil || p.writer == nil {
		return
	}

	event := UserEvent{
		ID:     uuid.New().String(),
		Type:   eventType,
		UserID: userID,
		Email:  email,
		At:     time.Now(),
	}
	value, err := json.Marshal(event)
	if err != nil {
		log.Printf("queue: marshal event: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(email),
		Value: value,
		Time:  event.At,
	}); err != nil {
		log.Printf("queue: publish %s: %v", eventType, err)
	}
}

// Close releases the underlying writer.
func (p *Producer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
