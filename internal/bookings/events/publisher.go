// Package events publishes booking lifecycle events to Kafka.
package events

import (
	"context"
	"roomly/pkg/kafka"
	"roomly/pkg/logger"
	"roomly/pkg/model"
)

const (
	source        = "roomly-bookings"
	schemaVersion = "1"
)

type Publisher interface {
	Publish(ctx context.Context, event *model.BookingEvent) error
	Close() error
}

// MessagePublisher is the slice of *kafka.Producer used here.
type MessagePublisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
	Close() error
}

type kafkaPublisher struct {
	producer MessagePublisher
	log      *logger.Logger
}

func NewKafkaPublisher(producer MessagePublisher, log *logger.Logger) Publisher {
	return &kafkaPublisher{producer: producer, log: log}
}

// Publish keys events by room so consumers see one room's changes in order.
func (p *kafkaPublisher) Publish(ctx context.Context, event *model.BookingEvent) error {
	msg, err := kafka.NewMessage().
		WithKey(event.RoomID).
		WithValue(event).
		WithEventType(event.Type).
		WithSchemaVersion(schemaVersion).
		WithSource(source).
		WithCorrelationID(correlationID(ctx)).
		WithTimestamp(event.OccurredAt).
		Build()
	if err != nil {
		return err
	}
	return p.producer.Publish(ctx, msg)
}

func (p *kafkaPublisher) Close() error {
	return p.producer.Close()
}

type correlationKey struct{}

// WithCorrelationID tags events published under ctx with id, usually the HTTP request id.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

func correlationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

type noopPublisher struct{}

// Noop discards events. Used when no brokers are configured.
func Noop() Publisher {
	return noopPublisher{}
}

func (noopPublisher) Publish(context.Context, *model.BookingEvent) error { return nil }
func (noopPublisher) Close() error                                         { return nil }
