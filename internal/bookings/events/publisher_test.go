package events

import (
	"context"
	"roomly/pkg/kafka"
	"roomly/pkg/logger"
	"roomly/pkg/model"
	"testing"
	"time"
)

type mockProducer struct {
	publishFunc func(ctx context.Context, msg kafka.Message) error
	closed      bool
}

func (m *mockProducer) Publish(ctx context.Context, msg kafka.Message) error {
	return m.publishFunc(ctx, msg)
}

func (m *mockProducer) Close() error {
	m.closed = true
	return nil
}

func TestKafkaPublisher_Publish(t *testing.T) {
	var got kafka.Message
	producer := &mockProducer{publishFunc: func(_ context.Context, msg kafka.Message) error {
		got = msg
		return nil
	}}
	p := NewKafkaPublisher(producer, logger.Discard())

	event := &model.BookingEvent{
		Type:            model.EventBookingCreated,
		BookingID:       "b1",
		RoomID:          "r1",
		CancellationURL: "https://rooms.example.com/cancel/abc",
		OccurredAt:      time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
	}
	ctx := WithCorrelationID(context.Background(), "req-42")
	if err := p.Publish(ctx, event); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if got.Key != "r1" {
		t.Errorf("expected room partition key, got %q", got.Key)
	}
	if got.GetEventType() != model.EventBookingCreated || got.GetCorrelationID() != "req-42" {
		t.Errorf("unexpected headers %v", got.Headers)
	}

	var decoded model.BookingEvent
	if err := got.DecodeValue(&decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.CancellationURL != event.CancellationURL || decoded.BookingID != "b1" {
		t.Errorf("payload mismatch: %+v", decoded)
	}

	if err := p.Close(); err != nil || !producer.closed {
		t.Errorf("close not forwarded: %v", err)
	}
}

func TestNoop(t *testing.T) {
	if err := Noop().Publish(context.Background(), &model.BookingEvent{}); err != nil {
		t.Errorf("noop publish: %v", err)
	}
}
