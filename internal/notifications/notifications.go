// Package notifications turns booking events into messages for the booking
// owner. The created message carries the cancellation link, which is the only
// way to cancel without logging in.
package notifications

import (
	"context"
	"fmt"
	"strings"

	"roomly/pkg/kafka"
	"roomly/pkg/logger"
	"roomly/pkg/model"
)

type Notification struct {
	To      string
	Subject string
	Body    string
	// EventID deduplicates redelivered events.
	EventID string
}

// Sender delivers a notification. Errors classified as transient by
// kafka.ClassifyError are retried by the consumer.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

type logSender struct {
	log *logger.Logger
}

// NewLogSender writes notifications to the log instead of a mailbox. It is the
// delivery path used when no mail relay is configured.
func NewLogSender(log *logger.Logger) Sender {
	return &logSender{log: log}
}

// Send logs the envelope only. The body may carry a cancellation link.
func (s *logSender) Send(ctx context.Context, n Notification) error {
	s.log.Info("Notification delivered",
		"to", n.To,
		"subject", n.Subject,
		"event_id", n.EventID,
		"body_bytes", len(n.Body),
	)
	return nil
}

// NewHandler returns the consumer handler for the booking events topic.
func NewHandler(sender Sender, log *logger.Logger) kafka.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		var event model.BookingEvent
		if err := msg.DecodeValue(&event); err != nil {
			return err
		}

		n, ok := Compose(&event)
		if !ok {
			log.Debug("Ignoring booking event", "type", event.Type, "booking_id", event.BookingID)
			return nil
		}
		if n.To == "" {
			log.Warn("Booking owner has no email address, skipping notification",
				"type", event.Type,
				"booking_id", event.BookingID,
				"user_id", event.UserID,
			)
			return nil
		}

		n.EventID = msg.GetEventID()
		return sender.Send(ctx, n)
	}
}

// Compose renders the notification for event. It reports false for event
// types that do not notify anyone.
func Compose(event *model.BookingEvent) (Notification, bool) {
	slot := fmt.Sprintf("%s on %s, %s-%s", roomLabel(event), event.BookingDate, event.StartTime, event.EndTime)

	switch event.Type {
	case model.EventBookingCreated:
		var body strings.Builder
		fmt.Fprintf(&body, "Hello %s,\n\nyour booking of %s is confirmed.\n", event.Username, slot)
		if event.Purpose != "" {
			fmt.Fprintf(&body, "Purpose: %s\n", event.Purpose)
		}
		if event.CancellationURL != "" {
			fmt.Fprintf(&body, "\nTo cancel it without logging in, open:\n%s\n", event.CancellationURL)
		}
		return Notification{
			To:      event.UserEmail,
			Subject: "Booking confirmed: " + slot,
			Body:    body.String(),
		}, true

	case model.EventBookingCancelled:
		reason := "was cancelled"
		if event.CancelledVia == model.CancelledByAdmin {
			reason = "was cancelled by an administrator"
		}
		return Notification{
			To:      event.UserEmail,
			Subject: "Booking cancelled: " + slot,
			Body:    fmt.Sprintf("Hello %s,\n\nyour booking of %s %s.\n", event.Username, slot, reason),
		}, true
	}
	return Notification{}, false
}

func roomLabel(event *model.BookingEvent) string {
	if event.RoomName != "" {
		return event.RoomName
	}
	return "room " + event.RoomID
}
