package model

import "time"

const (
	EventBookingCreated   = "booking.created"
	EventBookingCancelled = "booking.cancelled"

	CancelledByOwner = "owner"
	CancelledByAdmin = "admin"
	CancelledByToken = "token"
)

// BookingEvent is published after a booking changes state.
type BookingEvent struct {
	Type        string `json:"type"`
	BookingID   string `json:"booking_id"`
	RoomID      string `json:"room_id"`
	RoomName    string `json:"room_name"`
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	UserEmail   string `json:"user_email,omitempty"`
	BookingDate string `json:"booking_date"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Purpose     string `json:"purpose,omitempty"`
	Status      string `json:"status"`
	// CancellationURL is only set on booking.created; it is the magic link.
	CancellationURL string    `json:"cancellation_url,omitempty"`
	CancelledVia    string    `json:"cancelled_via,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}
