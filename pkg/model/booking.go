package model

import (
	"time"
)

const (
	BookingStatusActive    = "active"
	BookingStatusCancelled = "cancelled"

	SlotStatusBooked = "booked"
)

// Booking is a reservation of one room for a [StartTime, EndTime) window on BookingDate.
// BookingDate is YYYY-MM-DD and the times are zero-padded HH:MM, so lexicographic
// order is chronological order.
type Booking struct {
	ID                string     `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	RoomID            string     `json:"room_id" bson:"room_id" validate:"required,mongodb"`
	UserID            string     `json:"user_id" bson:"user_id" validate:"required"`
	BookingDate       string     `json:"booking_date" bson:"booking_date" validate:"required,date_ymd"`
	StartTime         string     `json:"start_time" bson:"start_time" validate:"required,time_hm"`
	EndTime           string     `json:"end_time" bson:"end_time" validate:"required,time_hm"`
	Purpose           string     `json:"purpose,omitempty" bson:"purpose,omitempty" validate:"max=1000"`
	Status            string     `json:"status" bson:"status" validate:"omitempty,oneof=active cancelled"`
	CancellationToken string     `json:"-" bson:"cancellation_token"`
	CreatedAt         time.Time  `json:"created_at" bson:"created_at"`
	CancelledAt       *time.Time `json:"cancelled_at,omitempty" bson:"cancelled_at,omitempty"`
}

// BookingRequest is what a caller submits to reserve a room.
type BookingRequest struct {
	RoomID      string `json:"room_id"`
	BookingDate string `json:"booking_date"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Purpose     string `json:"purpose,omitempty"`
}

func (r *BookingRequest) Draft(userID string) *Booking {
	return &Booking{
		RoomID:      r.RoomID,
		UserID:      userID,
		BookingDate: r.BookingDate,
		StartTime:   r.StartTime,
		EndTime:     r.EndTime,
		Purpose:     r.Purpose,
	}
}

func (b *Booking) IsActive() bool {
	return b.Status == BookingStatusActive
}

// StartsAt combines BookingDate and StartTime in loc.
func (b *Booking) StartsAt(loc *time.Location) (time.Time, error) {
	return CombineDateClock(b.BookingDate, b.StartTime, loc)
}

func (b *Booking) DurationMinutes() int {
	start, err := ClockMinutes(b.StartTime)
	if err != nil {
		return 0
	}
	end, err := ClockMinutes(b.EndTime)
	if err != nil {
		return 0
	}
	return end - start
}

// BookingView is a booking enriched with the names a client renders.
type BookingView struct {
	*Booking
	RoomName        string `json:"room_name"`
	UserName        string `json:"user_name"`
	UserUsername    string `json:"user_username"`
	CanCancel       bool   `json:"can_cancel"`
	DurationMinutes int    `json:"duration_minutes"`
}

// BookingCreated is returned exactly once, to the creator. It is the only
// response that carries the cancellation token.
type BookingCreated struct {
	ID                string       `json:"id"`
	Status            string       `json:"status"`
	CancellationURL   string       `json:"cancellation_url"`
	CancellationToken string       `json:"cancellation_token"`
	Booking           *BookingView `json:"booking"`
}

// BookingFilter narrows list queries. Empty fields are ignored.
type BookingFilter struct {
	RoomID   string
	UserID   string
	DateFrom string
	DateTo   string
	Status   string
	// NotBefore keeps bookings whose (date, start) is at or after the given instant.
	NotBefore *DateClock
	Ascending bool
}

// DateClock is a wall-clock instant split the way bookings store it.
type DateClock struct {
	Date  string
	Clock string
}

// CancellationResult is returned by every cancellation path.
type CancellationResult struct {
	Status  string       `json:"status"`
	Message string       `json:"message"`
	Booking *BookingView `json:"booking"`
}
