// Package conflict decides whether a proposed booking interval collides with an
// existing active booking for the same room and date.
package conflict

import (
	"context"
	"roomly/pkg/model"
)

// Overlaps reports whether the half-open intervals [s1, e1) and [s2, e2) intersect.
// Times are zero-padded HH:MM so string order is time order.
// Touching endpoints (10:00-11:00 and 11:00-12:00) do not overlap.
func Overlaps(s1, e1, s2, e2 string) bool {
	return s1 < e2 && e1 > s2
}

// Finder returns candidate active bookings on roomID/date that may overlap
// [start, end), skipping excludeID. Implementations may over-approximate.
type Finder interface {
	FindOverlapping(ctx context.Context, roomID, date, start, end, excludeID string) ([]*model.Booking, error)
}

type Detector struct {
	finder Finder
}

func NewDetector(finder Finder) *Detector {
	return &Detector{finder: finder}
}

// Find returns the earliest active booking that conflicts with [start, end) on
// roomID/date, or nil when the slot is free.
func (d *Detector) Find(ctx context.Context, roomID, date, start, end, excludeID string) (*model.Booking, error) {
	candidates, err := d.finder.FindOverlapping(ctx, roomID, date, start, end, excludeID)
	if err != nil {
		return nil, err
	}

	var first *model.Booking
	for _, b := range candidates {
		if !Conflicts(b, roomID, date, start, end, excludeID) {
			continue
		}
		if first == nil || b.StartTime < first.StartTime {
			first = b
		}
	}
	return first, nil
}

// Conflicts applies the full predicate to a single stored booking.
func Conflicts(b *model.Booking, roomID, date, start, end, excludeID string) bool {
	if b == nil || !b.IsActive() {
		return false
	}
	if b.RoomID != roomID || b.BookingDate != date {
		return false
	}
	if excludeID != "" && b.ID == excludeID {
		return false
	}
	return Overlaps(start, end, b.StartTime, b.EndTime)
}
