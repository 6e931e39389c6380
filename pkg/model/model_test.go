package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestClockMinutes(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{in: "00:00", want: 0},
		{in: "09:30", want: 570},
		{in: "23:59", want: 1439},
		{in: "24:00", wantErr: true},
		{in: "9:30", wantErr: true},
		{in: "ab:cd", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ClockMinutes(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ClockMinutes(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestCombineDateClock(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Moscow")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	got, err := CombineDateClock("2026-03-10", "14:45", loc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2026, 3, 10, 14, 45, 0, 0, loc)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}

	if _, err := CombineDateClock("2026-02-30", "10:00", loc); err == nil {
		t.Error("expected error for impossible date")
	}
}

func TestCombineDateClock_DaylightSavingDay(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	// Clocks jump from 02:00 EST to 03:00 EDT on 2026-03-08.
	got, err := CombineDateClock("2026-03-08", "03:30", loc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2026, 3, 8, 3, 30, 0, 0, loc)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
	if got.Hour() != 3 || got.Minute() != 30 {
		t.Errorf("local reading = %s, want 03:30", got.Format(ClockLayout))
	}

	// Clocks fall back from 02:00 EDT to 01:00 EST on 2026-11-01.
	got, err = CombineDateClock("2026-11-01", "18:00", loc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Format("15:04 MST") != "18:00 EST" {
		t.Errorf("got %s, want 18:00 EST", got.Format("15:04 MST"))
	}

	if _, err := CombineDateClock("2026-03-08", "3:30", loc); err == nil {
		t.Error("expected error for unpadded hour")
	}
}

func TestSplitInstant(t *testing.T) {
	got := SplitInstant(time.Date(2026, 1, 2, 3, 4, 59, 0, time.UTC))
	if got.Date != "2026-01-02" || got.Clock != "03:04" {
		t.Errorf("unexpected split: %+v", got)
	}
}

func TestBooking_DurationMinutes(t *testing.T) {
	b := &Booking{StartTime: "10:15", EndTime: "11:45"}
	if got := b.DurationMinutes(); got != 90 {
		t.Errorf("DurationMinutes() = %d, want 90", got)
	}

	broken := &Booking{StartTime: "bad", EndTime: "11:45"}
	if got := broken.DurationMinutes(); got != 0 {
		t.Errorf("DurationMinutes() on malformed = %d, want 0", got)
	}
}

func TestBooking_TokenNotSerialized(t *testing.T) {
	b := &Booking{ID: "x", CancellationToken: "secret-token", Status: BookingStatusActive}
	data, err := json.Marshal(b)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(data), "secret-token") {
		t.Errorf("token leaked into JSON: %s", data)
	}

	view := &BookingView{Booking: b, RoomName: "Blue"}
	data, err = json.Marshal(view)
	if err != nil {
		t.Fatalf("marshal view: %v", err)
	}
	if strings.Contains(string(data), "secret-token") {
		t.Errorf("token leaked into view JSON: %s", data)
	}
	if !strings.Contains(string(data), `"room_name":"Blue"`) {
		t.Errorf("view is missing room_name: %s", data)
	}
}

func TestBookingRequest_Draft(t *testing.T) {
	req := &BookingRequest{RoomID: "r1", BookingDate: "2026-05-01", StartTime: "10:00", EndTime: "11:00", Purpose: "standup"}
	b := req.Draft("u1")
	if b.UserID != "u1" || b.RoomID != "r1" || b.Purpose != "standup" {
		t.Errorf("unexpected draft: %+v", b)
	}
	if b.Status != "" || b.CancellationToken != "" {
		t.Errorf("draft must not carry status or token: %+v", b)
	}
}

func TestUser_FullName(t *testing.T) {
	tests := []struct {
		name string
		user User
		want string
	}{
		{name: "with patronymic", user: User{FirstName: "Ivan", LastName: "Petrov", Patronymic: "Sergeevich"}, want: "Petrov Ivan Sergeevich"},
		{name: "without patronymic", user: User{FirstName: "Ann", LastName: "Lee"}, want: "Lee Ann"},
		{name: "only first name", user: User{FirstName: "Ann"}, want: "Ann"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.user.FullName(); got != tt.want {
				t.Errorf("FullName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUserProfile_HidesPasswordHash(t *testing.T) {
	u := &User{Username: "ann", PasswordHash: "$2a$10$hash", Role: RoleAdmin, FirstName: "Ann", LastName: "Lee"}
	data, err := json.Marshal(NewUserProfile(u))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(data), "hash") {
		t.Errorf("password hash leaked: %s", data)
	}
	if !strings.Contains(string(data), `"full_name":"Lee Ann"`) {
		t.Errorf("missing full_name: %s", data)
	}
	if !u.IsAdmin() {
		t.Error("expected admin")
	}
}
