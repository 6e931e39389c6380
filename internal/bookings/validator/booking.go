package validator

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"roomly/pkg/logger"
	"roomly/pkg/model"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	FieldRoomID      = "room_id"
	FieldBookingDate = "booking_date"
	FieldStartTime   = "start_time"
	FieldEndTime     = "end_time"
	FieldTime        = "time"
)

// FieldErrors maps a request field to a human readable reason.
type FieldErrors map[string]string

// ValidationError is every reason a draft was rejected. Conflict is set when the
// draft overlaps an existing active booking.
type ValidationError struct {
	Fields   FieldErrors
	Conflict *model.Booking
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(parts), strings.Join(parts, "; "))
}

func (e *ValidationError) add(field, message string) {
	if _, exists := e.Fields[field]; !exists {
		e.Fields[field] = message
	}
}

// ConflictFinder is the part of the conflict detector the validator needs.
type ConflictFinder interface {
	Find(ctx context.Context, roomID, date, start, end, excludeID string) (*model.Booking, error)
}

type Policy struct {
	// WindowDays is how many days past today a booking may target.
	WindowDays  int
	MaxDuration time.Duration
	Location    *time.Location
}

type BookingValidator struct {
	validate  *validator.Validate
	conflicts ConflictFinder
	policy    Policy
	logger    *logger.Logger
}

func NewBookingValidator(conflicts ConflictFinder, policy Policy, log *logger.Logger) *BookingValidator {
	if policy.Location == nil {
		policy.Location = time.UTC
	}

	log.Info("Booking validator initialized successfully",
		"window_days", policy.WindowDays,
		"max_duration", policy.MaxDuration,
		"time_zone", policy.Location.String(),
	)

	return &BookingValidator{
		validate:  NewStructValidator(log),
		conflicts: conflicts,
		policy:    policy,
		logger:    log,
	}
}

// NewStructValidator returns a validator that reports json field names and knows
// the date_ymd and time_hm tags.
func NewStructValidator(log *logger.Logger) *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	if err := v.RegisterValidation("date_ymd", validateDate); err != nil {
		log.Fatal("Failed to register 'date_ymd' validator", "error", err)
	}
	if err := v.RegisterValidation("time_hm", validateClock); err != nil {
		log.Fatal("Failed to register 'time_hm' validator", "error", err)
	}
	return v
}

func validateDate(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if len(s) != len(model.DateLayout) {
		return false
	}
	_, err := time.Parse(model.DateLayout, s)
	return err == nil
}

func validateClock(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if len(s) != len(model.ClockLayout) {
		return false
	}
	_, err := model.ClockMinutes(s)
	return err == nil
}

// CheckShape validates field formats only. Everything Validate does afterwards
// relies on these values being parseable.
func (v *BookingValidator) CheckShape(draft *model.Booking) error {
	err := v.validate.Struct(draft)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	out := &ValidationError{Fields: FieldErrors{}}
	for _, fe := range validationErrs {
		out.add(fe.Field(), translate(fe))
	}
	return out
}

// Validate runs every admissibility rule against draft, with now taken as the
// current instant, and reports all violations together. A nil error means the
// draft can be stored. Errors other than *ValidationError come from storage.
func (v *BookingValidator) Validate(ctx context.Context, draft *model.Booking, room *model.Room, now time.Time) error {
	if err := v.CheckShape(draft); err != nil {
		return err
	}

	verr := &ValidationError{Fields: FieldErrors{}}

	if room == nil {
		verr.add(FieldRoomID, "Room not found")
		return verr
	}
	if !room.IsActive {
		verr.add(FieldRoomID, "Room is not available for booking")
		return verr
	}

	loc := v.policy.Location
	now = now.In(loc)
	today := model.FormatDate(now)
	todayStart, _ := model.ParseDate(today, loc)
	lastDay := model.FormatDate(todayStart.AddDate(0, 0, v.policy.WindowDays))

	orderedTimes := draft.StartTime < draft.EndTime
	if !orderedTimes {
		verr.add(FieldEndTime, "End time must be after start time")
	}

	if draft.BookingDate < today {
		verr.add(FieldBookingDate, "Cannot book a past date")
	}

	if draft.BookingDate == today {
		startsAt, err := model.CombineDateClock(draft.BookingDate, draft.StartTime, loc)
		if err == nil && startsAt.Before(now) {
			verr.add(FieldStartTime, "Cannot book a time that has already passed")
		}
	}

	if draft.BookingDate > lastDay {
		verr.add(FieldBookingDate, fmt.Sprintf("Cannot book more than %d days ahead", v.policy.WindowDays))
	}

	if orderedTimes && v.policy.MaxDuration > 0 {
		if time.Duration(draft.DurationMinutes())*time.Minute > v.policy.MaxDuration {
			verr.add(FieldEndTime, fmt.Sprintf("Booking cannot be longer than %s", formatDuration(v.policy.MaxDuration)))
		}
	}

	if orderedTimes {
		conflict, err := v.conflicts.Find(ctx, draft.RoomID, draft.BookingDate, draft.StartTime, draft.EndTime, draft.ID)
		if err != nil {
			return fmt.Errorf("failed to check booking conflicts: %w", err)
		}
		if conflict != nil {
			verr.Conflict = conflict
			verr.add(FieldTime, fmt.Sprintf("This room is already booked from %s to %s", conflict.StartTime, conflict.EndTime))
		}
	}

	if len(verr.Fields) > 0 {
		v.logger.Debug("Booking draft rejected",
			"room_id", draft.RoomID,
			"booking_date", draft.BookingDate,
			"start_time", draft.StartTime,
			"end_time", draft.EndTime,
			"fields", verr.Fields,
		)
		return verr
	}
	return nil
}

func formatDuration(d time.Duration) string {
	if d%time.Hour == 0 {
		return fmt.Sprintf("%d hours", int(d/time.Hour))
	}
	return fmt.Sprintf("%d minutes", int(d/time.Minute))
}

func translate(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "mongodb":
		return fmt.Sprintf("%s must be a valid identifier", fe.Field())
	case "date_ymd":
		return fmt.Sprintf("%s must be a date in YYYY-MM-DD format", fe.Field())
	case "time_hm":
		return fmt.Sprintf("%s must be a time in HH:MM format", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
