package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"roomly/internal/bookings/conflict"
	bookingserrors "roomly/internal/bookings/errors"
	"roomly/internal/bookings/events"
	"roomly/internal/bookings/repository"
	"roomly/internal/bookings/token"
	"roomly/internal/bookings/validator"
	roomserrors "roomly/internal/rooms/errors"
	"roomly/pkg/auth"
	"roomly/pkg/clock"
	"roomly/pkg/config"
	apperrors "roomly/pkg/errors"
	"roomly/pkg/model"
	"roomly/pkg/sanitizer"

	"github.com/google/uuid"
)

const (
	statusSuccess      = "success"
	cancelledMessage   = "Booking cancelled successfully"
	cancellationPrefix = "/cancel/"
)

// RoomCatalog is the read side of the room catalog. Missing rooms are reported
// with roomserrors.ErrNotFound or roomserrors.ErrInvalidID.
type RoomCatalog interface {
	FindByID(ctx context.Context, id string) (*model.Room, error)
	FindByIDs(ctx context.Context, ids []string) ([]*model.Room, error)
}

type UserDirectory interface {
	FindByIDs(ctx context.Context, ids []string) ([]*model.User, error)
}

type BookingService interface {
	Create(ctx context.Context, req *model.BookingRequest, actor *auth.Identity) (*model.BookingCreated, error)
	GetByID(ctx context.Context, id string, actor *auth.Identity) (*model.BookingView, error)
	GetByToken(ctx context.Context, cancellationToken string) (*model.BookingView, error)
	Cancel(ctx context.Context, id string, actor *auth.Identity) (*model.CancellationResult, error)
	CancelByToken(ctx context.Context, cancellationToken string) (*model.CancellationResult, error)
	List(ctx context.Context, filter *model.BookingFilter, actor *auth.Identity, limit int, offset int64) ([]*model.BookingView, int64, error)
	ListMine(ctx context.Context, actor *auth.Identity, status string, futureOnly bool, limit int, offset int64) ([]*model.BookingView, int64, error)
	ListAll(ctx context.Context, filter *model.BookingFilter, actor *auth.Identity, limit int, offset int64) ([]*model.BookingView, int64, error)
}

type bookingService struct {
	repo      repository.BookingRepository
	lockRepo  repository.BookingLockRepository
	validator *validator.BookingValidator
	tokens    token.Issuer
	rooms     RoomCatalog
	users     UserDirectory
	publisher events.Publisher
	clock     clock.Clock
	cfg       *config.Config
	locks     *keyedMutex
}

func NewBookingService(
	repo repository.BookingRepository,
	lockRepo repository.BookingLockRepository,
	validator *validator.BookingValidator,
	tokens token.Issuer,
	rooms RoomCatalog,
	users UserDirectory,
	publisher events.Publisher,
	clk clock.Clock,
	cfg *config.Config,
) BookingService {
	if publisher == nil {
		publisher = events.Noop()
	}
	return &bookingService{
		repo:      repo,
		lockRepo:  lockRepo,
		validator: validator,
		tokens:    tokens,
		rooms:     rooms,
		users:     users,
		publisher: publisher,
		clock:     clk,
		cfg:       cfg,
		locks:     newKeyedMutex(),
	}
}

// CanCancel reports whether b is active and starts strictly after now.
func CanCancel(b *model.Booking, now time.Time, loc *time.Location) bool {
	if b == nil || !b.IsActive() {
		return false
	}
	startsAt, err := b.StartsAt(loc)
	if err != nil {
		return false
	}
	return startsAt.After(now)
}

func (s *bookingService) Create(ctx context.Context, req *model.BookingRequest, actor *auth.Identity) (*model.BookingCreated, error) {
	if actor == nil {
		return nil, apperrors.Unauthorized("Authentication required")
	}
	if req == nil {
		return nil, apperrors.InvalidInput("Booking request cannot be empty")
	}

	draft := req.Draft(actor.UserID)
	s.sanitize(draft)
	if err := s.validator.CheckShape(draft); err != nil {
		return nil, s.validationError(err)
	}

	lockID := repository.SlotLockID(draft.RoomID, draft.BookingDate)
	unlock := s.locks.Lock(lockID)
	defer unlock()

	owner := uuid.NewString()
	if err := s.acquireSlotLock(ctx, lockID, owner); err != nil {
		return nil, err
	}
	defer func() {
		if err := s.lockRepo.Release(context.WithoutCancel(ctx), lockID, owner); err != nil {
			s.cfg.Log.Warn("Failed to release booking lock", "lock_id", lockID, "error", err)
		}
	}()

	now := s.clock.Now()
	var room *model.Room
	err := s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		var err error
		room, err = s.lookupRoom(txCtx, draft.RoomID)
		if err != nil {
			return err
		}

		if err := s.validator.Validate(txCtx, draft, room, now); err != nil {
			return s.validationError(err)
		}

		draft.Status = model.BookingStatusActive
		draft.CreatedAt = now
		draft.CancellationToken = s.tokens.Issue()
		if err := s.repo.Create(txCtx, draft); err != nil {
			return apperrors.Internal("Failed to create booking", err)
		}
		return nil
	})
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeValidation) {
			s.cfg.Log.Warn("Booking rejected",
				"room_id", draft.RoomID,
				"booking_date", draft.BookingDate,
				"start_time", draft.StartTime,
				"end_time", draft.EndTime,
				"user_id", actor.UserID,
			)
			return nil, err
		}
		s.cfg.Log.Error("Failed to create booking", "room_id", draft.RoomID, "error", err)
		return nil, apperrors.AsAppError(err)
	}

	s.cfg.Log.Info("Booking created successfully",
		"id", draft.ID,
		"room_id", draft.RoomID,
		"user_id", draft.UserID,
		"booking_date", draft.BookingDate,
		"start_time", draft.StartTime,
		"end_time", draft.EndTime,
	)

	user := s.lookupUser(ctx, draft.UserID)
	view := s.view(draft, room, user, now)
	path := cancellationPrefix + draft.CancellationToken
	s.publish(ctx, s.event(model.EventBookingCreated, draft, room, user, now, func(e *model.BookingEvent) {
		e.CancellationURL = strings.TrimSuffix(s.cfg.PublicBaseURL, "/") + path
	}))

	return &model.BookingCreated{
		ID:                draft.ID,
		Status:            statusSuccess,
		CancellationURL:   path,
		CancellationToken: draft.CancellationToken,
		Booking:           view,
	}, nil
}

func (s *bookingService) GetByID(ctx context.Context, id string, actor *auth.Identity) (*model.BookingView, error) {
	if actor == nil {
		return nil, apperrors.Unauthorized("Authentication required")
	}

	booking, err := s.findByID(ctx, id)
	if err != nil {
		return nil, err
	}
	// Other users' bookings are reported as missing rather than forbidden.
	if booking.UserID != actor.UserID && !actor.IsAdmin() {
		return nil, apperrors.NotFoundWithID("Booking", id)
	}

	return s.single(ctx, booking)
}

func (s *bookingService) GetByToken(ctx context.Context, cancellationToken string) (*model.BookingView, error) {
	booking, err := s.findByToken(ctx, cancellationToken)
	if err != nil {
		return nil, err
	}
	return s.single(ctx, booking)
}

func (s *bookingService) Cancel(ctx context.Context, id string, actor *auth.Identity) (*model.CancellationResult, error) {
	if actor == nil {
		return nil, apperrors.Unauthorized("Authentication required")
	}

	booking, err := s.findByID(ctx, id)
	if err != nil {
		return nil, err
	}

	via := model.CancelledByOwner
	if booking.UserID != actor.UserID {
		if !actor.IsAdmin() {
			s.cfg.Log.Warn("Booking cancel forbidden", "id", id, "user_id", actor.UserID)
			return nil, apperrors.Forbidden("You do not have permission to cancel this booking")
		}
		via = model.CancelledByAdmin
	}

	return s.cancel(ctx, booking, via)
}

func (s *bookingService) CancelByToken(ctx context.Context, cancellationToken string) (*model.CancellationResult, error) {
	booking, err := s.findByToken(ctx, cancellationToken)
	if err != nil {
		return nil, err
	}
	return s.cancel(ctx, booking, model.CancelledByToken)
}

func (s *bookingService) cancel(ctx context.Context, booking *model.Booking, via string) (*model.CancellationResult, error) {
	now := s.clock.Now()
	if !CanCancel(booking, now, s.cfg.Location) {
		return nil, notCancellable()
	}

	if err := s.repo.MarkCancelled(ctx, booking.ID, now); err != nil {
		if errors.Is(err, bookingserrors.ErrNotActive) {
			return nil, notCancellable()
		}
		s.cfg.Log.Error("Failed to cancel booking", "id", booking.ID, "error", err)
		return nil, apperrors.Internal("Failed to cancel booking", err)
	}

	booking.Status = model.BookingStatusCancelled
	booking.CancelledAt = &now

	s.cfg.Log.Info("Booking cancelled successfully", "id", booking.ID, "room_id", booking.RoomID, "via", via)

	room := s.lookupRoomQuiet(ctx, booking.RoomID)
	user := s.lookupUser(ctx, booking.UserID)
	s.publish(ctx, s.event(model.EventBookingCancelled, booking, room, user, now, func(e *model.BookingEvent) {
		e.CancelledVia = via
	}))

	return &model.CancellationResult{
		Status:  statusSuccess,
		Message: cancelledMessage,
		Booking: s.view(booking, room, user, now),
	}, nil
}

func (s *bookingService) List(ctx context.Context, filter *model.BookingFilter, actor *auth.Identity, limit int, offset int64) ([]*model.BookingView, int64, error) {
	if actor == nil {
		return nil, 0, apperrors.Unauthorized("Authentication required")
	}

	f := copyFilter(filter)
	if !actor.IsAdmin() {
		f.UserID = actor.UserID
	}
	f.Ascending = false
	return s.find(ctx, f, limit, offset)
}

func (s *bookingService) ListMine(ctx context.Context, actor *auth.Identity, status string, futureOnly bool, limit int, offset int64) ([]*model.BookingView, int64, error) {
	if actor == nil {
		return nil, 0, apperrors.Unauthorized("Authentication required")
	}

	f := &model.BookingFilter{
		UserID:    actor.UserID,
		Status:    status,
		Ascending: true,
	}
	if futureOnly {
		at := model.SplitInstant(s.clock.Now().In(s.cfg.Location))
		f.NotBefore = &at
	}
	return s.find(ctx, f, limit, offset)
}

func (s *bookingService) ListAll(ctx context.Context, filter *model.BookingFilter, actor *auth.Identity, limit int, offset int64) ([]*model.BookingView, int64, error) {
	if actor == nil {
		return nil, 0, apperrors.Unauthorized("Authentication required")
	}
	if !actor.IsAdmin() {
		return nil, 0, apperrors.Forbidden("Administrator access required")
	}

	f := copyFilter(filter)
	f.Ascending = false
	return s.find(ctx, f, limit, offset)
}

func (s *bookingService) find(ctx context.Context, filter *model.BookingFilter, limit int, offset int64) ([]*model.BookingView, int64, error) {
	if err := validateFilter(filter); err != nil {
		return nil, 0, err
	}

	var count int64
	var bookings []*model.Booking
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.Count(ctx, filter)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count bookings", "error", errCount)
			errCount = apperrors.Internal("Failed to count bookings", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		bookings, errFind = s.repo.Find(ctx, filter, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list bookings", "limit", limit, "offset", offset, "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve bookings", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	views, err := s.views(ctx, bookings)
	if err != nil {
		return nil, 0, err
	}
	return views, count, nil
}

// --- Helpers ---

func (s *bookingService) sanitize(b *model.Booking) {
	b.RoomID = strings.TrimSpace(b.RoomID)
	b.BookingDate = strings.TrimSpace(b.BookingDate)
	b.StartTime = strings.TrimSpace(b.StartTime)
	b.EndTime = strings.TrimSpace(b.EndTime)
	b.Purpose = sanitizer.NormalizeText(b.Purpose)
}

// acquireSlotLock takes the (room, date) advisory lock shared by every instance.
// Contention is retried with linear backoff before surfacing as a Conflict.
func (s *bookingService) acquireSlotLock(ctx context.Context, lockID, owner string) error {
	for attempt := 0; ; attempt++ {
		err := s.lockRepo.Acquire(ctx, lockID, owner, s.cfg.SlotLockTTL)
		if err == nil {
			return nil
		}
		if !errors.Is(err, bookingserrors.ErrLockHeld) {
			s.cfg.Log.Error("Failed to acquire booking lock", "lock_id", lockID, "error", err)
			return apperrors.Unavailable("Booking lock store", err)
		}
		if attempt >= s.cfg.SlotLockRetries {
			s.cfg.Log.Warn("Booking lock contention", "lock_id", lockID, "attempts", attempt+1)
			return apperrors.Conflict("This room is being booked by another request. Please try again.")
		}

		timer := time.NewTimer(s.cfg.SlotLockRetryDelay * time.Duration(attempt+1))
		select {
		case <-ctx.Done():
			timer.Stop()
			return apperrors.Timeout("Timed out waiting for the booking slot")
		case <-timer.C:
		}
	}
}

func (s *bookingService) validationError(err error) error {
	var verr *validator.ValidationError
	if !errors.As(err, &verr) {
		return apperrors.Internal("Failed to validate booking", err)
	}

	appErr := apperrors.FieldValidation("Booking validation failed", verr.Fields)
	if verr.Conflict != nil {
		appErr.Details["conflict"] = map[string]string{
			"start_time": verr.Conflict.StartTime,
			"end_time":   verr.Conflict.EndTime,
		}
	}
	return appErr
}

func (s *bookingService) lookupRoom(ctx context.Context, id string) (*model.Room, error) {
	room, err := s.rooms.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, roomserrors.ErrNotFound) || errors.Is(err, roomserrors.ErrInvalidID) {
			return nil, nil
		}
		return nil, apperrors.Internal("Failed to retrieve room", err)
	}
	return room, nil
}

func (s *bookingService) lookupRoomQuiet(ctx context.Context, id string) *model.Room {
	room, err := s.lookupRoom(ctx, id)
	if err != nil {
		s.cfg.Log.Warn("Failed to load room for booking", "room_id", id, "error", err)
	}
	return room
}

func (s *bookingService) lookupUser(ctx context.Context, id string) *model.User {
	users, err := s.users.FindByIDs(ctx, []string{id})
	if err != nil {
		s.cfg.Log.Warn("Failed to load user for booking", "user_id", id, "error", err)
		return nil
	}
	for _, u := range users {
		if u.ID == id {
			return u
		}
	}
	return nil
}

func (s *bookingService) findByID(ctx context.Context, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) || errors.Is(err, bookingserrors.ErrInvalidID) {
			return nil, apperrors.NotFoundWithID("Booking", id)
		}
		s.cfg.Log.Error("Failed to retrieve booking", "id", id, "error", err)
		return nil, apperrors.Internal("Failed to retrieve booking", err)
	}
	return booking, nil
}

// findByToken treats malformed and unknown tokens the same way.
func (s *bookingService) findByToken(ctx context.Context, cancellationToken string) (*model.Booking, error) {
	if !token.WellFormed(cancellationToken) {
		return nil, apperrors.NotFound("Booking")
	}

	booking, err := s.repo.FindByToken(ctx, cancellationToken)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return nil, apperrors.NotFound("Booking")
		}
		s.cfg.Log.Error("Failed to retrieve booking by token", "error", err)
		return nil, apperrors.Internal("Failed to retrieve booking", err)
	}
	return booking, nil
}

func (s *bookingService) single(ctx context.Context, booking *model.Booking) (*model.BookingView, error) {
	views, err := s.views(ctx, []*model.Booking{booking})
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

// views loads room and user names for bookings in two batched lookups.
func (s *bookingService) views(ctx context.Context, bookings []*model.Booking) ([]*model.BookingView, error) {
	roomIDs := make([]string, 0, len(bookings))
	userIDs := make([]string, 0, len(bookings))
	seenRooms := map[string]struct{}{}
	seenUsers := map[string]struct{}{}
	for _, b := range bookings {
		if _, ok := seenRooms[b.RoomID]; !ok {
			seenRooms[b.RoomID] = struct{}{}
			roomIDs = append(roomIDs, b.RoomID)
		}
		if _, ok := seenUsers[b.UserID]; !ok {
			seenUsers[b.UserID] = struct{}{}
			userIDs = append(userIDs, b.UserID)
		}
	}

	var rooms []*model.Room
	var users []*model.User
	var errRooms, errUsers error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		if len(roomIDs) > 0 {
			rooms, errRooms = s.rooms.FindByIDs(ctx, roomIDs)
		}
	}()

	go func() {
		defer wg.Done()
		if len(userIDs) > 0 {
			users, errUsers = s.users.FindByIDs(ctx, userIDs)
		}
	}()

	wg.Wait()
	if errRooms != nil {
		s.cfg.Log.Error("Failed to load rooms for bookings", "error", errRooms)
		return nil, apperrors.Internal("Failed to retrieve bookings", errRooms)
	}
	if errUsers != nil {
		s.cfg.Log.Error("Failed to load users for bookings", "error", errUsers)
		return nil, apperrors.Internal("Failed to retrieve bookings", errUsers)
	}

	roomsByID := make(map[string]*model.Room, len(rooms))
	for _, r := range rooms {
		roomsByID[r.ID] = r
	}
	usersByID := make(map[string]*model.User, len(users))
	for _, u := range users {
		usersByID[u.ID] = u
	}

	now := s.clock.Now()
	out := make([]*model.BookingView, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, s.view(b, roomsByID[b.RoomID], usersByID[b.UserID], now))
	}
	return out, nil
}

func (s *bookingService) view(b *model.Booking, room *model.Room, user *model.User, now time.Time) *model.BookingView {
	v := &model.BookingView{
		Booking:         b,
		CanCancel:       CanCancel(b, now, s.cfg.Location),
		DurationMinutes: b.DurationMinutes(),
	}
	if room != nil {
		v.RoomName = room.Name
	}
	if user != nil {
		v.UserName = user.FullName()
		v.UserUsername = user.Username
	}
	return v
}

func (s *bookingService) event(eventType string, b *model.Booking, room *model.Room, user *model.User, now time.Time, opts ...func(*model.BookingEvent)) *model.BookingEvent {
	e := &model.BookingEvent{
		Type:        eventType,
		BookingID:   b.ID,
		RoomID:      b.RoomID,
		UserID:      b.UserID,
		BookingDate: b.BookingDate,
		StartTime:   b.StartTime,
		EndTime:     b.EndTime,
		Purpose:     b.Purpose,
		Status:      b.Status,
		OccurredAt:  now.UTC(),
	}
	if room != nil {
		e.RoomName = room.Name
	}
	if user != nil {
		e.Username = user.Username
		e.UserEmail = user.Email
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// publish is best effort: the booking is already stored when it runs.
func (s *bookingService) publish(ctx context.Context, event *model.BookingEvent) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.cfg.Log.Warn("Failed to publish booking event",
			"type", event.Type,
			"booking_id", event.BookingID,
			"error", err,
		)
	}
}

func notCancellable() error {
	return apperrors.NotCancellable("This booking cannot be cancelled")
}

func copyFilter(filter *model.BookingFilter) *model.BookingFilter {
	if filter == nil {
		return &model.BookingFilter{}
	}
	f := *filter
	return &f
}

func validateFilter(f *model.BookingFilter) error {
	fields := map[string]string{}
	switch f.Status {
	case "", model.BookingStatusActive, model.BookingStatusCancelled:
	default:
		fields["status"] = fmt.Sprintf("status must be one of: %s %s", model.BookingStatusActive, model.BookingStatusCancelled)
	}
	if f.DateFrom != "" {
		if _, err := model.ParseDate(f.DateFrom, time.UTC); err != nil {
			fields["date_from"] = "date_from must be a date in YYYY-MM-DD format"
		}
	}
	if f.DateTo != "" {
		if _, err := model.ParseDate(f.DateTo, time.UTC); err != nil {
			fields["date_to"] = "date_to must be a date in YYYY-MM-DD format"
		}
	}
	if len(fields) > 0 {
		return apperrors.FieldValidation("Invalid booking filter", fields)
	}
	return nil
}

var _ conflict.Finder = repository.BookingRepository(nil)
