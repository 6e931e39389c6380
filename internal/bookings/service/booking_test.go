package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"testing"
	"time"

	"roomly/internal/bookings/conflict"
	bookingserrors "roomly/internal/bookings/errors"
	"roomly/internal/bookings/token"
	"roomly/internal/bookings/validator"
	roomserrors "roomly/internal/rooms/errors"
	"roomly/pkg/auth"
	"roomly/pkg/clock"
	"roomly/pkg/config"
	mongotx "roomly/pkg/db/mongo"
	apperrors "roomly/pkg/errors"
	"roomly/pkg/logger"
	"roomly/pkg/model"
)

const (
	roomBlue   = "64b7f0c2a1b2c3d4e5f60001"
	roomGreen  = "64b7f0c2a1b2c3d4e5f60002"
	roomClosed = "64b7f0c2a1b2c3d4e5f60003"
	roomNone   = "64b7f0c2a1b2c3d4e5f6ffff"
)

var (
	alice = &auth.Identity{UserID: "user-1", Username: "alice", Role: model.RoleUser}
	bob   = &auth.Identity{UserID: "user-2", Username: "bob", Role: model.RoleUser}
	admin = &auth.Identity{UserID: "admin-1", Username: "root", Role: model.RoleAdmin}
)

// ────────────────────────────────────────────────
// In-memory collaborators
// ────────────────────────────────────────────────

type memoryBookingRepository struct {
	mu       sync.Mutex
	seq      int
	bookings map[string]*model.Booking
	tokens   map[string]string
	findErr  error
}

func newMemoryBookingRepository() *memoryBookingRepository {
	return &memoryBookingRepository{
		bookings: map[string]*model.Booking{},
		tokens:   map[string]string{},
	}
}

func (r *memoryBookingRepository) Create(ctx context.Context, b *model.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.tokens[b.CancellationToken]; dup {
		return bookingserrors.ErrDuplicateToken
	}
	r.seq++
	b.ID = fmt.Sprintf("65a000000000000000%06d", r.seq)
	stored := *b
	r.bookings[b.ID] = &stored
	r.tokens[b.CancellationToken] = b.ID
	return nil
}

func (r *memoryBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(id) != 24 {
		return nil, bookingserrors.ErrInvalidID
	}
	b, ok := r.bookings[id]
	if !ok {
		return nil, bookingserrors.ErrNotFound
	}
	out := *b
	return &out, nil
}

func (r *memoryBookingRepository) FindByToken(ctx context.Context, tok string) (*model.Booking, error) {
	r.mu.Lock()
	id, ok := r.tokens[tok]
	r.mu.Unlock()
	if !ok {
		return nil, bookingserrors.ErrNotFound
	}
	return r.FindByID(ctx, id)
}

func (r *memoryBookingRepository) FindOverlapping(ctx context.Context, roomID, date, start, end, excludeID string) ([]*model.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*model.Booking{}
	for _, b := range r.bookings {
		if conflict.Conflicts(b, roomID, date, start, end, excludeID) {
			c := *b
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *memoryBookingRepository) FindActiveByDate(ctx context.Context, date string) ([]*model.Booking, error) {
	return r.Find(ctx, &model.BookingFilter{DateFrom: date, DateTo: date, Status: model.BookingStatusActive, Ascending: true}, 1000, 0)
}

func (r *memoryBookingRepository) Find(ctx context.Context, f *model.BookingFilter, limit int, offset int64) ([]*model.Booking, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	out := []*model.Booking{}
	for _, b := range r.bookings {
		if matches(b, f) {
			c := *b
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		less := a.BookingDate+a.StartTime+a.ID < b.BookingDate+b.StartTime+b.ID
		if f.Ascending {
			return less
		}
		return !less
	})

	if offset >= int64(len(out)) {
		return []*model.Booking{}, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryBookingRepository) Count(ctx context.Context, f *model.BookingFilter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, b := range r.bookings {
		if matches(b, f) {
			n++
		}
	}
	return n, nil
}

func (r *memoryBookingRepository) MarkCancelled(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok {
		return bookingserrors.ErrNotFound
	}
	if !b.IsActive() {
		return bookingserrors.ErrNotActive
	}
	b.Status = model.BookingStatusCancelled
	b.CancelledAt = &at
	return nil
}

func (r *memoryBookingRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return mongotx.Direct().ExecuteTransaction(ctx, fn)
}

func (r *memoryBookingRepository) active(roomID, date string) []*model.Booking {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*model.Booking{}
	for _, b := range r.bookings {
		if b.RoomID == roomID && b.BookingDate == date && b.IsActive() {
			out = append(out, b)
		}
	}
	return out
}

func matches(b *model.Booking, f *model.BookingFilter) bool {
	if f == nil {
		return true
	}
	if f.RoomID != "" && b.RoomID != f.RoomID {
		return false
	}
	if f.UserID != "" && b.UserID != f.UserID {
		return false
	}
	if f.Status != "" && b.Status != f.Status {
		return false
	}
	if f.DateFrom != "" && b.BookingDate < f.DateFrom {
		return false
	}
	if f.DateTo != "" && b.BookingDate > f.DateTo {
		return false
	}
	if nb := f.NotBefore; nb != nil {
		if b.BookingDate < nb.Date || (b.BookingDate == nb.Date && b.StartTime < nb.Clock) {
			return false
		}
	}
	return true
}

type memoryLockRepository struct {
	mu       sync.Mutex
	held     map[string]string
	acquires int
	// alwaysHeld simulates another instance that never lets go.
	alwaysHeld bool
	err        error
}

func newMemoryLockRepository() *memoryLockRepository {
	return &memoryLockRepository{held: map[string]string{}}
}

func (l *memoryLockRepository) Acquire(ctx context.Context, lockID, owner string, ttl time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.acquires++
	if l.err != nil {
		return l.err
	}
	if l.alwaysHeld {
		return bookingserrors.ErrLockHeld
	}
	if _, ok := l.held[lockID]; ok {
		return bookingserrors.ErrLockHeld
	}
	l.held[lockID] = owner
	return nil
}

func (l *memoryLockRepository) Release(ctx context.Context, lockID, owner string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[lockID] == owner {
		delete(l.held, lockID)
	}
	return nil
}

type mockRoomCatalog struct {
	rooms map[string]*model.Room
}

func (m *mockRoomCatalog) FindByID(ctx context.Context, id string) (*model.Room, error) {
	r, ok := m.rooms[id]
	if !ok {
		return nil, roomserrors.ErrNotFound
	}
	return r, nil
}

func (m *mockRoomCatalog) FindByIDs(ctx context.Context, ids []string) ([]*model.Room, error) {
	out := []*model.Room{}
	for _, id := range ids {
		if r, ok := m.rooms[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

type mockUserDirectory struct {
	users map[string]*model.User
}

func (m *mockUserDirectory) FindByIDs(ctx context.Context, ids []string) ([]*model.User, error) {
	out := []*model.User{}
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*model.BookingEvent
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, e *model.BookingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) last() *model.BookingEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) == 0 {
		return nil
	}
	return p.events[len(p.events)-1]
}

type sequenceIssuer struct {
	mu sync.Mutex
	n  int
}

// Issue hands out predictable but well-formed v4 UUIDs.
func (s *sequenceIssuer) Issue() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("00000000-0000-4000-8000-%012d", s.n)
}

// ────────────────────────────────────────────────
// Fixture
// ────────────────────────────────────────────────

type fixture struct {
	svc       BookingService
	repo      *memoryBookingRepository
	locks     *memoryLockRepository
	publisher *recordingPublisher
	clock     *clock.Fixed
	cfg       *config.Config
}

// 2026-05-10 10:30 UTC
var testNow = time.Date(2026, 5, 10, 10, 30, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := newMemoryBookingRepository()
	return newFixtureWith(t, repo, newMemoryLockRepository(), clock.NewFixed(testNow))
}

func newFixtureWith(t *testing.T, repo *memoryBookingRepository, locks *memoryLockRepository, clk *clock.Fixed) *fixture {
	t.Helper()
	log := logger.Discard()
	cfg := &config.Config{
		Log:                log,
		Location:           time.UTC,
		BookingWindowDays:  30,
		MaxBookingDuration: 24 * time.Hour,
		SlotLockTTL:        10 * time.Second,
		SlotLockRetries:    3,
		SlotLockRetryDelay: time.Millisecond,
		PublicBaseURL:      "https://rooms.example.com/",
	}

	rooms := &mockRoomCatalog{rooms: map[string]*model.Room{
		roomBlue:   {ID: roomBlue, Name: "Blue", Capacity: 6, IsActive: true},
		roomGreen:  {ID: roomGreen, Name: "Green", Capacity: 10, IsActive: true},
		roomClosed: {ID: roomClosed, Name: "Closed", Capacity: 4, IsActive: false},
	}}
	users := &mockUserDirectory{users: map[string]*model.User{
		alice.UserID: {ID: alice.UserID, Username: "alice", Email: "alice@example.com", FirstName: "Alice", LastName: "Smith"},
		bob.UserID:   {ID: bob.UserID, Username: "bob", Email: "bob@example.com", FirstName: "Bob", LastName: "Jones"},
		admin.UserID: {ID: admin.UserID, Username: "root", Email: "root@example.com", FirstName: "Root", LastName: "Admin", Role: model.RoleAdmin},
	}}

	v := validator.NewBookingValidator(conflict.NewDetector(repo), validator.Policy{
		WindowDays:  cfg.BookingWindowDays,
		MaxDuration: cfg.MaxBookingDuration,
		Location:    cfg.Location,
	}, log)

	publisher := &recordingPublisher{}
	svc := NewBookingService(repo, locks, v, &sequenceIssuer{}, rooms, users, publisher, clk, cfg)
	return &fixture{svc: svc, repo: repo, locks: locks, publisher: publisher, clock: clk, cfg: cfg}
}

func request(room, date, start, end string) *model.BookingRequest {
	return &model.BookingRequest{RoomID: room, BookingDate: date, StartTime: start, EndTime: end}
}

func mustCreate(t *testing.T, f *fixture, actor *auth.Identity, req *model.BookingRequest) *model.BookingCreated {
	t.Helper()
	created, err := f.svc.Create(context.Background(), req, actor)
	if err != nil {
		t.Fatalf("Create(%+v) unexpected error: %v", req, err)
	}
	return created
}

func expectCode(t *testing.T, err error, code string) *apperrors.AppError {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %T: %v", err, err)
	}
	if appErr.Code != code {
		t.Fatalf("expected code %s, got %s (%s)", code, appErr.Code, appErr.Message)
	}
	return appErr
}

func fieldsOf(t *testing.T, appErr *apperrors.AppError) map[string]string {
	t.Helper()
	fields, ok := appErr.Details["fields"].(map[string]string)
	if !ok {
		if fe, ok := appErr.Details["fields"].(validator.FieldErrors); ok {
			return fe
		}
		t.Fatalf("details.fields has unexpected type %T", appErr.Details["fields"])
	}
	return fields
}

// ────────────────────────────────────────────────
// Create
// ────────────────────────────────────────────────

func TestCreate_Success(t *testing.T) {
	f := newFixture(t)
	req := request(roomBlue, "2026-05-11", "09:00", "10:00")
	req.Purpose = "  Weekly sync  \n"

	created := mustCreate(t, f, alice, req)

	if created.Status != "success" {
		t.Errorf("status = %q, want success", created.Status)
	}
	if !token.WellFormed(created.CancellationToken) {
		t.Errorf("token %q is not a v4 UUID", created.CancellationToken)
	}
	if created.CancellationURL != "/cancel/"+created.CancellationToken {
		t.Errorf("cancellation_url = %q", created.CancellationURL)
	}

	b := created.Booking
	if b.ID == "" || b.ID != created.ID {
		t.Errorf("booking id = %q, created id = %q", b.ID, created.ID)
	}
	if b.Status != model.BookingStatusActive {
		t.Errorf("status = %q, want active", b.Status)
	}
	if !b.CreatedAt.Equal(testNow) {
		t.Errorf("created_at = %v, want %v", b.CreatedAt, testNow)
	}
	if b.Purpose != "Weekly sync" {
		t.Errorf("purpose = %q, want sanitized", b.Purpose)
	}
	if b.RoomName != "Blue" || b.UserName != "Smith Alice" || b.UserUsername != "alice" {
		t.Errorf("unexpected enrichment: room=%q user=%q username=%q", b.RoomName, b.UserName, b.UserUsername)
	}
	if !b.CanCancel {
		t.Error("new future booking should be cancellable")
	}
	if b.DurationMinutes != 60 {
		t.Errorf("duration = %d, want 60", b.DurationMinutes)
	}

	stored, _ := f.repo.FindByID(context.Background(), created.ID)
	if stored.CancellationToken != created.CancellationToken {
		t.Error("stored token differs from the one returned")
	}

	ev := f.publisher.last()
	if ev == nil || ev.Type != model.EventBookingCreated {
		t.Fatalf("expected booking.created event, got %+v", ev)
	}
	if ev.CancellationURL != "https://rooms.example.com/cancel/"+created.CancellationToken {
		t.Errorf("event cancellation url = %q", ev.CancellationURL)
	}
	if ev.UserEmail != "alice@example.com" || ev.RoomName != "Blue" {
		t.Errorf("event not enriched: %+v", ev)
	}
}

func TestCreate_ReleasesLocks(t *testing.T) {
	f := newFixture(t)
	mustCreate(t, f, alice, request(roomBlue, "2026-05-11", "09:00", "10:00"))
	_, _ = f.svc.Create(context.Background(), request(roomBlue, "2026-05-11", "09:30", "10:30"), alice)

	if len(f.locks.held) != 0 {
		t.Errorf("advisory locks still held: %v", f.locks.held)
	}
	if n := f.svc.(*bookingService).locks.size(); n != 0 {
		t.Errorf("keyed mutex still tracks %d keys", n)
	}
}

func TestCreate_RequiresIdentity(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), request(roomBlue, "2026-05-11", "09:00", "10:00"), nil)
	expectCode(t, err, apperrors.CodeUnauthorized)
}

func TestCreate_ShapeErrors(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name  string
		req   *model.BookingRequest
		field string
	}{
		{name: "missing room", req: request("", "2026-05-11", "09:00", "10:00"), field: "room_id"},
		{name: "bad date", req: request(roomBlue, "11.05.2026", "09:00", "10:00"), field: "booking_date"},
		{name: "bad start", req: request(roomBlue, "2026-05-11", "9:00", "10:00"), field: "start_time"},
		{name: "bad end", req: request(roomBlue, "2026-05-11", "09:00", "25:00"), field: "end_time"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(context.Background(), tt.req, alice)
			appErr := expectCode(t, err, apperrors.CodeValidation)
			if _, ok := fieldsOf(t, appErr)[tt.field]; !ok {
				t.Errorf("expected error on %s, got %v", tt.field, appErr.Details)
			}
		})
	}
}

func TestCreate_RoomRules(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), request(roomNone, "2026-05-11", "09:00", "10:00"), alice)
	appErr := expectCode(t, err, apperrors.CodeValidation)
	if fieldsOf(t, appErr)["room_id"] != "Room not found" {
		t.Errorf("unexpected fields %v", appErr.Details)
	}

	_, err = f.svc.Create(context.Background(), request(roomClosed, "2026-05-11", "09:00", "10:00"), alice)
	appErr = expectCode(t, err, apperrors.CodeValidation)
	if fieldsOf(t, appErr)["room_id"] != "Room is not available for booking" {
		t.Errorf("unexpected fields %v", appErr.Details)
	}
}

func TestCreate_PolicyRules(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name  string
		req   *model.BookingRequest
		field string
		ok    bool
	}{
		{name: "yesterday", req: request(roomBlue, "2026-05-09", "09:00", "10:00"), field: "booking_date"},
		{name: "earlier today", req: request(roomBlue, "2026-05-10", "10:00", "11:00"), field: "start_time"},
		{name: "later today", req: request(roomBlue, "2026-05-10", "10:30", "11:00"), ok: true},
		{name: "last day of window", req: request(roomBlue, "2026-06-09", "09:00", "10:00"), ok: true},
		{name: "beyond window", req: request(roomBlue, "2026-06-10", "09:00", "10:00"), field: "booking_date"},
		{name: "reversed", req: request(roomGreen, "2026-05-12", "10:00", "09:00"), field: "end_time"},
		{name: "zero length", req: request(roomGreen, "2026-05-12", "10:00", "10:00"), field: "end_time"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(context.Background(), tt.req, alice)
			if tt.ok {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			appErr := expectCode(t, err, apperrors.CodeValidation)
			if _, ok := fieldsOf(t, appErr)[tt.field]; !ok {
				t.Errorf("expected error on %s, got %v", tt.field, appErr.Details)
			}
		})
	}
}

func TestCreate_Conflict(t *testing.T) {
	f := newFixture(t)
	mustCreate(t, f, alice, request(roomBlue, "2026-05-11", "09:00", "10:00"))

	_, err := f.svc.Create(context.Background(), request(roomBlue, "2026-05-11", "09:30", "10:30"), bob)
	appErr := expectCode(t, err, apperrors.CodeValidation)
	if msg := fieldsOf(t, appErr)["time"]; msg != "This room is already booked from 09:00 to 10:00" {
		t.Errorf("time error = %q", msg)
	}
	c, ok := appErr.Details["conflict"].(map[string]string)
	if !ok || c["start_time"] != "09:00" || c["end_time"] != "10:00" {
		t.Errorf("details.conflict = %v", appErr.Details["conflict"])
	}
}

func TestCreate_AdjacentAndOtherRoomsDoNotConflict(t *testing.T) {
	f := newFixture(t)
	mustCreate(t, f, alice, request(roomBlue, "2026-05-11", "09:00", "10:00"))
	mustCreate(t, f, bob, request(roomBlue, "2026-05-11", "10:00", "11:00"))
	mustCreate(t, f, bob, request(roomBlue, "2026-05-11", "08:00", "09:00"))
	mustCreate(t, f, bob, request(roomGreen, "2026-05-11", "09:00", "10:00"))
	mustCreate(t, f, bob, request(roomBlue, "2026-05-12", "09:00", "10:00"))

	if n := len(f.repo.active(roomBlue, "2026-05-11")); n != 3 {
		t.Errorf("expected 3 active bookings in Blue, got %d", n)
	}
}

func TestCreate_CancelledBookingFreesSlot(t *testing.T) {
	f := newFixture(t)
	created := mustCreate(t, f, alice, request(roomBlue, "2026-05-11", "09:00", "10:00"))
	if _, err := f.svc.Cancel(context.Background(), created.ID, alice); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	mustCreate(t, f, bob, request(roomBlue, "2026-05-11", "09:00", "10:00"))
}

func TestCreate_LockContention(t *testing.T) {
	f := newFixture(t)
	f.locks.alwaysHeld = true

	_, err := f.svc.Create(context.Background(), request(roomBlue, "2026-05-11", "09:00", "10:00"), alice)
	expectCode(t, err, apperrors.CodeConflict)

	if want := f.cfg.SlotLockRetries + 1; f.locks.acquires != want {
		t.Errorf("acquire attempts = %d, want %d", f.locks.acquires, want)
	}
	if n := len(f.repo.active(roomBlue, "2026-05-11")); n != 0 {
		t.Errorf("nothing should be stored, got %d", n)
	}
}

func TestCreate_LockStoreDown(t *testing.T) {
	f := newFixture(t)
	cause := errors.New("server selection error: context deadline exceeded")
	f.locks.err = cause

	_, err := f.svc.Create(context.Background(), request(roomBlue, "2026-05-11", "09:00", "10:00"), alice)
	appErr := expectCode(t, err, apperrors.CodeUnavailable)
	if appErr.HTTPStatus != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", appErr.HTTPStatus)
	}
	if !errors.Is(err, cause) {
		t.Error("store failure should stay in the error chain")
	}
	if f.locks.acquires != 1 {
		t.Errorf("store failures are not contention, got %d attempts", f.locks.acquires)
	}
}

func TestCreate_LockWaitHonoursContext(t *testing.T) {
	f := newFixture(t)
	f.locks.alwaysHeld = true
	f.cfg.SlotLockRetryDelay = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := f.svc.Create(ctx, request(roomBlue, "2026-05-11", "09:00", "10:00"), alice)
	expectCode(t, err, apperrors.CodeTimeout)
}

func TestCreate_PublishFailureDoesNotFail(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = errors.New("broker down")

	mustCreate(t, f, alice, request(roomBlue, "2026-05-11", "09:00", "10:00"))
	if n := len(f.repo.active(roomBlue, "2026-05-11")); n != 1 {
		t.Errorf("expected booking to be stored, got %d", n)
	}
}

func TestCreate_ConcurrentOverlappingRequests(t *testing.T) {
	f := newFixture(t)
	const workers = 25

	var wg sync.WaitGroup
	var mu sync.Mutex
	var successes int
	var failures []error

	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			// Every window overlaps 09:30-10:00.
			req := request(roomBlue, "2026-05-11", fmt.Sprintf("09:%02d", i), "10:00")
			_, err := f.svc.Create(context.Background(), req, alice)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
			} else {
				failures = append(failures, err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	if successes != 1 {
		t.Fatalf("expected exactly one booking to win, got %d", successes)
	}
	for _, err := range failures {
		if !apperrors.HasCode(err, apperrors.CodeValidation) {
			t.Errorf("loser should see a conflict, got %v", err)
		}
	}
	if n := len(f.repo.active(roomBlue, "2026-05-11")); n != 1 {
		t.Errorf("expected one active booking, got %d", n)
	}
}

func TestCreate_ConcurrentAcrossInstances(t *testing.T) {
	repo := newMemoryBookingRepository()
	locks := newMemoryLockRepository()
	clk := clock.NewFixed(testNow)
	first := newFixtureWith(t, repo, locks, clk)
	second := newFixtureWith(t, repo, locks, clk)
	first.cfg.SlotLockRetries = 50
	second.cfg.SlotLockRetries = 50

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		svc := first.svc
		if i%2 == 1 {
			svc = second.svc
		}
		wg.Add(1)
		go func(svc BookingService) {
			defer wg.Done()
			_, err := svc.Create(context.Background(), request(roomGreen, "2026-05-11", "14:00", "15:00"), bob)
			errs <- err
		}(svc)
	}
	wg.Wait()
	close(errs)

	var won int
	for err := range errs {
		switch {
		case err == nil:
			won++
		case apperrors.HasCode(err, apperrors.CodeValidation), apperrors.HasCode(err, apperrors.CodeConflict):
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if won != 1 {
		t.Errorf("expected exactly one winner across instances, got %d", won)
	}
	if n := len(repo.active(roomGreen, "2026-05-11")); n != 1 {
		t.Errorf("expected one active booking, got %d", n)
	}
}

// ────────────────────────────────────────────────
// Cancel
// ────────────────────────────────────────────────

func TestCancel_ByOwner(t *testing.T) {
	f := newFixture(t)
	created := mustCreate(t, f, alice, request(roomBlue, "2026-05-11", "09:00", "10:00"))

	res, err := f.svc.Cancel(context.Background(), created.ID, alice)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != "success" || res.Booking.Status != model.BookingStatusCancelled {
		t.Errorf("unexpected result %+v", res)
	}
	if res.Booking.CanCancel {
		t.Error("cancelled booking must not be cancellable")
	}

	stored, _ := f.repo.FindByID(context.Background(), created.ID)
	if stored.CancelledAt == nil || !stored.CancelledAt.Equal(testNow) {
		t.Errorf("cancelled_at = %v, want %v", stored.CancelledAt, testNow)
	}

	ev := f.publisher.last()
	if ev.Type != model.EventBookingCancelled || ev.CancelledVia != model.CancelledByOwner {
		t.Errorf("unexpected event %+v", ev)
	}
	if ev.CancellationURL != "" {
		t.Error("cancel events must not carry the magic link")
	}

	_, err = f.svc.Cancel(context.Background(), created.ID, alice)
	expectCode(t, err, apperrors.CodeNotCancellable)
}

func TestCancel_Authorization(t *testing.T) {
	f := newFixture(t)
	created := mustCreate(t, f, alice, request(roomBlue, "2026-05-11", "09:00", "10:00"))

	_, err := f.svc.Cancel(context.Background(), created.ID, nil)
	expectCode(t, err, apperrors.CodeUnauthorized)

	_, err = f.svc.Cancel(context.Background(), created.ID, bob)
	expectCode(t, err, apperrors.CodeForbidden)

	stored, _ := f.repo.FindByID(context.Background(), created.ID)
	if !stored.IsActive() {
		t.Fatal("forbidden cancel must not change the booking")
	}

	if _, err := f.svc.Cancel(context.Background(), created.ID, admin); err != nil {
		t.Fatalf("admin cancel: %v", err)
	}
	if ev := f.publisher.last(); ev.CancelledVia != model.CancelledByAdmin {
		t.Errorf("cancelled_via = %q, want admin", ev.CancelledVia)
	}
}

func TestCancel_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Cancel(context.Background(), "65a000000000000000999999", alice)
	expectCode(t, err, apperrors.CodeNotFound)

	_, err = f.svc.Cancel(context.Background(), "not-an-id", alice)
	expectCode(t, err, apperrors.CodeNotFound)
}

func TestCancel_StartBoundary(t *testing.T) {
	f := newFixture(t)
	created := mustCreate(t, f, alice, request(roomBlue, "2026-05-10", "11:00", "12:00"))

	f.clock.Set(time.Date(2026, 5, 10, 10, 59, 0, 0, time.UTC))
	view, err := f.svc.GetByID(context.Background(), created.ID, alice)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !view.CanCancel {
		t.Error("one minute before start should be cancellable")
	}

	f.clock.Set(time.Date(2026, 5, 10, 11, 0, 0, 0, time.UTC))
	_, err = f.svc.Cancel(context.Background(), created.ID, alice)
	expectCode(t, err, apperrors.CodeNotCancellable)

	_, err = f.svc.Cancel(context.Background(), created.ID, admin)
	expectCode(t, err, apperrors.CodeNotCancellable)
}

func TestCancel_ConcurrentCancelsOneWins(t *testing.T) {
	f := newFixture(t)
	created := mustCreate(t, f, alice, request(roomBlue, "2026-05-11", "09:00", "10:00"))

	const workers = 10
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.CancelByToken(context.Background(), created.CancellationToken)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var ok int
	for err := range results {
		if err == nil {
			ok++
			continue
		}
		if !apperrors.HasCode(err, apperrors.CodeNotCancellable) {
			t.Errorf("loser should see NOT_CANCELLABLE, got %v", err)
		}
	}
	if ok != 1 {
		t.Errorf("expected exactly one successful cancel, got %d", ok)
	}
}

// ────────────────────────────────────────────────
// Token access
// ────────────────────────────────────────────────

func TestCancelByToken(t *testing.T) {
	f := newFixture(t)
	created := mustCreate(t, f, alice, request(roomBlue, "2026-05-11", "09:00", "10:00"))

	tests := []struct {
		name  string
		token string
	}{
		{name: "malformed", token: "definitely-not-a-token"},
		{name: "empty", token: ""},
		{name: "wrong version", token: "00000000-0000-1000-8000-000000000001"},
		{name: "unknown", token: "00000000-0000-4000-8000-999999999999"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CancelByToken(context.Background(), tt.token)
			appErr := expectCode(t, err, apperrors.CodeNotFound)
			if appErr.Message != "Booking not found" {
				t.Errorf("message should not reveal why: %q", appErr.Message)
			}
		})
	}

	res, err := f.svc.CancelByToken(context.Background(), created.CancellationToken)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Booking.Status != model.BookingStatusCancelled {
		t.Errorf("status = %q", res.Booking.Status)
	}
	if ev := f.publisher.last(); ev.CancelledVia != model.CancelledByToken {
		t.Errorf("cancelled_via = %q, want token", ev.CancelledVia)
	}

	_, err = f.svc.CancelByToken(context.Background(), created.CancellationToken)
	expectCode(t, err, apperrors.CodeNotCancellable)
}

func TestCancelByToken_PastBooking(t *testing.T) {
	f := newFixture(t)
	created := mustCreate(t, f, alice, request(roomBlue, "2026-05-11", "09:00", "10:00"))
	f.clock.Advance(48 * time.Hour)

	_, err := f.svc.CancelByToken(context.Background(), created.CancellationToken)
	expectCode(t, err, apperrors.CodeNotCancellable)
}

func TestGetByToken(t *testing.T) {
	f := newFixture(t)
	created := mustCreate(t, f, alice, request(roomBlue, "2026-05-11", "09:00", "10:00"))

	view, err := f.svc.GetByToken(context.Background(), created.CancellationToken)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.ID != created.ID || view.RoomName != "Blue" || !view.CanCancel {
		t.Errorf("unexpected view %+v", view)
	}

	_, err = f.svc.GetByToken(context.Background(), "nope")
	expectCode(t, err, apperrors.CodeNotFound)
}

func TestGetByID_Visibility(t *testing.T) {
	f := newFixture(t)
	created := mustCreate(t, f, alice, request(roomBlue, "2026-05-11", "09:00", "10:00"))

	if _, err := f.svc.GetByID(context.Background(), created.ID, alice); err != nil {
		t.Errorf("owner: %v", err)
	}
	if _, err := f.svc.GetByID(context.Background(), created.ID, admin); err != nil {
		t.Errorf("admin: %v", err)
	}
	_, err := f.svc.GetByID(context.Background(), created.ID, bob)
	expectCode(t, err, apperrors.CodeNotFound)
}

// ────────────────────────────────────────────────
// Listing
// ────────────────────────────────────────────────

func seedListing(t *testing.T, f *fixture) {
	t.Helper()
	mustCreate(t, f, alice, request(roomBlue, "2026-05-10", "11:00", "12:00"))
	mustCreate(t, f, alice, request(roomBlue, "2026-05-12", "09:00", "10:00"))
	mustCreate(t, f, alice, request(roomGreen, "2026-05-11", "09:00", "10:00"))
	mustCreate(t, f, bob, request(roomGreen, "2026-05-11", "10:00", "11:00"))
}

func TestListMine(t *testing.T) {
	f := newFixture(t)
	seedListing(t, f)

	views, total, err := f.svc.ListMine(context.Background(), alice, "", false, 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 3 || len(views) != 3 {
		t.Fatalf("expected 3 bookings, got %d (total %d)", len(views), total)
	}
	want := []string{"2026-05-10", "2026-05-11", "2026-05-12"}
	for i, v := range views {
		if v.BookingDate != want[i] {
			t.Errorf("position %d: date %s, want %s", i, v.BookingDate, want[i])
		}
		if v.UserID != alice.UserID {
			t.Errorf("foreign booking leaked: %+v", v.Booking)
		}
	}

	// 11:00 today has started once the clock reaches 11:00.
	f.clock.Set(time.Date(2026, 5, 10, 11, 1, 0, 0, time.UTC))
	views, _, err = f.svc.ListMine(context.Background(), alice, "", true, 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(views) != 2 || views[0].BookingDate != "2026-05-11" {
		t.Errorf("future_only returned %d bookings", len(views))
	}

	_, _, err = f.svc.ListMine(context.Background(), alice, "pending", false, 20, 0)
	expectCode(t, err, apperrors.CodeValidation)
}

func TestList_ScopedForUsers(t *testing.T) {
	f := newFixture(t)
	seedListing(t, f)

	views, total, err := f.svc.List(context.Background(), &model.BookingFilter{UserID: alice.UserID}, bob, 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || views[0].UserID != bob.UserID {
		t.Errorf("non-admin must only see own bookings, got %d", total)
	}

	views, total, err = f.svc.List(context.Background(), &model.BookingFilter{RoomID: roomGreen}, admin, 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 {
		t.Errorf("admin filtered by room: got %d, want 2", total)
	}
	if views[0].StartTime != "10:00" {
		t.Errorf("expected newest first, got %s", views[0].StartTime)
	}

	_, _, err = f.svc.List(context.Background(), &model.BookingFilter{DateFrom: "yesterday"}, alice, 20, 0)
	expectCode(t, err, apperrors.CodeValidation)
}

func TestListAll(t *testing.T) {
	f := newFixture(t)
	seedListing(t, f)

	_, _, err := f.svc.ListAll(context.Background(), nil, alice, 20, 0)
	expectCode(t, err, apperrors.CodeForbidden)

	views, total, err := f.svc.ListAll(context.Background(), &model.BookingFilter{DateFrom: "2026-05-11", DateTo: "2026-05-11"}, admin, 1, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 || len(views) != 1 {
		t.Errorf("expected page of 1 from total 2, got %d/%d", len(views), total)
	}
}

func TestList_StorageFailure(t *testing.T) {
	f := newFixture(t)
	f.repo.findErr = errors.New("connection reset")

	_, _, err := f.svc.ListMine(context.Background(), alice, "", false, 20, 0)
	appErr := expectCode(t, err, apperrors.CodeInternal)
	if appErr.Message == "connection reset" {
		t.Error("storage cause must not be the public message")
	}
}

// ────────────────────────────────────────────────
// Helpers
// ────────────────────────────────────────────────

func TestCanCancel(t *testing.T) {
	b := &model.Booking{Status: model.BookingStatusActive, BookingDate: "2026-05-10", StartTime: "11:00", EndTime: "12:00"}
	tests := []struct {
		name   string
		status string
		now    time.Time
		want   bool
	}{
		{name: "before start", status: model.BookingStatusActive, now: time.Date(2026, 5, 10, 10, 59, 59, 0, time.UTC), want: true},
		{name: "at start", status: model.BookingStatusActive, now: time.Date(2026, 5, 10, 11, 0, 0, 0, time.UTC), want: false},
		{name: "in progress", status: model.BookingStatusActive, now: time.Date(2026, 5, 10, 11, 30, 0, 0, time.UTC), want: false},
		{name: "cancelled", status: model.BookingStatusCancelled, now: time.Date(2026, 5, 9, 0, 0, 0, 0, time.UTC), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := *b
			c.Status = tt.status
			if got := CanCancel(&c, tt.now, time.UTC); got != tt.want {
				t.Errorf("CanCancel = %v, want %v", got, tt.want)
			}
		})
	}

	if CanCancel(nil, testNow, time.UTC) {
		t.Error("nil booking is never cancellable")
	}
}

func TestCanCancel_TimeZone(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	b := &model.Booking{Status: model.BookingStatusActive, BookingDate: "2026-05-10", StartTime: "12:00", EndTime: "13:00"}

	// 12:00 at UTC+3 is 09:00 UTC.
	if CanCancel(b, time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC), loc) {
		t.Error("booking has started in its own zone")
	}
	if !CanCancel(b, time.Date(2026, 5, 10, 8, 59, 0, 0, time.UTC), loc) {
		t.Error("booking has not started yet")
	}

	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// Daylight saving starts at 02:00 on 2026-03-08; 04:00 EDT is after a 03:30 start.
	started := &model.Booking{Status: model.BookingStatusActive, BookingDate: "2026-03-08", StartTime: "03:30", EndTime: "05:00"}
	now := time.Date(2026, 3, 8, 4, 0, 0, 0, ny)
	if CanCancel(started, now, ny) {
		t.Error("booking that started at 03:30 must not be cancellable at 04:00 local")
	}
	later := &model.Booking{Status: model.BookingStatusActive, BookingDate: "2026-03-08", StartTime: "04:30", EndTime: "05:00"}
	if !CanCancel(later, now, ny) {
		t.Error("booking at 04:30 local has not started at 04:00")
	}
}

func TestKeyedMutex(t *testing.T) {
	k := newKeyedMutex()
	var counter int
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("room|date")
			defer unlock()
			v := counter
			time.Sleep(time.Microsecond)
			counter = v + 1
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Errorf("counter = %d, want 50", counter)
	}
	if k.size() != 0 {
		t.Errorf("expected keys to be released, %d left", k.size())
	}

	unlockA := k.Lock("a")
	unlockB := k.Lock("b")
	unlockB()
	unlockA()
}
