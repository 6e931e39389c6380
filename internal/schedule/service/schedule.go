package service

import (
	"context"
	"sort"
	"strings"
	"sync"

	bookingservice "roomly/internal/bookings/service"
	"roomly/pkg/auth"
	"roomly/pkg/clock"
	"roomly/pkg/config"
	apperrors "roomly/pkg/errors"
	"roomly/pkg/model"
)

type RoomLister interface {
	Find(ctx context.Context, filter *model.RoomFilter, limit int, offset int64) ([]*model.Room, error)
}

type BookingSource interface {
	FindActiveByDate(ctx context.Context, date string) ([]*model.Booking, error)
}

type UserDirectory interface {
	FindByIDs(ctx context.Context, ids []string) ([]*model.User, error)
}

type ScheduleService interface {
	// GetSchedule projects the active bookings of date onto every active room.
	// An empty date means today in the configured time zone.
	GetSchedule(ctx context.Context, date string, viewer *auth.Identity) (*model.ScheduleView, error)
}

type scheduleService struct {
	rooms    RoomLister
	bookings BookingSource
	users    UserDirectory
	clock    clock.Clock
	cfg      *config.Config
}

func NewScheduleService(
	rooms RoomLister,
	bookings BookingSource,
	users UserDirectory,
	clk clock.Clock,
	cfg *config.Config,
) ScheduleService {
	return &scheduleService{
		rooms:    rooms,
		bookings: bookings,
		users:    users,
		clock:    clk,
		cfg:      cfg,
	}
}

func (s *scheduleService) GetSchedule(ctx context.Context, date string, viewer *auth.Identity) (*model.ScheduleView, error) {
	if viewer == nil {
		return nil, apperrors.Unauthorized("Authentication required")
	}

	now := s.clock.Now().In(s.cfg.Location)
	date = strings.TrimSpace(date)
	if date == "" {
		date = model.FormatDate(now)
	} else if _, err := model.ParseDate(date, s.cfg.Location); err != nil {
		return nil, apperrors.InvalidInput("Invalid date format. Use YYYY-MM-DD")
	}

	active := true
	var rooms []*model.Room
	var bookings []*model.Booking
	var errRooms, errBookings error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		rooms, errRooms = s.rooms.Find(ctx, &model.RoomFilter{IsActive: &active}, 0, 0)
	}()

	go func() {
		defer wg.Done()
		bookings, errBookings = s.bookings.FindActiveByDate(ctx, date)
	}()

	wg.Wait()
	if errRooms != nil {
		s.cfg.Log.Error("Failed to list rooms for schedule", "date", date, "error", errRooms)
		return nil, apperrors.Internal("Failed to retrieve schedule", errRooms)
	}
	if errBookings != nil {
		s.cfg.Log.Error("Failed to list bookings for schedule", "date", date, "error", errBookings)
		return nil, apperrors.Internal("Failed to retrieve schedule", errBookings)
	}

	owners, err := s.owners(ctx, bookings)
	if err != nil {
		s.cfg.Log.Error("Failed to resolve booking owners", "date", date, "error", err)
		return nil, apperrors.Internal("Failed to retrieve schedule", err)
	}

	byRoom := make(map[string][]*model.ScheduleSlot, len(rooms))
	for _, b := range bookings {
		if !b.IsActive() {
			continue
		}
		slot := &model.ScheduleSlot{
			BookingID:    b.ID,
			StartTime:    b.StartTime,
			EndTime:      b.EndTime,
			Status:       model.SlotStatusBooked,
			IsOwnBooking: b.UserID == viewer.UserID,
			Purpose:      b.Purpose,
			CanCancel:    bookingservice.CanCancel(b, now, s.cfg.Location),
		}
		if owner, ok := owners[b.UserID]; ok {
			slot.OwnerName = owner.FullName()
			slot.OwnerUsername = owner.Username
		}
		byRoom[b.RoomID] = append(byRoom[b.RoomID], slot)
	}

	sort.SliceStable(rooms, func(i, j int) bool { return rooms[i].Name < rooms[j].Name })

	view := &model.ScheduleView{Date: date, Rooms: make([]*model.ScheduleRoom, 0, len(rooms))}
	for _, room := range rooms {
		slots := byRoom[room.ID]
		if slots == nil {
			slots = []*model.ScheduleSlot{}
		}
		sort.SliceStable(slots, func(i, j int) bool { return slots[i].StartTime < slots[j].StartTime })

		equipment := room.Equipment
		if equipment == nil {
			equipment = []string{}
		}
		view.Rooms = append(view.Rooms, &model.ScheduleRoom{
			ID:          room.ID,
			Name:        room.Name,
			Capacity:    room.Capacity,
			Description: room.Description,
			Floor:       room.Floor,
			Equipment:   equipment,
			Slots:       slots,
		})
	}

	s.cfg.Log.Debug("Schedule assembled", "date", date, "rooms", len(view.Rooms), "bookings", len(bookings))
	return view, nil
}

func (s *scheduleService) owners(ctx context.Context, bookings []*model.Booking) (map[string]*model.User, error) {
	seen := make(map[string]struct{}, len(bookings))
	ids := make([]string, 0, len(bookings))
	for _, b := range bookings {
		if _, ok := seen[b.UserID]; !ok {
			seen[b.UserID] = struct{}{}
			ids = append(ids, b.UserID)
		}
	}

	out := make(map[string]*model.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	users, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}
