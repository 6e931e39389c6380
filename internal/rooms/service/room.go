package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	roomserrors "roomly/internal/rooms/errors"
	"roomly/internal/rooms/repository"
	"roomly/internal/rooms/validator"
	"roomly/pkg/auth"
	"roomly/pkg/config"
	apperrors "roomly/pkg/errors"
	"roomly/pkg/model"
	"roomly/pkg/sanitizer"
)

// BookingCounter reports how many bookings match a filter. Rooms that are
// referenced by bookings cannot be deleted.
type BookingCounter interface {
	Count(ctx context.Context, filter *model.BookingFilter) (int64, error)
}

type RoomService interface {
	Create(ctx context.Context, room *model.Room, actor *auth.Identity) error
	GetByID(ctx context.Context, id string, actor *auth.Identity) (*model.Room, error)
	List(ctx context.Context, filter *model.RoomFilter, actor *auth.Identity, limit int, offset int64) ([]*model.Room, int64, error)
	Update(ctx context.Context, id string, updates *model.RoomUpdate, actor *auth.Identity) (*model.Room, error)
	Delete(ctx context.Context, id string, actor *auth.Identity) error
}

type roomService struct {
	repo      repository.RoomRepository
	bookings  BookingCounter
	validator *validator.RoomValidator
	cfg       *config.Config
}

func NewRoomService(
	repo repository.RoomRepository,
	bookings BookingCounter,
	validator *validator.RoomValidator,
	cfg *config.Config,
) RoomService {
	return &roomService{
		repo:      repo,
		bookings:  bookings,
		validator: validator,
		cfg:       cfg,
	}
}

func (s *roomService) Create(ctx context.Context, room *model.Room, actor *auth.Identity) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}

	room.ID = ""
	room.CreatedBy = actor.UserID
	s.sanitize(room)

	if err := s.validate(s.validator.Validate(room), "name", room.Name); err != nil {
		return err
	}

	if err := s.repo.Create(ctx, room); err != nil {
		return s.writeError("create", room.Name, err)
	}

	s.cfg.Log.Info("Room created successfully",
		"id", room.ID,
		"name", room.Name,
		"capacity", room.Capacity,
		"created_by", room.CreatedBy,
	)
	return nil
}

func (s *roomService) GetByID(ctx context.Context, id string, actor *auth.Identity) (*model.Room, error) {
	if actor == nil {
		return nil, apperrors.Unauthorized("Authentication required")
	}

	room, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !room.IsActive && !actor.IsAdmin() {
		return nil, apperrors.NotFoundWithID("Room", id)
	}
	return room, nil
}

func (s *roomService) List(ctx context.Context, filter *model.RoomFilter, actor *auth.Identity, limit int, offset int64) ([]*model.Room, int64, error) {
	if actor == nil {
		return nil, 0, apperrors.Unauthorized("Authentication required")
	}

	f := model.RoomFilter{}
	if filter != nil {
		f = *filter
	}
	if !actor.IsAdmin() {
		active := true
		if f.IsActive != nil && !*f.IsActive {
			return []*model.Room{}, 0, nil
		}
		f.IsActive = &active
	}
	if f.CapacityMin != nil && f.CapacityMax != nil && *f.CapacityMin > *f.CapacityMax {
		return nil, 0, apperrors.FieldValidation("Invalid room filter", map[string]string{
			"capacity_min": "capacity_min cannot be greater than capacity_max",
		})
	}

	var count int64
	var rooms []*model.Room
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.Count(ctx, &f)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count rooms", "error", errCount)
			errCount = apperrors.Internal("Failed to count rooms", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		rooms, errFind = s.repo.Find(ctx, &f, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list rooms", "limit", limit, "offset", offset, "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve rooms", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}
	return rooms, count, nil
}

// Update applies a partial change. Deactivating a room stops new bookings only;
// existing bookings stay active and cancellable.
func (s *roomService) Update(ctx context.Context, id string, updates *model.RoomUpdate, actor *auth.Identity) (*model.Room, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if updates == nil {
		return nil, apperrors.InvalidInput("Room update cannot be empty")
	}

	if err := s.validate(s.validator.ValidateUpdate(updates), "id", id); err != nil {
		return nil, err
	}

	existing, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	merged := mergeRoomUpdates(existing, updates)
	s.sanitize(merged)
	if err := s.validate(s.validator.Validate(merged), "id", id); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, id, merged); err != nil {
		return nil, s.writeError("update", merged.Name, err)
	}

	s.cfg.Log.Info("Room updated successfully", "id", id, "is_active", merged.IsActive)
	return merged, nil
}

func (s *roomService) Delete(ctx context.Context, id string, actor *auth.Identity) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}

	if _, err := s.find(ctx, id); err != nil {
		return err
	}

	referenced, err := s.bookings.Count(ctx, &model.BookingFilter{RoomID: id})
	if err != nil {
		s.cfg.Log.Error("Failed to count room bookings", "id", id, "error", err)
		return apperrors.Internal("Failed to delete room", err)
	}
	if referenced > 0 {
		s.cfg.Log.Warn("Refusing to delete room with bookings", "id", id, "bookings", referenced)
		return apperrors.Conflict("Room has bookings and cannot be deleted; deactivate it instead").
			WithDetails(map[string]any{"bookings": referenced})
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return s.writeError("delete", id, err)
	}

	s.cfg.Log.Info("Room deleted successfully", "id", id)
	return nil
}

// --- Helpers ---

func requireAdmin(actor *auth.Identity) error {
	if actor == nil {
		return apperrors.Unauthorized("Authentication required")
	}
	if !actor.IsAdmin() {
		return apperrors.Forbidden("Administrator role required")
	}
	return nil
}

func (s *roomService) find(ctx context.Context, id string) (*model.Room, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperrors.InvalidInput("Room ID cannot be empty")
	}

	room, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, roomserrors.ErrNotFound) || errors.Is(err, roomserrors.ErrInvalidID) {
			return nil, apperrors.NotFoundWithID("Room", id)
		}
		s.cfg.Log.Error("Failed to retrieve room", "id", id, "error", err)
		return nil, apperrors.Internal("Failed to retrieve room", err)
	}
	return room, nil
}

func (s *roomService) sanitize(room *model.Room) {
	room.Name = sanitizer.NormalizeName(room.Name)
	room.Description = sanitizer.NormalizeText(room.Description)
	room.Equipment = sanitizer.SanitizeEquipment(room.Equipment)
}

func (s *roomService) validate(err error, key, value string) error {
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		s.cfg.Log.Warn("Room validation failed", key, value, "error", err)
		return apperrors.FieldValidation("Room validation failed", verrs.Fields())
	}
	return apperrors.Internal("Failed to validate room", err)
}

func (s *roomService) writeError(op, subject string, err error) error {
	switch {
	case errors.Is(err, roomserrors.ErrDuplicateName):
		return apperrors.FieldValidation("Room validation failed", map[string]string{
			"name": "A room with this name already exists",
		})
	case errors.Is(err, roomserrors.ErrNotFound), errors.Is(err, roomserrors.ErrInvalidID):
		return apperrors.NotFound("Room")
	}
	s.cfg.Log.Error("Failed to "+op+" room", "subject", subject, "error", err)
	return apperrors.Internal("Failed to "+op+" room", err)
}

func mergeRoomUpdates(existing *model.Room, updates *model.RoomUpdate) *model.Room {
	merged := *existing

	if updates.Name != nil {
		merged.Name = *updates.Name
	}
	if updates.Capacity != nil {
		merged.Capacity = *updates.Capacity
	}
	if updates.Description != nil {
		merged.Description = *updates.Description
	}
	if updates.Floor != nil {
		floor := *updates.Floor
		merged.Floor = &floor
	}
	if updates.Equipment != nil {
		merged.Equipment = append([]string(nil), (*updates.Equipment)...)
	}
	if updates.IsActive != nil {
		merged.IsActive = *updates.IsActive
	}

	return &merged
}
