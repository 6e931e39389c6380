package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"roomly/pkg/auth"
	apperrors "roomly/pkg/errors"
	"roomly/pkg/logger"
	"roomly/pkg/model"

	"github.com/julienschmidt/httprouter"
)

// Mock service for testing
type mockRoomService struct {
	createFunc func(ctx context.Context, room *model.Room, actor *auth.Identity) error
	listFunc   func(ctx context.Context, filter *model.RoomFilter, actor *auth.Identity, limit int, offset int64) ([]*model.Room, int64, error)
	deleteFunc func(ctx context.Context, id string, actor *auth.Identity) error
}

func (m *mockRoomService) Create(ctx context.Context, room *model.Room, actor *auth.Identity) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, room, actor)
	}
	return nil
}

func (m *mockRoomService) GetByID(ctx context.Context, id string, actor *auth.Identity) (*model.Room, error) {
	return nil, apperrors.NotFoundWithID("Room", id)
}

func (m *mockRoomService) List(ctx context.Context, filter *model.RoomFilter, actor *auth.Identity, limit int, offset int64) ([]*model.Room, int64, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, filter, actor, limit, offset)
	}
	return []*model.Room{}, 0, nil
}

func (m *mockRoomService) Update(ctx context.Context, id string, updates *model.RoomUpdate, actor *auth.Identity) (*model.Room, error) {
	return &model.Room{ID: id}, nil
}

func (m *mockRoomService) Delete(ctx context.Context, id string, actor *auth.Identity) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id, actor)
	}
	return nil
}

var (
	member = &auth.Identity{UserID: "user-1", Role: model.RoleUser}
	admin  = &auth.Identity{UserID: "admin-1", Role: model.RoleAdmin}
)

func do(svc *mockRoomService, method, target, body string, id *auth.Identity) *httptest.ResponseRecorder {
	router := httprouter.New()
	NewRoomHandler(svc, logger.Discard()).RegisterRoutes(router)

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if id != nil {
		req = req.WithContext(auth.WithIdentity(req.Context(), id))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreate_Defaults(t *testing.T) {
	var got *model.Room
	svc := &mockRoomService{
		createFunc: func(ctx context.Context, room *model.Room, actor *auth.Identity) error {
			got = room
			room.ID = "r1"
			return nil
		},
	}

	rec := do(svc, http.MethodPost, "/api/v1/rooms", `{"name":"Blue"}`, admin)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if !got.IsActive || got.Capacity != 1 {
		t.Errorf("defaults not applied: %+v", got)
	}

	var resp struct {
		Data model.Room `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.Data.ID != "r1" {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestWrites_RequireAdmin(t *testing.T) {
	tests := []struct {
		method string
		target string
		body   string
	}{
		{method: http.MethodPost, target: "/api/v1/rooms", body: `{"name":"Blue"}`},
		{method: http.MethodPatch, target: "/api/v1/rooms/id/r1", body: `{"capacity":3}`},
		{method: http.MethodDelete, target: "/api/v1/rooms/id/r1"},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			if rec := do(&mockRoomService{}, tt.method, tt.target, tt.body, nil); rec.Code != http.StatusUnauthorized {
				t.Errorf("anonymous: status = %d, want 401", rec.Code)
			}
			if rec := do(&mockRoomService{}, tt.method, tt.target, tt.body, member); rec.Code != http.StatusForbidden {
				t.Errorf("member: status = %d, want 403", rec.Code)
			}
		})
	}
}

func TestList_Filters(t *testing.T) {
	var got *model.RoomFilter
	svc := &mockRoomService{
		listFunc: func(ctx context.Context, filter *model.RoomFilter, actor *auth.Identity, limit int, offset int64) ([]*model.Room, int64, error) {
			got = filter
			return []*model.Room{}, 0, nil
		},
	}

	rec := do(svc, http.MethodGet, "/api/v1/rooms?is_active=false&capacity_min=4&capacity_max=10&floor=0", "", member)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got.IsActive == nil || *got.IsActive {
		t.Errorf("is_active = %v", got.IsActive)
	}
	if *got.CapacityMin != 4 || *got.CapacityMax != 10 || *got.Floor != 0 {
		t.Errorf("unexpected filter %+v", got)
	}

	rec = do(svc, http.MethodGet, "/api/v1/rooms?capacity_min=lots", "", member)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestDelete_NoContent(t *testing.T) {
	rec := do(&mockRoomService{}, http.MethodDelete, "/api/v1/rooms/id/r1", "", admin)
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}

	svc := &mockRoomService{
		deleteFunc: func(context.Context, string, *auth.Identity) error {
			return apperrors.Conflict("Room has bookings and cannot be deleted; deactivate it instead")
		},
	}
	rec = do(svc, http.MethodDelete, "/api/v1/rooms/id/r1", "", admin)
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}
