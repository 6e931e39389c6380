package validator

import (
	"errors"
	"roomly/pkg/model"
	"strings"
	"testing"
)

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func slicePtr(v []string) *[]string { return &v }

func TestValidate(t *testing.T) {
	v := NewRoomValidator()

	tests := []struct {
		name   string
		room   *model.Room
		fields []string
	}{
		{
			name: "valid",
			room: &model.Room{Name: "Blue", Capacity: 6, Equipment: []string{"projector"}, IsActive: true},
		},
		{
			name:   "missing name",
			room:   &model.Room{Capacity: 6},
			fields: []string{"name"},
		},
		{
			name:   "capacity zero",
			room:   &model.Room{Name: "Blue", Capacity: 0},
			fields: []string{"capacity"},
		},
		{
			name:   "long name and description",
			room:   &model.Room{Name: strings.Repeat("x", 101), Capacity: 1, Description: strings.Repeat("d", 2001)},
			fields: []string{"name", "description"},
		},
		{
			name:   "floor out of range",
			room:   &model.Room{Name: "Roof", Capacity: 1, Floor: intPtr(500)},
			fields: []string{"floor"},
		},
		{
			name:   "empty equipment tag",
			room:   &model.Room{Name: "Blue", Capacity: 1, Equipment: []string{"tv", ""}},
			fields: []string{"equipment"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.room)
			if len(tt.fields) == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}

			var verrs ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("expected ValidationErrors, got %v", err)
			}
			fields := verrs.Fields()
			for _, f := range tt.fields {
				if _, ok := fields[f]; !ok {
					t.Errorf("expected error on %s, got %v", f, fields)
				}
			}
		})
	}
}

func TestValidateUpdate(t *testing.T) {
	v := NewRoomValidator()

	if err := v.ValidateUpdate(&model.RoomUpdate{}); err != nil {
		t.Errorf("empty update should be valid: %v", err)
	}
	if err := v.ValidateUpdate(&model.RoomUpdate{Capacity: intPtr(20), Equipment: slicePtr([]string{"tv"})}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	err := v.ValidateUpdate(&model.RoomUpdate{Name: strPtr("   ")})
	var verrs ValidationErrors
	if !errors.As(err, &verrs) || verrs.Fields()["name"] == "" {
		t.Errorf("blank name should be rejected, got %v", err)
	}

	err = v.ValidateUpdate(&model.RoomUpdate{Capacity: intPtr(5000)})
	if !errors.As(err, &verrs) || verrs.Fields()["capacity"] == "" {
		t.Errorf("capacity over limit should be rejected, got %v", err)
	}
}
