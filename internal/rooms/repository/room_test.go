package repository

import (
	"reflect"
	"roomly/pkg/model"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
)

func intPtr(v int) *int { return &v }

func boolPtr(v bool) *bool { return &v }

func TestBuildFilter(t *testing.T) {
	tests := []struct {
		name   string
		filter *model.RoomFilter
		want   bson.M
	}{
		{name: "nil", filter: nil, want: bson.M{}},
		{name: "empty", filter: &model.RoomFilter{}, want: bson.M{}},
		{
			name:   "active only",
			filter: &model.RoomFilter{IsActive: boolPtr(true)},
			want:   bson.M{"is_active": true},
		},
		{
			name:   "capacity range",
			filter: &model.RoomFilter{CapacityMin: intPtr(4), CapacityMax: intPtr(12)},
			want:   bson.M{"capacity": bson.M{"$gte": 4, "$lte": 12}},
		},
		{
			name:   "ground floor",
			filter: &model.RoomFilter{Floor: intPtr(0), IsActive: boolPtr(false)},
			want:   bson.M{"floor": 0, "is_active": false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildFilter(tt.filter)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("buildFilter() = %v, want %v", got, tt.want)
			}
		})
	}
}
