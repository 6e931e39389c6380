package model

import "time"

type Room struct {
	ID          string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	Name        string    `json:"name" bson:"name" validate:"required,min=1,max=100"`
	Capacity    int       `json:"capacity" bson:"capacity" validate:"min=1,max=1000"`
	Description string    `json:"description,omitempty" bson:"description,omitempty" validate:"max=2000"`
	Floor       *int      `json:"floor,omitempty" bson:"floor,omitempty" validate:"omitempty,min=-10,max=300"`
	Equipment   []string  `json:"equipment" bson:"equipment" validate:"max=50,dive,min=1,max=50"`
	IsActive    bool      `json:"is_active" bson:"is_active"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
	CreatedBy   string    `json:"created_by,omitempty" bson:"created_by,omitempty"`
}

type RoomUpdate struct {
	Name        *string   `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Capacity    *int      `json:"capacity,omitempty" validate:"omitempty,min=1,max=1000"`
	Description *string   `json:"description,omitempty" validate:"omitempty,max=2000"`
	Floor       *int      `json:"floor,omitempty" validate:"omitempty,min=-10,max=300"`
	Equipment   *[]string `json:"equipment,omitempty" validate:"omitempty,max=50,dive,min=1,max=50"`
	IsActive    *bool     `json:"is_active,omitempty"`
}

type RoomFilter struct {
	IsActive    *bool
	CapacityMin *int
	CapacityMax *int
	Floor       *int
}
