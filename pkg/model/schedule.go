package model

// ScheduleView is the per-room occupancy of every active room for one date.
type ScheduleView struct {
	Date  string          `json:"date"`
	Rooms []*ScheduleRoom `json:"rooms"`
}

type ScheduleRoom struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Capacity    int             `json:"capacity"`
	Description string          `json:"description,omitempty"`
	Floor       *int            `json:"floor,omitempty"`
	Equipment   []string        `json:"equipment"`
	Slots       []*ScheduleSlot `json:"slots"`
}

type ScheduleSlot struct {
	BookingID     string `json:"booking_id"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	Status        string `json:"status"`
	OwnerName     string `json:"owner_name,omitempty"`
	OwnerUsername string `json:"owner_username,omitempty"`
	IsOwnBooking  bool   `json:"is_own"`
	Purpose       string `json:"purpose,omitempty"`
	CanCancel     bool   `json:"can_cancel"`
}
