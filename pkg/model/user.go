package model

import (
	"strings"
	"time"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID           string    `json:"id,omitempty" bson:"_id,omitempty"`
	Username     string    `json:"username" bson:"username"`
	Email        string    `json:"email" bson:"email"`
	FirstName    string    `json:"first_name" bson:"first_name"`
	LastName     string    `json:"last_name" bson:"last_name"`
	Patronymic   string    `json:"patronymic,omitempty" bson:"patronymic,omitempty"`
	GroupName    string    `json:"group_name,omitempty" bson:"group_name,omitempty"`
	PhoneNumber  string    `json:"phone_number,omitempty" bson:"phone_number,omitempty"`
	Role         string    `json:"role" bson:"role"`
	IsActive     bool      `json:"is_active" bson:"is_active"`
	PasswordHash string    `json:"-" bson:"password_hash"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" bson:"updated_at"`
}

// FullName is "last first [patronymic]".
func (u *User) FullName() string {
	parts := []string{u.LastName, u.FirstName}
	if u.Patronymic != "" {
		parts = append(parts, u.Patronymic)
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

type UserProfile struct {
	*User
	FullName string `json:"full_name"`
}

func NewUserProfile(u *User) *UserProfile {
	return &UserProfile{User: u, FullName: u.FullName()}
}

type Registration struct {
	Username        string `json:"username" validate:"required,min=3,max=50,username"`
	Email           string `json:"email" validate:"required,email,max=100"`
	Password        string `json:"password" validate:"required,min=6,max=128"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
	FirstName       string `json:"first_name" validate:"required,max=100"`
	LastName        string `json:"last_name" validate:"required,max=100"`
	Patronymic      string `json:"patronymic,omitempty" validate:"max=100"`
	GroupName       string `json:"group_name,omitempty" validate:"max=50"`
	PhoneNumber     string `json:"phone_number,omitempty" validate:"omitempty,max=20"`
}

type Credentials struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type ProfileUpdate struct {
	Email       *string `json:"email,omitempty" validate:"omitempty,email,max=100"`
	FirstName   *string `json:"first_name,omitempty" validate:"omitempty,min=1,max=100"`
	LastName    *string `json:"last_name,omitempty" validate:"omitempty,min=1,max=100"`
	Patronymic  *string `json:"patronymic,omitempty" validate:"omitempty,max=100"`
	GroupName   *string `json:"group_name,omitempty" validate:"omitempty,max=50"`
	PhoneNumber *string `json:"phone_number,omitempty" validate:"omitempty,max=20"`
}

type PasswordChange struct {
	OldPassword        string `json:"old_password" validate:"required"`
	NewPassword        string `json:"new_password" validate:"required,min=6,max=128"`
	NewPasswordConfirm string `json:"new_password_confirm" validate:"required,eqfield=NewPassword"`
}

// Session is returned by login.
type Session struct {
	Status      string       `json:"status"`
	AccessToken string       `json:"access"`
	ExpiresAt   time.Time    `json:"expires_at"`
	User        *UserProfile `json:"user"`
}
