package models

import "gorm.io/gorm"

type UserRole string

const (
	RoleUser    UserRole = "user"
	RoleManager UserRole = "manager"
	RoleAdmin   UserRole = "admin"
)

func (r UserRole) Valid() bool {
	switch r {
	case RoleUser, RoleManager, RoleAdmin:
		return true
	}
	return false
}

type User struct {
	gorm.Model
	Username     string   `gorm:"uniqueIndex;size:50;not null"`
	PasswordHash string   `gorm:"not null"`
	Role         UserRole `gorm:"type:varchar(20);not null"`
}

// Actor is the authenticated principal a request acts as. ID is the
// username recorded in submitted_by / approved_by columns.
type Actor struct {
	ID   string   `json:"username"`
	Role UserRole `json:"role"`
}

func (a Actor) CanDecide() bool {
	return a.Role == RoleManager || a.Role == RoleAdmin
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}
