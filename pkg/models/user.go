package models

import (
	"time"

	"github.com/google/uuid"
)

type UserStatus string

const (
	UserStatusActive      UserStatus = "active"
	UserStatusInactive    UserStatus = "inactive"
	UserStatusSuspended   UserStatus = "suspended"
	UserStatusOffboarding UserStatus = "offboarding"
)

// User is a person in the system of record, keyed by email.
type User struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	Email       string     `db:"email" json:"email"`
	Name        string     `db:"name" json:"name"`
	Department  *string    `db:"department" json:"department,omitempty"`
	Title       *string    `db:"title" json:"title,omitempty"`
	Status      UserStatus `db:"status" json:"status"`
	Source      string     `db:"source" json:"source"`
	ExternalID  *string    `db:"external_id" json:"external_id,omitempty"`
	LastLoginAt *time.Time `db:"last_login_at" json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// TableName returns the database table name
func (User) TableName() string {
	return "users"
}
