package models

import (
	"time"

	"github.com/google/uuid"
)

type AccessStatus string

const (
	AccessStatusActive   AccessStatus = "active"
	AccessStatusInactive AccessStatus = "inactive"
)

// Assignment records that a user has access to an application.
type Assignment struct {
	ID            uuid.UUID    `db:"id" json:"id"`
	UserID        uuid.UUID    `db:"user_id" json:"user_id"`
	ApplicationID uuid.UUID    `db:"application_id" json:"application_id"`
	AccessLevel   string       `db:"access_level" json:"access_level"`
	Status        AccessStatus `db:"status" json:"status"`
	Source        string       `db:"source" json:"source"`
	ExternalID    *string      `db:"external_id" json:"external_id,omitempty"`
	GrantedAt     *time.Time   `db:"granted_at" json:"granted_at,omitempty"`
	CreatedAt     time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time    `db:"updated_at" json:"updated_at"`
}

// TableName returns the database table name
func (Assignment) TableName() string {
	return "application_access"
}
