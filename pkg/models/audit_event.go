package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/Ramsey-B/iris/pkg/database"
)

const (
	AuditActorSystem          = "system"
	AuditActionSync           = "sync"
	AuditTargetTypeConnection = "connection"
)

// AuditEvent is an append-only record of something the system did.
type AuditEvent struct {
	ID         uuid.UUID                      `db:"id" json:"id"`
	Actor      string                         `db:"actor" json:"actor"`
	Action     string                         `db:"action" json:"action"`
	TargetType string                         `db:"target_type" json:"target_type"`
	TargetID   string                         `db:"target_id" json:"target_id"`
	Details    database.JSONB[map[string]any] `db:"details" json:"details"`
	CreatedAt  time.Time                      `db:"created_at" json:"created_at"`
}

// TableName returns the database table name
func (AuditEvent) TableName() string {
	return "audit_events"
}
