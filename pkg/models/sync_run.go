package models

import (
	"time"

	"github.com/google/uuid"
)

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// IsTerminal reports whether the run has finished.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}

// SyncCounters are the per-run tallies. They are written once, when the run
// is finalized.
type SyncCounters struct {
	RecordsProcessed     int `db:"records_processed" json:"records_processed"`
	UsersCreated         int `db:"users_created" json:"users_created"`
	UsersUpdated         int `db:"users_updated" json:"users_updated"`
	AppsCreated          int `db:"apps_created" json:"apps_created"`
	AppsUpdated          int `db:"apps_updated" json:"apps_updated"`
	AccessRecordsCreated int `db:"access_records_created" json:"access_records_created"`
	AccessRecordsUpdated int `db:"access_records_updated" json:"access_records_updated"`
	PartialFailures      int `db:"partial_failures" json:"partial_failures"`
}

// SyncRun is one attempt to synchronize a connection.
type SyncRun struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	ConnectionID  uuid.UUID  `db:"connection_id" json:"connection_id"`
	CorrelationID string     `db:"correlation_id" json:"correlation_id"`
	Status        RunStatus  `db:"status" json:"status"`
	StartedAt     time.Time  `db:"started_at" json:"started_at"`
	CompletedAt   *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	SyncCounters
	ErrorMessage *string   `db:"error_message" json:"error_message,omitempty"`
	ErrorKind    *string   `db:"error_kind" json:"error_kind,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// TableName returns the database table name
func (SyncRun) TableName() string {
	return "sync_runs"
}
