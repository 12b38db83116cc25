package syncer

import (
	"github.com/Ramsey-B/iris/pkg/models"
)

// SyncResult is what every invocation returns, successful or not.
type SyncResult struct {
	Success              bool      `json:"success"`
	SyncRunID            string    `json:"syncRunId"`
	RecordsProcessed     int       `json:"recordsProcessed"`
	UsersCreated         int       `json:"usersCreated"`
	UsersUpdated         int       `json:"usersUpdated"`
	AppsCreated          int       `json:"appsCreated"`
	AppsUpdated          int       `json:"appsUpdated"`
	AccessRecordsCreated int       `json:"accessRecordsCreated"`
	AccessRecordsUpdated int       `json:"accessRecordsUpdated"`
	PartialFailures      int       `json:"partialFailures"`
	ErrorKind            ErrorKind `json:"errorKind,omitempty"`
	ErrorMessage         string    `json:"errorMessage,omitempty"`
	DurationMs           int64     `json:"durationMs"`
	CorrelationID        string    `json:"correlationId"`
}

func (r *SyncResult) applyCounters(c models.SyncCounters) {
	r.RecordsProcessed = c.RecordsProcessed
	r.UsersCreated = c.UsersCreated
	r.UsersUpdated = c.UsersUpdated
	r.AppsCreated = c.AppsCreated
	r.AppsUpdated = c.AppsUpdated
	r.AccessRecordsCreated = c.AccessRecordsCreated
	r.AccessRecordsUpdated = c.AccessRecordsUpdated
	r.PartialFailures = c.PartialFailures
}

func (r *SyncResult) fail(err *Error) {
	r.Success = false
	r.ErrorKind = err.Kind
	r.ErrorMessage = err.Message
}

// Status is the read model behind the connection status view.
type Status struct {
	Connection *models.Connection `json:"connection"`
	RecentRuns []models.SyncRun   `json:"recentRuns"`
}
