package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/Ramsey-B/iris/pkg/database"
)

type ConnectionStatus string

const (
	ConnectionStatusPending      ConnectionStatus = "pending"
	ConnectionStatusConnected    ConnectionStatus = "connected"
	ConnectionStatusError        ConnectionStatus = "error"
	ConnectionStatusDisconnected ConnectionStatus = "disconnected"
)

// Connection is the configured link to one identity provider. There is at
// most one per provider type.
type Connection struct {
	ID           uuid.UUID                      `db:"id" json:"id"`
	ProviderType string                         `db:"provider_type" json:"provider_type"`
	Name         string                         `db:"name" json:"name"`
	Status       ConnectionStatus               `db:"status" json:"status"`
	LastSyncAt   *time.Time                     `db:"last_sync_at" json:"last_sync_at,omitempty"`
	Config       database.JSONB[map[string]any] `db:"config" json:"config,omitempty"`
	CreatedAt    time.Time                      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time                      `db:"updated_at" json:"updated_at"`
}

// TableName returns the database table name
func (Connection) TableName() string {
	return "connections"
}
