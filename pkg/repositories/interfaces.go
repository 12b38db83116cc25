package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Ramsey-B/iris/pkg/models"
)

// ConnectionRepo defines the interface for connection repository operations
type ConnectionRepo interface {
	GetOrCreate(ctx context.Context, providerType, name string) (*models.Connection, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.ConnectionStatus, lastSyncAt *time.Time) error
}

// SyncRunRepo defines the interface for sync run repository operations
type SyncRunRepo interface {
	Create(ctx context.Context, run *models.SyncRun) error
	Finalize(ctx context.Context, run *models.SyncRun) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.SyncRun, error)
	ListRecent(ctx context.Context, connectionID uuid.UUID, limit int) ([]models.SyncRun, error)
}

// UserRepo defines the interface for user repository operations
type UserRepo interface {
	Upsert(ctx context.Context, user *models.User) (bool, error)
}

// ApplicationRepo defines the interface for application repository operations
type ApplicationRepo interface {
	Upsert(ctx context.Context, app *models.Application) (bool, error)
}

// AssignmentRepo defines the interface for assignment repository operations
type AssignmentRepo interface {
	Upsert(ctx context.Context, assignment *models.Assignment) (bool, error)
}

// AuditEventRepo defines the interface for audit event repository operations
type AuditEventRepo interface {
	Append(ctx context.Context, event *models.AuditEvent) error
}
