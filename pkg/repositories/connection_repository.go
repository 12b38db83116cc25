package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/iris/pkg/database"
	"github.com/Ramsey-B/iris/pkg/models"
	"github.com/Ramsey-B/iris/pkg/tracing"
)

const connectionsTable = "connections"

// ConnectionRepository handles database operations for provider connections
type ConnectionRepository struct {
	*Repository
}

// NewConnectionRepository creates a new connection repository
func NewConnectionRepository(db database.DB, logger ectologger.Logger) *ConnectionRepository {
	return &ConnectionRepository{
		Repository: NewRepository(db, logger),
	}
}

// GetOrCreate returns the connection for providerType, creating it on first
// use. The unique index on provider_type makes concurrent callers converge on
// one row.
func (r *ConnectionRepository) GetOrCreate(ctx context.Context, providerType, name string) (*models.Connection, error) {
	ctx, span := tracing.StartSpan(ctx, "ConnectionRepository.GetOrCreate")
	defer span.End()

	query := `
		INSERT INTO connections (id, provider_type, name, status, config, created_at, updated_at)
		VALUES ($1, $2, $3, $4, '{}'::jsonb, NOW(), NOW())
		ON CONFLICT (provider_type)
		DO UPDATE SET updated_at = connections.updated_at
		RETURNING id, provider_type, name, status, last_sync_at, config, created_at, updated_at`

	var conn models.Connection
	err := r.Querier(ctx).QueryRowxContext(ctx, query,
		uuid.New(),
		providerType,
		name,
		models.ConnectionStatusPending,
	).StructScan(&conn)
	if err != nil {
		tracing.RecordError(span, err)
		r.logger.WithContext(ctx).WithError(err).WithField("provider_type", providerType).Error("failed to get or create connection")
		return nil, fmt.Errorf("failed to get or create %s connection: %w", providerType, err)
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"provider_type": providerType,
		"connection_id": conn.ID,
	}).Debugf("Got or created %s for provider=%s", connectionsTable, providerType)
	return &conn, nil
}

// UpdateStatus sets the lifecycle status. lastSyncAt is only written when non-nil.
func (r *ConnectionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.ConnectionStatus, lastSyncAt *time.Time) error {
	ctx, span := tracing.StartSpan(ctx, "ConnectionRepository.UpdateStatus")
	defer span.End()

	ub := database.NewUpdateBuilder()
	assignments := []string{
		ub.Assign("status", status),
		ub.Assign("updated_at", database.Now()),
	}
	if lastSyncAt != nil {
		assignments = append(assignments, ub.Assign("last_sync_at", *lastSyncAt))
	}
	ub.Update(connectionsTable).Set(assignments...).Where(ub.Equal("id", id))

	query, args := ub.Build()
	result, err := r.Querier(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		tracing.RecordError(span, err)
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"connection_id": id,
			"status":        status,
		}).Error("failed to update connection status")
		return fmt.Errorf("failed to update connection %s: %w", id, err)
	}

	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return NotFound("connection %s does not exist", id)
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"connection_id": id,
		"status":        status,
	}).Debugf("Updated %s status to %s", connectionsTable, status)
	return nil
}
