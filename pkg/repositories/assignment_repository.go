package repositories

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/iris/pkg/database"
	"github.com/Ramsey-B/iris/pkg/models"
	"github.com/Ramsey-B/iris/pkg/tracing"
)

// AssignmentRepository handles database operations for application access
type AssignmentRepository struct {
	*Repository
}

// NewAssignmentRepository creates a new assignment repository
func NewAssignmentRepository(db database.DB, logger ectologger.Logger) *AssignmentRepository {
	return &AssignmentRepository{
		Repository: NewRepository(db, logger),
	}
}

// Upsert creates or replaces the access row for (user, application).
func (r *AssignmentRepository) Upsert(ctx context.Context, assignment *models.Assignment) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "AssignmentRepository.Upsert")
	defer span.End()

	query := `
		INSERT INTO application_access (id, user_id, application_id, access_level, status, source, external_id, granted_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		ON CONFLICT (user_id, application_id)
		DO UPDATE SET
			access_level = EXCLUDED.access_level,
			status = EXCLUDED.status,
			source = EXCLUDED.source,
			external_id = EXCLUDED.external_id,
			granted_at = EXCLUDED.granted_at,
			updated_at = NOW()
		RETURNING id, created_at, updated_at, (xmax = 0) AS inserted`

	var inserted bool
	err := r.Querier(ctx).QueryRowxContext(ctx, query,
		uuid.New(),
		assignment.UserID,
		assignment.ApplicationID,
		assignment.AccessLevel,
		assignment.Status,
		assignment.Source,
		assignment.ExternalID,
		assignment.GrantedAt,
	).Scan(&assignment.ID, &assignment.CreatedAt, &assignment.UpdatedAt, &inserted)
	if err != nil {
		tracing.RecordError(span, err)
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"user_id":        assignment.UserID,
			"application_id": assignment.ApplicationID,
		}).Error("failed to upsert assignment")
		return false, fmt.Errorf("failed to upsert access for user %s on application %s: %w", assignment.UserID, assignment.ApplicationID, err)
	}

	return inserted, nil
}
