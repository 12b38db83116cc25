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

// UserRepository handles database operations for users
type UserRepository struct {
	*Repository
}

// NewUserRepository creates a new user repository
func NewUserRepository(db database.DB, logger ectologger.Logger) *UserRepository {
	return &UserRepository{
		Repository: NewRepository(db, logger),
	}
}

// Upsert creates the user or fully replaces the row with the same email. It
// reports whether a new row was inserted and sets ID and timestamps on user.
func (r *UserRepository) Upsert(ctx context.Context, user *models.User) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "UserRepository.Upsert")
	defer span.End()

	// xmax is zero only for a freshly inserted tuple
	query := `
		INSERT INTO users (id, email, name, department, title, status, source, external_id, last_login_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		ON CONFLICT (email)
		DO UPDATE SET
			name = EXCLUDED.name,
			department = EXCLUDED.department,
			title = EXCLUDED.title,
			status = EXCLUDED.status,
			source = EXCLUDED.source,
			external_id = EXCLUDED.external_id,
			last_login_at = EXCLUDED.last_login_at,
			updated_at = NOW()
		RETURNING id, created_at, updated_at, (xmax = 0) AS inserted`

	var inserted bool
	err := r.Querier(ctx).QueryRowxContext(ctx, query,
		uuid.New(),
		user.Email,
		user.Name,
		user.Department,
		user.Title,
		user.Status,
		user.Source,
		user.ExternalID,
		user.LastLoginAt,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt, &inserted)
	if err != nil {
		tracing.RecordError(span, err)
		r.logger.WithContext(ctx).WithError(err).WithField("email", user.Email).Error("failed to upsert user")
		return false, fmt.Errorf("failed to upsert user %s: %w", user.Email, err)
	}

	return inserted, nil
}
