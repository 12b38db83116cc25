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

// ApplicationRepository handles database operations for applications
type ApplicationRepository struct {
	*Repository
}

// NewApplicationRepository creates a new application repository
func NewApplicationRepository(db database.DB, logger ectologger.Logger) *ApplicationRepository {
	return &ApplicationRepository{
		Repository: NewRepository(db, logger),
	}
}

// Upsert creates the application or replaces the row with the same
// (name, source). It reports whether a new row was inserted.
func (r *ApplicationRepository) Upsert(ctx context.Context, app *models.Application) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "ApplicationRepository.Upsert")
	defer span.End()

	query := `
		INSERT INTO applications (id, name, source, category, status, external_id, sign_on_mode, website_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		ON CONFLICT (name, source)
		DO UPDATE SET
			category = EXCLUDED.category,
			status = EXCLUDED.status,
			external_id = EXCLUDED.external_id,
			sign_on_mode = EXCLUDED.sign_on_mode,
			website_url = EXCLUDED.website_url,
			updated_at = NOW()
		RETURNING id, created_at, updated_at, (xmax = 0) AS inserted`

	var inserted bool
	err := r.Querier(ctx).QueryRowxContext(ctx, query,
		uuid.New(),
		app.Name,
		app.Source,
		app.Category,
		app.Status,
		app.ExternalID,
		app.SignOnMode,
		app.WebsiteURL,
	).Scan(&app.ID, &app.CreatedAt, &app.UpdatedAt, &inserted)
	if err != nil {
		tracing.RecordError(span, err)
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"name":   app.Name,
			"source": app.Source,
		}).Error("failed to upsert application")
		return false, fmt.Errorf("failed to upsert application %s: %w", app.Name, err)
	}

	return inserted, nil
}
