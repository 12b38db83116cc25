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

const auditEventsTable = "audit_events"

// AuditEventRepository appends audit events. Rows are never updated.
type AuditEventRepository struct {
	*Repository
}

// NewAuditEventRepository creates a new audit event repository
func NewAuditEventRepository(db database.DB, logger ectologger.Logger) *AuditEventRepository {
	return &AuditEventRepository{
		Repository: NewRepository(db, logger),
	}
}

func (r *AuditEventRepository) Append(ctx context.Context, event *models.AuditEvent) error {
	ctx, span := tracing.StartSpan(ctx, "AuditEventRepository.Append")
	defer span.End()

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto(auditEventsTable).
		Cols("id", "actor", "action", "target_type", "target_id", "details", "created_at").
		Values(event.ID, event.Actor, event.Action, event.TargetType, event.TargetID, event.Details, database.Now())

	query, args := ib.Build()
	if _, err := r.Querier(ctx).ExecContext(ctx, query, args...); err != nil {
		tracing.RecordError(span, err)
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"action":    event.Action,
			"target_id": event.TargetID,
		}).Error("failed to append audit event")
		return fmt.Errorf("failed to append audit event: %w", err)
	}

	r.logger.WithContext(ctx).WithField("audit_event_id", event.ID).Debugf("Appended %s %s", auditEventsTable, event.ID)
	return nil
}
