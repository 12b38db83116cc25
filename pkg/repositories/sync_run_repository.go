package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/iris/pkg/database"
	"github.com/Ramsey-B/iris/pkg/models"
	"github.com/Ramsey-B/iris/pkg/tracing"
)

const syncRunsTable = "sync_runs"

var syncRunStruct = database.NewStruct(new(models.SyncRun))

// SyncRunRepository handles database operations for sync runs
type SyncRunRepository struct {
	*Repository
}

// NewSyncRunRepository creates a new sync run repository
func NewSyncRunRepository(db database.DB, logger ectologger.Logger) *SyncRunRepository {
	return &SyncRunRepository{
		Repository: NewRepository(db, logger),
	}
}

// Create inserts a run in the running state.
func (r *SyncRunRepository) Create(ctx context.Context, run *models.SyncRun) error {
	ctx, span := tracing.StartSpan(ctx, "SyncRunRepository.Create")
	defer span.End()

	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto(syncRunsTable).
		Cols("id", "connection_id", "correlation_id", "status", "started_at", "created_at", "updated_at").
		Values(run.ID, run.ConnectionID, run.CorrelationID, run.Status, run.StartedAt, database.Now(), database.Now())

	query, args := ib.Build()
	if _, err := r.Querier(ctx).ExecContext(ctx, query, args...); err != nil {
		tracing.RecordError(span, err)
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"sync_run_id":   run.ID,
			"connection_id": run.ConnectionID,
		}).Error("failed to create sync run")
		return fmt.Errorf("failed to create sync run: %w", err)
	}

	r.logger.WithContext(ctx).WithField("sync_run_id", run.ID).Debugf("Created %s %s", syncRunsTable, run.ID)
	return nil
}

// Finalize writes the terminal status, counters, completion time and error.
func (r *SyncRunRepository) Finalize(ctx context.Context, run *models.SyncRun) error {
	ctx, span := tracing.StartSpan(ctx, "SyncRunRepository.Finalize")
	defer span.End()

	if !run.Status.IsTerminal() || run.CompletedAt == nil {
		return httperror.NewHTTPErrorf(http.StatusBadRequest, "sync run %s cannot be finalized as %s", run.ID, run.Status)
	}

	ub := database.NewUpdateBuilder()
	ub.Update(syncRunsTable).
		Set(
			ub.Assign("status", run.Status),
			ub.Assign("completed_at", *run.CompletedAt),
			ub.Assign("records_processed", run.RecordsProcessed),
			ub.Assign("users_created", run.UsersCreated),
			ub.Assign("users_updated", run.UsersUpdated),
			ub.Assign("apps_created", run.AppsCreated),
			ub.Assign("apps_updated", run.AppsUpdated),
			ub.Assign("access_records_created", run.AccessRecordsCreated),
			ub.Assign("access_records_updated", run.AccessRecordsUpdated),
			ub.Assign("partial_failures", run.PartialFailures),
			ub.Assign("error_message", run.ErrorMessage),
			ub.Assign("error_kind", run.ErrorKind),
			ub.Assign("updated_at", database.Now()),
		).
		Where(ub.Equal("id", run.ID), ub.Equal("status", models.RunStatusRunning))

	query, args := ub.Build()
	result, err := r.Querier(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		tracing.RecordError(span, err)
		r.logger.WithContext(ctx).WithError(err).WithField("sync_run_id", run.ID).Error("failed to finalize sync run")
		return fmt.Errorf("failed to finalize sync run %s: %w", run.ID, err)
	}

	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return NotFound("running sync run %s does not exist", run.ID)
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"sync_run_id": run.ID,
		"status":      run.Status,
	}).Debugf("Finalized %s %s as %s", syncRunsTable, run.ID, run.Status)
	return nil
}

func (r *SyncRunRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.SyncRun, error) {
	ctx, span := tracing.StartSpan(ctx, "SyncRunRepository.GetByID")
	defer span.End()

	sb := syncRunStruct.SelectFrom(syncRunsTable)
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var run models.SyncRun
	err := r.Querier(ctx).GetContext(ctx, &run, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFound("sync run %s does not exist", id)
	}
	if err != nil {
		tracing.RecordError(span, err)
		r.logger.WithContext(ctx).WithError(err).WithField("sync_run_id", id).Error("failed to get sync run")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get sync run")
	}

	return &run, nil
}

// ListRecent returns the newest runs of a connection first.
func (r *SyncRunRepository) ListRecent(ctx context.Context, connectionID uuid.UUID, limit int) ([]models.SyncRun, error) {
	ctx, span := tracing.StartSpan(ctx, "SyncRunRepository.ListRecent")
	defer span.End()

	sb := syncRunStruct.SelectFrom(syncRunsTable)
	sb.Where(sb.Equal("connection_id", connectionID)).
		OrderBy("started_at").Desc().
		Limit(limit)

	query, args := sb.Build()
	runs := []models.SyncRun{}
	if err := r.Querier(ctx).SelectContext(ctx, &runs, query, args...); err != nil {
		tracing.RecordError(span, err)
		r.logger.WithContext(ctx).WithError(err).WithField("connection_id", connectionID).Error("failed to list sync runs")
		return nil, fmt.Errorf("failed to list sync runs: %w", err)
	}

	r.logger.WithContext(ctx).WithField("connection_id", connectionID).Debugf("Listed %d %s", len(runs), syncRunsTable)
	return runs, nil
}
