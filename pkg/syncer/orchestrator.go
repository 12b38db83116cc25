package syncer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	appctx "github.com/Ramsey-B/iris/pkg/context"
	"github.com/Ramsey-B/iris/pkg/database"
	"github.com/Ramsey-B/iris/pkg/expressions"
	"github.com/Ramsey-B/iris/pkg/metrics"
	"github.com/Ramsey-B/iris/pkg/models"
	"github.com/Ramsey-B/iris/pkg/provider"
	"github.com/Ramsey-B/iris/pkg/tracing"
)

const (
	DefaultProviderType    = "okta"
	DefaultConnectionName  = "Okta"
	DefaultMaxRunDuration  = 30 * time.Minute
	DefaultRecentRunsLimit = 10

	// the lock outlives the run deadline so finalization stays covered
	lockGrace = time.Minute
)

// Provider is the read-only view of an identity provider a run needs.
type Provider interface {
	ListUsers(ctx context.Context) ([]provider.User, error)
	ListApplications(ctx context.Context) ([]provider.Application, error)
	AssignmentLister
}

// ProviderFactory builds a provider client from the settings of one invocation.
type ProviderFactory func(settings Settings) Provider

// Store is everything the orchestrator persists through.
type Store interface {
	EntityStore
	Ping(ctx context.Context) error
	GetOrCreateConnection(ctx context.Context, providerType, name string) (*models.Connection, error)
	CreateSyncRun(ctx context.Context, run *models.SyncRun) error
	FinalizeRun(ctx context.Context, run *models.SyncRun, status models.ConnectionStatus, lastSyncAt *time.Time, event *models.AuditEvent) error
	GetSyncRun(ctx context.Context, id uuid.UUID) (*models.SyncRun, error)
	ListRecentSyncRuns(ctx context.Context, connectionID uuid.UUID, limit int) ([]models.SyncRun, error)
}

// StoreOpener returns the store for databaseURL, dialing it on first use.
type StoreOpener func(ctx context.Context, databaseURL string) (Store, error)

// AuditPublisher emits audit events outside the database.
type AuditPublisher interface {
	PublishAudit(ctx context.Context, event *models.AuditEvent) error
}

type Config struct {
	ProviderType    string
	ConnectionName  string
	MaxRunDuration  time.Duration
	RecentRunsLimit int
}

// Dependencies are the collaborators of an Orchestrator. Locker, Publisher
// and Attributes are optional.
type Dependencies struct {
	Settings    SettingsSource
	OpenStore   StoreOpener
	NewProvider ProviderFactory
	Locker      Locker
	Publisher   AuditPublisher
	Attributes  *provider.Attributes
	Logger      ectologger.Logger
}

// Orchestrator runs one sync per invocation: it checks configuration, opens a
// run, reconciles users, applications and assignments in that order, and
// finalizes the run.
type Orchestrator struct {
	config      Config
	settings    SettingsSource
	openStore   StoreOpener
	newProvider ProviderFactory
	locker      Locker
	publisher   AuditPublisher
	attributes  *provider.Attributes
	logger      ectologger.Logger
}

func NewOrchestrator(config Config, deps Dependencies) (*Orchestrator, error) {
	if deps.Settings == nil {
		return nil, errors.New("orchestrator requires a settings source")
	}
	if deps.OpenStore == nil {
		return nil, errors.New("orchestrator requires a store opener")
	}
	if deps.NewProvider == nil {
		return nil, errors.New("orchestrator requires a provider factory")
	}
	if deps.Logger == nil {
		return nil, errors.New("orchestrator requires a logger")
	}

	if config.ProviderType == "" {
		config.ProviderType = DefaultProviderType
	}
	if config.ConnectionName == "" {
		config.ConnectionName = DefaultConnectionName
	}
	if config.MaxRunDuration <= 0 {
		config.MaxRunDuration = DefaultMaxRunDuration
	}
	if config.RecentRunsLimit <= 0 {
		config.RecentRunsLimit = DefaultRecentRunsLimit
	}

	if deps.Locker == nil {
		deps.Locker = NewLocalLocker()
	}
	if deps.Attributes == nil {
		attributes, err := provider.NewAttributes(provider.DefaultAttributeConfig(), expressions.NewEvaluator())
		if err != nil {
			return nil, err
		}
		deps.Attributes = attributes
	}

	return &Orchestrator{
		config:      config,
		settings:    deps.Settings,
		openStore:   deps.OpenStore,
		newProvider: deps.NewProvider,
		locker:      deps.Locker,
		publisher:   deps.Publisher,
		attributes:  deps.Attributes,
		logger:      deps.Logger,
	}, nil
}

// RunSync performs one synchronization. It never returns an error: every
// failure is reported on the result with an operator-facing message.
func (o *Orchestrator) RunSync(ctx context.Context, correlationID string) (result SyncResult) {
	start := time.Now()

	correlationID = resolveCorrelationID(ctx, correlationID)
	ctx = appctx.SetCorrelationID(ctx, correlationID)

	ctx, span := tracing.StartSpan(ctx, "Orchestrator.RunSync")
	defer span.End()

	log := o.logger.WithContext(ctx).WithFields(map[string]any{
		"correlation_id": correlationID,
		"provider":       o.config.ProviderType,
	})

	result.CorrelationID = correlationID
	defer func() {
		result.DurationMs = time.Since(start).Milliseconds()
	}()

	settings := o.settings.SyncSettings()
	if err := CheckSettings(settings); err != nil {
		return o.reject(ctx, result, err)
	}

	store, err := o.openStore(ctx, settings.DatabaseURL)
	if err != nil {
		return o.reject(ctx, result, newError(KindStorageUnavailable, err, humanizeError(err)))
	}

	unlock, acquired, err := o.locker.TryLock(ctx, o.lockKey(), o.config.MaxRunDuration+lockGrace)
	if err != nil {
		return o.reject(ctx, result, newError(KindUnhandledRunFailure, err, "Could not acquire the sync lock. Check the lock backend and try again."))
	}
	if !acquired {
		return o.reject(ctx, result, newError(KindSyncInProgress, ErrSyncInProgress,
			"A sync is already running for this connection. Wait for it to finish and try again."))
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			log.WithError(err).Warn("Failed to release sync lock")
		}
	}()

	runCtx, cancel := context.WithTimeout(ctx, o.config.MaxRunDuration)
	defer cancel()

	conn, err := store.GetOrCreateConnection(runCtx, o.config.ProviderType, o.config.ConnectionName)
	if err != nil {
		return o.reject(ctx, result, newError(KindStorageUnavailable, err, humanizeError(err)))
	}

	run := &models.SyncRun{
		ID:            uuid.New(),
		ConnectionID:  conn.ID,
		CorrelationID: correlationID,
		Status:        models.RunStatusRunning,
		StartedAt:     time.Now().UTC(),
	}
	if err := store.CreateSyncRun(runCtx, run); err != nil {
		return o.reject(ctx, result, newError(KindStorageUnavailable, err, humanizeError(err)))
	}
	result.SyncRunID = run.ID.String()

	log = log.WithFields(map[string]any{
		"sync_run_id":   run.ID,
		"connection_id": conn.ID,
	})
	log.Info("Sync run started")

	var stats models.SyncCounters
	var failure *Error
	if err := o.execute(runCtx, store, settings, &stats); err != nil {
		failure = classify(err)
		tracing.RecordError(span, err)
		log.WithError(err).WithField("error_kind", failure.Kind).Error("Sync run failed")
	}

	// finalization must land even when the run deadline has passed
	finalCtx := context.WithoutCancel(ctx)
	event, err := o.finalize(finalCtx, store, conn, run, stats, failure)
	if err != nil {
		log.WithError(err).Error("Failed to finalize sync run")
		if failure == nil {
			failure = newError(KindUnhandledRunFailure, err, humanizeError(err))
		}
		// one more attempt so the stored run does not stay running
		event, err = o.finalize(finalCtx, store, conn, run, stats, failure)
		if err != nil {
			log.WithError(err).Error("Failed to record sync run as failed")
		}
	}

	if event != nil && err == nil && o.publisher != nil {
		if err := o.publisher.PublishAudit(finalCtx, event); err != nil {
			log.WithError(err).Warn("Failed to publish audit event")
		}
	}

	duration := time.Since(start)
	outcome := models.RunStatusCompleted
	if failure != nil {
		outcome = models.RunStatusFailed
	}
	metrics.RecordSyncRun(o.config.ProviderType, string(outcome), duration.Seconds())

	result.applyCounters(stats)
	if failure != nil {
		result.fail(failure)
		return result
	}

	result.Success = true
	log.WithFields(map[string]any{
		"records_processed":      stats.RecordsProcessed,
		"users_created":          stats.UsersCreated,
		"users_updated":          stats.UsersUpdated,
		"apps_created":           stats.AppsCreated,
		"apps_updated":           stats.AppsUpdated,
		"access_records_created": stats.AccessRecordsCreated,
		"access_records_updated": stats.AccessRecordsUpdated,
		"partial_failures":       stats.PartialFailures,
		"duration_ms":            duration.Milliseconds(),
	}).Info("Sync run completed")
	return result
}

// execute runs the phases in order. Counters accumulated before a failure
// stay in stats.
func (o *Orchestrator) execute(ctx context.Context, store Store, settings Settings, stats *models.SyncCounters) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sync panicked: %v", r)
		}
	}()

	client := o.newProvider(settings)
	reconciler := NewReconciler(store, o.attributes, o.logger)

	users, err := client.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}
	userIDs, err := reconciler.ReconcileUsers(ctx, users, stats)
	if err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	apps, err := client.ListApplications(ctx)
	if err != nil {
		return fmt.Errorf("failed to list applications: %w", err)
	}
	appIDs, active, err := reconciler.ReconcileApplications(ctx, apps, stats)
	if err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	return reconciler.ReconcileAssignments(ctx, client, active, userIDs, appIDs, stats)
}

func (o *Orchestrator) finalize(ctx context.Context, store Store, conn *models.Connection, run *models.SyncRun, stats models.SyncCounters, failure *Error) (*models.AuditEvent, error) {
	now := time.Now().UTC()
	run.CompletedAt = &now
	run.SyncCounters = stats

	status := models.ConnectionStatusConnected
	lastSyncAt := &now
	run.Status = models.RunStatusCompleted
	if failure != nil {
		run.Status = models.RunStatusFailed
		message := failure.Message
		kind := string(failure.Kind)
		run.ErrorMessage = &message
		run.ErrorKind = &kind
		status = models.ConnectionStatusError
		lastSyncAt = nil
	}

	event := newAuditEvent(conn, run)
	if err := store.FinalizeRun(ctx, run, status, lastSyncAt, event); err != nil {
		return nil, err
	}
	return event, nil
}

func newAuditEvent(conn *models.Connection, run *models.SyncRun) *models.AuditEvent {
	details := map[string]any{
		"sync_run_id":            run.ID.String(),
		"correlation_id":         run.CorrelationID,
		"provider":               conn.ProviderType,
		"status":                 string(run.Status),
		"records_processed":      run.RecordsProcessed,
		"users_created":          run.UsersCreated,
		"users_updated":          run.UsersUpdated,
		"apps_created":           run.AppsCreated,
		"apps_updated":           run.AppsUpdated,
		"access_records_created": run.AccessRecordsCreated,
		"access_records_updated": run.AccessRecordsUpdated,
		"partial_failures":       run.PartialFailures,
	}
	if run.ErrorKind != nil {
		details["error_kind"] = *run.ErrorKind
	}
	if run.ErrorMessage != nil {
		details["error_message"] = *run.ErrorMessage
	}

	return &models.AuditEvent{
		ID:         uuid.New(),
		Actor:      models.AuditActorSystem,
		Action:     models.AuditActionSync,
		TargetType: models.AuditTargetTypeConnection,
		TargetID:   conn.ID.String(),
		Details:    database.NewJSONB(details),
		CreatedAt:  time.Now().UTC(),
	}
}

// Status returns the connection and its most recent runs.
func (o *Orchestrator) Status(ctx context.Context) (*Status, error) {
	ctx, span := tracing.StartSpan(ctx, "Orchestrator.Status")
	defer span.End()

	store, err := o.store(ctx)
	if err != nil {
		return nil, err
	}

	conn, err := store.GetOrCreateConnection(ctx, o.config.ProviderType, o.config.ConnectionName)
	if err != nil {
		return nil, newError(KindStorageUnavailable, err, humanizeError(err))
	}

	runs, err := store.ListRecentSyncRuns(ctx, conn.ID, o.config.RecentRunsLimit)
	if err != nil {
		return nil, newError(KindStorageUnavailable, err, humanizeError(err))
	}

	return &Status{Connection: conn, RecentRuns: runs}, nil
}

// GetRun returns one run. A missing run is reported by the store.
func (o *Orchestrator) GetRun(ctx context.Context, id uuid.UUID) (*models.SyncRun, error) {
	ctx, span := tracing.StartSpan(ctx, "Orchestrator.GetRun")
	defer span.End()

	store, err := o.store(ctx)
	if err != nil {
		return nil, err
	}
	return store.GetSyncRun(ctx, id)
}

// CheckReady reports whether a sync could start now.
func (o *Orchestrator) CheckReady(ctx context.Context) error {
	store, err := o.store(ctx)
	if err != nil {
		return err
	}
	if err := store.Ping(ctx); err != nil {
		return newError(KindStorageUnavailable, err, humanizeError(err))
	}
	return nil
}

func (o *Orchestrator) store(ctx context.Context) (Store, error) {
	settings := o.settings.SyncSettings()
	if err := CheckSettings(settings); err != nil {
		return nil, err
	}
	store, err := o.openStore(ctx, settings.DatabaseURL)
	if err != nil {
		return nil, newError(KindStorageUnavailable, err, humanizeError(err))
	}
	return store, nil
}

func (o *Orchestrator) reject(ctx context.Context, result SyncResult, err *Error) SyncResult {
	metrics.RecordSyncRejected(o.config.ProviderType, string(err.Kind))
	o.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
		"correlation_id": result.CorrelationID,
		"error_kind":     err.Kind,
	}).Warnf("Sync rejected: %s", err.Message)
	result.fail(err)
	return result
}

func (o *Orchestrator) lockKey() string {
	return "sync:" + o.config.ProviderType
}

// classify maps an error that escaped the phases onto the taxonomy.
func classify(err error) *Error {
	var syncErr *Error
	if errors.As(err, &syncErr) {
		return syncErr
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return newError(KindUnhandledRunFailure, err, humanizeError(err))
	}
	if errors.Is(err, provider.ErrUnavailable) {
		return newError(KindProviderUnavailable, err, humanizeError(err))
	}
	return newError(KindUnhandledRunFailure, err, humanizeError(err))
}

func resolveCorrelationID(ctx context.Context, correlationID string) string {
	if id := strings.TrimSpace(correlationID); id != "" {
		return id
	}
	if id := appctx.GetCorrelationID(ctx); id != "" {
		return id
	}
	return uuid.NewString()
}
