package syncer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Gobusters/ectologger"

	appctx "github.com/Ramsey-B/iris/pkg/context"
	"github.com/Ramsey-B/iris/pkg/metrics"
	"github.com/Ramsey-B/iris/pkg/models"
	"github.com/Ramsey-B/iris/pkg/provider"
	"github.com/Ramsey-B/iris/pkg/tracing"
)

const defaultAccessLevel = "user"

// EntityStore is the write side the reconciler needs. Each upsert reports
// whether a new row was inserted.
type EntityStore interface {
	UpsertUser(ctx context.Context, user *models.User) (bool, error)
	UpsertApplication(ctx context.Context, app *models.Application) (bool, error)
	UpsertAssignment(ctx context.Context, assignment *models.Assignment) (bool, error)
}

// AssignmentLister lists the users assigned to one application.
type AssignmentLister interface {
	ListApplicationAssignments(ctx context.Context, appID string) ([]provider.AppUser, error)
}

// Reconciler maps provider records onto internal entities and upserts them
// by natural key.
type Reconciler struct {
	store      EntityStore
	attributes *provider.Attributes
	source     string
	logger     ectologger.Logger
}

func NewReconciler(store EntityStore, attributes *provider.Attributes, logger ectologger.Logger) *Reconciler {
	return &Reconciler{
		store:      store,
		attributes: attributes,
		source:     provider.SourceOkta,
		logger:     logger,
	}
}

// ReconcileUsers upserts every user that has an email and returns the map
// from provider user id to internal id.
func (r *Reconciler) ReconcileUsers(ctx context.Context, users []provider.User, stats *models.SyncCounters) (IDMap, error) {
	ctx, span := tracing.StartSpan(ctx, "Reconciler.ReconcileUsers")
	defer span.End()

	log := r.logger.WithContext(ctx).WithField("correlation_id", appctx.GetCorrelationID(ctx))

	ids := make(IDMap, len(users))
	skipped := 0
	for _, remote := range users {
		user, ok := r.mapUser(remote)
		if !ok {
			skipped++
			continue
		}

		inserted, err := r.store.UpsertUser(ctx, user)
		if err != nil {
			tracing.RecordError(span, err)
			return nil, fmt.Errorf("failed to reconcile user %s: %w", user.Email, err)
		}

		stats.RecordsProcessed++
		if inserted {
			stats.UsersCreated++
			metrics.RecordEntity("user", "created")
		} else {
			stats.UsersUpdated++
			metrics.RecordEntity("user", "updated")
		}
		ids.Put(remote.ID, user.ID)
	}

	log.WithFields(map[string]any{
		"users_created": stats.UsersCreated,
		"users_updated": stats.UsersUpdated,
		"users_skipped": skipped,
	}).Infof("Reconciled %d users", len(ids))
	return ids, nil
}

// ReconcileApplications upserts every active application and returns the id
// map along with the applications that were processed.
func (r *Reconciler) ReconcileApplications(ctx context.Context, apps []provider.Application, stats *models.SyncCounters) (IDMap, []provider.Application, error) {
	ctx, span := tracing.StartSpan(ctx, "Reconciler.ReconcileApplications")
	defer span.End()

	log := r.logger.WithContext(ctx).WithField("correlation_id", appctx.GetCorrelationID(ctx))

	ids := make(IDMap, len(apps))
	active := make([]provider.Application, 0, len(apps))
	for _, remote := range apps {
		if !remote.IsActive() {
			continue
		}

		app := r.mapApplication(remote)
		inserted, err := r.store.UpsertApplication(ctx, app)
		if err != nil {
			tracing.RecordError(span, err)
			return nil, nil, fmt.Errorf("failed to reconcile application %s: %w", app.Name, err)
		}

		stats.RecordsProcessed++
		if inserted {
			stats.AppsCreated++
			metrics.RecordEntity("application", "created")
		} else {
			stats.AppsUpdated++
			metrics.RecordEntity("application", "updated")
		}
		ids.Put(remote.ID, app.ID)
		active = append(active, remote)
	}

	log.WithFields(map[string]any{
		"apps_created":  stats.AppsCreated,
		"apps_updated":  stats.AppsUpdated,
		"apps_inactive": len(apps) - len(active),
	}).Infof("Reconciled %d applications", len(active))
	return ids, active, nil
}

// ReconcileAssignments fetches and upserts the assignments of each active
// application in turn. A failure to list one application's assignments is
// logged and counted, and the remaining applications are still processed.
// Storage failures and cancellation stop the phase.
func (r *Reconciler) ReconcileAssignments(ctx context.Context, lister AssignmentLister, apps []provider.Application, users, appIDs IDMap, stats *models.SyncCounters) error {
	ctx, span := tracing.StartSpan(ctx, "Reconciler.ReconcileAssignments")
	defer span.End()

	log := r.logger.WithContext(ctx).WithField("correlation_id", appctx.GetCorrelationID(ctx))

	for _, app := range apps {
		if err := ctx.Err(); err != nil {
			return err
		}

		applicationID, ok := appIDs.Resolve(app.ID)
		if !ok {
			continue
		}

		appUsers, err := lister.ListApplicationAssignments(ctx, app.ID)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			stats.PartialFailures++
			metrics.RecordPartialFailure(r.source)
			log.WithError(err).WithFields(map[string]any{
				"app_id":     app.ID,
				"app_name":   applicationName(app),
				"error_kind": KindPartialEntityFailure,
			}).Warnf("Failed to list assignments for %s, continuing", applicationName(app))
			continue
		}

		for _, appUser := range appUsers {
			userID, ok := users.Resolve(appUser.ID)
			if !ok {
				continue
			}

			assignment := r.mapAssignment(app, appUser)
			assignment.UserID = userID
			assignment.ApplicationID = applicationID

			inserted, err := r.store.UpsertAssignment(ctx, assignment)
			if err != nil {
				tracing.RecordError(span, err)
				return fmt.Errorf("failed to reconcile assignment of %s: %w", applicationName(app), err)
			}
			if inserted {
				stats.AccessRecordsCreated++
				metrics.RecordEntity("assignment", "created")
			} else {
				stats.AccessRecordsUpdated++
				metrics.RecordEntity("assignment", "updated")
			}
		}
	}

	log.WithFields(map[string]any{
		"access_records_created": stats.AccessRecordsCreated,
		"access_records_updated": stats.AccessRecordsUpdated,
		"partial_failures":       stats.PartialFailures,
	}).Info("Reconciled assignments")
	return nil
}

func (r *Reconciler) mapUser(remote provider.User) (*models.User, bool) {
	email := strings.ToLower(remote.Email())
	if email == "" {
		return nil, false
	}

	name := r.attributes.UserName(remote)
	if name == "" {
		name = email
	}

	return &models.User{
		Email:       email,
		Name:        name,
		Department:  optional(r.attributes.UserDepartment(remote)),
		Title:       optional(r.attributes.UserTitle(remote)),
		Status:      provider.MapUserStatus(remote.Status),
		Source:      r.source,
		ExternalID:  optional(remote.ID),
		LastLoginAt: remote.LastLogin,
	}, true
}

func (r *Reconciler) mapApplication(remote provider.Application) *models.Application {
	name := applicationName(remote)
	return &models.Application{
		Name:       name,
		Source:     r.source,
		Category:   provider.Categorize(name),
		Status:     strings.ToLower(remote.Status),
		ExternalID: optional(remote.ID),
		SignOnMode: optional(remote.SignOnMode),
		WebsiteURL: optional(r.attributes.AppWebsite(remote)),
	}
}

func (r *Reconciler) mapAssignment(app provider.Application, appUser provider.AppUser) *models.Assignment {
	level := appUser.Role()
	if level == "" {
		level = defaultAccessLevel
	}
	return &models.Assignment{
		AccessLevel: level,
		Status:      provider.MapAssignmentStatus(appUser.Status),
		Source:      r.source,
		ExternalID:  optional(app.ID + ":" + appUser.ID),
		GrantedAt:   appUser.Created,
	}
}

// applicationName prefers the display label and falls back to the internal name.
func applicationName(app provider.Application) string {
	if label := strings.TrimSpace(app.Label); label != "" {
		return label
	}
	return strings.TrimSpace(app.Name)
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
