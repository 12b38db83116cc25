package syncer

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "github.com/Ramsey-B/iris/pkg/context"
	"github.com/Ramsey-B/iris/pkg/httpclient"
	"github.com/Ramsey-B/iris/pkg/metrics"
	"github.com/Ramsey-B/iris/pkg/models"
	"github.com/Ramsey-B/iris/pkg/provider"
	"github.com/Ramsey-B/iris/pkg/provider/providertest"
)

const testToken = "test-token"

func newTestLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.AuditEvent
	err    error
}

func (p *recordingPublisher) PublishAudit(_ context.Context, event *models.AuditEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, *event)
	return p.err
}

type panickingProvider struct{}

func (panickingProvider) ListUsers(context.Context) ([]provider.User, error) {
	panic("unexpected nil profile")
}

func (panickingProvider) ListApplications(context.Context) ([]provider.Application, error) {
	return nil, nil
}

func (panickingProvider) ListApplicationAssignments(context.Context, string) ([]provider.AppUser, error) {
	return nil, nil
}

type harness struct {
	server    *providertest.Server
	store     *memStore
	settings  Settings
	opens     int
	openErr   error
	locker    Locker
	publisher *recordingPublisher
	config    Config
	factory   ProviderFactory
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	server := providertest.NewServer(testToken)
	t.Cleanup(server.Close)

	return &harness{
		server: server,
		store:  newMemStore(),
		settings: Settings{
			ProviderDomain: server.Domain(),
			ProviderToken:  testToken,
			StorageEnabled: true,
			DatabaseURL:    "postgres://iris@localhost/iris",
		},
		publisher: &recordingPublisher{},
	}
}

func (h *harness) orchestrator(t *testing.T) *Orchestrator {
	t.Helper()

	logger := newTestLogger()
	factory := h.factory
	if factory == nil {
		factory = func(s Settings) Provider {
			return provider.NewClient(provider.Config{
				Domain:              s.ProviderDomain,
				Token:               s.ProviderToken,
				UsersPageSize:       2,
				AppsPageSize:        2,
				AssignmentsPageSize: 2,
			}, httpclient.NewClient(httpclient.DefaultConfig(), logger), provider.NewLimiter(0), logger)
		}
	}

	o, err := NewOrchestrator(h.config, Dependencies{
		Settings: SettingsFunc(func() Settings { return h.settings }),
		OpenStore: func(_ context.Context, _ string) (Store, error) {
			h.opens++
			if h.openErr != nil {
				return nil, h.openErr
			}
			return h.store, nil
		},
		NewProvider: factory,
		Locker:      h.locker,
		Publisher:   h.publisher,
		Logger:      logger,
	})
	require.NoError(t, err)
	return o
}

// seedScenarioA loads two users, one without an email, and one active app
// both users are assigned to.
func (h *harness) seedScenarioA() {
	h.server.AddUser("00u1", "Ada@Example.com ", "ACTIVE", map[string]any{
		"firstName":  "Ada",
		"lastName":   "Lovelace",
		"department": "Engineering",
	})
	h.server.AddUser("00u2", "", "ACTIVE", nil)
	h.server.AddApp("0oa1", "Slack", "ACTIVE")
	h.server.Assign("0oa1", "00u1", "ACTIVE", map[string]any{"role": "admin"})
	h.server.Assign("0oa1", "00u2", "ACTIVE", nil)
}

func TestRunSync_ScenarioA_FirstRun(t *testing.T) {
	h := newHarness(t)
	h.seedScenarioA()
	o := h.orchestrator(t)

	result := o.RunSync(context.Background(), "")

	require.True(t, result.Success, result.ErrorMessage)
	assert.Equal(t, 1, result.UsersCreated)
	assert.Equal(t, 0, result.UsersUpdated)
	assert.Equal(t, 1, result.AppsCreated)
	assert.Equal(t, 1, result.AccessRecordsCreated)
	assert.Equal(t, 2, result.RecordsProcessed)
	assert.Empty(t, result.ErrorKind)
	assert.NotEmpty(t, result.CorrelationID)
	assert.GreaterOrEqual(t, result.DurationMs, int64(0))

	user, ok := h.store.users["ada@example.com"]
	require.True(t, ok)
	assert.Equal(t, "Ada Lovelace", user.Name)
	require.NotNil(t, user.Department)
	assert.Equal(t, "Engineering", *user.Department)
	assert.Equal(t, models.UserStatusActive, user.Status)
	assert.Equal(t, provider.SourceOkta, user.Source)

	app, ok := h.store.apps["Slack|okta"]
	require.True(t, ok)
	assert.Equal(t, models.AppCategoryCommunication, app.Category)

	require.Len(t, h.store.assignments, 1)
	for _, assignment := range h.store.assignments {
		assert.Equal(t, user.ID, assignment.UserID)
		assert.Equal(t, app.ID, assignment.ApplicationID)
		assert.Equal(t, "admin", assignment.AccessLevel)
		assert.Equal(t, models.AccessStatusActive, assignment.Status)
	}

	run := h.store.run(result.SyncRunID)
	assert.Equal(t, models.RunStatusCompleted, run.Status)
	require.NotNil(t, run.CompletedAt)
	assert.Equal(t, result.CorrelationID, run.CorrelationID)
	assert.Equal(t, 1, run.UsersCreated)
	assert.Nil(t, run.ErrorMessage)

	conn := h.store.connection("okta")
	assert.Equal(t, models.ConnectionStatusConnected, conn.Status)
	assert.NotNil(t, conn.LastSyncAt)

	require.Len(t, h.store.events, 1)
	event := h.store.events[0]
	assert.Equal(t, models.AuditActorSystem, event.Actor)
	assert.Equal(t, models.AuditActionSync, event.Action)
	assert.Equal(t, conn.ID.String(), event.TargetID)
	assert.Equal(t, 1, event.Details.Data["users_created"])
	assert.Equal(t, "completed", event.Details.Data["status"])

	require.Len(t, h.publisher.events, 1)
	assert.Equal(t, event.ID, h.publisher.events[0].ID)
}

func TestRunSync_ScenarioB_InactiveApplicationIgnored(t *testing.T) {
	h := newHarness(t)
	h.server.AddUser("00u1", "ada@example.com", "ACTIVE", nil)
	h.server.AddApp("0oa1", "Legacy CRM", "INACTIVE")
	h.server.Assign("0oa1", "00u1", "ACTIVE", nil)
	o := h.orchestrator(t)

	result := o.RunSync(context.Background(), "")

	require.True(t, result.Success, result.ErrorMessage)
	assert.Equal(t, 0, result.AppsCreated)
	assert.Equal(t, 0, result.AppsUpdated)
	assert.Equal(t, 0, result.AccessRecordsCreated)
	assert.Equal(t, 1, result.RecordsProcessed)
	assert.Equal(t, 0, h.server.Requests("/api/v1/apps/0oa1/users"))
	assert.Empty(t, h.store.apps)
}

func TestRunSync_ScenarioC_SecondRunIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.seedScenarioA()
	o := h.orchestrator(t)

	first := o.RunSync(context.Background(), "")
	require.True(t, first.Success, first.ErrorMessage)

	second := o.RunSync(context.Background(), "")
	require.True(t, second.Success, second.ErrorMessage)

	assert.NotEqual(t, first.SyncRunID, second.SyncRunID)
	assert.Equal(t, 0, second.UsersCreated)
	assert.Equal(t, 1, second.UsersUpdated)
	assert.Equal(t, 0, second.AppsCreated)
	assert.Equal(t, 1, second.AppsUpdated)
	assert.Equal(t, 0, second.AccessRecordsCreated)
	assert.Equal(t, 1, second.AccessRecordsUpdated)
	assert.Equal(t, first.RecordsProcessed, second.RecordsProcessed)

	assert.Len(t, h.store.users, 1)
	assert.Len(t, h.store.apps, 1)
	assert.Len(t, h.store.assignments, 1)
	assert.Len(t, h.store.connections, 1)
	assert.Len(t, h.store.events, 2)
}

func TestRunSync_ScenarioD_ApplicationListingFails(t *testing.T) {
	h := newHarness(t)
	h.seedScenarioA()
	o := h.orchestrator(t)

	first := o.RunSync(context.Background(), "")
	require.True(t, first.Success, first.ErrorMessage)
	lastSync := h.store.connection("okta").LastSyncAt
	require.NotNil(t, lastSync)

	h.server.Fail("/api/v1/apps", http.StatusInternalServerError)
	result := o.RunSync(context.Background(), "")

	assert.False(t, result.Success)
	assert.Equal(t, KindProviderUnavailable, result.ErrorKind)
	assert.Contains(t, result.ErrorMessage, "HTTP 500")
	assert.Equal(t, 1, result.UsersUpdated)
	assert.Equal(t, 1, result.RecordsProcessed)

	run := h.store.run(result.SyncRunID)
	assert.Equal(t, models.RunStatusFailed, run.Status)
	require.NotNil(t, run.CompletedAt)
	require.NotNil(t, run.ErrorMessage)
	assert.Equal(t, result.ErrorMessage, *run.ErrorMessage)
	require.NotNil(t, run.ErrorKind)
	assert.Equal(t, string(KindProviderUnavailable), *run.ErrorKind)
	assert.Equal(t, 1, run.UsersUpdated)

	conn := h.store.connection("okta")
	assert.Equal(t, models.ConnectionStatusError, conn.Status)
	require.NotNil(t, conn.LastSyncAt)
	assert.True(t, lastSync.Equal(*conn.LastSyncAt))

	require.Len(t, h.store.events, 2)
	assert.Equal(t, "failed", h.store.events[1].Details.Data["status"])
}

func TestRunSync_UserListingFailureFailsRun(t *testing.T) {
	h := newHarness(t)
	h.server.Fail("/api/v1/users", http.StatusUnauthorized)
	o := h.orchestrator(t)

	result := o.RunSync(context.Background(), "")

	assert.False(t, result.Success)
	assert.Equal(t, KindProviderUnavailable, result.ErrorKind)
	assert.Contains(t, result.ErrorMessage, "OKTA_API_TOKEN")
	assert.Equal(t, 0, h.server.Requests("/api/v1/apps"))
	assert.Equal(t, models.RunStatusFailed, h.store.run(result.SyncRunID).Status)
}

func TestRunSync_AssignmentFailureIsIsolated(t *testing.T) {
	h := newHarness(t)
	h.server.AddUser("00u1", "ada@example.com", "ACTIVE", nil)
	h.server.AddApp("0oa1", "Slack", "ACTIVE")
	h.server.AddApp("0oa2", "GitHub", "ACTIVE")
	h.server.Assign("0oa1", "00u1", "ACTIVE", nil)
	h.server.Assign("0oa2", "00u1", "ACTIVE", nil)
	h.server.Fail("/api/v1/apps/0oa1/users", http.StatusInternalServerError)
	o := h.orchestrator(t)

	result := o.RunSync(context.Background(), "")

	require.True(t, result.Success, result.ErrorMessage)
	assert.Equal(t, 1, result.PartialFailures)
	assert.Equal(t, 2, result.AppsCreated)
	assert.Equal(t, 1, result.AccessRecordsCreated)
	assert.Equal(t, 1, h.server.Requests("/api/v1/apps/0oa2/users"))
	assert.Equal(t, 1, h.store.run(result.SyncRunID).PartialFailures)
	assert.Equal(t, models.ConnectionStatusConnected, h.store.connection("okta").Status)
}

func TestRunSync_GuardFailuresSkipAllIO(t *testing.T) {
	tests := []struct {
		name     string
		settings func(s *Settings)
		kind     ErrorKind
		message  string
	}{
		{
			name: "missing credentials win over disabled storage",
			settings: func(s *Settings) {
				s.ProviderToken = ""
				s.StorageEnabled = false
				s.DatabaseURL = ""
			},
			kind:    KindNotConfigured,
			message: "OKTA_API_TOKEN",
		},
		{
			name:     "storage disabled",
			settings: func(s *Settings) { s.StorageEnabled = false },
			kind:     KindStorageUnavailable,
			message:  "DB_ENABLED",
		},
		{
			name:     "storage url missing",
			settings: func(s *Settings) { s.DatabaseURL = " " },
			kind:     KindStorageUnavailable,
			message:  "DATABASE_URL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.seedScenarioA()
			tt.settings(&h.settings)
			o := h.orchestrator(t)

			result := o.RunSync(context.Background(), "corr-1")

			assert.False(t, result.Success)
			assert.Equal(t, tt.kind, result.ErrorKind)
			assert.Contains(t, result.ErrorMessage, tt.message)
			assert.Equal(t, "corr-1", result.CorrelationID)
			assert.Empty(t, result.SyncRunID)
			assert.Equal(t, 0, h.opens)
			assert.Equal(t, 0, h.server.Requests("/api/v1/users"))
			assert.Empty(t, h.store.runs)
		})
	}
}

func TestRunSync_SettingsAreReadPerInvocation(t *testing.T) {
	h := newHarness(t)
	h.seedScenarioA()
	h.settings.StorageEnabled = false
	o := h.orchestrator(t)

	rejected := o.RunSync(context.Background(), "")
	assert.Equal(t, KindStorageUnavailable, rejected.ErrorKind)

	h.settings.StorageEnabled = true
	result := o.RunSync(context.Background(), "")
	assert.True(t, result.Success, result.ErrorMessage)
}

func TestRunSync_StoreUnreachable(t *testing.T) {
	h := newHarness(t)
	h.openErr = errors.New("dial tcp 127.0.0.1:5432: connect: connection refused")
	o := h.orchestrator(t)

	result := o.RunSync(context.Background(), "")

	assert.False(t, result.Success)
	assert.Equal(t, KindStorageUnavailable, result.ErrorKind)
	assert.Contains(t, result.ErrorMessage, "connection was refused")
	assert.Equal(t, 0, h.server.Requests("/api/v1/users"))
}

func TestRunSync_ConnectionFailureOpensNoRun(t *testing.T) {
	h := newHarness(t)
	h.store.connectionErr = errors.New(`pq: relation "connections" does not exist`)
	o := h.orchestrator(t)

	result := o.RunSync(context.Background(), "")

	assert.False(t, result.Success)
	assert.Equal(t, KindStorageUnavailable, result.ErrorKind)
	assert.Empty(t, result.SyncRunID)
	assert.Empty(t, h.store.runs)
}

func TestRunSync_LockHeld(t *testing.T) {
	h := newHarness(t)
	h.seedScenarioA()
	locker := NewLocalLocker()
	h.locker = locker
	o := h.orchestrator(t)

	unlock, acquired, err := locker.TryLock(context.Background(), "sync:okta", time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)

	result := o.RunSync(context.Background(), "")
	assert.False(t, result.Success)
	assert.Equal(t, KindSyncInProgress, result.ErrorKind)
	assert.Empty(t, result.SyncRunID)
	assert.Empty(t, h.store.runs)
	assert.Equal(t, 0, h.server.Requests("/api/v1/users"))

	require.NoError(t, unlock(context.Background()))
	result = o.RunSync(context.Background(), "")
	assert.True(t, result.Success, result.ErrorMessage)
}

func TestRunSync_ReleasesLockAfterFailure(t *testing.T) {
	h := newHarness(t)
	h.server.Fail("/api/v1/users", http.StatusInternalServerError)
	o := h.orchestrator(t)

	first := o.RunSync(context.Background(), "")
	require.Equal(t, KindProviderUnavailable, first.ErrorKind)

	second := o.RunSync(context.Background(), "")
	assert.Equal(t, KindProviderUnavailable, second.ErrorKind)
}

func TestRunSync_DeadlineExceeded(t *testing.T) {
	h := newHarness(t)
	h.seedScenarioA()
	h.config.MaxRunDuration = time.Nanosecond
	o := h.orchestrator(t)

	result := o.RunSync(context.Background(), "")

	assert.False(t, result.Success)
	assert.Equal(t, KindUnhandledRunFailure, result.ErrorKind)
	assert.Contains(t, result.ErrorMessage, "SYNC_MAX_RUN_DURATION")

	run := h.store.run(result.SyncRunID)
	assert.Equal(t, models.RunStatusFailed, run.Status)
	assert.Equal(t, models.ConnectionStatusError, h.store.connection("okta").Status)
}

func TestRunSync_StorageWriteFailureFailsRun(t *testing.T) {
	h := newHarness(t)
	h.seedScenarioA()
	h.store.userErr = errors.New("write failed")
	o := h.orchestrator(t)

	result := o.RunSync(context.Background(), "")

	assert.False(t, result.Success)
	assert.Equal(t, KindUnhandledRunFailure, result.ErrorKind)
	assert.Contains(t, result.ErrorMessage, "write failed")
	assert.Equal(t, models.RunStatusFailed, h.store.run(result.SyncRunID).Status)
	assert.Equal(t, 0, h.server.Requests("/api/v1/apps"))
}

func TestRunSync_RecoversFromPanic(t *testing.T) {
	h := newHarness(t)
	h.factory = func(Settings) Provider { return panickingProvider{} }
	o := h.orchestrator(t)

	result := o.RunSync(context.Background(), "")

	assert.False(t, result.Success)
	assert.Equal(t, KindUnhandledRunFailure, result.ErrorKind)
	assert.Contains(t, result.ErrorMessage, "unexpected nil profile")
	assert.Equal(t, models.RunStatusFailed, h.store.run(result.SyncRunID).Status)
}

func TestRunSync_FinalizeFailureFailsResult(t *testing.T) {
	h := newHarness(t)
	h.seedScenarioA()
	h.config.ProviderType = "okta-finalize-retry"
	h.store.finalizeErrs = []error{errors.New("could not serialize access")}
	o := h.orchestrator(t)

	completed := testutil.ToFloat64(metrics.SyncRunsTotal.WithLabelValues("okta-finalize-retry", "completed"))
	failed := testutil.ToFloat64(metrics.SyncRunsTotal.WithLabelValues("okta-finalize-retry", "failed"))

	result := o.RunSync(context.Background(), "")

	assert.False(t, result.Success)
	assert.Equal(t, KindUnhandledRunFailure, result.ErrorKind)
	assert.Contains(t, result.ErrorMessage, "could not serialize access")

	run := h.store.run(result.SyncRunID)
	assert.Equal(t, models.RunStatusFailed, run.Status)
	assert.NotNil(t, run.CompletedAt)
	require.NotNil(t, run.ErrorKind)
	assert.Equal(t, string(KindUnhandledRunFailure), *run.ErrorKind)
	assert.Equal(t, models.ConnectionStatusError, h.store.connection("okta-finalize-retry").Status)

	require.Len(t, h.publisher.events, 1)
	assert.Equal(t, "failed", h.publisher.events[0].Details.Data["status"])

	assert.Equal(t, completed, testutil.ToFloat64(metrics.SyncRunsTotal.WithLabelValues("okta-finalize-retry", "completed")))
	assert.Equal(t, failed+1, testutil.ToFloat64(metrics.SyncRunsTotal.WithLabelValues("okta-finalize-retry", "failed")))
}

func TestRunSync_FinalizeRetryFailureSkipsAudit(t *testing.T) {
	h := newHarness(t)
	h.seedScenarioA()
	h.config.ProviderType = "okta-finalize-down"
	h.store.finalizeErrs = []error{errors.New("connection reset"), errors.New("connection reset")}
	o := h.orchestrator(t)

	failed := testutil.ToFloat64(metrics.SyncRunsTotal.WithLabelValues("okta-finalize-down", "failed"))

	result := o.RunSync(context.Background(), "")

	assert.False(t, result.Success)
	assert.Equal(t, KindUnhandledRunFailure, result.ErrorKind)
	assert.Empty(t, h.publisher.events)
	assert.Empty(t, h.store.finalizeErrs)
	assert.Equal(t, failed+1, testutil.ToFloat64(metrics.SyncRunsTotal.WithLabelValues("okta-finalize-down", "failed")))
}

func TestRunSync_PublisherFailureDoesNotFailRun(t *testing.T) {
	h := newHarness(t)
	h.seedScenarioA()
	h.publisher.err = errors.New("broker unavailable")
	o := h.orchestrator(t)

	result := o.RunSync(context.Background(), "")

	assert.True(t, result.Success, result.ErrorMessage)
	assert.Len(t, h.publisher.events, 1)
	assert.Len(t, h.store.events, 1)
}

func TestRunSync_CorrelationID(t *testing.T) {
	h := newHarness(t)
	o := h.orchestrator(t)

	supplied := o.RunSync(context.Background(), " corr-42 ")
	assert.Equal(t, "corr-42", supplied.CorrelationID)
	assert.Equal(t, "corr-42", h.store.run(supplied.SyncRunID).CorrelationID)

	fromContext := o.RunSync(appctx.SetCorrelationID(context.Background(), "ctx-7"), "")
	assert.Equal(t, "ctx-7", fromContext.CorrelationID)

	generated := o.RunSync(context.Background(), "")
	_, err := uuid.Parse(generated.CorrelationID)
	assert.NoError(t, err)
}

func TestStatus(t *testing.T) {
	h := newHarness(t)
	h.seedScenarioA()
	o := h.orchestrator(t)

	status, err := o.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.ConnectionStatusPending, status.Connection.Status)
	assert.Empty(t, status.RecentRuns)

	result := o.RunSync(context.Background(), "")
	require.True(t, result.Success)

	status, err = o.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.ConnectionStatusConnected, status.Connection.Status)
	require.Len(t, status.RecentRuns, 1)
	assert.Equal(t, result.SyncRunID, status.RecentRuns[0].ID.String())
}

func TestStatus_NotConfigured(t *testing.T) {
	h := newHarness(t)
	h.settings.ProviderDomain = ""
	o := h.orchestrator(t)

	_, err := o.Status(context.Background())

	var syncErr *Error
	require.ErrorAs(t, err, &syncErr)
	assert.Equal(t, KindNotConfigured, syncErr.Kind)
}

func TestGetRun(t *testing.T) {
	h := newHarness(t)
	o := h.orchestrator(t)

	result := o.RunSync(context.Background(), "")
	require.True(t, result.Success, result.ErrorMessage)

	run, err := o.GetRun(context.Background(), uuid.MustParse(result.SyncRunID))
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, run.Status)

	_, err = o.GetRun(context.Background(), uuid.New())
	assert.Error(t, err)
}

func TestCheckReady(t *testing.T) {
	h := newHarness(t)
	o := h.orchestrator(t)

	assert.NoError(t, o.CheckReady(context.Background()))

	h.store.pingErr = errors.New("connection refused")
	err := o.CheckReady(context.Background())
	var syncErr *Error
	require.ErrorAs(t, err, &syncErr)
	assert.Equal(t, KindStorageUnavailable, syncErr.Kind)
}

func TestNewOrchestrator_RequiresDependencies(t *testing.T) {
	_, err := NewOrchestrator(Config{}, Dependencies{Logger: newTestLogger()})
	assert.Error(t, err)
}
