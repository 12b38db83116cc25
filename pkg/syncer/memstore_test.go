package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Ramsey-B/iris/pkg/models"
)

// memStore is an in-memory Store keyed the same way as the Postgres tables.
type memStore struct {
	mu          sync.Mutex
	connections map[string]*models.Connection
	runs        map[uuid.UUID]models.SyncRun
	users       map[string]models.User
	apps        map[string]models.Application
	assignments map[string]models.Assignment
	events      []models.AuditEvent

	pingErr       error
	connectionErr error
	userErr       error
	// finalizeErrs are returned by successive FinalizeRun calls
	finalizeErrs []error
	onUserUpsert func()
}

func newMemStore() *memStore {
	return &memStore{
		connections: map[string]*models.Connection{},
		runs:        map[uuid.UUID]models.SyncRun{},
		users:       map[string]models.User{},
		apps:        map[string]models.Application{},
		assignments: map[string]models.Assignment{},
	}
}

func (s *memStore) Ping(context.Context) error {
	return s.pingErr
}

func (s *memStore) GetOrCreateConnection(_ context.Context, providerType, name string) (*models.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connectionErr != nil {
		return nil, s.connectionErr
	}
	conn, ok := s.connections[providerType]
	if !ok {
		conn = &models.Connection{
			ID:           uuid.New(),
			ProviderType: providerType,
			Name:         name,
			Status:       models.ConnectionStatusPending,
		}
		s.connections[providerType] = conn
	}
	copied := *conn
	return &copied, nil
}

func (s *memStore) CreateSyncRun(_ context.Context, run *models.SyncRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = *run
	return nil
}

func (s *memStore) FinalizeRun(ctx context.Context, run *models.SyncRun, status models.ConnectionStatus, lastSyncAt *time.Time, event *models.AuditEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.finalizeErrs) > 0 {
		err := s.finalizeErrs[0]
		s.finalizeErrs = s.finalizeErrs[1:]
		return err
	}
	if !run.Status.IsTerminal() || run.CompletedAt == nil {
		return errors.New("run is not terminal")
	}
	stored, ok := s.runs[run.ID]
	if !ok || stored.Status != models.RunStatusRunning {
		return fmt.Errorf("run %s is not running", run.ID)
	}
	s.runs[run.ID] = *run

	for _, conn := range s.connections {
		if conn.ID == run.ConnectionID {
			conn.Status = status
			if lastSyncAt != nil {
				conn.LastSyncAt = lastSyncAt
			}
		}
	}
	s.events = append(s.events, *event)
	return nil
}

func (s *memStore) GetSyncRun(_ context.Context, id uuid.UUID) (*models.SyncRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, fmt.Errorf("sync run %s not found", id)
	}
	return &run, nil
}

func (s *memStore) ListRecentSyncRuns(_ context.Context, connectionID uuid.UUID, limit int) ([]models.SyncRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var runs []models.SyncRun
	for _, run := range s.runs {
		if run.ConnectionID == connectionID {
			runs = append(runs, run)
		}
	}
	if len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (s *memStore) UpsertUser(_ context.Context, user *models.User) (bool, error) {
	if s.onUserUpsert != nil {
		s.onUserUpsert()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.userErr != nil {
		return false, s.userErr
	}
	existing, ok := s.users[user.Email]
	if ok {
		user.ID = existing.ID
	} else {
		user.ID = uuid.New()
	}
	s.users[user.Email] = *user
	return !ok, nil
}

func (s *memStore) UpsertApplication(_ context.Context, app *models.Application) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := app.Name + "|" + app.Source
	existing, ok := s.apps[key]
	if ok {
		app.ID = existing.ID
	} else {
		app.ID = uuid.New()
	}
	s.apps[key] = *app
	return !ok, nil
}

func (s *memStore) UpsertAssignment(_ context.Context, assignment *models.Assignment) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := assignment.UserID.String() + "|" + assignment.ApplicationID.String()
	existing, ok := s.assignments[key]
	if ok {
		assignment.ID = existing.ID
	} else {
		assignment.ID = uuid.New()
	}
	s.assignments[key] = *assignment
	return !ok, nil
}

func (s *memStore) connection(providerType string) models.Connection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.connections[providerType]
}

func (s *memStore) run(id string) models.SyncRun {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs[uuid.MustParse(id)]
}
