package repositories

import (
	"context"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/Ramsey-B/iris/pkg/database"
	"github.com/Ramsey-B/iris/pkg/models"
)

// Store groups the repositories the sync engine writes through.
type Store struct {
	db          database.DB
	connections ConnectionRepo
	syncRuns    SyncRunRepo
	users       UserRepo
	apps        ApplicationRepo
	assignments AssignmentRepo
	audit       AuditEventRepo
}

func NewStore(db database.DB, logger ectologger.Logger) *Store {
	return &Store{
		db:          db,
		connections: NewConnectionRepository(db, logger),
		syncRuns:    NewSyncRunRepository(db, logger),
		users:       NewUserRepository(db, logger),
		apps:        NewApplicationRepository(db, logger),
		assignments: NewAssignmentRepository(db, logger),
		audit:       NewAuditEventRepository(db, logger),
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) GetOrCreateConnection(ctx context.Context, providerType, name string) (*models.Connection, error) {
	return s.connections.GetOrCreate(ctx, providerType, name)
}

func (s *Store) CreateSyncRun(ctx context.Context, run *models.SyncRun) error {
	return s.syncRuns.Create(ctx, run)
}

// FinalizeRun closes the run, moves the connection to status and appends the
// audit event in one transaction.
func (s *Store) FinalizeRun(ctx context.Context, run *models.SyncRun, status models.ConnectionStatus, lastSyncAt *time.Time, event *models.AuditEvent) error {
	return database.WithTx(ctx, s.db, func(ctx context.Context, _ database.Tx) error {
		if err := s.syncRuns.Finalize(ctx, run); err != nil {
			return err
		}
		if err := s.connections.UpdateStatus(ctx, run.ConnectionID, status, lastSyncAt); err != nil {
			return err
		}
		return s.audit.Append(ctx, event)
	})
}

func (s *Store) GetSyncRun(ctx context.Context, id uuid.UUID) (*models.SyncRun, error) {
	return s.syncRuns.GetByID(ctx, id)
}

func (s *Store) ListRecentSyncRuns(ctx context.Context, connectionID uuid.UUID, limit int) ([]models.SyncRun, error) {
	return s.syncRuns.ListRecent(ctx, connectionID, limit)
}

func (s *Store) UpsertUser(ctx context.Context, user *models.User) (bool, error) {
	return s.users.Upsert(ctx, user)
}

func (s *Store) UpsertApplication(ctx context.Context, app *models.Application) (bool, error) {
	return s.apps.Upsert(ctx, app)
}

func (s *Store) UpsertAssignment(ctx context.Context, assignment *models.Assignment) (bool, error) {
	return s.assignments.Upsert(ctx, assignment)
}

// OpenerConfig controls how Opener dials and prepares a database.
type OpenerConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	RetryCount      int
	// MigrationFolderPath is applied on first open when non-empty.
	MigrationFolderPath string
	AutoRollback        bool
}

// Opener lazily dials one pool per database URL and keeps it for reuse.
type Opener struct {
	config OpenerConfig
	logger ectologger.Logger

	mu     sync.Mutex
	stores map[string]*Store
}

func NewOpener(config OpenerConfig, logger ectologger.Logger) *Opener {
	return &Opener{
		config: config,
		logger: logger,
		stores: make(map[string]*Store),
	}
}

// Open returns the store for databaseURL, connecting and migrating on first use.
func (o *Opener) Open(ctx context.Context, databaseURL string) (*Store, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if store, ok := o.stores[databaseURL]; ok {
		return store, nil
	}

	db, err := database.Open(ctx, database.Config{
		Driver:          "postgres",
		URL:             databaseURL,
		MaxOpenConns:    o.config.MaxOpenConns,
		MaxIdleConns:    o.config.MaxIdleConns,
		ConnMaxLifetime: o.config.ConnMaxLifetime,
		RetryCount:      o.config.RetryCount,
	}, o.logger)
	if err != nil {
		return nil, err
	}

	if o.config.MigrationFolderPath != "" {
		migrations := database.NewMigrationService(o.logger, &database.MigrationConfig{
			MigrationFolderPath: o.config.MigrationFolderPath,
			AutoRollback:        o.config.AutoRollback,
		})
		if err := migrations.MigratePostgres(db.DB, "iris"); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	store := NewStore(database.NewDatabaseInstance(db, o.logger), o.logger)
	o.stores[databaseURL] = store
	return store, nil
}

// Close releases every pool the opener created.
func (o *Opener) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	var firstErr error
	for url, store := range o.stores {
		if err := store.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(o.stores, url)
	}
	return firstErr
}
