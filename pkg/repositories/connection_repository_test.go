package repositories_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Gobusters/ectoerror/httperror"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/iris/pkg/models"
	"github.com/Ramsey-B/iris/pkg/repositories"
)

func TestConnectionRepository_GetOrCreate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repositories.NewConnectionRepository(db, newTestLogger())

	id := uuid.New()
	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "provider_type", "name", "status", "last_sync_at", "config", "created_at", "updated_at"}).
		AddRow(id.String(), "okta", "Okta", "connected", now, []byte(`{}`), now, now)

	mock.ExpectQuery(`INSERT INTO connections .+ ON CONFLICT \(provider_type\)`).
		WithArgs(sqlmock.AnyArg(), "okta", "Okta", "pending").
		WillReturnRows(rows)

	conn, err := repo.GetOrCreate(context.Background(), "okta", "Okta")
	require.NoError(t, err)
	assert.Equal(t, id, conn.ID)
	assert.Equal(t, models.ConnectionStatusConnected, conn.Status)
	require.NotNil(t, conn.LastSyncAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConnectionRepository_GetOrCreate_Error(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repositories.NewConnectionRepository(db, newTestLogger())

	refused := errors.New("dial tcp 127.0.0.1:5432: connect: connection refused")
	mock.ExpectQuery(`INSERT INTO connections`).WillReturnError(refused)

	_, err := repo.GetOrCreate(context.Background(), "okta", "Okta")
	assert.ErrorIs(t, err, refused)
}

func TestConnectionRepository_UpdateStatus(t *testing.T) {
	t.Run("without last sync", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := repositories.NewConnectionRepository(db, newTestLogger())
		id := uuid.New()

		mock.ExpectExec(`UPDATE connections SET status = \$1, updated_at = NOW\(\) WHERE id = \$2`).
			WithArgs("error", id).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.UpdateStatus(context.Background(), id, models.ConnectionStatusError, nil))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("with last sync", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := repositories.NewConnectionRepository(db, newTestLogger())
		id := uuid.New()
		now := time.Now()

		mock.ExpectExec(`UPDATE connections SET status = \$1, updated_at = NOW\(\), last_sync_at = \$2 WHERE id = \$3`).
			WithArgs("connected", now, id).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.UpdateStatus(context.Background(), id, models.ConnectionStatusConnected, &now))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing row", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := repositories.NewConnectionRepository(db, newTestLogger())

		mock.ExpectExec(`UPDATE connections`).WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.UpdateStatus(context.Background(), uuid.New(), models.ConnectionStatusError, nil)
		require.Error(t, err)
		assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))
	})
}
