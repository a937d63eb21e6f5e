package reportstore

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/wfrisk/internal/walkforward"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sqlxDB := sqlx.NewDb(db, "postgres")
	return New(sqlxDB, time.Second), mock
}

func TestSaveUpsertsRow(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO walkforward_results").
		WithArgs("run-1", true, 72.5, 0.6, 0.2, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	result := walkforward.WalkForwardResult{Passed: true, RobustnessScore: 72.5, DeflatedSharpe: 0.6, PBO: 0.2}
	err := store.Save(context.Background(), "run-1", result)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByRunIDReturnsDecodedResult(t *testing.T) {
	store, mock := newMockStore(t)

	payload := `{"Passed":true,"RobustnessScore":80.1}`
	rows := sqlmock.NewRows([]string{"result"}).AddRow([]byte(payload))
	mock.ExpectQuery("SELECT result FROM walkforward_results WHERE run_id").
		WithArgs("run-1").
		WillReturnRows(rows)

	result, err := store.GetByRunID(context.Background(), "run-1")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.Passed)
	assert.Equal(t, 80.1, result.RobustnessScore)
}

func TestGetByRunIDNotFoundReturnsNilNil(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT result FROM walkforward_results WHERE run_id").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	result, err := store.GetByRunID(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestLatestReturnsMostRecentRun(t *testing.T) {
	store, mock := newMockStore(t)

	payload := `{"Passed":false,"RobustnessScore":10}`
	rows := sqlmock.NewRows([]string{"result"}).AddRow([]byte(payload))
	mock.ExpectQuery("SELECT result FROM walkforward_results ORDER BY created_at").
		WillReturnRows(rows)

	result, err := store.Latest(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.False(t, result.Passed)
}
