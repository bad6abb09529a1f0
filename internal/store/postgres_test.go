package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockPostgresStore(t *testing.T, ttl time.Duration) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s, err := NewPostgresStore(db, ttl)
	require.NoError(t, err)
	return s, mock
}

func TestNewPostgresStore_RequiresConnection(t *testing.T) {
	_, err := NewPostgresStore(nil, 0)
	assert.Error(t, err)
}

func TestPostgresStore_Save(t *testing.T) {
	s, mock := newMockPostgresStore(t, 0)
	rec := testRecord("Jane Doe", 42)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO assessment_state (scope, assessment_result, form_data, saved_at)
		VALUES ($1, $2, $3, $4)`)).
		WithArgs("scope", sqlmock.AnyArg(), sqlmock.AnyArg(), rec.SavedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Save(context.Background(), "scope", rec))
	assert.Equal(t, "postgres", s.Dialect())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Load(t *testing.T) {
	s, mock := newMockPostgresStore(t, 0)
	savedAt := time.Date(2024, 3, 5, 10, 0, 1, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"assessment_result", "form_data", "saved_at"}).
		AddRow(`{"risk_percentage": 42, "risk_category": "Moderate Risk", "model_name": "XGBoost", "model_version": "1.2.0"}`,
			`{"patient_name": "Jane Doe", "age": 45, "chol": "Above Normal"}`, savedAt)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT assessment_result, form_data, saved_at FROM assessment_state WHERE scope = $1`)).
		WithArgs("scope").
		WillReturnRows(rows)

	rec, found, err := s.Load(context.Background(), "scope")

	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 42.0, rec.Result.RiskPercentage)
	assert.Equal(t, "Jane Doe", rec.Input.PatientName)
	assert.Equal(t, "Above Normal", string(rec.Input.Cholesterol))
	assert.True(t, savedAt.Equal(rec.SavedAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LoadMissing(t *testing.T) {
	s, mock := newMockPostgresStore(t, 0)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT assessment_result`)).
		WithArgs("scope").
		WillReturnRows(sqlmock.NewRows([]string{"assessment_result", "form_data", "saved_at"}))

	rec, found, err := s.Load(context.Background(), "scope")

	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, rec)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CorruptRowIsDeleted(t *testing.T) {
	s, mock := newMockPostgresStore(t, 0)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT assessment_result`)).
		WithArgs("scope").
		WillReturnRows(sqlmock.NewRows([]string{"assessment_result", "form_data", "saved_at"}).
			AddRow(`{"risk_percentage": 42}`, `not json`, time.Now()))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM assessment_state WHERE scope = $1`)).
		WithArgs("scope").
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, found, err := s.Load(context.Background(), "scope")

	require.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DatabaseErrors(t *testing.T) {
	s, mock := newMockPostgresStore(t, 0)
	dbErr := errors.New("connection reset")

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT assessment_result`)).WillReturnError(dbErr)
	_, _, err := s.Load(context.Background(), "scope")
	assert.ErrorIs(t, err, dbErr)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO assessment_state`)).WillReturnError(dbErr)
	err = s.Save(context.Background(), "scope", testRecord("Jane", 42))
	assert.ErrorIs(t, err, dbErr)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM assessment_state`)).WillReturnError(dbErr)
	err = s.Clear(context.Background(), "scope")
	assert.ErrorIs(t, err, dbErr)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CloseLeavesSharedConnectionOpen(t *testing.T) {
	s, mock := newMockPostgresStore(t, 0)

	require.NoError(t, s.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}
