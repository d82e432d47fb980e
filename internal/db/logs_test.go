package db

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logintel/backend/internal/models"
)

func newTestLogDB(t *testing.T) (*LogDB, sqlmock.Sqlmock) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	database := NewDatabaseForTesting(sqlDB)
	return NewLogDB(database), mock
}

func TestInsertLogs_Success(t *testing.T) {
	logDB, mock := newTestLogDB(t)
	mock.ExpectBegin()
	mock.ExpectPrepare("INSERT INTO log_entries")
	mock.ExpectQuery("INSERT INTO log_entries").
		WillReturnRows(sqlmock.NewRows([]string{"internal_id"}).AddRow(int64(1)))
	mock.ExpectCommit()

	entries := []models.LogEntry{{
		ExternalID: "ext-1",
		Timestamp:  time.Now(),
		Level:      models.LevelInfo,
		Message:    "hello",
		SourceType: models.SourceApplication,
		RawLog:     "raw",
	}}

	results, err := logDB.InsertLogs(entries)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Stored)
	assert.Equal(t, int64(1), results[0].InternalID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertLogs_DuplicateExternalID(t *testing.T) {
	logDB, mock := newTestLogDB(t)
	mock.ExpectBegin()
	mock.ExpectPrepare("INSERT INTO log_entries")
	mock.ExpectQuery("INSERT INTO log_entries").
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectCommit()

	entries := []models.LogEntry{{
		ExternalID: "ext-dup",
		Timestamp:  time.Now(),
		Level:      models.LevelInfo,
		Message:    "hello",
		SourceType: models.SourceApplication,
		RawLog:     "raw",
	}}

	results, err := logDB.InsertLogs(entries)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Stored)
	assert.ErrorIs(t, results[0].Err, ErrDuplicateExternalID)
}
