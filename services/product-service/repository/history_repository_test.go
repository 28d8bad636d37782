package repository_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/samirvithlani/mayaa-backend/services/product-service/models"
	"github.com/samirvithlani/mayaa-backend/services/product-service/repository"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{})
	require.NoError(t, err)
	return gormDB, mock
}

var runColumns = []string{
	"id", "job_id", "state", "total_rows", "total_products", "success_count",
	"failed_count", "rejected_rows", "error", "started_at", "finished_at", "created_at",
}

func TestRecord_Upserts(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormImportHistoryRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "import_runs"`) + ".*" + regexp.QuoteMeta(`ON CONFLICT ("job_id") DO UPDATE`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	err := repo.Record(context.Background(), &models.ImportRun{
		JobID:         "job-1",
		State:         string(models.JobStateCompleted),
		TotalRows:     2,
		TotalProducts: 1,
		SuccessCount:  1,
		FinishedAt:    time.Now(),
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecord_Error(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormImportHistoryRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "import_runs"`)).
		WillReturnError(errors.New("db down"))
	mock.ExpectRollback()

	err := repo.Record(context.Background(), &models.ImportRun{JobID: "job-1"})
	assert.Error(t, err)
}

func TestFindByJobID_Success(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormImportHistoryRepository(gormDB)

	now := time.Now()
	rows := sqlmock.NewRows(runColumns).
		AddRow(7, "job-7", "failed", 10, 0, 0, 0, 0, "redis down", now, now, now)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "import_runs" WHERE job_id = $1`)).
		WillReturnRows(rows)

	run, err := repo.FindByJobID(context.Background(), "job-7")
	require.NoError(t, err)
	assert.Equal(t, "failed", run.State)
	assert.Equal(t, "redis down", run.Error)
}

func TestFindByJobID_NotFound(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormImportHistoryRepository(gormDB)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "import_runs"`)).
		WillReturnRows(sqlmock.NewRows(runColumns))

	run, err := repo.FindByJobID(context.Background(), "missing")
	assert.ErrorIs(t, err, repository.ErrImportRunNotFound)
	assert.Nil(t, run)
}

func TestList_FiltersByState(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormImportHistoryRepository(gormDB)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "import_runs" WHERE state = $1`)).
		WithArgs("completed").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "import_runs" WHERE state = $1 ORDER BY finished_at DESC`)).
		WillReturnRows(sqlmock.NewRows(runColumns).
			AddRow(2, "job-2", "completed", 4, 2, 2, 0, 0, "", now, now, now).
			AddRow(1, "job-1", "completed", 2, 1, 0, 1, 0, "", now, now, now))

	runs, total, err := repo.List(context.Background(), models.ImportRunFilter{State: "completed"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, runs, 2)
	assert.Equal(t, "job-2", runs[0].JobID)
}

func TestList_CountError(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormImportHistoryRepository(gormDB)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "import_runs"`)).
		WillReturnError(errors.New("boom"))

	_, _, err := repo.List(context.Background(), models.ImportRunFilter{})
	assert.Error(t, err)
}
