package database_test

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/4liaghaie/scraper-dashboard/internal/database"
	"github.com/4liaghaie/scraper-dashboard/internal/jobs"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { mockDB.Close() })

	return sqlx.NewDb(mockDB, "postgres"), mock
}

func TestRunRepository_JobCreated(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewRunRepository(db)

	snap := jobs.Snapshot{
		ID:     "run-123",
		Kind:   "rebaid_urls",
		Status: jobs.StatusQueued,
		Meta:   jobs.Meta{"site": jobs.MetaString("rebaid")},
	}

	mock.ExpectExec("INSERT INTO job_runs").
		WithArgs("run-123", "rebaid_urls", "queued", 0, 0, 0, 0, "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.JobCreated(context.Background(), snap); err != nil {
		t.Fatalf("JobCreated() error = %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestRunRepository_JobUpdated(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewRunRepository(db)

	snap := jobs.Snapshot{
		ID:     "run-123",
		Kind:   "rebaid_urls",
		Status: jobs.StatusRunning,
		Total:  50,
		Done:   10,
		OK:     9,
		Err:    1,
		Note:   "page 2",
	}

	mock.ExpectExec("UPDATE job_runs").
		WithArgs("running", 50, 10, 9, 1, "page 2", sqlmock.AnyArg(), "run-123").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.JobUpdated(context.Background(), snap); err != nil {
		t.Fatalf("JobUpdated() error = %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestRunRepository_JobUpdated_MissingRow(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewRunRepository(db)

	mock.ExpectExec("UPDATE job_runs").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.JobUpdated(context.Background(), jobs.Snapshot{ID: "missing"})
	if err == nil {
		t.Fatal("expected error for missing run row")
	}
}

func TestRunRepository_JobEvent(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewRunRepository(db)

	mock.ExpectExec("INSERT INTO job_events").
		WithArgs("run-123", "error", "fetch failed", 1, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.JobEvent(context.Background(), "run-123", "error", "fetch failed", 1, nil)
	if err != nil {
		t.Fatalf("JobEvent() error = %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestRunRepository_JobEvent_DatabaseDown(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewRunRepository(db)

	mock.ExpectExec("INSERT INTO job_events").
		WillReturnError(errors.New("connection refused"))

	err := repo.JobEvent(context.Background(), "run-123", "info", "", 1, nil)
	if err == nil {
		t.Fatal("expected error when the database is unreachable")
	}
}
