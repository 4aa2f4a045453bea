package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfoliocv/internal/domain"
	"portfoliocv/internal/repository"
)

func setupDownloadRepoMock(t *testing.T) (*repository.DownloadRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return repository.NewDownloadRepository(sqlx.NewDb(db, "sqlmock"), time.Second), mock
}

func TestDownloadRepository_InsertDownloadEvent(t *testing.T) {
	repo, mock := setupDownloadRepoMock(t)
	ip := "203.0.113.7"
	event := &domain.DownloadEvent{
		ID:        uuid.New(),
		VersionID: uuid.New(),
		UserID:    uuid.New(),
		IPAddress: &ip,
		CreatedAt: time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC),
	}

	mock.ExpectExec(`INSERT INTO cv_download_events`).
		WithArgs(event.ID, event.VersionID, event.UserID, &ip, nil, event.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.InsertDownloadEvent(context.Background(), event))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDownloadRepository_InsertDownloadEvent_Error(t *testing.T) {
	repo, mock := setupDownloadRepoMock(t)
	mock.ExpectExec(`INSERT INTO cv_download_events`).
		WillReturnError(errors.New("disk full"))

	err := repo.InsertDownloadEvent(context.Background(), &domain.DownloadEvent{ID: uuid.New()})
	require.ErrorIs(t, err, domain.ErrPersistenceFailure)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDownloadRepository_CountDownloads(t *testing.T) {
	repo, mock := setupDownloadRepoMock(t)
	versionID := uuid.New()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM cv_download_events WHERE version_id = \$1`).
		WithArgs(versionID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(42)))

	total, err := repo.CountDownloads(context.Background(), versionID)
	require.NoError(t, err)
	assert.Equal(t, int64(42), total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDownloadRepository_ListDownloadTimes(t *testing.T) {
	repo, mock := setupDownloadRepoMock(t)
	versionID := uuid.New()
	to := time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)
	from := to.AddDate(0, 0, -30)
	t1 := to.Add(-48 * time.Hour)
	t2 := to.Add(-time.Hour)

	mock.ExpectQuery(`SELECT created_at FROM cv_download_events WHERE version_id = \$1 AND created_at >= \$2 AND created_at <= \$3`).
		WithArgs(versionID, from, to).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(t1).AddRow(t2))

	times, err := repo.ListDownloadTimes(context.Background(), versionID, from, to)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{t1, t2}, times)
	assert.NoError(t, mock.ExpectationsWereMet())
}
