package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"portfoliocv/internal/domain"
)

// DownloadStore хранит события скачивания резюме
type DownloadStore interface {
	InsertDownloadEvent(ctx context.Context, event *domain.DownloadEvent) error
	CountDownloads(ctx context.Context, versionID uuid.UUID) (int64, error)
	// ListDownloadTimes возвращает моменты скачиваний в интервале [from, to]
	ListDownloadTimes(ctx context.Context, versionID uuid.UUID, from, to time.Time) ([]time.Time, error)
}

type DownloadRepository struct {
	db      *sqlx.DB
	timeout time.Duration
}

func NewDownloadRepository(db *sqlx.DB, timeout time.Duration) *DownloadRepository {
	return &DownloadRepository{db: db, timeout: timeout}
}

var _ DownloadStore = (*DownloadRepository)(nil)

func (r *DownloadRepository) InsertDownloadEvent(ctx context.Context, event *domain.DownloadEvent) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	query := `
        INSERT INTO cv_download_events (id, version_id, user_id, ip_address, user_agent, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.ExecContext(ctx, query,
		event.ID,
		event.VersionID,
		event.UserID,
		event.IPAddress,
		event.UserAgent,
		event.CreatedAt,
	)
	if err != nil {
		return classify("insert download event", err)
	}
	return nil
}

func (r *DownloadRepository) CountDownloads(ctx context.Context, versionID uuid.UUID) (int64, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var total int64
	query := `SELECT COUNT(*) FROM cv_download_events WHERE version_id = $1`
	if err := r.db.GetContext(ctx, &total, query, versionID); err != nil {
		return 0, classify("count downloads", err)
	}
	return total, nil
}

func (r *DownloadRepository) ListDownloadTimes(
	ctx context.Context,
	versionID uuid.UUID,
	from, to time.Time,
) ([]time.Time, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	times := make([]time.Time, 0)
	query := `
        SELECT created_at FROM cv_download_events
        WHERE version_id = $1 AND created_at >= $2 AND created_at <= $3
        ORDER BY created_at`
	if err := r.db.SelectContext(ctx, &times, query, versionID, from, to); err != nil {
		return nil, classify("list download times", err)
	}
	return times, nil
}
