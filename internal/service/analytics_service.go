package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"portfoliocv/internal/domain"
	"portfoliocv/internal/repository"
)

const (
	day             = 24 * time.Hour
	shortWindowDays = 7
	longWindowDays  = 30
	dateLayout      = "2006-01-02"
)

// AnalyticsService считает статистику скачиваний версии
type AnalyticsService struct {
	versions  repository.CVStore
	downloads repository.DownloadStore
	now       func() time.Time
}

func NewAnalyticsService(versions repository.CVStore, downloads repository.DownloadStore) *AnalyticsService {
	return &AnalyticsService{
		versions:  versions,
		downloads: downloads,
		now:       time.Now,
	}
}

// GetAnalytics строит сводку по скачиваниям версии на момент asOf.
// Нулевой asOf означает текущий момент. События удаленной версии
// продолжают учитываться.
func (s *AnalyticsService) GetAnalytics(
	ctx context.Context,
	versionID uuid.UUID,
	asOf time.Time,
) (*domain.AnalyticsSnapshot, error) {
	if asOf.IsZero() {
		asOf = s.now()
	}
	asOf = asOf.UTC()
	from := startOfDay(asOf.Add(-longWindowDays * day))

	var (
		total int64
		times []time.Time
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		total, err = s.downloads.CountDownloads(gctx, versionID)
		return err
	})
	g.Go(func() error {
		var err error
		times, err = s.downloads.ListDownloadTimes(gctx, versionID, from, asOf)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("get analytics: %w", err)
	}

	if total == 0 {
		if _, err := s.versions.GetVersion(ctx, versionID); err != nil {
			return nil, fmt.Errorf("get analytics: %w", err)
		}
	}

	return buildSnapshot(versionID, asOf, total, times), nil
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// buildSnapshot раскладывает моменты скачиваний по окнам и дням UTC.
// Гистограмма плотная: от даты asOf-30d до даты asOf включительно.
func buildSnapshot(versionID uuid.UUID, asOf time.Time, total int64, times []time.Time) *domain.AnalyticsSnapshot {
	since7 := asOf.Add(-shortWindowDays * day)
	since30 := asOf.Add(-longWindowDays * day)
	first := startOfDay(since30)
	days := int(startOfDay(asOf).Sub(first)/day) + 1

	buckets := make([]int64, days)
	var last7, last30 int64
	for _, ts := range times {
		ts = ts.UTC()
		if ts.After(asOf) || ts.Before(first) {
			continue
		}
		buckets[int(startOfDay(ts).Sub(first)/day)]++
		if !ts.Before(since30) {
			last30++
		}
		if !ts.Before(since7) {
			last7++
		}
	}

	byDate := make([]domain.DailyCount, days)
	for i := range buckets {
		byDate[i] = domain.DailyCount{
			Date:  first.Add(time.Duration(i) * day).Format(dateLayout),
			Count: buckets[i],
		}
	}

	return &domain.AnalyticsSnapshot{
		VersionID:              versionID,
		AsOf:                   asOf,
		TotalDownloads:         total,
		DownloadsLast7Days:     last7,
		DownloadsLast30Days:    last30,
		DownloadsByDate:        byDate,
		AverageDownloadsPerDay: math.Round(float64(last30)/longWindowDays*10) / 10,
	}
}
