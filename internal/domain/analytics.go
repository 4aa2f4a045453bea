package domain

import (
	"time"

	"github.com/google/uuid"
)

// DailyCount - количество скачиваний за календарный день (UTC)
type DailyCount struct {
	Date  string `json:"date"` // 2006-01-02
	Count int64  `json:"count"`
}

type AnalyticsSnapshot struct {
	VersionID              uuid.UUID    `json:"version_id"`
	AsOf                   time.Time    `json:"as_of"`
	TotalDownloads         int64        `json:"total_downloads"`
	DownloadsLast7Days     int64        `json:"downloads_last_7_days"`
	DownloadsLast30Days    int64        `json:"downloads_last_30_days"`
	DownloadsByDate        []DailyCount `json:"downloads_by_date"`
	AverageDownloadsPerDay float64      `json:"average_downloads_per_day"`
}
