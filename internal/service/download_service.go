package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"portfoliocv/internal/domain"
	"portfoliocv/internal/repository"
)

// DownloadService учитывает скачивания и выдает ссылки на файлы версий
type DownloadService struct {
	versions  repository.CVStore
	downloads repository.DownloadStore
	objects   ObjectStore
	now       func() time.Time
}

func NewDownloadService(
	versions repository.CVStore,
	downloads repository.DownloadStore,
	objects ObjectStore,
) *DownloadService {
	return &DownloadService{
		versions:  versions,
		downloads: downloads,
		objects:   objects,
		now:       time.Now,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// RecordDownload сохраняет событие скачивания версии
func (s *DownloadService) RecordDownload(
	ctx context.Context,
	versionID uuid.UUID,
	meta domain.RequesterMetadata,
) error {
	version, err := s.versions.GetVersion(ctx, versionID)
	if err != nil {
		return fmt.Errorf("record download: %w", err)
	}

	event := &domain.DownloadEvent{
		ID:        uuid.New(),
		VersionID: version.ID,
		UserID:    version.UserID,
		IPAddress: optional(meta.IPAddress),
		UserAgent: optional(meta.UserAgent),
		CreatedAt: s.now().UTC(),
	}
	if err := s.downloads.InsertDownloadEvent(ctx, event); err != nil {
		return fmt.Errorf("record download: %w", err)
	}
	return nil
}

// ResolveDownloadURL возвращает ссылку, по которой клиент может получить файл версии
func (s *DownloadService) ResolveDownloadURL(ctx context.Context, versionID uuid.UUID) (string, error) {
	version, err := s.versions.GetVersion(ctx, versionID)
	if err != nil {
		return "", fmt.Errorf("resolve download url: %w", err)
	}
	url, err := s.objects.ResolveURL(ctx, version.StorageKey)
	if err != nil {
		return "", fmt.Errorf("resolve download url: %w", err)
	}
	return url, nil
}

// ActiveVersion возвращает текущую версию резюме пользователя
func (s *DownloadService) ActiveVersion(ctx context.Context, userID uuid.UUID) (*domain.CVVersion, error) {
	version, err := s.versions.GetActiveVersion(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get active cv version: %w", err)
	}
	return version, nil
}

// OpenVersion открывает содержимое версии на чтение. Вызывающий закрывает поток.
func (s *DownloadService) OpenVersion(ctx context.Context, versionID uuid.UUID) (io.ReadCloser, *domain.CVVersion, error) {
	version, err := s.versions.GetVersion(ctx, versionID)
	if err != nil {
		return nil, nil, fmt.Errorf("open cv version: %w", err)
	}
	body, err := s.objects.Get(ctx, version.StorageKey)
	if err != nil {
		return nil, nil, fmt.Errorf("open cv version: %w", err)
	}
	return body, version, nil
}
