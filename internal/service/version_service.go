package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"portfoliocv/internal/domain"
	"portfoliocv/internal/metrics"
	"portfoliocv/internal/repository"
)

// VersionService управляет версиями резюме: загрузка, активация, удаление.
// Все изменения выполняются под блокировкой пользователя, поэтому у
// пользователя с версиями всегда ровно одна активная.
type VersionService struct {
	store          repository.CVStore
	objects        ObjectStore
	maxUploadBytes int64
	metrics        *metrics.Collectors
	logger         *zap.Logger
}

func NewVersionService(
	store repository.CVStore,
	objects ObjectStore,
	maxUploadBytes int64,
	m *metrics.Collectors,
	logger *zap.Logger,
) *VersionService {
	return &VersionService{
		store:          store,
		objects:        objects,
		maxUploadBytes: maxUploadBytes,
		metrics:        m,
		logger:         logger,
	}
}

// storageKey строит ключ объекта из пользователя, номера версии и случайного токена
func storageKey(userID uuid.UUID, versionNumber int, format domain.Format) string {
	return fmt.Sprintf("cv/%s/v%d-%s.%s", userID, versionNumber, uuid.NewString(), format.Extension())
}

func (s *VersionService) validateUpload(upload domain.CVUpload) (domain.Format, error) {
	if len(upload.Data) == 0 {
		return "", domain.ErrEmptyFile
	}
	if int64(len(upload.Data)) > s.maxUploadBytes {
		return "", fmt.Errorf("%w: max size is %d bytes", domain.ErrFileTooLarge, s.maxUploadBytes)
	}
	if upload.Format == "" {
		return domain.FormatFromFilename(upload.FileName), nil
	}
	format, err := domain.ParseFormat(upload.Format)
	if err != nil {
		return "", fmt.Errorf("%w: %q", err, upload.Format)
	}
	return format, nil
}

// UploadVersion сохраняет файл и делает его новой активной версией.
// Файл записывается в хранилище до вставки строки; если вставка не удалась,
// объект остается в хранилище без ссылок на него.
func (s *VersionService) UploadVersion(ctx context.Context, upload domain.CVUpload) (*domain.CVVersion, error) {
	format, err := s.validateUpload(upload)
	if err != nil {
		s.metrics.ObserveUpload(metrics.ResultRejected)
		return nil, err
	}

	version := &domain.CVVersion{
		ID:            uuid.New(),
		UserID:        upload.UserID,
		Format:        format,
		SizeBytes:     int64(len(upload.Data)),
		TemplateLabel: upload.TemplateLabel,
		Notes:         upload.Notes,
		IsActive:      true,
	}

	stored := false
	err = s.store.WithUserLock(ctx, upload.UserID, func(tx repository.VersionTx) error {
		next, err := tx.NextVersionNumber(ctx)
		if err != nil {
			return err
		}
		version.VersionNumber = next
		version.StorageKey = storageKey(upload.UserID, next, format)

		if err := s.objects.Put(ctx, version.StorageKey, upload.Data, format.ContentType()); err != nil {
			return err
		}
		stored = true

		url, err := s.objects.ResolveURL(ctx, version.StorageKey)
		if err != nil {
			return err
		}
		if err := tx.DeactivateAll(ctx); err != nil {
			return err
		}
		if err := tx.InsertVersion(ctx, version); err != nil {
			return err
		}
		return tx.SetUserCVURL(ctx, url)
	})
	if err != nil {
		if stored {
			s.logger.Warn("cv upload failed after object was stored, leaving orphaned object",
				zap.String("user_id", upload.UserID.String()),
				zap.String("storage_key", version.StorageKey),
				zap.Error(err))
		}
		s.metrics.ObserveUpload(metrics.ResultFailed)
		return nil, fmt.Errorf("upload cv version: %w", err)
	}

	s.metrics.ObserveUpload(metrics.ResultOK)
	s.logger.Info("cv version uploaded",
		zap.String("user_id", version.UserID.String()),
		zap.String("version_id", version.ID.String()),
		zap.Int("version_number", version.VersionNumber),
		zap.String("format", string(version.Format)),
		zap.Int64("size_bytes", version.SizeBytes))
	return version, nil
}

// SetActiveVersion делает версию активной, остальные версии пользователя
// становятся неактивными
func (s *VersionService) SetActiveVersion(ctx context.Context, versionID uuid.UUID) error {
	version, err := s.store.GetVersion(ctx, versionID)
	if err != nil {
		return fmt.Errorf("set active cv version: %w", err)
	}

	err = s.store.WithUserLock(ctx, version.UserID, func(tx repository.VersionTx) error {
		return s.activateLocked(ctx, tx, versionID)
	})
	if err != nil {
		return fmt.Errorf("set active cv version: %w", err)
	}

	s.logger.Info("cv version activated",
		zap.String("user_id", version.UserID.String()),
		zap.String("version_id", versionID.String()))
	return nil
}

// activateLocked переводит набор версий пользователя в состояние
// "активна только versionID" и обновляет ссылку пользователя
func (s *VersionService) activateLocked(ctx context.Context, tx repository.VersionTx, versionID uuid.UUID) error {
	target, err := tx.GetVersion(ctx, versionID)
	if err != nil {
		return err
	}
	url, err := s.objects.ResolveURL(ctx, target.StorageKey)
	if err != nil {
		return err
	}
	if err := tx.DeactivateAll(ctx); err != nil {
		return err
	}
	if err := tx.ActivateVersion(ctx, versionID); err != nil {
		return err
	}
	return tx.SetUserCVURL(ctx, url)
}

// DeleteVersion удаляет версию. Единственную версию удалить нельзя.
// Если удаляется активная версия, активной становится версия с
// наибольшим номером. Объект удаляется из хранилища только после
// фиксации транзакции, и ошибка его удаления не прерывает операцию.
func (s *VersionService) DeleteVersion(ctx context.Context, versionID uuid.UUID) error {
	version, err := s.store.GetVersion(ctx, versionID)
	if err != nil {
		return fmt.Errorf("delete cv version: %w", err)
	}

	var (
		deleted  *domain.CVVersion
		promoted *domain.CVVersion
	)
	err = s.store.WithUserLock(ctx, version.UserID, func(tx repository.VersionTx) error {
		target, err := tx.GetVersion(ctx, versionID)
		if err != nil {
			return err
		}
		count, err := tx.CountVersions(ctx)
		if err != nil {
			return err
		}
		if count <= 1 {
			return domain.ErrOnlyVersion
		}
		if err := tx.DeleteVersion(ctx, versionID); err != nil {
			return err
		}
		if target.IsActive {
			latest, err := tx.LatestVersion(ctx)
			if err != nil {
				return err
			}
			if err := s.activateLocked(ctx, tx, latest.ID); err != nil {
				return err
			}
			promoted = latest
		}
		deleted = target
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidOperation) {
			s.metrics.ObserveDelete(metrics.ResultRejected)
		} else {
			s.metrics.ObserveDelete(metrics.ResultFailed)
		}
		return fmt.Errorf("delete cv version: %w", err)
	}
	s.metrics.ObserveDelete(metrics.ResultOK)

	if err := s.objects.Delete(context.WithoutCancel(ctx), deleted.StorageKey); err != nil {
		s.logger.Warn("failed to delete cv object from storage",
			zap.String("version_id", versionID.String()),
			zap.String("storage_key", deleted.StorageKey),
			zap.Error(err))
	}

	fields := []zap.Field{
		zap.String("user_id", deleted.UserID.String()),
		zap.String("version_id", versionID.String()),
	}
	if promoted != nil {
		fields = append(fields, zap.String("promoted_version_id", promoted.ID.String()))
	}
	s.logger.Info("cv version deleted", fields...)
	return nil
}

func (s *VersionService) GetVersion(ctx context.Context, versionID uuid.UUID) (*domain.CVVersion, error) {
	return s.store.GetVersion(ctx, versionID)
}

// ListVersions возвращает версии пользователя, начиная с самой новой
func (s *VersionService) ListVersions(ctx context.Context, userID uuid.UUID) ([]domain.CVVersion, error) {
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return nil, fmt.Errorf("list cv versions: %w", err)
	}
	return s.store.ListVersions(ctx, userID)
}
