package handler

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"portfoliocv/internal/domain"
)

type mockVersions struct{ mock.Mock }

func (m *mockVersions) UploadVersion(ctx context.Context, upload domain.CVUpload) (*domain.CVVersion, error) {
	args := m.Called(ctx, upload)
	v, _ := args.Get(0).(*domain.CVVersion)
	return v, args.Error(1)
}

func (m *mockVersions) SetActiveVersion(ctx context.Context, versionID uuid.UUID) error {
	return m.Called(ctx, versionID).Error(0)
}

func (m *mockVersions) DeleteVersion(ctx context.Context, versionID uuid.UUID) error {
	return m.Called(ctx, versionID).Error(0)
}

func (m *mockVersions) GetVersion(ctx context.Context, versionID uuid.UUID) (*domain.CVVersion, error) {
	args := m.Called(ctx, versionID)
	v, _ := args.Get(0).(*domain.CVVersion)
	return v, args.Error(1)
}

func (m *mockVersions) ListVersions(ctx context.Context, userID uuid.UUID) ([]domain.CVVersion, error) {
	args := m.Called(ctx, userID)
	v, _ := args.Get(0).([]domain.CVVersion)
	return v, args.Error(1)
}

type mockAnalytics struct{ mock.Mock }

func (m *mockAnalytics) GetAnalytics(ctx context.Context, versionID uuid.UUID, asOf time.Time) (*domain.AnalyticsSnapshot, error) {
	args := m.Called(ctx, versionID, asOf)
	v, _ := args.Get(0).(*domain.AnalyticsSnapshot)
	return v, args.Error(1)
}

type mockSource struct{ mock.Mock }

func (m *mockSource) ActiveVersion(ctx context.Context, userID uuid.UUID) (*domain.CVVersion, error) {
	args := m.Called(ctx, userID)
	v, _ := args.Get(0).(*domain.CVVersion)
	return v, args.Error(1)
}

func (m *mockSource) ResolveDownloadURL(ctx context.Context, versionID uuid.UUID) (string, error) {
	args := m.Called(ctx, versionID)
	return args.String(0), args.Error(1)
}

func (m *mockSource) OpenVersion(ctx context.Context, versionID uuid.UUID) (io.ReadCloser, *domain.CVVersion, error) {
	args := m.Called(ctx, versionID)
	body, _ := args.Get(0).(io.ReadCloser)
	v, _ := args.Get(1).(*domain.CVVersion)
	return body, v, args.Error(2)
}

type mockQueue struct{ mock.Mock }

func (m *mockQueue) Enqueue(versionID uuid.UUID, meta domain.RequesterMetadata) bool {
	return m.Called(versionID, meta).Bool(0)
}
