package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"portfoliocv/internal/domain"
)

// VersionManager - операции над версиями резюме
type VersionManager interface {
	UploadVersion(ctx context.Context, upload domain.CVUpload) (*domain.CVVersion, error)
	SetActiveVersion(ctx context.Context, versionID uuid.UUID) error
	DeleteVersion(ctx context.Context, versionID uuid.UUID) error
	GetVersion(ctx context.Context, versionID uuid.UUID) (*domain.CVVersion, error)
	ListVersions(ctx context.Context, userID uuid.UUID) ([]domain.CVVersion, error)
}

type AnalyticsProvider interface {
	GetAnalytics(ctx context.Context, versionID uuid.UUID, asOf time.Time) (*domain.AnalyticsSnapshot, error)
}

type URLResolver interface {
	ResolveDownloadURL(ctx context.Context, versionID uuid.UUID) (string, error)
}

// multipartOverhead - запас на заголовки и остальные поля формы
const multipartOverhead = 1 << 20

type CVHandler struct {
	versions       VersionManager
	analytics      AnalyticsProvider
	urls           URLResolver
	maxUploadBytes int64
	logger         *zap.Logger
}

func NewCVHandler(
	versions VersionManager,
	analytics AnalyticsProvider,
	urls URLResolver,
	maxUploadBytes int64,
	logger *zap.Logger,
) *CVHandler {
	return &CVHandler{
		versions:       versions,
		analytics:      analytics,
		urls:           urls,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// Routes регистрирует административные маршруты. Проверка прав выполняется снаружи.
func (h *CVHandler) Routes(r chi.Router) {
	r.Route("/users/{userID}/cv/versions", func(r chi.Router) {
		r.Get("/", h.ListVersions)
		r.Post("/", h.UploadVersion)
	})
	r.Route("/cv/versions/{versionID}", func(r chi.Router) {
		r.Get("/", h.GetVersion)
		r.Delete("/", h.DeleteVersion)
		r.Put("/activate", h.ActivateVersion)
		r.Get("/analytics", h.GetAnalytics)
		r.Get("/url", h.GetDownloadURL)
	})
}

func optionalFormValue(r *http.Request, key string) *string {
	v := r.FormValue(key)
	if v == "" {
		return nil
	}
	return &v
}

// UploadVersion принимает multipart форму: file, format, template, notes
func (h *CVHandler) UploadVersion(w http.ResponseWriter, r *http.Request) {
	userID, ok := uuidParam(r, "userID")
	if !ok {
		http.Error(w, "Invalid user ID", http.StatusBadRequest)
		return
	}

	limit := h.maxUploadBytes + multipartOverhead
	if r.ContentLength > limit {
		http.Error(w, domain.ErrFileTooLarge.Error(), http.StatusRequestEntityTooLarge)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, domain.ErrFileTooLarge.Error(), http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "No file uploaded", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "Failed to read file", http.StatusBadRequest)
		return
	}

	version, err := h.versions.UploadVersion(r.Context(), domain.CVUpload{
		UserID:        userID,
		FileName:      header.Filename,
		Data:          data,
		Format:        r.FormValue("format"),
		TemplateLabel: optionalFormValue(r, "template"),
		Notes:         optionalFormValue(r, "notes"),
	})
	if err != nil {
		writeError(w, h.logger, "upload cv version", err)
		return
	}
	writeJSON(w, http.StatusCreated, version)
}

func (h *CVHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	userID, ok := uuidParam(r, "userID")
	if !ok {
		http.Error(w, "Invalid user ID", http.StatusBadRequest)
		return
	}

	versions, err := h.versions.ListVersions(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, "list cv versions", err)
		return
	}
	writeJSON(w, http.StatusOK, versions)
}

func (h *CVHandler) GetVersion(w http.ResponseWriter, r *http.Request) {
	versionID, ok := uuidParam(r, "versionID")
	if !ok {
		http.Error(w, "Invalid version ID", http.StatusBadRequest)
		return
	}

	version, err := h.versions.GetVersion(r.Context(), versionID)
	if err != nil {
		writeError(w, h.logger, "get cv version", err)
		return
	}
	writeJSON(w, http.StatusOK, version)
}

func (h *CVHandler) ActivateVersion(w http.ResponseWriter, r *http.Request) {
	versionID, ok := uuidParam(r, "versionID")
	if !ok {
		http.Error(w, "Invalid version ID", http.StatusBadRequest)
		return
	}

	if err := h.versions.SetActiveVersion(r.Context(), versionID); err != nil {
		writeError(w, h.logger, "activate cv version", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CVHandler) DeleteVersion(w http.ResponseWriter, r *http.Request) {
	versionID, ok := uuidParam(r, "versionID")
	if !ok {
		http.Error(w, "Invalid version ID", http.StatusBadRequest)
		return
	}

	if err := h.versions.DeleteVersion(r.Context(), versionID); err != nil {
		writeError(w, h.logger, "delete cv version", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetAnalytics отдает статистику скачиваний; as_of в RFC3339, по умолчанию текущий момент
func (h *CVHandler) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	versionID, ok := uuidParam(r, "versionID")
	if !ok {
		http.Error(w, "Invalid version ID", http.StatusBadRequest)
		return
	}

	var asOf time.Time
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "as_of must be an RFC3339 timestamp", http.StatusBadRequest)
			return
		}
		asOf = parsed
	}

	snapshot, err := h.analytics.GetAnalytics(r.Context(), versionID, asOf)
	if err != nil {
		writeError(w, h.logger, "get cv analytics", err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

type downloadURLResponse struct {
	URL string `json:"url"`
}

func (h *CVHandler) GetDownloadURL(w http.ResponseWriter, r *http.Request) {
	versionID, ok := uuidParam(r, "versionID")
	if !ok {
		http.Error(w, "Invalid version ID", http.StatusBadRequest)
		return
	}

	url, err := h.urls.ResolveDownloadURL(r.Context(), versionID)
	if err != nil {
		writeError(w, h.logger, "resolve cv url", err)
		return
	}
	writeJSON(w, http.StatusOK, downloadURLResponse{URL: url})
}
