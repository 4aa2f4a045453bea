package handler

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"portfoliocv/internal/config"
	"portfoliocv/internal/domain"
)

// DownloadSource выдает текущую версию резюме и ее содержимое
type DownloadSource interface {
	ActiveVersion(ctx context.Context, userID uuid.UUID) (*domain.CVVersion, error)
	ResolveDownloadURL(ctx context.Context, versionID uuid.UUID) (string, error)
	OpenVersion(ctx context.Context, versionID uuid.UUID) (io.ReadCloser, *domain.CVVersion, error)
}

// DownloadQueue принимает события скачивания без ожидания записи
type DownloadQueue interface {
	Enqueue(versionID uuid.UUID, meta domain.RequesterMetadata) bool
}

// DownloadHandler - публичная точка скачивания резюме, авторизация не нужна
type DownloadHandler struct {
	source DownloadSource
	queue  DownloadQueue
	mode   string
	logger *zap.Logger
}

func NewDownloadHandler(source DownloadSource, queue DownloadQueue, mode string, logger *zap.Logger) *DownloadHandler {
	return &DownloadHandler{
		source: source,
		queue:  queue,
		mode:   mode,
		logger: logger,
	}
}

func (h *DownloadHandler) Routes(r chi.Router) {
	r.Get("/cv/{userID}", h.DownloadCV)
}

func requesterMetadata(r *http.Request) domain.RequesterMetadata {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return domain.RequesterMetadata{
		IPAddress: ip,
		UserAgent: r.UserAgent(),
	}
}

// DownloadCV отдает активную версию резюме пользователя редиректом или потоком
func (h *DownloadHandler) DownloadCV(w http.ResponseWriter, r *http.Request) {
	userID, ok := uuidParam(r, "userID")
	if !ok {
		http.Error(w, "Invalid user ID", http.StatusBadRequest)
		return
	}

	version, err := h.source.ActiveVersion(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, "get active cv version", err)
		return
	}

	if h.mode == config.DownloadModeProxy {
		h.proxy(w, r, version)
		return
	}

	url, err := h.source.ResolveDownloadURL(r.Context(), version.ID)
	if err != nil {
		writeError(w, h.logger, "resolve cv url", err)
		return
	}
	h.queue.Enqueue(version.ID, requesterMetadata(r))

	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, url, http.StatusFound)
}

func (h *DownloadHandler) proxy(w http.ResponseWriter, r *http.Request, version *domain.CVVersion) {
	body, opened, err := h.source.OpenVersion(r.Context(), version.ID)
	if err != nil {
		writeError(w, h.logger, "open cv version", err)
		return
	}
	defer body.Close()

	h.queue.Enqueue(opened.ID, requesterMetadata(r))

	fileName := fmt.Sprintf("cv-v%d.%s", opened.VersionNumber, opened.Format.Extension())
	w.Header().Set("Content-Type", opened.Format.ContentType())
	w.Header().Set("Content-Length", strconv.FormatInt(opened.SizeBytes, 10))
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, fileName))
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, body); err != nil {
		h.logger.Warn("cv download interrupted",
			zap.String("version_id", opened.ID.String()),
			zap.Error(err))
	}
}
