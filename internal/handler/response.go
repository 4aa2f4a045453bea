package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"portfoliocv/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusFor сопоставляет вид ошибки с HTTP статусом
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrOnlyVersion):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidOperation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrTransientNetwork):
		return http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrStorageFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func messageFor(err error, status int) string {
	switch {
	case errors.Is(err, domain.ErrOnlyVersion):
		return "Cannot delete the only CV version. Upload a new version first, then delete this one."
	case status == http.StatusBadRequest:
		return err.Error()
	case status == http.StatusNotFound:
		return "Not found"
	case status == http.StatusGatewayTimeout:
		return "Upstream dependency timed out, try again"
	}
	return http.StatusText(status)
}

func writeError(w http.ResponseWriter, logger *zap.Logger, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error(op+" failed", zap.Error(err))
	} else {
		logger.Debug(op+" rejected", zap.Error(err), zap.Int("status", status))
	}
	http.Error(w, messageFor(err, status), status)
}

func uuidParam(r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	return id, err == nil
}
