// Package metrics содержит prometheus-метрики сервиса.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Результаты операций для меток
const (
	ResultOK       = "ok"
	ResultRejected = "rejected"
	ResultFailed   = "failed"
	ResultDropped  = "dropped"
)

type Collectors struct {
	uploads   *prometheus.CounterVec
	deletes   *prometheus.CounterVec
	downloads *prometheus.CounterVec
	requests  *prometheus.CounterVec
	durations *prometheus.SummaryVec
}

func New(reg prometheus.Registerer) *Collectors {
	factory := promauto.With(reg)
	return &Collectors{
		uploads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cv_uploads_total",
			Help: "CV version uploads by result",
		}, []string{"result"}),
		deletes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cv_deletes_total",
			Help: "CV version deletions by result",
		}, []string{"result"}),
		downloads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cv_download_records_total",
			Help: "Download event recording by result",
		}, []string{"result"}),
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status_code"}),
		durations: factory.NewSummaryVec(prometheus.SummaryOpts{
			Name: "http_request_duration_seconds",
			Help: "HTTP request duration in seconds",
			Objectives: map[float64]float64{
				0.5:  0.05,
				0.9:  0.01,
				0.99: 0.001,
			},
		}, []string{"method", "path", "status_code"}),
	}
}

// Методы безопасны для nil-получателя, чтобы сервисы работали без метрик

func (c *Collectors) ObserveUpload(result string) {
	if c == nil {
		return
	}
	c.uploads.WithLabelValues(result).Inc()
}

func (c *Collectors) ObserveDelete(result string) {
	if c == nil {
		return
	}
	c.deletes.WithLabelValues(result).Inc()
}

func (c *Collectors) ObserveDownloadRecord(result string) {
	if c == nil {
		return
	}
	c.downloads.WithLabelValues(result).Inc()
}

// Middleware считает запросы и время их обработки по шаблону маршрута chi
func (c *Collectors) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c == nil {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		code := strconv.Itoa(status)

		c.durations.WithLabelValues(r.Method, path, code).Observe(time.Since(start).Seconds())
		c.requests.WithLabelValues(r.Method, path, code).Inc()
	})
}
