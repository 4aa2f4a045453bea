package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"portfoliocv/internal/domain"
	"portfoliocv/internal/metrics"
)

// DownloadRecorder сохраняет одно событие скачивания
type DownloadRecorder interface {
	RecordDownload(ctx context.Context, versionID uuid.UUID, meta domain.RequesterMetadata) error
}

const defaultRecordTimeout = 3 * time.Second

type downloadJob struct {
	versionID uuid.UUID
	meta      domain.RequesterMetadata
}

// AsyncRecorder записывает скачивания в фоне. Очередь ограничена:
// при переполнении событие отбрасывается, скачивание при этом не блокируется.
type AsyncRecorder struct {
	recorder DownloadRecorder
	timeout  time.Duration
	metrics  *metrics.Collectors
	logger   *zap.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan downloadJob
	wg     sync.WaitGroup
}

func NewAsyncRecorder(
	recorder DownloadRecorder,
	queueSize, workers int,
	timeout time.Duration,
	m *metrics.Collectors,
	logger *zap.Logger,
) *AsyncRecorder {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	if timeout <= 0 {
		timeout = defaultRecordTimeout
	}
	r := &AsyncRecorder{
		recorder: recorder,
		timeout:  timeout,
		metrics:  m,
		logger:   logger,
		queue:    make(chan downloadJob, queueSize),
	}
	for i := 0; i < workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}
	return r
}

// Enqueue ставит событие в очередь и сразу возвращается.
// false означает, что событие отброшено.
func (r *AsyncRecorder) Enqueue(versionID uuid.UUID, meta domain.RequesterMetadata) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		r.drop(versionID, "recorder closed")
		return false
	}
	select {
	case r.queue <- downloadJob{versionID: versionID, meta: meta}:
		return true
	default:
		r.drop(versionID, "queue full")
		return false
	}
}

func (r *AsyncRecorder) drop(versionID uuid.UUID, reason string) {
	r.metrics.ObserveDownloadRecord(metrics.ResultDropped)
	r.logger.Warn("download event dropped",
		zap.String("version_id", versionID.String()),
		zap.String("reason", reason))
}

func (r *AsyncRecorder) worker() {
	defer r.wg.Done()
	for job := range r.queue {
		r.record(job)
	}
}

func (r *AsyncRecorder) record(job downloadJob) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := r.recorder.RecordDownload(ctx, job.versionID, job.meta); err != nil {
		r.metrics.ObserveDownloadRecord(metrics.ResultFailed)
		r.logger.Warn("failed to record download",
			zap.String("version_id", job.versionID.String()),
			zap.Error(err))
		return
	}
	r.metrics.ObserveDownloadRecord(metrics.ResultOK)
}

// Close перестает принимать события и ждет записи уже поставленных в очередь
func (r *AsyncRecorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	r.wg.Wait()
}
