// Package health переводит gRPC health-статус сервиса по результатам
// проверок базы данных и объектного хранилища.
package health

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName - имя сервиса в gRPC health
const ServiceName = "portfoliocv.CV"

type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc позволяет передать функцию, например (*sql.DB).PingContext
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type check struct {
	name   string
	pinger Pinger
}

type Monitor struct {
	server   *health.Server
	checks   []check
	interval time.Duration
	timeout  time.Duration
	logger   *zap.Logger
}

func NewMonitor(server *health.Server, interval, timeout time.Duration, logger *zap.Logger) *Monitor {
	return &Monitor{
		server:   server,
		interval: interval,
		timeout:  timeout,
		logger:   logger,
	}
}

func (m *Monitor) Add(name string, p Pinger) {
	m.checks = append(m.checks, check{name: name, pinger: p})
}

// Check выполняет все проверки параллельно и выставляет статус
func (m *Monitor) Check(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	var g errgroup.Group
	failed := make([]bool, len(m.checks))
	for i, c := range m.checks {
		g.Go(func() error {
			if err := c.pinger.Ping(ctx); err != nil {
				m.logger.Warn("health check failed", zap.String("check", c.name), zap.Error(err))
				failed[i] = true
			}
			return nil
		})
	}
	g.Wait()

	status := healthpb.HealthCheckResponse_SERVING
	for _, f := range failed {
		if f {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			break
		}
	}
	m.server.SetServingStatus("", status)
	m.server.SetServingStatus(ServiceName, status)
	return status == healthpb.HealthCheckResponse_SERVING
}

// Run проверяет зависимости каждые interval до отмены ctx
func (m *Monitor) Run(ctx context.Context) error {
	m.Check(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.server.Shutdown()
			return nil
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}
