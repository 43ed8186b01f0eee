package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/joseph-ayodele/workorders-tracker/internal/repository"
)

const pingTimeout = 2 * time.Second

func (s *Server) healthz(c *gin.Context) {
	if err := repository.HealthCheck(c.Request.Context(), s.db, pingTimeout, s.logger); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// NewGRPCServer returns a gRPC server exposing only the standard health service.
func NewGRPCServer(hs *health.Server) *grpc.Server {
	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	return gs
}

// HealthMonitor flips the gRPC health status with the database ping result.
type HealthMonitor struct {
	db       *entsql.Driver
	hs       *health.Server
	interval time.Duration
	logger   *slog.Logger
}

func NewHealthMonitor(db *entsql.Driver, hs *health.Server, interval time.Duration, logger *slog.Logger) *HealthMonitor {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthMonitor{db: db, hs: hs, interval: interval, logger: logger}
}

// Check pings once and records the result.
func (m *HealthMonitor) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if err := repository.HealthCheck(ctx, m.db, pingTimeout, m.logger); err != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
		m.logger.Warn("health.db.down", "error", err)
	}
	m.hs.SetServingStatus("", status)
	return status
}

// Run checks immediately and then every interval until ctx ends.
func (m *HealthMonitor) Run(ctx context.Context) {
	m.Check(ctx)
	t := time.NewTicker(m.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			m.hs.Shutdown()
			return
		case <-t.C:
			m.Check(ctx)
		}
	}
}
