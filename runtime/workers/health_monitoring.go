package workers

import (
	"chat-search/contract"
	"chat-search/observability"
	"context"
	"log/slog"
	"sort"
	"time"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthReporter is satisfied by the grpc health server.
type HealthReporter interface {
	SetServingStatus(service string, servingStatus healthpb.HealthCheckResponse_ServingStatus)
}

// HealthMonitoringWorker probes every dependency each metricInterval,
// publishes the result on the grpc health service and samples the process.
// The overall service "" is SERVING only when every dependency is.
type HealthMonitoringWorker struct {
	log            *slog.Logger
	reporter       HealthReporter
	metrics        *observability.Metrics
	metricInterval time.Duration
	checks         map[string]contract.Pinger
}

func NewHealthMonitoringWorker(
	log *slog.Logger,
	reporter HealthReporter,
	metrics *observability.Metrics,
	metricInterval time.Duration,
	checks map[string]contract.Pinger,
) *HealthMonitoringWorker {
	return &HealthMonitoringWorker{
		log:            log,
		reporter:       reporter,
		metrics:        metrics,
		metricInterval: metricInterval,
		checks:         checks,
	}
}

func (w *HealthMonitoringWorker) Run(ctx context.Context) error {
	w.Check(ctx)
	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping health monitoring")
			return nil
		case <-ticker.C:
			w.Check(ctx)
		}
	}
}

// Check runs one probe round.
func (w *HealthMonitoringWorker) Check(ctx context.Context) {
	names := make([]string, 0, len(w.checks))
	for name := range w.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	overall := healthpb.HealthCheckResponse_SERVING
	for _, name := range names {
		status := w.probe(ctx, name, w.checks[name])
		if status != healthpb.HealthCheckResponse_SERVING {
			overall = healthpb.HealthCheckResponse_NOT_SERVING
		}
		w.reporter.SetServingStatus(name, status)
		w.metrics.SetComponentHealth(name, status.String())
	}
	w.reporter.SetServingStatus("", overall)

	stats, err := observability.SampleProcess()
	if err != nil {
		w.log.Debug("Error while sampling process", "error", err)
		return
	}
	w.metrics.UpdateSystem(stats)
}

func (w *HealthMonitoringWorker) probe(ctx context.Context, name string, pinger contract.Pinger) healthpb.HealthCheckResponse_ServingStatus {
	probeCtx, cancel := context.WithTimeout(ctx, w.metricInterval)
	defer cancel()
	if err := pinger.Ping(probeCtx); err != nil {
		w.log.Warn("Dependency unhealthy", "component", name, "error", err)
		return healthpb.HealthCheckResponse_NOT_SERVING
	}
	return healthpb.HealthCheckResponse_SERVING
}
