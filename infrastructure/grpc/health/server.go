// Package health exposes grpc.health.v1 for the process and each dependency.
package health

import (
	"errors"
	"log/slog"
	"net"

	grpc3 "github.com/mama165/sdk-go/grpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Service names reported besides the overall "" service.
const (
	ServiceRecordStore = "record-store"
	ServiceSearchIndex = "search-index"
	ServiceBroker      = "broker"
)

type Server struct {
	log    *slog.Logger
	grpc   *grpc.Server
	health *health.Server
}

// NewServer starts every service as NOT_SERVING until the first probe round.
func NewServer(log *slog.Logger) *Server {
	s := grpc.NewServer(grpc.ChainUnaryInterceptor(grpc3.UnaryLoggingInterceptor(log)))
	h := health.NewServer()
	for _, name := range []string{"", ServiceRecordStore, ServiceSearchIndex, ServiceBroker} {
		h.SetServingStatus(name, healthpb.HealthCheckResponse_NOT_SERVING)
	}
	healthpb.RegisterHealthServer(s, h)
	return &Server{log: log, grpc: s, health: h}
}

// Reporter is handed to the health monitor.
func (s *Server) Reporter() *health.Server {
	return s.health
}

// Serve blocks until Stop.
func (s *Server) Serve(listener net.Listener) error {
	s.log.Info("Starting gRPC health server", "address", listener.Addr().String())
	for serviceName := range s.grpc.GetServiceInfo() {
		s.log.Debug("gRPC exposed services", "name", serviceName)
	}
	if err := s.grpc.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// Stop reports NOT_SERVING to watchers, then drains in-flight calls.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
