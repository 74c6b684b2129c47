// Package grpcserver runs the ratings gRPC listener. It serves the standard
// health protocol, driven by store reachability, plus server reflection.
package grpcserver

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service name reported alongside the overall "" entry.
const ServiceName = "ratings"

type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	Pinger   Pinger
	Interval time.Duration
	Logger   *zap.Logger
}

type Server struct {
	srv      *grpc.Server
	health   *health.Server
	pinger   Pinger
	interval time.Duration
	log      *zap.Logger
}

func New(opts Options) *Server {
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	s := &Server{
		srv:      grpc.NewServer(),
		health:   health.NewServer(),
		pinger:   opts.Pinger,
		interval: opts.Interval,
		log:      opts.Logger,
	}
	healthpb.RegisterHealthServer(s.srv, s.health)
	reflection.Register(s.srv)
	s.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

func (s *Server) set(st healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}

// Probe pings the store once and updates the health status.
func (s *Server) Probe(ctx context.Context) {
	if s.pinger == nil {
		s.set(healthpb.HealthCheckResponse_SERVING)
		return
	}
	pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.pinger.Ping(pctx); err != nil {
		s.log.Warn("store ping failed", zap.Error(err))
		s.set(healthpb.HealthCheckResponse_NOT_SERVING)
		return
	}
	s.set(healthpb.HealthCheckResponse_SERVING)
}

// Watch probes until ctx is done.
func (s *Server) Watch(ctx context.Context) {
	s.Probe(ctx)
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Probe(ctx)
		}
	}
}

// Serve blocks until the listener fails or the server stops.
func (s *Server) Serve(lis net.Listener) error {
	s.log.Info("grpc server starting", zap.String("addr", lis.Addr().String()))
	return s.srv.Serve(lis)
}

// Shutdown drains in-flight RPCs, forcing a stop once ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.health.Shutdown()
	stopped := make(chan struct{})
	go func() {
		s.srv.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
		return nil
	case <-ctx.Done():
		s.srv.Stop()
		return ctx.Err()
	}
}
