package grpc

import (
	"context"
	"errors"
	"net"
	"time"

	grpc_middleware "github.com/grpc-ecosystem/go-grpc-middleware"
	grpc_prom "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"

	"github.com/zynerotech/streamhook/logger"
)

// Config represents gRPC server configuration.
type Config struct {
	Enabled               bool          `mapstructure:"enabled"`
	Address               string        `mapstructure:"address"`
	Timeout               time.Duration `mapstructure:"timeout"`
	TLSCertFile           string        `mapstructure:"tls_cert_file"`
	TLSKeyFile            string        `mapstructure:"tls_key_file"`
	MaxConnectionAge      time.Duration `mapstructure:"max_connection_age"`
	MaxConnectionAgeGrace time.Duration `mapstructure:"max_connection_age_grace"`
	KeepAliveTime         time.Duration `mapstructure:"keep_alive_time"`
	KeepAliveTimeout      time.Duration `mapstructure:"keep_alive_timeout"`
	EnforcementMinTime    time.Duration `mapstructure:"enforcement_min_time"`
	EnforcementPermit     bool          `mapstructure:"enforcement_permit"`
	Reflection            bool          `mapstructure:"reflection"`
}

// Server wraps a grpc.Server that always serves grpc.health.v1.
type Server struct {
	srv     *grpc.Server
	lis     net.Listener
	config  Config
	health  *health.Server
	metrics *grpc_prom.ServerMetrics
}

// NewServer creates a new gRPC server with default interceptors. Metrics
// are registered on reg when it is not nil.
func NewServer(cfg Config, l *logger.Logger, reg prometheus.Registerer, opts ...grpc.ServerOption) (*Server, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}

	metrics, err := newServerMetrics(reg)
	if err != nil {
		return nil, err
	}

	kp := keepalive.EnforcementPolicy{
		MinTime:             cfg.EnforcementMinTime,
		PermitWithoutStream: cfg.EnforcementPermit,
	}
	ka := keepalive.ServerParameters{
		Time:                  cfg.KeepAliveTime,
		Timeout:               cfg.KeepAliveTimeout,
		MaxConnectionAge:      cfg.MaxConnectionAge,
		MaxConnectionAgeGrace: cfg.MaxConnectionAgeGrace,
	}

	serverOpts := []grpc.ServerOption{
		grpc.ConnectionTimeout(cfg.Timeout),
		grpc.KeepaliveEnforcementPolicy(kp),
		grpc.KeepaliveParams(ka),
		grpc_middleware.WithUnaryServerChain(
			LoggingUnaryInterceptor(l),
			metrics.UnaryServerInterceptor(),
		),
		grpc_middleware.WithStreamServerChain(
			LoggingStreamInterceptor(l),
			metrics.StreamServerInterceptor(),
		),
	}

	if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
		creds, err := credentials.NewServerTLSFromFile(cfg.TLSCertFile, cfg.TLSKeyFile)
		if err != nil {
			return nil, err
		}
		serverOpts = append(serverOpts, grpc.Creds(creds))
	}

	for _, opt := range opts {
		if opt != nil {
			serverOpts = append(serverOpts, opt)
		}
	}

	srv := grpc.NewServer(serverOpts...)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	if cfg.Reflection {
		reflection.Register(srv)
	}

	return &Server{srv: srv, config: cfg, health: hs, metrics: metrics}, nil
}

// SetServing marks service ("" is the whole server) as serving or not.
func (s *Server) SetServing(service string, serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(service, status)
}

// Start begins serving on the configured address.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return err
	}
	return s.Serve(lis)
}

// Serve serves on lis until Stop.
func (s *Server) Serve(lis net.Listener) error {
	s.lis = lis
	s.metrics.InitializeMetrics(s.srv)
	if err := s.srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// Stop gracefully stops the gRPC server.
func (s *Server) Stop(ctx context.Context) error {
	s.health.Shutdown()

	stopped := make(chan struct{})
	go func() {
		s.srv.GracefulStop()
		close(stopped)
	}()
	select {
	case <-ctx.Done():
		s.srv.Stop()
		return ctx.Err()
	case <-stopped:
		return nil
	}
}

// GRPCServer exposes the underlying *grpc.Server.
func (s *Server) GRPCServer() *grpc.Server { return s.srv }
