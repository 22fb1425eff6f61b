// Package grpc runs the internal gRPC endpoint: the standard health
// service (reporting NOT_SERVING while the database is unreachable) plus
// reflection, behind recovery, logging and metrics interceptors.
package grpc

import (
	"context"
	"fmt"
	"net"
	"runtime/debug"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/shashiranjanraj/ferremas/pkg/logger"
	"github.com/shashiranjanraj/ferremas/pkg/metrics"
)

var (
	handledTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ferremas",
		Subsystem: "grpc",
		Name:      "server_handled_total",
		Help:      "Total number of gRPC calls completed by method and code.",
	}, []string{"grpc_method", "grpc_code"})

	handlingSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ferremas",
		Subsystem: "grpc",
		Name:      "server_handling_seconds",
		Help:      "Histogram of gRPC response latency in seconds.",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"grpc_method"})
)

func init() {
	metrics.DefaultRegistry.MustRegister(handledTotal, handlingSeconds)
}

func recoveryInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.WithCtx(ctx).Error("grpc: panic recovered",
				"method", info.FullMethod, "panic", r, "stack", string(debug.Stack()))
			err = status.Errorf(codes.Internal, "internal server error")
		}
	}()
	return handler(ctx, req)
}

func observeInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	dur := time.Since(start)
	code := status.Code(err)

	handledTotal.WithLabelValues(info.FullMethod, code.String()).Inc()
	handlingSeconds.WithLabelValues(info.FullMethod).Observe(dur.Seconds())
	logger.WithCtx(ctx).Debug("grpc: request",
		"method", info.FullMethod, "duration_ms", dur.Milliseconds(), "code", code.String())
	return resp, err
}

// Checker reports whether a dependency is healthy.
type Checker func(ctx context.Context) error

type healthServer struct {
	grpc_health_v1.UnimplementedHealthServer
	check Checker
}

func (h *healthServer) Check(ctx context.Context, _ *grpc_health_v1.HealthCheckRequest) (*grpc_health_v1.HealthCheckResponse, error) {
	st := grpc_health_v1.HealthCheckResponse_SERVING
	if h.check != nil {
		if err := h.check(ctx); err != nil {
			logger.WithCtx(ctx).Warn("grpc: health check failing", "error", err)
			st = grpc_health_v1.HealthCheckResponse_NOT_SERVING
		}
	}
	return &grpc_health_v1.HealthCheckResponse{Status: st}, nil
}

// NewServer builds a server with the health service registered.
func NewServer(check Checker) *grpc.Server {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(recoveryInterceptor, observeInterceptor),
		grpc.MaxRecvMsgSize(4*1024*1024),
		grpc.MaxSendMsgSize(4*1024*1024),
	)
	grpc_health_v1.RegisterHealthServer(srv, &healthServer{check: check})
	reflection.Register(srv)
	return srv
}

// Serve listens on port and blocks until ctx is cancelled, then stops
// gracefully.
func Serve(ctx context.Context, port string, srv *grpc.Server) error {
	addr := ":" + port
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("grpc: listen on %s: %w", addr, err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(lis) }()
	logger.Info("grpc: server started", "addr", addr)

	select {
	case <-ctx.Done():
		logger.Info("grpc: shutting down")
		srv.GracefulStop()
		return nil
	case err := <-errCh:
		return fmt.Errorf("grpc: serve: %w", err)
	}
}
