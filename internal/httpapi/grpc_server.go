package httpapi

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthService serves grpc.health.v1 for the API, reflecting the same
// readiness check as GET /readyz under the service name "sigepa-api" and the
// empty overall name.
type HealthService struct {
	server    *health.Server
	readiness readinessChecker
	log       *zap.Logger
}

// NewHealthService creates the health service. It reports NOT_SERVING until
// the first Refresh.
func NewHealthService(r readinessChecker, log *zap.Logger) *HealthService {
	if r == nil {
		r = ReadyProbe{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	hs := &HealthService{server: health.NewServer(), readiness: r, log: log}
	hs.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return hs
}

// NewGRPCServer returns a gRPC server with the health service registered and
// request logging installed.
func NewGRPCServer(hs *HealthService, opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(unaryLogger(hs.log)))
	srv := grpc.NewServer(opts...)
	healthpb.RegisterHealthServer(srv, hs.server)
	return srv
}

// Refresh runs the readiness check once and publishes the result.
func (hs *HealthService) Refresh(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if err := hs.readiness.Check(ctx); err != nil {
		hs.log.Warn("grpc health not serving", zap.Error(err))
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	hs.set(status)
	return status
}

// Watch refreshes the status every interval until ctx ends, then marks the
// service as shutting down.
func (hs *HealthService) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		checkCtx, cancel := context.WithTimeout(ctx, interval)
		hs.Refresh(checkCtx)
		cancel()
		select {
		case <-ctx.Done():
			hs.server.Shutdown()
			return
		case <-ticker.C:
		}
	}
}

func (hs *HealthService) set(status healthpb.HealthCheckResponse_ServingStatus) {
	hs.server.SetServingStatus("", status)
	hs.server.SetServingStatus(serviceName, status)
}

func unaryLogger(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.Duration("duration", time.Since(start)),
		}
		if err != nil {
			log.Warn("grpc request failed", append(fields, zap.Error(err))...)
		} else {
			log.Debug("grpc request", fields...)
		}
		return resp, err
	}
}
