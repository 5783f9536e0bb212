package grpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/Additional-Code/orders/internal/config"
	"github.com/Additional-Code/orders/pkg/errorbank"
)

// Module exposes the gRPC health endpoint and lifecycle hooks to Fx.
var Module = fx.Module("grpc_server",
	fx.Provide(NewServer),
	fx.Provide(NewHealth),
	fx.Invoke(Run),
)

// NewHealth returns the standard health service, reporting NOT_SERVING
// until the server starts.
func NewHealth() *health.Server {
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	return hs
}

// NewServer builds a gRPC server that only hosts the health service.
func NewServer(logger *zap.Logger, hs *health.Server) *grpc.Server {
	server := grpc.NewServer(
		grpc.ChainUnaryInterceptor(logUnary(logger), recoverUnary(logger), statusUnary()),
		grpc.ChainStreamInterceptor(logStream(logger)),
	)
	healthpb.RegisterHealthServer(server, hs)
	return server
}

func logUnary(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logCall(logger, "unary", info.FullMethod, time.Since(start), err)
		return resp, err
	}
}

func logStream(logger *zap.Logger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		err := handler(srv, ss)
		logCall(logger, "stream", info.FullMethod, time.Since(start), err)
		return err
	}
}

// Health checks are frequent; successful calls are logged at debug.
func logCall(logger *zap.Logger, kind, method string, took time.Duration, err error) {
	level := zapcore.DebugLevel
	if err != nil {
		level = zapcore.WarnLevel
	}
	logger.Log(level, "grpc call finished",
		zap.String("kind", kind),
		zap.String("method", method),
		zap.String("code", status.Code(err).String()),
		zap.Duration("duration", took),
		zap.Error(err),
	)
}

func recoverUnary(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("grpc handler panicked", zap.String("method", info.FullMethod), zap.Any("panic", r))
				err = toStatus(errorbank.Internal("internal error", errorbank.WithDetail("panic", fmt.Sprint(r))))
			}
		}()
		return handler(ctx, req)
	}
}

func statusUnary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		resp, err := handler(ctx, req)
		return resp, toStatus(err)
	}
}

// toStatus maps application errors onto gRPC status codes. Errors that
// already carry a status pass through unchanged.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return status.FromContextError(err).Err()
	}
	appErr := errorbank.From(err)
	return status.Error(appErr.GRPCCode(), appErr.Message())
}

// Run binds the gRPC server to the configured host/port and manages lifecycle.
// The health status is reported for the empty service name and for the
// configured service name.
func Run(lc fx.Lifecycle, cfg config.Config, server *grpc.Server, hs *health.Server, logger *zap.Logger) {
	if !cfg.GRPC.Enabled {
		logger.Info("gRPC server disabled")
		return
	}
	addr := fmt.Sprintf("%s:%d", cfg.GRPC.Host, cfg.GRPC.Port)
	services := []string{"", cfg.Observability.ServiceName}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("listen grpc: %w", err)
			}
			logger.Info("starting gRPC health server", zap.String("addr", addr))
			go func() {
				if err := server.Serve(ln); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
					logger.Error("grpc server failed", zap.Error(err))
				}
			}()
			for _, name := range services {
				hs.SetServingStatus(name, healthpb.HealthCheckResponse_SERVING)
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("stopping gRPC server")
			hs.Shutdown()
			stopped := make(chan struct{})
			go func() {
				server.GracefulStop()
				close(stopped)
			}()

			select {
			case <-ctx.Done():
				server.Stop()
				return ctx.Err()
			case <-stopped:
				return nil
			}
		},
	})
}
