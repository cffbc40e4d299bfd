package grpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/Additional-Code/dialtone/internal/config"
	"github.com/Additional-Code/dialtone/pkg/errorbank"
)

// ServiceName is reported through the standard health service.
const ServiceName = "dialtone.v1.Backoffice"

// Module exposes the gRPC server and lifecycle hooks to Fx.
var Module = fx.Module("grpc_server",
	fx.Provide(NewServer, health.NewServer),
	fx.Invoke(RegisterHealth, Run),
)

// NewServer builds a gRPC server whose interceptors log every call and
// convert application errors into gRPC statuses.
func NewServer(logger *zap.Logger) *grpc.Server {
	unary := func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		err = ToStatus(err)
		logCall(logger, "grpc unary call finished", info.FullMethod, time.Since(start), err)
		return resp, err
	}

	stream := func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		err := ToStatus(handler(srv, ss))
		logCall(logger, "grpc stream call finished", info.FullMethod, time.Since(start), err)
		return err
	}

	server := grpc.NewServer(
		grpc.ChainUnaryInterceptor(unary),
		grpc.ChainStreamInterceptor(stream),
	)
	reflection.Register(server)
	return server
}

// ToStatus maps an error onto a gRPC status carrying the errorbank code.
// Errors that already are statuses pass through.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	var appErr *errorbank.AppError
	if !errors.As(err, &appErr) {
		appErr = errorbank.From(err)
	}
	return status.Error(appErr.GRPCCode(), appErr.Message())
}

func logCall(logger *zap.Logger, msg, method string, duration time.Duration, err error) {
	fields := []zap.Field{zap.String("method", method), zap.Duration("duration", duration)}
	if err != nil {
		logger.Warn(msg, append(fields, zap.Error(err))...)
		return
	}
	logger.Info(msg, fields...)
}

// RegisterHealth serves grpc.health.v1 and flips to NOT_SERVING on shutdown.
func RegisterHealth(lc fx.Lifecycle, server *grpc.Server, hs *health.Server) {
	healthpb.RegisterHealthServer(server, hs)
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
			hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
			return nil
		},
		OnStop: func(context.Context) error {
			hs.Shutdown()
			return nil
		},
	})
}

// Run binds the gRPC server to the configured host/port and manages lifecycle.
func Run(lc fx.Lifecycle, cfg config.Config, server *grpc.Server, logger *zap.Logger) {
	addr := fmt.Sprintf("%s:%d", cfg.GRPC.Host, cfg.GRPC.Port)
	var listener net.Listener

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("listen grpc: %w", err)
			}
			listener = ln
			logger.Info("starting gRPC server", zap.String("addr", addr))
			go func() {
				if err := server.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
					logger.Error("grpc server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("stopping gRPC server")
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
				if listener != nil {
					_ = listener.Close()
				}
				return nil
			}
		},
	})
}
