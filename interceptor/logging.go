package interceptor

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"

	"github.com/nodalrpc/nodal/status"
	"github.com/nodalrpc/nodal/stream"
)

// UnaryServerLogging logs one line per unary call at Info (success) or
// Warn (non-OK status), in the same "one structured line per request"
// style as the rest of the retrieved corpus's zap-based services.
func UnaryServerLogging(logger *zap.Logger) UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *UnaryServerInfo, next UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := next(ctx, req)
		logCall(logger, ctx, info.FullMethod, start, status.FromError(err))
		return resp, err
	}
}

// StreamServerLogging is the streaming analog of UnaryServerLogging,
// logging once the handler returns (i.e. once the whole stream ends).
func StreamServerLogging(logger *zap.Logger) StreamServerInterceptor {
	return func(srv any, ss stream.Handle, info *stream.StreamInfo, next StreamHandler) error {
		start := time.Now()
		err := next(srv, ss)
		logCall(logger, ss.Context(), info.FullMethod, start, status.FromError(err))
		return err
	}
}

func logCall(logger *zap.Logger, ctx context.Context, method string, start time.Time, s *status.Status) {
	fields := []zap.Field{
		zap.String("method", method),
		zap.String("code", s.Code().String()),
		zap.Duration("duration", time.Since(start)),
	}
	if cid := CorrelationID(ctx); cid != "" {
		fields = append(fields, zap.String("correlation_id", cid))
	}
	if s.Code() == codes.OK {
		logger.Info("call finished", fields...)
		return
	}
	logger.Warn("call finished", fields...)
}
