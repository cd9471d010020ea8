package logging

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type contextKey string

const (
	// RequestIDKey is the key used to store request IDs in context
	RequestIDKey contextKey = "request_id"

	// RequestIDHeader carries the request id in gRPC metadata and HTTP headers
	RequestIDHeader = "x-request-id"
)

// Config defines logging configuration
type Config struct {
	// Level is the logging level (debug, info, warn, error)
	Level string
	// Pretty determines if logs should be formatted for human readability
	Pretty bool
	// Output is where logs are written (defaults to os.Stdout)
	Output io.Writer
}

// DefaultConfig returns the default logging configuration
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Pretty: false,
		Output: os.Stdout,
	}
}

// Setup configures the global logger and returns it
func Setup(cfg Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}
	}

	log.Logger = zerolog.New(output).With().Timestamp().Logger()
	return log.Logger
}

// WithRequestID stores a request id in ctx
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// RequestID returns the request id stored in ctx, if any
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

// FromContext returns the global logger annotated with the request id
func FromContext(ctx context.Context) zerolog.Logger {
	if requestID := RequestID(ctx); requestID != "" {
		return log.With().Str("request_id", requestID).Logger()
	}
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if ids := md.Get(RequestIDHeader); len(ids) > 0 {
			return log.With().Str("request_id", ids[0]).Logger()
		}
	}
	return log.Logger
}

// incomingRequestID reads x-request-id from gRPC metadata or mints a new one
func incomingRequestID(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if ids := md.Get(RequestIDHeader); len(ids) > 0 && ids[0] != "" {
			return ids[0]
		}
	}
	return uuid.NewString()
}

func grpcCode(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	if st, ok := status.FromError(err); ok {
		return st.Code()
	}
	return codes.Unknown
}

// logCompletion logs client mistakes at warn and server failures at error
func logCompletion(logger zerolog.Logger, err error, duration time.Duration, msg string) {
	code := grpcCode(err)
	var event *zerolog.Event
	switch code {
	case codes.OK:
		event = logger.Info()
	case codes.InvalidArgument, codes.NotFound, codes.FailedPrecondition, codes.Canceled, codes.DeadlineExceeded:
		event = logger.Warn().Err(err)
	default:
		event = logger.Error().Err(err)
	}
	event.Dur("duration", duration).
		Str("grpc.code", code.String()).
		Msg(msg)
}

// UnaryServerInterceptor logs every unary call and tags its context with a request id
func UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		start := time.Now()
		requestID := incomingRequestID(ctx)
		ctx = WithRequestID(ctx, requestID)

		logger := log.With().
			Str("grpc.method", info.FullMethod).
			Str("request_id", requestID).
			Logger()
		logger.Debug().Msg("Request received")

		resp, err := handler(ctx, req)

		logCompletion(logger, err, time.Since(start), "Request completed")
		return resp, err
	}
}

// StreamServerInterceptor is the streaming counterpart of UnaryServerInterceptor
func StreamServerInterceptor() grpc.StreamServerInterceptor {
	return func(
		srv interface{},
		stream grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		start := time.Now()
		requestID := incomingRequestID(stream.Context())

		wrappedStream := &wrappedServerStream{
			ServerStream: stream,
			ctx:          WithRequestID(stream.Context(), requestID),
		}

		logger := log.With().
			Str("grpc.method", info.FullMethod).
			Bool("grpc.stream", true).
			Str("request_id", requestID).
			Logger()
		logger.Debug().Msg("Stream started")

		err := handler(srv, wrappedStream)

		logCompletion(logger, err, time.Since(start), "Stream completed")
		return err
	}
}

// wrappedServerStream wraps a grpc.ServerStream with a modified context
type wrappedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

// Context returns the wrapper's modified context
func (w *wrappedServerStream) Context() context.Context {
	return w.ctx
}
