// Package logger provides structured logging for the transaction engine.
// It builds zap loggers for production and debug use and an http.RoundTripper
// that logs every outbound node request.
package logger

import (
	"net/http"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggerConfig holds the configuration for logger creation.
type LoggerConfig struct {
	// Debug enables debug-level logging when true, otherwise uses info level
	Debug bool
}

// NewLogger creates a JSON logger with ISO8601 timestamps.
//
// Parameters:
//   - cfg: The logger configuration
//   - options: Additional zap options to apply to the logger
//
// Returns:
//   - *zap.Logger: A configured zap logger instance
//   - error: An error if the logger cannot be created
func NewLogger(cfg *LoggerConfig, options ...zap.Option) (*zap.Logger, error) {
	mergedOptions := append([]zap.Option{zap.WithCaller(true)}, options...)

	c := zap.NewProductionConfig()
	c.EncoderConfig = zap.NewProductionEncoderConfig()
	c.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if cfg.Debug {
		c.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	} else {
		c.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	return c.Build(mergedOptions...)
}

type roundTripper struct {
	next http.RoundTripper
	l    *zap.Logger
}

// NewRoundTripper wraps next so every request is logged at debug level with
// method, host, path, status and duration. Bodies and query strings are never
// logged since they can carry signed payloads and API keys.
//
// Parameters:
//   - next: The transport to delegate to, http.DefaultTransport when nil
//   - l: The zap logger to use for request logging
//
// Returns:
//   - http.RoundTripper: The logging transport
func NewRoundTripper(next http.RoundTripper, l *zap.Logger) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return &roundTripper{next: next, l: l}
}

func (rt *roundTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := rt.next.RoundTrip(r)
	fields := []zap.Field{
		zap.String("system", "node"),
		zap.String("method", r.Method),
		zap.String("host", r.URL.Host),
		zap.String("path", r.URL.Path),
		zap.Duration("duration", time.Since(start)),
	}
	if err != nil {
		rt.l.Debug("node_request_failed", append(fields, zap.Error(err))...)
		return nil, err
	}
	rt.l.Debug("node_request", append(fields, zap.Int("status", resp.StatusCode))...)
	return resp, nil
}
