package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogContext holds contextual information for logging
type LogContext struct {
	AccountID int64
	Provider  string
	RequestID string
	Fields    map[string]any
}

// SystemLogger writes structured logs through zap
type SystemLogger struct {
	zl *zap.Logger
}

// NewSystemLogger wraps an existing zap logger
func NewSystemLogger(zl *zap.Logger) *SystemLogger {
	if zl == nil {
		zl = zap.NewNop()
	}
	return &SystemLogger{zl: zl}
}

// NewZapLogger builds the zap logger for an environment.
// Production gets the JSON encoder, everything else the colored console one.
func NewZapLogger(env string) (*zap.Logger, error) {
	var cfg zap.Config

	if env == "production" {
		cfg = zap.NewProductionConfig()
		cfg.Encoding = "json"
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.MessageKey = "message"
		cfg.EncoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.OutputPaths = []string{"stdout"}
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	// skip SystemLogger and the package-level helper
	return cfg.Build(zap.AddCaller(), zap.AddCallerSkip(2))
}

// Zap returns the underlying zap logger
func (sl *SystemLogger) Zap() *zap.Logger {
	return sl.zl
}

// Debug logs a debug message
func (sl *SystemLogger) Debug(message string, ctx ...LogContext) {
	sl.zl.Debug(message, fields(ctx...)...)
}

// Info logs an info message
func (sl *SystemLogger) Info(message string, ctx ...LogContext) {
	sl.zl.Info(message, fields(ctx...)...)
}

// Warn logs a warning message
func (sl *SystemLogger) Warn(message string, ctx ...LogContext) {
	sl.zl.Warn(message, fields(ctx...)...)
}

// Error logs an error message
func (sl *SystemLogger) Error(message string, err error, ctx ...LogContext) {
	fs := fields(ctx...)
	if err != nil {
		fs = append(fs, zap.Error(err))
	}
	sl.zl.Error(message, fs...)
}

// Fatal logs a fatal message and exits
func (sl *SystemLogger) Fatal(message string, err error, ctx ...LogContext) {
	fs := fields(ctx...)
	if err != nil {
		fs = append(fs, zap.Error(err))
	}
	sl.zl.Fatal(message, fs...)
}

// Sync flushes buffered entries
func (sl *SystemLogger) Sync() {
	_ = sl.zl.Sync()
}

func fields(ctx ...LogContext) []zap.Field {
	if len(ctx) == 0 {
		return nil
	}

	logCtx := ctx[0]
	fs := make([]zap.Field, 0, len(logCtx.Fields)+3)
	if logCtx.Provider != "" {
		fs = append(fs, zap.String("provider", logCtx.Provider))
	}
	if logCtx.RequestID != "" {
		fs = append(fs, zap.String("request_id", logCtx.RequestID))
	}
	if logCtx.AccountID != 0 {
		fs = append(fs, zap.Int64("account_id", logCtx.AccountID))
	}
	for key, value := range logCtx.Fields {
		fs = append(fs, zap.Any(key, value))
	}
	return fs
}

// WithContext creates a context logger
func (sl *SystemLogger) WithContext(ctx LogContext) *ContextLogger {
	if ctx.Fields == nil {
		ctx.Fields = make(map[string]any)
	}
	return &ContextLogger{logger: sl, context: ctx}
}

// ContextLogger is a logger with pre-set context
type ContextLogger struct {
	logger  *SystemLogger
	context LogContext
}

// Debug logs a debug message with context
func (cl *ContextLogger) Debug(message string) {
	cl.logger.Debug(message, cl.context)
}

// Info logs an info message with context
func (cl *ContextLogger) Info(message string) {
	cl.logger.Info(message, cl.context)
}

// Warn logs a warning message with context
func (cl *ContextLogger) Warn(message string) {
	cl.logger.Warn(message, cl.context)
}

// Error logs an error message with context
func (cl *ContextLogger) Error(message string, err error) {
	cl.logger.Error(message, err, cl.context)
}

// AddField adds a field to the context
func (cl *ContextLogger) AddField(key string, value any) *ContextLogger {
	cl.context.Fields[key] = value
	return cl
}

// SetProvider sets the provider in context
func (cl *ContextLogger) SetProvider(provider string) *ContextLogger {
	cl.context.Provider = provider
	return cl
}

// SetRequestID sets the request ID in context
func (cl *ContextLogger) SetRequestID(requestID string) *ContextLogger {
	cl.context.RequestID = requestID
	return cl
}

// SetAccountID sets the account ID in context
func (cl *ContextLogger) SetAccountID(accountID int64) *ContextLogger {
	cl.context.AccountID = accountID
	return cl
}
