// Package logx provides the process-wide structured logger used by the
// network handler and client front-end. One global logger, runtime-
// adjustable level, field-attaching helpers for the identifiers that show up
// on nearly every log line in this module (connection id, command name).
package logx

import (
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	level    = zap.NewAtomicLevelAt(zap.InfoLevel)
	global   *zap.SugaredLogger
	initOnce sync.Once
	disabled atomic.Bool
)

// Init builds the global logger. Safe to call multiple times; only the
// first call has effect on construction, use SetLevel to adjust afterwards.
func Init() {
	initOnce.Do(func() {
		cfg := zap.NewProductionEncoderConfig()
		cfg.TimeKey = "ts"
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		core := zapcore.NewCore(zapcore.NewJSONEncoder(cfg), zapcore.Lock(zapcore.AddSync(zapWriter{})), level)
		global = zap.New(core).Sugar()
	})
}

// zapWriter defers to the standard error stream unless logging is disabled
// (used by tests that don't want console noise).
type zapWriter struct{}

func (zapWriter) Write(p []byte) (int, error) {
	if disabled.Load() {
		return len(p), nil
	}
	return os.Stderr.Write(p)
}

// Disable silences log output (tests).
func Disable() { disabled.Store(true) }

// Enable restores log output.
func Enable() { disabled.Store(false) }

// SetLevel changes the runtime log level ("debug", "info", "warn", "error").
func SetLevel(s string) {
	Init()
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		level.SetLevel(zap.DebugLevel)
	case "warn", "warning":
		level.SetLevel(zap.WarnLevel)
	case "error":
		level.SetLevel(zap.ErrorLevel)
	default:
		level.SetLevel(zap.InfoLevel)
	}
}

// L returns the global logger, initializing it on first use.
func L() *zap.SugaredLogger {
	Init()
	return global
}

// WithConn attaches connection identity fields.
func WithConn(connID, addr string) *zap.SugaredLogger {
	return L().With("conn_id", connID, "addr", addr)
}

// WithCmd attaches the originating command name, for per-command log lines.
func WithCmd(l *zap.SugaredLogger, cmd string) *zap.SugaredLogger {
	return l.With("cmd", cmd)
}
