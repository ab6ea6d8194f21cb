package logger

import (
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var current atomic.Pointer[zap.Logger]

func init() {
	current.Store(zap.NewNop())
}

// Init replaces the process logger. Development gets the console encoder,
// everything else JSON.
func Init(environment, level string) error {
	var cfg zap.Config
	if environment == "development" {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
	}

	if level != "" {
		lvl, err := zapcore.ParseLevel(strings.ToLower(level))
		if err != nil {
			return err
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return err
	}
	current.Store(l)
	return nil
}

// Use installs an already built logger, mostly for tests.
func Use(l *zap.Logger) {
	current.Store(l.WithOptions(zap.AddCallerSkip(1)))
}

// L returns the structured logger for callers that log fields.
func L() *zap.Logger {
	return current.Load().WithOptions(zap.AddCallerSkip(-1))
}

func sugar() *zap.SugaredLogger {
	return current.Load().Sugar()
}

func Info(format string, v ...interface{}) {
	sugar().Infof(format, v...)
}

func Error(format string, v ...interface{}) {
	sugar().Errorf(format, v...)
}

func Debug(format string, v ...interface{}) {
	sugar().Debugf(format, v...)
}

func Warn(format string, v ...interface{}) {
	sugar().Warnf(format, v...)
}

// LogOrderError records an order operation that failed for a reason other than a guard.
func LogOrderError(orderID, action string, err error) {
	sugar().Warnw("order operation failed", "orderId", orderID, "action", action, "error", err)
}

func Sync() {
	_ = current.Load().Sync()
}
