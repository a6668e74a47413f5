package config

import (
	"strings"

	"go.uber.org/zap"

	"github.com/AntonStoeckl/borrowing-ledger-go/ledger"
)

// ZapLogger implements ledger.Logger on a zap SugaredLogger.
type ZapLogger struct {
	sugared *zap.SugaredLogger
}

// NewLogger builds the process logger. Mode "development" gives human-readable console output,
// anything else JSON at info level.
func NewLogger(mode string) (*ZapLogger, error) {
	var cfg zap.Config

	switch strings.ToLower(mode) {
	case "dev", "development":
		cfg = zap.NewDevelopmentConfig()
	default:
		cfg = zap.NewProductionConfig()
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	return &ZapLogger{sugared: logger.Sugar()}, nil
}

// NewZapLogger wraps an existing zap logger.
func NewZapLogger(logger *zap.Logger) *ZapLogger {
	return &ZapLogger{sugared: logger.Sugar()}
}

func (l *ZapLogger) Debug(msg string, args ...any) { l.sugared.Debugw(msg, args...) }
func (l *ZapLogger) Info(msg string, args ...any)  { l.sugared.Infow(msg, args...) }
func (l *ZapLogger) Warn(msg string, args ...any)  { l.sugared.Warnw(msg, args...) }
func (l *ZapLogger) Error(msg string, args ...any) { l.sugared.Errorw(msg, args...) }

// Sync flushes buffered entries.
func (l *ZapLogger) Sync() {
	_ = l.sugared.Sync()
}

var _ ledger.Logger = (*ZapLogger)(nil)
