package cl

import (
	"sync"

	"go.uber.org/zap"
)

var (
	logger     *zap.Logger
	loggerOnce sync.Once
)

// Logger returns the cl package's logger instance.
// It uses a no-op logger by default. Sessions created without WithLogger
// log here.
func Logger() *zap.Logger {
	loggerOnce.Do(func() {
		if logger == nil {
			logger = zap.NewNop()
		}
	})
	return logger
}

// SetLogger configures the cl package's logger.
// This must be called before creating sessions.
func SetLogger(l *zap.Logger) {
	logger = l
}
