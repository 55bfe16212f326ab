package logger

import (
	"sync"

	"go.uber.org/zap"
)

var (
	mu  sync.RWMutex
	log = zap.NewNop()
)

// Init builds the process-wide logger. Production uses JSON output at info level,
// everything else gets the colored development encoder.
func Init(env string) error {
	var (
		l   *zap.Logger
		err error
	)
	if env == "production" {
		l, err = zap.NewProduction()
	} else {
		l, err = zap.NewDevelopment()
	}
	if err != nil {
		return err
	}
	Set(l)
	return nil
}

// Set replaces the global logger. Tests use it to plug in zaptest or observer loggers.
func Set(l *zap.Logger) {
	mu.Lock()
	log = l
	mu.Unlock()
}

// L returns the current logger.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

func Debug(msg string, fields ...zap.Field) { L().Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { L().Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { L().Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { L().Error(msg, fields...) }

// Sync flushes buffered entries.
func Sync() {
	_ = L().Sync()
}
