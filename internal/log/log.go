package log

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelError Level = "ERROR"
)

var (
	mu     sync.RWMutex
	level  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	logger *zap.SugaredLogger
)

// Init builds the global logger. "production" selects JSON output; anything
// else gets the colored development encoder. Safe to call more than once.
func Init(env string) {
	var cfg zap.Config
	if env == "production" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.Level = level
	cfg.OutputPaths = []string{"stderr"}

	l, err := cfg.Build(zap.AddCallerSkip(2))
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}

	mu.Lock()
	old := logger
	logger = l.Sugar()
	mu.Unlock()

	if old != nil {
		_ = old.Sync()
	}
}

func current() *zap.SugaredLogger {
	mu.RLock()
	l := logger
	mu.RUnlock()
	if l != nil {
		return l
	}
	Init("development")
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func SetLevel(l Level) {
	switch l {
	case LevelDebug:
		level.SetLevel(zapcore.DebugLevel)
	case LevelError:
		level.SetLevel(zapcore.ErrorLevel)
	default:
		level.SetLevel(zapcore.InfoLevel)
	}
}

// ParseLevel maps a config string onto a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch s {
	case "debug", "DEBUG":
		return LevelDebug
	case "error", "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

func Debug(msg string, kv ...any) {
	logWithLevel(LevelDebug, msg, kv...)
}

func Info(msg string, kv ...any) {
	logWithLevel(LevelInfo, msg, kv...)
}

func Error(msg string, err error, kv ...any) {
	// Prepend error into key-value list.
	extended := append([]any{"err", err}, kv...)
	logWithLevel(LevelError, msg, extended...)
}

// Sync flushes buffered entries; call before exit.
func Sync() {
	_ = current().Sync()
}

func logWithLevel(lvl Level, msg string, kv ...any) {
	l := current()
	// Odd trailing values are dropped rather than logged as "!BADKEY".
	if len(kv)%2 != 0 {
		kv = kv[:len(kv)-1]
	}
	switch lvl {
	case LevelDebug:
		l.Debugw(msg, kv...)
	case LevelError:
		l.Errorw(msg, kv...)
	default:
		l.Infow(msg, kv...)
	}
}
