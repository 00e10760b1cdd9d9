package logger

import (
	"fmt"
)

// LeveledLogger bridges Logger to the key/value logging interface expected by
// github.com/hashicorp/go-retryablehttp.
type LeveledLogger struct {
	log Logger
}

// NewLeveledLogger wraps log for use as a retryablehttp.LeveledLogger.
func NewLeveledLogger(log Logger) *LeveledLogger {
	return &LeveledLogger{log: log}
}

func (l *LeveledLogger) Error(msg string, keysAndValues ...any) {
	emit(l.log.Error(), msg, keysAndValues)
}

func (l *LeveledLogger) Warn(msg string, keysAndValues ...any) {
	emit(l.log.Warn(), msg, keysAndValues)
}

func (l *LeveledLogger) Info(msg string, keysAndValues ...any) {
	emit(l.log.Info(), msg, keysAndValues)
}

func (l *LeveledLogger) Debug(msg string, keysAndValues ...any) {
	emit(l.log.Debug(), msg, keysAndValues)
}

func emit(e LogEvent, msg string, kv []any) {
	for i := 0; i+1 < len(kv); i += 2 {
		key := fmt.Sprint(kv[i])
		switch v := kv[i+1].(type) {
		case string:
			e = e.Str(key, v)
		case int:
			e = e.Int(key, v)
		case error:
			e = e.Str(key, v.Error())
		case fmt.Stringer:
			e = e.Str(key, v.String())
		default:
			e = e.Interface(key, v)
		}
	}
	if len(kv)%2 == 1 {
		e = e.Interface("extra", kv[len(kv)-1])
	}
	e.Msg(msg)
}
