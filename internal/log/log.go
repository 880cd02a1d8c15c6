// Package log is a small key-value logging facade backed by zerolog.
// Call sites use flat variadic pairs: log.Info("msg", "key", value, ...).
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

var (
	mu     sync.RWMutex
	root   zerolog.Logger
	inited bool
)

// Init configures the process-wide logger. format is "console" or "json";
// anything else falls back to console. Safe to call more than once; later
// calls replace the root logger.
func Init(level Level, format string, w io.Writer) {
	if w == nil {
		w = os.Stderr
	}
	if format != "json" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	lvl := parseLevel(level)

	mu.Lock()
	root = zerolog.New(w).Level(lvl).With().Timestamp().Logger()
	inited = true
	mu.Unlock()
}

// get returns a pointer to a copy of the root logger; zerolog level
// methods have pointer receivers.
func get() *zerolog.Logger {
	mu.RLock()
	ok := inited
	l := root
	mu.RUnlock()
	if ok {
		return &l
	}
	Init(LevelInfo, "console", os.Stderr)
	mu.RLock()
	l = root
	mu.RUnlock()
	return &l
}

func parseLevel(l Level) zerolog.Level {
	switch Level(strings.ToLower(string(l))) {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelInfo:
		return zerolog.InfoLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func Debug(msg string, kv ...any) {
	ev := get().Debug()
	applyKVs(ev, kv)
	ev.Msg(msg)
}

func Info(msg string, kv ...any) {
	ev := get().Info()
	applyKVs(ev, kv)
	ev.Msg(msg)
}

func Warn(msg string, kv ...any) {
	ev := get().Warn()
	applyKVs(ev, kv)
	ev.Msg(msg)
}

func Error(msg string, err error, kv ...any) {
	ev := get().Error().Err(err)
	applyKVs(ev, kv)
	ev.Msg(msg)
}

// applyKVs attaches flat key-value pairs to the event. Non-string keys and
// a trailing odd value are skipped.
func applyKVs(ev *zerolog.Event, kv []any) {
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		switch v := kv[i+1].(type) {
		case string:
			ev.Str(key, v)
		case int:
			ev.Int(key, v)
		case bool:
			ev.Bool(key, v)
		case time.Time:
			ev.Time(key, v)
		case time.Duration:
			ev.Dur(key, v)
		case error:
			ev.AnErr(key, v)
		default:
			ev.Str(key, fmt.Sprint(v))
		}
	}
}
