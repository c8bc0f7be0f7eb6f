package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	gnarklogger "github.com/consensys/gnark/logger"
	"github.com/rs/zerolog"
)

var (
	mu  sync.RWMutex
	log zerolog.Logger
	// file is the open log file when output is a path.
	file *os.File
)

func init() {
	// LOG_LEVEL lets tests raise verbosity without touching code.
	level := "error"
	if s := os.Getenv("LOG_LEVEL"); s != "" {
		level = s
	}
	if err := Init(level, "stderr"); err != nil {
		panic(err)
	}
}

// Init (re)configures the process logger. Output is "stdout", "stderr" or a file path.
// gnark's compiler and solver log through the same logger afterwards.
func Init(level, output string) error {
	var (
		w io.Writer
		f *os.File
	)
	switch output {
	case "stdout":
		w = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	case "stderr", "":
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	default:
		var err error
		f, err = os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("cannot open log output %s: %w", output, err)
		}
		w = f
	}

	l := zerolog.New(w).Level(levelFromString(level)).With().Timestamp().Logger()

	mu.Lock()
	prev := file
	log, file = l, f
	mu.Unlock()

	gnarklogger.Set(l)
	if prev != nil {
		prev.Close()
	}
	return nil
}

// Logger returns the current process logger.
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

func levelFromString(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "disabled":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

func Debugw(msg string, keyvalues ...any) {
	l := Logger()
	l.Debug().Fields(keyvalues).Msg(msg)
}

func Infow(msg string, keyvalues ...any) {
	l := Logger()
	l.Info().Fields(keyvalues).Msg(msg)
}

func Warnw(msg string, keyvalues ...any) {
	l := Logger()
	l.Warn().Fields(keyvalues).Msg(msg)
}

// Errorw logs err with msg; err may be nil.
func Errorw(err error, msg string, keyvalues ...any) {
	l := Logger()
	l.Error().Err(err).Fields(keyvalues).Msg(msg)
}
