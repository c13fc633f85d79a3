package obs

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	loggerMu sync.RWMutex
	logger   = newLogger(os.Stdout, "")
)

func newLogger(w io.Writer, env string) zerolog.Logger {
	if env == "local" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).With().Timestamp().Str("service", ServiceName).Logger()
}

// ServiceName is attached to every log line and the build_info metric.
const ServiceName = "pokeswap-api"

// SetupLogger configures the shared logger. env "local" switches to the
// human readable console writer; level falls back to info.
func SetupLogger(env, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	l := newLogger(os.Stdout, env).Level(lvl)
	loggerMu.Lock()
	logger = l
	loggerMu.Unlock()
	return l
}

// SetOutput redirects the shared logger, returning the previous one.
func SetOutput(w io.Writer) zerolog.Logger {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	prev := logger
	logger = newLogger(w, "")
	return prev
}

// Restore puts back a logger previously returned by SetOutput.
func Restore(l zerolog.Logger) {
	loggerMu.Lock()
	logger = l
	loggerMu.Unlock()
}

// Logger returns the shared structured logger used across the service.
func Logger() *zerolog.Logger {
	loggerMu.RLock()
	l := logger
	loggerMu.RUnlock()
	return &l
}
