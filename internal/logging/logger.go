package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New returns the process logger. Production gets JSON on stdout, everything else a text
// handler at debug level.
func New(service, env string) *slog.Logger {
	return newWithWriter(os.Stdout, service, env)
}

func newWithWriter(w io.Writer, service, env string) *slog.Logger {
	var h slog.Handler
	if strings.EqualFold(env, "prod") {
		h = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		h = slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	return slog.New(h).With("service", service)
}
