package main

import (
	"io"
	"log/slog"
	"os"

	"cancionero/internal/config"

	"gopkg.in/natefinch/lumberjack.v2"
)

// newLogger writes to stdout and, when LOG_FILE is set, to a rotating file.
// The returned closer releases the file.
func newLogger(cfg config.Config) (*slog.Logger, io.Closer) {
	var out io.Writer = os.Stdout
	var closer io.Closer = io.NopCloser(nil)

	if cfg.LogFile != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    cfg.LogMaxSizeMB,
			MaxBackups: cfg.LogMaxBackups,
			MaxAge:     cfg.LogMaxAgeDays,
			Compress:   true,
		}
		out = io.MultiWriter(os.Stdout, rotator)
		closer = rotator
	}

	var handler slog.Handler
	if cfg.IsProduction() {
		handler = slog.NewJSONHandler(out, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		handler = slog.NewTextHandler(out, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	return slog.New(handler), closer
}
