package logx

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// New builds the JSON slog logger used by every binary. A non-empty file
// path sends output to a size-rotated file instead of stdout.
func New(level, file string) *slog.Logger {
	var out io.Writer = os.Stdout
	if strings.TrimSpace(file) != "" {
		out = &lumberjack.Logger{
			Filename:   file,
			MaxSize:    50, // MB
			MaxBackups: 5,
			Compress:   true,
		}
	}
	return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: ParseLevel(level)}))
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
