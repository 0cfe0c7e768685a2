package obs

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

var logger atomic.Pointer[slog.Logger]

func init() {
	logger.Store(NewLogger(os.Stdout, "info"))
}

// Logger returns the shared structured logger used across the service.
func Logger() *slog.Logger {
	return logger.Load()
}

// SetLogger swaps the shared logger and returns the previous one.
func SetLogger(l *slog.Logger) *slog.Logger {
	if l == nil {
		return logger.Load()
	}
	return logger.Swap(l)
}

// NewLogger builds a JSON logger writing to w at the named level.
func NewLogger(w io.Writer, level string) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)}))
}

// ParseLevel maps debug/info/warn/error onto slog levels, defaulting to info.
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

// LogRequest emits one request_complete line.
func LogRequest(requestID, method, path string, status int, durationMS float64, remote string) {
	Logger().Info("request_complete",
		slog.String("request_id", requestID),
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("duration_ms", durationMS),
		slog.String("remote", remote),
	)
}
