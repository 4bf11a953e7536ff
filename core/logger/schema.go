package logger

import (
	"log/slog"
	"strings"
)

func levelName(l slog.Level) string {
	switch {
	case l < slog.LevelInfo:
		return "DEBUG"
	case l < slog.LevelWarn:
		return "INFO"
	case l < slog.LevelError:
		return "WARN"
	default:
		return "ERROR"
	}
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// Known status values are lower-cased; unknown ones pass through.
var knownStatus = map[string]bool{
	"ok":           true,
	"fail":         true,
	"skip":         true,
	"rate_limited": true,
	"cancelled":    true,
}

func normalizeStatus(s string) string {
	lower := strings.ToLower(strings.TrimSpace(s))
	if knownStatus[lower] {
		return lower
	}
	return s
}

// defaultKeyOrder puts the fields an operator scans first at the start of
// each line. Unlisted keys follow in alphabetical order.
var defaultKeyOrder = []string{
	"ts",
	"level",
	"component",
	"event",
	"status",
	"rid",
	"rid_full",
	"ts_unix_nano",
	"update_id",
	"user_id",
	"chat_id",
	"handler",
	"duration_ms",
	"mode",
	"listen",
	"public_url",
	"method",
	"path",
	"http_code",
	"db",
	"host",
	"port",
	"kind",
	"amount",
	"quotes",
	"recipients",
	"queued",
	"failed",
	"messages",
	"err",
	"err_code",
	"attempts",
}
