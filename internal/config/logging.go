package config

import (
	"fmt"
	"log/slog"
	"strings"
)

// LevelTrace sits below [slog.LevelDebug] and carries wire-level
// payloads: full provider request and response JSON. The value -8
// matches how OpenTelemetry numbers a trace level under slog. Enable it
// only while chasing a provider bug; the volume is unusable otherwise.
const LevelTrace = slog.Level(-8)

// ParseLogLevel maps the log_level config string onto an [slog.Level].
// Recognized values are trace, debug, info (also the empty default),
// warn/warning, and error; case and surrounding whitespace are
// ignored.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "trace":
		return LevelTrace, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (valid: trace, debug, info, warn, error)", s)
	}
}

// ReplaceLogLevelNames is a ReplaceAttr hook that prints [LevelTrace]
// as "TRACE". slog labels unknown custom levels relative to the
// nearest built-in, which would come out as "DEBUG-4".
func ReplaceLogLevelNames(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		if level, ok := a.Value.Any().(slog.Level); ok && level == LevelTrace {
			a.Value = slog.StringValue("TRACE")
		}
	}
	return a
}
