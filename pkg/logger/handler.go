package logger

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"
)

const redacted = "[redacted]"

// sensitiveKeys never reach the output with their real value. The bot token
// and the admin password travel through config and request structs.
var sensitiveKeys = map[string]struct{}{
	"token":         {},
	"bot_token":     {},
	"password":      {},
	"password_hash": {},
	"secret_key":    {},
	"authorization": {},
}

func createHandler(config Config) (slog.Handler, error) {
	opts := &slog.HandlerOptions{
		Level:     parseLogLevel(config.Env, config.Level),
		AddSource: config.AddSource,
	}

	switch strings.ToLower(config.Env) {
	case "prod":
		opts.ReplaceAttr = replacer("", config.SourcePathLength)
		return slog.NewJSONHandler(config.Output, opts), nil

	case "dev":
		opts.ReplaceAttr = replacer(config.TimeFormat, config.SourcePathLength)
		return slog.NewTextHandler(config.Output, opts), nil

	case "test":
		opts.AddSource = false
		opts.ReplaceAttr = replacer("", 0)
		return slog.NewTextHandler(config.Output, opts), nil

	default:
		return nil, fmt.Errorf("unknown environment: %s (use 'dev', 'prod', or 'test')", config.Env)
	}
}

// parseLogLevel prefers an explicit level and falls back to the env default
func parseLogLevel(env, explicitLevel string) slog.Level {
	var level slog.Level
	if explicitLevel != "" && level.UnmarshalText([]byte(explicitLevel)) == nil {
		return level
	}

	switch strings.ToLower(env) {
	case "dev":
		return slog.LevelDebug
	case "test":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// replacer masks sensitive attributes, shortens source paths and, when
// timeFormat is set, rewrites the timestamp for human eyes
func replacer(timeFormat string, pathLength int) func([]string, slog.Attr) slog.Attr {
	return func(groups []string, a slog.Attr) slog.Attr {
		if _, ok := sensitiveKeys[strings.ToLower(a.Key)]; ok && a.Value.String() != "" {
			return slog.String(a.Key, redacted)
		}

		switch a.Key {
		case slog.TimeKey:
			if timeFormat == "" || len(groups) > 0 {
				return a
			}
			if t, ok := a.Value.Any().(time.Time); ok {
				a.Value = slog.StringValue(t.Format(timeFormat))
			}

		case slog.SourceKey:
			if pathLength <= 0 {
				return a
			}
			if source, ok := a.Value.Any().(*slog.Source); ok && source != nil {
				source.File = shortenPath(source.File, pathLength)
			}
		}

		return a
	}
}

// shortenPath keeps the last segments of a source path
func shortenPath(path string, segments int) string {
	if segments == 0 {
		return path
	}

	parts := strings.Split(filepath.ToSlash(path), "/")
	if len(parts) <= segments {
		return path
	}

	return strings.Join(parts[len(parts)-segments:], "/")
}
