package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	slogmulti "github.com/samber/slog-multi"
)

type LogCode string

const (
	SYSTEM LogCode = "SYSTEM"

	AUTH LogCode = "AUTH"

	// analysis requests and the model calls backing them
	ANALYSIS    LogCode = "ANALYSIS"
	AI_GENERATE LogCode = "AI_GENERATE"

	REPORT_STORE LogCode = "REPORT_STORE"

	DEPLOY LogCode = "DEPLOY"
)

// Cloud Logging reads severity and message from fixed field names when the
// container writes structured json to stdout.
func convertKeysToCloudLogging(groups []string, a slog.Attr) slog.Attr {
	if len(groups) > 0 {
		return a
	}
	switch a.Key {
	case slog.LevelKey:
		level, ok := a.Value.Any().(slog.Level)
		if !ok {
			return slog.Attr{Key: "severity", Value: a.Value}
		}
		return slog.String("severity", severity(level))
	case slog.MessageKey:
		return slog.Attr{Key: "message", Value: a.Value}
	}
	return a
}

func severity(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARNING"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}

func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "", "INFO":
		return slog.LevelInfo, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "ERROR", "CRITICAL":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level '%v'", level)
}

func GetCloudLoggingOptions(level slog.Level, addSource bool) *slog.HandlerOptions {
	return &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: convertKeysToCloudLogging,
		AddSource:   addSource,
	}
}

// NewHandler returns the handler for the given format writing to w. The json
// format uses Cloud Logging field names.
func NewHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	if strings.ToLower(format) == "text" {
		return slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	}
	return slog.NewJSONHandler(w, GetCloudLoggingOptions(level, false))
}

// InitLogging installs the default logger writing to w. Extra handlers receive
// every record as well.
func InitLogging(w io.Writer, level slog.Level, format, serviceType string, extra ...slog.Handler) *slog.Logger {
	var handler slog.Handler = NewHandler(w, format, level)
	handler = handler.WithAttrs([]slog.Attr{slog.String("service_type", serviceType)})

	if len(extra) > 0 {
		handler = slogmulti.Fanout(append([]slog.Handler{handler}, extra...)...)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
