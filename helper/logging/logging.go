package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
)

type LogFormat int

const (
	UnspecifiedFormat LogFormat = iota
	StandardFormat
	JSONFormat
)

const (
	EnvLogFormat = "BILLING_LOG_FORMAT"
	EnvLogLevel  = "BILLING_LOG_LEVEL"
)

func (l LogFormat) String() string {
	switch l {
	case UnspecifiedFormat:
		return "unspecified"
	case StandardFormat:
		return "standard"
	case JSONFormat:
		return "json"
	}

	// unreachable
	return "unknown"
}

// ParseLogFormat parses "standard" or "json". An empty string is
// UnspecifiedFormat.
func ParseLogFormat(format string) (LogFormat, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "":
		return UnspecifiedFormat, nil
	case "standard":
		return StandardFormat, nil
	case "json":
		return JSONFormat, nil
	default:
		return UnspecifiedFormat, fmt.Errorf("unknown log format: %s", format)
	}
}

// ParseEnvLogFormat parses the log format from the environment.
func ParseEnvLogFormat() LogFormat {
	format, err := ParseLogFormat(os.Getenv(EnvLogFormat))
	if err != nil {
		return UnspecifiedFormat
	}
	return format
}

// ParseLogLevel maps a level name to an hclog level. An empty string is
// hclog.NoLevel.
func ParseLogLevel(level string) (hclog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "":
		return hclog.NoLevel, nil
	case "trace":
		return hclog.Trace, nil
	case "debug":
		return hclog.Debug, nil
	case "notice", "info":
		return hclog.Info, nil
	case "warn", "warning":
		return hclog.Warn, nil
	case "err", "error":
		return hclog.Error, nil
	case "off":
		return hclog.Off, nil
	default:
		return hclog.NoLevel, fmt.Errorf("unknown log level: %s", level)
	}
}

// NewLogger creates a named intercept logger writing to w.
func NewLogger(name string, level hclog.Level, format LogFormat, w io.Writer) hclog.InterceptLogger {
	if level == hclog.NoLevel {
		level = hclog.Warn
	}
	return hclog.NewInterceptLogger(&hclog.LoggerOptions{
		Name:              name,
		Output:            w,
		Level:             level,
		IndependentLevels: true,
		JSONFormat:        format == JSONFormat,
	})
}
