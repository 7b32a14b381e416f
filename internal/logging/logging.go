// Package logging builds the zap loggers used across arbor.
//
// Library packages never create loggers themselves: they accept a *zap.Logger
// through options and default to zap.NewNop(). Only cmd/arbor calls New.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Format represents the logging format.
type Format string

const (
	// FormatConsole indicates human-readable console format.
	FormatConsole Format = "CONSOLE"
	// FormatJSON indicates structured JSON format.
	FormatJSON Format = "JSON"
	// FormatPretty is console output with colored levels.
	FormatPretty Format = "PRETTY"
)

// Component names passed to Named.
const (
	ComponentChecker  = "checker"
	ComponentWalker   = "walker"
	ComponentDispatch = "dispatch"
	ComponentAudit    = "audit"
	ComponentSuppress = "suppress"
	ComponentCache    = "cache"
)

// Environment variables consulted by FromEnv.
const (
	EnvLevel  = "ARBOR_LOG_LEVEL"
	EnvFormat = "ARBOR_LOG_FORMAT"
)

// ParseLevel converts a level name to zapcore.Level; unknown names map to warn.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return zapcore.DebugLevel
	case "INFO":
		return zapcore.InfoLevel
	case "WARN", "WARNING":
		return zapcore.WarnLevel
	case "ERROR":
		return zapcore.ErrorLevel
	default:
		return zapcore.WarnLevel
	}
}

// ParseFormat returns the format for name, or def for unknown names.
func ParseFormat(name string, def Format) Format {
	f := Format(strings.ToUpper(strings.TrimSpace(name)))
	switch f {
	case FormatConsole, FormatJSON, FormatPretty:
		return f
	}
	return def
}

// getEnv gets environment variable with a default value.
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// timeEncoder encodes the time as a human-readable timestamp.
func timeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Format("15:04:05.000"))
}

// New creates a logger writing to w with the given level and format.
func New(level string, format Format, w io.Writer) *zap.Logger {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "component",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var encoder zapcore.Encoder
	switch format {
	case FormatPretty, FormatConsole:
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		if format == FormatPretty {
			encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
		encoderConfig.EncodeTime = timeEncoder
		encoderConfig.ConsoleSeparator = " | "
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	default:
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	core := zapcore.NewCore(
		encoder,
		zapcore.Lock(zapcore.AddSync(w)),
		zap.NewAtomicLevelAt(ParseLevel(level)),
	)
	return zap.New(core, zap.AddCaller())
}

// FromEnv creates a stderr logger; flag values win over ARBOR_LOG_LEVEL and
// ARBOR_LOG_FORMAT when non-empty.
func FromEnv(level, format string) *zap.Logger {
	if level == "" {
		level = getEnv(EnvLevel, "WARN")
	}
	if format == "" {
		format = getEnv(EnvFormat, string(FormatConsole))
	}
	return New(level, ParseFormat(format, FormatConsole), os.Stderr)
}

// Or returns l, or a no-op logger when l is nil.
func Or(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
