package log

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
)

// Level represents a logging severity, one of [LevelError], [LevelWarn],
// [LevelInfo], or [LevelDebug].
type Level string

const (
	// LevelError logs only errors.
	LevelError Level = "error"
	// LevelWarn logs warnings and above.
	LevelWarn Level = "warn"
	// LevelInfo logs informational messages and above.
	LevelInfo Level = "info"
	// LevelDebug logs everything, including debug messages.
	LevelDebug Level = "debug"
)

// Format represents the log output format.
type Format string

const (
	// FormatJSON outputs logs as JSON objects.
	FormatJSON Format = "json"
	// FormatLogfmt outputs logs in logfmt format.
	FormatLogfmt Format = "logfmt"
	// FormatText outputs logs as human-readable text.
	FormatText Format = "text"
)

// Handler is a [slog.Handler] constructed by this package.
type Handler = slog.Handler

var (
	// ErrInvalidArgument indicates an invalid argument was provided.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUnknownLogLevel indicates an unrecognized log level string.
	ErrUnknownLogLevel = errors.New("unknown log level")
	// ErrUnknownLogFormat indicates an unrecognized log format string.
	ErrUnknownLogFormat = errors.New("unknown log format")
)

// allLevels lists every [Level] in ascending order of verbosity, the order
// GetAllLevelStrings and shell completions present them in.
var allLevels = []Level{LevelError, LevelWarn, LevelInfo, LevelDebug}

// allFormats lists every [Format] in the order GetAllFormatStrings and shell
// completions present them in.
var allFormats = []Format{FormatJSON, FormatLogfmt, FormatText}

// GetAllLevelStrings returns every valid level string, for flag help text
// and shell completion.
func GetAllLevelStrings() []string {
	out := make([]string, len(allLevels))
	for i, l := range allLevels {
		out[i] = string(l)
	}

	return out
}

// GetAllFormatStrings returns every valid format string, for flag help text
// and shell completion.
func GetAllFormatStrings() []string {
	out := make([]string, len(allFormats))
	for i, f := range allFormats {
		out[i] = string(f)
	}

	return out
}

// ParseLevel parses a level string, case-insensitively, accepting "warning"
// as an alias for [LevelWarn].
func ParseLevel(level string) (Level, error) {
	switch strings.ToLower(level) {
	case "error":
		return LevelError, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "info":
		return LevelInfo, nil
	case "debug":
		return LevelDebug, nil
	}

	return "", ErrUnknownLogLevel
}

// ParseFormat parses a format string, case-insensitively.
func ParseFormat(format string) (Format, error) {
	logFmt := Format(strings.ToLower(format))
	if slices.Contains(allFormats, logFmt) {
		return logFmt, nil
	}

	return "", ErrUnknownLogFormat
}

// slogLevel converts l to its [slog.Level] equivalent.
func slogLevel(l Level) slog.Level {
	switch l {
	case LevelError:
		return slog.LevelError
	case LevelWarn:
		return slog.LevelWarn
	case LevelDebug:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// NewHandler creates a [Handler] that writes to w at the given level and
// format.
func NewHandler(w io.Writer, level Level, format Format) Handler {
	lvl := slogLevel(level)

	switch format {
	case FormatJSON:
		return slog.NewJSONHandler(w, &slog.HandlerOptions{
			AddSource: true,
			Level:     lvl,
		})
	case FormatText:
		return slog.NewTextHandler(w, &slog.HandlerOptions{
			Level: lvl,
		})
	default: // FormatLogfmt
		return slog.NewTextHandler(w, &slog.HandlerOptions{
			AddSource: true,
			Level:     lvl,
		})
	}
}

// NewHandlerFromStrings parses levelStr and formatStr and creates a
// [Handler] writing to w. It delegates to [NewHandler].
func NewHandlerFromStrings(w io.Writer, levelStr, formatStr string) (Handler, error) {
	level, err := ParseLevel(levelStr)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	format, err := ParseFormat(formatStr)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	return NewHandler(w, level, format), nil
}
