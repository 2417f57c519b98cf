// Package logging writes the shell's log file.
//
// Entries go through a logrus logger whose formatter renders
//
//	[YYYY.MM.DD HH:MM:SS virsh PID] LEVEL message
//
// and drops entries below the configured debug level.
package logging

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Level is a shell debug level. Messages at or above the configured level
// are written.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelNotice
	LevelWarning
	LevelError

	// DefaultLevel is used when neither flags nor environment set one.
	DefaultLevel = LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelNotice:
		return "NOTICE"
	case LevelWarning:
		return "WARNING"
	default:
		return "ERROR"
	}
}

// ParseLevel parses a numeric level between 0 and 4.
func ParseLevel(s string) (Level, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < int(LevelDebug) || n > int(LevelError) {
		return DefaultLevel, fmt.Errorf("debug level must be between %d and %d, got %q", LevelDebug, LevelError, s)
	}
	return Level(n), nil
}

// noticeField marks an Info entry as NOTICE.
const noticeField = "notice"

// Notice logs at NOTICE, which logrus has no level for.
func Notice(l log.FieldLogger, args ...any) {
	l.WithField(noticeField, true).Info(args...)
}

// Noticef is Notice with formatting.
func Noticef(l log.FieldLogger, format string, args ...any) {
	l.WithField(noticeField, true).Infof(format, args...)
}

func levelOf(e *log.Entry) Level {
	switch e.Level {
	case log.TraceLevel, log.DebugLevel:
		return LevelDebug
	case log.InfoLevel:
		if _, ok := e.Data[noticeField]; ok {
			return LevelNotice
		}
		return LevelInfo
	case log.WarnLevel:
		return LevelWarning
	default:
		return LevelError
	}
}

// Formatter renders entries in the log file format.
type Formatter struct {
	Program string
	PID     int
	Level   Level
}

// Format implements logrus.Formatter.
func (f *Formatter) Format(e *log.Entry) ([]byte, error) {
	lvl := levelOf(e)
	if lvl < f.Level {
		return nil, nil
	}

	var b bytes.Buffer
	fmt.Fprintf(&b, "[%s %s %d] %s %s", e.Time.Format("2006.01.02 15:04:05"), f.Program, f.PID, lvl, e.Message)

	keys := make([]string, 0, len(e.Data))
	for k := range e.Data {
		if k != noticeField {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, e.Data[k])
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Setup configures logger to write entries at or above level to the file at
// path. An empty path discards everything. The returned Closer closes the
// file. When the file cannot be opened logging is disabled and the error is
// returned for the caller to report.
func Setup(logger *log.Logger, path string, level Level) (io.Closer, error) {
	logger.SetFormatter(&Formatter{Program: "virsh", PID: os.Getpid(), Level: level})
	logger.SetLevel(log.DebugLevel)
	logger.SetOutput(io.Discard)

	if path == "" {
		return nopCloser{}, nil
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE|os.O_SYNC, 0644)
	if err != nil {
		return nopCloser{}, fmt.Errorf("failed to open the log file: %w", err)
	}
	logger.SetOutput(f)
	return f, nil
}
