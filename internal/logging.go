package internal

// Leveled logging shared by the codecs and the file engine.

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

type LogLevel int

const (
	// error levels that should almost always be printed
	LevelFatal LogLevel = iota // unrecoverable, but never exits the process here
	LevelError                 // an operation failed and an error was returned

	// debugging levels, okay to disable
	LevelWarn // request honoured only partly, e.g. compression on an engine without filters
	LevelInfo // open, create, flush

	// Production code by default only shows warnings and above.
	LogLevelDefault = LevelWarn

	// min, max levels for setting print level
	LevelMin = LevelFatal
	LevelMax = LevelInfo
)

var levelToPrefix = []string{
	"FATAL ",
	"ERROR ",
	"WARN ",
	"INFO ",
}

type Logger struct {
	mu       sync.Mutex
	logLevel LogLevel
	logger   *log.Logger
}

func NewLogger() *Logger {
	return &Logger{logLevel: LogLevelDefault, logger: log.New(os.Stderr, "", log.LstdFlags)}
}

// ParseLogLevel maps a level name (fatal, error, warn, info) onto a level.
func ParseLogLevel(name string) (LogLevel, error) {
	for i, p := range levelToPrefix {
		if strings.EqualFold(strings.TrimSpace(p), strings.TrimSpace(name)) {
			return LogLevel(i), nil
		}
	}
	return LogLevelDefault, fmt.Errorf("unknown log level %q", name)
}

func (l *Logger) LogLevel() LogLevel {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.logLevel
}

// SetLogLevel returns the old level. Out of range levels are clamped.
func (l *Logger) SetLogLevel(level LogLevel) LogLevel {
	level = min(max(level, LevelMin), LevelMax)
	l.mu.Lock()
	defer l.mu.Unlock()
	old := l.logLevel
	l.logLevel = level
	return old
}

// SetOutput redirects the logger, e.g. to a buffer in tests.
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger.SetOutput(w)
}

func (l *Logger) output(level LogLevel, s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level > l.logLevel {
		return
	}
	l.logger.Output(3, levelToPrefix[level]+s)
}

func (l *Logger) Info(v ...any)                 { l.output(LevelInfo, fmt.Sprintln(v...)) }
func (l *Logger) Infof(format string, v ...any) { l.output(LevelInfo, fmt.Sprintf(format, v...)) }

func (l *Logger) Warn(v ...any)                 { l.output(LevelWarn, fmt.Sprintln(v...)) }
func (l *Logger) Warnf(format string, v ...any) { l.output(LevelWarn, fmt.Sprintf(format, v...)) }

func (l *Logger) Error(v ...any)                 { l.output(LevelError, fmt.Sprintln(v...)) }
func (l *Logger) Errorf(format string, v ...any) { l.output(LevelError, fmt.Sprintf(format, v...)) }

func (l *Logger) Fatal(v ...any)                 { l.output(LevelFatal, fmt.Sprintln(v...)) }
func (l *Logger) Fatalf(format string, v ...any) { l.output(LevelFatal, fmt.Sprintf(format, v...)) }
