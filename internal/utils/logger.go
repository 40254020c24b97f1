package utils

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// Level orders log messages by severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	}
	return "LEVEL(" + strconv.Itoa(int(l)) + ")"
}

// Logger writes leveled messages to stderr. Debug messages are dropped
// unless verbose mode is on, and carry a clock timestamp when shown.
type Logger struct {
	mu      sync.RWMutex
	verbose bool
	out     io.Writer
}

var (
	std     *Logger
	stdOnce sync.Once
)

// GetLogger returns the process-wide logger.
func GetLogger() *Logger {
	stdOnce.Do(func() { std = &Logger{} })
	return std
}

// SetVerboseMode toggles debug output on the process-wide logger.
func SetVerboseMode(verbose bool) {
	GetLogger().SetVerbose(verbose)
}

func (l *Logger) SetVerbose(verbose bool) {
	l.mu.Lock()
	l.verbose = verbose
	l.mu.Unlock()
}

func (l *Logger) IsVerbose() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.verbose
}

// SetOutput redirects log output. A nil writer restores os.Stderr.
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	l.out = w
	l.mu.Unlock()
}

// Log writes one message at level. Without args msg is printed as is, so a
// literal "%" needs no escaping.
func (l *Logger) Log(level Level, msg string, args ...any) {
	l.mu.RLock()
	verbose, out := l.verbose, l.out
	l.mu.RUnlock()

	if level == LevelDebug && !verbose {
		return
	}
	if out == nil {
		out = os.Stderr
	}
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}

	if level == LevelDebug {
		_, _ = fmt.Fprintf(out, "%s [%s] %s\n", time.Now().Format(time.TimeOnly), level, msg)
		return
	}
	_, _ = fmt.Fprintf(out, "[%s] %s\n", level, msg)
}

func (l *Logger) Debug(msg string, args ...any) { l.Log(LevelDebug, msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.Log(LevelInfo, msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.Log(LevelWarn, msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.Log(LevelError, msg, args...) }

func Debugf(format string, args ...any) { GetLogger().Log(LevelDebug, format, args...) }
func Infof(format string, args ...any)  { GetLogger().Log(LevelInfo, format, args...) }
func Warnf(format string, args ...any)  { GetLogger().Log(LevelWarn, format, args...) }
func Errorf(format string, args ...any) { GetLogger().Log(LevelError, format, args...) }

// BackgroundLogger is the file log of a long-running command such as serve.
// It is safe for concurrent use; once closed or disabled it discards writes.
type BackgroundLogger struct {
	mu     sync.Mutex
	logger *log.Logger
	file   *os.File
	path   string
}

// DefaultBackgroundLogPath is taskmaster-<pid>.log in the temp directory.
func DefaultBackgroundLogPath() string {
	return filepath.Join(os.TempDir(), fmt.Sprintf("taskmaster-%d.log", os.Getpid()))
}

// NewBackgroundLogger opens the log at DefaultBackgroundLogPath.
func NewBackgroundLogger() (*BackgroundLogger, error) {
	return NewBackgroundLoggerWithPath(DefaultBackgroundLogPath())
}

// NewBackgroundLoggerWithEnabled honours logging.background_enabled: when
// enabled is false no file is created and every write is discarded.
func NewBackgroundLoggerWithEnabled(enabled bool) (*BackgroundLogger, error) {
	if !enabled {
		return &BackgroundLogger{}, nil
	}
	return NewBackgroundLogger()
}

// NewBackgroundLoggerWithPath appends to the file at path. If it cannot be
// opened the returned logger is usable but disabled, alongside the error.
func NewBackgroundLoggerWithPath(path string) (*BackgroundLogger, error) {
	bl := &BackgroundLogger{path: path}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return bl, fmt.Errorf("failed to open background log: %w", err)
	}
	bl.file = f
	bl.logger = log.New(f, "", log.LstdFlags)
	return bl, nil
}

func (bl *BackgroundLogger) output(s string) {
	bl.mu.Lock()
	defer bl.mu.Unlock()
	if bl.logger != nil {
		_ = bl.logger.Output(3, s)
	}
}

func (bl *BackgroundLogger) Printf(format string, args ...any) { bl.output(fmt.Sprintf(format, args...)) }
func (bl *BackgroundLogger) Print(args ...any)                 { bl.output(fmt.Sprint(args...)) }
func (bl *BackgroundLogger) Println(args ...any)               { bl.output(fmt.Sprintln(args...)) }

// Close closes the file. Later writes are discarded.
func (bl *BackgroundLogger) Close() {
	bl.mu.Lock()
	defer bl.mu.Unlock()
	if bl.file != nil {
		_ = bl.file.Close()
		bl.file = nil
	}
	bl.logger = nil
}

// GetLogPath returns the file path, or "" when logging was disabled by config.
func (bl *BackgroundLogger) GetLogPath() string {
	return bl.path
}

func (bl *BackgroundLogger) IsEnabled() bool {
	bl.mu.Lock()
	defer bl.mu.Unlock()
	return bl.logger != nil
}
