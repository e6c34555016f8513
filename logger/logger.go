package logger

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// MaxLogLines is the number of lines kept when the log file is trimmed
const MaxLogLines = 5000

// LogLevel represents the logging level
type LogLevel int

const (
	LogLevelTrace LogLevel = iota
	LogLevelDebug
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

func (l LogLevel) String() string {
	switch l {
	case LogLevelTrace:
		return "TRACE"
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLogLevel parses a level name, defaulting to info
func ParseLogLevel(s string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return LogLevelTrace
	case "DEBUG":
		return LogLevelDebug
	case "WARN", "WARNING":
		return LogLevelWarn
	case "ERROR":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// logFile is the subset of *os.File the logger needs for trimming
type logFile interface {
	io.ReadWriteSeeker
	Truncate(size int64) error
	Close() error
}

// LimitedLogger is a leveled logger that keeps its file under MaxLogLines
type LimitedLogger struct {
	mutex     sync.Mutex
	file      logFile
	lineCount int
	level     LogLevel
	maxLines  int
}

var (
	globalMu     sync.RWMutex
	globalLogger *LimitedLogger
)

// stderrLogger is used until Setup installs a file logger
var stderrLogger = &LimitedLogger{level: LogLevelInfo}

// Setup opens (or creates) the log file at path and installs it as the global logger.
// Caller must Close the returned logger.
func Setup(path string, level LogLevel) (*LimitedLogger, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	ll := NewLimitedLogger(f, level)
	SetGlobal(ll)
	return ll, nil
}

// NewLimitedLogger wraps file, counting the lines it already holds
func NewLimitedLogger(file logFile, level LogLevel) *LimitedLogger {
	ll := &LimitedLogger{
		file:     file,
		level:    level,
		maxLines: MaxLogLines,
	}
	ll.countExistingLines()
	return ll
}

// SetGlobal installs ll as the package-level logger
func SetGlobal(ll *LimitedLogger) {
	globalMu.Lock()
	globalLogger = ll
	globalMu.Unlock()
}

func current() *LimitedLogger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if globalLogger != nil {
		return globalLogger
	}
	return stderrLogger
}

// SetLevel sets the logging level
func (ll *LimitedLogger) SetLevel(level LogLevel) {
	ll.mutex.Lock()
	defer ll.mutex.Unlock()
	ll.level = level
}

// Level returns the logging level
func (ll *LimitedLogger) Level() LogLevel {
	ll.mutex.Lock()
	defer ll.mutex.Unlock()
	return ll.level
}

func (ll *LimitedLogger) enabled(level LogLevel) bool {
	return level >= ll.Level()
}

func (ll *LimitedLogger) logf(level LogLevel, format string, v ...any) {
	if !ll.enabled(level) {
		return
	}
	msg := fmt.Sprintf("%s [%s] %s\n", time.Now().Format("2006/01/02 15:04:05.000"), level, fmt.Sprintf(format, v...))
	ll.Write([]byte(msg))
}

func (ll *LimitedLogger) Debug(format string, v ...any) { ll.logf(LogLevelDebug, format, v...) }
func (ll *LimitedLogger) Info(format string, v ...any)  { ll.logf(LogLevelInfo, format, v...) }
func (ll *LimitedLogger) Warn(format string, v ...any)  { ll.logf(LogLevelWarn, format, v...) }
func (ll *LimitedLogger) Error(format string, v ...any) { ll.logf(LogLevelError, format, v...) }

// Printf adapts the logger to func(string, ...any) callbacks such as nvim.New's logf
func (ll *LimitedLogger) Printf(format string, v ...any) { ll.logf(LogLevelDebug, format, v...) }

func Debug(format string, v ...any) { current().Debug(format, v...) }
func Info(format string, v ...any)  { current().Info(format, v...) }
func Warn(format string, v ...any)  { current().Warn(format, v...) }
func Error(format string, v ...any) { current().Error(format, v...) }

// Fatal logs at error level and exits with code 1
func Fatal(format string, v ...any) {
	current().Error(format, v...)
	os.Exit(1)
}

// Printf logs at debug level through the global logger
func Printf(format string, v ...any) { current().Printf(format, v...) }

var noopFunc = func() {}

// Trace returns a function that logs the elapsed time when called.
// Usage: defer logger.Trace("session.filter")()
func Trace(name string) func() {
	ll := current()
	if !ll.enabled(LogLevelTrace) {
		return noopFunc
	}
	start := time.Now()
	return func() {
		ll.logf(LogLevelTrace, "%s: %v", name, time.Since(start))
	}
}

func (ll *LimitedLogger) countExistingLines() {
	ll.mutex.Lock()
	defer ll.mutex.Unlock()

	ll.file.Seek(0, io.SeekStart)
	scanner := bufio.NewScanner(ll.file)
	count := 0
	for scanner.Scan() {
		count++
	}
	ll.lineCount = count
	ll.file.Seek(0, io.SeekEnd)
}

// Write implements io.Writer, trimming the file once it exceeds maxLines
func (ll *LimitedLogger) Write(p []byte) (int, error) {
	ll.mutex.Lock()
	defer ll.mutex.Unlock()

	if ll.file == nil {
		return os.Stderr.Write(p)
	}

	n, err := ll.file.Write(p)
	if err != nil {
		return n, err
	}
	ll.lineCount += strings.Count(string(p), "\n")
	if ll.lineCount > ll.maxLines {
		ll.trim()
	}
	return n, nil
}

// trim keeps the last maxLines lines of the file
func (ll *LimitedLogger) trim() {
	ll.file.Seek(0, io.SeekStart)
	scanner := bufio.NewScanner(ll.file)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if len(lines) > ll.maxLines {
		lines = lines[len(lines)-ll.maxLines:]
	}

	ll.file.Truncate(0)
	ll.file.Seek(0, io.SeekStart)
	w := bufio.NewWriter(ll.file)
	for _, line := range lines {
		w.WriteString(line)
		w.WriteByte('\n')
	}
	w.Flush()
	ll.lineCount = len(lines)
}

// Close closes the underlying file
func (ll *LimitedLogger) Close() error {
	if ll.file == nil {
		return nil
	}
	return ll.file.Close()
}
