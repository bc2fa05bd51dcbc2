package merge

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARNING
	ERROR
)

func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARNING:
		return "WARNING"
	default:
		return "ERROR"
	}
}

// ParseLogLevel accepts debug, info, warning (or warn) and error.
func ParseLogLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG, nil
	case "", "info":
		return INFO, nil
	case "warning", "warn":
		return WARNING, nil
	case "error":
		return ERROR, nil
	}
	return INFO, fmt.Errorf("%w: unknown log level %q", ErrInvalidOptions, s)
}

const (
	maxLogSize      = 10 * 1024 * 1024 // 10MB
	logBufferSize   = 32 * 1024        // 32KB
	logQueueSize    = 1000
	maxLogRotations = 5
)

// Logger writes leveled lines asynchronously. Messages below ERROR are
// dropped when the queue is full; errors always block until queued.
type Logger struct {
	mu     sync.Mutex
	writer *bufio.Writer
	closer io.Closer
	level  LogLevel

	msgs      chan string
	done      chan struct{}
	closeOnce sync.Once

	// sendMu guards disabled and keeps msgs open while a send is in flight.
	sendMu   sync.RWMutex
	disabled bool
}

// NewLogger starts a logger writing to w. If w is also an io.Closer it is
// closed by Close.
func NewLogger(w io.Writer, level LogLevel) *Logger {
	l := &Logger{
		writer: bufio.NewWriterSize(w, logBufferSize),
		level:  level,
		msgs:   make(chan string, logQueueSize),
		done:   make(chan struct{}),
	}
	if c, ok := w.(io.Closer); ok && w != os.Stderr && w != os.Stdout {
		l.closer = c
	}
	go l.process()
	return l
}

// NopLogger discards everything.
func NopLogger() *Logger {
	return NewLogger(io.Discard, ERROR+1)
}

// OpenLogFile opens (and rotates if necessary) a log file at path and
// returns a logger writing to it.
func OpenLogFile(path string, level LogLevel) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	rotateLogFile(path)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	l := NewLogger(file, level)
	l.enqueue(fmt.Sprintf("\n=== Log started at %s ===\n", time.Now().Format("2006-01-02 15:04:05")), true)
	return l, nil
}

// rotateLogFile rotates log files if necessary
func rotateLogFile(logPath string) {
	if fi, err := os.Stat(logPath); err == nil {
		if fi.Size() > maxLogSize {
			for i := maxLogRotations - 1; i > 0; i-- {
				oldPath := fmt.Sprintf("%s.%d", logPath, i)
				newPath := fmt.Sprintf("%s.%d", logPath, i+1)
				os.Rename(oldPath, newPath)
			}
			os.Rename(logPath, logPath+".1")
		}
	}
}

// process drains the queue into the buffered writer
func (l *Logger) process() {
	defer close(l.done)
	for msg := range l.msgs {
		l.mu.Lock()
		l.writer.WriteString(msg)
		// Flush once the queue runs dry
		if len(l.msgs) == 0 {
			l.writer.Flush()
		}
		l.mu.Unlock()
	}
}

func (l *Logger) logf(level LogLevel, format string, args ...interface{}) {
	if l == nil || level < l.level {
		return
	}
	msg := fmt.Sprintf("%s [%s] %s\n", time.Now().Format("2006-01-02 15:04:05"), level, fmt.Sprintf(format, args...))
	l.enqueue(msg, level >= ERROR)
}

func (l *Logger) enqueue(msg string, block bool) {
	l.sendMu.RLock()
	defer l.sendMu.RUnlock()
	if l.disabled {
		return
	}
	if block {
		l.msgs <- msg
		return
	}
	select {
	case l.msgs <- msg:
	default:
	}
}

func (l *Logger) Debugf(format string, args ...interface{})   { l.logf(DEBUG, format, args...) }
func (l *Logger) Infof(format string, args ...interface{})    { l.logf(INFO, format, args...) }
func (l *Logger) Warningf(format string, args ...interface{}) { l.logf(WARNING, format, args...) }
func (l *Logger) Errorf(format string, args ...interface{})   { l.logf(ERROR, format, args...) }

// Close drains pending messages, flushes, and closes the underlying file.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	var err error
	l.closeOnce.Do(func() {
		l.sendMu.Lock()
		l.disabled = true
		close(l.msgs)
		l.sendMu.Unlock()
		<-l.done

		l.mu.Lock()
		defer l.mu.Unlock()
		if ferr := l.writer.Flush(); ferr != nil {
			err = fmt.Errorf("failed to flush log buffer: %w", ferr)
			return
		}
		if l.closer != nil {
			if cerr := l.closer.Close(); cerr != nil {
				err = fmt.Errorf("failed to close log file: %w", cerr)
			}
		}
	})
	return err
}
