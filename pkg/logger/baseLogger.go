package logger

import (
	"fmt"
	"io"
	"sync"
)

// BaseLogger пишет в произвольный writer; используется в тестах и утилитах,
// где zap не нужен.
type BaseLogger struct {
	mu     sync.Mutex
	prefix string
	writer io.Writer
}

func NewBaseLogger(writer io.Writer, prefix string) *BaseLogger {
	return &BaseLogger{
		writer: writer,
		prefix: prefix,
	}
}

func (l *BaseLogger) write(level, format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.writer == nil {
		return
	}
	message := fmt.Sprintf(l.prefix+" "+level+" "+format, v...)
	fmt.Fprintln(l.writer, message)
}

func (l *BaseLogger) Log(format string, v ...interface{}) {
	l.write("INFO", format, v...)
}

func (l *BaseLogger) Warn(format string, v ...interface{}) {
	l.write("WARN", format, v...)
}

func (l *BaseLogger) Error(format string, v ...interface{}) {
	l.write("ERROR", format, v...)
}

func (l *BaseLogger) WithPrefix(extraPrefix string) *BaseLogger {
	return &BaseLogger{
		writer: l.writer,
		prefix: l.prefix + " " + extraPrefix,
	}
}

func (l *BaseLogger) SetPrefix(prefix string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prefix = prefix
}
