package observability

import (
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
)

// StandardLogger is a logger implementation built directly on the
// standard log package. It writes to stderr so it never collides with
// a consumer that writes cache payloads to stdout.
type StandardLogger struct {
	prefix string
	level  LogLevel
	logger *log.Logger
	fields map[string]interface{}
}

// NewLogger creates a new StandardLogger with the given prefix, logging
// at LogLevelInfo and above.
func NewLogger(prefix string) Logger {
	return &StandardLogger{
		prefix: prefix,
		level:  LogLevelInfo,
		logger: log.New(os.Stderr, "", 0),
	}
}

// NewLoggerWithLevel creates a StandardLogger at an explicit level.
func NewLoggerWithLevel(prefix string, level LogLevel) Logger {
	return &StandardLogger{
		prefix: prefix,
		level:  level,
		logger: log.New(os.Stderr, "", 0),
	}
}

func (l *StandardLogger) Debug(msg string, fields map[string]interface{}) {
	if l.levelEnabled(LogLevelDebug) {
		l.log(LogLevelDebug, msg, fields)
	}
}

func (l *StandardLogger) Info(msg string, fields map[string]interface{}) {
	if l.levelEnabled(LogLevelInfo) {
		l.log(LogLevelInfo, msg, fields)
	}
}

func (l *StandardLogger) Warn(msg string, fields map[string]interface{}) {
	if l.levelEnabled(LogLevelWarn) {
		l.log(LogLevelWarn, msg, fields)
	}
}

func (l *StandardLogger) Error(msg string, fields map[string]interface{}) {
	l.log(LogLevelError, msg, fields)
}

// WithPrefix returns a new logger scoped under prefix, inheriting level
// and any already-bound fields.
func (l *StandardLogger) WithPrefix(prefix string) Logger {
	merged := prefix
	if l.prefix != "" {
		merged = l.prefix + "." + prefix
	}
	return &StandardLogger{
		prefix: merged,
		level:  l.level,
		logger: l.logger,
		fields: l.fields,
	}
}

func (l *StandardLogger) levelEnabled(level LogLevel) bool {
	rank := map[LogLevel]int{
		LogLevelDebug: 0,
		LogLevelInfo:  1,
		LogLevelWarn:  2,
		LogLevelError: 3,
		LogLevelFatal: 4,
	}
	return rank[level] >= rank[l.level]
}

func (l *StandardLogger) log(level LogLevel, msg string, fields map[string]interface{}) {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] ", level)
	if l.prefix != "" {
		fmt.Fprintf(&b, "%s: ", l.prefix)
	}
	b.WriteString(msg)

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, fields[k])
	}

	l.logger.Println(b.String())
}
