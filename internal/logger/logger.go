package logger

import (
	"fmt"
	"log"
	"os"
	"strings"
)

type LogLevel int

const (
	LogLevelNone LogLevel = iota
	LogLevelError
	LogLevelWarning
	LogLevelInfo
	LogLevelDebug
)

// ParseLevel accepts either the numeric form (0-4) or a level name.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "0", "none", "off":
		return LogLevelNone, nil
	case "1", "error":
		return LogLevelError, nil
	case "2", "warn", "warning":
		return LogLevelWarning, nil
	case "3", "info", "":
		return LogLevelInfo, nil
	case "4", "debug":
		return LogLevelDebug, nil
	}
	return LogLevelInfo, fmt.Errorf("unknown log level: %q", s)
}

type Logger struct {
	logger *log.Logger
	level  LogLevel
	tag    string
}

func NewLogger(logger *log.Logger, level LogLevel) *Logger {
	return &Logger{
		logger: logger,
		level:  level,
		tag:    "",
	}
}

// NewStdoutLogger picks the output format the way the service is run: minimal
// under systemd, timestamped when interactive.
func NewStdoutLogger(level LogLevel) *Logger {
	var std *log.Logger
	if os.Getenv("INVOCATION_ID") != "" {
		std = log.New(os.Stdout, "", 0)
	} else {
		std = log.New(os.Stdout, "", log.LstdFlags|log.Lmicroseconds|log.Lmsgprefix)
	}
	return NewLogger(std, level)
}

// WithTag creates a new logger with a tag prefix
func (l *Logger) WithTag(tag string) *Logger {
	return &Logger{
		logger: l.logger,
		level:  l.level,
		tag:    tag,
	}
}

// Level reports the configured level.
func (l *Logger) Level() LogLevel {
	return l.level
}

func (l *Logger) formatMessage(level string, format string) string {
	if l.tag != "" {
		if level != "" {
			return "[" + l.tag + "] " + level + " " + format
		}
		return "[" + l.tag + "] " + format
	}
	if level != "" {
		return level + " " + format
	}
	return format
}

func (l *Logger) Debugf(format string, v ...interface{}) {
	if l.level >= LogLevelDebug {
		l.logger.Printf(l.formatMessage("DEBUG:", format), v...)
	}
}

func (l *Logger) Infof(format string, v ...interface{}) {
	if l.level >= LogLevelInfo {
		l.logger.Printf(l.formatMessage("", format), v...)
	}
}

// Printf is an alias for Infof for compatibility
func (l *Logger) Printf(format string, v ...interface{}) {
	l.Infof(format, v...)
}

func (l *Logger) Warnf(format string, v ...interface{}) {
	if l.level >= LogLevelWarning {
		l.logger.Printf(l.formatMessage("WARN:", format), v...)
	}
}

func (l *Logger) Errorf(format string, v ...interface{}) {
	if l.level >= LogLevelError {
		l.logger.Printf(l.formatMessage("ERROR:", format), v...)
	}
}

func (l *Logger) Fatalf(format string, v ...interface{}) {
	l.logger.Fatalf(l.formatMessage("FATAL:", format), v...)
}
