package logger

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	easy "github.com/t-tomalak/logrus-easy-formatter"
)

const (
	timestampFormat = "2006-01-02 15:04:05"
	plainLogFormat  = "%time% [%lvl%] %msg%\n"
)

// Logger handles operational logging to stderr, keeping stdout clean for data output
type Logger struct {
	log     *logrus.Logger
	writer  io.Writer
	success *color.Color
	quiet   bool
	debug   bool
}

// New creates a new logger that writes to stderr
func New(quiet, debug, noColor bool) *Logger {
	return NewWithWriter(os.Stderr, quiet, debug, noColor)
}

// NewWithWriter creates a logger writing to w
func NewWithWriter(w io.Writer, quiet, debug, noColor bool) *Logger {
	log := logrus.New()
	log.SetOutput(w)

	switch {
	case debug:
		log.SetLevel(logrus.DebugLevel)
	case quiet:
		log.SetLevel(logrus.ErrorLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}

	if noColor {
		log.SetFormatter(&easy.Formatter{
			TimestampFormat: timestampFormat,
			LogFormat:       plainLogFormat,
		})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:          true,
			TimestampFormat:        timestampFormat,
			DisableLevelTruncation: true,
		})
	}

	success := color.New(color.FgGreen)
	if noColor {
		success.DisableColor()
	}

	return &Logger{
		log:     log,
		writer:  w,
		success: success,
		quiet:   quiet,
		debug:   debug,
	}
}

// Infof logs an informational message
func (l *Logger) Infof(format string, args ...interface{}) {
	if !l.quiet {
		l.log.Infof(format, args...)
	}
}

// Successf logs a success message
func (l *Logger) Successf(format string, args ...interface{}) {
	if !l.quiet {
		l.log.Info(l.success.Sprint("✓ " + fmt.Sprintf(format, args...)))
	}
}

// Warningf logs a warning message
func (l *Logger) Warningf(format string, args ...interface{}) {
	if !l.quiet {
		l.log.Warnf(format, args...)
	}
}

// Errorf logs an error message (always shown, even in quiet mode)
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.log.Errorf(format, args...)
}

// Debugf logs a debug message (only shown when debug mode is enabled)
func (l *Logger) Debugf(format string, args ...interface{}) {
	if l.debug {
		l.log.Debugf(format, args...)
	}
}

// Println prints a blank line (for spacing)
func (l *Logger) Println() {
	if !l.quiet {
		_, _ = fmt.Fprintln(l.writer)
	}
}

// Progress returns the writer for unterminated progress markers.
// Quiet mode discards them.
func (l *Logger) Progress() io.Writer {
	if l.quiet {
		return io.Discard
	}
	return l.writer
}
