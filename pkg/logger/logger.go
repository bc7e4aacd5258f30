package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// LogLevel represents the logging level
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

// Fields is an alias of logrus.Fields so callers do not import logrus directly.
type Fields = logrus.Fields

var (
	currentLevel = INFO
	base         *logrus.Logger
)

func init() {
	base = logrus.New()
	base.SetOutput(os.Stdout)
	base.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
		CallerPrettyfier: callerFile,
	})
	base.SetReportCaller(true)
	base.AddHook(callerHook{})
	SetLogLevel(INFO)
}

func callerFile(f *runtime.Frame) (string, string) {
	return "", fmt.Sprintf("%s:%d", filepath.Base(f.File), f.Line)
}

// Options configures the global logger output.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // json (default) or text
	// File enables rotating file output when non-empty.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	// Stdout keeps writing to stdout when File is set.
	Stdout bool
}

// Configure applies opts to the global logger. LOG_LEVEL overrides opts.Level.
func Configure(opts Options) {
	level := opts.Level
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		level = env
	}
	SetLogLevelFromString(level)

	if strings.EqualFold(opts.Format, "text") {
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339Nano, CallerPrettyfier: callerFile})
	}

	if opts.File == "" {
		return
	}
	rotating := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
	}
	if opts.Stdout {
		base.SetOutput(io.MultiWriter(os.Stdout, rotating))
		return
	}
	base.SetOutput(rotating)
}

// SetOutput redirects log output, mostly used by tests.
func SetOutput(w io.Writer) {
	base.SetOutput(w)
}

// SetLogLevel sets the global log level
func SetLogLevel(level LogLevel) {
	currentLevel = level
	switch level {
	case DEBUG:
		base.SetLevel(logrus.DebugLevel)
	case WARN:
		base.SetLevel(logrus.WarnLevel)
	case ERROR:
		base.SetLevel(logrus.ErrorLevel)
	default:
		base.SetLevel(logrus.InfoLevel)
	}
}

// SetLogLevelFromString sets the global log level from a string
func SetLogLevelFromString(levelStr string) {
	switch strings.ToUpper(levelStr) {
	case "DEBUG":
		SetLogLevel(DEBUG)
	case "WARN", "WARNING":
		SetLogLevel(WARN)
	case "ERROR":
		SetLogLevel(ERROR)
	default:
		SetLogLevel(INFO)
	}
}

// GetLogLevel returns the current log level
func GetLogLevel() LogLevel {
	return currentLevel
}

// WithFields returns an entry carrying structured context.
func WithFields(fields Fields) *logrus.Entry {
	return base.WithFields(fields)
}

// WithGateway is a shorthand for WithFields with the gateway id.
func WithGateway(gateway string) *logrus.Entry {
	return base.WithField("gateway", gateway)
}

// Debug logs a debug message if debug level is enabled
func Debug(format string, v ...interface{}) {
	base.Debugf(format, v...)
}

// Info logs an info message if info level is enabled
func Info(format string, v ...interface{}) {
	base.Infof(format, v...)
}

// Warn logs a warning message if warn level is enabled
func Warn(format string, v ...interface{}) {
	base.Warnf(format, v...)
}

// Error logs an error message if error level is enabled
func Error(format string, v ...interface{}) {
	base.Errorf(format, v...)
}
