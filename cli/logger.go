package cli

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/stratustools/core/logging"
)

// LoggerOption configures a bootstrap logger.
type LoggerOption func(*logrus.Logger)

// WithOutput sets the logger output.
func WithOutput(w io.Writer) LoggerOption {
	return func(l *logrus.Logger) {
		l.SetOutput(w)
	}
}

// WithLevel sets the log level.
func WithLevel(level logrus.Level) LoggerOption {
	return func(l *logrus.Logger) {
		l.SetLevel(level)
	}
}

// WithFormatter sets the log formatter.
func WithFormatter(formatter logrus.Formatter) LoggerOption {
	return func(l *logrus.Logger) {
		l.SetFormatter(formatter)
	}
}

// NewLogger creates the logger used before configuration is loaded, when
// component loggers cannot be built yet. It writes warnings to stderr.
func NewLogger(opts ...LoggerOption) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.WarnLevel)
	logger.SetFormatter(&logging.TextFormatter{Config: logging.FormatConfig{DisableTimestamp: true}})

	for _, opt := range opts {
		opt(logger)
	}
	return logger
}
