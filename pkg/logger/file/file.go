package file

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileLogger implements LoggerInstance by writing JSON lines to a rotating
// log file.
type FileLogger struct {
	logger *logrus.Logger
	out    *lumberjack.Logger
}

// FileLoggerParams contains configuration for creating a FileLogger.
// MaxSizeMB, MaxBackups and MaxAgeDays fall back to 50, 5 and 28.
type FileLoggerParams struct {
	Path       string
	Debug      bool
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// NewFileLogger creates a logger that rotates Path when it grows past
// MaxSizeMB.
func NewFileLogger(params FileLoggerParams) *FileLogger {
	if params.MaxSizeMB <= 0 {
		params.MaxSizeMB = 50
	}
	if params.MaxBackups <= 0 {
		params.MaxBackups = 5
	}
	if params.MaxAgeDays <= 0 {
		params.MaxAgeDays = 28
	}

	out := &lumberjack.Logger{
		Filename:   params.Path,
		MaxSize:    params.MaxSizeMB,
		MaxBackups: params.MaxBackups,
		MaxAge:     params.MaxAgeDays,
		Compress:   true,
	}

	l := logrus.New()
	l.SetFormatter(&logrus.JSONFormatter{})
	l.SetOutput(out)
	l.SetLevel(logrus.InfoLevel)
	if params.Debug {
		l.SetLevel(logrus.DebugLevel)
	}

	return &FileLogger{logger: l, out: out}
}

// fields turns alternating key/value pairs into logrus fields. A trailing
// key without a value is recorded under "!BADKEY".
func fields(keyvals []any) logrus.Fields {
	f := make(logrus.Fields, len(keyvals)/2)
	for i := 0; i < len(keyvals); i += 2 {
		key := fmt.Sprint(keyvals[i])
		if i+1 >= len(keyvals) {
			f["!BADKEY"] = key
			break
		}
		val := keyvals[i+1]
		if err, ok := val.(error); ok {
			val = err.Error()
		}
		f[key] = val
	}
	return f
}

func (f *FileLogger) Log(message string, keyvals ...any) {
	f.logger.WithFields(fields(keyvals)).Print(message)
}

func (f *FileLogger) Debug(message string, keyvals ...any) {
	f.logger.WithFields(fields(keyvals)).Debug(message)
}

func (f *FileLogger) Info(message string, keyvals ...any) {
	f.logger.WithFields(fields(keyvals)).Info(message)
}

func (f *FileLogger) Warn(message string, keyvals ...any) {
	f.logger.WithFields(fields(keyvals)).Warn(message)
}

func (f *FileLogger) Error(message string, keyvals ...any) {
	f.logger.WithFields(fields(keyvals)).Error(message)
}

// Fatal writes the message, closes the file and exits.
func (f *FileLogger) Fatal(message string, keyvals ...any) {
	f.logger.WithFields(fields(keyvals)).Error(message)
	_ = f.out.Close()
	f.logger.Exit(1)
}

// Close closes the underlying log file.
func (f *FileLogger) Close() error {
	return f.out.Close()
}
