package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"runtime"
	"strings"
	"sync"

	formatter "github.com/antonfisher/nested-logrus-formatter"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu     sync.RWMutex
	logger *logrus.Logger
)

type ctxKey string

const RequestIDKey ctxKey = "request_id"

type Fields = logrus.Fields

// Options controls the logger built by Setup. Zero values mean stderr only at info level.
type Options struct {
	Level string
	File  string
}

// Setup replaces the process logger. Anything logged before it runs goes to
// a default stderr logger.
func Setup(opts Options) *logrus.Logger {
	l := newLogger(opts)
	mu.Lock()
	logger = l
	mu.Unlock()
	return l
}

// Logger returns the process logger, creating a default one on first use.
func Logger() *logrus.Logger {
	mu.RLock()
	l := logger
	mu.RUnlock()
	if l != nil {
		return l
	}

	mu.Lock()
	defer mu.Unlock()
	if logger == nil {
		logger = newLogger(Options{})
	}
	return logger
}

func newLogger(opts Options) *logrus.Logger {
	l := logrus.New()

	level, err := logrus.ParseLevel(strings.ToLower(opts.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	l.SetFormatter(&formatter.Formatter{
		NoColors:        false,
		TimestampFormat: "02 Jan 06 - 15:04:05",
		HideKeys:        false,
		FieldsOrder:     []string{"caller", "request_id"},
	})

	writers := []io.Writer{os.Stderr}
	if opts.File != "" && os.Getenv("APP_ENV") != "test" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   opts.File,
			LocalTime:  true,
			Compress:   true,
			MaxSize:    100,
			MaxAge:     7,
			MaxBackups: 3,
		})
	}

	l.SetOutput(io.MultiWriter(writers...))
	return l
}

func Debug(fields Fields, msg string) {
	entry(fields).Debug(msg)
}

func Info(fields Fields, msg string) {
	entry(fields).Info(msg)
}

func Warn(fields Fields, msg string) {
	entry(fields).Warn(msg)
}

func Error(fields Fields, msg string) {
	entry(fields).Error(msg)
}

func Fatal(fields Fields, msg string) {
	entry(fields).Fatal(msg)
}

func WithRequestID(ctx context.Context) *logrus.Entry {
	requestID := "unknown"
	if ctx != nil {
		if id, ok := ctx.Value(RequestIDKey).(string); ok && id != "" {
			requestID = id
		}
	}
	return Logger().WithFields(Fields{"request_id": requestID, "caller": caller(2)})
}

// entry attaches the caller of the exported helper. logrus' own caller
// reporting would always name this file.
func entry(fields Fields) *logrus.Entry {
	return Logger().WithFields(orEmpty(fields)).WithField("caller", caller(3))
}

func caller(skip int) string {
	pc, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "unknown"
	}
	name := "?"
	if fn := runtime.FuncForPC(pc); fn != nil {
		s := strings.Split(fn.Name(), ".")
		name = s[len(s)-1]
	}
	return fmt.Sprintf("%s:%d %s()", path.Base(file), line, name)
}

func orEmpty(fields Fields) Fields {
	if fields == nil {
		return Fields{}
	}
	return fields
}
