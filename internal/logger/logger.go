package logger

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

type Level = logrus.Level

const (
	LevelDebug = logrus.DebugLevel
	LevelInfo  = logrus.InfoLevel
	LevelWarn  = logrus.WarnLevel
	LevelError = logrus.ErrorLevel
)

var base = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&textFormatter{})
	l.SetLevel(LevelInfo)
	return l
}

// SetLevel sets the minimum level that gets written.
func SetLevel(level Level) {
	base.SetLevel(level)
}

// ParseLevel maps "debug", "info", "warn", "error" to a Level, defaulting to info.
func ParseLevel(s string) Level {
	lvl, err := logrus.ParseLevel(strings.TrimSpace(s))
	if err != nil {
		return LevelInfo
	}
	return lvl
}

// SetOutput redirects log output, mostly for tests.
func SetOutput(w io.Writer) {
	base.SetOutput(w)
}

// SetFormat switches between "text" and "json" output.
func SetFormat(format string) {
	if strings.EqualFold(format, "json") {
		base.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime: "ts",
				logrus.FieldKeyMsg:  "message",
			},
		})
		return
	}
	base.SetFormatter(&textFormatter{})
}

// Init applies level and format in one call; service is attached to every entry.
func Init(service, level, format string) {
	SetLevel(ParseLevel(level))
	SetFormat(format)
	base.AddHook(serviceHook(service))
}

func Debug(ctx context.Context, msg string, keyvals ...any) {
	entry(ctx, keyvals).Debug(msg)
}

func Info(ctx context.Context, msg string, keyvals ...any) {
	entry(ctx, keyvals).Info(msg)
}

func Warn(ctx context.Context, msg string, keyvals ...any) {
	entry(ctx, keyvals).Warn(msg)
}

// Error logs msg with err appended as "msg: err". A nil err logs msg alone.
func Error(ctx context.Context, err error, msg string, keyvals ...any) {
	if err != nil {
		msg = msg + ": " + err.Error()
	}
	entry(ctx, keyvals).Error(msg)
}

func entry(ctx context.Context, keyvals []any) *logrus.Entry {
	fields := make(logrus.Fields, len(keyvals)/2+1)
	for i := 0; i < len(keyvals); i += 2 {
		key := fmt.Sprint(keyvals[i])
		if i+1 < len(keyvals) {
			fields[key] = keyvals[i+1]
		} else {
			fields[key] = "(MISSING)"
		}
	}
	if ctx != nil {
		if reqID := middleware.GetReqID(ctx); reqID != "" {
			fields["request_id"] = reqID
		}
	}
	return base.WithFields(fields)
}

type serviceHook string

func (h serviceHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h serviceHook) Fire(e *logrus.Entry) error {
	if h != "" {
		e.Data["service"] = string(h)
	}
	return nil
}

// textFormatter renders "2006/01/02 15:04:05 [INFO] msg key=value ...".
type textFormatter struct{}

func (f *textFormatter) Format(e *logrus.Entry) ([]byte, error) {
	var b bytes.Buffer
	b.WriteString(e.Time.Format("2006/01/02 15:04:05"))
	b.WriteString(" [")
	b.WriteString(strings.ToUpper(levelName(e.Level)))
	b.WriteString("] ")
	b.WriteString(e.Message)

	keys := make([]string, 0, len(e.Data))
	for k := range e.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, e.Data[k])
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}

func levelName(l logrus.Level) string {
	if l == logrus.WarnLevel {
		return "warn"
	}
	return l.String()
}
