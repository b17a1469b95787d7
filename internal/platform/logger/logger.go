package logger

import (
	"io"
	"os"
	"strings"

	alog "github.com/apex/log"
	"github.com/apex/log/handlers/discard"
	"github.com/apex/log/handlers/json"
	"github.com/apex/log/handlers/text"
)

type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return Debug
	case "info", "":
		return Info
	case "warn", "warning":
		return Warn
	case "error":
		return Error
	default:
		return Info
	}
}

func (l Level) String() string {
	switch l {
	case Debug:
		return "debug"
	case Warn:
		return "warn"
	case Error:
		return "error"
	default:
		return "info"
	}
}

func (l Level) apex() alog.Level {
	switch l {
	case Debug:
		return alog.DebugLevel
	case Warn:
		return alog.WarnLevel
	case Error:
		return alog.ErrorLevel
	default:
		return alog.InfoLevel
	}
}

type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

func ParseFormat(s string) Format {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON
	default:
		return FormatText
	}
}

type Logger interface {
	With(fields map[string]any) Logger

	Debug(msg string, fields map[string]any)
	Info(msg string, fields map[string]any)
	Warn(msg string, fields map[string]any)
	Error(msg string, fields map[string]any)
}

type Options struct {
	Level  Level
	Format Format
	App    string

	// Writer es opcional; por defecto stdout. Útil en tests.
	Writer io.Writer
}

// apexLogger adapta apex/log a la interfaz Logger (campos como map, sin builder).
type apexLogger struct {
	entry *alog.Entry
}

func New(opts Options) Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}

	var h alog.Handler
	switch opts.Format {
	case FormatJSON:
		h = json.New(w)
	default:
		h = text.New(w)
	}

	base := &alog.Logger{Handler: h, Level: opts.Level.apex()}

	fields := alog.Fields{}
	if app := strings.TrimSpace(opts.App); app != "" {
		fields["app"] = app
	}
	return &apexLogger{entry: base.WithFields(fields)}
}

// NewFromEnv crea logger desde env:
// - LOG_LEVEL=debug|info|warn|error (default info)
// - LOG_FORMAT=text|json (default text)
// - APP_NAME=pettrace (opcional)
func NewFromEnv() Logger {
	return New(Options{
		Level:  ParseLevel(os.Getenv("LOG_LEVEL")),
		Format: ParseFormat(os.Getenv("LOG_FORMAT")),
		App:    os.Getenv("APP_NAME"),
	})
}

// Nop descarta todo. Se usa cuando un servicio no recibe logger.
func Nop() Logger {
	return &apexLogger{entry: alog.NewEntry(&alog.Logger{Handler: discard.New(), Level: alog.FatalLevel})}
}

func (l *apexLogger) With(fields map[string]any) Logger {
	if len(fields) == 0 {
		return l
	}
	return &apexLogger{entry: l.entry.WithFields(clean(fields))}
}

func (l *apexLogger) Debug(msg string, fields map[string]any) {
	l.entry.WithFields(clean(fields)).Debug(msg)
}

func (l *apexLogger) Info(msg string, fields map[string]any) {
	l.entry.WithFields(clean(fields)).Info(msg)
}

func (l *apexLogger) Warn(msg string, fields map[string]any) {
	l.entry.WithFields(clean(fields)).Warn(msg)
}

func (l *apexLogger) Error(msg string, fields map[string]any) {
	l.entry.WithFields(clean(fields)).Error(msg)
}

// clean descarta keys vacías; apex no las filtra.
func clean(fields map[string]any) alog.Fields {
	out := alog.Fields{}
	for k, v := range fields {
		if strings.TrimSpace(k) == "" {
			continue
		}
		out[k] = v
	}
	return out
}
