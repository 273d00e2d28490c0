package logger

import (
	"os"

	"github.com/rs/zerolog"
)

// ZerologLogger is the production Logger implementation.
type ZerologLogger struct {
	log zerolog.Logger
}

// NewZerologLogger creates a JSON logger tagged with the service name.
func NewZerologLogger(service string) *ZerologLogger {
	zl := zerolog.New(os.Stdout).With().
		Timestamp().
		Str("service", service).
		Logger()

	return &ZerologLogger{log: zl}
}

func (zl *ZerologLogger) Info(msg string, fields ...Field) {
	withFields(zl.log.Info(), fields).Msg(msg)
}

func (zl *ZerologLogger) Warn(msg string, fields ...Field) {
	withFields(zl.log.Warn(), fields).Msg(msg)
}

func (zl *ZerologLogger) Error(msg string, fields ...Field) {
	withFields(zl.log.Error(), fields).Msg(msg)
}

func withFields(ev *zerolog.Event, fields []Field) *zerolog.Event {
	for _, f := range fields {
		switch v := f.Value.(type) {
		case string:
			ev = ev.Str(f.Key, v)
		case error:
			ev = ev.AnErr(f.Key, v)
		case int:
			ev = ev.Int(f.Key, v)
		case int64:
			ev = ev.Int64(f.Key, v)
		default:
			ev = ev.Interface(f.Key, v)
		}
	}
	return ev
}
