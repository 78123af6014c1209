package logging

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Zerolog adapts a zerolog logger.
func Zerolog(l zerolog.Logger) Logger {
	return zerologLogger{l: l}
}

type zerologLogger struct {
	l zerolog.Logger
}

func (z zerologLogger) Info(msg string, fields ...Field)  { withFields(z.l.Info(), fields).Msg(msg) }
func (z zerologLogger) Error(msg string, fields ...Field) { withFields(z.l.Error(), fields).Msg(msg) }
func (z zerologLogger) Debug(msg string, fields ...Field) { withFields(z.l.Debug(), fields).Msg(msg) }
func (z zerologLogger) Warn(msg string, fields ...Field)  { withFields(z.l.Warn(), fields).Msg(msg) }

func withFields(e *zerolog.Event, fields []Field) *zerolog.Event {
	for _, f := range fields {
		switch v := f.Value.(type) {
		case string:
			e = e.Str(f.Key, v)
		case int:
			e = e.Int(f.Key, v)
		case int64:
			e = e.Int64(f.Key, v)
		case bool:
			e = e.Bool(f.Key, v)
		case time.Duration:
			e = e.Dur(f.Key, v)
		case error:
			e = e.AnErr(f.Key, v)
		case fmt.Stringer:
			e = e.Stringer(f.Key, v)
		default:
			e = e.Interface(f.Key, v)
		}
	}
	return e
}
