package logger

import (
	"fmt"

	phlog "github.com/oarkflow/log"
)

// PhusluLogger wraps the phuslu-style phlog package
type PhusluLogger struct{}

func NewPhusluLogger() *PhusluLogger { return &PhusluLogger{} }

func (p *PhusluLogger) Debug(msg string, keyvals ...any) {
	emit(phlog.Debug(), msg, keyvals...)
}

func (p *PhusluLogger) Info(msg string, keyvals ...any) {
	emit(phlog.Info(), msg, keyvals...)
}

func (p *PhusluLogger) Warn(msg string, keyvals ...any) {
	emit(phlog.Warn(), msg, keyvals...)
}

func (p *PhusluLogger) Error(msg string, keyvals ...any) {
	emit(phlog.Error(), msg, keyvals...)
}

func emit(e *phlog.Entry, msg string, keyvals ...any) {
	for i := 0; i < len(keyvals)-1; i += 2 {
		ks := fmt.Sprint(keyvals[i])
		switch vv := keyvals[i+1].(type) {
		case string:
			e = e.Str(ks, vv)
		case bool:
			e = e.Bool(ks, vv)
		case int:
			e = e.Int(ks, vv)
		default:
			e = e.Any(ks, vv)
		}
	}
	e.Msg(msg)
}
