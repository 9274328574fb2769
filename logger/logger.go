package logger

// Logger is a minimal structured logging interface. Implementations accept
// alternating key/value pairs as variadic arguments, which keeps the
// interface small and easy to mock in tests.
type Logger interface {
	Error(msg string, keyvals ...any)
	Warn(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Debug(msg string, keyvals ...any)
}

// TraceIDFunc generates a correlation/trace ID string for each request/log.
// It should be cheap and safe for concurrent calls.
type TraceIDFunc func() string
