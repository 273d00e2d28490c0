package logger

// Field represents a key-value pair for structured logging
type Field struct {
	Key   string
	Value interface{}
}

// Logger defines the interface for logging
type Logger interface {
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

// NopLogger discards everything. Used in tests.
type NopLogger struct{}

func NewNopLogger() *NopLogger {
	return &NopLogger{}
}

func (nl *NopLogger) Info(msg string, fields ...Field)  {}
func (nl *NopLogger) Warn(msg string, fields ...Field)  {}
func (nl *NopLogger) Error(msg string, fields ...Field) {}
