package log

// NoopLogger drops every entry. Managers built without WithLogger use it.
type NoopLogger struct{}

var _ Logger = NoopLogger{}

// NewNoopLogger returns a logger that writes nothing.
func NewNoopLogger() *NoopLogger { return &NoopLogger{} }

func (NoopLogger) Debug(string, ...Field) {}
func (NoopLogger) Info(string, ...Field)  {}
func (NoopLogger) Warn(string, ...Field)  {}
func (NoopLogger) Error(string, ...Field) {}
