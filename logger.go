package querycache

// Fields is a minimal structured field map for logs.
type Fields map[string]any

// Logger is a tiny leveled logger seam. Adapters for zap, logrus and slog
// live under log/. A nil Logger in Options disables logging entirely;
// degraded cache paths (backend errors, corrupt entries) log at Warn.
type Logger interface {
	Debug(msg string, f Fields)
	Info(msg string, f Fields)
	Warn(msg string, f Fields)
	Error(msg string, f Fields)
}

type NopLogger struct{}

func (NopLogger) Debug(string, Fields) {}
func (NopLogger) Info(string, Fields)  {}
func (NopLogger) Warn(string, Fields)  {}
func (NopLogger) Error(string, Fields) {}
