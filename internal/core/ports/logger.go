package ports

import "io"

// Logger is the logging abstraction used across the engine.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(err error)

	// SetOutput redirects log output; nil restores stderr.
	SetOutput(w io.Writer)
	// SetJSON switches between pretty and JSON output.
	SetJSON(enable bool)
	// SetDebug enables or disables debug-level records.
	SetDebug(enable bool)
}
