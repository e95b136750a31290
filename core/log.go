package core

// Logger logs messages with optional context args.
// Implementations may give special meaning to certain arg types
// (eg. attaching the logged-in identity to an error report).
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
