// Package log defines a small Logger interface so the rest of authd does not
// depend on any particular logging library directly.
package log

// Logger serves as an adapter interface for logger libraries so that
// packages needing to log take this interface rather than a concrete
// implementation.
type Logger interface {
	Debug(args ...interface{})
	Info(args ...interface{})
	Warn(args ...interface{})
	Error(args ...interface{})

	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}
