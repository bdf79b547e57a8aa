// Package logutil provides the minimal leveled logger contract the engine
// injects into Options, in the spirit of the teacher's utils.Err/utils.Panic
// helpers (file:line prefixed, never hidden inside library control flow).
package logutil

import (
	"fmt"
	"log"
	"os"
)

// Logger is the capability object injected through Options. Callers may
// substitute any implementation; the default just wraps the standard
// library logger the way the teacher wraps fmt.Printf.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type stdLogger struct {
	*log.Logger
}

// Default returns a Logger writing to stderr with file:line context.
func Default() Logger {
	return &stdLogger{log.New(os.Stderr, "", log.Ldate|log.Ltime|log.Lshortfile)}
}

func (s *stdLogger) Infof(format string, args ...interface{}) {
	s.Output(2, "INFO  "+fmt.Sprintf(format, args...))
}

func (s *stdLogger) Warnf(format string, args ...interface{}) {
	s.Output(2, "WARN  "+fmt.Sprintf(format, args...))
}

func (s *stdLogger) Errorf(format string, args ...interface{}) {
	s.Output(2, "ERROR "+fmt.Sprintf(format, args...))
}

// Noop discards every message; useful in tests.
func Noop() Logger { return noopLogger{} }

type noopLogger struct{}

func (noopLogger) Infof(string, ...interface{})  {}
func (noopLogger) Warnf(string, ...interface{})  {}
func (noopLogger) Errorf(string, ...interface{}) {}
