// Package cexlog is a thin wrapper over the standard log package, in the
// terse log.Printf style the teacher repo's pipeline phases use
// (log.Printf("C1: starting scan in repo %s", in.Repo)). It exists so tests
// can silence engine logging without a global log.SetOutput call racing
// across parallel tests.
package cexlog

import (
	"io"
	"log"
	"os"
)

// Logger is the minimal surface the engine needs.
type Logger interface {
	Infof(format string, args ...any)
	Errorf(format string, args ...any)
}

// stdLogger writes through a *log.Logger, prefixing level markers.
type stdLogger struct {
	l *log.Logger
}

// New returns a Logger writing to w with the standard date/time prefix.
func New(w io.Writer) Logger {
	return &stdLogger{l: log.New(w, "", log.LstdFlags)}
}

// Default returns a Logger writing to os.Stderr.
func Default() Logger {
	return New(os.Stderr)
}

// Discard returns a Logger that drops everything, for quiet tests.
func Discard() Logger {
	return New(io.Discard)
}

func (s *stdLogger) Infof(format string, args ...any) {
	s.l.Printf("INFO "+format, args...)
}

func (s *stdLogger) Errorf(format string, args ...any) {
	s.l.Printf("ERROR "+format, args...)
}
