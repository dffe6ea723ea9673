package logging

import (
	"fmt"
	"os"
)

// EarlyLog covers the window before the config is parsed and the real zap
// logger exists. Plain stderr lines, no structure, no exit side effects; the
// caller decides whether a failure is fatal.
type EarlyLog struct {
	prefix string
}

func NewEarlyLog() *EarlyLog {
	return &EarlyLog{prefix: "tracking-service"}
}

func (l *EarlyLog) Error(msg string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "%s ERROR: %s\n", l.prefix, fmt.Sprintf(msg, args...))
}

func (l *EarlyLog) Warn(msg string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "%s WARN: %s\n", l.prefix, fmt.Sprintf(msg, args...))
}

func (l *EarlyLog) Info(msg string, args ...interface{}) {
	fmt.Fprintf(os.Stdout, "%s INFO: %s\n", l.prefix, fmt.Sprintf(msg, args...))
}
