package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

// testAppender writes through tb.Log so output is attributed to the running test.
type testAppender struct {
	tb testing.TB
}

// NewTestAppender returns an Appender bound to tb.
func NewTestAppender(tb testing.TB) Appender {
	return testAppender{tb: tb}
}

func (a testAppender) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	a.tb.Helper()
	line, err := formatEntry(entry, fields)
	a.tb.Log(line)
	return err
}

func (a testAppender) Sync() error {
	return nil
}
