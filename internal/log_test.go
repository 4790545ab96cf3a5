package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLogLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"ERROR":   LogLevelError,
		"warn":    LogLevelWarn,
		"":        LogLevelInfo,
		"bogus":   LogLevelInfo,
		" debug ": LogLevelDebug,
		"TRACE":   LogLevelTrace,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLogLevel(in), "input %q", in)
	}
}

func TestLoggerLevels(t *testing.T) {
	l := NewLogger(LogLevelWarn)
	assert.Equal(t, LogLevelWarn, l.GetLevel())
	assert.Equal(t, LogLevelWarn, l.With("run", "abc").GetLevel())

	nop := NewNopLogger()
	assert.NotPanics(t, func() {
		nop.Info("dimension %d", 1)
		nop.Trace("ignored")
	})
}
