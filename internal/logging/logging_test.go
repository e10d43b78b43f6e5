package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		value    string
		expected LogLevel
	}{
		{name: "Debug", value: "debug", expected: LevelDebug},
		{name: "Info", value: "info", expected: LevelInfo},
		{name: "Warn", value: "warn", expected: LevelWarn},
		{name: "Error", value: "error", expected: LevelError},
		{name: "Case insensitive", value: "DEBUG", expected: LevelDebug},
		{name: "Warning alias", value: "warning", expected: LevelWarn},
		{name: "Padded", value: "  error ", expected: LevelError},
		{name: "Unknown defaults to info", value: "verbose", expected: LevelInfo},
		{name: "Empty defaults to info", value: "", expected: LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, ParseLevel(tt.value))
		})
	}
}

func TestLogLevelString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "debug", LevelDebug.String())
	assert.Equal(t, "info", LevelInfo.String())
	assert.Equal(t, "warn", LevelWarn.String())
	assert.Equal(t, "error", LevelError.String())
	assert.Equal(t, "unknown(42)", LogLevel(42).String())
}

func TestConfigure(t *testing.T) {
	require.NoError(t, Configure(LevelDebug, FormatJSON))
	assert.Equal(t, LevelDebug, GetLevel())
	assert.True(t, IsDebugEnabled())

	Debug("debug message %d", 1)
	Info("info message %s", "x")
	Warn("warn message")
	Error("error message")

	require.NoError(t, Configure(LevelWarn, FormatConsole))
	assert.Equal(t, LevelWarn, GetLevel())
	assert.False(t, IsDebugEnabled())
	assert.NotNil(t, Logger())

	require.NoError(t, Configure(LevelInfo, FormatAuto))
	Sync()
}
