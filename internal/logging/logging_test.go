package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, Level(true))
	require.Equal(t, slog.LevelInfo, Level(false))
}

func TestNewHandler(t *testing.T) {
	var buf bytes.Buffer

	logger := slog.New(NewHandler(&buf, Level(false), false))
	logger.Debug("hidden")
	logger.Info("session acquired", "session", "abc", "path", "")

	out := buf.String()
	require.NotContains(t, out, "hidden")
	require.Contains(t, out, "session acquired")
	require.Contains(t, out, "session=abc")
	require.NotContains(t, out, "path=")
	require.NotContains(t, out, "\x1b[")
}

func TestNewHandler_Verbose(t *testing.T) {
	var buf bytes.Buffer

	logger := slog.New(NewHandler(&buf, Level(true), true))
	logger.Debug("row inserted", "table", "person")

	require.Contains(t, buf.String(), "row inserted")
	require.Contains(t, buf.String(), "\x1b[")
}
