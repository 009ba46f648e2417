// Package testutil provides shared test helpers.
package testutil

import (
	"log/slog"
	"strings"
	"testing"
)

// NewTestLogger returns a debug-level slog.Logger that funnels records
// into the test log, so handle and console output shows up interleaved
// with failures and stays quiet on success.
func NewTestLogger(tb testing.TB) *slog.Logger {
	tb.Helper()
	return slog.New(slog.NewTextHandler(testLogWriter{tb: tb}, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

type testLogWriter struct {
	tb testing.TB
}

func (w testLogWriter) Write(p []byte) (int, error) {
	w.tb.Helper()
	// t.Log appends its own newline.
	w.tb.Log(strings.TrimSuffix(string(p), "\n"))
	return len(p), nil
}
