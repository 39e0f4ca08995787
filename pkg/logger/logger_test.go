package logger

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestColorHandlerFormat(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(ComponentVerifier, &buf, false)

	log.With("request_id", "r-1").Info("verified", "kid", "abc")

	out := buf.String()
	assert.Contains(t, out, "[VERIFIER] verified")
	assert.Contains(t, out, "request_id=r-1")
	assert.Contains(t, out, "kid=abc")
	assert.NotContains(t, out, "\033[")
}

func TestColorHandlerColors(t *testing.T) {
	var buf bytes.Buffer
	NewWithWriter(ComponentAccounts, &buf, true).Info("created")
	assert.Contains(t, buf.String(), colorMagenta)
}

func TestSetLevelFiltersDebug(t *testing.T) {
	defer SetLevel(slog.LevelInfo)

	var buf bytes.Buffer
	log := NewWithWriter(ComponentKeys, &buf, false)

	SetLevel(slog.LevelInfo)
	log.Debug("hidden")
	assert.Empty(t, buf.String())

	SetLevel(slog.LevelDebug)
	log.Debug("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestVerificationHelper(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(ComponentVerifier, &buf, false)

	log.Verification("k1", false)
	assert.Contains(t, buf.String(), "rejected")
	assert.Contains(t, buf.String(), "valid=false")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}
