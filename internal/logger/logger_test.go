package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&buf, false)
	log.Debug("hidden")
	log.Info("shown", "bucket", "photos")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "msg=shown bucket=photos")

	buf.Reset()
	NewLogger(&buf, true).Debug("verbose")
	assert.Contains(t, buf.String(), "level=DEBUG msg=verbose")
}

func TestDiscard(t *testing.T) {
	assert.False(t, Discard().Enabled(t.Context(), 12))
}
