package logger

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDebug_SuppressedWhenNotVerbose(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	SetVerbose(false)
	Debug("hidden %s", "message")
	assert.Empty(t, buf.String())
}

func TestDebug_PrintedWhenVerbose(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)
	defer SetVerbose(false)

	SetVerbose(true)
	Debug("visible %d", 42)
	assert.Contains(t, buf.String(), "[DEBUG] visible 42")
}

func TestWarnAndInfoPrefixes(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)
	defer SetVerbose(false)

	SetVerbose(true)
	Info("info line")
	Warn("warn line")
	assert.Contains(t, buf.String(), "[INFO] info line")
	assert.Contains(t, buf.String(), "[WARN] warn line")
}

func TestIsVerbose(t *testing.T) {
	SetVerbose(true)
	assert.True(t, IsVerbose())
	SetVerbose(false)
	assert.False(t, IsVerbose())
}
