package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInfoWritesExpectedFields(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "text", false)

	Info("stripe committed", "file_id", "abc123", "stripe_index", 2)

	out := buf.String()
	require.Contains(t, out, "stripe committed")
	assert.Contains(t, out, "file_id=abc123")
	assert.Contains(t, out, "stripe_index=2")
}

func TestDebugSuppressedBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "text", false)

	Debug("should not appear")

	assert.Empty(t, buf.String())
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "DEBUG", "json", false)

	Debug("node offline", "node_id", "node-2")

	out := buf.String()
	assert.True(t, strings.Contains(out, `"msg":"node offline"`))
	assert.True(t, strings.Contains(out, `"node_id":"node-2"`))

	// restore defaults for subsequent tests in the package
	InitWithWriter(&buf, "INFO", "text", false)
}
