package logging

import (
	"bytes"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestNewWritesToWriter(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, false)

	logger.Debug("hidden")
	logger.Info("connected", zap.String("platform", "nostr"))

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "connected")
	assert.Contains(t, out, `"platform": "nostr"`)
}

func TestNewDebug(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, true).Debug("visible")
	assert.Contains(t, buf.String(), "visible")
}

func TestRedirectStdLog(t *testing.T) {
	var buf bytes.Buffer
	restore := RedirectStdLog(New(&buf, false))
	log.Print("from the standard logger")
	restore()

	assert.Contains(t, buf.String(), "from the standard logger")
	assert.Contains(t, buf.String(), "stdlog")
}
