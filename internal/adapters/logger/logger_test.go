package logger_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/forge/internal/adapters/logger"
	"go.trai.ch/zerr"
)

func TestLogger_JSONMode(t *testing.T) {
	log := logger.New()
	buf := new(bytes.Buffer)
	log.SetJSON(true)
	log.SetOutput(buf)

	log.Info("cache populated", "entries", 3)

	out := buf.String()
	assert.Contains(t, out, `"msg":"cache populated"`)
	assert.Contains(t, out, `"entries":3`)
}

func TestLogger_DebugSuppressedByDefault(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	log := logger.New()
	buf := new(bytes.Buffer)
	log.SetOutput(buf)

	log.Debug("noisy detail")
	assert.Empty(t, buf.String())

	log.SetDebug(true)
	log.Debug("noisy detail")
	assert.Contains(t, buf.String(), "noisy detail")
}

func TestLogger_PrettyAttrs(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	log := logger.New()
	buf := new(bytes.Buffer)
	log.SetOutput(buf)

	log.Warn("remote unavailable", "attempt", 2)
	assert.Contains(t, buf.String(), "remote unavailable attempt=2")
}

func TestLogger_ErrorNilIsNoop(t *testing.T) {
	log := logger.New()
	buf := new(bytes.Buffer)
	log.SetOutput(buf)

	log.Error(nil)
	assert.Empty(t, buf.String())
}

func TestFormatChain_PlainError(t *testing.T) {
	out := logger.FormatChain(errors.New("boom"))
	assert.Equal(t, "Error: boom", out)
}

func TestFormatChain_RendersCauses(t *testing.T) {
	inner := errors.New("disk full")
	err := zerr.Wrap(inner, "failed to store blob")

	out := logger.FormatChain(err)
	require.Contains(t, out, "Error: failed to store blob")
	require.Contains(t, out, "Caused by:")
	require.Contains(t, out, "→ disk full")
}
