package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(&buf, "WARN")
	require.NoError(t, err)

	log.Info().Msg("hidden")
	log.Warn().Str("file", "april.xlsx").Msg("skipping workbook")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "skipping workbook")
	assert.Contains(t, out, "file=")
}

func TestNewDefaultsAndErrors(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(&buf, "")
	require.NoError(t, err)
	log.Info().Msg("shown")
	assert.Contains(t, buf.String(), "shown")

	_, err = New(&buf, "loud")
	assert.Error(t, err)
}
