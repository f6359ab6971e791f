package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter(t *testing.T) {
	t.Run("json by default", func(t *testing.T) {
		var buf bytes.Buffer
		NewWithWriter(&buf, "info", "").Info("run finished", "run_id", 7)

		var line map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
		assert.Equal(t, "run finished", line["msg"])
		assert.Equal(t, float64(7), line["run_id"])
	})

	t.Run("level filters", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewWithWriter(&buf, "warn", "text")
		log.Info("dropped")
		log.Warn("kept", "country_code", "HR")
		assert.NotContains(t, buf.String(), "dropped")
		assert.Contains(t, buf.String(), "country_code=HR")
	})
}
