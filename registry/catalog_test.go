package registry

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeCatalog(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadCatalog(t *testing.T) {
	path := writeCatalog(t, `
version: "2.1.0"
models:
  - id: big-model
    display_name: Big Model
    provider: openai
    gateway_slug: "@openai/big-model"
    rank: 1
    capabilities:
      context_window: 128000
      latency_tier: medium
      reliability_tier: high
      strengths: [reasoning, coding]
    pricing:
      input_per_1k: 0.01
      output_per_1k: 0.03
  - id: small-model
    display_name: Small Model
    provider: openai
    gateway_slug: "@openai/small-model"
    rank: 2
    capabilities:
      context_window: 16000
      latency_tier: fast
      reliability_tier: high
      strengths: [general, fast]
    pricing:
      input_per_1k: 0.0005
      output_per_1k: 0.0015
`)

	entries, version, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.Equal(t, "2.1.0", version)
	require.Len(t, entries, 2)
	assert.Equal(t, "big-model", entries[0].ID)
	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, LatencyMedium, entries[0].Capabilities.LatencyTier)
	assert.Equal(t, 0.0005, entries[1].Pricing.InputPer1K)
	assert.True(t, entries[1].Capabilities.HasStrength("fast"))
}

func TestWatcher_ReloadSwapsSnapshot(t *testing.T) {
	path := writeCatalog(t, `
version: "1.0.0"
models:
  - id: only-model
    rank: 1
    pricing: {input_per_1k: 0.01, output_per_1k: 0.01}
`)
	reg := New(nil, "0.0.0", WithLogger(discardLogger()))
	w, err := NewWatcher(reg, path, discardLogger())
	require.NoError(t, err)
	defer w.watcher.Close()

	w.reload()
	assert.Equal(t, "1.0.0", reg.Version())
	_, ok := reg.Get("only-model")
	assert.True(t, ok)

	// A broken rewrite keeps the last good snapshot.
	require.NoError(t, os.WriteFile(path, []byte("models: [broken"), 0o600))
	w.reload()
	assert.Equal(t, "1.0.0", reg.Version())
	_, ok = reg.Get("only-model")
	assert.True(t, ok)
}

func TestLoadCatalog_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, _, err := LoadCatalog(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("not yaml", func(t *testing.T) {
		_, _, err := LoadCatalog(writeCatalog(t, "models: [unclosed"))
		assert.Error(t, err)
	})

	t.Run("missing version", func(t *testing.T) {
		_, _, err := LoadCatalog(writeCatalog(t, `
models:
  - id: m
    rank: 1
`))
		assert.ErrorContains(t, err, "missing version")
	})

	t.Run("invalid catalog rejected", func(t *testing.T) {
		// Two models sharing a rank fails validation.
		_, _, err := LoadCatalog(writeCatalog(t, `
version: "1.0.0"
models:
  - id: a
    rank: 1
    pricing: {input_per_1k: 0.01, output_per_1k: 0.01}
  - id: b
    rank: 1
    pricing: {input_per_1k: 0.01, output_per_1k: 0.01}
`))
		assert.ErrorContains(t, err, "share rank")
	})
}
