package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvOverrides(t *testing.T) {
	t.Run("GEMSMITH_API_KEY sets key", func(t *testing.T) {
		t.Setenv("GEMSMITH_API_KEY", "sk-test")

		cfg := Default()
		cfg.applyEnvOverrides()

		assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	})

	t.Run("GEMSMITH_PROVIDER overrides file value", func(t *testing.T) {
		t.Setenv("GEMSMITH_PROVIDER", "openai")

		cfg := Default()
		cfg.LLM.Provider = "gemini"
		cfg.applyEnvOverrides()

		assert.Equal(t, "openai", cfg.LLM.Provider)
	})

	t.Run("GEMSMITH_MODEL and GEMSMITH_BASE_URL", func(t *testing.T) {
		t.Setenv("GEMSMITH_MODEL", "gpt-4o-mini")
		t.Setenv("GEMSMITH_BASE_URL", "http://localhost:11434/v1")

		cfg := Default()
		cfg.applyEnvOverrides()

		assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
		assert.Equal(t, "http://localhost:11434/v1", cfg.LLM.BaseURL)
	})

	t.Run("GEMSMITH_DB_PATH overrides store path", func(t *testing.T) {
		t.Setenv("GEMSMITH_DB_PATH", "/tmp/alt.db")

		cfg := Default()
		cfg.applyEnvOverrides()

		assert.Equal(t, "/tmp/alt.db", cfg.Store.DatabasePath)
	})

	t.Run("GEMSMITH_DEBUG accepts 1 and true", func(t *testing.T) {
		for _, v := range []string{"1", "true"} {
			t.Setenv("GEMSMITH_DEBUG", v)

			cfg := Default()
			cfg.applyEnvOverrides()

			assert.True(t, cfg.Logging.DebugMode, "value %q", v)
			assert.Equal(t, "debug", cfg.Logging.Level)
		}
	})

	t.Run("GEMSMITH_DEBUG ignores other values", func(t *testing.T) {
		t.Setenv("GEMSMITH_DEBUG", "yes")

		cfg := Default()
		cfg.applyEnvOverrides()

		assert.False(t, cfg.Logging.DebugMode)
	})

	t.Run("empty env leaves file values alone", func(t *testing.T) {
		t.Setenv("GEMSMITH_API_KEY", "")
		t.Setenv("GEMSMITH_PROVIDER", "")

		cfg := Default()
		cfg.LLM.APIKey = "from-file"
		cfg.applyEnvOverrides()

		assert.Equal(t, "from-file", cfg.LLM.APIKey)
		assert.Equal(t, "gemini", cfg.LLM.Provider)
	})
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "gemsmith", cfg.Name)
	assert.Equal(t, "standard", cfg.Execution.QualityPreset)
	assert.Equal(t, 1, cfg.Synthesis.Attempts)
	assert.True(t, cfg.Synthesis.CacheEnabled)
}

func TestLoadSaveRoundTrip(t *testing.T) {
	workspace := t.TempDir()

	cfg := Default()
	cfg.LLM.Provider = "openai"
	cfg.LLM.Model = "gpt-4o"
	cfg.Execution.QualityPreset = "professional"
	cfg.Synthesis.Attempts = 3
	require.NoError(t, cfg.Save(workspace))

	loaded, err := Load(workspace)
	require.NoError(t, err)

	assert.Equal(t, "openai", loaded.LLM.Provider)
	assert.Equal(t, "gpt-4o", loaded.LLM.Model)
	assert.Equal(t, "professional", loaded.Execution.QualityPreset)
	assert.Equal(t, 3, loaded.Synthesis.Attempts)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	workspace := t.TempDir()
	path := Path(workspace)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("llm: [not a map"), 0644))

	_, err := Load(workspace)
	assert.Error(t, err)
}

func TestDurationParsing(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 60*time.Second, cfg.LLMTimeout())
	assert.Equal(t, 45*time.Second, cfg.SynthesisTimeout())
	assert.Equal(t, 2*time.Second, cfg.SynthesisBackoff())
	assert.Equal(t, 10*time.Second, cfg.SandboxExecTimeout())

	cfg.LLM.Timeout = "90s"
	assert.Equal(t, 90*time.Second, cfg.LLMTimeout())

	// Garbage and non-positive values fall back to the shipped default.
	cfg.LLM.Timeout = "soon"
	assert.Equal(t, 60*time.Second, cfg.LLMTimeout())
	cfg.Sandbox.ExecTimeout = "-5s"
	assert.Equal(t, 10*time.Second, cfg.SandboxExecTimeout())
}
