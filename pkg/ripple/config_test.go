package ripple

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadProjectConfig(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
[evaluation]
step_limit = 500

[streams]
time_frequency = "16ms"

[streams.speech]
max_retries = 2
`)

	cfg, err := LoadProjectConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.Evaluation.StepLimit)
	assert.Equal(t, 16*time.Millisecond, cfg.Streams.TimeFrequency.Duration)
	assert.Equal(t, 2, cfg.Streams.Speech.MaxRetries)

	defaults := DefaultConfig()
	assert.Equal(t, defaults.Evaluation.StackLimit, cfg.Evaluation.StackLimit, "missing settings keep their defaults")
	assert.Equal(t, defaults.Streams.Speech.MaxBackoff, cfg.Streams.Speech.MaxBackoff)
}

func TestLoadProjectConfigErrors(t *testing.T) {
	for _, tt := range []struct {
		name    string
		content string
		message string
	}{
		{"bad duration", "[streams]\ntime_frequency = \"soon\"", "invalid duration"},
		{"bad toml", "[evaluation\n", "parsing"},
		{"negative steps", "[evaluation]\nstep_limit = -1", "step_limit must not be negative"},
		{"zero frequency", "[streams]\ntime_frequency = \"0s\"", "time_frequency must be positive"},
		{"no history", "[streams]\nhistory_limit = 0", "history_limit must be at least 1"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadProjectConfig(writeConfig(t, t.TempDir(), tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestFindProjectConfig(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	path, cfg, err := FindProjectConfig(nested)
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Nil(t, cfg, "the search stops at the repository root")

	want := writeConfig(t, filepath.Join(root, "a"), "[evaluation]\nstack_limit = 8")
	path, cfg, err = FindProjectConfig(nested)
	require.NoError(t, err)
	assert.Equal(t, want, path)
	require.NotNil(t, cfg)
	assert.Equal(t, 8, cfg.Evaluation.StackLimit)
}

func TestDurationText(t *testing.T) {
	text, err := Duration{1500 * time.Millisecond}.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1.5s", string(text))

	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("250ms")))
	assert.Equal(t, 250*time.Millisecond, d.Duration)
}
