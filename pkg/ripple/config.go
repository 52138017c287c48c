package ripple

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// ConfigFileName is the project configuration file searched for by
// FindProjectConfig.
const ConfigFileName = "ripple.toml"

// ProjectConfig represents a ripple.toml project configuration file.
type ProjectConfig struct {
	Evaluation EvaluationConfig `toml:"evaluation"`
	Streams    StreamsConfig    `toml:"streams"`
}

// EvaluationConfig bounds and instruments evaluation passes.
type EvaluationConfig struct {
	// StepLimit is the maximum number of steps per pass.
	StepLimit int `toml:"step_limit"`

	// StackLimit is the maximum depth of nested evaluations.
	StackLimit int `toml:"stack_limit"`

	// Trace records every executed step for debugging and the steps command.
	Trace bool `toml:"trace"`

	// CompileCache is the number of compiled step lists kept per program.
	CompileCache int `toml:"compile_cache"`
}

type StreamsConfig struct {
	// TimeFrequency is the tick interval of Time() when no frequency is given.
	TimeFrequency Duration `toml:"time_frequency"`

	// HistoryLimit caps the history of accumulating streams.
	HistoryLimit int `toml:"history_limit"`

	// SceneDuration is how long a Scene shows an output that has no duration
	// of its own.
	SceneDuration Duration `toml:"scene_duration"`

	Speech SpeechConfig `toml:"speech"`
}

// SpeechConfig controls how the Speech stream retries a failing recognizer.
type SpeechConfig struct {
	MaxRetries     int      `toml:"max_retries"`
	InitialBackoff Duration `toml:"initial_backoff"`
	MaxBackoff     Duration `toml:"max_backoff"`
}

// Duration is a time.Duration written as a string like "250ms" in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// DefaultConfig returns the configuration used when no ripple.toml is found.
func DefaultConfig() *ProjectConfig {
	return &ProjectConfig{
		Evaluation: EvaluationConfig{
			StepLimit:    1 << 18,
			StackLimit:   256,
			Trace:        true,
			CompileCache: 1024,
		},
		Streams: StreamsConfig{
			TimeFrequency: Duration{33 * time.Millisecond},
			HistoryLimit:  1024,
			SceneDuration: Duration{time.Second},
			Speech: SpeechConfig{
				MaxRetries:     5,
				InitialBackoff: Duration{250 * time.Millisecond},
				MaxBackoff:     Duration{8 * time.Second},
			},
		},
	}
}

// LoadProjectConfig loads a ripple.toml file from the given path. Settings
// missing from the file keep their defaults.
func LoadProjectConfig(path string) (*ProjectConfig, error) {
	config := DefaultConfig()
	if _, err := toml.DecodeFile(path, config); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return config, nil
}

// Validate rejects settings that would make evaluation impossible.
func (c *ProjectConfig) Validate() error {
	if c.Evaluation.StepLimit < 0 {
		return fmt.Errorf("evaluation.step_limit must not be negative")
	}
	if c.Evaluation.StackLimit < 0 {
		return fmt.Errorf("evaluation.stack_limit must not be negative")
	}
	if c.Evaluation.CompileCache < 1 {
		return fmt.Errorf("evaluation.compile_cache must be at least 1")
	}
	if c.Streams.TimeFrequency.Duration <= 0 {
		return fmt.Errorf("streams.time_frequency must be positive")
	}
	if c.Streams.HistoryLimit < 1 {
		return fmt.Errorf("streams.history_limit must be at least 1")
	}
	return nil
}

// FindProjectConfig searches for a ripple.toml file starting from dir and
// walking up to parent directories. Returns the path to ripple.toml and the
// parsed config, or ("", nil, nil) if not found.
func FindProjectConfig(dir string) (string, *ProjectConfig, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", nil, err
	}
	for {
		path := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(path); err == nil {
			config, err := LoadProjectConfig(path)
			if err != nil {
				return "", nil, err
			}
			return path, config, nil
		}

		// Stop at .git boundary
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return "", nil, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil, nil
		}
		dir = parent
	}
}
