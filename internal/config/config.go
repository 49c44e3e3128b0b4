// Package config loads qrwlockctl's TOML configuration. Load returns an
// explicit *Config rather than populating a package-level global, and
// the CLI layers flag overrides on top of whatever the file sets.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds every tunable qrwlockctl exposes, whether set by TOML file,
// command-line flag, or left at its default.
type Config struct {
	// SpinCount is the spin budget passed to qrwlock.NewFairRWLock for
	// stress runs (`qrwlockctl stress`). Zero or negative means "let
	// FairRWLock pick its own default". Scenario runs and `qrwlockctl
	// bench` construct their locks with fixed spin counts and do not read
	// it.
	SpinCount int `toml:"spin_count"`

	// Stress holds the randomized property-harness settings for
	// `qrwlockctl stress`.
	Stress StressConfig `toml:"stress"`

	// Bench holds settings for `qrwlockctl bench`.
	Bench BenchConfig `toml:"bench"`
}

// StressConfig configures internal/scenario.Stress.
type StressConfig struct {
	Goroutines  int      `toml:"goroutines"`
	Duration    Duration `toml:"duration"`
	MaxInFlight int64    `toml:"max_in_flight"`
	RegionSize  int      `toml:"region_size"`
}

// Duration wraps time.Duration with an UnmarshalText method, since
// time.Duration does not implement encoding.TextUnmarshaler itself and
// BurntSushi/toml only parses duration-shaped strings like "5s" for
// types that do.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}

// BenchConfig configures internal/scenario.StarvationComparison.
type BenchConfig struct {
	Goroutines int `toml:"goroutines"`
	Iterations int `toml:"iterations"`
}

// Default returns the built-in configuration used when no file is given
// and no flag overrides a field.
func Default() *Config {
	return &Config{
		SpinCount: 0,
		Stress: StressConfig{
			Goroutines:  8,
			Duration:    Duration(2 * time.Second),
			MaxInFlight: 4,
			RegionSize:  1 << 16,
		},
		Bench: BenchConfig{
			Goroutines: 8,
			Iterations: 20,
		},
	}
}

// Load starts from Default and overlays path's contents, if path is
// non-empty and the file exists. A missing file is not an error — the
// defaults stand — but a present-and-malformed one is.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: stat %s: %w", path, err)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return cfg, nil
}
