package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoad_OverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qrwlockctl.toml")
	contents := `
spin_count = 32

[stress]
goroutines = 16
duration = "5s"
max_in_flight = 8
region_size = 4096

[bench]
goroutines = 4
iterations = 1000
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 32, cfg.SpinCount)
	require.Equal(t, 16, cfg.Stress.Goroutines)
	require.Equal(t, Duration(5*time.Second), cfg.Stress.Duration)
	require.Equal(t, int64(8), cfg.Stress.MaxInFlight)
	require.Equal(t, 4096, cfg.Stress.RegionSize)
	require.Equal(t, 4, cfg.Bench.Goroutines)
	require.Equal(t, 1000, cfg.Bench.Iterations)
}

func TestLoad_MalformedFileErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("not = [valid"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
