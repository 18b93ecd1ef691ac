package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chtemp(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
}

func TestLoadDefaults(t *testing.T) {
	chtemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://sh.dataspace.copernicus.eu/api/v1/process", cfg.Imagery.ProcessURL)
	assert.Equal(t, 5, cfg.Imagery.Retries)
	assert.Equal(t, 120, cfg.Imagery.TimeoutSecs)
	assert.Equal(t, ".cache/imagery", cfg.Cache.Dir)
	assert.Equal(t, 168, cfg.Cache.TTLHours)

	assert.Equal(t, "sentinel-2-l2a", cfg.Analysis.Sensor)
	assert.Equal(t, "nbr", cfg.Analysis.Index)
	assert.Equal(t, [4]float64{-118.65, 34.0, -118.45, 34.15}, cfg.Analysis.BBox)
	assert.Equal(t, "2025-01-07", cfg.Analysis.FireStart)
	assert.Equal(t, 180, cfg.Analysis.BeforeLookbackDays)
	assert.Equal(t, 30, cfg.Analysis.AfterSpanDays)
	assert.InDelta(t, 20.0, cfg.Analysis.BeforeCloudCeiling, 1e-9)
	assert.InDelta(t, 30.0, cfg.Analysis.AfterCloudCeiling, 1e-9)
	assert.Equal(t, 4, cfg.Analysis.BatchWorkers)

	assert.Equal(t, "output", cfg.Render.OutDir)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	chtemp(t)

	yaml := `
imagery:
  client_id: test-id
  retries: 2
analysis:
  sensor: landsat-8-l2
  fire_start: "2025-01-22"
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile("config.yaml", []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "test-id", cfg.Imagery.ClientID)
	assert.Equal(t, 2, cfg.Imagery.Retries)
	assert.Equal(t, "landsat-8-l2", cfg.Analysis.Sensor)
	assert.Equal(t, "2025-01-22", cfg.Analysis.FireStart)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Untouched keys keep their defaults.
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadFromEnv(t *testing.T) {
	chtemp(t)
	t.Setenv("BURNSIGHT_IMAGERY_CLIENT_SECRET", "hunter2")
	t.Setenv("BURNSIGHT_SERVER_PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "hunter2", cfg.Imagery.ClientSecret)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestFireStartDate(t *testing.T) {
	c := AnalysisConfig{FireStart: "2025-01-07"}
	d, err := c.FireStartDate()
	require.NoError(t, err)
	assert.Equal(t, 2025, d.Year())
	assert.Equal(t, 7, d.Day())

	c.FireStart = "January 7th"
	_, err = c.FireStartDate()
	assert.Error(t, err)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
	assert.Error(t, InitLogger(LogConfig{Level: "loud", Format: "json"}))
}

func TestLoadBadYAML(t *testing.T) {
	chtemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(".", "config.yaml"), []byte("imagery: [unclosed"), 0644))

	_, err := Load()
	assert.Error(t, err)
}
