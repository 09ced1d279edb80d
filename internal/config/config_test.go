package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jchantrell/slimdivers/internal/config"
	"github.com/stretchr/testify/require"
)

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slimdivers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data_root: /games/helldivers/data
patch_dir: /mods
workers: 3
log_level: debug
`), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, "/games/helldivers/data", cfg.DataRoot)
	require.Equal(t, "/mods", cfg.PatchDir)
	require.Equal(t, 3, cfg.Workers)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, "text", cfg.LogFormat)
	require.Equal(t, "slimdivers.db", cfg.Database)

	id, err := cfg.ResourceTypeID()
	require.NoError(t, err)
	require.Equal(t, uint64(16187218042980615487), id)
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slimdivers.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_format: xml\n"), 0o644))

	_, err := config.Load(path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := config.Config{LogLevel: "info", LogFormat: "json", ResourceType: "0xE0A48D0BE9A7453F"}
	require.NoError(t, cfg.Validate())
	require.Error(t, cfg.RequireDataRoot())

	cfg.ResourceType = "unit"
	require.Error(t, cfg.Validate())

	cfg.ResourceType = config.DefaultResourceType
	cfg.Workers = -1
	require.Error(t, cfg.Validate())
}
