package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "8090", cfg.Server.Port)
	assert.Equal(t, 64*1024, cfg.Shm.ArenaCapacity)
	assert.Equal(t, 16, cfg.Shm.MaxRegions)
	assert.Equal(t, 32, cfg.Shm.MaxNameLen)
	assert.Equal(t, 8, cfg.Shm.MaxACLEntries)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.RateLimit.Enabled)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("SHM_MAX_REGIONS", "64")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9999", cfg.Server.Port)
	assert.Equal(t, 64, cfg.Shm.MaxRegions)
	// Unset variables fall back to declared defaults.
	assert.Equal(t, 65536, cfg.Shm.ArenaCapacity)
}

func TestLoadFileOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shmd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "7070"
shm:
  arena_capacity: 131072
logging:
  level: debug
`), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Server.Port)
	assert.Equal(t, 131072, cfg.Shm.ArenaCapacity)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// Fields the file omits keep their defaults.
	assert.Equal(t, 16, cfg.Shm.MaxRegions)
	assert.Equal(t, 200, cfg.RateLimit.Burst)
}

func TestEnvironmentWinsOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shmd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "7070"
shm:
  max_regions: 4
`), 0o644))

	t.Setenv("PORT", "6060")
	t.Setenv("SHM_MAX_ACL_ENTRIES", "2")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "6060", cfg.Server.Port)
	assert.Equal(t, 4, cfg.Shm.MaxRegions)
	assert.Equal(t, 2, cfg.Shm.MaxACLEntries)
}

func TestLoadFileErrors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0o644))
	_, err = LoadFile(path)
	assert.Error(t, err)
}
