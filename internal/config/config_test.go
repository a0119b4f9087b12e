package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30, cfg.MES.TrendDays)
	assert.Equal(t, 168.0, cfg.MES.ThroughputWindowHours)
	assert.Equal(t, 20, cfg.MES.RecentActivityLimit)
	assert.False(t, cfg.MES.EnforceSequence)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 10*time.Second, cfg.Cache.MemoryTTL)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("MES_ENFORCE_SEQUENCE", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.True(t, cfg.MES.EnforceSequence)
	assert.Contains(t, cfg.Database.DSN(), "host=db.internal")
}
