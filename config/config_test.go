package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "pos", cfg.DeviceType)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "pos_sync.db", cfg.DBPath)
	assert.Equal(t, 10*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, time.Second, cfg.ReconnectBaseDelay)
	assert.Equal(t, 30*time.Second, cfg.ReconnectMaxDelay)
	assert.Equal(t, 10, cfg.ReconnectMaxRetries)
	assert.Equal(t, 1000, cfg.OutboundQueueLimit)
	assert.Equal(t, 7, cfg.RetentionDays)
	assert.Equal(t, "8090", cfg.ListenPort)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("TENANT_ID", "tenant-9")
	t.Setenv("DEVICE_TYPE", "kds")
	t.Setenv("RECONNECT_BASE_DELAY", "500ms")
	t.Setenv("RECONNECT_MAX_RETRIES", "3")
	t.Setenv("OUTBOUND_QUEUE_LIMIT", "250")

	cfg := Load()
	assert.Equal(t, "tenant-9", cfg.TenantID)
	assert.Equal(t, "kds", cfg.DeviceType)
	assert.Equal(t, 500*time.Millisecond, cfg.ReconnectBaseDelay)
	assert.Equal(t, 3, cfg.ReconnectMaxRetries)
	assert.Equal(t, 250, cfg.OutboundQueueLimit)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("RECONNECT_MAX_RETRIES", "lots")
	t.Setenv("HTTP_TIMEOUT", "soon")

	cfg := Load()
	assert.Equal(t, 10, cfg.ReconnectMaxRetries)
	assert.Equal(t, 10*time.Second, cfg.HTTPTimeout)
}

func TestInitDBSqlite(t *testing.T) {
	cfg := &Config{
		DBDriver: "sqlite",
		DBPath:   filepath.Join(t.TempDir(), "test.db"),
	}
	db, err := InitDB(cfg)
	require.NoError(t, err)
	require.NotNil(t, db)
}

func TestInitDBNone(t *testing.T) {
	db, err := InitDB(&Config{DBDriver: "none"})
	require.NoError(t, err)
	assert.Nil(t, db)
}

func TestInitDBUnknownDriver(t *testing.T) {
	_, err := InitDB(&Config{DBDriver: "oracle"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oracle")
}

func TestInitDBMysqlRequiresDSN(t *testing.T) {
	_, err := InitDB(&Config{DBDriver: "mysql"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_DSN")
}
