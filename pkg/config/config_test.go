package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	v := InitViper("verifier-service")

	var cfg CommonConfig
	require.NoError(t, Load(v, &cfg))

	assert.Equal(t, "0.0.0.0:8080", cfg.Service.Addr())
	assert.Equal(t, "0.0.0.0:8180", cfg.Service.HealthAddr())
	assert.Equal(t, "memory", cfg.Accounts.Backend)
	assert.Equal(t, int64(60), cfg.Policy.LeewaySeconds)
	assert.True(t, cfg.Policy.RequireEmailVerified)
	assert.Contains(t, cfg.Policy.Issuers, "https://accounts.google.com")
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	yaml := `
service:
  port: 9443
keys:
  static:
    - kid: k1
      n: AQAB
      e: AQAB
accounts:
  backend: redis
  redis:
    addr: redis:6379
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))
	t.Setenv("IDBIND_ACCOUNTS_REDIS_DB", "3")

	v := InitViper("verifier-service")
	var cfg CommonConfig
	require.NoError(t, Load(v, &cfg))

	assert.Equal(t, 9443, cfg.Service.Port)
	require.Len(t, cfg.Keys.Static, 1)
	assert.Equal(t, "k1", cfg.Keys.Static[0].Kid)
	assert.Equal(t, "redis", cfg.Accounts.Backend)
	assert.Equal(t, "redis:6379", cfg.Accounts.Redis.Addr)
	assert.Equal(t, 3, cfg.Accounts.Redis.DB)
}

func TestLoadPortFromContainerEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PORT", "7000")

	v := InitViper("verifier-service")
	var cfg CommonConfig
	require.NoError(t, Load(v, &cfg))
	assert.Equal(t, 7000, cfg.Service.Port)
}

func TestLoadStorageConfigFromEnv(t *testing.T) {
	t.Setenv("BUCKET_HOST", "s3.openshift-storage.svc")
	t.Setenv("BUCKET_PORT", "443")
	t.Setenv("BUCKET_NAME", "idbind-accounts")

	cfg := StorageConfig{BucketHost: "localhost", BucketPort: 9000}
	LoadStorageConfigFromEnv(&cfg)

	assert.Equal(t, "s3.openshift-storage.svc", cfg.BucketHost)
	assert.Equal(t, 443, cfg.BucketPort)
	assert.Equal(t, "idbind-accounts", cfg.BucketName)
	assert.True(t, cfg.UseSSL)
}
