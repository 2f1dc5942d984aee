package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const noEnvFile = "testdata/does-not-exist.env"

func TestLoadResolvesDefaults(t *testing.T) {
	t.Setenv("NETWORK_INTERFACE", "lo")
	t.Setenv("PKI_PATH", t.TempDir())
	t.Setenv("REDIS_HOST", "")
	t.Setenv("REDIS_PORT", "")
	t.Setenv("LOG_LEVEL", "")

	c, err := Load(noEnvFile)
	require.NoError(t, err)

	assert.Equal(t, "lo", c.NetworkInterface)
	assert.NotNil(t, c.Iface)
	assert.Equal(t, "lo", c.Iface.Name)
	assert.False(t, c.SECCControllerSim)
	assert.False(t, c.EVCCUseTLS)
	assert.Equal(t, 6379, c.RedisPort)
	assert.Equal(t, "info", c.LogLevel)
	assert.False(t, c.RedisEnabled())
}

func TestLoadHonorsOverrides(t *testing.T) {
	pkiDir := t.TempDir()
	t.Setenv("NETWORK_INTERFACE", "lo")
	t.Setenv("PKI_PATH", pkiDir)
	t.Setenv("SECC_CONTROLLER_SIM", "true")
	t.Setenv("EVCC_ENFORCE_TLS", "1")
	t.Setenv("REDIS_HOST", "redis.local")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("LOG_LEVEL", "debug")

	c, err := Load(noEnvFile)
	require.NoError(t, err)

	assert.True(t, c.SECCControllerSim)
	assert.True(t, c.EVCCEnforceTLS)
	assert.Equal(t, "redis.local", c.RedisHost)
	assert.Equal(t, 6380, c.RedisPort)
	assert.Equal(t, "debug", c.LogLevel)
	assert.True(t, c.RedisEnabled())
}

func TestLoadErrorsOnUnknownInterface(t *testing.T) {
	t.Setenv("NETWORK_INTERFACE", "no-such-iface-xyz")
	t.Setenv("PKI_PATH", t.TempDir())

	_, err := Load(noEnvFile)
	assert.Error(t, err)
}

func TestLoadErrorsWhenPKIPathIsNotADirectory(t *testing.T) {
	t.Setenv("NETWORK_INTERFACE", "lo")
	t.Setenv("PKI_PATH", filepath.Join(t.TempDir(), "missing"))

	_, err := Load(noEnvFile)
	assert.Error(t, err)
}

func TestLoadErrorsOnInvalidRedisPort(t *testing.T) {
	t.Setenv("NETWORK_INTERFACE", "lo")
	t.Setenv("PKI_PATH", t.TempDir())
	t.Setenv("REDIS_PORT", "not-a-number")

	_, err := Load(noEnvFile)
	assert.Error(t, err)
}
