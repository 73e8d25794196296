package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestBuildConfig_Precedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "apmrouter.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"listen": {"addr": ":1111"},
		"negotiation": {"max_initiator_bytes": 100},
		"log": {"level": "warn"}
	}`), 0o600))

	cfg, err := buildConfig(flagOverrides{configFile: path}, envMap(nil))
	require.NoError(t, err)
	assert.Equal(t, ":1111", cfg.Listen.Addr)
	assert.Equal(t, 100, cfg.Negotiation.MaxInitiatorBytes)

	cfg, err = buildConfig(flagOverrides{configFile: path}, envMap(map[string]string{
		"APMROUTER_LISTEN":              ":2222",
		"APMROUTER_MAX_INITIATOR_BYTES": "200",
	}))
	require.NoError(t, err)
	assert.Equal(t, ":2222", cfg.Listen.Addr)
	assert.Equal(t, 200, cfg.Negotiation.MaxInitiatorBytes)
	assert.Equal(t, "warn", cfg.Log.Level)

	cfg, err = buildConfig(flagOverrides{
		configFile: path,
		listenAddr: ":3333",
		logLevel:   "debug",
		budget:     300,
	}, envMap(map[string]string{"APMROUTER_LISTEN": ":2222"}))
	require.NoError(t, err)
	assert.Equal(t, ":3333", cfg.Listen.Addr)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 300, cfg.Negotiation.MaxInitiatorBytes)
}

func TestApplyEnvOverrides_Switches(t *testing.T) {
	cfg, err := buildConfig(flagOverrides{}, envMap(map[string]string{
		"APMROUTER_METRICS":            "off",
		"APMROUTER_DISABLE_INITIATORS": "http, Batch ,unknown",
	}))
	require.NoError(t, err)

	assert.False(t, cfg.Metrics.Enabled)
	assert.False(t, cfg.Initiators.HTTP)
	assert.False(t, cfg.Initiators.Batch)
	assert.True(t, cfg.Initiators.Command)
}

func TestBuildConfig_Invalid(t *testing.T) {
	_, err := buildConfig(flagOverrides{configFile: filepath.Join(t.TempDir(), "missing.json")}, envMap(nil))
	assert.Error(t, err)

	_, err = buildConfig(flagOverrides{logLevel: "loud"}, envMap(nil))
	assert.Error(t, err)
}

func TestSetupLogging_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "apmrouter.log")
	closer, err := setupLogging(logConfig{Level: "info", Format: "json", File: path})
	require.NoError(t, err)
	require.NotNil(t, closer)
	require.NoError(t, closer.Close())

	_, err = os.Stat(path)
	assert.NoError(t, err)

	_, err = setupLogging(logConfig{Level: "loud"})
	assert.Error(t, err)
}

func TestBuildConfig_Preset(t *testing.T) {
	cfg, err := buildConfig(flagOverrides{preset: "minimal"}, envMap(map[string]string{
		"APMROUTER_METRICS": "true",
	}))
	require.NoError(t, err)
	assert.False(t, cfg.Initiators.HTTP)
	assert.True(t, cfg.Metrics.Enabled, "env overrides preset")

	_, err = buildConfig(flagOverrides{preset: "mobile"}, envMap(nil))
	assert.Error(t, err)
}
