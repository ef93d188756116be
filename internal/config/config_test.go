package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_CreatesDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := NewConfig(WithConfigDir(dir))
	require.NoError(t, err)

	assert.Equal(t, 8765, cfg.ServerPort)
	assert.Equal(t, ProviderAnthropic, cfg.Provider.Type)
	assert.Equal(t, "Japanese", cfg.Translation.SourceLanguage)
	assert.FileExists(t, filepath.Join(dir, "config.yaml"))
}

func TestNewConfig_LoadsExisting(t *testing.T) {
	dir := t.TempDir()
	content := []byte("server_port: 9090\njwt_secret: s3cret\nprovider:\n  type: openai\n  model: gpt-4o\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), content, 0600))

	cfg, err := NewConfig(WithConfigDir(dir))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.ServerPort)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
	assert.Equal(t, ProviderOpenAI, cfg.Provider.Type)
	assert.Equal(t, "gpt-4o", cfg.Provider.Model)
}

func TestConfig_SaveAndReload(t *testing.T) {
	dir := t.TempDir()
	cfg, err := NewConfig(WithConfigDir(dir))
	require.NoError(t, err)

	cfg.ServerPort = 9999
	cfg.Compaction.SoftFloor = 20
	require.NoError(t, cfg.Save())

	other, err := NewConfig(WithConfigDir(dir))
	require.NoError(t, err)
	assert.Equal(t, 9999, other.ServerPort)
	assert.Equal(t, 20, other.Compaction.SoftFloor)

	// External edit picked up by Reload.
	content := []byte("server_port: 1234\nprovider:\n  type: google\n  model: gemini-2.0-flash\n")
	require.NoError(t, os.WriteFile(cfg.ConfigFile(), content, 0600))
	require.NoError(t, cfg.Reload())
	assert.Equal(t, 1234, cfg.ServerPort)
	assert.Equal(t, ProviderGoogle, cfg.Provider.Type)
}

func TestConfig_Snapshot(t *testing.T) {
	dir := t.TempDir()
	cfg, err := NewConfig(WithConfigDir(dir))
	require.NoError(t, err)

	snap := cfg.Snapshot()
	snap.ServerPort = 1

	assert.Equal(t, 8765, cfg.ServerPort)
}
