package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kotoba-dev/kotoba/internal/auth"
)

func useTempConfigDir(t *testing.T) {
	t.Helper()
	prev := configDir
	configDir = t.TempDir()
	t.Cleanup(func() { configDir = prev })
}

func TestPasswdCommand_StoresHashOnly(t *testing.T) {
	useTempConfigDir(t)

	cmd := passwdCommand()
	cmd.SetArgs([]string{"hunter2"})
	require.NoError(t, cmd.Execute())

	cfg, err := loadConfig()
	require.NoError(t, err)
	hash := cfg.Snapshot().ControlPasswordHash
	require.NotEmpty(t, hash)
	assert.NotContains(t, hash, "hunter2")
	assert.True(t, auth.CheckPassword(hash, "hunter2"))
}

func TestTokenCommand_RequiresControlPassword(t *testing.T) {
	useTempConfigDir(t)

	passwd := passwdCommand()
	passwd.SetArgs([]string{"hunter2"})
	require.NoError(t, passwd.Execute())

	token := tokenCommand()
	token.SetArgs([]string{"--password", "wrong"})
	err := token.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "control password")

	token = tokenCommand()
	token.SetArgs([]string{"--password", "hunter2"})
	require.NoError(t, token.Execute())

	// The first successful run persists a signing secret.
	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.Snapshot().JWTSecret)
}

func TestTokenCommand_NoPasswordConfigured(t *testing.T) {
	useTempConfigDir(t)

	cmd := tokenCommand()
	require.NoError(t, cmd.Execute())
}

func TestPasswdCommand_Clear(t *testing.T) {
	useTempConfigDir(t)

	set := passwdCommand()
	set.SetArgs([]string{"hunter2"})
	require.NoError(t, set.Execute())

	clear := passwdCommand()
	clear.SetArgs([]string{"--clear"})
	require.NoError(t, clear.Execute())

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Empty(t, cfg.Snapshot().ControlPasswordHash)

	token := tokenCommand()
	require.NoError(t, token.Execute())
}
