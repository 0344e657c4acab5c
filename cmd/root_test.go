// File: cmd/root_test.go
package cmd

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/socialgenius/loginforge/internal/config"
)

func TestInitializeConfigAppliesEnvOverrides(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	t.Setenv("LOGINFORGE_SERVER_ADDR", ":9999")
	t.Setenv("LOGINFORGE_LOGGER_LEVEL", "debug")

	require.NoError(t, initializeConfig())

	cfg, err := config.Load(viper.GetViper())
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, "debug", cfg.Logger.Level)
	// Untouched keys keep their defaults.
	assert.Equal(t, "https://accounts.google.com/ServiceLogin", cfg.Auth.URL)
}

func TestInitializeConfigMissingFileIsNotAnError(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfgFile = ""
	require.NoError(t, initializeConfig())
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["serve"], "serve command should be registered")
	assert.True(t, names["auth"], "auth command should be registered")
}
