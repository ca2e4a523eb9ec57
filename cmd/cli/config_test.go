package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetConfigFilePath(t *testing.T) {
	originalCfgFile := cfgFile
	originalConfigFile := viper.ConfigFileUsed()
	defer func() {
		cfgFile = originalCfgFile
		viper.Reset()
		if originalConfigFile != "" {
			viper.SetConfigFile(originalConfigFile)
		}
	}()

	t.Run("prefers the --config flag over viper", func(t *testing.T) {
		viper.Reset()
		viper.SetConfigFile("/path/from/viper.yaml")
		cfgFile = "/path/from/flag.yaml"

		assert.Equal(t, "/path/from/flag.yaml", getConfigFilePath())
	})

	t.Run("falls back to viper's discovered path", func(t *testing.T) {
		viper.Reset()
		viper.SetConfigFile("/discovered/config.yaml")
		cfgFile = ""

		assert.Equal(t, "/discovered/config.yaml", getConfigFilePath())
	})

	t.Run("returns empty when neither is set", func(t *testing.T) {
		viper.Reset()
		cfgFile = ""

		assert.Empty(t, getConfigFilePath())
	})
}

func TestConfigFileIntegration(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "mcscan-config-test")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir) //nolint:errcheck

	testConfigPath := filepath.Join(tempDir, "test-config.yaml")
	testConfigContent := `database:
  host: "test-host"
  port: 5432
  database: "test-db"

logging:
  level: "debug"
  format: "json"

api:
  enabled: true
  port: 9191
`
	require.NoError(t, os.WriteFile(testConfigPath, []byte(testConfigContent), 0o644))

	originalConfigFile := viper.ConfigFileUsed()
	defer func() {
		viper.Reset()
		if originalConfigFile != "" {
			viper.SetConfigFile(originalConfigFile)
		}
	}()

	viper.Reset()
	viper.SetConfigFile(testConfigPath)
	require.NoError(t, viper.ReadInConfig())

	assert.Equal(t, "test-host", viper.GetString("database.host"))
	assert.Equal(t, 5432, viper.GetInt("database.port"))
	assert.Equal(t, "debug", viper.GetString("logging.level"))
	assert.Equal(t, 9191, viper.GetInt("api.port"))
}
