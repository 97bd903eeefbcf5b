// Config loading for the pos CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"

	// Config keys.
	cfgKeyAPIBase  = "api_base"
	cfgKeyTenantID = "tenant_id"
	cfgKeyOutletID = "outlet_id"
	cfgKeyDeviceID = "device_id"
	cfgKeyUserID   = "user_id"
	cfgKeyToken    = "token"
	cfgKeyDataDir  = "data_dir"

	// EnvToken overrides the token from config.yaml so the credential
	// does not have to live on disk.
	envToken = "BLUECOUNTS_TOKEN"
)

// fileConfig is the config.yaml content.
type fileConfig struct {
	APIBase  string
	TenantID string
	OutletID string
	DeviceID string
	UserID   string
	Token    string
	DataDir  string
}

// defaultConfigYAML is the content written to config.yaml on first run.
const defaultConfigYAML = `# Bluecounts POS client configuration

# Sync backend base URL (leave empty for offline-only operation)
# api_base: https://sync.example.com

# Device identity. tenant_id, outlet_id and device_id are required for
# local operation; run "pos init" to fill them in.
# tenant_id:
# outlet_id:
# device_id:
# user_id:

# Bearer token for the sync backend (or set BLUECOUNTS_TOKEN)
# token:

# Data directory (optional; overridable by --data-dir flag)
# data_dir:
`

// loadConfig reads config.yaml from the resolved config directory using
// Viper. It creates the config directory and a default config.yaml on
// first run. A missing config.yaml is not an error.
func loadConfig(configDir string) (fileConfig, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fileConfig{}, fmt.Errorf("ensure config dir: %w", err)
	}
	if err := ensureDefaultConfigFile(configDir); err != nil {
		return fileConfig{}, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fileConfig{}, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := fileConfig{
		APIBase:  v.GetString(cfgKeyAPIBase),
		TenantID: v.GetString(cfgKeyTenantID),
		OutletID: v.GetString(cfgKeyOutletID),
		DeviceID: v.GetString(cfgKeyDeviceID),
		UserID:   v.GetString(cfgKeyUserID),
		Token:    v.GetString(cfgKeyToken),
		DataDir:  v.GetString(cfgKeyDataDir),
	}
	if env := os.Getenv(envToken); env != "" {
		cfg.Token = env
	}
	return cfg, nil
}

// ensureDefaultConfigFile creates a default config.yaml if the file does
// not exist in the config directory.
func ensureDefaultConfigFile(configDir string) error {
	path := filepath.Join(configDir, configFileExt)

	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}

	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}
