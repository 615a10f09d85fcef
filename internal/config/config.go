package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	envPrefix            = "LOOM"
	defaultHTTPAddress   = "0.0.0.0:8091"
	defaultSnapshotPath  = "loom-rows.db"
	defaultLogLevel      = "info"
	defaultWorkspaceID   = "default"
	defaultRetryCount    = 3
	defaultBackoffMillis = 50
)

// AppConfig captures runtime configuration for the grid engine service.
type AppConfig struct {
	HTTPAddress   string
	SnapshotPath  string
	WorkspaceID   string
	DeviceID      string
	LogLevel      string
	RetryCount    int
	BackoffMillis int
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper
// instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("snapshot.path", defaultSnapshotPath)
	configViper.SetDefault("workspace.id", defaultWorkspaceID)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("loader.retry_count", defaultRetryCount)
	configViper.SetDefault("loader.backoff_ms", defaultBackoffMillis)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:   configViper.GetString("http.address"),
		SnapshotPath:  configViper.GetString("snapshot.path"),
		WorkspaceID:   configViper.GetString("workspace.id"),
		DeviceID:      configViper.GetString("device.id"),
		LogLevel:      configViper.GetString("log.level"),
		RetryCount:    configViper.GetInt("loader.retry_count"),
		BackoffMillis: configViper.GetInt("loader.backoff_ms"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SnapshotPath) == "" {
		return fmt.Errorf("snapshot.path is required")
	}
	if strings.TrimSpace(c.WorkspaceID) == "" {
		return fmt.Errorf("workspace.id is required")
	}
	if c.RetryCount <= 0 {
		return fmt.Errorf("loader.retry_count must be positive")
	}
	return nil
}
