// Package config loads process configuration from the environment and an
// optional config file named by CONFIG_FILE.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Addr string
}

type AppConfig struct {
	ServiceName    string
	LogLevel       string
	LogDevelopment bool
	HTTP           HTTPConfig
}

// New returns a viper instance bound to the environment. Keys are lower
// snake case ("database_url") and resolve to the upper-case variable
// ("DATABASE_URL"). Environment values take precedence over the file.
func New() (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}
	return v, nil
}

func Load() (AppConfig, error) {
	v, err := New()
	if err != nil {
		return AppConfig{}, err
	}
	return FromViper(v)
}

// FromViper reads the settings shared by every service.
func FromViper(v *viper.Viper) (AppConfig, error) {
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_development", false)

	cfg := AppConfig{
		ServiceName:    strings.TrimSpace(v.GetString("service_name")),
		LogLevel:       strings.TrimSpace(v.GetString("log_level")),
		LogDevelopment: v.GetBool("log_development"),
		HTTP: HTTPConfig{
			Addr: strings.TrimSpace(v.GetString("http_addr")),
		},
	}
	if cfg.ServiceName == "" {
		return AppConfig{}, errors.New("SERVICE_NAME is required")
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	return cfg, nil
}
