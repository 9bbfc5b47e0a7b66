package config

import (
	"errors"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	// AppEnv "production" makes a missing or unreachable database fatal.
	AppEnv        string
	DatabaseURL   string
	DBMaxConns    int32
	DBAutoMigrate bool
}

func (c Config) Production() bool {
	return c.AppEnv == "production"
}

// FromViper reads the factory settings.
func FromViper(v *viper.Viper) (Config, error) {
	v.SetDefault("app_env", "development")
	v.SetDefault("db_max_conns", 10)
	v.SetDefault("db_auto_migrate", false)

	cfg := Config{
		AppEnv:        strings.ToLower(strings.TrimSpace(v.GetString("app_env"))),
		DatabaseURL:   strings.TrimSpace(v.GetString("database_url")),
		DBMaxConns:    v.GetInt32("db_max_conns"),
		DBAutoMigrate: v.GetBool("db_auto_migrate"),
	}
	if cfg.DBMaxConns <= 0 {
		return Config{}, errors.New("DB_MAX_CONNS must be positive")
	}
	if cfg.Production() && cfg.DatabaseURL == "" {
		return Config{}, errors.New("DATABASE_URL is required in production")
	}
	return cfg, nil
}
