// Package config loads the connection and logging settings of the simphple
// tool from simphple.{yaml,toml,json} and SIMPHPLE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/spf13/viper"
)

// ErrInvalidConfig is returned when a loaded configuration fails validation
var ErrInvalidConfig = errors.New("invalid configuration")

// Config represents the simphple configuration
type Config struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Log   LogConfig   `mapstructure:"log"`
}

// MySQLConfig represents the connection settings
type MySQLConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Socket   string `mapstructure:"socket"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// LogConfig represents logger settings
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Load reads the configuration. path names an explicit config file; when
// empty, simphple.* is searched in the working directory and $HOME/.simphple.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("mysql.host", "localhost")
	v.SetDefault("mysql.port", 3306)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("simphple")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".simphple"))
		}
	}

	v.SetEnvPrefix("simphple")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range []string{"mysql.username", "mysql.password", "mysql.database", "mysql.socket"} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the loaded values
func (c *Config) Validate() error {
	if c.MySQL.Socket == "" {
		if c.MySQL.Host == "" {
			return fmt.Errorf("%w: mysql.host must be set when mysql.socket is empty", ErrInvalidConfig)
		}
		if c.MySQL.Port <= 0 || c.MySQL.Port > 65535 {
			return fmt.Errorf("%w: mysql.port must be between 1 and 65535, got %d", ErrInvalidConfig, c.MySQL.Port)
		}
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: log.level must be one of debug, info, warn, error, got %q", ErrInvalidConfig, c.Log.Level)
	}

	return nil
}

// DSN renders the driver data source name. Connections go through the unix
// socket when one is configured, TCP otherwise.
func (c MySQLConfig) DSN() string {
	dsn := mysql.NewConfig()
	dsn.User = c.Username
	dsn.Passwd = c.Password
	dsn.DBName = c.Database
	dsn.ParseTime = true

	if c.Socket != "" {
		dsn.Net = "unix"
		dsn.Addr = c.Socket
	} else {
		dsn.Net = "tcp"
		dsn.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	}

	return dsn.FormatDSN()
}
