package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// ErrDBConfigNotFound is returned by LoadDB when the file does not exist.
var ErrDBConfigNotFound = errors.New("database config file not found")

// DBConfig holds the connection parameters read from the database config
// file. Absent keys stay empty and are left to the driver's defaults.
type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
}

// LoadDB reads the database config file. A missing file is fatal; the
// contents are not validated.
func LoadDB(path string) (DBConfig, error) {
	if path == "" {
		return DBConfig{}, fmt.Errorf("%w: no path given", ErrDBConfigNotFound)
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return DBConfig{}, fmt.Errorf("%w: %s", ErrDBConfigNotFound, path)
		}
		return DBConfig{}, fmt.Errorf("stat db config: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	if filepath.Ext(path) == "" {
		v.SetConfigType("json")
	}
	if err := v.ReadInConfig(); err != nil {
		return DBConfig{}, fmt.Errorf("read db config: %w", err)
	}

	var cfg DBConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return DBConfig{}, fmt.Errorf("unmarshal db config: %w", err)
	}
	return cfg, nil
}
