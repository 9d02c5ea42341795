package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	DBSource      string        `yaml:"db_source"`
	Driver        string        `yaml:"store_driver"`
	Port          string        `yaml:"server_port"`
	Env           string        `yaml:"environment"`
	LogLevel      string        `yaml:"log_level"`
	CrankInterval time.Duration `yaml:"crank_interval"`
}

func defaults() *Config {
	return &Config{
		Driver:        DriverMemory,
		Port:          "8080",
		Env:           "development",
		LogLevel:      "info",
		CrankInterval: 30 * time.Second,
	}
}

// Load reads the optional YAML file named by LEDGER_CONFIG, then applies environment
// variables on top of it.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("LEDGER_CONFIG"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if v := os.Getenv("DB_SOURCE"); v != "" {
		cfg.DBSource = v
	}
	if v := os.Getenv("STORE_DRIVER"); v != "" {
		cfg.Driver = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("ENVIRONMENT"); v != "" {
		cfg.Env = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("CRANK_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("CRANK_INTERVAL: %w", err)
		}
		cfg.CrankInterval = d
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Driver {
	case DriverMemory:
	case DriverSQLite, DriverPostgres:
		if c.DBSource == "" {
			return fmt.Errorf("DB_SOURCE is required for the %s store", c.Driver)
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Driver)
	}
	if c.CrankInterval < 0 {
		return fmt.Errorf("CRANK_INTERVAL must not be negative")
	}
	return nil
}
