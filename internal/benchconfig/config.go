// Package benchconfig loads the YAML configuration for the
// mysqlpool-bench demo/load driver: which connection strings to
// exercise, how many concurrent workers per string, and how long to hold
// a checked-out session before returning it.
package benchconfig

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// WorkerGroup describes one set of workers hammering a single connection
// string.
type WorkerGroup struct {
	Name        string        `yaml:"name"`
	DSN         string        `yaml:"dsn"`
	Concurrency int           `yaml:"concurrency"`
	HoldTimeMin time.Duration `yaml:"hold_time_min"`
	HoldTimeMax time.Duration `yaml:"hold_time_max"`
}

// Config is the root bench configuration structure.
type Config struct {
	MetricsPort int           `yaml:"metrics_port"`
	RunDuration time.Duration `yaml:"run_duration"`
	Workers     []WorkerGroup `yaml:"workers"`
}

// Load reads and validates a bench configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading bench config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing bench config %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("bench config validation: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) validate() error {
	if len(c.Workers) == 0 {
		return fmt.Errorf("at least one worker group must be configured")
	}
	for i, w := range c.Workers {
		if w.DSN == "" {
			return fmt.Errorf("workers[%d].dsn is required", i)
		}
		if w.Concurrency <= 0 {
			return fmt.Errorf("workers[%d].concurrency must be > 0", i)
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.MetricsPort == 0 {
		c.MetricsPort = 9090
	}
	if c.RunDuration == 0 {
		c.RunDuration = 30 * time.Second
	}
	for i := range c.Workers {
		if c.Workers[i].HoldTimeMin == 0 {
			c.Workers[i].HoldTimeMin = 5 * time.Millisecond
		}
		if c.Workers[i].HoldTimeMax == 0 {
			c.Workers[i].HoldTimeMax = c.Workers[i].HoldTimeMin + 20*time.Millisecond
		}
	}
}
