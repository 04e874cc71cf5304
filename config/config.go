// Package config loads the YAML configuration file. Command line flags
// override anything set here; everything has a usable default.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"r9ctl/lockin"
	"r9ctl/scan"
)

type Config struct {
	Instrument InstrumentConfig `yaml:"instrument"`
	Poll       PollConfig       `yaml:"poll"`
	Log        LogConfig        `yaml:"log"`
	Redis      RedisConfig      `yaml:"redis"`
	Monitor    MonitorConfig    `yaml:"monitor"`
	Scans      []ScanJob        `yaml:"scans,omitempty"`
}

type InstrumentConfig struct {
	Addr        string        `yaml:"addr"`
	Command     string        `yaml:"command"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
	ReadWait    time.Duration `yaml:"read_wait"`
	BufferSize  int           `yaml:"buffer_size"`
}

// Lockin converts the section into a client config.
func (c InstrumentConfig) Lockin() lockin.Config {
	return lockin.Config{
		Addr:        c.Addr,
		Command:     c.Command,
		DialTimeout: c.DialTimeout,
		ReadWait:    c.ReadWait,
		BufferSize:  c.BufferSize,
	}
}

type PollConfig struct {
	Interval time.Duration `yaml:"interval"`
	Count    int           `yaml:"count"`
}

type LogConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
	Channel  string `yaml:"channel"`
}

type MonitorConfig struct {
	Enabled     bool `yaml:"enabled"`
	MetricsPort int  `yaml:"metrics_port"`
}

// ScanJob is a queued acquisition: a base frame swept over a bias range.
type ScanJob struct {
	Name  string     `yaml:"name"`
	Frame scan.Frame `yaml:"frame"`
	Sweep scan.Sweep `yaml:"sweep"`
}

// Load reads and parses the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Instrument: InstrumentConfig{
			Addr:        lockin.DefaultAddr,
			Command:     lockin.DefaultCommand,
			DialTimeout: lockin.DefaultDialTimeout,
			ReadWait:    lockin.DefaultReadWait,
			BufferSize:  lockin.DefaultBufferSize,
		},
		Poll: PollConfig{
			Interval: time.Second,
			Count:    -1,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			Channel:  "lockin_readings",
		},
		Monitor: MonitorConfig{
			MetricsPort: 9090,
		},
	}
}

func (c *Config) validate() error {
	for _, job := range c.Scans {
		if job.Frame.Lines != 0 && !scan.ValidLines(job.Frame.Lines) {
			return fmt.Errorf("scan %q: invalid lines per frame %d", job.Name, job.Frame.Lines)
		}
	}
	return nil
}
