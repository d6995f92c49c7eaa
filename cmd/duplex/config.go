package main

import (
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config represents the duplex configuration file (~/.config/duplex/config.yaml).
// Numeric fields are pointers so we can distinguish "not set" from zero values.
type Config struct {
	Backend     string `yaml:"backend"`
	Kind        string `yaml:"kind"`
	Dims        []int  `yaml:"dims"`
	ElementSize *int64 `yaml:"element_size"`
	Hint        string `yaml:"hint"`
	Contexts    *int64 `yaml:"contexts"`
	Iterations  *int64 `yaml:"iterations"`

	Rate *float64 `yaml:"rate"`

	// Output
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Server
	ServerAddress string `yaml:"server_address"`
}

func configPath() string {
	if p := os.Getenv("DUPLEX_CONFIG"); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "duplex", "config.yaml")
}

// applyWorkloadConfig applies config file defaults to the workload flag
// variables when the corresponding CLI flag was not explicitly set.
func applyWorkloadConfig(c *cli.Command, cfg Config) {
	if cfg.Backend != "" && !c.IsSet("backend") {
		backendName = cfg.Backend
	}
	if cfg.Kind != "" && !c.IsSet("kind") {
		kind = cfg.Kind
	}
	if len(cfg.Dims) > 0 && !c.IsSet("dims") {
		dims = formatDims(cfg.Dims)
	}
	if cfg.ElementSize != nil && !c.IsSet("element-size") {
		elementSize = *cfg.ElementSize
	}
	if cfg.Hint != "" && !c.IsSet("hint") {
		hint = cfg.Hint
	}
	if cfg.Contexts != nil && !c.IsSet("contexts") {
		contexts = *cfg.Contexts
	}
	if cfg.Iterations != nil && !c.IsSet("iterations") {
		iterations = *cfg.Iterations
	}
	if cfg.Rate != nil && !c.IsSet("rate") {
		pace = *cfg.Rate
	}
}

func applyLoggingConfig(c *cli.Command, cfg Config) {
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
}

// applyServeConfig applies config file defaults to serve command variables.
func applyServeConfig(c *cli.Command, cfg Config, addr *string) {
	applyWorkloadConfig(c, cfg)
	if cfg.ServerAddress != "" && !c.IsSet("addr") {
		*addr = cfg.ServerAddress
	}
}

// LoadConfig reads the config file. Returns a zero Config if the file doesn't exist.
func LoadConfig() Config {
	return loadConfigFile(configPath())
}

func loadConfigFile(path string) Config {
	if path == "" {
		return Config{}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}
	}
	return cfg
}
