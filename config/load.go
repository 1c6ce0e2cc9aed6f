package config

import (
	"fmt"
	"os"
)

// Options controls where Load reads from.
type Options struct {
	// EnvFiles are read with godotenv before the environment is consulted.
	EnvFiles []string
	// Args are the command-line arguments without the program name.
	Args []string
	// Lookup replaces os.LookupEnv, mainly for tests.
	Lookup func(string) (string, bool)
}

// Load builds a validated Config by applying defaults, then .env files,
// then environment variables and finally command-line flags.
func Load(opts Options) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	lookup := opts.Lookup
	if lookup == nil {
		if err := loadDotEnv(opts.EnvFiles...); err != nil {
			return nil, err
		}
		lookup = os.LookupEnv
	}

	if err := parseEnv(cfg, lookup); err != nil {
		return nil, err
	}

	if err := parseFlags(cfg, opts.Args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}
