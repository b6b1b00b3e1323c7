// SPDX-License-Identifier: MIT

package config

import (
	"bytes"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Load builds the effective configuration: defaults, then the YAML file at
// path (if non-empty), then OPGATE_* environment overrides. The result is
// validated before being returned.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		// Strict decoding: unknown keys are configuration mistakes.
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v, ok := os.LookupEnv("OPGATE_LISTEN"); ok && v != "" {
		cfg.ListenAddr = v
	}
	if v, ok := os.LookupEnv("OPGATE_METRICS_LISTEN"); ok && v != "" {
		cfg.MetricsAddr = v
	}
	if v, ok := os.LookupEnv("OPGATE_LOG_LEVEL"); ok && v != "" {
		cfg.LogLevel = v
	}
	if v, ok := os.LookupEnv("OPGATE_JOURNAL_PATH"); ok && v != "" {
		cfg.JournalPath = v
	}
	if v, ok := os.LookupEnv("OPGATE_STATE_FILE"); ok && v != "" {
		cfg.StateFile = v
	}
	if v, ok := os.LookupEnv("OPGATE_REDIS_ADDR"); ok && v != "" {
		if cfg.Redis == nil {
			cfg.Redis = &Redis{}
		}
		cfg.Redis.Addr = v
	}
	if cfg.Redis != nil {
		if v, ok := os.LookupEnv("OPGATE_REDIS_PASSWORD"); ok {
			cfg.Redis.Password = v
		}
		if v, ok := os.LookupEnv("OPGATE_REDIS_CHANNEL"); ok && v != "" {
			cfg.Redis.Channel = v
		}
		if v, ok := os.LookupEnv("OPGATE_REDIS_DB"); ok && v != "" {
			if db, err := strconv.Atoi(v); err == nil {
				cfg.Redis.DB = db
			}
		}
	}
}
