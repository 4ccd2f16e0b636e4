package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		LockTTL  string `yaml:"lockTTL"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Catalog struct {
		TTL string `yaml:"ttl"`
	} `yaml:"catalog"`
	Grading struct {
		Timezone    string `yaml:"timezone"`
		LockTimeout string `yaml:"lockTimeout"`
	} `yaml:"grading"`
	Storage struct {
		MaxConsecutiveFailures int    `yaml:"maxConsecutiveFailures"`
		CoolDown               string `yaml:"coolDown"`
	} `yaml:"storage"`
}

// Load reads YAML config from path. Environment variables override the file:
// REDIS_ADDR, POSTGRES_URL and GRADING_TIMEZONE.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	applyEnv(&cfg)
	if _, err := cfg.Location(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("POSTGRES_URL"); v != "" {
		cfg.Postgres.URL = v
	}
	if v := os.Getenv("GRADING_TIMEZONE"); v != "" {
		cfg.Grading.Timezone = v
	}
}

// Location resolves the timezone used for calendar-month attempt limits.
func (c Config) Location() (*time.Location, error) {
	if c.Grading.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Grading.Timezone)
	if err != nil {
		return nil, fmt.Errorf("grading timezone: %w", err)
	}
	return loc, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
