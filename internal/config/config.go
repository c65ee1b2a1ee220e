// Package config loads the editor server settings from a YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Addr           string        `yaml:"addr"`
	BaseURL        string        `yaml:"base_url"`
	DataDir        string        `yaml:"data_dir"`
	AutosaveDelay  time.Duration `yaml:"autosave_delay"`
	BannerTimeout  time.Duration `yaml:"banner_timeout"`
	HistoryLimit   int           `yaml:"history_limit"`
	LogLevel       string        `yaml:"log_level"`
	SessionTimeout time.Duration `yaml:"session_timeout"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Addr:           ":8080",
		BaseURL:        "http://localhost:8080",
		DataDir:        "DATA",
		AutosaveDelay:  2 * time.Second,
		BannerTimeout:  3 * time.Second,
		LogLevel:       "info",
		SessionTimeout: time.Hour,
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr is empty"))
	}
	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir is empty"))
	}
	if c.AutosaveDelay <= 0 {
		errs = append(errs, fmt.Errorf("autosave_delay must be positive, got %s", c.AutosaveDelay))
	}
	if c.BannerTimeout <= 0 {
		errs = append(errs, fmt.Errorf("banner_timeout must be positive, got %s", c.BannerTimeout))
	}
	if c.HistoryLimit < 0 {
		errs = append(errs, fmt.Errorf("history_limit must not be negative, got %d", c.HistoryLimit))
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Logger builds the root logger for c.
func (c Config) Logger() *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if lvl, err := logrus.ParseLevel(c.LogLevel); err == nil {
		log.SetLevel(lvl)
	}
	return log
}
