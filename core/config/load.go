package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Load reads, overlays and validates a core-only configuration.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Decode fills out from the YAML file at path, then overlays environment
// variables. Bot configs embed Config inline and decode through here.
func Decode(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := envconfig.Process("", out); err != nil {
		return fmt.Errorf("config: env overlay: %w", err)
	}
	return nil
}

// Normalize validates cfg and canonicalizes enumerations in place. Every
// problem found is reported, not just the first.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return errors.New("config: nil config")
	}
	var errs []error
	if cfg.Telegram.Token == "" {
		errs = append(errs, errors.New("telegram.token is required"))
	}
	errs = append(errs, cfg.normalizeRunMode()...)
	errs = append(errs, cfg.normalizeRateLimit()...)
	return errors.Join(errs...)
}

func (cfg *Config) normalizeRunMode() []error {
	mode := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	switch mode {
	case "", "polling":
		mode = RunModeLongpoll
	}
	cfg.Telegram.RunMode = mode

	var errs []error
	switch mode {
	case RunModeWebhook:
		if strings.TrimSpace(cfg.Webhook.URL) == "" {
			errs = append(errs, errors.New("webhook.url is required in webhook mode"))
		}
		if strings.TrimSpace(cfg.Webhook.Listen) == "" {
			errs = append(errs, errors.New("webhook.listen is required in webhook mode"))
		}
		if cfg.Webhook.Port <= 0 {
			errs = append(errs, errors.New("webhook.port must be > 0 in webhook mode"))
		}
	case RunModeLongpoll:
		if cfg.Telegram.LongPollTimeoutSeconds < 0 {
			errs = append(errs, errors.New("telegram.longpoll_timeout_seconds must be >= 0"))
		}
	default:
		errs = append(errs, fmt.Errorf("telegram.run_mode %q is not one of webhook, longpoll", mode))
	}
	return errs
}

var updateKinds = []string{UpdateCallback, UpdateMessage, UpdatePhoto}

func (cfg *Config) normalizeRateLimit() []error {
	var errs []error
	if cfg.RateLimit.IntervalMS < 0 {
		errs = append(errs, errors.New("rate_limit.interval_ms must be >= 0"))
	}
	kinds := cfg.RateLimit.ExcludeUpdates[:0]
	for _, v := range cfg.RateLimit.ExcludeUpdates {
		kind := strings.ToLower(strings.TrimSpace(v))
		switch {
		case kind == "":
			continue
		case !slices.Contains(updateKinds, kind):
			errs = append(errs, fmt.Errorf("rate_limit.exclude_updates: unknown kind %q", v))
			continue
		}
		kinds = append(kinds, kind)
	}
	cfg.RateLimit.ExcludeUpdates = kinds
	return errs
}
