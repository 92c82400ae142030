package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNormalizeDefaults(t *testing.T) {
	cfg := &Config{
		Telegram:  TelegramConfig{Token: "t", RunMode: " Polling "},
		RateLimit: RateLimitConfig{ExcludeUpdates: []string{" Photo", "", "callback"}},
	}
	if err := Normalize(cfg); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if cfg.Telegram.RunMode != RunModeLongpoll {
		t.Fatalf("run mode = %q", cfg.Telegram.RunMode)
	}
	if got := strings.Join(cfg.RateLimit.ExcludeUpdates, ","); got != "photo,callback" {
		t.Fatalf("exclude = %q", got)
	}
}

func TestNormalizeReportsAllProblems(t *testing.T) {
	cfg := &Config{
		Telegram:  TelegramConfig{RunMode: "webhook"},
		RateLimit: RateLimitConfig{ExcludeUpdates: []string{"sticker"}},
	}
	err := Normalize(cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"telegram.token", "webhook.url", "webhook.listen", "webhook.port", "sticker"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %s", err, want)
		}
	}
}

func TestNormalizeRejectsUnknownMode(t *testing.T) {
	cfg := &Config{Telegram: TelegramConfig{Token: "t", RunMode: "push"}}
	if err := Normalize(cfg); err == nil || !strings.Contains(err.Error(), "push") {
		t.Fatalf("err = %v", err)
	}
}

func TestLoadOverlaysEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := "telegram:\n  token: from-file\n  run_mode: longpoll\nlogging:\n  level: info\n"
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("BOT_TOKEN", "from-env")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "from-env" || cfg.Logging.Level != "debug" {
		t.Fatalf("env overlay not applied: %+v", cfg)
	}
}

func TestDecodeMissingFile(t *testing.T) {
	var cfg Config
	if err := Decode(filepath.Join(t.TempDir(), "nope.yaml"), &cfg); err == nil {
		t.Fatal("expected error for missing file")
	}
}
