// Package config is the scanner bot configuration: the core sections plus the
// bot's own.
package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"

	"github.com/m3rciful/scanbot/bots/scanner/followup"
	"github.com/m3rciful/scanbot/bots/scanner/payment"
	coreconfig "github.com/m3rciful/scanbot/core/config"
	coredatabase "github.com/m3rciful/scanbot/core/database"
)

// Payment modes.
const (
	PaymentModeStub   = "stub"
	PaymentModeLedger = "ledger"
)

// Config is the full bot configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database coredatabase.Config `yaml:"database"`
	AI       AIConfig            `yaml:"ai"`
	Payment  PaymentConfig       `yaml:"payment"`
	Funnel   FunnelConfig        `yaml:"funnel"`
	Render   RenderConfig        `yaml:"render"`
	HTTP     HTTPConfig          `yaml:"http"`
}

// AIConfig selects the Ark chat model used for analyses.
type AIConfig struct {
	APIKey    string `yaml:"api_key" envconfig:"ARK_API_KEY"`
	AccessKey string `yaml:"access_key" envconfig:"ARK_ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" envconfig:"ARK_SECRET_KEY"`
	BaseURL   string `yaml:"base_url" envconfig:"ARK_BASE_URL"`
	Region    string `yaml:"region" envconfig:"ARK_REGION"`
	Model     string `yaml:"model" envconfig:"ARK_MODEL"`
	// PriceModel is the price-table key used for cost accounting; defaults to Model.
	PriceModel  string   `yaml:"price_model" envconfig:"AI_PRICE_MODEL"`
	Temperature *float32 `yaml:"temperature" envconfig:"ARK_TEMPERATURE"`
	MaxTokens   *int     `yaml:"max_tokens" envconfig:"ARK_MAX_TOKENS"`
	// SystemPromptFile replaces the built-in system prompt when set.
	SystemPromptFile string `yaml:"system_prompt_file" envconfig:"AI_SYSTEM_PROMPT_FILE"`
}

// NewChatModel builds the Ark chat model.
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	return ark.NewChatModel(ctx, &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: c.Temperature,
	})
}

// SystemPrompt returns the configured prompt file contents, or "" for the default.
func (c AIConfig) SystemPrompt() (string, error) {
	if c.SystemPromptFile == "" {
		return "", nil
	}
	data, err := os.ReadFile(c.SystemPromptFile)
	if err != nil {
		return "", fmt.Errorf("read system prompt: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// PaymentConfig controls how purchases are confirmed.
type PaymentConfig struct {
	Mode           string           `yaml:"mode" envconfig:"PAYMENT_MODE"`
	DefaultCredits int              `yaml:"default_credits" envconfig:"PAYMENT_DEFAULT_CREDITS"`
	Tariffs        []payment.Tariff `yaml:"tariffs"`
	// StripeWebhookSecret is the endpoint signing secret (whsec_...).
	StripeWebhookSecret string `yaml:"stripe_webhook_secret" envconfig:"STRIPE_WEBHOOK_SECRET"`
}

// FollowupConfig overrides one reminder stage.
type FollowupConfig struct {
	After  time.Duration `yaml:"after"`
	Text   string        `yaml:"text"`
	Button string        `yaml:"button"`
}

// FunnelConfig tunes the conversation.
type FunnelConfig struct {
	SessionTTL      time.Duration    `yaml:"session_ttl" envconfig:"FUNNEL_SESSION_TTL"`
	SweepInterval   time.Duration    `yaml:"sweep_interval" envconfig:"FUNNEL_SWEEP_INTERVAL"`
	CallTimeout     time.Duration    `yaml:"call_timeout" envconfig:"FUNNEL_CALL_TIMEOUT"`
	AnalysisTimeout time.Duration    `yaml:"analysis_timeout" envconfig:"FUNNEL_ANALYSIS_TIMEOUT"`
	PhotosDir       string           `yaml:"photos_dir" envconfig:"FUNNEL_PHOTOS_DIR"`
	DisableFollowup bool             `yaml:"disable_followups" envconfig:"FUNNEL_DISABLE_FOLLOWUPS"`
	Followups       []FollowupConfig `yaml:"followups"`
}

// Stages returns the configured reminders or the defaults.
func (f FunnelConfig) Stages() []followup.Stage {
	if f.DisableFollowup {
		return nil
	}
	if len(f.Followups) == 0 {
		return followup.DefaultStages()
	}
	stages := make([]followup.Stage, 0, len(f.Followups))
	for _, s := range f.Followups {
		stages = append(stages, followup.Stage{After: s.After, Text: s.Text, Button: s.Button})
	}
	return stages
}

// RenderConfig locates fonts and the scratch directory for documents.
type RenderConfig struct {
	FontDir     string `yaml:"font_dir" envconfig:"RENDER_FONT_DIR"`
	RegularFont string `yaml:"regular_font"`
	BoldFont    string `yaml:"bold_font"`
	OutputDir   string `yaml:"output_dir" envconfig:"RENDER_OUTPUT_DIR"`
}

// HTTPConfig is the out-of-band HTTP server.
type HTTPConfig struct {
	// Listen is the bind address; empty disables the server.
	Listen       string `yaml:"listen" envconfig:"HTTP_LISTEN"`
	ReportsToken string `yaml:"reports_token" envconfig:"REPORTS_TOKEN"`
}

// Load reads the YAML file at path, overlays the environment and validates.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates required settings and fills defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return err
	}
	if err := cfg.Database.Normalize(); err != nil {
		return err
	}

	if cfg.AI.Model == "" {
		return fmt.Errorf("ai.model is required")
	}
	if cfg.AI.APIKey == "" && (cfg.AI.AccessKey == "" || cfg.AI.SecretKey == "") {
		return fmt.Errorf("ai.api_key or ai.access_key+ai.secret_key is required")
	}
	if cfg.AI.PriceModel == "" {
		cfg.AI.PriceModel = cfg.AI.Model
	}

	mode := strings.ToLower(strings.TrimSpace(cfg.Payment.Mode))
	if mode == "" {
		mode = PaymentModeStub
	}
	switch mode {
	case PaymentModeStub:
	case PaymentModeLedger:
		if cfg.Payment.StripeWebhookSecret == "" {
			return fmt.Errorf("payment.stripe_webhook_secret is required when payment.mode is 'ledger'")
		}
	default:
		return fmt.Errorf("invalid payment.mode %q; allowed: stub, ledger", cfg.Payment.Mode)
	}
	cfg.Payment.Mode = mode
	if cfg.Payment.DefaultCredits <= 0 {
		cfg.Payment.DefaultCredits = 1
	}
	if len(cfg.Payment.Tariffs) == 0 {
		cfg.Payment.Tariffs = payment.DefaultTariffs()
	}
	for i, t := range cfg.Payment.Tariffs {
		if t.ID == "" || t.URL == "" {
			return fmt.Errorf("payment.tariffs[%d]: id and url are required", i)
		}
		if t.Credits <= 0 {
			return fmt.Errorf("payment.tariffs[%d]: credits must be > 0", i)
		}
	}

	f := &cfg.Funnel
	if f.SessionTTL <= 0 {
		f.SessionTTL = 96 * time.Hour
	}
	if f.SweepInterval <= 0 {
		f.SweepInterval = 10 * time.Minute
	}
	if f.CallTimeout <= 0 {
		f.CallTimeout = 15 * time.Second
	}
	if f.AnalysisTimeout <= 0 {
		f.AnalysisTimeout = 5 * time.Minute
	}
	if f.PhotosDir == "" {
		f.PhotosDir = "data/photos"
	}
	for i, s := range f.Followups {
		if s.After <= 0 || strings.TrimSpace(s.Text) == "" {
			return fmt.Errorf("funnel.followups[%d]: after and text are required", i)
		}
	}

	if cfg.Render.FontDir == "" {
		cfg.Render.FontDir = "/usr/share/fonts/truetype/dejavu"
	}
	if cfg.Render.OutputDir == "" {
		cfg.Render.OutputDir = "data/reports"
	}
	return nil
}
