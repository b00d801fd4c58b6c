package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"cryptoMarketAnalysis/internal/finance"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Analysis  AnalysisConfig  `mapstructure:"analysis"`
	CoinGecko CoinGeckoConfig `mapstructure:"coingecko"`
	Report    ReportConfig    `mapstructure:"report"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Storage   StorageConfig   `mapstructure:"storage"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port" validate:"required,numeric"`
	ReportTTL       time.Duration `mapstructure:"report_ttl" validate:"gt=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn warning error"`
}

// AnalysisConfig holds run defaults. AssetIDs is the dashboard's initial
// selection, Universe the list users may pick from.
type AnalysisConfig struct {
	VsCurrency      string   `mapstructure:"vs_currency" validate:"required,alpha"`
	AssetIDs        []string `mapstructure:"asset_ids" validate:"min=1,dive,required"`
	Universe        []string `mapstructure:"universe" validate:"min=1,dive,required"`
	LookbackDays    int      `mapstructure:"lookback_days" validate:"min=2,max=3650"`
	MinLookbackDays int      `mapstructure:"min_lookback_days" validate:"min=2"`
	MaxLookbackDays int      `mapstructure:"max_lookback_days" validate:"gtefield=MinLookbackDays"`
	VolWindow       int      `mapstructure:"vol_window" validate:"min=2"`
	PeriodsPerYear  int      `mapstructure:"periods_per_year" validate:"min=1"`
	MissingPolicy   string   `mapstructure:"missing_policy" validate:"oneof=drop preserve"`
	SkipUnavailable bool     `mapstructure:"skip_unavailable"`
}

type CoinGeckoConfig struct {
	BaseURL         string        `mapstructure:"base_url" validate:"required,url"`
	APIKey          string        `mapstructure:"api_key"`
	APIKeyHeader    string        `mapstructure:"api_key_header" validate:"required"`
	Timeout         time.Duration `mapstructure:"timeout" validate:"gt=0"`
	RequestInterval time.Duration `mapstructure:"request_interval"`
	SnapInterval    time.Duration `mapstructure:"snap_interval"`
}

type ReportConfig struct {
	Timezone string `mapstructure:"timezone"`
	Width    int    `mapstructure:"width" validate:"min=200,max=4000"`
	Height   int    `mapstructure:"height" validate:"min=150,max=4000"`
}

// TelegramConfig enables the bot when Token is set.
type TelegramConfig struct {
	Token      string `mapstructure:"token"`
	WebhookURL string `mapstructure:"webhook_url" validate:"omitempty,url"`
}

func (c TelegramConfig) Enabled() bool { return c.Token != "" }

// OpenAIConfig enables commentary when APIKey is set.
type OpenAIConfig struct {
	APIKey    string `mapstructure:"api_key"`
	Model     string `mapstructure:"model" validate:"required"`
	MaxTokens int    `mapstructure:"max_tokens" validate:"min=16"`
}

func (c OpenAIConfig) Enabled() bool { return c.APIKey != "" }

type StorageConfig struct {
	DSN string `mapstructure:"dsn" validate:"required"`
}

var defaults = map[string]any{
	"server.port":                "9095",
	"server.report_ttl":          "30m",
	"server.shutdown_timeout":    "10s",
	"log.level":                  "info",
	"analysis.vs_currency":       "usd",
	"analysis.asset_ids":         []string{"bitcoin", "ethereum", "solana"},
	"analysis.universe":          []string{"bitcoin", "ethereum", "solana", "binancecoin", "ripple", "cardano", "dogecoin"},
	"analysis.lookback_days":     180,
	"analysis.min_lookback_days": 30,
	"analysis.max_lookback_days": 365,
	"analysis.vol_window":        finance.DefaultVolWindow,
	"analysis.periods_per_year":  finance.DefaultPeriodsPerYear,
	"analysis.missing_policy":    string(finance.DropIncomplete),
	"analysis.skip_unavailable":  false,
	"coingecko.base_url":         "https://api.coingecko.com/api/v3",
	"coingecko.api_key":          "",
	"coingecko.api_key_header":   "x-cg-demo-api-key",
	"coingecko.timeout":          "20s",
	"coingecko.request_interval": "1.2s",
	"coingecko.snap_interval":    "24h",
	"report.timezone":            "UTC",
	"report.width":               900,
	"report.height":              420,
	"telegram.token":             "",
	"telegram.webhook_url":       "",
	"openai.api_key":             "",
	"openai.model":               "gpt-4",
	"openai.max_tokens":          600,
	"storage.dsn":                "file:cma?mode=memory&cache=shared",
}

// legacyEnv keeps the plain variable names used by earlier deployments.
var legacyEnv = map[string]string{
	"server.port":          "PORT",
	"storage.dsn":          "DB_PATH",
	"telegram.token":       "TELEGRAM_BOT_TOKEN",
	"telegram.webhook_url": "WEBHOOK_PUBLIC_URL",
	"openai.api_key":       "OPENAI_API_KEY",
	"coingecko.api_key":    "COINGECKO_API_KEY",
	"log.level":            "LOG_LEVEL",
}

// Load reads defaults, then the optional YAML file at path, then the
// environment (CMA_SECTION_KEY or the legacy names), and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	v.SetEnvPrefix("CMA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		envKey := "CMA_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envKey, legacy); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", legacy, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks struct tags plus the cross-section rules tags cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Telegram.Enabled() && c.Telegram.WebhookURL == "" {
		return errors.New("invalid config: telegram.webhook_url is required when telegram.token is set")
	}
	universe := c.Analysis.UniverseIDs()
	for _, id := range c.Analysis.AssetIDs {
		if !universe.Contains(finance.AssetID(strings.ToLower(id))) {
			return fmt.Errorf("invalid config: analysis.asset_ids contains %q which is not in analysis.universe", id)
		}
	}
	if c.Report.Timezone != "" {
		if _, err := time.LoadLocation(c.Report.Timezone); err != nil {
			return fmt.Errorf("invalid config: report.timezone: %w", err)
		}
	}
	return nil
}

// UniverseIDs returns the configured universe as lowercase asset ids.
func (c AnalysisConfig) UniverseIDs() finance.Universe {
	out := make(finance.Universe, 0, len(c.Universe))
	for _, id := range c.Universe {
		out = append(out, finance.AssetID(strings.ToLower(strings.TrimSpace(id))))
	}
	return out
}

// Finance builds the per-run config for ids and lookbackDays; zero values
// fall back to the configured defaults.
func (c AnalysisConfig) Finance(ids []finance.AssetID, lookbackDays int) finance.AnalysisConfig {
	if len(ids) == 0 {
		ids = make([]finance.AssetID, len(c.AssetIDs))
		for i, id := range c.AssetIDs {
			ids[i] = finance.AssetID(id)
		}
	}
	if lookbackDays == 0 {
		lookbackDays = c.LookbackDays
	}
	return finance.AnalysisConfig{
		VsCurrency:      c.VsCurrency,
		AssetIDs:        ids,
		LookbackDays:    lookbackDays,
		VolWindow:       c.VolWindow,
		PeriodsPerYear:  c.PeriodsPerYear,
		MissingPolicy:   finance.MissingPolicy(c.MissingPolicy),
		SkipUnavailable: c.SkipUnavailable,
	}
}
