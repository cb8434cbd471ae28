package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/boddenberg/card-advisor-bfa-go/internal/domain"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
// Values come from defaults, an optional config file (ADVISOR_CONFIG) and
// environment variables, in increasing order of precedence.
type Config struct {
	// Server
	Port     int    `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`

	// HTTP client
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`

	// Resilience
	MaxRetries     int           `mapstructure:"max_retries"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxConcurrency int           `mapstructure:"max_concurrency"`

	// Cache
	CacheTTL time.Duration `mapstructure:"cache_ttl"`

	// Observability
	OTLPEndpoint string `mapstructure:"otel_exporter_otlp_endpoint"`

	// Service token (front-end → BFA)
	JWTSecret    string `mapstructure:"jwt_secret"`
	AuthDisabled bool   `mapstructure:"auth_disabled"`

	// Advisory
	TimeZone        string        `mapstructure:"time_zone"`
	PendingTTL      time.Duration `mapstructure:"pending_ttl"`
	SweepInterval   time.Duration `mapstructure:"sweep_interval"`
	ThresholdDays   int           `mapstructure:"threshold_days"`
	TopAlternatives int           `mapstructure:"top_alternatives"`
	ExemptCards     []string      `mapstructure:"exempt_cards"`
	RowStatus       string        `mapstructure:"row_status"`

	// Card cycles: inline [[cards]] tables, a separate file, or CARD_CYCLES.
	Cards      []domain.CycleConfig `mapstructure:"cards"`
	CardsFile  string               `mapstructure:"cards_file"`
	CardCycles string               `mapstructure:"card_cycles"`

	Sheets SheetsConfig `mapstructure:"sheets"`
}

// SheetsConfig locates the spreadsheet rows are appended to.
// An empty SpreadsheetID disables the spreadsheet and rows are only logged.
type SheetsConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	SpreadsheetID  string `mapstructure:"spreadsheet_id"`
	Range          string `mapstructure:"range"`
	KeyringService string `mapstructure:"keyring_service"`
	KeyringAccount string `mapstructure:"keyring_account"`
}

// Load reads configuration with defaults. Env vars use the key names
// upper-cased with dots replaced by underscores (sheets.range → SHEETS_RANGE).
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")

	v.SetDefault("http_timeout", 10*time.Second)

	v.SetDefault("max_retries", 3)
	v.SetDefault("initial_backoff", 100*time.Millisecond)
	v.SetDefault("max_concurrency", 8)

	v.SetDefault("cache_ttl", time.Minute)

	v.SetDefault("otel_exporter_otlp_endpoint", "")

	v.SetDefault("jwt_secret", "")
	v.SetDefault("auth_disabled", false)

	v.SetDefault("time_zone", "America/Bogota")
	v.SetDefault("pending_ttl", 5*time.Minute)
	v.SetDefault("sweep_interval", 30*time.Second)
	v.SetDefault("threshold_days", 5)
	v.SetDefault("top_alternatives", 3)
	v.SetDefault("exempt_cards", []string{})
	v.SetDefault("row_status", "Activo")

	v.SetDefault("cards_file", "")
	v.SetDefault("card_cycles", "")

	v.SetDefault("sheets.base_url", "https://sheets.googleapis.com")
	v.SetDefault("sheets.spreadsheet_id", "")
	v.SetDefault("sheets.range", "Compras!A:G")
	v.SetDefault("sheets.keyring_service", "card-advisor")
	v.SetDefault("sheets.keyring_account", "sheets-token")

	if path := os.Getenv("ADVISOR_CONFIG"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &c, nil
}

// ErrMissingJWTSecret is returned by Validate when service tokens are
// required but no signing secret was configured.
var ErrMissingJWTSecret = errors.New("JWT_SECRET is required unless AUTH_DISABLED=true")

// Validate rejects configurations the server must not start with.
func (c *Config) Validate() error {
	if !c.AuthDisabled && strings.TrimSpace(c.JWTSecret) == "" {
		return ErrMissingJWTSecret
	}
	return nil
}

// Location resolves TimeZone; an empty zone is UTC.
func (c *Config) Location() (*time.Location, error) {
	if c.TimeZone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("time zone %q: %w", c.TimeZone, err)
	}
	return loc, nil
}

// CycleConfigs returns the card catalog. CARD_CYCLES wins over a cards
// file, which wins over cards declared in the main config file.
func (c *Config) CycleConfigs() ([]domain.CycleConfig, error) {
	switch {
	case strings.TrimSpace(c.CardCycles) != "":
		return ParseCardCycles(c.CardCycles)
	case c.CardsFile != "":
		return LoadCatalog(c.CardsFile)
	default:
		return c.Cards, nil
	}
}
