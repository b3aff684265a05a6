// Package config loads the shipledger TOML configuration, applies environment
// overrides and validates the result.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/Masterminds/semver/v3"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/nurjigit18/shipledger/internal/common/apperrors"
	"github.com/nurjigit18/shipledger/internal/shipbot/directory"
	"github.com/nurjigit18/shipledger/internal/shipbot/parse"
)

// ConfigFormatVersion is the current version of the configuration file format.
const ConfigFormatVersion = "0.1.0"

// supportedFormats accepts any 0.1.x file.
const supportedFormats = "~0.1.0"

// Environment variables that override file values.
const (
	EnvDiscordToken    = "SHIPLEDGER_DISCORD_TOKEN"
	EnvSheetID         = "SHIPLEDGER_SHEET_ID"
	EnvLedgerDSN       = "SHIPLEDGER_LEDGER_DSN"
	EnvGoogleCreds     = "GOOGLE_CREDS_JSON"
	EnvAdminIDs        = "SHIPLEDGER_ADMIN_IDS"
	EnvJWTSecret       = "SHIPLEDGER_JWT_SECRET"
	EnvLogLevel        = "SHIPLEDGER_LOG_LEVEL"
	EnvFactoriesConfig = "FACTORIES_CONFIG"
)

var ErrConfig apperrors.Error = apperrors.New("invalid configuration").SetKind(apperrors.KindConfig)

// LedgerConfig selects and configures the ledger backend.
type LedgerConfig struct {
	Backend         string `toml:"backend" validate:"oneof=memory sqlite postgres gsheets"`
	DSN             string `toml:"dsn"`              // sqlite path or postgres DSN
	SheetID         string `toml:"sheet_id"`         // Google spreadsheet ID
	CredentialsFile string `toml:"credentials_file"` // service account key file
	CredentialsJSON string `toml:"-"`                // inline key from the environment
	DefaultSheet    string `toml:"default_sheet"`    // sheet for users without a factory
}

// RetryConfig bounds ledger retries.
type RetryConfig struct {
	Attempts uint   `toml:"attempts" validate:"gte=1,lte=10"`
	Delay    string `toml:"delay"`
	MaxDelay string `toml:"max_delay"`
}

// SessionConfig controls conversation lifetimes.
type SessionConfig struct {
	IdleTimeout       string `toml:"idle_timeout"`
	SweepInterval     string `toml:"sweep_interval"`
	DirectoryCacheTTL string `toml:"directory_cache_ttl"`
	CommitTimeout     string `toml:"commit_timeout"`
}

type NotifyConfig struct {
	AdminIDs []string `toml:"admin_ids"`
}

type DiscordConfig struct {
	Token         string `toml:"token"`
	CommandPrefix string `toml:"command_prefix" validate:"required"`
}

// ServerConfig configures the admin HTTP API.
type ServerConfig struct {
	Enabled     bool   `toml:"enabled"`
	Port        string `toml:"port" validate:"required_if=Enabled true"`
	HandleCORS  bool   `toml:"handle_cors"`
	JWTSecret   string `toml:"jwt_secret" validate:"required_if=Enabled true"`
	TokenExpiry string `toml:"token_expiry"`
}

type SizesConfig struct {
	Labels []string `toml:"labels" validate:"required,min=1,dive,required"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Pretty bool   `toml:"pretty"`
}

// Config holds every configuration parameter of the bot.
type Config struct {
	FormatVersion string `toml:"format_version"`

	Ledger  LedgerConfig  `toml:"ledger"`
	Retry   RetryConfig   `toml:"retry"`
	Session SessionConfig `toml:"session"`
	Notify  NotifyConfig  `toml:"notify"`
	Discord DiscordConfig `toml:"discord"`
	Server  ServerConfig  `toml:"server"`
	Sizes   SizesConfig   `toml:"sizes"`
	Log     LogConfig     `toml:"log"`

	// Factories is the fallback factory assignment from FACTORIES_CONFIG.
	Factories map[string][]directory.Factory `toml:"-"`
}

// Default returns a configuration usable for local runs with the memory backend.
func Default() *Config {
	return &Config{
		FormatVersion: ConfigFormatVersion,
		Ledger:        LedgerConfig{Backend: "memory"},
		Retry:         RetryConfig{Attempts: 3, Delay: "1s"},
		Session:       SessionConfig{IdleTimeout: "30m", SweepInterval: "1m", DirectoryCacheTTL: "5m", CommitTimeout: "2m"},
		Discord:       DiscordConfig{CommandPrefix: "!"},
		Server:        ServerConfig{Port: "8680", TokenExpiry: "1d"},
		Sizes:         SizesConfig{Labels: append([]string(nil), parse.DefaultSizeLabels...)},
		Log:           LogConfig{Level: "info"},
	}
}

// Load reads filename over the defaults, then applies .env and environment
// overrides and validates. An empty filename uses defaults and environment only.
func Load(filename string) (*Config, error) {
	cfg := Default()
	if filename != "" {
		content, err := os.ReadFile(filename)
		if err != nil {
			return nil, ErrConfig.MsgErr("error reading config file", err)
		}
		if _, err := toml.Decode(string(content), cfg); err != nil {
			return nil, ErrConfig.MsgErr("error parsing config file", err)
		}
	}

	_ = godotenv.Load() // a missing .env is fine
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv(EnvDiscordToken); v != "" {
		c.Discord.Token = v
	}
	if v := getenv(EnvSheetID); v != "" {
		c.Ledger.SheetID = v
	}
	if v := getenv(EnvLedgerDSN); v != "" {
		c.Ledger.DSN = v
	}
	if v := getenv(EnvGoogleCreds); v != "" {
		c.Ledger.CredentialsJSON = v
	}
	if v := getenv(EnvJWTSecret); v != "" {
		c.Server.JWTSecret = v
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	if v := getenv(EnvAdminIDs); v != "" {
		c.Notify.AdminIDs = nil
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				c.Notify.AdminIDs = append(c.Notify.AdminIDs, id)
			}
		}
	}
	if v := getenv(EnvFactoriesConfig); v != "" {
		f, err := directory.ParseFallback(v)
		if err != nil {
			return ErrConfig.MsgErr("invalid "+EnvFactoriesConfig, err)
		}
		c.Factories = f
	}
	return nil
}

// Validate checks the configuration and normalizes size labels.
func (c *Config) Validate() error {
	if err := checkFormatVersion(c.FormatVersion); err != nil {
		return err
	}
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return ErrConfig.MsgErr("invalid configuration", err)
	}

	durations := map[string]string{
		"retry.delay":                 c.Retry.Delay,
		"retry.max_delay":             c.Retry.MaxDelay,
		"session.idle_timeout":        c.Session.IdleTimeout,
		"session.sweep_interval":      c.Session.SweepInterval,
		"session.directory_cache_ttl": c.Session.DirectoryCacheTTL,
		"session.commit_timeout":      c.Session.CommitTimeout,
		"server.token_expiry":         c.Server.TokenExpiry,
	}
	for key, v := range durations {
		if v == "" {
			continue
		}
		if _, err := ParseDuration(v); err != nil {
			return ErrConfig.Msg(fmt.Sprintf("invalid %s: %v", key, err))
		}
	}

	if c.Server.JWTSecret != "" && len(c.Server.JWTSecret) < 16 {
		return ErrConfig.Msg("server.jwt_secret must be at least 16 characters")
	}

	labels := make([]string, 0, len(c.Sizes.Labels))
	for _, l := range c.Sizes.Labels {
		l = strings.ToUpper(strings.TrimSpace(l))
		if !parse.IsSizeLabel(l) {
			return ErrConfig.Msg(fmt.Sprintf("invalid size label %q", l))
		}
		labels = append(labels, l)
	}
	c.Sizes.Labels = labels

	switch c.Ledger.Backend {
	case "postgres":
		if c.Ledger.DSN == "" {
			return ErrConfig.Msg("ledger.dsn is required for the postgres backend")
		}
	case "gsheets":
		if c.Ledger.SheetID == "" {
			return ErrConfig.Msg("ledger.sheet_id is required for the gsheets backend")
		}
		if c.Ledger.CredentialsFile == "" && c.Ledger.CredentialsJSON == "" {
			return ErrConfig.Msg("ledger.credentials_file or " + EnvGoogleCreds + " is required for the gsheets backend")
		}
	}
	return nil
}

// RequireDiscord checks the settings needed to connect the chat transport.
func (c *Config) RequireDiscord() error {
	if strings.TrimSpace(c.Discord.Token) == "" {
		return ErrConfig.Msg("discord.token or " + EnvDiscordToken + " is required")
	}
	return nil
}

func checkFormatVersion(v string) error {
	if v == "" {
		return ErrConfig.Msg("format_version is required")
	}
	constraint, err := semver.NewConstraint(supportedFormats)
	if err != nil {
		return ErrConfig.MsgErr("bad format constraint", err)
	}
	ver, err := semver.NewVersion(v)
	if err != nil {
		return ErrConfig.MsgErr("invalid format_version "+v, err)
	}
	if !constraint.Check(ver) {
		return ErrConfig.Msg("unsupported config file format version: " + v)
	}
	return nil
}

// ParseDuration accepts Go durations ("90s", "1h30m") and whole days or years
// ("7d", "1y").
func ParseDuration(input string) (time.Duration, error) {
	input = strings.TrimSpace(input)
	if d, err := time.ParseDuration(input); err == nil {
		if d < 0 {
			return 0, errors.New("duration must not be negative")
		}
		return d, nil
	}
	if len(input) < 2 {
		return 0, fmt.Errorf("invalid duration %q", input)
	}
	unit := input[len(input)-1:]
	value, err := strconv.Atoi(input[:len(input)-1])
	if err != nil || value < 0 {
		return 0, fmt.Errorf("invalid duration %q", input)
	}
	switch unit {
	case "d":
		return time.Duration(value) * 24 * time.Hour, nil
	case "y":
		return time.Duration(value) * 365 * 24 * time.Hour, nil
	}
	return 0, fmt.Errorf("unknown time unit in %q", input)
}

func mustDuration(v string, fallback time.Duration) time.Duration {
	if v == "" {
		return fallback
	}
	d, err := ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func (c *Config) RetryDelay() time.Duration    { return mustDuration(c.Retry.Delay, time.Second) }
func (c *Config) RetryMaxDelay() time.Duration { return mustDuration(c.Retry.MaxDelay, 0) }
func (c *Config) IdleTimeout() time.Duration {
	return mustDuration(c.Session.IdleTimeout, 30*time.Minute)
}
func (c *Config) SweepInterval() time.Duration {
	return mustDuration(c.Session.SweepInterval, time.Minute)
}
func (c *Config) DirectoryCacheTTL() time.Duration {
	return mustDuration(c.Session.DirectoryCacheTTL, 5*time.Minute)
}
func (c *Config) CommitTimeout() time.Duration {
	return mustDuration(c.Session.CommitTimeout, 2*time.Minute)
}
func (c *Config) TokenExpiry() time.Duration { return mustDuration(c.Server.TokenExpiry, 24*time.Hour) }
