package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nurjigit18/shipledger/internal/common/apperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
format_version = "0.1.0"

[ledger]
backend = "sqlite"
dsn = "data/ledger.db"
default_sheet = "main"

[retry]
attempts = 5
delay = "200ms"
max_delay = "5s"

[session]
idle_timeout = "45m"
directory_cache_ttl = "1d"

[notify]
admin_ids = ["42"]

[discord]
token = "file-token"
command_prefix = "/"

[server]
enabled = true
port = "9000"
jwt_secret = "0123456789abcdef0123"

[sizes]
labels = ["s", "M", "L", "2XL"]

[log]
level = "debug"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shipledger.conf")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func clearEnv(t *testing.T) {
	for _, k := range []string{EnvDiscordToken, EnvSheetID, EnvLedgerDSN, EnvGoogleCreds,
		EnvAdminIDs, EnvJWTSecret, EnvLogLevel, EnvFactoriesConfig} {
		t.Setenv(k, "")
	}
}

func TestLoad(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Ledger.Backend)
	assert.Equal(t, "main", cfg.Ledger.DefaultSheet)
	assert.Equal(t, uint(5), cfg.Retry.Attempts)
	assert.Equal(t, 200*time.Millisecond, cfg.RetryDelay())
	assert.Equal(t, 5*time.Second, cfg.RetryMaxDelay())
	assert.Equal(t, 45*time.Minute, cfg.IdleTimeout())
	assert.Equal(t, time.Minute, cfg.SweepInterval())
	assert.Equal(t, 24*time.Hour, cfg.DirectoryCacheTTL())
	assert.Equal(t, []string{"42"}, cfg.Notify.AdminIDs)
	assert.Equal(t, "/", cfg.Discord.CommandPrefix)
	assert.Equal(t, []string{"S", "M", "L", "2XL"}, cfg.Sizes.Labels)
	assert.NoError(t, cfg.RequireDiscord())
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Ledger.Backend)
	assert.Equal(t, 30*time.Minute, cfg.IdleTimeout())
	assert.Equal(t, 2*time.Minute, cfg.CommitTimeout())
	assert.Len(t, cfg.Sizes.Labels, 11)
	assert.Error(t, cfg.RequireDiscord())
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvDiscordToken, "env-token")
	t.Setenv(EnvAdminIDs, " 1, 2 ,,3")
	t.Setenv(EnvFactoriesConfig, `{"7": ["north", {"name": "South", "tab_name": "south"}]}`)

	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	assert.Equal(t, "env-token", cfg.Discord.Token)
	assert.Equal(t, []string{"1", "2", "3"}, cfg.Notify.AdminIDs)
	require.Len(t, cfg.Factories["7"], 2)
	assert.Equal(t, "South", cfg.Factories["7"][1].Name)

	t.Setenv(EnvFactoriesConfig, `{not json`)
	_, err = Load(writeConfig(t, sampleConfig))
	assert.Equal(t, apperrors.KindConfig, apperrors.KindOf(err))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		ok     bool
	}{
		{"defaults", func(c *Config) {}, true},
		{"missing format", func(c *Config) { c.FormatVersion = "" }, false},
		{"future format", func(c *Config) { c.FormatVersion = "0.2.0" }, false},
		{"patch format", func(c *Config) { c.FormatVersion = "0.1.4" }, true},
		{"unknown backend", func(c *Config) { c.Ledger.Backend = "excel" }, false},
		{"postgres without dsn", func(c *Config) { c.Ledger.Backend = "postgres" }, false},
		{"gsheets without creds", func(c *Config) {
			c.Ledger.Backend = "gsheets"
			c.Ledger.SheetID = "abc"
		}, false},
		{"gsheets with inline creds", func(c *Config) {
			c.Ledger.Backend = "gsheets"
			c.Ledger.SheetID = "abc"
			c.Ledger.CredentialsJSON = "{}"
		}, true},
		{"zero attempts", func(c *Config) { c.Retry.Attempts = 0 }, false},
		{"bad duration", func(c *Config) { c.Session.IdleTimeout = "soon" }, false},
		{"bad size label", func(c *Config) { c.Sizes.Labels = []string{"S", "tall"} }, false},
		{"no sizes", func(c *Config) { c.Sizes.Labels = nil }, false},
		{"server without secret", func(c *Config) { c.Server.Enabled = true }, false},
		{"server short secret", func(c *Config) {
			c.Server.Enabled = true
			c.Server.JWTSecret = "short"
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			err := c.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"90s", 90 * time.Second, true},
		{"1h30m", 90 * time.Minute, true},
		{"2d", 48 * time.Hour, true},
		{"1y", 365 * 24 * time.Hour, true},
		{"-1s", 0, false},
		{"5w", 0, false},
		{"d", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, err := ParseDuration(tt.in)
		if !tt.ok {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
