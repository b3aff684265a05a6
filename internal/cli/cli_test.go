package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurjigit18/shipledger/internal/shipbot/server"
	"github.com/nurjigit18/shipledger/internal/shipbot/tracking"
)

const secret = "0123456789abcdef0123"

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	content := `
format_version = "0.1.0"

[ledger]
backend = "sqlite"
dsn = "` + filepath.ToSlash(filepath.Join(dir, "ledger.db")) + `"
default_sheet = "main"

[server]
jwt_secret = "` + secret + `"
token_expiry = "2h"

[log]
level = "error"
`
	path := filepath.Join(dir, "shipledger.conf")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	for _, k := range []string{"SHIPLEDGER_DISCORD_TOKEN", "SHIPLEDGER_JWT_SECRET", "SHIPLEDGER_LEDGER_DSN", "FACTORIES_CONFIG"} {
		t.Setenv(k, "")
	}
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "shipledger "+server.Version)

	out, err = run(t, "version", "--json")
	require.NoError(t, err)
	var v map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.Equal(t, server.Version, v["version"])
}

func TestLedgerInitAndNextID(t *testing.T) {
	cfg := writeConfig(t)

	out, err := run(t, "ledger", "init", "--config", cfg, "--json")
	require.NoError(t, err)
	var created map[string][]string
	require.NoError(t, json.Unmarshal([]byte(out), &created))
	assert.Equal(t, []string{"factories", "warehouses", "main"}, created["sheets"])

	out, err = run(t, "ledger", "next-id", "--config", cfg)
	require.NoError(t, err)
	assert.Equal(t, "1", strings.TrimSpace(out))

	out, err = run(t, "ledger", "shipments", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "no shipments")
}

func TestTokenIssue(t *testing.T) {
	cfg := writeConfig(t)
	out, err := run(t, "token", "issue", "--config", cfg, "--subject", "ops")
	require.NoError(t, err)
	sub, err := server.ValidateToken([]byte(secret), strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "ops", sub)

	_, err = run(t, "token", "issue", "--config", cfg)
	assert.ErrorIs(t, err, server.ErrMissingSubject)

	_, err = run(t, "token", "issue", "--config", cfg, "--subject", "ops", "--ttl", "soon")
	assert.Error(t, err)
}

func TestServeNeedsDiscordToken(t *testing.T) {
	_, err := run(t, "serve", "--config", writeConfig(t))
	assert.ErrorContains(t, err, "discord")
}

func TestBadConfigFile(t *testing.T) {
	_, err := run(t, "ledger", "next-id", "--config", filepath.Join(t.TempDir(), "missing.conf"))
	assert.Error(t, err)
}

func TestPrintShipments(t *testing.T) {
	var buf bytes.Buffer
	printShipments(&buf, []tracking.Shipment{{
		ShipmentID: "4",
		Total:      15,
		Rows: []tracking.Row{
			{BagID: "4-1", Model: "Shirt", Color: "Red", Warehouse: "Kazan", Total: 10, Status: "in transit"},
			{BagID: "4-2", Model: "Shirt", Color: "Red", Warehouse: "Kazan", Total: 5},
		},
	}})
	out := buf.String()
	assert.Contains(t, out, "Shipment Number 4 (15 items):")
	assert.Contains(t, out, "- 4-1  Shirt / Red  Kazan  10  in transit")
	assert.Contains(t, out, "- 4-2  Shirt / Red  Kazan  5  -")
}
