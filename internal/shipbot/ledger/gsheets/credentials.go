package gsheets

import (
	"os"
	"strings"

	"github.com/nurjigit18/shipledger/internal/shipbot/ledger"
	"github.com/tidwall/gjson"
)

// LoadCredentials returns service account JSON, preferring inline JSON over a file.
func LoadCredentials(inlineJSON, file string) ([]byte, error) {
	var raw []byte
	switch {
	case strings.TrimSpace(inlineJSON) != "":
		raw = []byte(inlineJSON)
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, ledger.ErrBackend.MsgErr("read google credentials", err)
		}
		raw = b
	default:
		return nil, ledger.ErrBackend.Msg("google credentials are not configured")
	}
	if err := CheckCredentials(raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// CheckCredentials makes sure raw looks like a service account key before it is
// handed to the API client.
func CheckCredentials(raw []byte) error {
	if !gjson.ValidBytes(raw) {
		return ledger.ErrBackend.Msg("google credentials are not valid JSON")
	}
	res := gjson.GetManyBytes(raw, "type", "client_email", "private_key")
	if res[0].String() != "service_account" {
		return ledger.ErrBackend.Msg("google credentials must be a service account key")
	}
	if res[1].String() == "" || res[2].String() == "" {
		return ledger.ErrBackend.Msg("google credentials are missing client_email or private_key")
	}
	return nil
}
