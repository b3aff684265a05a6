// Package gsheets stores the ledger in a Google spreadsheet, one worksheet per
// sheet name.
package gsheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/nurjigit18/shipledger/internal/shipbot/ledger"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Gateway is a ledger.Gateway backed by the Sheets v4 API.
type Gateway struct {
	svc           *sheets.Service
	spreadsheetID string
}

var _ ledger.Gateway = (*Gateway)(nil)

// New creates a client for spreadsheetID authenticated with service account JSON.
func New(ctx context.Context, spreadsheetID string, credentialsJSON []byte, opts ...option.ClientOption) (*Gateway, error) {
	if spreadsheetID == "" {
		return nil, ledger.ErrBackend.Msg("spreadsheet id is required")
	}
	opts = append([]option.ClientOption{
		option.WithCredentialsJSON(credentialsJSON),
		option.WithScopes(sheets.SpreadsheetsScope),
	}, opts...)
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, ledger.ErrBackend.MsgErr("create sheets client", err)
	}
	return &Gateway{svc: svc, spreadsheetID: spreadsheetID}, nil
}

// NewWithService wraps an existing client.
func NewWithService(svc *sheets.Service, spreadsheetID string) *Gateway {
	return &Gateway{svc: svc, spreadsheetID: spreadsheetID}
}

func (g *Gateway) ReadAllRows(ctx context.Context, sheet string) ([][]string, error) {
	resp, err := g.svc.Spreadsheets.Values.Get(g.spreadsheetID, QuoteSheet(sheet)).
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx).Do()
	if err != nil {
		return nil, translate(sheet, "read rows", err)
	}
	return toStrings(resp.Values), nil
}

func (g *Gateway) AppendRow(ctx context.Context, sheet string, row []string) error {
	vr := &sheets.ValueRange{Values: [][]interface{}{toCells(row)}}
	_, err := g.svc.Spreadsheets.Values.Append(g.spreadsheetID, QuoteSheet(sheet)+"!A1", vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	return translate(sheet, "append row", err)
}

func (g *Gateway) UpdateCell(ctx context.Context, sheet string, row, col int, value string) error {
	if row < 1 || col < 1 {
		return ledger.ErrRowOutOfRange.Msg(fmt.Sprintf("invalid cell %d:%d", row, col))
	}
	vr := &sheets.ValueRange{Values: [][]interface{}{{value}}}
	_, err := g.svc.Spreadsheets.Values.Update(g.spreadsheetID, CellRange(sheet, row, col), vr).
		ValueInputOption("RAW").
		Context(ctx).Do()
	return translate(sheet, "update cell", err)
}

func (g *Gateway) EnsureHeaders(ctx context.Context, sheet string, headers []string) error {
	exists, err := g.hasSheet(ctx, sheet)
	if err != nil {
		return err
	}
	if !exists {
		req := &sheets.BatchUpdateSpreadsheetRequest{
			Requests: []*sheets.Request{{
				AddSheet: &sheets.AddSheetRequest{
					Properties: &sheets.SheetProperties{Title: sheet},
				},
			}},
		}
		if _, err := g.svc.Spreadsheets.BatchUpdate(g.spreadsheetID, req).Context(ctx).Do(); err != nil {
			return translate(sheet, "add sheet", err)
		}
	} else {
		resp, err := g.svc.Spreadsheets.Values.Get(g.spreadsheetID, RowRange(sheet, 1)).Context(ctx).Do()
		if err != nil {
			return translate(sheet, "read headers", err)
		}
		have := toStrings(resp.Values)
		if len(have) > 0 && ledger.SameHeaders(have[0], headers) {
			return nil
		}
	}
	vr := &sheets.ValueRange{Values: [][]interface{}{toCells(headers)}}
	_, err = g.svc.Spreadsheets.Values.Update(g.spreadsheetID, QuoteSheet(sheet)+"!A1", vr).
		ValueInputOption("RAW").
		Context(ctx).Do()
	return translate(sheet, "write headers", err)
}

func (g *Gateway) hasSheet(ctx context.Context, sheet string) (bool, error) {
	ss, err := g.svc.Spreadsheets.Get(g.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return false, translate(sheet, "list sheets", err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == sheet {
			return true, nil
		}
	}
	return false, nil
}

// translate maps API failures onto ledger errors. A range naming a missing
// worksheet is reported by the API as a 400 "Unable to parse range".
func translate(sheet, op string, err error) error {
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		if gerr.Code == http.StatusNotFound ||
			(gerr.Code == http.StatusBadRequest && strings.Contains(gerr.Message, "Unable to parse range")) {
			return ledger.ErrSheetNotFound.MsgErr(fmt.Sprintf("sheet %q not found", sheet), err)
		}
	}
	return ledger.ErrBackend.MsgErr(op+" on "+sheet, err)
}

func toStrings(values [][]interface{}) [][]string {
	out := make([][]string, len(values))
	for i, row := range values {
		r := make([]string, len(row))
		for j, v := range row {
			if v != nil {
				r[j] = fmt.Sprint(v)
			}
		}
		out[i] = r
	}
	return out
}

func toCells(row []string) []interface{} {
	out := make([]interface{}, len(row))
	for i, v := range row {
		out[i] = v
	}
	return out
}
