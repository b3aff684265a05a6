// Package tracking reads committed shipments back from the ledger and maintains
// the columns that change after commit: status and actual arrival date.
package tracking

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/nurjigit18/shipledger/internal/common/logtrace"
	"github.com/nurjigit18/shipledger/internal/shipbot/ledger"
	"github.com/nurjigit18/shipledger/internal/shipbot/parse"
)

const maxStatusLength = 64

var (
	ErrInvalidStatus = ledger.ErrInvalidRecord.New("invalid status").SetStatusCode(http.StatusBadRequest)
	ErrInvalidDate   = ledger.ErrInvalidRecord.New("invalid date").SetStatusCode(http.StatusBadRequest)
)

// Row is one committed bag as read from the ledger.
type Row struct {
	Row           int    `json:"row"`
	BagID         string `json:"bag_id"`
	UserID        string `json:"user_id"`
	Username      string `json:"username,omitempty"`
	Warehouse     string `json:"warehouse"`
	Model         string `json:"model"`
	Color         string `json:"color"`
	ShipDate      string `json:"ship_date"`
	EtaDate       string `json:"eta_date"`
	ActualArrival string `json:"actual_arrival,omitempty"`
	Total         int    `json:"total_quantity"`
	Status        string `json:"status"`
}

// Shipment groups the rows sharing a shipment number.
type Shipment struct {
	ShipmentID string `json:"shipment_id"`
	Total      int    `json:"total_quantity"`
	Rows       []Row  `json:"rows"`
}

// Service reads and updates committed rows of a sheet.
type Service struct {
	gw ledger.Gateway
}

func New(gw ledger.Gateway) *Service {
	return &Service{gw: gw}
}

// ListShipments returns the shipments of sheet in ledger order. A non-empty
// userID keeps only the rows that user committed.
func (s *Service) ListShipments(ctx context.Context, sheet, userID string) ([]Shipment, error) {
	rows, err := s.gw.ReadAllRows(ctx, sheet)
	if err != nil {
		return nil, err
	}
	t := ledger.NewTable(rows)
	if _, ok := t.Column(ledger.ColShipment); !ok {
		return []Shipment{}, nil
	}

	out := []Shipment{}
	index := make(map[string]int)
	t.Each(func(n int) {
		id := t.Value(n, ledger.ColShipment)
		if id == "" {
			return
		}
		if userID != "" && t.Value(n, ledger.ColUserID) != userID {
			return
		}
		total, _ := strconv.Atoi(t.Value(n, ledger.ColTotal))
		r := Row{
			Row:           n,
			BagID:         t.Value(n, ledger.ColBag),
			UserID:        t.Value(n, ledger.ColUserID),
			Username:      t.Value(n, ledger.ColUsername),
			Warehouse:     t.Value(n, ledger.ColWarehouse),
			Model:         t.Value(n, ledger.ColModel),
			Color:         t.Value(n, ledger.ColColor),
			ShipDate:      t.Value(n, ledger.ColShipDate),
			EtaDate:       t.Value(n, ledger.ColEtaDate),
			ActualArrival: t.Value(n, ledger.ColActualArrival),
			Total:         total,
			Status:        t.Value(n, ledger.ColStatus),
		}
		i, seen := index[id]
		if !seen {
			i = len(out)
			index[id] = i
			out = append(out, Shipment{ShipmentID: id})
		}
		out[i].Rows = append(out[i].Rows, r)
		out[i].Total += total
	})
	return out, nil
}

// SetStatus overwrites the status of data row row.
func (s *Service) SetStatus(ctx context.Context, sheet string, row int, status string) error {
	status = strings.TrimSpace(status)
	if status == "" || len(status) > maxStatusLength {
		return ErrInvalidStatus.Msg("status must be 1 to " + strconv.Itoa(maxStatusLength) + " characters")
	}
	_, col, err := s.locate(ctx, sheet, row, ledger.ColStatus)
	if err != nil {
		return err
	}
	if err := s.gw.UpdateCell(ctx, sheet, row, col, status); err != nil {
		return err
	}
	logtrace.Logger(ctx).Info().Str("sheet", sheet).Int("row", row).Str("status", status).Msg("row status updated")
	return nil
}

// SetActualArrival records the arrival date of data row row and returns the
// stored, standardized value. The date may not precede the row's ship date.
func (s *Service) SetActualArrival(ctx context.Context, sheet string, row int, date string) (string, error) {
	if !parse.ValidateDate(date) {
		return "", ErrInvalidDate.Msg("date must be DD/MM/YYYY")
	}
	date = parse.StandardizeDate(date)

	t, col, err := s.locate(ctx, sheet, row, ledger.ColActualArrival)
	if err != nil {
		return "", err
	}
	if ship := t.Value(row, ledger.ColShipDate); parse.ValidateDate(ship) && !parse.DateNotBefore(date, ship) {
		return "", ErrInvalidDate.Msg("arrival date is before the ship date " + ship)
	}
	if err := s.gw.UpdateCell(ctx, sheet, row, col, date); err != nil {
		return "", err
	}
	logtrace.Logger(ctx).Info().Str("sheet", sheet).Int("row", row).Str("actual_arrival", date).Msg("row arrival updated")
	return date, nil
}

// locate reads sheet and resolves the 1-based column of name for a data row.
func (s *Service) locate(ctx context.Context, sheet string, row int, name string) (*ledger.Table, int, error) {
	rows, err := s.gw.ReadAllRows(ctx, sheet)
	if err != nil {
		return nil, 0, err
	}
	t := ledger.NewTable(rows)
	if row < 2 || row > len(rows) {
		return nil, 0, ledger.ErrRowOutOfRange.Msg("row " + strconv.Itoa(row) + " is not a data row")
	}
	col, ok := t.Column(name)
	if !ok {
		return nil, 0, ledger.ErrColumnNotFound.Msg("sheet " + sheet + " has no " + name + " column")
	}
	return t, col + 1, nil
}
