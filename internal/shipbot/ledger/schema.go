package ledger

import (
	"strconv"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// Ledger column names.
const (
	ColTime          = "time"
	ColUserID        = "user_id"
	ColUsername      = "username"
	ColShipment      = "shipment_number"
	ColBag           = "bag_number"
	ColWarehouse     = "warehouse"
	ColModel         = "model"
	ColColor         = "color"
	ColShipDate      = "ship_date"
	ColEtaDate       = "eta_date"
	ColActualArrival = "actual_arrival"
	ColTotal         = "total_quantity"
	ColStatus        = "status"
)

// StatusPending is the status of every freshly committed row.
const StatusPending = "pending"

// TimeLayout is the format of the time column.
const TimeLayout = "2006-01-02 15:04:05"

var leadingColumns = []string{
	ColTime, ColUserID, ColUsername, ColShipment, ColBag, ColWarehouse,
	ColModel, ColColor, ColShipDate, ColEtaDate, ColActualArrival, ColTotal,
}

// Headers returns the header row for the given size labels.
func Headers(sizeLabels []string) []string {
	h := make([]string, 0, len(leadingColumns)+len(sizeLabels)+1)
	h = append(h, leadingColumns...)
	h = append(h, sizeLabels...)
	return append(h, ColStatus)
}

// Record is one committed bag: the unit of a ledger row.
type Record struct {
	Time          time.Time
	UserID        string `validate:"required"`
	Username      string
	ShipmentID    string `validate:"required"`
	BagID         string `validate:"required"`
	Warehouse     string `validate:"required"`
	Model         string `validate:"required"`
	Color         string `validate:"required"`
	ShipDate      string `validate:"required"`
	EtaDate       string `validate:"required"`
	ActualArrival string
	Sizes         map[string]int `validate:"required,min=1,dive,gte=0"`
	TotalQuantity int            `validate:"gt=0"`
	Status        string         `validate:"required"`
}

var (
	validatorOnce   sync.Once
	recordValidator *validator.Validate
)

func getValidator() *validator.Validate {
	validatorOnce.Do(func() {
		recordValidator = validator.New(validator.WithRequiredStructEnabled())
	})
	return recordValidator
}

// Validate checks required fields and that the total matches the size breakdown.
func (r Record) Validate() error {
	if err := getValidator().Struct(r); err != nil {
		return ErrInvalidRecord.MsgErr("record "+r.BagID+" failed validation", err)
	}
	sum := 0
	for _, q := range r.Sizes {
		sum += q
	}
	if sum != r.TotalQuantity {
		return ErrInvalidRecord.Msg("total quantity does not match sizes for " + r.BagID)
	}
	return nil
}

// Values renders the record in header order for sizeLabels. Sizes without a
// quantity are left blank.
func (r Record) Values(sizeLabels []string) []string {
	out := []string{
		r.Time.Format(TimeLayout),
		r.UserID,
		r.Username,
		r.ShipmentID,
		r.BagID,
		r.Warehouse,
		r.Model,
		r.Color,
		r.ShipDate,
		r.EtaDate,
		r.ActualArrival,
		strconv.Itoa(r.TotalQuantity),
	}
	for _, l := range sizeLabels {
		if q := r.Sizes[l]; q > 0 {
			out = append(out, strconv.Itoa(q))
		} else {
			out = append(out, "")
		}
	}
	return append(out, r.Status)
}
