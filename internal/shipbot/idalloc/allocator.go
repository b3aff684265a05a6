// Package idalloc hands out shipment IDs and per-shipment bag numbers by scanning
// the ledger. IDs issued to sessions that have not committed yet are held as
// reservations so two sessions never receive the same value, and are released
// once the session commits or ends.
package idalloc

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nurjigit18/shipledger/internal/common/apperrors"
	"github.com/nurjigit18/shipledger/internal/common/logtrace"
	"github.com/nurjigit18/shipledger/internal/shipbot/eventbus"
	"github.com/nurjigit18/shipledger/internal/shipbot/ledger"
)

var (
	// ErrAllocation is the base error for allocator failures.
	ErrAllocation apperrors.Error = apperrors.New("id allocation failed").SetKind(apperrors.KindAllocation)

	// ErrInvalidShipmentID is returned for a bag allocation without a usable shipment ID.
	ErrInvalidShipmentID apperrors.Error = ErrAllocation.New("invalid shipment id").SetKind(apperrors.KindValidation)

	errMissingColumn = ErrAllocation.New("ledger has no such column")
)

// fallbackModulus bounds the time based shipment ID used when the ledger is unreadable.
const fallbackModulus = 100000

type bagKey struct {
	sheet      string
	shipmentID string
}

// Allocator is safe for concurrent use. A single lock covers the read, scan and
// reservation of every call.
type Allocator struct {
	mu        sync.Mutex
	gw        ledger.Gateway
	bus       *eventbus.Bus
	now       func() time.Time
	shipments map[string]map[int]struct{}
	bags      map[bagKey]map[int]struct{}
}

type Option func(*Allocator)

// WithEventBus publishes degraded allocations to bus.
func WithEventBus(bus *eventbus.Bus) Option {
	return func(a *Allocator) { a.bus = bus }
}

// WithClock overrides the time source of the fallback shipment ID.
func WithClock(now func() time.Time) Option {
	return func(a *Allocator) { a.now = now }
}

// New creates an allocator reading through gw. gw is expected to apply its own
// retry policy.
func New(gw ledger.Gateway, opts ...Option) *Allocator {
	a := &Allocator{
		gw:        gw,
		now:       time.Now,
		shipments: make(map[string]map[int]struct{}),
		bags:      make(map[bagKey]map[int]struct{}),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// NextShipmentID returns one more than the largest numeric shipment number in
// sheet, skipping numbers reserved by sessions in flight. An empty sheet yields "1".
// When the ledger cannot be read the ID falls back to the current unix time modulo
// 100000 and a degraded event is published.
func (a *Allocator) NextShipmentID(ctx context.Context, sheet string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	reserved := a.shipments[sheet]
	if reserved == nil {
		reserved = make(map[int]struct{})
		a.shipments[sheet] = reserved
	}

	highest, err := a.scanShipments(ctx, sheet)
	var next int
	if err != nil {
		next = nextFree(int(a.now().Unix()%fallbackModulus)-1, reserved)
		a.degraded(ctx, sheet, "", strconv.Itoa(next), err)
	} else {
		next = nextFree(highest, reserved)
	}
	reserved[next] = struct{}{}
	return strconv.Itoa(next), nil
}

// NextBagNumber returns one more than the largest bag number already recorded for
// shipmentID in sheet, skipping numbers reserved in flight. Bag numbers are read
// from "{shipmentID}-{n}" values; other shapes are skipped. It falls back to the
// lowest unreserved number from 1 when the ledger cannot be read.
func (a *Allocator) NextBagNumber(ctx context.Context, sheet, shipmentID string) (int, error) {
	shipmentID = strings.TrimSpace(shipmentID)
	if shipmentID == "" || strings.Contains(shipmentID, "-") {
		return 0, ErrInvalidShipmentID.Msg(fmt.Sprintf("invalid shipment id %q", shipmentID))
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	key := bagKey{sheet: sheet, shipmentID: shipmentID}
	reserved := a.bags[key]
	if reserved == nil {
		reserved = make(map[int]struct{})
		a.bags[key] = reserved
	}

	highest, err := a.scanBags(ctx, sheet, shipmentID)
	if err != nil {
		highest = 0
	}
	next := nextFree(highest, reserved)
	if err != nil {
		a.degraded(ctx, sheet, shipmentID, strconv.Itoa(next), err)
	}
	reserved[next] = struct{}{}
	return next, nil
}

// Release drops every reservation held for shipmentID in sheet. Call it once the
// shipment's rows are in the ledger or its session is gone.
func (a *Allocator) Release(sheet, shipmentID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if n, err := strconv.Atoi(shipmentID); err == nil {
		if m := a.shipments[sheet]; m != nil {
			delete(m, n)
			if len(m) == 0 {
				delete(a.shipments, sheet)
			}
		}
	}
	delete(a.bags, bagKey{sheet: sheet, shipmentID: shipmentID})
}

// Reserved reports how many shipment IDs are held for sheet.
func (a *Allocator) Reserved(sheet string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.shipments[sheet])
}

// nextFree returns the smallest number above floor that is not reserved. A
// negative floor is treated as zero.
func nextFree(floor int, reserved map[int]struct{}) int {
	if floor < 0 {
		floor = 0
	}
	n := floor + 1
	for {
		if _, taken := reserved[n]; !taken {
			return n
		}
		n++
	}
}

func (a *Allocator) readTable(ctx context.Context, sheet string) (*ledger.Table, error) {
	rows, err := a.gw.ReadAllRows(ctx, sheet)
	if errors.Is(err, ledger.ErrSheetNotFound) {
		// a sheet nobody has written to yet
		return ledger.NewTable(nil), nil
	}
	if err != nil {
		return nil, ErrAllocation.MsgErr("read ledger "+sheet, err)
	}
	return ledger.NewTable(rows), nil
}

func (a *Allocator) scanShipments(ctx context.Context, sheet string) (int, error) {
	tbl, err := a.readTable(ctx, sheet)
	if err != nil {
		return 0, err
	}
	if tbl.DataRows() == 0 {
		return 0, nil
	}
	if _, ok := tbl.Column(ledger.ColShipment); !ok {
		return 0, errMissingColumn.Msg("ledger " + sheet + " has no " + ledger.ColShipment + " column")
	}

	log := logtrace.Logger(ctx)
	highest := 0
	tbl.Each(func(rowNum int) {
		v := tbl.Value(rowNum, ledger.ColShipment)
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			log.Warn().Str("sheet", sheet).Int("row", rowNum).Str("value", v).Msg("skipping unusable shipment number")
			return
		}
		if n > highest {
			highest = n
		}
	})
	return highest, nil
}

func (a *Allocator) scanBags(ctx context.Context, sheet, shipmentID string) (int, error) {
	tbl, err := a.readTable(ctx, sheet)
	if err != nil {
		return 0, err
	}
	if tbl.DataRows() == 0 {
		return 0, nil
	}
	if _, ok := tbl.Column(ledger.ColBag); !ok {
		return 0, errMissingColumn.Msg("ledger " + sheet + " has no " + ledger.ColBag + " column")
	}
	_, hasShipment := tbl.Column(ledger.ColShipment)

	log := logtrace.Logger(ctx)
	prefix := shipmentID + "-"
	highest, others := 0, 0
	tbl.Each(func(rowNum int) {
		if hasShipment && tbl.Value(rowNum, ledger.ColShipment) != shipmentID {
			others++
			return
		}
		v := tbl.Value(rowNum, ledger.ColBag)
		if v == "" {
			return
		}
		suffix, ok := strings.CutPrefix(v, prefix)
		if !ok {
			log.Warn().Str("sheet", sheet).Int("row", rowNum).Str("value", v).Str("shipment_id", shipmentID).Msg("bag number belongs to another shipment")
			return
		}
		n, err := strconv.Atoi(suffix)
		if err != nil || n <= 0 {
			log.Warn().Str("sheet", sheet).Int("row", rowNum).Str("value", v).Msg("skipping unusable bag number")
			return
		}
		if n > highest {
			highest = n
		}
	})
	if others > 0 {
		log.Debug().Str("sheet", sheet).Str("shipment_id", shipmentID).Int("rows", others).Msg("skipped rows of other shipments")
	}
	return highest, nil
}

func (a *Allocator) degraded(ctx context.Context, sheet, shipmentID, fallback string, cause error) {
	logtrace.Logger(ctx).Warn().
		Err(cause).
		Str("sheet", sheet).
		Str("shipment_id", shipmentID).
		Str("fallback", fallback).
		Msg("ledger unreadable, using fallback id")
	if a.bus != nil {
		a.bus.Publish(eventbus.TopicAllocationDegraded, eventbus.AllocationDegraded{
			Sheet:      sheet,
			ShipmentID: shipmentID,
			Fallback:   fallback,
			Cause:      cause.Error(),
		}, 0)
	}
}
