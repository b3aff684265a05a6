// Package directory resolves which factories a user may record shipments for and
// which warehouses a factory ships to. Both lists live in ledger worksheets so
// operators can edit them without a deploy.
package directory

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/nurjigit18/shipledger/internal/common/logtrace"
	"github.com/nurjigit18/shipledger/internal/shipbot/ledger"
	"github.com/nurjigit18/shipledger/internal/shipbot/parse"
)

// Worksheet names and their columns.
const (
	FactoriesSheet  = "factories"
	WarehousesSheet = "warehouses"

	ColUserID        = "user_id"
	ColFactoryName   = "factory_name"
	ColTabName       = "tab_name"
	ColFactoryTab    = "factory_tab_name"
	ColWarehouseName = "warehouse_name"
)

// DefaultWarehouses is offered when a factory has no warehouse list of its own.
var DefaultWarehouses = []string{
	"Kazan", "Krasnodar", "Elektrostal", "Koledino", "Tula",
	"Nevinnomyssk", "Ryazan", "Novosibirsk", "Almaty", "Kotovsk",
}

// Factory is one ledger sheet a user is allowed to write to.
type Factory struct {
	Name    string `mapstructure:"name"`
	TabName string `mapstructure:"tab_name"`
}

// Directory looks factories and warehouses up through the ledger gateway.
type Directory struct {
	gw         ledger.Gateway
	factories  Cache[string, []Factory]
	warehouses Cache[string, []string]
	fallback   map[string][]Factory
	defaults   []string
}

type Option func(*Directory)

// WithFallback supplies factory assignments used when the factories worksheet is
// missing or unreadable.
func WithFallback(f map[string][]Factory) Option {
	return func(d *Directory) { d.fallback = f }
}

// WithDefaultWarehouses replaces DefaultWarehouses.
func WithDefaultWarehouses(w []string) Option {
	return func(d *Directory) { d.defaults = w }
}

// WithCaches replaces the default caches.
func WithCaches(factories Cache[string, []Factory], warehouses Cache[string, []string]) Option {
	return func(d *Directory) {
		d.factories = factories
		d.warehouses = warehouses
	}
}

func New(gw ledger.Gateway, cacheTTL time.Duration, opts ...Option) *Directory {
	d := &Directory{
		gw:         gw,
		factories:  NewTTLCache[string, []Factory](cacheTTL),
		warehouses: NewTTLCache[string, []string](cacheTTL),
		defaults:   DefaultWarehouses,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Bootstrap creates the directory worksheets with their headers.
func (d *Directory) Bootstrap(ctx context.Context) error {
	if err := d.gw.EnsureHeaders(ctx, FactoriesSheet, []string{ColUserID, ColFactoryName, ColTabName}); err != nil {
		return err
	}
	return d.gw.EnsureHeaders(ctx, WarehousesSheet, []string{ColFactoryTab, ColWarehouseName})
}

// UserFactories returns the factories assigned to userID, in worksheet order and
// without duplicate tabs.
func (d *Directory) UserFactories(ctx context.Context, userID string) ([]Factory, error) {
	return d.factories.Get(ctx, userID, func(ctx context.Context) ([]Factory, error) {
		rows, err := d.gw.ReadAllRows(ctx, FactoriesSheet)
		if err != nil {
			if fb, ok := d.fallback[userID]; ok {
				logtrace.Logger(ctx).Warn().Err(err).Str("user_id", userID).Msg("factories worksheet unavailable, using configured fallback")
				return fb, nil
			}
			if errors.Is(err, ledger.ErrSheetNotFound) {
				return nil, nil
			}
			return nil, err
		}
		tbl := ledger.NewTable(rows)
		var out []Factory
		seen := make(map[string]bool)
		tbl.Each(func(rowNum int) {
			if tbl.Value(rowNum, ColUserID) != userID {
				return
			}
			tab := tbl.Value(rowNum, ColTabName)
			if tab == "" || seen[tab] {
				return
			}
			seen[tab] = true
			name := tbl.Value(rowNum, ColFactoryName)
			if name == "" {
				name = tab
			}
			out = append(out, Factory{Name: name, TabName: tab})
		})
		if len(out) == 0 {
			out = d.fallback[userID]
		}
		return out, nil
	})
}

// Warehouses returns the warehouses configured for a factory tab, or the default
// list when none are configured.
func (d *Directory) Warehouses(ctx context.Context, factoryTab string) ([]string, error) {
	return d.warehouses.Get(ctx, factoryTab, func(ctx context.Context) ([]string, error) {
		rows, err := d.gw.ReadAllRows(ctx, WarehousesSheet)
		if err != nil {
			logtrace.Logger(ctx).Warn().Err(err).Str("factory", factoryTab).Msg("warehouses worksheet unavailable, using defaults")
			return d.defaults, nil
		}
		tbl := ledger.NewTable(rows)
		var out []string
		tbl.Each(func(rowNum int) {
			if !strings.EqualFold(tbl.Value(rowNum, ColFactoryTab), factoryTab) {
				return
			}
			if w := parse.CleanName(tbl.Value(rowNum, ColWarehouseName)); w != "" {
				out = append(out, w)
			}
		})
		if len(out) == 0 {
			return d.defaults, nil
		}
		return out, nil
	})
}

// Invalidate forgets cached assignments for userID.
func (d *Directory) Invalidate(userID string) {
	d.factories.InvalidateKey(userID)
}

// InvalidateAll forgets every cached lookup.
func (d *Directory) InvalidateAll() {
	d.factories.InvalidateAll()
	d.warehouses.InvalidateAll()
}
