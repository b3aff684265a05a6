package directory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nurjigit18/shipledger/internal/shipbot/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingGateway struct {
	*ledger.Memory
	reads int
	fail  bool
}

func (c *countingGateway) ReadAllRows(ctx context.Context, sheet string) ([][]string, error) {
	c.reads++
	if c.fail {
		return nil, errors.New("backend down")
	}
	return c.Memory.ReadAllRows(ctx, sheet)
}

func newGateway() *countingGateway {
	m := ledger.NewMemory()
	m.Seed(FactoriesSheet, [][]string{
		{ColUserID, ColFactoryName, ColTabName},
		{"100", "North Plant", "north"},
		{"100", "South Plant", "south"},
		{"100", "North again", "north"},
		{"200", "", "west"},
	})
	m.Seed(WarehousesSheet, [][]string{
		{ColFactoryTab, ColWarehouseName},
		{"north", "Kazan"},
		{"NORTH", " Tula  "},
		{"south", ""},
	})
	return &countingGateway{Memory: m}
}

func TestUserFactories(t *testing.T) {
	ctx := context.Background()
	gw := newGateway()
	d := New(gw, 0)

	got, err := d.UserFactories(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, []Factory{{"North Plant", "north"}, {"South Plant", "south"}}, got)

	got, err = d.UserFactories(ctx, "200")
	require.NoError(t, err)
	assert.Equal(t, []Factory{{"west", "west"}}, got)

	got, err = d.UserFactories(ctx, "300")
	require.NoError(t, err)
	assert.Empty(t, got)

	reads := gw.reads
	_, _ = d.UserFactories(ctx, "100")
	assert.Equal(t, reads, gw.reads, "second lookup is cached")

	d.Invalidate("100")
	_, _ = d.UserFactories(ctx, "100")
	assert.Equal(t, reads+1, gw.reads)
}

func TestUserFactories_Fallback(t *testing.T) {
	ctx := context.Background()
	gw := newGateway()
	gw.fail = true
	d := New(gw, time.Minute, WithFallback(map[string][]Factory{"100": {{"Only", "only"}}}))

	got, err := d.UserFactories(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, []Factory{{"Only", "only"}}, got)

	_, err = d.UserFactories(ctx, "999")
	assert.Error(t, err)

	gw.fail = false
	_, err = d.UserFactories(ctx, "999")
	assert.NoError(t, err, "failed loads are not cached")
}

func TestWarehouses(t *testing.T) {
	ctx := context.Background()
	d := New(newGateway(), 0)

	got, err := d.Warehouses(ctx, "north")
	require.NoError(t, err)
	assert.Equal(t, []string{"Kazan", "Tula"}, got)

	got, err = d.Warehouses(ctx, "south")
	require.NoError(t, err)
	assert.Equal(t, DefaultWarehouses, got)

	broken := newGateway()
	broken.fail = true
	got, err = New(broken, 0, WithDefaultWarehouses([]string{"Almaty"})).Warehouses(ctx, "north")
	require.NoError(t, err)
	assert.Equal(t, []string{"Almaty"}, got)
}

func TestBootstrap(t *testing.T) {
	ctx := context.Background()
	m := ledger.NewMemory()
	require.NoError(t, New(m, 0).Bootstrap(ctx))
	rows, err := m.ReadAllRows(ctx, WarehousesSheet)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{ColFactoryTab, ColWarehouseName}}, rows)
}

func TestTTLCache_Expiry(t *testing.T) {
	now := time.Unix(0, 0)
	c := NewTTLCache[string, int](time.Minute)
	c.now = func() time.Time { return now }

	loads := 0
	load := func(context.Context) (int, error) { loads++; return loads, nil }

	v, _ := c.Get(context.Background(), "k", load)
	assert.Equal(t, 1, v)
	v, _ = c.Get(context.Background(), "k", load)
	assert.Equal(t, 1, v)

	now = now.Add(2 * time.Minute)
	v, _ = c.Get(context.Background(), "k", load)
	assert.Equal(t, 2, v)

	c.InvalidateAll()
	v, _ = c.Get(context.Background(), "k", load)
	assert.Equal(t, 3, v)
}

func TestParseFallback(t *testing.T) {
	got, err := ParseFallback(`{"1001": "factory_a", "1002": [{"name": "North", "tab_name": "north"}, "south"]}`)
	require.NoError(t, err)
	assert.Equal(t, []Factory{{"factory_a", "factory_a"}}, got["1001"])
	assert.Equal(t, []Factory{{"North", "north"}, {"south", "south"}}, got["1002"])

	empty, err := ParseFallback("  ")
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = ParseFallback(`{"1": [{"name": "x"}]}`)
	assert.Error(t, err)
	_, err = ParseFallback(`{"1": 5}`)
	assert.Error(t, err)
	_, err = ParseFallback(`[`)
	assert.Error(t, err)
}
