package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLabels = []string{"S", "M", "L"}

func TestHeaders(t *testing.T) {
	h := Headers(testLabels)
	assert.Equal(t, ColTime, h[0])
	assert.Equal(t, ColTotal, h[11])
	assert.Equal(t, []string{"S", "M", "L"}, h[12:15])
	assert.Equal(t, ColStatus, h[len(h)-1])
}

func validRecord() Record {
	return Record{
		Time:          time.Date(2024, 2, 1, 10, 30, 0, 0, time.UTC),
		UserID:        "42",
		Username:      "ops",
		ShipmentID:    "8",
		BagID:         "8-1",
		Warehouse:     "Kazan",
		Model:         "Shirt",
		Color:         "Red",
		ShipDate:      "01/02/2024",
		EtaDate:       "05/02/2024",
		Sizes:         map[string]int{"S": 10, "M": 5},
		TotalQuantity: 15,
		Status:        StatusPending,
	}
}

func TestRecord_Values(t *testing.T) {
	r := validRecord()
	v := r.Values(testLabels)
	require.Len(t, v, len(Headers(testLabels)))
	assert.Equal(t, "2024-02-01 10:30:00", v[0])
	assert.Equal(t, "8-1", v[4])
	assert.Equal(t, "15", v[11])
	assert.Equal(t, []string{"10", "5", ""}, v[12:15])
	assert.Equal(t, StatusPending, v[15])
}

func TestRecord_Validate(t *testing.T) {
	require.NoError(t, validRecord().Validate())

	r := validRecord()
	r.TotalQuantity = 14
	assert.ErrorIs(t, r.Validate(), ErrInvalidRecord)

	r = validRecord()
	r.BagID = ""
	assert.ErrorIs(t, r.Validate(), ErrInvalidRecord)

	r = validRecord()
	r.Sizes = map[string]int{}
	r.TotalQuantity = 0
	assert.ErrorIs(t, r.Validate(), ErrInvalidRecord)
}

func TestTable(t *testing.T) {
	tbl := NewTable([][]string{
		{" Shipment_Number ", "bag_number", "status"},
		{"1", "1-1"},
		{"1", "1-2", "pending"},
	})
	col, ok := tbl.Column("shipment_number")
	require.True(t, ok)
	assert.Equal(t, 0, col)
	assert.Equal(t, 2, tbl.DataRows())
	assert.Equal(t, "", tbl.Value(2, ColStatus))
	assert.Equal(t, "pending", tbl.Value(3, ColStatus))
	assert.Equal(t, "", tbl.Value(9, ColStatus))

	var seen []int
	tbl.Each(func(n int) { seen = append(seen, n) })
	assert.Equal(t, []int{2, 3}, seen)

	assert.Equal(t, 0, NewTable(nil).DataRows())
}

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, err := m.ReadAllRows(ctx, "f1")
	assert.ErrorIs(t, err, ErrSheetNotFound)
	assert.ErrorIs(t, m.AppendRow(ctx, "f1", []string{"x"}), ErrSheetNotFound)

	require.NoError(t, m.EnsureHeaders(ctx, "f1", []string{"a", "b"}))
	require.NoError(t, m.EnsureHeaders(ctx, "f1", []string{"A ", "b"}))
	require.NoError(t, m.AppendRow(ctx, "f1", []string{"1"}))
	require.NoError(t, m.UpdateCell(ctx, "f1", 2, 3, "z"))
	assert.ErrorIs(t, m.UpdateCell(ctx, "f1", 5, 1, "z"), ErrRowOutOfRange)

	rows, err := m.ReadAllRows(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "b"}, {"1", "", "z"}}, rows)

	// returned rows are a copy
	rows[1][0] = "changed"
	again, _ := m.ReadAllRows(ctx, "f1")
	assert.Equal(t, "1", again[1][0])

	require.NoError(t, m.EnsureHeaders(ctx, "f1", []string{"c"}))
	again, _ = m.ReadAllRows(ctx, "f1")
	assert.Equal(t, []string{"c"}, again[0])
}

type flakyGateway struct {
	*Memory
	failReads   int
	failAppends int
	reads       int
	appends     int
}

var errTransient = errors.New("transient")

func (f *flakyGateway) ReadAllRows(ctx context.Context, sheet string) ([][]string, error) {
	f.reads++
	if f.reads <= f.failReads {
		return nil, errTransient
	}
	return f.Memory.ReadAllRows(ctx, sheet)
}

func (f *flakyGateway) AppendRow(ctx context.Context, sheet string, row []string) error {
	f.appends++
	if f.appends <= f.failAppends {
		return errTransient
	}
	return f.Memory.AppendRow(ctx, sheet, row)
}

func TestRetryingGateway(t *testing.T) {
	ctx := context.Background()
	policy := RetryPolicy{Attempts: 3, Delay: time.Millisecond}

	t.Run("read recovers", func(t *testing.T) {
		f := &flakyGateway{Memory: NewMemory(), failReads: 2}
		f.Seed("s", [][]string{{"h"}})
		rows, err := WithRetry(f, policy).ReadAllRows(ctx, "s")
		require.NoError(t, err)
		assert.Len(t, rows, 1)
		assert.Equal(t, 3, f.reads)
	})

	t.Run("read gives up", func(t *testing.T) {
		f := &flakyGateway{Memory: NewMemory(), failReads: 10}
		_, err := WithRetry(f, policy).ReadAllRows(ctx, "s")
		assert.ErrorIs(t, err, errTransient)
		assert.Equal(t, 3, f.reads)
	})

	t.Run("missing sheet is not retried", func(t *testing.T) {
		f := &flakyGateway{Memory: NewMemory()}
		_, err := WithRetry(f, policy).ReadAllRows(ctx, "nope")
		assert.ErrorIs(t, err, ErrSheetNotFound)
		assert.Equal(t, 1, f.reads)
	})

	t.Run("append is attempted once", func(t *testing.T) {
		f := &flakyGateway{Memory: NewMemory(), failAppends: 1}
		f.Seed("s", [][]string{{"h"}})
		err := WithRetry(f, policy).AppendRow(ctx, "s", []string{"v"})
		assert.ErrorIs(t, err, errTransient)
		assert.Equal(t, 1, f.appends)
	})
}

func TestRetryPolicy_ZeroAttempts(t *testing.T) {
	calls := 0
	err := RetryPolicy{}.Do(context.Background(), "op", func() error {
		calls++
		return errTransient
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}
