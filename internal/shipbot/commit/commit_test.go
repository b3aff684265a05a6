package commit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nurjigit18/shipledger/internal/shipbot/eventbus"
	"github.com/nurjigit18/shipledger/internal/shipbot/ledger"
	"github.com/nurjigit18/shipledger/internal/shipbot/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var labels = []string{"S", "M", "L"}

func bag(id string, sizes map[string]int) session.Bag {
	return session.Bag{ID: id, Sizes: sizes}
}

func testSession() *session.Session {
	return &session.Session{
		UserID:     "42",
		Username:   "ops",
		Sheet:      "f1",
		ShipmentID: "8",
		Warehouse:  "Kazan",
		ShipDate:   "01/02/2024",
		EtaDate:    "05/02/2024",
		Models: []session.Model{{
			Name: "Shirt",
			Colors: []session.Color{
				{Name: "Red", Bags: []session.Bag{bag("8-1", map[string]int{"S": 5}), bag("8-2", map[string]int{"M": 0})}},
				{Name: "Blue", Bags: []session.Bag{bag("8-3", map[string]int{"S": 5}), bag("8-4", map[string]int{})}},
			},
		}},
	}
}

type failingAppends struct {
	*ledger.Memory
	failBag string
}

func (f *failingAppends) AppendRow(ctx context.Context, sheet string, row []string) error {
	if len(row) > 4 && row[4] == f.failBag {
		return errors.New("write timeout")
	}
	return f.Memory.AppendRow(ctx, sheet, row)
}

func fixedClock() time.Time { return time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC) }

func TestCommit_OneRowPerNonEmptyBag(t *testing.T) {
	ctx := context.Background()
	gw := ledger.NewMemory()
	bus := eventbus.New()
	rowsCh, unsub := bus.Subscribe(eventbus.TopicRowCommitted, 8)
	defer unsub()

	c := NewCoordinator(gw, labels, WithEventBus(bus), WithClock(fixedClock))
	sum := c.Commit(ctx, testSession())
	assert.Equal(t, session.CommitSummary{ShipmentID: "8", Succeeded: 2}, sum)

	rows, err := gw.ReadAllRows(ctx, "f1")
	require.NoError(t, err)
	require.Len(t, rows, 3, "headers are created on first commit")
	assert.Equal(t, ledger.Headers(labels), rows[0])

	tbl := ledger.NewTable(rows)
	assert.Equal(t, "8-1", tbl.Value(2, ledger.ColBag))
	assert.Equal(t, "Red", tbl.Value(2, ledger.ColColor))
	assert.Equal(t, "8-3", tbl.Value(3, ledger.ColBag))
	assert.Equal(t, "5", tbl.Value(3, ledger.ColTotal))
	assert.Equal(t, "5", tbl.Value(3, "S"))
	assert.Equal(t, "", tbl.Value(3, "M"))
	assert.Equal(t, ledger.StatusPending, tbl.Value(3, ledger.ColStatus))
	assert.Equal(t, "2024-02-01 12:00:00", tbl.Value(2, ledger.ColTime))

	require.Len(t, rowsCh, 2)
	ev := (<-rowsCh).Data.(eventbus.RowCommitted)
	assert.Equal(t, "8-1", ev.BagID)
	assert.Equal(t, 5, ev.Total)
}

func TestCommit_RowFailureIsCounted(t *testing.T) {
	ctx := context.Background()
	gw := &failingAppends{Memory: ledger.NewMemory(), failBag: "8-1"}
	bus := eventbus.New()
	finished, unsub := bus.Subscribe(eventbus.TopicCommitFinished, 1)
	defer unsub()

	sum := NewCoordinator(gw, labels, WithEventBus(bus)).Commit(ctx, testSession())
	assert.Equal(t, 1, sum.Succeeded)
	assert.Equal(t, 1, sum.Failed)

	rows, _ := gw.ReadAllRows(ctx, "f1")
	require.Len(t, rows, 2)
	assert.Equal(t, "8-3", rows[1][4])

	cf := (<-finished).Data.(eventbus.CommitFinished)
	assert.Equal(t, 1, cf.Failed)

	p := session.SummaryPrompt(sum)
	assert.Contains(t, p.Text, "contact support")
}

func TestCommit_InvalidRecordIsNotAppended(t *testing.T) {
	ctx := context.Background()
	gw := ledger.NewMemory()
	s := testSession()
	s.Warehouse = ""

	sum := NewCoordinator(gw, labels).Commit(ctx, s)
	assert.Equal(t, 0, sum.Succeeded)
	assert.Equal(t, 2, sum.Failed)
}

func TestCommit_NothingToWrite(t *testing.T) {
	s := testSession()
	s.Models = nil
	sum := NewCoordinator(ledger.NewMemory(), labels).Commit(context.Background(), s)
	assert.Equal(t, session.CommitSummary{ShipmentID: "8"}, sum)
}

type recordingSender struct {
	mu   sync.Mutex
	msgs map[string][]string
	fail string
	got  chan struct{}
}

func (r *recordingSender) SendDirect(_ context.Context, userID, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if userID == r.fail {
		return errors.New("dm closed")
	}
	r.msgs[userID] = append(r.msgs[userID], text)
	r.got <- struct{}{}
	return nil
}

func TestNotifier(t *testing.T) {
	bus := eventbus.New()
	sender := &recordingSender{msgs: make(map[string][]string), fail: "broken", got: make(chan struct{}, 16)}
	n := NewNotifier(bus, sender, []string{"admin1", "broken"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		n.Run(ctx)
		close(done)
	}()

	// wait for the subscriptions to exist
	require.Eventually(t, func() bool {
		return bus.Publish(eventbus.TopicRowCommitted, eventbus.RowCommitted{
			Username: "ops", UserID: "42", ShipmentID: "8", BagID: "8-1", Model: "Shirt", Color: "Red", Total: 15, Warehouse: "Kazan",
		}, time.Millisecond) > 0
	}, 5*time.Second, 10*time.Millisecond)
	<-sender.got

	// complete commits are not reported
	bus.Publish(eventbus.TopicCommitFinished, eventbus.CommitFinished{ShipmentID: "8", UserID: "42"}, time.Second)
	require.Eventually(t, func() bool {
		return bus.Publish(eventbus.TopicCommitFinished, eventbus.CommitFinished{ShipmentID: "9", UserID: "42", Failed: 2}, time.Second) > 0
	}, 5*time.Second, 10*time.Millisecond)
	<-sender.got

	cancel()
	<-done

	sender.mu.Lock()
	defer sender.mu.Unlock()
	msgs := sender.msgs["admin1"]
	require.GreaterOrEqual(t, len(msgs), 2)
	assert.Contains(t, msgs[0], "ops (42)")
	assert.Contains(t, msgs[0], "Shirt / Red, 15 items to Kazan")
	assert.Contains(t, msgs[len(msgs)-1], "Shipment 9")
	assert.Contains(t, msgs[len(msgs)-1], "2 rows failed")
}

func TestNotifier_NoAdminsReturns(t *testing.T) {
	n := NewNotifier(eventbus.New(), &recordingSender{}, nil)
	n.Run(context.Background())
}
