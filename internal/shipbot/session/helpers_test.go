package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nurjigit18/shipledger/internal/shipbot/directory"
	"github.com/nurjigit18/shipledger/internal/shipbot/idalloc"
	"github.com/nurjigit18/shipledger/internal/shipbot/ledger"
	"github.com/nurjigit18/shipledger/internal/shipbot/parse"
	"github.com/stretchr/testify/require"
)

const testUser = "u1"

type recordingCommitter struct {
	mu       sync.Mutex
	sessions []*Session
	records  []ledger.Record
}

func (c *recordingCommitter) Commit(_ context.Context, s *Session) CommitSummary {
	c.mu.Lock()
	defer c.mu.Unlock()
	recs := s.Flatten(time.Unix(0, 0))
	c.sessions = append(c.sessions, s)
	c.records = append(c.records, recs...)
	return CommitSummary{ShipmentID: s.ShipmentID, Succeeded: len(recs)}
}

func (c *recordingCommitter) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}

// blockingGateway stalls reads of one sheet until released.
type blockingGateway struct {
	*ledger.Memory
	sheet   string
	mu      sync.Mutex
	entered chan struct{}
	release chan struct{}
}

func (b *blockingGateway) arm() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entered = make(chan struct{})
	b.release = make(chan struct{})
}

func (b *blockingGateway) ReadAllRows(ctx context.Context, sheet string) ([][]string, error) {
	b.mu.Lock()
	entered, release := b.entered, b.release
	b.mu.Unlock()
	if sheet == b.sheet && entered != nil {
		close(entered)
		<-release
		b.mu.Lock()
		b.entered, b.release = nil, nil
		b.mu.Unlock()
	}
	return b.Memory.ReadAllRows(ctx, sheet)
}

type fixture struct {
	t         *testing.T
	gw        *blockingGateway
	alloc     *idalloc.Allocator
	machine   *Machine
	mgr       *Manager
	committer *recordingCommitter
	now       time.Time
	last      Prompt
}

func newFixture(t *testing.T, opts ...MachineOption) *fixture {
	t.Helper()
	mem := ledger.NewMemory()
	mem.Seed(directory.FactoriesSheet, [][]string{
		{directory.ColUserID, directory.ColFactoryName, directory.ColTabName},
		{"u1", "Factory One", "f1"},
		{"u2", "North", "north"},
		{"u2", "South", "south"},
	})
	require.NoError(t, mem.EnsureHeaders(context.Background(), "f1", ledger.Headers(parse.DefaultSizeLabels)))

	f := &fixture{t: t, committer: &recordingCommitter{}, now: time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)}
	f.gw = &blockingGateway{Memory: mem, sheet: "f1"}
	f.alloc = idalloc.New(f.gw)
	dir := directory.New(f.gw, time.Minute)
	opts = append([]MachineOption{WithMachineClock(func() time.Time { return f.now })}, opts...)
	f.machine = NewMachine(f.alloc, dir, parse.NewSizeParser(parse.DefaultSizeLabels), opts...)
	f.mgr = NewManager(f.machine, f.committer, 30*time.Minute)
	f.mgr.now = func() time.Time { return f.now }
	return f
}

func (f *fixture) sendAs(user string, cmd Command) Prompt {
	f.last = f.mgr.Handle(context.Background(), Event{UserID: user, Username: "ops", Command: cmd})
	return f.last
}

func (f *fixture) send(cmd Command) Prompt { return f.sendAs(testUser, cmd) }

func (f *fixture) text(s string) Prompt { return f.send(TextInput{Text: s}) }

// press selects the option of the last prompt with the given action and label.
func (f *fixture) press(action Action, label string) Prompt {
	f.t.Helper()
	for _, o := range f.last.Options {
		if o.Action == action && (label == "" || o.Label == label) {
			return f.send(o.Selection())
		}
	}
	require.Failf(f.t, "option not offered", "%s %q in %q", action, label, f.last.Text)
	return Prompt{}
}

func (f *fixture) session() *Session {
	f.t.Helper()
	s, ok := f.mgr.Session(testUser)
	require.True(f.t, ok, "expected a live session")
	return s
}

func (f *fixture) step() Step {
	s, ok := f.mgr.Session(testUser)
	if !ok {
		return StepCancelled
	}
	return s.Step
}

// toSizes walks a new session to the size entry of model/color.
func (f *fixture) toSizes(warehouse, model, color string) {
	f.t.Helper()
	f.send(StartShipment{})
	f.press(ActionSelectWarehouse, warehouse)
	f.text(model)
	f.text(color)
	require.Equal(f.t, StepAskColorSizes, f.step())
}

func (f *fixture) finishWithDates(ship, eta string) Prompt {
	f.t.Helper()
	f.press(ActionFinishModel, "")
	f.text(ship)
	f.text(eta)
	require.Equal(f.t, StepConfirm, f.step())
	return f.press(ActionFinish, "")
}
