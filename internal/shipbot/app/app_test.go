package app

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurjigit18/shipledger/internal/shipbot/bot"
	"github.com/nurjigit18/shipledger/internal/shipbot/config"
	"github.com/nurjigit18/shipledger/internal/shipbot/directory"
	"github.com/nurjigit18/shipledger/internal/shipbot/eventbus"
	"github.com/nurjigit18/shipledger/internal/shipbot/ledger"
	"github.com/nurjigit18/shipledger/internal/shipbot/session"
)

type fakeTransport struct {
	mu      sync.Mutex
	started bool
	stopped bool
	direct  map[string][]string
}

func (f *fakeTransport) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = true
	return nil
}

func (f *fakeTransport) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	return nil
}

func (f *fakeTransport) SendDirect(_ context.Context, userID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.direct == nil {
		f.direct = make(map[string][]string)
	}
	f.direct[userID] = append(f.direct[userID], text)
	return nil
}

func (f *fakeTransport) NotifyExpired(string) {}

func (f *fakeTransport) sent(userID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.direct[userID]...)
}

func memoryConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Ledger.DefaultSheet = "main"
	cfg.Retry.Delay = "1ms"
	cfg.Notify.AdminIDs = []string{"admin"}
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestBuildMemoryPreparesDirectory(t *testing.T) {
	ctx := context.Background()
	a, err := Build(ctx, memoryConfig(t))
	require.NoError(t, err)
	defer a.Close()

	rows, err := a.Gateway.ReadAllRows(ctx, directory.FactoriesSheet)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.NoError(t, a.Ready(ctx))
}

func TestBuildSQLite(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Ledger.Backend = "sqlite"
	cfg.Ledger.DSN = filepath.Join(t.TempDir(), "ledger.db")

	a, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	assert.NoError(t, a.Ready(context.Background()))
	assert.NoError(t, a.Close())
}

func TestRunCommitsAndNotifiesAdmins(t *testing.T) {
	a, err := Build(context.Background(), memoryConfig(t))
	require.NoError(t, err)
	defer a.Close()

	tr := &fakeTransport{}
	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- a.Run(ctx, tr) }()

	// the notifier ignores events without a row, so an empty publish only
	// tells whether it is subscribed yet
	require.Eventually(t, func() bool {
		return a.Bus.Publish(eventbus.TopicRowCommitted, nil, 0) > 0
	}, time.Second, 5*time.Millisecond)

	var last session.Prompt
	say := func(text string) {
		p, ok := a.Dispatcher.OnMessage(ctx, bot.Message{UserID: "u9", Username: "ops", Text: text, Direct: true})
		require.True(t, ok)
		last = p
	}
	press := func(action session.Action, label string) {
		for _, o := range last.Options {
			if o.Action == action && (label == "" || o.Label == label) {
				last = a.Dispatcher.OnSelection(ctx, "u9", "ops", o.Selection())
				return
			}
		}
		t.Fatalf("%s %q not offered in %q", action, label, last.Text)
	}

	say("!ship")
	press(session.ActionSelectWarehouse, "Kazan")
	say("Shirt")
	say("Red")
	say("S-3")
	press(session.ActionFinishModel, "")
	say("01/02/2024")
	say("02/02/2024")

	press(session.ActionFinish, "")
	assert.Contains(t, last.Text, "saved: 1 rows written")

	rows, err := a.Gateway.ReadAllRows(context.Background(), "main")
	require.NoError(t, err)
	tbl := ledger.NewTable(rows)
	require.Equal(t, 1, tbl.DataRows())
	assert.Equal(t, "3", tbl.Value(2, ledger.ColTotal))

	require.Eventually(t, func() bool { return len(tr.sent("admin")) == 1 }, time.Second, 5*time.Millisecond)
	assert.Contains(t, tr.sent("admin")[0], "Shirt / Red, 3 items to Kazan")

	cancel()
	select {
	case err := <-runErr:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
	tr.mu.Lock()
	assert.True(t, tr.stopped)
	tr.mu.Unlock()
}
