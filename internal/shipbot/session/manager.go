package session

import (
	"context"
	"sync"
	"time"

	"github.com/nurjigit18/shipledger/internal/common/logtrace"
)

// DefaultCommitTimeout bounds the ledger writes of one commit.
const DefaultCommitTimeout = 2 * time.Minute

// Committer writes a finished session to the ledger.
type Committer interface {
	Commit(ctx context.Context, s *Session) CommitSummary
}

// entry holds the session of one user. turn serializes transitions for the
// user; a cancel does not wait for it. An entry that is no longer the one in the
// manager's map has been cancelled or replaced, and any transition still running
// on it is discarded when it finishes.
type entry struct {
	turn    sync.Mutex
	session *Session
}

// Manager owns the live sessions, keyed by user ID.
type Manager struct {
	mu        sync.Mutex
	entries   map[string]*entry
	machine   *Machine
	committer Committer
	idle      time.Duration
	commitTTL time.Duration
	now       func() time.Time
}

type ManagerOption func(*Manager)

// WithCommitTimeout overrides DefaultCommitTimeout. Non-positive values are ignored.
func WithCommitTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.commitTTL = d
		}
	}
}

func NewManager(machine *Machine, committer Committer, idleTimeout time.Duration, opts ...ManagerOption) *Manager {
	m := &Manager{
		entries:   make(map[string]*entry),
		machine:   machine,
		committer: committer,
		idle:      idleTimeout,
		commitTTL: DefaultCommitTimeout,
		now:       time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Handle processes one inbound event and returns the reply for the user. An
// empty prompt means there is nothing to send.
func (m *Manager) Handle(ctx context.Context, ev Event) Prompt {
	ctx = logtrace.WithTraceID(ctx)
	switch c := ev.Command.(type) {
	case StartShipment:
		return m.start(ctx, ev)
	case Cancel:
		return m.cancel(ctx, ev.UserID)
	case MenuSelection:
		switch c.Action {
		case ActionStart:
			return m.start(ctx, ev)
		case ActionCancel:
			if !m.selectionCurrent(ev.UserID, c) {
				return ExpiredPrompt()
			}
			return m.cancel(ctx, ev.UserID)
		}
	}
	return m.step(ctx, ev)
}

// selectionCurrent keeps a cancel button from an old prompt from killing a newer
// session.
func (m *Manager) selectionCurrent(userID string, c MenuSelection) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.entries[userID]
	if e == nil || e.session == nil {
		return c.Seq == 0
	}
	return c.Seq == 0 || c.Seq == e.session.Seq
}

func (m *Manager) start(ctx context.Context, ev Event) Prompt {
	e := &entry{}
	e.turn.Lock()
	defer e.turn.Unlock()

	m.mu.Lock()
	old := m.entries[ev.UserID]
	m.entries[ev.UserID] = e
	var oldSession *Session
	if old != nil {
		oldSession = old.session
	}
	m.mu.Unlock()
	m.release(oldSession)

	res := m.machine.Start(ctx, ev.UserID, ev.Username)

	m.mu.Lock()
	if m.entries[ev.UserID] != e {
		m.mu.Unlock()
		m.release(res.Session)
		return ExpiredPrompt()
	}
	if res.Drop {
		delete(m.entries, ev.UserID)
		m.mu.Unlock()
		return res.Prompt
	}
	e.session = res.Session
	m.mu.Unlock()

	logtrace.Logger(ctx).Info().Str("user_id", ev.UserID).Str("sheet", res.Session.Sheet).Msg("shipment session started")
	return res.Prompt
}

func (m *Manager) cancel(ctx context.Context, userID string) Prompt {
	m.mu.Lock()
	e := m.entries[userID]
	if e == nil {
		m.mu.Unlock()
		return StartPrompt("There is no shipment in progress.")
	}
	delete(m.entries, userID)
	s := e.session
	m.mu.Unlock()

	m.release(s)
	logtrace.Logger(ctx).Info().Str("user_id", userID).Msg("shipment session cancelled")
	return StartPrompt("Shipment entry cancelled. Nothing was saved.")
}

func (m *Manager) step(ctx context.Context, ev Event) Prompt {
	m.mu.Lock()
	e := m.entries[ev.UserID]
	m.mu.Unlock()
	if e == nil {
		if _, typed := ev.Command.(TextInput); typed {
			return StartPrompt("Start a new shipment to record bags.")
		}
		return ExpiredPrompt()
	}

	e.turn.Lock()
	defer e.turn.Unlock()

	m.mu.Lock()
	if m.entries[ev.UserID] != e || e.session == nil {
		m.mu.Unlock()
		return ExpiredPrompt()
	}
	snapshot := e.session.Clone()
	m.mu.Unlock()

	if ti, ok := ev.Command.(TextInput); ok && ti.MessageID != "" {
		if ti.MessageID == snapshot.LastMessageID {
			logtrace.Logger(ctx).Info().Str("user_id", ev.UserID).Str("message_id", ti.MessageID).Msg("ignoring redelivered message")
			return Prompt{}
		}
		snapshot.LastMessageID = ti.MessageID
	}

	res := m.machine.Handle(ctx, snapshot, ev.Command)

	m.mu.Lock()
	if m.entries[ev.UserID] != e {
		m.mu.Unlock()
		// cancelled or restarted while this step ran
		m.release(res.Session)
		logtrace.Logger(ctx).Info().Str("user_id", ev.UserID).Msg("discarding result of a superseded session")
		return ExpiredPrompt()
	}
	switch {
	case res.Drop:
		delete(m.entries, ev.UserID)
		m.mu.Unlock()
		m.release(res.Session)
		return res.Prompt
	case res.Commit:
		delete(m.entries, ev.UserID)
		m.mu.Unlock()
		// detached from the request, bounded by commitTTL
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.commitTTL)
		sum := m.committer.Commit(cctx, res.Session)
		cancel()
		m.release(res.Session)
		return SummaryPrompt(sum)
	}
	e.session = res.Session
	m.mu.Unlock()
	return res.Prompt
}

func (m *Manager) release(s *Session) {
	if s == nil || s.ShipmentID == "" {
		return
	}
	m.machine.alloc.Release(s.Sheet, s.ShipmentID)
}

// Session returns a copy of the user's live session.
func (m *Manager) Session(userID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.entries[userID]
	if e == nil || e.session == nil {
		return nil, false
	}
	return e.session.Clone(), true
}

// Active is the number of live sessions.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Sweep drops sessions idle for longer than the idle timeout and returns the
// affected user IDs.
func (m *Manager) Sweep(now time.Time) []string {
	if m.idle <= 0 {
		return nil
	}
	var (
		users   []string
		expired []*Session
	)
	m.mu.Lock()
	for user, e := range m.entries {
		if e.session == nil || now.Sub(e.session.UpdatedAt) <= m.idle {
			continue
		}
		users = append(users, user)
		expired = append(expired, e.session)
		delete(m.entries, user)
	}
	m.mu.Unlock()

	for _, s := range expired {
		m.release(s)
	}
	return users
}

// RunSweeper calls Sweep every interval until ctx is done. notify, when set, is
// told about every expired user.
func (m *Manager) RunSweeper(ctx context.Context, interval time.Duration, notify func(userID string)) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			users := m.Sweep(m.now())
			if len(users) > 0 {
				logtrace.Logger(ctx).Info().Strs("user_ids", users).Msg("expired idle sessions")
			}
			if notify != nil {
				for _, u := range users {
					notify(u)
				}
			}
		}
	}
}
