// Package commit writes finished shipment sessions to the ledger and tells
// administrators about them.
package commit

import (
	"context"
	"time"

	"github.com/nurjigit18/shipledger/internal/common/apperrors"
	"github.com/nurjigit18/shipledger/internal/common/logtrace"
	"github.com/nurjigit18/shipledger/internal/shipbot/eventbus"
	"github.com/nurjigit18/shipledger/internal/shipbot/ledger"
	"github.com/nurjigit18/shipledger/internal/shipbot/session"
)

// ErrCommitRow marks a single row that could not be appended.
var ErrCommitRow apperrors.Error = apperrors.New("ledger row append failed").SetKind(apperrors.KindCommitRow)

// publishTimeout bounds how long a commit waits on a slow subscriber.
const publishTimeout = 100 * time.Millisecond

// Coordinator appends one row per non-empty bag. Rows are written independently:
// a failed row is counted and the rest are still attempted.
type Coordinator struct {
	gw     ledger.Gateway
	labels []string
	bus    *eventbus.Bus
	now    func() time.Time
}

var _ session.Committer = (*Coordinator)(nil)

type Option func(*Coordinator)

func WithEventBus(bus *eventbus.Bus) Option {
	return func(c *Coordinator) { c.bus = bus }
}

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

func NewCoordinator(gw ledger.Gateway, sizeLabels []string, opts ...Option) *Coordinator {
	c := &Coordinator{gw: gw, labels: sizeLabels, now: time.Now}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Commit flattens s and appends its rows to the session's sheet.
func (c *Coordinator) Commit(ctx context.Context, s *session.Session) session.CommitSummary {
	log := logtrace.Logger(ctx).With().
		Str("user_id", s.UserID).
		Str("sheet", s.Sheet).
		Str("shipment_id", s.ShipmentID).
		Logger()

	at := c.now()
	records := s.Flatten(at)
	sum := session.CommitSummary{ShipmentID: s.ShipmentID}
	if len(records) == 0 {
		log.Warn().Msg("commit with no non-empty bags")
		return sum
	}

	if err := c.gw.EnsureHeaders(ctx, s.Sheet, ledger.Headers(c.labels)); err != nil {
		log.Warn().Err(err).Msg("unable to verify ledger headers, appending anyway")
	}

	for _, rec := range records {
		if err := c.appendRecord(ctx, s.Sheet, rec); err != nil {
			sum.Failed++
			log.Error().Err(err).Str("bag_id", rec.BagID).Str("kind", apperrors.KindOf(err).String()).Msg("ledger row not written")
			continue
		}
		sum.Succeeded++
		c.publish(eventbus.TopicRowCommitted, eventbus.RowCommitted{
			Sheet:      s.Sheet,
			UserID:     s.UserID,
			Username:   s.Username,
			ShipmentID: rec.ShipmentID,
			BagID:      rec.BagID,
			Warehouse:  rec.Warehouse,
			Model:      rec.Model,
			Color:      rec.Color,
			Total:      rec.TotalQuantity,
			ShipDate:   rec.ShipDate,
			EtaDate:    rec.EtaDate,
			At:         at,
		})
	}

	c.publish(eventbus.TopicCommitFinished, eventbus.CommitFinished{
		Sheet:      s.Sheet,
		UserID:     s.UserID,
		Username:   s.Username,
		ShipmentID: s.ShipmentID,
		Succeeded:  sum.Succeeded,
		Failed:     sum.Failed,
	})
	log.Info().Int("succeeded", sum.Succeeded).Int("failed", sum.Failed).Msg("shipment committed")
	return sum
}

func (c *Coordinator) appendRecord(ctx context.Context, sheet string, rec ledger.Record) error {
	if err := rec.Validate(); err != nil {
		return ErrCommitRow.MsgErr("record "+rec.BagID+" rejected", err)
	}
	if err := c.gw.AppendRow(ctx, sheet, rec.Values(c.labels)); err != nil {
		return ErrCommitRow.MsgErr("append "+rec.BagID, err)
	}
	return nil
}

func (c *Coordinator) publish(topic string, data any) {
	if c.bus != nil {
		c.bus.Publish(topic, data, publishTimeout)
	}
}
