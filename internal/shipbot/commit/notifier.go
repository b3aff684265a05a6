package commit

import (
	"context"
	"fmt"
	"strings"

	"github.com/nurjigit18/shipledger/internal/common/logtrace"
	"github.com/nurjigit18/shipledger/internal/shipbot/eventbus"
)

// Sender delivers a direct message to a user.
type Sender interface {
	SendDirect(ctx context.Context, userID, text string) error
}

// Notifier forwards commit and allocator events to administrators. Delivery is
// best effort; failures are logged and never reach the user who committed.
type Notifier struct {
	bus    *eventbus.Bus
	sender Sender
	admins []string
}

func NewNotifier(bus *eventbus.Bus, sender Sender, adminIDs []string) *Notifier {
	return &Notifier{bus: bus, sender: sender, admins: adminIDs}
}

// Run delivers notifications until ctx is done.
func (n *Notifier) Run(ctx context.Context) {
	if len(n.admins) == 0 || n.sender == nil {
		return
	}
	rows, unsubRows := n.bus.Subscribe(eventbus.TopicRowCommitted, 256)
	defer unsubRows()
	done, unsubDone := n.bus.Subscribe(eventbus.TopicCommitFinished, 64)
	defer unsubDone()
	degraded, unsubDegraded := n.bus.Subscribe(eventbus.TopicAllocationDegraded, 64)
	defer unsubDegraded()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-rows:
			if !ok {
				return
			}
			if rc, ok := ev.Data.(eventbus.RowCommitted); ok {
				n.broadcast(ctx, FormatRow(rc))
			}
		case ev, ok := <-done:
			if !ok {
				return
			}
			if cf, ok := ev.Data.(eventbus.CommitFinished); ok && cf.Failed > 0 {
				n.broadcast(ctx, fmt.Sprintf("Shipment %s from %s is incomplete: %d rows failed to save.",
					cf.ShipmentID, who(cf.Username, cf.UserID), cf.Failed))
			}
		case ev, ok := <-degraded:
			if !ok {
				return
			}
			if ad, ok := ev.Data.(eventbus.AllocationDegraded); ok {
				n.broadcast(ctx, fmt.Sprintf("Ledger %s was unreadable, fallback id %s was issued. Check for duplicates.", ad.Sheet, ad.Fallback))
			}
		}
	}
}

func (n *Notifier) broadcast(ctx context.Context, text string) {
	for _, admin := range n.admins {
		if err := n.sender.SendDirect(ctx, admin, text); err != nil {
			logtrace.Logger(ctx).Warn().Err(err).Str("admin_id", admin).Msg("admin notification failed")
		}
	}
}

// FormatRow renders a committed row for administrators.
func FormatRow(rc eventbus.RowCommitted) string {
	var b strings.Builder
	fmt.Fprintf(&b, "New shipment row from %s\n", who(rc.Username, rc.UserID))
	fmt.Fprintf(&b, "Shipment %s, bag %s (%s)\n", rc.ShipmentID, rc.BagID, rc.Sheet)
	fmt.Fprintf(&b, "%s / %s, %d items to %s\n", rc.Model, rc.Color, rc.Total, rc.Warehouse)
	fmt.Fprintf(&b, "Ships %s, arrives %s", rc.ShipDate, rc.EtaDate)
	return b.String()
}

func who(username, userID string) string {
	if username == "" {
		return userID
	}
	return username + " (" + userID + ")"
}
