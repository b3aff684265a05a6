package eventbus

import "time"

// RowCommitted is published after a ledger row lands.
type RowCommitted struct {
	Sheet      string
	UserID     string
	Username   string
	ShipmentID string
	BagID      string
	Warehouse  string
	Model      string
	Color      string
	Total      int
	ShipDate   string
	EtaDate    string
	At         time.Time
}

// CommitFinished is published once per committed session.
type CommitFinished struct {
	Sheet      string
	UserID     string
	Username   string
	ShipmentID string
	Succeeded  int
	Failed     int
}

// AllocationDegraded is published when the allocator could not read the ledger
// and handed out a fallback value.
type AllocationDegraded struct {
	Sheet      string
	ShipmentID string // empty for shipment allocations
	Fallback   string
	Cause      string
}
