// Package ids generates identifiers used for tracing and correlation. Ledger ids
// (shipment and bag numbers) are not generated here; they come from the allocator.
package ids

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewTraceID returns a time-ordered UUIDv7 string. If the random source fails it
// falls back to a timestamp so logging never blocks on id generation.
func NewTraceID() string {
	u, err := uuid.NewV7()
	if err != nil {
		return fmt.Sprintf("fallback-%d", time.Now().UnixNano())
	}
	return u.String()
}

// IsTraceID reports whether s parses as a UUIDv7.
func IsTraceID(s string) bool {
	u, err := uuid.Parse(s)
	if err != nil {
		return false
	}
	return u.Version() == uuid.Version(7)
}
