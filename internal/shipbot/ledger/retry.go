package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/nurjigit18/shipledger/internal/common/logtrace"
)

// RetryPolicy bounds retries of ledger calls with exponential backoff.
type RetryPolicy struct {
	Attempts uint          // total attempts, at least 1
	Delay    time.Duration // delay before the first retry, doubled each time
	MaxDelay time.Duration // 0 means uncapped
}

// DefaultRetryPolicy makes three attempts starting with a one second delay.
var DefaultRetryPolicy = RetryPolicy{Attempts: 3, Delay: time.Second}

// Do runs fn until it succeeds, fails permanently or attempts run out. The last
// error is returned.
func (p RetryPolicy) Do(ctx context.Context, op string, fn func() error) error {
	attempts := p.Attempts
	if attempts == 0 {
		attempts = 1
	}
	opts := []retry.Option{
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(p.Delay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryable),
		retry.OnRetry(func(n uint, err error) {
			logtrace.Logger(ctx).Warn().Err(err).Str("op", op).Uint("attempt", n+1).Msg("ledger call failed, retrying")
		}),
	}
	if p.MaxDelay > 0 {
		opts = append(opts, retry.MaxDelay(p.MaxDelay))
	}
	return retry.Do(fn, opts...)
}

// retryable reports whether a failure may be transient.
func retryable(err error) bool {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, ErrSheetNotFound), errors.Is(err, ErrRowOutOfRange),
		errors.Is(err, ErrInvalidRecord), errors.Is(err, ErrColumnNotFound):
		return false
	}
	return true
}

// RetryingGateway applies a RetryPolicy to reads, cell updates and header checks.
// Appends are passed through once: a timed out append may have landed, and a
// retry would duplicate the row.
type RetryingGateway struct {
	next   Gateway
	policy RetryPolicy
}

var _ Gateway = (*RetryingGateway)(nil)

// WithRetry wraps gw with policy.
func WithRetry(gw Gateway, policy RetryPolicy) *RetryingGateway {
	return &RetryingGateway{next: gw, policy: policy}
}

func (g *RetryingGateway) ReadAllRows(ctx context.Context, sheet string) ([][]string, error) {
	var rows [][]string
	err := g.policy.Do(ctx, "read_all_rows", func() error {
		var err error
		rows, err = g.next.ReadAllRows(ctx, sheet)
		return err
	})
	return rows, err
}

func (g *RetryingGateway) AppendRow(ctx context.Context, sheet string, row []string) error {
	return g.next.AppendRow(ctx, sheet, row)
}

func (g *RetryingGateway) UpdateCell(ctx context.Context, sheet string, row, col int, value string) error {
	return g.policy.Do(ctx, "update_cell", func() error {
		return g.next.UpdateCell(ctx, sheet, row, col, value)
	})
}

func (g *RetryingGateway) EnsureHeaders(ctx context.Context, sheet string, headers []string) error {
	return g.policy.Do(ctx, "ensure_headers", func() error {
		return g.next.EnsureHeaders(ctx, sheet, headers)
	})
}
