package logtrace

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/nurjigit18/shipledger/internal/common/ids"
)

type traceIDContextKey struct{}

// WithTraceID stores a new trace id in ctx and returns a context whose logger
// carries it. An existing trace id is kept.
func WithTraceID(ctx context.Context) context.Context {
	if TraceIDFromContext(ctx) != "" {
		return ctx
	}
	id := ids.NewTraceID()
	ctx = context.WithValue(ctx, traceIDContextKey{}, id)
	return Logger(ctx).With().Str("trace_id", id).Logger().WithContext(ctx)
}

// TraceIDFromContext returns the trace id stored by WithTraceID, or "".
func TraceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(traceIDContextKey{}).(string)
	return id
}

// Logger returns the context logger, falling back to the global logger when the
// context carries none.
func Logger(ctx context.Context) *zerolog.Logger {
	l := log.Ctx(ctx)
	if l.GetLevel() == zerolog.Disabled {
		g := log.Logger
		return &g
	}
	return l
}
