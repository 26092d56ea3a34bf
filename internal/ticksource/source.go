// Package ticksource defines the tick feed boundary the engine consumes
// from: a market-data gateway, a CSV replay file, or a test fixture.
package ticksource

import (
	"context"
	"io"

	"ctakline/internal/domain"
)

// Source produces ticks one at a time. Next blocks until a tick is
// available, ctx is cancelled, or the source is exhausted (io.EOF).
type Source interface {
	Next(ctx context.Context) (domain.Tick, error)
}

// ErrExhausted is returned by a Source once it has no more ticks to
// produce, e.g. at the end of a replay file.
var ErrExhausted = io.EOF
