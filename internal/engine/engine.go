// Package engine wires the tick-ingestion pipeline together: session
// validation and bar generation (C4/C5), asynchronous persistence (C6), and
// bar-completion notification (C7). It is the Go counterpart of
// CtaDrEngine.procecssTickEvent.
package engine

import (
	"context"
	"log/slog"

	"ctakline/internal/domain"
	"ctakline/internal/kline"
	"ctakline/internal/notify"
)

// Engine owns one MultiGenerator and drives its results into the
// notification registry. ActiveSymbolMap resolves a contract symbol to its
// continuous-contract alias; bars are persisted under both, while
// completion callbacks are dispatched under the contract symbol only.
type Engine struct {
	gen             *kline.MultiGenerator
	notifier        *notify.Registry
	activeSymbolMap map[string]string
	log             *slog.Logger
}

// Option configures optional Engine behavior.
type Option func(*Engine)

// WithActiveSymbolMap installs the contract-to-continuous-alias table.
func WithActiveSymbolMap(m map[string]string) Option {
	return func(e *Engine) { e.activeSymbolMap = m }
}

// WithLogger overrides the default logger.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// New builds an Engine around an already-configured MultiGenerator and
// notification Registry.
func New(gen *kline.MultiGenerator, notifier *notify.Registry, opts ...Option) *Engine {
	e := &Engine{gen: gen, notifier: notifier, log: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ProcessTick runs one tick through the full pipeline: normalize, validate,
// update every configured period's bars, persist, and dispatch completion
// notifications for any period whose bar just closed.
func (e *Engine) ProcessTick(ctx context.Context, tick domain.Tick) error {
	results, accepted := e.gen.Update(ctx, tick, e.activeSymbolMap)
	if !accepted {
		return nil // invalid/stale tick: logged upstream, not an error
	}

	for period, res := range results {
		if res.Completed && res.Bar != nil {
			e.notifier.Dispatch(*res.Bar, period)
		}
	}
	return nil
}
