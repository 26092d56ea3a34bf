package kline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"ctakline/internal/domain"
	"ctakline/internal/persist"
	"ctakline/internal/session"
	"ctakline/internal/store"
)

// tickDBName is the database name for raw tick persistence, per spec.md §6.
const tickDBName = "VnTrader_Tick_Db"

// nowFunc is indirected so tests can pin the "ignore past" guard to a
// fixed instant instead of the wall clock.
var nowFunc = time.Now

// MultiGenerator fans a validated tick stream out to one Generator per
// configured period, computes the per-tick volume delta, and optionally
// enqueues tick/bar persistence tasks (C5, spec.md §4.5).
type MultiGenerator struct {
	registry *session.Registry
	builder  *session.BarTimelineBuilder
	periods  []domain.Period
	gens     map[domain.Period]*Generator

	recordingTick     bool
	worker            *persist.Worker
	warmRatePerMinute int

	mu               sync.Mutex
	lastDailyVolumes map[string]int64

	// datetimeGuard rejects ticks older than this instant, matching
	// ignore_past's datetime_guard: set to "now" at construction when
	// ignorePast is true, else left zero (epoch, accepting everything).
	datetimeGuard int64 // unix nanoseconds; 0 means "accept everything"

	log *slog.Logger
}

// MultiGeneratorOption configures optional MultiGenerator behavior.
type MultiGeneratorOption func(*MultiGenerator)

// WithRecordingTick enables tick persistence alongside bar persistence.
func WithRecordingTick(enabled bool) MultiGeneratorOption {
	return func(m *MultiGenerator) { m.recordingTick = enabled }
}

// WithPersistenceWorker wires an async persistence worker (C6); without
// one, ticks and bars are generated but never persisted.
func WithPersistenceWorker(w *persist.Worker) MultiGeneratorOption {
	return func(m *MultiGenerator) { m.worker = w }
}

// WithIgnorePast rejects ticks older than "now" at construction time,
// mirroring KLineGenerator(ignore_past=True) -- the default in the source.
func WithIgnorePast(ignorePast bool) MultiGeneratorOption {
	return func(m *MultiGenerator) {
		if ignorePast {
			m.datetimeGuard = nowUnixNano()
		} else {
			m.datetimeGuard = 0
		}
	}
}

// WithMultiGenLogger overrides the default logger.
func WithMultiGenLogger(log *slog.Logger) MultiGeneratorOption {
	return func(m *MultiGenerator) { m.log = log }
}

// WithWarmupRateLimit bounds how many hydration reads per minute WarmSymbols
// issues per period against the BarStore, so warming a large configured
// symbol universe at cold start doesn't open a burst of concurrent store
// reads. Propagated to each underlying per-period Generator.
func WithWarmupRateLimit(perMinute int) MultiGeneratorOption {
	return func(m *MultiGenerator) { m.warmRatePerMinute = perMinute }
}

// nowUnixNano is split out so tests can avoid depending on wall-clock time
// when constructing a guard directly.
func nowUnixNano() int64 { return nowFunc().UnixNano() }

// NewMultiGenerator builds a fan-out generator for the given periods,
// each backed by its own BarStore-hydrated Generator.
func NewMultiGenerator(periods []domain.Period, registry *session.Registry, barStore store.BarStore, opts ...MultiGeneratorOption) *MultiGenerator {
	builder := session.NewBarTimelineBuilder()
	m := &MultiGenerator{
		registry:         registry,
		builder:          builder,
		periods:          periods,
		gens:             make(map[domain.Period]*Generator),
		lastDailyVolumes: make(map[string]int64),
		log:              slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}

	genOpts := []GeneratorOption{WithLogger(m.log)}
	if m.warmRatePerMinute > 0 {
		genOpts = append(genOpts, WithWarmRateLimit(m.warmRatePerMinute))
	}
	for _, p := range periods {
		m.gens[p] = NewGenerator(p, registry, builder, barStore, genOpts...)
	}
	return m
}

// WarmSymbols hydrates every configured period's per-symbol cache for the
// given symbol universe ahead of live traffic, e.g. at process startup.
// It forwards to each underlying Generator.WarmSymbols in turn.
func (m *MultiGenerator) WarmSymbols(ctx context.Context, symbols []string) error {
	for _, p := range m.periods {
		if err := m.gens[p].WarmSymbols(ctx, symbols); err != nil {
			return err
		}
	}
	return nil
}

// Update implements the C5 update contract (spec.md §4.5).
//
// activeSymbolMap maps a contract symbol to its continuous-contract alias;
// ticks and bars are additionally persisted under the alias when present.
// It may be nil.
func (m *MultiGenerator) Update(ctx context.Context, tick domain.Tick, activeSymbolMap map[string]string) (map[domain.Period]Result, bool) {
	if err := tick.Normalize(); err != nil {
		m.log.Warn("tick normalization failed", "error", err)
		return nil, false
	}

	if m.datetimeGuard != 0 && tick.Datetime.UnixNano() < m.datetimeGuard {
		return nil, false
	}

	timeline, err := m.registry.TimelineFor(tick)
	if err != nil {
		m.log.Warn("unknown timeline, dropping tick", "symbol", tick.Symbol, "error", err)
		return nil, false
	}
	if !timeline.Valid(tick.Datetime) {
		return nil, false // InvalidTick: expected, not an error (spec.md §7)
	}

	tick.LastVolume = m.computeVolumeDelta(tick)

	alias, hasAlias := "", false
	if activeSymbolMap != nil {
		alias, hasAlias = activeSymbolMap[tick.Symbol]
	}

	if m.recordingTick && m.worker != nil {
		m.worker.Enqueue(persist.UpsertTickTask(tickDBName, tick.Symbol, tick))
		if hasAlias {
			m.worker.Enqueue(persist.UpsertTickTask(tickDBName, alias, tick))
		}
	}

	results := make(map[domain.Period]Result, len(m.periods))
	for _, p := range m.periods {
		res, err := m.gens[p].Update(ctx, tick)
		if err != nil {
			m.log.Warn("generator update failed", "symbol", tick.Symbol, "period", p, "error", err)
			continue
		}
		results[p] = res

		if m.worker != nil && res.Bar != nil {
			m.worker.Enqueue(persist.UpsertBarTask(p.DBName(), tick.Symbol, *res.Bar))
			if hasAlias {
				m.worker.Enqueue(persist.UpsertBarTask(p.DBName(), alias, *res.Bar))
			}
		}
	}

	return results, true
}

// computeVolumeDelta implements the §4.5 step-4 differencing rule: delta
// is max(tick.Volume - lastDailyVolumes[symbol], 0); the first tick seen
// for a symbol seeds the map and yields delta 0, an accepted information
// loss preserved from the source (spec.md §9).
func (m *MultiGenerator) computeVolumeDelta(tick domain.Tick) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	last, seen := m.lastDailyVolumes[tick.Symbol]
	m.lastDailyVolumes[tick.Symbol] = tick.Volume
	if !seen {
		return 0
	}
	delta := tick.Volume - last
	if delta < 0 {
		return 0
	}
	return delta
}
