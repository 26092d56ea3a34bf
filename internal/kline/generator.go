package kline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"ctakline/internal/domain"
	"ctakline/internal/session"
	"ctakline/internal/store"
	"ctakline/internal/util"
)

const (
	// DefaultInitKlineCount is how many historical bars a cold generator
	// hydrates per symbol on first use.
	DefaultInitKlineCount = 10
	// DefaultMaxKlineCount bounds the per-symbol bar cache.
	DefaultMaxKlineCount = 100000
)

// Generator is the single-period K-line generator (C4, spec.md §4.4): one
// ordered bar cache per symbol, hydrated from a BarStore on cold start and
// bounded at maxKlineCount.
type Generator struct {
	period   domain.Period
	registry *session.Registry
	builder  *session.BarTimelineBuilder
	barStore store.BarStore
	dbName   string

	maxKlineCount  int
	initKlineCount int

	mu     sync.Mutex
	caches map[string]*barCache

	warmRate *util.RateLimiter

	log *slog.Logger
}

// GeneratorOption configures optional Generator behavior.
type GeneratorOption func(*Generator)

// WithCacheLimits overrides the default eviction cap and hydration depth,
// primarily for tests that want a small, easily-exhausted cache.
func WithCacheLimits(maxKlineCount, initKlineCount int) GeneratorOption {
	return func(g *Generator) {
		g.maxKlineCount = maxKlineCount
		g.initKlineCount = initKlineCount
	}
}

// WithLogger overrides the default slog.Default() logger.
func WithLogger(log *slog.Logger) GeneratorOption {
	return func(g *Generator) { g.log = log }
}

// WithWarmRateLimit bounds how many hydration reads per minute WarmSymbols
// issues against the BarStore, so a cold start with a large symbol universe
// doesn't open a burst of concurrent reads against the store.
func WithWarmRateLimit(perMinute int) GeneratorOption {
	return func(g *Generator) { g.warmRate = util.NewRateLimiter(perMinute) }
}

// NewGenerator builds a Generator for one period. barStore may be nil, in
// which case hydration is skipped and HydrationMiss never fires (useful
// for tests and for periods where no store is configured).
func NewGenerator(period domain.Period, registry *session.Registry, builder *session.BarTimelineBuilder, barStore store.BarStore, opts ...GeneratorOption) *Generator {
	g := &Generator{
		period:         period,
		registry:       registry,
		builder:        builder,
		barStore:       barStore,
		dbName:         period.DBName(),
		maxKlineCount:  DefaultMaxKlineCount,
		initKlineCount: DefaultInitKlineCount,
		caches:         make(map[string]*barCache),
		log:            slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Result is the outcome of applying one tick to the generator: Bar is
// either the in-progress bar the tick just updated, or -- when Completed
// is true -- the now-sealed bar the tick's arrival closed out.
type Result struct {
	Bar       *domain.Bar
	Completed bool
}

// Update implements the C4 update contract (spec.md §4.4).
func (g *Generator) Update(ctx context.Context, tick domain.Tick) (Result, error) {
	bucket, err := bucketFor(tick, g.period, g.registry, g.builder)
	if err != nil {
		return Result{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	cache, ok := g.caches[tick.Symbol]
	if !ok {
		cache = newBarCache(g.maxKlineCount)
		g.caches[tick.Symbol] = cache
	}

	if cache.len() == 0 {
		g.hydrate(ctx, tick.Symbol, cache, time.Now().AddDate(0, 0, 3))
	}

	if existing, ok := cache.get(bucket); ok {
		existing.ApplyTick(tick)
		return Result{Bar: existing, Completed: false}, nil
	}

	newBar := domain.NewBar(tick.Symbol, tick.VtSymbol, g.period, bucket)
	newBar.ApplyTick(tick)

	previous := cache.last()
	cache.insert(newBar)

	if previous == nil {
		return Result{Bar: newBar, Completed: false}, nil
	}
	return Result{Bar: previous, Completed: true}, nil
}

// hydrate loads up to initKlineCount historical bars from the store when
// the per-symbol cache is cold, per spec.md §4.4 step 2. A short result is
// accepted silently (domain.ErrHydrationMiss is logged, not returned) --
// the generator proceeds with whatever it has.
func (g *Generator) hydrate(ctx context.Context, symbol string, cache *barCache, before time.Time) {
	if g.barStore == nil {
		return
	}
	bars, err := g.barStore.FindLastBars(ctx, g.dbName, symbol, g.initKlineCount, before)
	if err != nil {
		g.log.Warn("hydration failed", "symbol", symbol, "period", g.period, "error", err)
		return
	}
	if len(bars) < g.initKlineCount {
		g.log.Debug("hydration returned fewer bars than requested", "symbol", symbol, "period", g.period, "got", len(bars), "want", g.initKlineCount, "cause", domain.ErrHydrationMiss)
	}
	cache.merge(bars)
}

// GetLastBars implements get_last_klines (spec.md §4.4): ensure the cache
// holds at least count bars (hydrating the deficit), then return the most
// recent count qualifying bars oldest-first. If onlyCompleted, bars whose
// end is not yet in the past relative to newestTickDatetime are excluded.
func (g *Generator) GetLastBars(ctx context.Context, symbol string, count int, onlyCompleted bool, newestTickDatetime time.Time) []domain.Bar {
	g.mu.Lock()
	defer g.mu.Unlock()

	cache, ok := g.caches[symbol]
	if !ok {
		cache = newBarCache(g.maxKlineCount)
		g.caches[symbol] = cache
	}

	if deficit := count - cache.len(); deficit > 0 && g.barStore != nil {
		before := time.Now().AddDate(0, 0, 3)
		if first := cache.orderedBars(); len(first) > 0 {
			before = first[0].Datetime
		}
		loaded, err := g.barStore.FindLastBars(ctx, g.dbName, symbol, deficit, before)
		if err != nil {
			g.log.Warn("hydration failed", "symbol", symbol, "period", g.period, "error", err)
		} else {
			cache.merge(loaded)
		}
	}

	bars := cache.orderedBars()
	if newestTickDatetime.IsZero() {
		newestTickDatetime = time.Now()
	}

	endIdx := len(bars)
	if onlyCompleted {
		for endIdx > 0 {
			b := bars[endIdx-1]
			if g.period.IsDaily() {
				tradeDate := session.AdjustToNextWorkingDay(newestTickDatetime.Add(time.Duration(session.HourBias) * time.Hour))
				y, m, d := tradeDate.Date()
				cutoff := time.Date(y, m, d, 0, 0, 0, 0, tradeDate.Location())
				if b.Datetime.Before(cutoff) {
					break
				}
			} else {
				if b.Datetime.Before(newestTickDatetime) {
					break
				}
			}
			endIdx--
		}
	}

	startIdx := endIdx - count
	if startIdx < 0 {
		startIdx = 0
	}

	out := make([]domain.Bar, 0, endIdx-startIdx)
	for _, b := range bars[startIdx:endIdx] {
		out = append(out, *b)
	}
	return out
}

// WarmSymbols hydrates every symbol's cache ahead of live traffic, e.g. at
// process startup for a known symbol universe. If WithWarmRateLimit was
// configured, hydration reads are throttled to that rate; otherwise they
// run as fast as the store allows.
func (g *Generator) WarmSymbols(ctx context.Context, symbols []string) error {
	for _, symbol := range symbols {
		if g.warmRate != nil {
			if err := g.warmRate.Wait(ctx); err != nil {
				return err
			}
		}
		g.mu.Lock()
		cache, ok := g.caches[symbol]
		if !ok {
			cache = newBarCache(g.maxKlineCount)
			g.caches[symbol] = cache
		}
		g.hydrate(ctx, symbol, cache, time.Now().AddDate(0, 0, 3))
		g.mu.Unlock()
	}
	return nil
}
