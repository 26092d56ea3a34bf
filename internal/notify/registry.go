// Package notify implements the bar-completion subscription registry (C7,
// spec.md §4.7): register/unregister callbacks keyed by (symbol, period),
// dispatched synchronously, in registration order, on the tick-processing
// goroutine.
package notify

import (
	"log/slog"
	"strings"
	"sync"

	"ctakline/internal/domain"
)

// Callback is invoked with a completed bar. Panics raised inside a
// callback are recovered, logged, and do not prevent sibling callbacks
// from running or abort tick processing (spec.md §7 CallbackException).
type Callback func(bar domain.Bar)

// Handle identifies one registered callback for removal. Per spec.md §9's
// design note on cyclic/self-referential state, the handle is an opaque
// (symbol, period, slot) identity rather than the callback value itself,
// so Unsubscribe never needs structural equality over closures.
type Handle struct {
	symbol string
	period domain.Period
	slot   int
}

type subscriber struct {
	slot int
	fn   Callback
}

// Registry is the completion listener table: symbol -> period -> ordered
// list of callbacks. It is constructed once by the caller; there is no
// package-level singleton.
type Registry struct {
	mu        sync.Mutex
	listeners map[string]map[domain.Period][]subscriber
	nextSlot  int
	log       *slog.Logger
}

// NewRegistry returns an empty subscription registry.
func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		listeners: make(map[string]map[domain.Period][]subscriber),
		log:       log,
	}
}

// allSymbolsKey is a reserved listener-table key for SubscribeAll callbacks,
// which Dispatch always consults in addition to the tick's own symbol. No
// real contract symbol normalizes to it (normalizeSymbol only uppercases).
const allSymbolsKey = "*"

// SubscribeAll registers a callback for every symbol on a given period --
// e.g. a diagnostic tool printing every completed bar regardless of which
// contract produced it. It returns a handle usable with Unsubscribe.
func (r *Registry) SubscribeAll(period domain.Period, cb Callback) Handle {
	return r.Subscribe(allSymbolsKey, period, cb)
}

// Subscribe registers a callback for (symbol, period) and returns a handle
// for later removal.
func (r *Registry) Subscribe(symbol string, period domain.Period, cb Callback) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	symbol = normalizeSymbol(symbol)
	slot := r.nextSlot
	r.nextSlot++

	byPeriod, ok := r.listeners[symbol]
	if !ok {
		byPeriod = make(map[domain.Period][]subscriber)
		r.listeners[symbol] = byPeriod
	}
	byPeriod[period] = append(byPeriod[period], subscriber{slot: slot, fn: cb})

	return Handle{symbol: symbol, period: period, slot: slot}
}

// Unsubscribe removes the callback identified by h, if still present.
func (r *Registry) Unsubscribe(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	byPeriod, ok := r.listeners[h.symbol]
	if !ok {
		return
	}
	subs := byPeriod[h.period]
	for i, s := range subs {
		if s.slot == h.slot {
			byPeriod[h.period] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

// Dispatch invokes every callback registered for (bar.Symbol, period), in
// registration order, synchronously on the calling goroutine. A panicking
// callback is recovered and logged; it does not prevent later callbacks in
// the same dispatch from running.
func (r *Registry) Dispatch(bar domain.Bar, period domain.Period) {
	r.mu.Lock()
	var subs []subscriber
	if byPeriod, ok := r.listeners[normalizeSymbol(bar.Symbol)]; ok {
		subs = append(subs, byPeriod[period]...)
	}
	if byPeriod, ok := r.listeners[allSymbolsKey]; ok {
		subs = append(subs, byPeriod[period]...)
	}
	r.mu.Unlock()

	for _, s := range subs {
		r.invoke(s, bar)
	}
}

func (r *Registry) invoke(s subscriber, bar domain.Bar) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("bar-completion callback panicked", "symbol", bar.Symbol, "period", bar.Period, "recovered", rec)
		}
	}()
	s.fn(bar)
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(symbol)
}
