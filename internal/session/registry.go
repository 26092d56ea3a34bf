package session

import (
	"fmt"

	"ctakline/internal/domain"
)

// Registry holds the trading-session configuration tables (day sessions
// per exchange, night-session templates per product code) and answers
// timelineFor queries. It is constructed once by the caller; there is no
// package-level mutable singleton, per the "no process-wide mutable
// statics" design note.
type Registry struct {
	dayTables      map[domain.Exchange]Timeline
	cffexTables    map[domain.ProductClass]Timeline
	nightTemplates map[string]Timeline

	cffexClassifier func(productCode string) (domain.ProductClass, bool)
}

// NewRegistry builds the registry with the default day/night session
// tables from spec.md §4.1.
func NewRegistry() *Registry {
	dayDefault := Timeline{
		point(9, 0, Open), point(10, 15, Close),
		point(10, 30, Open), point(11, 30, Close),
		point(13, 30, Open), point(15, 0, Close),
	}
	cffexIF := Timeline{
		point(9, 30, Open), point(11, 30, Close),
		point(13, 0, Open), point(15, 0, Close),
	}
	cffexTB := Timeline{
		point(9, 15, Open), point(11, 30, Close),
		point(13, 0, Open), point(15, 15, Close),
	}

	n1 := combine(Timeline{point(21, 0, Open), point(2, 30, Close)}, dayDefault)
	n2 := combine(Timeline{point(21, 0, Open), point(1, 0, Close)}, dayDefault)
	n3 := combine(Timeline{point(21, 0, Open), point(23, 0, Close)}, dayDefault)
	n4 := combine(Timeline{point(21, 0, Open), point(23, 30, Close)}, dayDefault)
	n5 := combine(Timeline{point(21, 0, Open), point(23, 30, Close)}, dayDefault)

	nightTemplates := map[string]Timeline{}
	for _, code := range []string{"AU", "AG"} {
		nightTemplates[code] = n1
	}
	for _, code := range []string{"CU", "AL", "ZN", "PB", "SN", "NI"} {
		nightTemplates[code] = n2
	}
	for _, code := range []string{"RU", "RB", "HC", "BU"} {
		nightTemplates[code] = n3
	}
	for _, code := range []string{"P", "J", "M", "Y", "A", "B", "JM", "I"} {
		nightTemplates[code] = n4
	}
	for _, code := range []string{"SR", "CF", "RM", "MAPTA", "ZC", "FG", "OI"} {
		nightTemplates[code] = n5
	}

	return &Registry{
		dayTables: map[domain.Exchange]Timeline{
			domain.ExchangeUnknown: dayDefault,
			domain.ExchangeSHFE:    dayDefault,
			domain.ExchangeDCE:     dayDefault,
			domain.ExchangeCZCE:    dayDefault,
		},
		cffexTables: map[domain.ProductClass]Timeline{
			domain.ProductClassIF: cffexIF,
			domain.ProductClassTB: cffexTB,
		},
		nightTemplates: nightTemplates,
	}
}

// combine concatenates a night template with the day session it precedes,
// biased offsets already ascending (night 21:00-02:30 biases to
// 03:00-08:30, day session biases to 15:00-21:00), so straight
// concatenation preserves sort order.
func combine(night, day Timeline) Timeline {
	out := make(Timeline, 0, len(night)+len(day))
	out = append(out, night...)
	out = append(out, day...)
	return out
}

// SetCFFEXClassifier registers a function that maps a product code (e.g.
// "IF", "IC", "TF", "TS") to its CFFEX product class, resolving the
// ambiguity the source engine leaves unimplemented (spec.md §9). Without a
// classifier, CFFEX ticks are rejected with domain.ErrCFFEXAmbiguous.
func (r *Registry) SetCFFEXClassifier(classifier func(productCode string) (domain.ProductClass, bool)) {
	r.cffexClassifier = classifier
}

// TimelineFor resolves the trading-session timeline for a tick's product,
// mirroring timeline_for_tick: product code (trailing digits stripped,
// uppercased) is checked against the night-session table first; failing
// that, the tick's exchange is consulted.
func (r *Registry) TimelineFor(tick domain.Tick) (Timeline, error) {
	code := domain.ProductCode(tick.Symbol)

	if tl, ok := r.nightTemplates[code]; ok {
		return tl, nil
	}

	if tick.Exchange == domain.ExchangeCFFEX {
		if r.cffexClassifier == nil {
			return nil, fmt.Errorf("session: CFFEX product %q: %w, %w", code, domain.ErrCFFEXAmbiguous, domain.ErrUnknownTimeline)
		}
		class, ok := r.cffexClassifier(code)
		if !ok {
			return nil, fmt.Errorf("session: CFFEX product %q not classified: %w, %w", code, domain.ErrCFFEXAmbiguous, domain.ErrUnknownTimeline)
		}
		tl, ok := r.cffexTables[class]
		if !ok {
			return nil, fmt.Errorf("session: CFFEX product class %q: %w", class, domain.ErrUnknownTimeline)
		}
		return tl, nil
	}

	if tl, ok := r.dayTables[tick.Exchange]; ok {
		return tl, nil
	}

	return nil, fmt.Errorf("session: symbol %q exchange %q: %w", tick.Symbol, tick.Exchange, domain.ErrUnknownTimeline)
}
