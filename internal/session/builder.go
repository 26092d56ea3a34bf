package session

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"ctakline/internal/domain"
)

// BarTimelineBuilder synthesizes, for mid-range periods (2, 30, 60, 120,
// 240 minutes), the sequence of bar-boundary points within a product's
// trading day, honoring session gaps (spec.md §4.3 / C3). Results are
// memoized per (symbol, period); the memo is owned by the builder
// instance, not a package-level cache.
type BarTimelineBuilder struct {
	mu   sync.Mutex
	memo map[string]Timeline
}

// NewBarTimelineBuilder returns a builder with an empty, instance-owned
// memo.
func NewBarTimelineBuilder() *BarTimelineBuilder {
	return &BarTimelineBuilder{memo: make(map[string]Timeline)}
}

func memoKey(symbol string, period domain.Period) string {
	return symbol + "|" + strconv.Itoa(int(period))
}

// Build returns the bar timeline for (symbol, period) given the product's
// session timeline, computing and caching it on first use.
func (b *BarTimelineBuilder) Build(symbol string, period domain.Period, session Timeline) (Timeline, error) {
	key := memoKey(symbol, period)

	b.mu.Lock()
	if tl, ok := b.memo[key]; ok {
		b.mu.Unlock()
		return tl, nil
	}
	b.mu.Unlock()

	tl, err := buildBarTimeline(period, session)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	b.memo[key] = tl
	b.mu.Unlock()
	return tl, nil
}

// buildBarTimeline implements the carry algorithm from spec.md §4.3: walk
// the session intervals in order, tracking the remainder minutes the next
// session must absorb into the bar straddling the gap.
func buildBarTimeline(period domain.Period, session Timeline) (Timeline, error) {
	if len(session) == 0 || len(session)%2 != 0 {
		return nil, fmt.Errorf("session: malformed timeline of length %d", len(session))
	}

	periodDur := time.Duration(period.Minutes()) * time.Minute

	var result Timeline
	carry := time.Duration(0)

	for i := 0; i+1 < len(session); i += 2 {
		open, closeP := session[i], session[i+1]
		if open.Kind != Open || closeP.Kind != Close {
			return nil, fmt.Errorf("session: malformed timeline, expected OPEN/CLOSE pair at index %d", i)
		}

		length := closeP.Offset - open.Offset

		if carry > length {
			carry -= length
			continue
		}

		remaining := length - carry
		start := open.Offset + carry

		q := int(remaining / periodDur)
		r := remaining % periodDur

		for k := 0; k < q; k++ {
			result = append(result, SessionPoint{Offset: start + time.Duration(k)*periodDur, Kind: Open})
		}

		if r > 0 {
			result = append(result, SessionPoint{Offset: start + time.Duration(q)*periodDur, Kind: Open})
			carry = periodDur - r
		} else {
			result = append(result, SessionPoint{Offset: closeP.Offset, Kind: Close})
			carry = 0
		}
	}

	if len(result) == 0 || result[len(result)-1] != session[len(session)-1] {
		result = append(result, session[len(session)-1])
	}

	return result, nil
}
