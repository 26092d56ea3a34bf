package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// sentinelLow mirrors the Python source's low = 0x7FFFFFFFF sentinel so
// that the very first tick applied to a new bar always lowers Low,
// regardless of how large the real price is.
var sentinelLow = decimal.New(0x7FFFFFFFF, 0)

// NewBar creates an empty bar keyed at datetime, with High/Open/Close/Volume
// zeroed and Low seeded to a large sentinel (mirrors KLine.__init__).
func NewBar(symbol, vtSymbol string, period Period, datetime time.Time) *Bar {
	return &Bar{
		Symbol:        symbol,
		VtSymbol:      vtSymbol,
		Period:        period,
		Datetime:      datetime,
		Low:           sentinelLow,
		OpenDatetime:  time.Time{},
		CloseDatetime: time.Time{},
	}
}

// String renders a debug representation, mirroring KLine.__repr__.
func (b *Bar) String() string {
	return fmt.Sprintf(
		"[datetime=%s, VtSymbol=%s, Symbol=%s, Open=%s <%s>, High=<%s>, Low=<%s>, Close=%s <%s>, Volume=<%d>]",
		b.Datetime, b.VtSymbol, b.Symbol,
		b.OpenDatetime, b.Open, b.High, b.Low,
		b.CloseDatetime, b.Close, b.Volume,
	)
}

// ApplyTick mutates the bar with one tick, per spec §4.4: open is set by
// the earliest tick seen so far, close by the latest, high/low expand to
// bound LastPrice, and volume accumulates LastVolume.
//
// OpenDatetime and CloseDatetime both start zero (meaning "unset"), so the
// first tick always sets both: Open through the IsZero check, and Close
// because any real tick time is after the zero time.
func (b *Bar) ApplyTick(t Tick) {
	if b.OpenDatetime.IsZero() || t.Datetime.Before(b.OpenDatetime) {
		b.Open = t.LastPrice
		b.OpenDatetime = t.Datetime
	}
	if t.Datetime.After(b.CloseDatetime) {
		b.Close = t.LastPrice
		b.CloseDatetime = t.Datetime
	}
	if b.High.IsZero() || t.LastPrice.GreaterThan(b.High) {
		b.High = t.LastPrice
	}
	if t.LastPrice.LessThan(b.Low) {
		b.Low = t.LastPrice
	}
	b.Volume += t.LastVolume
}
