// Package domain holds the core data model for the tick-to-K-line
// aggregation pipeline: ticks, bars, exchanges, and periods.
package domain

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Exchange identifies the exchange a futures product trades on.
type Exchange string

const (
	ExchangeUnknown Exchange = "UNKNOWN"
	ExchangeSHFE    Exchange = "SHFE"
	ExchangeDCE     Exchange = "DCE"
	ExchangeCZCE    Exchange = "CZCE"
	ExchangeCFFEX   Exchange = "CFFEX"
)

// ProductClass disambiguates CFFEX products that share an exchange but
// trade on different session templates (index futures vs. treasury bonds).
type ProductClass string

const (
	ProductClassIF ProductClass = "IF" // stock index futures
	ProductClassTB ProductClass = "TB" // treasury bond futures
)

// Period is a K-line aggregation period, expressed in minutes except for
// PeriodDaily which aggregates to a full trading day.
type Period int

const (
	Period1Min Period = iota
	Period2Min
	Period3Min
	Period5Min
	Period15Min
	Period30Min
	Period60Min
	Period120Min
	Period240Min
	PeriodDaily
)

// minutesOfPeriod mirrors MINUTES_OF_PERIOD from the source engine.
var minutesOfPeriod = [...]int{1, 2, 3, 5, 15, 30, 60, 120, 240, 1440}

// Minutes returns the number of minutes a period spans. PeriodDaily
// returns 1440 even though daily bars bucket by calendar date, not a
// fixed-length window.
func (p Period) Minutes() int {
	if p < Period1Min || p > PeriodDaily {
		return 0
	}
	return minutesOfPeriod[p]
}

// IsShort reports whether p belongs to the short-period class (1, 3, 5, 15
// minutes) that never crosses a session gap.
func (p Period) IsShort() bool {
	switch p {
	case Period1Min, Period3Min, Period5Min, Period15Min:
		return true
	}
	return false
}

// IsMid reports whether p belongs to the mid-period class (2, 30, 60, 120,
// 240 minutes) whose bar boundaries must honor the session timeline.
func (p Period) IsMid() bool {
	switch p {
	case Period2Min, Period30Min, Period60Min, Period120Min, Period240Min:
		return true
	}
	return false
}

// IsDaily reports whether p is the daily period.
func (p Period) IsDaily() bool { return p == PeriodDaily }

// PeriodFromMinutes resolves a configured minute count (1440 for daily) to
// its Period constant, per PERIOD_DICT's minutes-keyed lookup table. ok is
// false for any value not in minutesOfPeriod.
func PeriodFromMinutes(minutes int) (p Period, ok bool) {
	for i, m := range minutesOfPeriod {
		if m == minutes {
			return Period(i), true
		}
	}
	return 0, false
}

// String renders a human-readable period label used in logs and in the
// archive's period column. Database names come from DBName instead.
func (p Period) String() string {
	if p.IsDaily() {
		return "Daily"
	}
	return (time.Duration(p.Minutes()) * time.Minute).String()
}

// DBName returns the persistence database name for this period, matching
// the VnTrader_{N}Min_Db / VnTrader_Daily_Db convention.
func (p Period) DBName() string {
	if p.IsDaily() {
		return "VnTrader_Daily_Db"
	}
	return "VnTrader_" + strconv.Itoa(p.Minutes()) + "Min_Db"
}

// Tick is one market-data update for a futures contract.
type Tick struct {
	Symbol      string // uppercase product + month code, e.g. "RB2410"
	VtSymbol    string // vt-system qualified symbol
	Exchange    Exchange
	Date        string // YYYYMMDD, used when Datetime and ISODatetime are unset
	Time        string // HH:MM:SS.ffffff, used when Datetime and ISODatetime are unset
	ISODatetime string // precomputed ISO-8601 alternative to Date/Time (§6)
	Datetime    time.Time
	LastPrice   decimal.Decimal
	Volume      int64 // cumulative daily volume, monotonic within a trading day

	// LastVolume is the derived per-tick volume delta, computed by
	// MultiGenerator.Update (spec §4.5) before the tick reaches C4.
	LastVolume int64
}

// Normalize uppercases the letter-bearing fields and resolves Datetime from
// Date/Time when it has not already been set, matching
// CtaDrEngine.procecssTickEvent's tick preprocessing.
func (t *Tick) Normalize() error {
	t.Symbol = strings.ToUpper(t.Symbol)
	t.VtSymbol = strings.ToUpper(t.VtSymbol)
	t.Exchange = Exchange(strings.ToUpper(string(t.Exchange)))
	if t.Datetime.IsZero() {
		if t.ISODatetime != "" {
			dt, err := ParseISODatetime(t.ISODatetime)
			if err != nil {
				return err
			}
			t.Datetime = dt
		} else {
			dt, err := ParseTickDatetime(t.Date, t.Time)
			if err != nil {
				return err
			}
			t.Datetime = dt
		}
	}
	return nil
}

// ProductCode extracts the product code from a contract symbol by
// stripping trailing digits (month code) and uppercasing, e.g.
// "rb2410" -> "RB".
func ProductCode(symbol string) string {
	s := strings.ToUpper(symbol)
	i := len(s)
	for i > 0 && s[i-1] >= '0' && s[i-1] <= '9' {
		i--
	}
	return s[:i]
}

// Bar is an OHLCV aggregate for one (symbol, period, bucket).
type Bar struct {
	Symbol   string
	VtSymbol string
	Period   Period

	// Datetime is the bucket key: for sub-daily periods, the bar's end
	// wall-clock time; for daily bars, midnight of the owning trading date.
	Datetime time.Time

	Open  decimal.Decimal
	High  decimal.Decimal
	Low   decimal.Decimal
	Close decimal.Decimal

	// OpenDatetime/CloseDatetime record the timestamps of the ticks that
	// set Open/Close, so a restarted generator can tell whether a
	// rehydrated bar is still open for updates.
	OpenDatetime  time.Time
	CloseDatetime time.Time

	Volume int64
}
