package domain

import (
	"fmt"
	"time"

	"github.com/relvacode/iso8601"
)

// tickDatetimeLayout matches the "YYYYMMDD HH:MM:SS.ffffff" format used by
// the date/time fields of the §6 tick input contract.
const tickDatetimeLayout = "20060102 15:04:05.000000"

// ParseTickDatetime combines the separate date (YYYYMMDD) and time
// (HH:MM:SS.ffffff) fields of the tick input contract into a single
// time.Time, mirroring
// `dt.datetime.strptime(' '.join([tick.date, tick.time]), '%Y%m%d %H:%M:%S.%f')`.
func ParseTickDatetime(date, clock string) (time.Time, error) {
	t, err := time.ParseInLocation(tickDatetimeLayout, date+" "+clock, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("domain: parse tick datetime %q %q: %w", date, clock, err)
	}
	return t, nil
}

// ParseISODatetime parses the optional precomputed ISO-8601 `datetime`
// field that a tick source may supply instead of separate date/time
// fields (§6's "or a precomputed datetime" alternative).
func ParseISODatetime(s string) (time.Time, error) {
	t, err := iso8601.ParseString(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("domain: parse ISO-8601 datetime %q: %w", s, err)
	}
	return t, nil
}
