package session

import (
	"sort"
	"time"
)

// Valid implements the tick validator (C2, spec §4.2): bias-transform the
// query time, binary-search the timeline for the rightmost point with
// offset <= the query, and report whether that point is an OPEN point.
// Equality counts as <= (a tick exactly at OPEN is valid; exactly at
// CLOSE is invalid).
//
// The source relies on Python's negative-index wraparound so that a query
// preceding every point lands on the timeline's last (CLOSE) entry. That
// is reimplemented explicitly here per the REDESIGN FLAG: if the
// bisect-right index is 0 (nothing in the timeline is <= the query), the
// query is treated as landing on the last point rather than wrapping.
func (tl Timeline) Valid(at time.Time) bool {
	if len(tl) == 0 {
		return false
	}
	target := biasedOffset(at)
	idx := sort.Search(len(tl), func(i int) bool { return tl[i].Offset > target })
	if idx == 0 {
		idx = len(tl)
	}
	return tl[idx-1].Kind == Open
}

// RightmostPointAt returns the rightmost session point with offset <= at,
// and its index in tl. Used by the mid-period bucket calculation (C4) to
// find the OPEN point bracketing a tick. Behaves like Valid's search: a
// query preceding every point resolves to the last point explicitly,
// never by wraparound.
func (tl Timeline) RightmostPointAt(at time.Time) (SessionPoint, int) {
	target := biasedOffset(at)
	idx := sort.Search(len(tl), func(i int) bool { return tl[i].Offset > target })
	if idx == 0 {
		idx = len(tl)
	}
	return tl[idx-1], idx - 1
}
