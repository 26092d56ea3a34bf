package kline

import (
	"fmt"
	"time"

	"ctakline/internal/domain"
	"ctakline/internal/session"
)

// bucketFor computes the bar bucket a tick belongs to, dispatching on the
// period's class (spec.md §4.4):
//   - short periods {1,3,5,15 min}: fixed minute grid, never crosses a
//     session gap.
//   - mid periods {2,30,60,120,240 min}: aligned to the product's bar
//     timeline (C3), with a Friday-night-crosses-weekend adjustment.
//   - daily: midnight of the trading date, adjusted past weekends.
func bucketFor(
	tick domain.Tick,
	period domain.Period,
	registry *session.Registry,
	builder *session.BarTimelineBuilder,
) (time.Time, error) {
	switch {
	case period.IsShort():
		return shortBucket(tick, period), nil
	case period.IsMid():
		return midBucket(tick, period, registry, builder)
	case period.IsDaily():
		return dailyBucket(tick), nil
	default:
		return time.Time{}, fmt.Errorf("kline: unrecognized period %d", period)
	}
}

// shortBucket floors the tick to a period-minute grid anchored at the Go
// zero time (equivalent to the source's grid anchored at datetime.min) and
// returns the bar's end time.
func shortBucket(tick domain.Tick, period domain.Period) time.Time {
	periodDur := time.Duration(period.Minutes()) * time.Minute
	return tick.Datetime.Truncate(periodDur).Add(periodDur)
}

// midBucket locates the tick within the product's bar timeline (built by
// C3) and returns the offset from the tick to the next boundary point,
// added to the tick's own date -- with a correction for bars whose next
// boundary would otherwise land on a Friday-night-into-Saturday date.
func midBucket(
	tick domain.Tick,
	period domain.Period,
	registry *session.Registry,
	builder *session.BarTimelineBuilder,
) (time.Time, error) {
	sessionTimeline, err := registry.TimelineFor(tick)
	if err != nil {
		return time.Time{}, err
	}

	barTimeline, err := builder.Build(tick.Symbol, period, sessionTimeline)
	if err != nil {
		return time.Time{}, err
	}

	tickMinute := tick.Datetime.Truncate(time.Minute)
	tickOffset := session.BiasedOffset(tickMinute)

	point, idx := barTimeline.RightmostPointAt(tickMinute)
	if point.Kind != session.Open {
		return time.Time{}, fmt.Errorf("kline: tick %s at %s landed on a bar-timeline CLOSE boundary; should have been rejected by the validator", tick.Symbol, tick.Datetime)
	}
	if idx+1 >= len(barTimeline) {
		return time.Time{}, fmt.Errorf("kline: tick %s at %s has no following bar-timeline boundary", tick.Symbol, tick.Datetime)
	}
	next := barTimeline[idx+1]

	delta := next.Offset - tickOffset
	endDatetime := tickMinute.Add(delta)

	// Friday-night-crosses-weekend adjustment (spec.md §4.4 edge case):
	// if the tick's bias-shifted datetime falls on a Saturday (meaning the
	// tick itself occurred in Friday's night session) and the bar it
	// belongs to straddles the night session's close, the bar's end date
	// must be pushed past the weekend or a Monday tick could never find
	// this bucket again.
	if tick.Datetime.Add(time.Duration(session.HourBias) * time.Hour).Weekday() == time.Saturday {
		nightEnd, ok := firstClosePoint(sessionTimeline)
		if ok && point.Offset < nightEnd.Offset && nightEnd.Offset < next.Offset {
			endDatetime = session.AdjustToNextWorkingDay(endDatetime)
		}
	}

	return endDatetime, nil
}

func firstClosePoint(tl session.Timeline) (session.SessionPoint, bool) {
	for _, p := range tl {
		if p.Kind == session.Close {
			return p, true
		}
	}
	return session.SessionPoint{}, false
}

// dailyBucket shifts the tick by the hour bias, advances past any weekend,
// and returns midnight of the resulting date as the daily bar's bucket
// key.
func dailyBucket(tick domain.Tick) time.Time {
	shifted := tick.Datetime.Add(time.Duration(session.HourBias) * time.Hour)
	adjusted := session.AdjustToNextWorkingDay(shifted)
	y, m, d := adjusted.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, adjusted.Location())
}
