package kline

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"ctakline/internal/domain"
	"ctakline/internal/session"
)

func mkTick(t *testing.T, symbol, exchange, clock string, price int64, volume int64) domain.Tick {
	t.Helper()
	dt, err := time.ParseInLocation("2006-01-02 15:04:05.000000", "2024-05-17 "+clock, time.UTC)
	if err != nil {
		t.Fatalf("parse clock %q: %v", clock, err)
	}
	tick := domain.Tick{
		Symbol:    symbol,
		Exchange:  domain.Exchange(exchange),
		Datetime:  dt,
		LastPrice: decimal.NewFromInt(price),
		Volume:    volume,
		// LastVolume is normally set by MultiGenerator; generator tests
		// that bypass it set it directly.
		LastVolume: volume,
	}
	return tick
}

func newTestGenerator(period domain.Period) *Generator {
	registry := session.NewRegistry()
	builder := session.NewBarTimelineBuilder()
	return NewGenerator(period, registry, builder, nil)
}

// TestGenerator60MinBarSequence replays the spec's literal RB/SHFE boundary
// scenario: a tick just after the night session opens, a tick just before
// the hour rolls over, and a tick exactly on the hour -- the third tick
// must close the first bar and open a second.
func TestGenerator60MinBarSequence(t *testing.T) {
	g := newTestGenerator(domain.Period60Min)
	ctx := context.Background()

	t1 := mkTick(t, "RB2410", "SHFE", "21:00:00.000000", 3700, 10)
	res1, err := g.Update(ctx, t1)
	if err != nil {
		t.Fatalf("Update(t1) error: %v", err)
	}
	if res1.Completed {
		t.Fatal("first tick should not complete a bar")
	}

	t2 := mkTick(t, "RB2410", "SHFE", "21:59:59.500000", 3710, 10)
	res2, err := g.Update(ctx, t2)
	if err != nil {
		t.Fatalf("Update(t2) error: %v", err)
	}
	if res2.Completed {
		t.Fatal("second tick should still be within the first bar")
	}
	if res2.Bar != res1.Bar {
		t.Fatal("second tick should update the same in-progress bar as the first")
	}

	t3 := mkTick(t, "RB2410", "SHFE", "22:00:00.100000", 3720, 10)
	res3, err := g.Update(ctx, t3)
	if err != nil {
		t.Fatalf("Update(t3) error: %v", err)
	}
	if !res3.Completed {
		t.Fatal("third tick should complete the first bar")
	}
	if !res3.Bar.Close.Equal(decimal.NewFromInt(3710)) {
		t.Errorf("completed bar Close = %s, want 3710", res3.Bar.Close)
	}
	if !res3.Bar.Open.Equal(decimal.NewFromInt(3700)) {
		t.Errorf("completed bar Open = %s, want 3700", res3.Bar.Open)
	}
	if res3.Bar.Low.GreaterThan(res3.Bar.Open) || res3.Bar.High.LessThan(res3.Bar.Close) {
		t.Errorf("completed bar OHLC invariant violated: %+v", res3.Bar)
	}
}

// TestGeneratorFridayNight240MinBarCrossesToMonday exercises the
// Friday-night-crosses-weekend carry correction: the bucket key of a
// 240-min bar opened Friday night must already have been adjusted past
// the weekend, so it never falls on a Saturday or Sunday.
func TestGeneratorFridayNight240MinBarCrossesToMonday(t *testing.T) {
	g := newTestGenerator(domain.Period240Min)
	ctx := context.Background()

	fridayTick := domain.Tick{
		Symbol:    "RB2410",
		Exchange:  domain.ExchangeSHFE,
		Datetime:  time.Date(2024, 5, 17, 22, 30, 0, 0, time.UTC), // Friday night
		LastPrice: decimal.NewFromInt(3700),
		Volume:    10,
	}
	res, err := g.Update(ctx, fridayTick)
	if err != nil {
		t.Fatalf("Update(friday) error: %v", err)
	}
	if res.Completed {
		t.Fatal("Friday night tick should open a new bar, not complete one")
	}
	if res.Bar.Datetime.Weekday() == time.Saturday || res.Bar.Datetime.Weekday() == time.Sunday {
		t.Errorf("bar bucket key fell on a weekend day: %v", res.Bar.Datetime)
	}
}

// TestGetLastBarsOnlyCompletedExcludesInProgressIntraday exercises the
// get_last_klines onlyCompleted cutoff (spec.md §4.4) for an intraday
// period: a sealed bar from an earlier hour must be returned, the
// still-accumulating current-hour bar must not.
func TestGetLastBarsOnlyCompletedExcludesInProgressIntraday(t *testing.T) {
	g := newTestGenerator(domain.Period60Min)
	ctx := context.Background()

	t1 := mkTick(t, "RB2410", "SHFE", "21:00:00.000000", 3700, 10)
	if _, err := g.Update(ctx, t1); err != nil {
		t.Fatalf("Update(t1) error: %v", err)
	}
	t2 := mkTick(t, "RB2410", "SHFE", "21:59:59.500000", 3710, 10)
	if _, err := g.Update(ctx, t2); err != nil {
		t.Fatalf("Update(t2) error: %v", err)
	}
	t3 := mkTick(t, "RB2410", "SHFE", "22:00:00.100000", 3720, 10)
	res3, err := g.Update(ctx, t3)
	if err != nil {
		t.Fatalf("Update(t3) error: %v", err)
	}
	if !res3.Completed {
		t.Fatal("t3 should have sealed the first bar")
	}

	bars := g.GetLastBars(ctx, "RB2410", 5, true, t3.Datetime)
	if len(bars) != 1 {
		t.Fatalf("GetLastBars(onlyCompleted=true) returned %d bars, want 1: %+v", len(bars), bars)
	}
	if !bars[0].Close.Equal(decimal.NewFromInt(3710)) {
		t.Errorf("returned bar Close = %s, want 3710 (the sealed first bar)", bars[0].Close)
	}

	allBars := g.GetLastBars(ctx, "RB2410", 5, false, t3.Datetime)
	if len(allBars) != 2 {
		t.Fatalf("GetLastBars(onlyCompleted=false) returned %d bars, want 2", len(allBars))
	}
}

// TestGetLastBarsOnlyCompletedExcludesInProgressDaily exercises the same
// cutoff for the daily period, where the boundary is today's trade date
// rather than a fixed-size window.
func TestGetLastBarsOnlyCompletedExcludesInProgressDaily(t *testing.T) {
	g := newTestGenerator(domain.PeriodDaily)
	ctx := context.Background()

	day1 := domain.Tick{
		Symbol:    "RB2410",
		Exchange:  domain.ExchangeSHFE,
		Datetime:  time.Date(2024, 5, 16, 10, 0, 0, 0, time.UTC), // Thursday
		LastPrice: decimal.NewFromInt(3700),
		Volume:    10,
	}
	if _, err := g.Update(ctx, day1); err != nil {
		t.Fatalf("Update(day1) error: %v", err)
	}

	day2 := domain.Tick{
		Symbol:    "RB2410",
		Exchange:  domain.ExchangeSHFE,
		Datetime:  time.Date(2024, 5, 17, 10, 0, 0, 0, time.UTC), // Friday
		LastPrice: decimal.NewFromInt(3720),
		Volume:    10,
	}
	res2, err := g.Update(ctx, day2)
	if err != nil {
		t.Fatalf("Update(day2) error: %v", err)
	}
	if !res2.Completed {
		t.Fatal("day2 tick should have sealed day1's daily bar")
	}

	bars := g.GetLastBars(ctx, "RB2410", 5, true, day2.Datetime)
	if len(bars) != 1 {
		t.Fatalf("GetLastBars(onlyCompleted=true) returned %d bars, want 1: %+v", len(bars), bars)
	}
	if !bars[0].Close.Equal(decimal.NewFromInt(3700)) {
		t.Errorf("returned bar Close = %s, want 3700 (day1's sealed bar)", bars[0].Close)
	}
}

func TestGeneratorRejectsInvalidBucket(t *testing.T) {
	g := newTestGenerator(domain.Period60Min)
	ctx := context.Background()

	// A product with no night template on an unregistered exchange has no
	// session timeline, so the registry (C1) lookup inside the bucket
	// calculation must surface an error.
	tick := domain.Tick{
		Symbol:    "XX2410",
		Exchange:  "UNKNOWNEX",
		Datetime:  time.Date(2024, 5, 17, 21, 0, 0, 0, time.UTC),
		LastPrice: decimal.NewFromInt(100),
		Volume:    1,
	}
	if _, err := g.Update(ctx, tick); err == nil {
		t.Fatal("Update() with an unregistered exchange should return an error")
	}
}
