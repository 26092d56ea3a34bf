package session

import (
	"testing"

	"ctakline/internal/domain"
)

func TestBuildBarTimelineCFFEXIF60Min(t *testing.T) {
	// CFFEX IF: 09:30-11:30, 13:00-15:00. 60-minute bars.
	session := Timeline{
		point(9, 30, Open), point(11, 30, Close),
		point(13, 0, Open), point(15, 0, Close),
	}
	b := NewBarTimelineBuilder()
	tl, err := b.Build("IF2410", domain.Period60Min, session)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if tl[0].Kind != Open {
		t.Fatal("bar timeline must start with an OPEN point")
	}
	if tl[len(tl)-1].Kind != Close {
		t.Fatal("bar timeline must end with a CLOSE point")
	}

	// 09:30-11:30 (120 min) divides evenly into two 60-minute bars with no
	// remainder: expect OPEN points at 09:30, 10:30, then a CLOSE
	// sentinel at 11:30 (zero carry into the next session).
	want := []SessionPoint{
		point(9, 30, Open),
		point(10, 30, Open),
		point(11, 30, Close),
		point(13, 0, Open),
		point(14, 0, Open),
		point(15, 0, Close),
	}
	if len(tl) != len(want) {
		t.Fatalf("got %d points, want %d: %+v", len(tl), len(want), tl)
	}
	for i := range want {
		if tl[i] != want[i] {
			t.Errorf("point %d = %+v, want %+v", i, tl[i], want[i])
		}
	}
}

func TestBuildBarTimelineMemoizes(t *testing.T) {
	session := Timeline{point(9, 30, Open), point(11, 30, Close), point(13, 0, Open), point(15, 0, Close)}
	b := NewBarTimelineBuilder()
	first, err := b.Build("IF2410", domain.Period60Min, session)
	if err != nil {
		t.Fatal(err)
	}
	second, err := b.Build("IF2410", domain.Period60Min, Timeline{}) // different input, same key
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != len(second) {
		t.Fatal("expected memoized result to be returned regardless of session argument on second call")
	}
}

func TestBuildBarTimelineCarryAcrossGap(t *testing.T) {
	// RB night+day at 240-minute bars: night session is 21:00-23:00 (biased
	// 03:00-05:00), 120 minutes long -- shorter than the period, so the
	// whole night session becomes carry into the first day bar.
	session := combine(
		Timeline{point(21, 0, Open), point(23, 0, Close)},
		Timeline{
			point(9, 0, Open), point(10, 15, Close),
			point(10, 30, Open), point(11, 30, Close),
			point(13, 30, Open), point(15, 0, Close),
		},
	)
	b := NewBarTimelineBuilder()
	tl, err := b.Build("RB2410", domain.Period240Min, session)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if tl[0].Kind != Open || tl[len(tl)-1].Kind != Close {
		t.Fatalf("malformed bar timeline: %+v", tl)
	}
	for i := 1; i < len(tl); i++ {
		if tl[i].Offset <= tl[i-1].Offset {
			t.Fatalf("bar timeline offsets not strictly ascending at %d", i)
		}
	}
}
