package session

import (
	"errors"
	"testing"
	"time"

	"ctakline/internal/domain"

	"github.com/shopspring/decimal"
)

func mustTick(t *testing.T, symbol string, exchange domain.Exchange, clock string) domain.Tick {
	t.Helper()
	dt, err := time.ParseInLocation("2006-01-02 15:04:05", "2024-05-17 "+clock, time.Local)
	if err != nil {
		t.Fatalf("parse clock %q: %v", clock, err)
	}
	return domain.Tick{Symbol: symbol, Exchange: exchange, Datetime: dt, LastPrice: decimal.NewFromInt(1)}
}

func TestRegistryTimelineForNightProduct(t *testing.T) {
	r := NewRegistry()
	tl, err := r.TimelineFor(mustTick(t, "RB2410", domain.ExchangeSHFE, "21:00:00"))
	if err != nil {
		t.Fatalf("TimelineFor: %v", err)
	}
	if len(tl) == 0 {
		t.Fatal("expected non-empty timeline for RB")
	}
	// Points must strictly ascend and alternate Open,Close,...,starting
	// Open and ending Close (invariant 4 from spec.md §8).
	if tl[0].Kind != Open {
		t.Error("timeline should start with an OPEN point")
	}
	if tl[len(tl)-1].Kind != Close {
		t.Error("timeline should end with a CLOSE point")
	}
	for i := 1; i < len(tl); i++ {
		if tl[i].Offset <= tl[i-1].Offset {
			t.Fatalf("timeline offsets not strictly ascending at %d: %v <= %v", i, tl[i].Offset, tl[i-1].Offset)
		}
		if tl[i].Kind == tl[i-1].Kind {
			t.Fatalf("timeline kinds did not alternate at %d", i)
		}
	}
}

func TestRegistryTimelineForDayOnlyProduct(t *testing.T) {
	r := NewRegistry()
	tl, err := r.TimelineFor(mustTick(t, "IC2410", domain.ExchangeDCE, "10:00:00"))
	if err != nil {
		t.Fatalf("TimelineFor: %v", err)
	}
	if len(tl) != 6 {
		t.Fatalf("expected 6 points in default day session, got %d", len(tl))
	}
}

func TestRegistryUnknownExchange(t *testing.T) {
	r := NewRegistry()
	_, err := r.TimelineFor(mustTick(t, "XX2410", domain.Exchange("NYSE"), "10:00:00"))
	if !errors.Is(err, domain.ErrUnknownTimeline) {
		t.Fatalf("expected ErrUnknownTimeline, got %v", err)
	}
}

func TestRegistryCFFEXRejectedByDefault(t *testing.T) {
	r := NewRegistry()
	_, err := r.TimelineFor(mustTick(t, "IF2410", domain.ExchangeCFFEX, "10:00:00"))
	if !errors.Is(err, domain.ErrCFFEXAmbiguous) {
		t.Fatalf("expected ErrCFFEXAmbiguous, got %v", err)
	}
}

func TestRegistryCFFEXClassifierOptIn(t *testing.T) {
	r := NewRegistry()
	r.SetCFFEXClassifier(func(code string) (domain.ProductClass, bool) {
		if code == "IF" {
			return domain.ProductClassIF, true
		}
		return "", false
	})

	tl, err := r.TimelineFor(mustTick(t, "IF2410", domain.ExchangeCFFEX, "10:00:00"))
	if err != nil {
		t.Fatalf("TimelineFor with classifier set: %v", err)
	}
	if tl[0].Offset != point(9, 30, Open).Offset {
		t.Errorf("expected IF session to start at 9:30, got offset %v", tl[0].Offset)
	}

	_, err = r.TimelineFor(mustTick(t, "TF2410", domain.ExchangeCFFEX, "10:00:00"))
	if !errors.Is(err, domain.ErrCFFEXAmbiguous) {
		t.Fatalf("expected unclassified CFFEX product to still be rejected, got %v", err)
	}
}

func TestTimelineValid(t *testing.T) {
	r := NewRegistry()
	tl, err := r.TimelineFor(mustTick(t, "RB2410", domain.ExchangeSHFE, "21:00:00"))
	if err != nil {
		t.Fatalf("TimelineFor: %v", err)
	}

	cases := []struct {
		clock string
		want  bool
	}{
		{"21:00:00", true},   // exactly at OPEN is valid
		{"22:00:00", true},   // mid-session
		{"15:00:00", false},  // exactly at CLOSE is invalid
		{"15:30:00", false},  // outside session entirely
		{"09:00:00", true},   // day-session open
	}
	for _, c := range cases {
		dt, err := time.ParseInLocation("2006-01-02 15:04:05", "2024-05-17 "+c.clock, time.Local)
		if err != nil {
			t.Fatal(err)
		}
		if got := tl.Valid(dt); got != c.want {
			t.Errorf("Valid(%s) = %v, want %v", c.clock, got, c.want)
		}
	}
}
