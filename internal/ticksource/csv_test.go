package ticksource

import (
	"context"
	"io"
	"strings"
	"testing"
)

func TestCSVSourceNextParsesRecords(t *testing.T) {
	data := "symbol,exchange,date,time,last_price,volume\n" +
		"rb2410,shfe,20240517,21:00:00.000000,3700.0,100\n" +
		"rb2410,shfe,20240517,21:00:01.500000,3701.5,105\n"

	src := NewCSVSource(strings.NewReader(data), nil)
	ctx := context.Background()

	first, err := src.Next(ctx)
	if err != nil {
		t.Fatalf("Next() error: %v", err)
	}
	if first.Symbol != "RB2410" || first.Exchange != "SHFE" {
		t.Errorf("first tick = %+v, want normalized RB2410/SHFE", first)
	}
	if first.Volume != 100 {
		t.Errorf("first tick Volume = %d, want 100", first.Volume)
	}

	second, err := src.Next(ctx)
	if err != nil {
		t.Fatalf("second Next() error: %v", err)
	}
	if second.Volume != 105 {
		t.Errorf("second tick Volume = %d, want 105", second.Volume)
	}

	if _, err := src.Next(ctx); err != io.EOF {
		t.Errorf("Next() at end = %v, want io.EOF", err)
	}
}

func TestCSVSourceNextRespectsContextCancel(t *testing.T) {
	src := NewCSVSource(strings.NewReader("symbol,exchange,date,time,last_price,volume\n"), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := src.Next(ctx); err == nil {
		t.Fatal("Next() with cancelled context should return an error")
	}
}
