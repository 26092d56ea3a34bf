// One-shot tool: replay a CSV of recorded ticks through the aggregation
// engine and print every completed bar, for diagnosing a timeline or
// session configuration against a captured trading day.
//
// Usage:
//
//	go run cmd/kline-replay/main.go ticks.csv [periods]
//
// periods is a comma-separated list of minute counts (default "1,5,15").
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"ctakline/internal/domain"
	"ctakline/internal/engine"
	"ctakline/internal/kline"
	"ctakline/internal/notify"
	"ctakline/internal/session"
	"ctakline/internal/ticksource"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: kline-replay <ticks.csv> [periods]")
		os.Exit(1)
	}
	path := os.Args[1]

	periodArg := "1,5,15"
	if len(os.Args) > 2 {
		periodArg = os.Args[2]
	}
	periods, err := parsePeriods(periodArg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parsing periods: %v\n", err)
		os.Exit(1)
	}

	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "opening %s: %v\n", path, err)
		os.Exit(1)
	}
	src := ticksource.NewCSVSource(f, f)
	defer src.Close()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	registry := session.NewRegistry()
	gen := kline.NewMultiGenerator(periods, registry, nil, kline.WithMultiGenLogger(logger))
	notifier := notify.NewRegistry(logger)
	eng := engine.New(gen, notifier, engine.WithLogger(logger))

	completed := 0
	for _, p := range periods {
		notifier.SubscribeAll(p, func(bar domain.Bar) {
			completed++
			fmt.Printf("%s %-16s O=%s H=%s L=%s C=%s V=%d\n",
				bar.Period, bar.Datetime.Format("2006-01-02T15:04:05"),
				bar.Open, bar.High, bar.Low, bar.Close, bar.Volume)
		})
	}

	ctx := context.Background()
	ticks := 0
	for {
		tick, err := src.Next(ctx)
		if err != nil {
			if errors.Is(err, ticksource.ErrExhausted) {
				break
			}
			fmt.Fprintf(os.Stderr, "reading tick: %v\n", err)
			os.Exit(1)
		}
		if err := eng.ProcessTick(ctx, tick); err != nil {
			fmt.Fprintf(os.Stderr, "processing tick: %v\n", err)
			os.Exit(1)
		}
		ticks++
	}

	fmt.Fprintf(os.Stderr, "\nreplayed %d ticks, %d bars completed\n", ticks, completed)
}

func parsePeriods(arg string) ([]domain.Period, error) {
	var out []domain.Period
	for _, field := range strings.Split(arg, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		minutes, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("invalid period %q: %w", field, err)
		}
		p, ok := domain.PeriodFromMinutes(minutes)
		if !ok {
			return nil, fmt.Errorf("unsupported period %d minutes", minutes)
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no periods given")
	}
	return out, nil
}
