package persist

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ctakline/internal/domain"
)

type fakeStore struct {
	mu       sync.Mutex
	ticks    []domain.Tick
	bars     []domain.Bar
	failNext bool
}

func (f *fakeStore) UpsertTick(ctx context.Context, db, symbol string, tick domain.Tick) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return errors.New("simulated persistence failure")
	}
	f.ticks = append(f.ticks, tick)
	return nil
}

func (f *fakeStore) UpsertBar(ctx context.Context, db, symbol string, bar domain.Bar) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bars = append(f.bars, bar)
	return nil
}

func (f *fakeStore) FindLastBars(ctx context.Context, db, symbol string, count int, before time.Time) ([]domain.Bar, error) {
	return nil, nil
}

func (f *fakeStore) Close() error { return nil }

func (f *fakeStore) barCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.bars)
}

func (f *fakeStore) tickCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ticks)
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestWorkerUpsertsSerially(t *testing.T) {
	fs := &fakeStore{}
	w := NewWorker(fs, nil, 16)
	defer w.Stop()

	w.Enqueue(UpsertBarTask("VnTrader_60Min_Db", "RB2410", domain.Bar{Symbol: "RB2410"}))
	w.Enqueue(UpsertTickTask("VnTrader_Tick_Db", "RB2410", domain.Tick{Symbol: "RB2410"}))

	waitUntil(t, func() bool { return fs.barCount() == 1 && fs.tickCount() == 1 })
}

func TestWorkerPersistenceFailureDoesNotStopWorker(t *testing.T) {
	fs := &fakeStore{failNext: true}
	w := NewWorker(fs, nil, 16)
	defer w.Stop()

	w.Enqueue(UpsertTickTask("VnTrader_Tick_Db", "RB2410", domain.Tick{Symbol: "RB2410"}))
	w.Enqueue(UpsertTickTask("VnTrader_Tick_Db", "RB2410", domain.Tick{Symbol: "RB2410"}))

	waitUntil(t, func() bool { return fs.tickCount() == 1 })
}

func TestWorkerQueueFullDropsWithoutBlocking(t *testing.T) {
	fs := &fakeStore{}
	w := NewWorker(fs, nil, 1)
	defer w.Stop()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			w.Enqueue(UpsertBarTask("VnTrader_60Min_Db", "RB2410", domain.Bar{Symbol: "RB2410"}))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Enqueue blocked; expected drop-on-full semantics")
	}
}

func TestWorkerStopDrainsInFlightTasks(t *testing.T) {
	fs := &fakeStore{}
	w := NewWorker(fs, nil, 16)

	for i := 0; i < 5; i++ {
		w.Enqueue(UpsertBarTask("VnTrader_60Min_Db", "RB2410", domain.Bar{Symbol: "RB2410"}))
	}
	w.Stop()

	if got := fs.barCount(); got != 5 {
		t.Errorf("bar count after Stop = %d, want 5", got)
	}
}
