// Package persist implements the asynchronous persistence worker (C6,
// spec.md §4.6): a single background writer draining a bounded task
// queue, upserting ticks and bars by datetime.
package persist

import "ctakline/internal/domain"

// Kind tags a Task's variant. Dispatch on the worker side switches on Kind
// rather than looking up a function by string name, per the REDESIGN FLAG
// in spec.md §9 ("dynamic dispatch of task functions by name").
type Kind int

const (
	KindUpsertTick Kind = iota
	KindUpsertBar
	KindStop
)

// Task is a tagged-variant message sent to the persistence worker. Only
// the fields relevant to Kind are populated.
type Task struct {
	Kind Kind

	DB     string
	Symbol string

	Tick domain.Tick
	Bar  domain.Bar
}

// UpsertTickTask builds a tick-upsert task.
func UpsertTickTask(db, symbol string, tick domain.Tick) Task {
	return Task{Kind: KindUpsertTick, DB: db, Symbol: symbol, Tick: tick}
}

// UpsertBarTask builds a bar-upsert task.
func UpsertBarTask(db, symbol string, bar domain.Bar) Task {
	return Task{Kind: KindUpsertBar, DB: db, Symbol: symbol, Bar: bar}
}

// stopTask is the sentinel the worker uses to drain and exit on Stop.
func stopTask() Task { return Task{Kind: KindStop} }
