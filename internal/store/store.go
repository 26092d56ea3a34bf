// Package store defines the persistence contract for ticks and bars (§6)
// and provides a SQLite-backed implementation plus a Parquet cold-archive
// exporter.
package store

import (
	"context"
	"io"
	"time"

	"ctakline/internal/domain"
)

// BarStore upserts and retrieves K-line bars, keyed by (database, symbol,
// bar datetime) per spec.md §6. Database name is conventionally
// domain.Period.DBName(); symbol identifies the collection within that
// database (in SQLiteStore, a key column of the database's table), so that
// a continuous-contract alias is persisted separately from the contract
// under the same database.
type BarStore interface {
	// UpsertBar replaces-one-by-datetime, inserting if absent.
	UpsertBar(ctx context.Context, db, symbol string, bar domain.Bar) error

	// FindLastBars returns up to count bars for (db, symbol) with
	// Datetime < before, ordered oldest-to-newest -- mirroring
	// find_last_klines. A short result (fewer than count) is not an
	// error; it is spec.md's HydrationMiss, handled by the caller.
	FindLastBars(ctx context.Context, db, symbol string, count int, before time.Time) ([]domain.Bar, error)
}

// TickStore upserts individual ticks, keyed by datetime.
type TickStore interface {
	UpsertTick(ctx context.Context, db, symbol string, tick domain.Tick) error
}

// Store is the combined persistence surface the async worker (C6) writes
// through and the generator (C4) hydrates from.
type Store interface {
	BarStore
	TickStore
	io.Closer
}
