package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"ctakline/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store on top of SQLite, one table per (period)
// database name -- mirroring the source's one-Mongo-collection-per-DB
// layout (VnTrader_1Min_Db, VnTrader_Tick_Db, ...) as one SQLite table per
// name within a single file.
//
// Two *sql.DB handles are kept open on the same file: writer serializes all
// mutations (SQLite allows a single writer at a time), reader serves
// concurrent hydration/query reads without contending with the persistence
// worker. Both are opened with the same DSN; SQLite's file-level locking
// arbitrates the rest.
type SQLiteStore struct {
	writer *sql.DB
	reader *sql.DB

	mu      sync.Mutex
	ensured map[string]bool
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns
// a ready-to-use SQLiteStore with separate writer/reader connections.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	writer, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open writer connection: %w", err)
	}
	writer.SetMaxOpenConns(1) // SQLite: one writer at a time.

	reader, err := sql.Open("sqlite", dbPath)
	if err != nil {
		writer.Close()
		return nil, fmt.Errorf("open reader connection: %w", err)
	}

	if _, err := writer.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		writer.Close()
		reader.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	return &SQLiteStore{
		writer:  writer,
		reader:  reader,
		ensured: make(map[string]bool),
	}, nil
}

// Close closes both underlying database connections.
func (s *SQLiteStore) Close() error {
	werr := s.writer.Close()
	rerr := s.reader.Close()
	if werr != nil {
		return werr
	}
	return rerr
}

func barTableName(db string) string  { return "bar_" + sanitizeDBName(db) }
func tickTableName(db string) string { return "tick_" + sanitizeDBName(db) }

func sanitizeDBName(db string) string {
	out := make([]byte, 0, len(db))
	for i := 0; i < len(db); i++ {
		c := db[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_':
			out = append(out, c)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}

func (s *SQLiteStore) ensureBarTable(ctx context.Context, db string) (string, error) {
	table := barTableName(db)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ensured[table] {
		return table, nil
	}
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		symbol TEXT NOT NULL,
		datetime TEXT NOT NULL,
		open TEXT NOT NULL,
		high TEXT NOT NULL,
		low TEXT NOT NULL,
		close TEXT NOT NULL,
		open_datetime TEXT NOT NULL,
		close_datetime TEXT NOT NULL,
		volume INTEGER NOT NULL,
		PRIMARY KEY (symbol, datetime)
	)`, table)
	if _, err := s.writer.ExecContext(ctx, stmt); err != nil {
		return "", fmt.Errorf("create table %s: %w", table, err)
	}
	s.ensured[table] = true
	return table, nil
}

func (s *SQLiteStore) ensureTickTable(ctx context.Context, db string) (string, error) {
	table := tickTableName(db)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ensured[table] {
		return table, nil
	}
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		symbol TEXT NOT NULL,
		datetime TEXT NOT NULL,
		last_price TEXT NOT NULL,
		volume INTEGER NOT NULL,
		last_volume INTEGER NOT NULL,
		PRIMARY KEY (symbol, datetime)
	)`, table)
	if _, err := s.writer.ExecContext(ctx, stmt); err != nil {
		return "", fmt.Errorf("create table %s: %w", table, err)
	}
	s.ensured[table] = true
	return table, nil
}

const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// UpsertBar writes or replaces a bar keyed by (symbol, datetime), matching
// the source's ctaMongo upsert-by-datetime semantics (spec.md §4.6).
func (s *SQLiteStore) UpsertBar(ctx context.Context, db, symbol string, bar domain.Bar) error {
	table, err := s.ensureBarTable(ctx, db)
	if err != nil {
		return err
	}
	stmt := fmt.Sprintf(`INSERT INTO %s (symbol, datetime, open, high, low, close, open_datetime, close_datetime, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, datetime) DO UPDATE SET
			open=excluded.open, high=excluded.high, low=excluded.low, close=excluded.close,
			open_datetime=excluded.open_datetime, close_datetime=excluded.close_datetime, volume=excluded.volume`, table)
	_, err = s.writer.ExecContext(ctx, stmt,
		symbol, bar.Datetime.UTC().Format(sqliteTimeLayout),
		bar.Open.String(), bar.High.String(), bar.Low.String(), bar.Close.String(),
		bar.OpenDatetime.UTC().Format(sqliteTimeLayout), bar.CloseDatetime.UTC().Format(sqliteTimeLayout),
		bar.Volume)
	if err != nil {
		return fmt.Errorf("upsert bar %s/%s: %w", db, symbol, err)
	}
	return nil
}

// UpsertTick writes or replaces a tick keyed by (symbol, datetime).
func (s *SQLiteStore) UpsertTick(ctx context.Context, db, symbol string, tick domain.Tick) error {
	table, err := s.ensureTickTable(ctx, db)
	if err != nil {
		return err
	}
	stmt := fmt.Sprintf(`INSERT INTO %s (symbol, datetime, last_price, volume, last_volume)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(symbol, datetime) DO UPDATE SET
			last_price=excluded.last_price, volume=excluded.volume, last_volume=excluded.last_volume`, table)
	_, err = s.writer.ExecContext(ctx, stmt,
		symbol, tick.Datetime.UTC().Format(sqliteTimeLayout),
		tick.LastPrice.String(), tick.Volume, tick.LastVolume)
	if err != nil {
		return fmt.Errorf("upsert tick %s/%s: %w", db, symbol, err)
	}
	return nil
}

// FindLastBars returns up to count bars for symbol strictly before the given
// instant, ordered oldest to newest -- the hydration query backing
// Generator.hydrate on cold start (spec.md §4.4).
func (s *SQLiteStore) FindLastBars(ctx context.Context, db, symbol string, count int, before time.Time) ([]domain.Bar, error) {
	table := barTableName(db)

	var exists int
	err := s.reader.QueryRowContext(ctx,
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("check table %s: %w", table, err)
	}
	if exists == 0 {
		return nil, nil
	}

	stmt := fmt.Sprintf(`SELECT symbol, datetime, open, high, low, close, open_datetime, close_datetime, volume
		FROM %s WHERE symbol = ? AND datetime < ? ORDER BY datetime DESC LIMIT ?`, table)
	rows, err := s.reader.QueryContext(ctx, stmt, symbol, before.UTC().Format(sqliteTimeLayout), count)
	if err != nil {
		return nil, fmt.Errorf("query last bars %s/%s: %w", db, symbol, err)
	}
	defer rows.Close()

	var reversed []domain.Bar
	for rows.Next() {
		var bar domain.Bar
		var dtStr, openDtStr, closeDtStr, open, high, low, close string
		if err := rows.Scan(&bar.Symbol, &dtStr, &open, &high, &low, &close, &openDtStr, &closeDtStr, &bar.Volume); err != nil {
			return nil, fmt.Errorf("scan bar row: %w", err)
		}
		if bar.Open, err = decimal.NewFromString(open); err != nil {
			return nil, fmt.Errorf("parse bar open: %w", err)
		}
		if bar.High, err = decimal.NewFromString(high); err != nil {
			return nil, fmt.Errorf("parse bar high: %w", err)
		}
		if bar.Low, err = decimal.NewFromString(low); err != nil {
			return nil, fmt.Errorf("parse bar low: %w", err)
		}
		if bar.Close, err = decimal.NewFromString(close); err != nil {
			return nil, fmt.Errorf("parse bar close: %w", err)
		}
		if bar.Datetime, err = time.Parse(sqliteTimeLayout, dtStr); err != nil {
			return nil, fmt.Errorf("parse bar datetime: %w", err)
		}
		if bar.OpenDatetime, err = time.Parse(sqliteTimeLayout, openDtStr); err != nil {
			return nil, fmt.Errorf("parse bar open_datetime: %w", err)
		}
		if bar.CloseDatetime, err = time.Parse(sqliteTimeLayout, closeDtStr); err != nil {
			return nil, fmt.Errorf("parse bar close_datetime: %w", err)
		}
		reversed = append(reversed, bar)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	bars := make([]domain.Bar, len(reversed))
	for i, b := range reversed {
		bars[len(reversed)-1-i] = b
	}
	return bars, nil
}
