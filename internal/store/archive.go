package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/shopspring/decimal"

	"ctakline/internal/domain"
)

// ArchiveStore exports sealed bars to year-partitioned Parquet files,
// supplementing SQLiteStore's hot path with cold storage for historical
// query and batch analysis (SPEC_FULL.md §2, parquet-go row).
type ArchiveStore struct {
	DataDir string
}

// NewArchiveStore creates an ArchiveStore rooted at the given directory.
func NewArchiveStore(dataDir string) *ArchiveStore {
	return &ArchiveStore{DataDir: dataDir}
}

// BarRecord is the Parquet on-disk schema for an archived bar.
type BarRecord struct {
	Symbol        string `parquet:"symbol"`
	Period        string `parquet:"period"`
	Datetime      int64  `parquet:"datetime,timestamp(microsecond)"`
	Open          string `parquet:"open"`
	High          string `parquet:"high"`
	Low           string `parquet:"low"`
	Close         string `parquet:"close"`
	OpenDatetime  int64  `parquet:"open_datetime,timestamp(microsecond)"`
	CloseDatetime int64  `parquet:"close_datetime,timestamp(microsecond)"`
	Volume        int64  `parquet:"volume"`
}

// WriteBars archives bars grouped by (symbol, period, year) into Parquet
// files, merging with any already-archived records for that year.
//
// Layout: <DataDir>/<period DBName>/<SYMBOL>/<YYYY>.parquet
func (s *ArchiveStore) WriteBars(bars []domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	type key struct {
		symbol string
		period domain.Period
		year   int
	}
	groups := make(map[key][]BarRecord)
	for _, b := range bars {
		k := key{symbol: b.Symbol, period: b.Period, year: b.Datetime.Year()}
		groups[k] = append(groups[k], toBarRecord(b))
	}

	for k, records := range groups {
		path := s.barPath(k.symbol, k.period, k.year)

		existing, _ := readParquetFile[BarRecord](path)
		merged := mergeBarRecords(existing, records)

		if err := writeParquetFile(path, merged); err != nil {
			return fmt.Errorf("archiving bars for %s/%s/%d: %w", k.symbol, k.period, k.year, err)
		}
	}
	return nil
}

// ReadBars reads archived bars for symbol/period within [start, end].
func (s *ArchiveStore) ReadBars(symbol string, period domain.Period, start, end time.Time) ([]domain.Bar, error) {
	var bars []domain.Bar
	for year := start.Year(); year <= end.Year(); year++ {
		path := s.barPath(symbol, period, year)

		records, err := readParquetFile[BarRecord](path)
		if err != nil {
			continue // no archive file for this year
		}

		for _, r := range records {
			bar, err := fromBarRecord(r)
			if err != nil {
				return nil, fmt.Errorf("decode archived bar %s/%d: %w", symbol, year, err)
			}
			bar.Period = period
			if (bar.Datetime.Equal(start) || bar.Datetime.After(start)) &&
				(bar.Datetime.Equal(end) || bar.Datetime.Before(end)) {
				bars = append(bars, bar)
			}
		}
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Datetime.Before(bars[j].Datetime) })
	return bars, nil
}

// ListSymbols lists all symbols archived for the given period.
func (s *ArchiveStore) ListSymbols(period domain.Period) ([]string, error) {
	dir := filepath.Join(s.DataDir, period.DBName())
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var symbols []string
	for _, e := range entries {
		if e.IsDir() {
			symbols = append(symbols, e.Name())
		}
	}
	sort.Strings(symbols)
	return symbols, nil
}

func (s *ArchiveStore) barPath(symbol string, period domain.Period, year int) string {
	return filepath.Join(s.DataDir, period.DBName(), strings.ToUpper(symbol), fmt.Sprintf("%d.parquet", year))
}

func decimalFromString(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}

func toBarRecord(b domain.Bar) BarRecord {
	return BarRecord{
		Symbol:        b.Symbol,
		Period:        b.Period.String(),
		Datetime:      b.Datetime.UnixMicro(),
		Open:          b.Open.String(),
		High:          b.High.String(),
		Low:           b.Low.String(),
		Close:         b.Close.String(),
		OpenDatetime:  b.OpenDatetime.UnixMicro(),
		CloseDatetime: b.CloseDatetime.UnixMicro(),
		Volume:        b.Volume,
	}
}

func fromBarRecord(r BarRecord) (domain.Bar, error) {
	open, err := decimalFromString(r.Open)
	if err != nil {
		return domain.Bar{}, err
	}
	high, err := decimalFromString(r.High)
	if err != nil {
		return domain.Bar{}, err
	}
	low, err := decimalFromString(r.Low)
	if err != nil {
		return domain.Bar{}, err
	}
	closeP, err := decimalFromString(r.Close)
	if err != nil {
		return domain.Bar{}, err
	}
	return domain.Bar{
		Symbol:        r.Symbol,
		Datetime:      time.UnixMicro(r.Datetime).UTC(),
		Open:          open,
		High:          high,
		Low:           low,
		Close:         closeP,
		OpenDatetime:  time.UnixMicro(r.OpenDatetime).UTC(),
		CloseDatetime: time.UnixMicro(r.CloseDatetime).UTC(),
		Volume:        r.Volume,
	}, nil
}

// ---------------------------------------------------------------------------
// Parquet file helpers
// ---------------------------------------------------------------------------

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// mergeBarRecords deduplicates archived bar records by (symbol, period,
// datetime), preferring incoming (newer) records over existing ones.
func mergeBarRecords(existing, incoming []BarRecord) []BarRecord {
	type key struct {
		symbol string
		period string
		dt     int64
	}
	seen := make(map[key]BarRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[key{r.Symbol, r.Period, r.Datetime}] = r
	}
	for _, r := range incoming {
		seen[key{r.Symbol, r.Period, r.Datetime}] = r
	}

	merged := make([]BarRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Datetime < merged[j].Datetime
	})
	return merged
}
