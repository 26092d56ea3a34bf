package ticksource

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/shopspring/decimal"

	"ctakline/internal/domain"
)

// CSVSource replays ticks from a CSV file with the header:
// symbol,exchange,date,time,last_price,volume
//
// It is the tick feed backing cmd/kline-replay, standing in for the live
// market-data gateway the teacher's Gatherer interface targeted.
type CSVSource struct {
	r       *csv.Reader
	closer  io.Closer
	started bool
}

// NewCSVSource wraps an already-open reader. Callers that opened a file
// directly should pass it as closer so Close releases the descriptor.
func NewCSVSource(r io.Reader, closer io.Closer) *CSVSource {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 6
	return &CSVSource{r: cr, closer: closer}
}

// Next reads and parses the next CSV record into a Tick. It skips the
// header row on the first call.
func (s *CSVSource) Next(ctx context.Context) (domain.Tick, error) {
	if err := ctx.Err(); err != nil {
		return domain.Tick{}, err
	}

	if !s.started {
		s.started = true
		if _, err := s.r.Read(); err != nil { // header
			return domain.Tick{}, fmt.Errorf("read csv header: %w", err)
		}
	}

	record, err := s.r.Read()
	if err != nil {
		return domain.Tick{}, err // io.EOF propagates as ErrExhausted
	}

	price, err := decimal.NewFromString(record[4])
	if err != nil {
		return domain.Tick{}, fmt.Errorf("parse last_price %q: %w", record[4], err)
	}
	volume, err := strconv.ParseInt(record[5], 10, 64)
	if err != nil {
		return domain.Tick{}, fmt.Errorf("parse volume %q: %w", record[5], err)
	}

	tick := domain.Tick{
		Symbol:    record[0],
		Exchange:  domain.Exchange(record[1]),
		Date:      record[2],
		Time:      record[3],
		LastPrice: price,
		Volume:    volume,
	}
	if err := tick.Normalize(); err != nil {
		return domain.Tick{}, fmt.Errorf("normalize tick: %w", err)
	}
	return tick, nil
}

// Close releases the underlying reader, if one was provided.
func (s *CSVSource) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
