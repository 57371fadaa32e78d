package data

import (
	"fmt"
	"os"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/quantsim/quantsim/src/backtester/models"
	"github.com/quantsim/quantsim/src/eventmodels"
)

type csvBarDTO struct {
	Symbol    string  `csv:"symbol"`
	Timestamp string  `csv:"timestamp"`
	Open      float64 `csv:"open"`
	High      float64 `csv:"high"`
	Low       float64 `csv:"low"`
	Close     float64 `csv:"close"`
	Volume    float64 `csv:"volume"`
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTimestamp(value string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}

// LoadBarsFromCSV reads an OHLCV series from a CSV file. Rows must be
// sorted by timestamp; each row is validated before it is admitted.
func LoadBarsFromCSV(path string) ([]*eventmodels.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("LoadBarsFromCSV: %w", err)
	}

	defer f.Close()

	var rows []*csvBarDTO
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("LoadBarsFromCSV: parse %s: %w", path, err)
	}

	bars := make([]*eventmodels.Bar, 0, len(rows))
	for i, row := range rows {
		ts, err := parseTimestamp(row.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("LoadBarsFromCSV: row %d: %w", i+1, err)
		}

		bar := eventmodels.NewBar(eventmodels.NewStockSymbol(row.Symbol), ts, row.Open, row.High, row.Low, row.Close, row.Volume)
		if err := bar.Validate(); err != nil {
			return nil, fmt.Errorf("LoadBarsFromCSV: row %d: %w", i+1, err)
		}

		if len(bars) > 0 && ts.Before(bars[len(bars)-1].Timestamp) {
			return nil, fmt.Errorf("LoadBarsFromCSV: row %d: %w", i+1, models.ErrNonMonotonicTimestamp)
		}

		bars = append(bars, bar)
	}

	if len(bars) == 0 {
		return nil, fmt.Errorf("LoadBarsFromCSV: %s contains no bars", path)
	}

	return bars, nil
}
