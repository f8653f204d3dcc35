package candles

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// LoadCSV loads bars from a timestamp,open,high,low,close,volume file.
// A header row is skipped, malformed rows are skipped and counted; the
// whole file fails only when nothing could be parsed. UTF-16 broker
// exports are decoded transparently.
func LoadCSV(path, pair string, tf Timeframe) (*Series, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open candles csv: %w", err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	var r io.Reader = br
	if b, _ := br.Peek(2); len(b) >= 2 &&
		((b[0] == 0xFF && b[1] == 0xFE) || (b[0] == 0xFE && b[1] == 0xFF)) {
		if _, err := f.Seek(0, 0); err != nil {
			return nil, 0, err
		}
		r = bufio.NewReader(transform.NewReader(f,
			unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder()))
	}
	return ReadCSV(r, pair, tf)
}

// ReadCSV parses candle rows from r. Returns the series and the number of
// rows skipped as malformed or out of order.
func ReadCSV(r io.Reader, pair string, tf Timeframe) (*Series, int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	s := NewSeries(pair, tf)
	skipped := 0
	row := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			skipped++
			continue
		}
		row++
		if len(rec) < 6 {
			skipped++
			continue
		}
		// Header row
		if row == 1 && !isNumeric(rec[0]) {
			continue
		}
		c, err := parseRow(rec)
		if err != nil {
			skipped++
			continue
		}
		if err := s.Append(c); err != nil {
			skipped++
		}
	}
	if s.Len() == 0 {
		return nil, skipped, &DataError{Pair: pair, Reason: "no parsable rows"}
	}
	return s, skipped, nil
}

func parseRow(rec []string) (Candle, error) {
	ts, err := strconv.ParseInt(strings.TrimSpace(rec[0]), 10, 64)
	if err != nil {
		return Candle{}, err
	}
	var vals [5]decimal.Decimal
	for i := 0; i < 5; i++ {
		v, err := decimal.NewFromString(strings.Trim(strings.TrimSpace(rec[i+1]), `"`))
		if err != nil {
			return Candle{}, err
		}
		vals[i] = v
	}
	return Candle{
		Timestamp: ts,
		Open:      vals[0],
		High:      vals[1],
		Low:       vals[2],
		Close:     vals[3],
		Volume:    vals[4],
	}, nil
}

func isNumeric(s string) bool {
	_, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return err == nil
}

// WriteCSV writes bars in the loader's format, with a header.
func WriteCSV(w io.Writer, bars []Candle) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString("timestamp,open,high,low,close,volume\n"); err != nil {
		return err
	}
	for _, b := range bars {
		line := fmt.Sprintf("%d,%s,%s,%s,%s,%s\n",
			b.Timestamp, b.Open.String(), b.High.String(), b.Low.String(), b.Close.String(), b.Volume.String())
		if _, err := bw.WriteString(line); err != nil {
			return err
		}
	}
	return bw.Flush()
}
