// Package flatfile reads and writes the comma-separated files exchanged
// between pipeline stages. Files always carry a header row; readers drop
// index artifact columns and hand rows out in bounded batches.
package flatfile

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrNoHeader is returned when a file has no header row.
var ErrNoHeader = errors.New("flat file has no header row")

// Encode renders header and rows as CSV.
func Encode(header []string, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	for i, row := range rows {
		if len(row) != len(header) {
			return nil, fmt.Errorf("row %d has %d fields, header has %d", i, len(row), len(header))
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// IsMissing reports whether a field holds the file format's missing-value
// marker.
func IsMissing(field string) bool {
	switch strings.TrimSpace(field) {
	case "", "NaN", "nan":
		return true
	}
	return false
}

// isIndexColumn matches row-number columns written by dataframe tooling.
func isIndexColumn(name string) bool {
	name = strings.TrimSpace(name)
	return name == "" || strings.HasPrefix(name, "Unnamed: ")
}

// Reader yields rows from a CSV stream in batches.
type Reader struct {
	csv    *csv.Reader
	header []string
	keep   []int
	line   int
}

// NewReader consumes the header row and prepares column filtering.
func NewReader(r io.Reader) (*Reader, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = false
	raw, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	raw[0] = strings.TrimPrefix(raw[0], "\ufeff")

	reader := &Reader{csv: cr, line: 1}
	for i, name := range raw {
		if isIndexColumn(name) {
			continue
		}
		reader.keep = append(reader.keep, i)
		reader.header = append(reader.header, strings.TrimSpace(name))
	}
	if len(reader.header) == 0 {
		return nil, ErrNoHeader
	}
	return reader, nil
}

// Header returns the column names, index columns excluded.
func (r *Reader) Header() []string {
	return append([]string(nil), r.header...)
}

// Next returns up to n rows aligned with Header. It returns io.EOF once the
// stream is exhausted and no rows were read.
func (r *Reader) Next(n int) ([][]string, error) {
	if n <= 0 {
		return nil, fmt.Errorf("batch size must be > 0, got %d", n)
	}
	batch := make([][]string, 0, n)
	for len(batch) < n {
		record, err := r.csv.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		r.line++
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", r.line, err)
		}
		row := make([]string, len(r.keep))
		for i, idx := range r.keep {
			row[i] = record[idx]
		}
		batch = append(batch, row)
	}
	if len(batch) == 0 {
		return nil, io.EOF
	}
	return batch, nil
}
