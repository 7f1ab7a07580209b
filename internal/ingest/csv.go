package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Table is a header row followed by data rows. A nil data row marks a line
// that could not be tokenized.
type Table [][]string

// Header returns the first row, or nil for an empty table.
func (t Table) Header() []string {
	if len(t) == 0 {
		return nil
	}
	return t[0]
}

// Rows returns the data rows.
func (t Table) Rows() [][]string {
	if len(t) < 2 {
		return nil
	}
	return t[1:]
}

// ReadCSV tokenizes comma-separated input. Rows may have any number of
// fields; a line the tokenizer rejects becomes a nil row so that it is
// counted and skipped rather than failing the whole batch.
func ReadCSV(r io.Reader) (Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = true

	var tbl Table
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return tbl, nil
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) && len(tbl) > 0 {
				tbl = append(tbl, nil)
				continue
			}
			return nil, fmt.Errorf("read csv: %w", err)
		}
		if len(tbl) == 0 && len(rec) > 0 {
			rec[0] = strings.TrimPrefix(rec[0], "\ufeff")
		}
		tbl = append(tbl, rec)
	}
}
