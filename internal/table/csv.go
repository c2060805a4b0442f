package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
)

// CSVOptions carries the sniffed dialect into the reader.
type CSVOptions struct {
	Delimiter        rune
	TrimLeadingSpace bool
}

// ReadCSV parses a delimited text payload. The first record is the header.
// Short rows are padded with missing values; a row wider than the header is a
// value-level error.
func ReadCSV(r io.Reader, opts CSVOptions) (*Table, error) {
	cr := csv.NewReader(r)
	if opts.Delimiter != 0 {
		cr.Comma = opts.Delimiter
	}
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = opts.TrimLeadingSpace
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, &ParseError{Err: errors.New("no columns to parse")}
	}
	if err != nil {
		return nil, csvError(err)
	}
	header = normalizeHeader(header)
	width := len(header)

	var rows [][]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, csvError(err)
		}
		if len(rec) > width {
			line, _ := cr.FieldPos(0)
			return nil, &ParseError{Line: line, Err: fmt.Errorf("expected %d fields, saw %d", width, len(rec))}
		}
		for len(rec) < width {
			rec = append(rec, "")
		}
		rows = append(rows, rec)
	}

	return fromGrid(header, rows), nil
}

func csvError(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &ParseError{Line: pe.Line, Err: pe.Err}
	}
	return fmt.Errorf("read csv: %w", err)
}

// WriteCSV encodes t with a header row. Missing values are written empty.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(t.Records()); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}
