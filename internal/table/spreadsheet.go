package table

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Engine names a spreadsheet reading strategy.
type Engine string

const (
	// EngineExcelize streams the first sheet with formatted cell values.
	EngineExcelize Engine = "excelize"
	// EngineExcelizeRaw loads the whole first sheet with raw cell values.
	EngineExcelizeRaw Engine = "excelize-raw"
)

// Engines lists the engines in the order they should be tried.
var Engines = []Engine{EngineExcelize, EngineExcelizeRaw}

// ReadSpreadsheet parses the first sheet of a zip-packaged workbook with the
// given engine. The first non-empty row is the header; rows wider than the
// header extend it with "Unnamed: i" columns.
func ReadSpreadsheet(b []byte, engine Engine) (*Table, error) {
	rows, err := readSheet(b, engine)
	if err != nil {
		return nil, err
	}

	grid := make([][]string, 0, len(rows))
	width := 0
	for _, r := range rows {
		if blankRow(r) {
			continue
		}
		grid = append(grid, r)
		width = max(width, len(r))
	}
	if len(grid) == 0 {
		return &Table{}, nil
	}

	header := make([]string, width)
	copy(header, grid[0])
	header = normalizeHeader(header)

	data := make([][]string, len(grid)-1)
	for i, r := range grid[1:] {
		rec := make([]string, width)
		copy(rec, r)
		data[i] = rec
	}
	return fromGrid(header, data), nil
}

func readSheet(b []byte, engine Engine) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(b))
	if err != nil {
		return nil, &ParseError{Err: fmt.Errorf("%s: open workbook: %w", engine, err)}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &ParseError{Err: fmt.Errorf("%s: workbook has no sheets", engine)}
	}
	sheet := sheets[0]

	switch engine {
	case EngineExcelize:
		rows, err := f.Rows(sheet)
		if err != nil {
			return nil, &ParseError{Err: fmt.Errorf("%s: sheet %q: %w", engine, sheet, err)}
		}
		defer rows.Close()

		var out [][]string
		for rows.Next() {
			cols, err := rows.Columns()
			if err != nil {
				return nil, &ParseError{Line: len(out) + 1, Err: fmt.Errorf("%s: %w", engine, err)}
			}
			out = append(out, cols)
		}
		if err := rows.Error(); err != nil {
			return nil, &ParseError{Err: fmt.Errorf("%s: %w", engine, err)}
		}
		return out, nil

	case EngineExcelizeRaw:
		out, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, &ParseError{Err: fmt.Errorf("%s: sheet %q: %w", engine, sheet, err)}
		}
		return out, nil
	}

	return nil, errors.New("unknown spreadsheet engine " + string(engine))
}

func blankRow(r []string) bool {
	for _, c := range r {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
