package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
	"gopkg.in/yaml.v3"

	"github.com/sharmasourab93/market-gen/internal/table"
)

// Output formats accepted by --output.
const (
	formatTable = "table"
	formatCSV   = "csv"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

const maxCellWidth = 40

func render(w io.Writer, t *table.Table, format string) error {
	switch strings.ToLower(format) {
	case formatTable, "":
		return renderTable(w, t)
	case formatCSV:
		return table.WriteCSV(w, t)
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(t.Maps())
	case formatYAML:
		return renderYAML(w, t.Maps())
	}
	return fmt.Errorf("unknown output format %q (want table, csv, json or yaml)", format)
}

func renderYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// renderTable prints aligned columns. Widths are measured in terminal cells so
// that symbols like ₹ and CJK names line up.
func renderTable(w io.Writer, t *table.Table) error {
	records := t.Records()
	if len(records) == 0 || len(records[0]) == 0 {
		_, err := fmt.Fprintln(w, "(empty)")
		return err
	}

	widths := make([]int, len(records[0]))
	for _, rec := range records {
		for i, cell := range rec {
			widths[i] = max(widths[i], min(runewidth.StringWidth(cell), maxCellWidth))
		}
	}

	var b strings.Builder
	line := func(rec []string) {
		for i, cell := range rec {
			if i > 0 {
				b.WriteString("  ")
			}
			cell = runewidth.Truncate(cell, maxCellWidth, "…")
			if i == len(rec)-1 {
				b.WriteString(cell)
				continue
			}
			b.WriteString(runewidth.FillRight(cell, widths[i]))
		}
		b.WriteString("\n")
	}

	line(records[0])
	sep := make([]string, len(widths))
	for i, n := range widths {
		sep[i] = strings.Repeat("-", n)
	}
	line(sep)
	for _, rec := range records[1:] {
		line(rec)
	}

	_, err := io.WriteString(w, b.String())
	return err
}
