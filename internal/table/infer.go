package table

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/shopspring/decimal"
)

// Tokens read as missing, whatever the column type.
var naTokens = map[string]struct{}{
	"": {}, "#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {}, "N/A": {},
	"NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {}, "nan": {}, "null": {},
}

var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// Exchange bhavcopies mostly use the first layouts; the rest follow common exports.
var dateLayouts = []string{
	"02-Jan-2006",
	"02-Jan-2006 15:04:05",
	"02 Jan 2006",
	"Jan 02, 2006",
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"02/01/2006",
	"2006/01/02",
	"02.01.2006",
}

func isNA(s string) bool {
	_, ok := naTokens[strings.TrimSpace(s)]
	return ok
}

// parseNumeric accepts plain numbers plus thousands separators, currency
// symbols and accounting negatives such as "(1,234.50)".
func parseNumeric(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	s = strings.NewReplacer(",", "", "$", "", "₹", "", "€", "", "£", "").Replace(s)
	s = strings.TrimSpace(s)
	if negative {
		s = "-" + s
	}
	if !numericRegex.MatchString(s) {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	// dateparse happily reads bare digit runs as dates
	if len(s) < 6 || !strings.ContainsAny(s, "-/ :,") {
		return time.Time{}, false
	}
	t, err := dateparse.ParseStrict(s)
	if err != nil {
		return time.Time{}, false
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC), true
}

// inferColumn picks numeric if every present cell is numeric, else date if
// every present cell is a date, else string. An all-missing column is string.
func inferColumn(name string, raw []string) Column {
	values := make([]Value, len(raw))
	present := 0
	for _, s := range raw {
		if !isNA(s) {
			present++
		}
	}
	if present > 0 {
		if nums, ok := inferNumeric(raw); ok {
			return Column{name: name, kind: KindNumeric, values: nums}
		}
		if dates, ok := inferDates(raw); ok {
			return Column{name: name, kind: KindDate, values: dates}
		}
	}
	for i, s := range raw {
		if isNA(s) {
			values[i] = NewNull(KindString)
		} else {
			values[i] = NewString(s)
		}
	}
	return Column{name: name, kind: KindString, values: values}
}

func inferNumeric(raw []string) ([]Value, bool) {
	values := make([]Value, len(raw))
	for i, s := range raw {
		if isNA(s) {
			values[i] = NewNull(KindNumeric)
			continue
		}
		d, ok := parseNumeric(s)
		if !ok {
			return nil, false
		}
		values[i] = NewNumeric(d)
	}
	return values, true
}

func inferDates(raw []string) ([]Value, bool) {
	values := make([]Value, len(raw))
	for i, s := range raw {
		if isNA(s) {
			values[i] = NewNull(KindDate)
			continue
		}
		t, ok := parseDate(s)
		if !ok {
			return nil, false
		}
		values[i] = NewDate(t)
	}
	return values, true
}

// normalizeHeader names blank headers "Unnamed: i" and suffixes repeats
// with ".1", ".2", ... so every column name is unique.
func normalizeHeader(header []string) []string {
	out := make([]string, len(header))
	used := make(map[string]bool, len(header))
	counts := make(map[string]int)
	for i, h := range header {
		name := h
		if strings.TrimSpace(name) == "" {
			name = "Unnamed: " + strconv.Itoa(i)
		}
		base := name
		for used[name] {
			counts[base]++
			name = fmt.Sprintf("%s.%d", base, counts[base])
		}
		used[name] = true
		out[i] = name
	}
	return out
}
