// Package sniff decides what a downloaded payload is from its bytes alone.
// Declared content types from the exchange endpoints are unreliable and are
// never consulted.
//
// Classification is a fixed-priority check: Zip, CSV, Spreadsheet, Unknown.
// Zip-packaged spreadsheets share the zip magic number, so Classify reports
// them as Zip; the spreadsheet check is only reachable through ClassifyContent,
// which runs after the container has been unwrapped. Legacy (pre-zip)
// spreadsheets match neither and come back Unknown.
package sniff

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Kind is the classification of a payload.
type Kind int

const (
	Unknown Kind = iota
	Zip
	CSV
	Spreadsheet
)

func (k Kind) String() string {
	switch k {
	case Zip:
		return "zip"
	case CSV:
		return "csv"
	case Spreadsheet:
		return "spreadsheet"
	default:
		return "unknown"
	}
}

// Result is a classified buffer. Dialect is set only for CSV.
type Result struct {
	Kind    Kind
	Dialect Dialect
	// Text is the BOM-stripped payload when Kind is CSV.
	Text []byte
}

var zipMagic = []byte("PK\x03\x04")

// IsZip reports whether b starts with the zip local file header signature.
func IsZip(b []byte) bool {
	return bytes.HasPrefix(b, zipMagic)
}

// IsSpreadsheet reports whether b carries the zip-based workbook signature.
// It is the same signature as IsZip.
func IsSpreadsheet(b []byte) bool {
	return bytes.HasPrefix(b, zipMagic)
}

// Classify runs the full priority order, container check first.
func Classify(b []byte) Result {
	if IsZip(b) {
		return Result{Kind: Zip}
	}
	return ClassifyContent(b)
}

// ClassifyContent classifies an already unwrapped buffer: CSV, then
// Spreadsheet, then Unknown.
func ClassifyContent(b []byte) Result {
	if text, ok := DecodeUTF8(b); ok {
		if d, err := SniffDialect(text); err == nil {
			return Result{Kind: CSV, Dialect: d, Text: text}
		}
	}
	if IsSpreadsheet(b) {
		return Result{Kind: Spreadsheet}
	}
	return Result{Kind: Unknown}
}

// DecodeUTF8 returns b without a leading UTF-8 byte order mark, and false
// when b is not valid UTF-8.
func DecodeUTF8(b []byte) ([]byte, bool) {
	if !utf8.Valid(b) {
		return nil, false
	}
	out, _, err := transform.Bytes(unicode.UTF8BOM.NewDecoder(), b)
	if err != nil {
		return nil, false
	}
	return out, true
}
