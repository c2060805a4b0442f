package sniff

import (
	"errors"
	"unicode/utf8"
)

// ErrNoDialect is returned when no delimiter is used consistently enough to
// call the text CSV. Guessing a default would turn prose into a bogus table.
var ErrNoDialect = errors.New("could not determine delimiter")

const (
	sampleSize  = 64 << 10
	sampleLimit = 50
	consistency = 0.9
)

// Candidates in preference order. Space and colon are left out: prose and
// timestamps use them with regular-looking frequency.
var delimiters = []rune{',', '\t', ';', '|'}

// Dialect describes how a delimited text file is written.
type Dialect struct {
	Delimiter rune
	// Quoted is set when any sampled field is wrapped in double quotes.
	Quoted bool
	// SkipInitialSpace is set when most delimiters are followed by a space.
	SkipInitialSpace bool
}

// SniffDialect inspects the start of text and returns the delimiter whose
// field count is stable across records. A lone header record is enough when
// it splits into at least two fields, so holiday files with no rows still
// read as empty tables.
func SniffDialect(text []byte) (Dialect, error) {
	sample := text
	truncated := false
	if len(sample) > sampleSize {
		sample = sample[:sampleSize]
		truncated = true
	}

	var (
		best      Dialect
		bestScore float64
		found     bool
	)
	for _, d := range delimiters {
		recs := splitRecords(sample, d, truncated)
		if len(recs) == 0 {
			continue
		}
		score, ok := fieldConsistency(recs)
		if !ok || score < consistency {
			continue
		}
		if !found || score > bestScore {
			best = Dialect{Delimiter: d}
			bestScore = score
			found = true
			for _, r := range recs {
				best.Quoted = best.Quoted || r.quoted
			}
			best.SkipInitialSpace = followedBySpace(recs)
		}
	}
	if !found {
		return Dialect{}, ErrNoDialect
	}
	return best, nil
}

type record struct {
	fields int
	quoted bool
	// delimiters followed by a space, and all delimiters outside quotes
	spaced, delims int
}

// splitRecords walks the sample quote-aware: newlines and delimiters inside
// double quotes do not count. Blank lines are skipped. When the sample was
// cut short the last record is dropped as it may be incomplete.
func splitRecords(sample []byte, delim rune, truncated bool) []record {
	var (
		recs    []record
		cur     = record{fields: 1}
		inQuote bool
		empty   = true
	)
	flush := func() {
		if !empty {
			recs = append(recs, cur)
		}
		cur = record{fields: 1}
		empty = true
	}

	for i := 0; i < len(sample); {
		r, size := utf8.DecodeRune(sample[i:])
		i += size

		switch {
		case r == '"':
			inQuote = !inQuote
			cur.quoted = true
			empty = false
		case inQuote:
			empty = false
		case r == '\n':
			flush()
			if len(recs) >= sampleLimit {
				return recs
			}
		case r == '\r':
		case r == delim:
			cur.fields++
			cur.delims++
			if i < len(sample) && sample[i] == ' ' {
				cur.spaced++
			}
			empty = false
		default:
			empty = false
		}
	}
	if !truncated {
		flush()
	}
	return recs
}

// fieldConsistency returns the share of records whose field count equals the
// most common count. The most common count must be at least 2.
func fieldConsistency(recs []record) (float64, bool) {
	counts := make(map[int]int)
	for _, r := range recs {
		counts[r.fields]++
	}
	mode, modeN := 0, 0
	for fields, n := range counts {
		if n > modeN || (n == modeN && fields > mode) {
			mode, modeN = fields, n
		}
	}
	if mode < 2 {
		return 0, false
	}
	return float64(modeN) / float64(len(recs)), true
}

func followedBySpace(recs []record) bool {
	spaced, total := 0, 0
	for _, r := range recs {
		spaced += r.spaced
		total += r.delims
	}
	return total > 0 && spaced*2 > total
}
