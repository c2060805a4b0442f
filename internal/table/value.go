package table

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kind is the type shared by every value of a column.
type Kind int

const (
	KindString Kind = iota
	KindNumeric
	KindDate
)

func (k Kind) String() string {
	switch k {
	case KindNumeric:
		return "numeric"
	case KindDate:
		return "date"
	default:
		return "string"
	}
}

// Value is a single typed cell. The zero Value is a null string.
type Value struct {
	kind Kind
	null bool
	str  string
	num  decimal.Decimal
	date time.Time
}

// NewString returns a string value.
func NewString(s string) Value { return Value{kind: KindString, str: s} }

// NewNumeric returns a numeric value.
func NewNumeric(d decimal.Decimal) Value { return Value{kind: KindNumeric, num: d} }

// NewDate returns a date value.
func NewDate(t time.Time) Value { return Value{kind: KindDate, date: t} }

// NewNull returns a missing value of the given kind.
func NewNull(k Kind) Value { return Value{kind: k, null: true} }

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.null }

// Decimal returns the numeric value and false when v is null or not numeric.
func (v Value) Decimal() (decimal.Decimal, bool) {
	if v.null || v.kind != KindNumeric {
		return decimal.Zero, false
	}
	return v.num, true
}

// Time returns the date value and false when v is null or not a date.
func (v Value) Time() (time.Time, bool) {
	if v.null || v.kind != KindDate {
		return time.Time{}, false
	}
	return v.date, true
}

// String renders the value the way it is written back to CSV. Null renders empty.
func (v Value) String() string {
	if v.null {
		return ""
	}
	switch v.kind {
	case KindNumeric:
		return v.num.String()
	case KindDate:
		if v.date.Hour() == 0 && v.date.Minute() == 0 && v.date.Second() == 0 && v.date.Nanosecond() == 0 {
			return v.date.Format(dateLayout)
		}
		return v.date.Format(dateTimeLayout)
	default:
		return v.str
	}
}

// Interface returns a plain Go value for JSON/YAML encoding.
func (v Value) Interface() any {
	if v.null {
		return nil
	}
	switch v.kind {
	case KindNumeric:
		if f, exact := v.num.Float64(); exact {
			return f
		}
		return v.num.String()
	case KindDate:
		return v.String()
	default:
		return v.str
	}
}

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04:05"
)
