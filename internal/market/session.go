// Package market knows the trading hours of the exchange.
package market

import (
	"sync"
	"time"
)

// Session is a phase of the trading day.
type Session string

const (
	PreOpen   Session = "Pre-Open"   // 09:00 ~ 09:15
	Open      Session = "Open"       // 09:15 ~ 15:30
	PostClose Session = "Post-Close" // 15:30 ~ 16:00
	Closed    Session = "Closed"
)

// Trading reports whether orders are matched during s.
func (s Session) Trading() bool {
	return s == Open
}

var (
	locOnce sync.Once
	loc     *time.Location
)

// Location returns the exchange time zone, falling back to a fixed +05:30
// offset when the zone database is unavailable.
func Location() *time.Location {
	locOnce.Do(func() {
		l, err := time.LoadLocation("Asia/Kolkata")
		if err != nil {
			l = time.FixedZone("IST", 5*3600+30*60)
		}
		loc = l
	})
	return loc
}

// SessionAt returns the session in effect at t. Weekends are Closed; exchange
// holidays are not known here.
func SessionAt(t time.Time) Session {
	now := t.In(Location())
	switch now.Weekday() {
	case time.Saturday, time.Sunday:
		return Closed
	}

	current := now.Hour()*100 + now.Minute()
	switch {
	case current >= 900 && current < 915:
		return PreOpen
	case current >= 915 && current < 1530:
		return Open
	case current >= 1530 && current < 1600:
		return PostClose
	}
	return Closed
}
