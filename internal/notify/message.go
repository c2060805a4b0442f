package notify

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sharmasourab93/market-gen/internal/market"
	"github.com/sharmasourab93/market-gen/internal/table"
)

// DefaultDigestRows caps how many rows a digest lists.
const DefaultDigestRows = 20

var prefixes = map[market.Session]string{
	market.PreOpen:   "🔔 [Pre-Open]",
	market.Open:      "📈 [Market Open]",
	market.PostClose: "🌙 [Post-Close]",
	market.Closed:    "💤 [Market Closed]",
}

// Digest renders a table as a chat message: a headline with the market
// session, then one line per row with the key column and selected values.
// Digests built during trading hours are marked intraday.
type Digest struct {
	Title string
	// Key names the column that labels each line. Empty means the first column.
	Key string
	// Values lists the columns printed on each line. Empty means every column
	// except the key.
	Values []string
	// Limit caps the number of rows. Zero means DefaultDigestRows.
	Limit int
}

// Build formats t as of at.
func (d Digest) Build(t *table.Table, at time.Time) (string, error) {
	if t.NumColumns() == 0 {
		return "", errors.New("digest of a table without columns")
	}

	key := d.Key
	if key == "" {
		key = t.ColumnAt(0).Name()
	}
	keyCol, ok := t.Column(key)
	if !ok {
		return "", fmt.Errorf("digest key column %q not found", key)
	}

	names := d.Values
	if len(names) == 0 {
		for _, n := range t.Names() {
			if n != key {
				names = append(names, n)
			}
		}
	}
	cols := make([]table.Column, 0, len(names))
	for _, n := range names {
		c, ok := t.Column(n)
		if !ok {
			return "", fmt.Errorf("digest value column %q not found", n)
		}
		cols = append(cols, c)
	}

	limit := d.Limit
	if limit <= 0 {
		limit = DefaultDigestRows
	}

	session := market.SessionAt(at)
	var b strings.Builder
	b.WriteString(prefixes[session])
	if d.Title != "" {
		b.WriteString(" " + d.Title)
	}
	// files fetched while the market trades are still moving
	if session.Trading() {
		b.WriteString(" (intraday, subject to change)")
	}

	rows := min(limit, t.NumRows())
	for i := 0; i < rows; i++ {
		parts := make([]string, len(cols))
		for j, c := range cols {
			parts[j] = c.Name() + " " + display(c.Value(i))
		}
		fmt.Fprintf(&b, "\n%s: %s", display(keyCol.Value(i)), strings.Join(parts, " | "))
	}
	if more := t.NumRows() - rows; more > 0 {
		fmt.Fprintf(&b, "\n(+%d more)", more)
	}
	return b.String(), nil
}

func display(v table.Value) string {
	if v.IsNull() {
		return "-"
	}
	return v.String()
}
