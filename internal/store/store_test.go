package store

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharmasourab93/market-gen/internal/table"
)

func openMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func readCSV(t *testing.T, s string) *table.Table {
	t.Helper()
	tbl, err := table.ReadCSV(strings.NewReader(s), table.CSVOptions{Delimiter: ','})
	require.NoError(t, err)
	return tbl
}

func TestSaveTable(t *testing.T) {
	s := openMemory(t)
	s.now = func() time.Time { return time.Date(2026, 10, 17, 10, 30, 0, 0, time.UTC) }
	ctx := context.Background()

	tbl := readCSV(t, "SYMBOL,CLOSE,DATE1\nTCS,4100.5,2026-10-17\nINFY,,2026-10-17\n")
	f, err := s.SaveTable(ctx, "bhavcopy", "https://example.com/bhav.csv", tbl)
	require.NoError(t, err)
	assert.Equal(t, 2, f.Rows)
	assert.NotZero(t, f.ID)

	n, err := s.Count(ctx, "bhavcopy")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var price float64
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT "CLOSE" FROM bhavcopy WHERE SYMBOL = 'TCS'`).Scan(&price))
	assert.InDelta(t, 4100.5, price, 1e-9)

	var missing any
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT "CLOSE" FROM bhavcopy WHERE SYMBOL = 'INFY'`).Scan(&missing))
	assert.Nil(t, missing)
}

func TestSaveTable_Replaces(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	_, err := s.SaveTable(ctx, "indices", "", readCSV(t, "a,b\n1,2\n3,4\n5,6\n"))
	require.NoError(t, err)
	_, err = s.SaveTable(ctx, "indices", "https://example.com/x", readCSV(t, "a,c\n1,x\n"))
	require.NoError(t, err)

	n, err := s.Count(ctx, "indices")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	log, err := s.Fetches(ctx, "indices")
	require.NoError(t, err)
	require.Len(t, log, 2)
	assert.Equal(t, 1, log[0].Rows, "newest first")
	assert.Equal(t, "https://example.com/x", log[0].SourceURL)
	assert.Equal(t, 3, log[1].Rows)
}

func TestSaveTable_QuotedNames(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	tbl := readCSV(t, `"Index ""Name""",Change(%)`+"\nNifty 50,0.62\n")
	_, err := s.SaveTable(ctx, `closing "all"`, "", tbl)
	require.NoError(t, err)

	n, err := s.Count(ctx, `closing "all"`)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSaveTable_CaseFoldedColumns(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	tbl := readCSV(t, "Close,CLOSE,close.1\n1,2,3\n")
	require.Equal(t, []string{"Close", "CLOSE", "close.1"}, tbl.Names())

	_, err := s.SaveTable(ctx, "prices", "", tbl)
	require.NoError(t, err)

	rows, err := s.db.QueryContext(ctx, "SELECT name FROM pragma_table_info('prices') ORDER BY cid")
	require.NoError(t, err)
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		cols = append(cols, name)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"Close", "CLOSE.1", "close.1.1"}, cols)
}

func TestSaveTable_Rejects(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()
	tbl := readCSV(t, "a,b\n1,2\n")

	for _, name := range []string{"", "  ", "fetches", "Fetches", "sqlite_master"} {
		_, err := s.SaveTable(ctx, name, "", tbl)
		assert.Error(t, err, "name %q", name)
	}

	empty, err := table.New()
	require.NoError(t, err)
	_, err = s.SaveTable(ctx, "empty", "", empty)
	assert.Error(t, err)
}
