// Package store saves downloaded tables to a SQLite file.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sharmasourab93/market-gen/internal/table"
)

const schema = `
CREATE TABLE IF NOT EXISTS fetches (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	source_url TEXT NOT NULL DEFAULT '',
	row_count INTEGER NOT NULL,
	fetched_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_fetches_name ON fetches(name);
`

// Store is a SQLite database holding one SQL table per saved table plus a
// log of every save.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Fetch is one entry of the save log.
type Fetch struct {
	ID        int64
	Name      string
	SourceURL string
	Rows      int
	FetchedAt time.Time
}

// Open opens or creates the database at path. ":memory:" works for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// a second connection to ":memory:" would be a different database
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveTable replaces the SQL table name with the contents of t and logs the
// save. Everything happens in one transaction.
func (s *Store) SaveTable(ctx context.Context, name, sourceURL string, t *table.Table) (Fetch, error) {
	if strings.TrimSpace(name) == "" {
		return Fetch{}, errors.New("table name is empty")
	}
	if strings.EqualFold(name, "fetches") || strings.HasPrefix(strings.ToLower(name), "sqlite_") {
		return Fetch{}, fmt.Errorf("table name %q is reserved", name)
	}
	if t.NumColumns() == 0 {
		return Fetch{}, errors.New("cannot save a table without columns")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Fetch{}, err
	}
	defer func() { _ = tx.Rollback() }()

	ident := quoteIdent(name)
	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+ident); err != nil {
		return Fetch{}, fmt.Errorf("drop %s: %w", name, err)
	}

	names := columnNames(t)
	defs := make([]string, t.NumColumns())
	marks := make([]string, t.NumColumns())
	for i := range defs {
		c := t.ColumnAt(i)
		defs[i] = quoteIdent(names[i]) + " " + sqlType(c.Kind())
		marks[i] = "?"
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", ident, strings.Join(defs, ", "))); err != nil {
		return Fetch{}, fmt.Errorf("create %s: %w", name, err)
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s VALUES (%s)", ident, strings.Join(marks, ", ")))
	if err != nil {
		return Fetch{}, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	args := make([]any, t.NumColumns())
	for i := 0; i < t.NumRows(); i++ {
		for j, v := range t.Row(i) {
			args[j] = sqlValue(v)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return Fetch{}, fmt.Errorf("insert row %d: %w", i+1, err)
		}
	}

	f := Fetch{Name: name, SourceURL: sourceURL, Rows: t.NumRows(), FetchedAt: s.now().UTC()}
	res, err := tx.ExecContext(ctx,
		"INSERT INTO fetches (name, source_url, row_count, fetched_at) VALUES (?, ?, ?, ?)",
		f.Name, f.SourceURL, f.Rows, f.FetchedAt)
	if err != nil {
		return Fetch{}, fmt.Errorf("log fetch: %w", err)
	}
	if f.ID, err = res.LastInsertId(); err != nil {
		return Fetch{}, err
	}

	if err := tx.Commit(); err != nil {
		return Fetch{}, err
	}
	return f, nil
}

// Fetches returns the save log for name, newest first.
func (s *Store) Fetches(ctx context.Context, name string) ([]Fetch, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, source_url, row_count, fetched_at FROM fetches WHERE name = ? ORDER BY id DESC", name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Fetch
	for rows.Next() {
		var f Fetch
		if err := rows.Scan(&f.ID, &f.Name, &f.SourceURL, &f.Rows, &f.FetchedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// Count returns the number of rows stored in the SQL table name.
func (s *Store) Count(ctx context.Context, name string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+quoteIdent(name)).Scan(&n)
	return n, err
}

// columnNames returns the table's column names made unique under SQLite's
// case-insensitive comparison: "Close", "CLOSE" becomes "Close", "CLOSE.1".
func columnNames(t *table.Table) []string {
	names := t.Names()
	used := make(map[string]bool, len(names))
	for i, name := range names {
		candidate := name
		for n := 1; used[strings.ToLower(candidate)]; n++ {
			candidate = fmt.Sprintf("%s.%d", name, n)
		}
		used[strings.ToLower(candidate)] = true
		names[i] = candidate
	}
	return names
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func sqlType(k table.Kind) string {
	if k == table.KindNumeric {
		return "NUMERIC"
	}
	return "TEXT"
}

func sqlValue(v table.Value) any {
	if v.IsNull() {
		return nil
	}
	return v.String()
}
