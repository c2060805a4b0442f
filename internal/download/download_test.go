package download

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/sharmasourab93/market-gen/internal/table"
)

const indexCSV = "Index Name,Index Date,Open Index Value,Closing Index Value\n" +
	"Nifty 50,17-10-2026,24200.10,24350.15\n" +
	"Nifty Bank,17-10-2026,51000.00,51200.55\n"

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, InitialInterval: time.Millisecond, Multiplier: 2, MaxInterval: 2 * time.Millisecond}
}

func newDownloader(rt http.RoundTripper) *Downloader {
	return New(Options{Retry: fastRetry(), Logger: quietLogger(), Transport: rt})
}

func zipOf(t *testing.T, entries ...[2]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.Create(e[0])
		require.NoError(t, err)
		_, err = w.Write([]byte(e[1]))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func workbook(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	rows := [][]any{
		{"Symbol", "Close", "Prev Close"},
		{"RELIANCE", 2950.4, 2910},
		{"TCS", 4100.5, 4120.5},
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &r))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

// exchange serves a cookie on "/" and refuses file requests without it, the
// way the exchange endpoints behave.
func exchange(t *testing.T, files map[string][]byte) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			http.SetCookie(w, &http.Cookie{Name: "nsit", Value: "session-1", Path: "/"})
			http.SetCookie(w, &http.Cookie{Name: "bm_sv", Value: "abc", Path: "/"})
			return
		}
		if c, err := r.Cookie("nsit"); err != nil || c.Value != "session-1" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		body, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		// content type is deliberately wrong
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(body)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestDownload_CSV(t *testing.T) {
	srv := exchange(t, map[string][]byte{
		"/ind_close_all.csv": []byte(indexCSV),
		// holidays publish the header and nothing else
		"/ind_close_holiday.csv": []byte("Index Name,Index Date,Closing Index Value\n"),
	})

	tests := []struct {
		path  string
		names []string
		rows  int
	}{
		{"/ind_close_all.csv", []string{"Index Name", "Index Date", "Open Index Value", "Closing Index Value"}, 2},
		{"/ind_close_holiday.csv", []string{"Index Name", "Index Date", "Closing Index Value"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			tbl, err := newDownloader(nil).Download(context.Background(), srv.URL+tt.path, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.names, tbl.Names())
			assert.Equal(t, tt.rows, tbl.NumRows())
		})
	}
}

func TestDownload_ForwardsHeadersAndCookies(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []string
	)
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.URL.Path+" "+r.Header.Get("User-Agent"))
		mu.Unlock()
		if r.URL.Path == "/" {
			http.SetCookie(w, &http.Cookie{Name: "ak_bmsc", Value: "xyz", Path: "/"})
			return
		}
		if c, err := r.Cookie("ak_bmsc"); err != nil || c.Value != "xyz" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_, _ = io.WriteString(w, indexCSV)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	headers := map[string]string{"User-Agent": "market-gen-test"}
	_, err := newDownloader(nil).Download(context.Background(), srv.URL+"/content/indices/file.csv?x=1", headers)
	require.NoError(t, err)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"/ market-gen-test", "/content/indices/file.csv market-gen-test"}, seen)
}

func TestDownload_Status(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing.csv":
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, indexCSV)
		case "/denied.csv":
			w.WriteHeader(http.StatusForbidden)
		case "/broken.csv":
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	tests := []struct {
		path    string
		want    error
		code    int
		message string
	}{
		{"/missing.csv", ErrResourceNotFound, 404, "URL: " + srv.URL + "/missing.csv, Status Code:404"},
		{"/denied.csv", ErrAccessDenied, 403, "Status Code Received: 403. For url: " + srv.URL + "/denied.csv"},
		{"/broken.csv", ErrUnexpectedStatus, 500, "Status Code Received: 500"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			_, err := newDownloader(nil).Download(context.Background(), srv.URL+tt.path, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.NotErrorIs(t, err, ErrUnrecognizedContent)

			var se *StatusError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.code, se.StatusCode)
			assert.Equal(t, tt.message, err.Error())
		})
	}
}

func TestDownload_ZipTakesFirstEntry(t *testing.T) {
	archive := zipOf(t,
		[2]string{"b_second_by_name.csv", "first,entry\n1,2\n"},
		[2]string{"a_first_by_name.csv", "other,entry\n3,4\n"},
	)
	srv := exchange(t, map[string][]byte{"/bhav.zip": archive})

	tbl, err := newDownloader(nil).Download(context.Background(), srv.URL+"/bhav.zip", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "entry"}, tbl.Names())
}

func TestDownload_Spreadsheets(t *testing.T) {
	book := workbook(t)
	direct, err := table.ReadSpreadsheet(book, table.EngineExcelize)
	require.NoError(t, err)

	srv := exchange(t, map[string][]byte{
		"/wrapped.zip": zipOf(t, [2]string{"report.xlsx", string(book)}),
		"/bare.xlsx":   book,
	})

	for _, path := range []string{"/wrapped.zip", "/bare.xlsx"} {
		t.Run(path, func(t *testing.T) {
			tbl, err := newDownloader(nil).Download(context.Background(), srv.URL+path, nil)
			require.NoError(t, err)
			assert.Equal(t, direct.Names(), tbl.Names())
			assert.Equal(t, direct.Records(), tbl.Records())
		})
	}
}

func TestDownload_UnrecognizedContent(t *testing.T) {
	tests := []struct {
		name   string
		body   []byte
		detail string
	}{
		{"prose", []byte("Scheduled maintenance.\nPlease come back later\n"), "text/plain"},
		{"html block page", []byte("<html><head><title>Access Denied</title></head><body>nope</body></html>"), `title "Access Denied"`},
		{"empty zip", zipOf(t), ""},
		{"corrupt zip", []byte("PK\x03\x04 not really an archive"), "zip"},
		{"zip of prose", zipOf(t, [2]string{"readme.txt", "nothing tabular here\n"}), ""},
		{"legacy workbook", append([]byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}, make([]byte, 1024)...), "legacy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := exchange(t, map[string][]byte{"/file": tt.body})

			tbl, err := newDownloader(nil).Download(context.Background(), srv.URL+"/file", nil)
			require.Error(t, err)
			assert.Nil(t, tbl)
			assert.ErrorIs(t, err, ErrUnrecognizedContent)
			assert.Contains(t, err.Error(), tt.detail)
		})
	}
}

func TestDownload_CSVRoundTrip(t *testing.T) {
	src, err := table.ReadCSV(strings.NewReader(indexCSV), table.CSVOptions{Delimiter: ','})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, table.WriteCSV(&buf, src))
	srv := exchange(t, map[string][]byte{"/round.csv": buf.Bytes()})

	got, err := newDownloader(nil).Download(context.Background(), srv.URL+"/round.csv", nil)
	require.NoError(t, err)
	assert.Equal(t, src.Names(), got.Names())
	assert.Equal(t, src.NumRows(), got.NumRows())
}

func TestDownload_BodyLimit(t *testing.T) {
	srv := exchange(t, map[string][]byte{"/big.csv": []byte(indexCSV)})
	d := New(Options{MaxBodyBytes: 16, Retry: fastRetry(), Logger: quietLogger()})

	_, err := d.Download(context.Background(), srv.URL+"/big.csv", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errTooLarge)
}

// countingTransport fails every request with err.
type countingTransport struct {
	calls atomic.Int32
	err   error
}

func (c *countingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	c.calls.Add(1)
	return nil, c.err
}

func TestDownload_CookieRetryIsBounded(t *testing.T) {
	rt := &countingTransport{err: &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}}

	_, err := newDownloader(rt).Download(context.Background(), "https://www.example.invalid/file.csv", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnreachable)
	assert.ErrorIs(t, err, ErrTransientNetwork)
	assert.Equal(t, int32(3), rt.calls.Load())
}

func TestDownload_NonTransientIsNotRetried(t *testing.T) {
	rt := &countingTransport{err: errors.New("tls: bad certificate")}

	_, err := newDownloader(rt).Download(context.Background(), "https://www.example.invalid/file.csv", nil)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTransientNetwork)
	assert.Equal(t, int32(1), rt.calls.Load())
}

func TestDownload_Canceled(t *testing.T) {
	rt := &countingTransport{err: &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newDownloader(rt).Download(ctx, "https://www.example.invalid/file.csv", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryPolicy_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := fastRetry().Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return io.ErrUnexpectedEOF
		}
		return nil
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDomainRoot(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"https://www.nseindia.com/api/reports?archives=x", "https://www.nseindia.com", false},
		{"http://archives.nseindia.com/content/indices/ind_close_all_17102026.csv", "http://archives.nseindia.com", false},
		{"www.nseindia.com/market-data", "https://www.nseindia.com", false},
		{"https://host:8443/a#frag", "https://host:8443", false},
		{"https:///nohost", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := DomainRoot(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassifyStatus(t *testing.T) {
	ok := RawResponse{Body: []byte("x"), StatusCode: 200, URL: "https://example.com/a"}
	got, err := ClassifyStatus(ok)
	require.NoError(t, err)
	assert.Equal(t, ok, got)

	_, err = ClassifyStatus(RawResponse{StatusCode: 403})
	assert.EqualError(t, err, "Status Code Received: 403")

	_, err = ClassifyStatus(RawResponse{StatusCode: 302, URL: "https://example.com/a"})
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
}

func TestFirstEntry(t *testing.T) {
	_, _, err := firstEntry(zipOf(t), 0)
	assert.ErrorIs(t, err, errEmptyArchive)

	name, b, err := firstEntry(zipOf(t, [2]string{"one.csv", "a,b\n"}, [2]string{"two.csv", "c,d\n"}), 0)
	require.NoError(t, err)
	assert.Equal(t, "one.csv", name)
	assert.Equal(t, "a,b\n", string(b))
}

// withLeadingEntry repacks archive with an extra entry in front of the rest.
func withLeadingEntry(t *testing.T, archive []byte, name, body string) []byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	require.NoError(t, err)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(name)
	require.NoError(t, err)
	_, err = w.Write([]byte(body))
	require.NoError(t, err)
	for _, f := range zr.File {
		require.NoError(t, zw.Copy(f))
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// wideRowCSV sniffs as comma separated but has one row wider than its header.
func wideRowCSV() string {
	var b strings.Builder
	b.WriteString("Symbol,Close\n")
	for i := 0; i < 9; i++ {
		b.WriteString("RELIANCE,2950.4\n")
	}
	b.WriteString("TCS,4100.5,4120.5\n")
	return b.String()
}

func TestDecode_ParseErrorRetriesRawBytes(t *testing.T) {
	book := workbook(t)
	direct, err := table.ReadSpreadsheet(book, table.EngineExcelize)
	require.NoError(t, err)

	t.Run("raw bytes are a workbook", func(t *testing.T) {
		var logs bytes.Buffer
		d := New(Options{Logger: slog.New(slog.NewTextHandler(&logs, nil))})

		tbl, err := d.Decode(withLeadingEntry(t, book, "0_summary.csv", wideRowCSV()))
		require.NoError(t, err)
		assert.Equal(t, direct.Records(), tbl.Records())
		assert.Contains(t, logs.String(), "retrying on raw response")
		assert.Contains(t, logs.String(), "expected 2 fields, saw 3")
	})

	t.Run("raw bytes unreadable too", func(t *testing.T) {
		var logs bytes.Buffer
		d := New(Options{Logger: slog.New(slog.NewTextHandler(&logs, nil))})

		tbl, err := d.Decode(zipOf(t, [2]string{"summary.csv", wideRowCSV()}))
		require.Error(t, err)
		assert.Nil(t, tbl)
		assert.ErrorIs(t, err, ErrUnrecognizedContent)
		assert.ErrorIs(t, err, table.ErrValue)
		assert.Contains(t, logs.String(), "retrying on raw response")
	})
}

func TestReadSpreadsheet_EngineFallback(t *testing.T) {
	book := workbook(t)
	orig := readWorkbook
	t.Cleanup(func() { readWorkbook = orig })

	want, err := orig(book, table.EngineExcelizeRaw)
	require.NoError(t, err)

	t.Run("value error moves to next engine", func(t *testing.T) {
		var tried []table.Engine
		readWorkbook = func(b []byte, engine table.Engine) (*table.Table, error) {
			tried = append(tried, engine)
			if engine == table.EngineExcelize {
				return nil, &table.ParseError{Line: 2, Err: errors.New("bad shared string index")}
			}
			return orig(b, engine)
		}

		var logs bytes.Buffer
		tbl, err := readSpreadsheet(book, slog.New(slog.NewTextHandler(&logs, nil)))
		require.NoError(t, err)
		assert.Equal(t, []table.Engine{table.EngineExcelize, table.EngineExcelizeRaw}, tried)
		assert.Equal(t, want.Records(), tbl.Records())
		assert.Contains(t, logs.String(), "spreadsheet engine failed")
		assert.Contains(t, logs.String(), "engine=excelize ")
	})

	t.Run("other errors stop", func(t *testing.T) {
		var tried []table.Engine
		boom := errors.New("out of memory")
		readWorkbook = func(b []byte, engine table.Engine) (*table.Table, error) {
			tried = append(tried, engine)
			return nil, boom
		}

		_, err := readSpreadsheet(book, quietLogger())
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, []table.Engine{table.EngineExcelize}, tried)
	})

	t.Run("every engine fails", func(t *testing.T) {
		readWorkbook = func(b []byte, engine table.Engine) (*table.Table, error) {
			return nil, &table.ParseError{Err: fmt.Errorf("%s: corrupt sheet", engine)}
		}

		_, err := readSpreadsheet(book, quietLogger())
		require.Error(t, err)
		assert.ErrorIs(t, err, table.ErrValue)
		assert.Contains(t, err.Error(), "excelize-raw: corrupt sheet")
	})
}
