package cmd

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sharmasourab93/market-gen/internal/download"
	"github.com/sharmasourab93/market-gen/internal/notify"
	"github.com/sharmasourab93/market-gen/internal/store"
	"github.com/sharmasourab93/market-gen/internal/table"
)

type fetchOptions struct {
	headers   []string
	output    string
	dropNA    string
	pctChange string
	sqlite    string
	tableName string
	notify    bool
	title     string
	key       string
	values    []string
	limit     int
}

func newFetchCmd(a *app) *cobra.Command {
	o := &fetchOptions{}

	cmd := &cobra.Command{
		Use:   "fetch <url>",
		Short: "Download a market file and print it as a table",
		Example: `  market-gen fetch https://archives.nseindia.com/content/indices/ind_close_all_17102026.csv
  market-gen fetch https://nsearchives.nseindia.com/content/cm/BhavCopy_NSE_CM_0_0_0_20261017_F_0000.csv.zip --output json
  market-gen fetch <url> --dropna CLOSE_PRICE --pct-change CLOSE_PRICE,PREV_CLOSE --sqlite market.db
  market-gen fetch <url> --notify --key "Index Name" --values "Closing Index Value,Change(%)"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.fetch(cmd, args[0], o)
		},
	}

	f := cmd.Flags()
	f.StringArrayVarP(&o.headers, "header", "H", nil, "extra request header as key=value (repeatable)")
	f.StringVarP(&o.output, "output", "o", formatTable, "output format: table, csv, json, yaml, none")
	f.StringVar(&o.dropNA, "dropna", "", "drop rows with a missing value in this column")
	f.StringVar(&o.pctChange, "pct-change", "", "add a percent change column: col1,col2[,out]")
	f.StringVar(&o.sqlite, "sqlite", "", "save the table to this SQLite file (default: store.path)")
	f.StringVar(&o.tableName, "table", "", "SQLite table name (default: derived from the URL)")
	f.BoolVar(&o.notify, "notify", false, "send a summary to the configured Telegram chats")
	f.StringVar(&o.title, "title", "", "summary headline (default: the file name)")
	f.StringVar(&o.key, "key", "", "column labelling each summary line (default: first column)")
	f.StringSliceVar(&o.values, "values", nil, "columns listed on each summary line (default: all)")
	f.IntVar(&o.limit, "limit", notify.DefaultDigestRows, "maximum rows in the summary")
	return cmd
}

func (a *app) fetch(cmd *cobra.Command, rawURL string, o *fetchOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	headers, err := mergeHeaders(a.cfg.HTTP.Headers, o.headers)
	if err != nil {
		return err
	}

	d := download.New(download.Options{
		Timeout:           a.cfg.HTTP.Timeout,
		CookieTimeout:     a.cfg.HTTP.CookieTimeout,
		MaxBodyBytes:      a.cfg.HTTP.MaxBodyBytes,
		RequestsPerSecond: a.cfg.HTTP.RequestsPerSecond,
		Retry:             a.cfg.RetryPolicy(),
		Logger:            a.logger,
	})

	t, err := d.Download(ctx, rawURL, headers)
	if err != nil {
		return err
	}

	if t, err = transform(t, o); err != nil {
		return err
	}

	if dbPath := firstNonEmpty(o.sqlite, a.cfg.Store.Path); dbPath != "" {
		name := firstNonEmpty(o.tableName, tableName(rawURL))
		if err := a.save(ctx, dbPath, name, rawURL, t); err != nil {
			return err
		}
	}

	if o.notify {
		if err := a.sendDigest(ctx, rawURL, t, o); err != nil {
			return err
		}
	}

	if o.output == "none" {
		return nil
	}
	return render(cmd.OutOrStdout(), t, o.output)
}

func transform(t *table.Table, o *fetchOptions) (*table.Table, error) {
	var err error
	if o.dropNA != "" {
		if t, err = t.DropMissing(o.dropNA); err != nil {
			return nil, fmt.Errorf("--dropna: %w", err)
		}
	}
	if o.pctChange != "" {
		parts := strings.Split(o.pctChange, ",")
		if len(parts) < 2 || len(parts) > 3 {
			return nil, fmt.Errorf("--pct-change wants col1,col2[,out], got %q", o.pctChange)
		}
		out := "pct_change"
		if len(parts) == 3 {
			out = strings.TrimSpace(parts[2])
		}
		if t, err = t.PctChange(strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), out); err != nil {
			return nil, fmt.Errorf("--pct-change: %w", err)
		}
	}
	return t, nil
}

func (a *app) save(ctx context.Context, dbPath, name, source string, t *table.Table) error {
	st, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	f, err := st.SaveTable(ctx, name, source, t)
	if err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}
	a.logger.Info("table saved", "db", dbPath, "table", name, "rows", f.Rows, "fetch_id", f.ID)
	return nil
}

func (a *app) sendDigest(ctx context.Context, rawURL string, t *table.Table, o *fetchOptions) error {
	n, err := a.notifier()
	if err != nil {
		return err
	}

	title := firstNonEmpty(o.title, path.Base(urlPath(rawURL)))
	msg, err := notify.Digest{Title: title, Key: o.key, Values: o.values, Limit: o.limit}.Build(t, time.Now())
	if err != nil {
		return err
	}
	return n.Send(ctx, msg)
}

func (a *app) notifier() (notify.Notifier, error) {
	if !a.cfg.Telegram.Enabled {
		return notify.Discard{Logger: a.logger}, nil
	}
	settings, err := a.cfg.TelegramSettings()
	if err != nil {
		return nil, err
	}
	return notify.NewTelegram(settings, a.logger)
}

func mergeHeaders(base map[string]string, extra []string) (map[string]string, error) {
	out := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for _, h := range extra {
		k, v, ok := strings.Cut(h, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("--header wants key=value, got %q", h)
		}
		k = strings.TrimSpace(k)
		// header names are case-insensitive; drop a default of the same name
		for existing := range out {
			if strings.EqualFold(existing, k) {
				delete(out, existing)
			}
		}
		out[k] = strings.TrimSpace(v)
	}
	return out, nil
}

var nonIdent = regexp.MustCompile(`[^A-Za-z0-9_]+`)

// tableName turns the last path segment of rawURL into a SQL-friendly name:
// ".../ind_close_all_17102026.csv" becomes "ind_close_all_17102026".
func tableName(rawURL string) string {
	base := path.Base(urlPath(rawURL))
	if i := strings.Index(base, "."); i > 0 {
		base = base[:i]
	}
	name := strings.Trim(nonIdent.ReplaceAllString(base, "_"), "_")
	if name == "" {
		return "download"
	}
	if _, err := strconv.Atoi(name[:1]); err == nil {
		name = "t_" + name
	}
	return strings.ToLower(name)
}

func urlPath(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" {
		return "/"
	}
	return u.Path
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
