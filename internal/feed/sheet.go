package feed

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"spot-swing-bot/internal/api"
	"spot-swing-bot/internal/interfaces"
	"spot-swing-bot/internal/logger"
)

const (
	colSymbol = 0
	colSignal = 1
	colBought = 5
)

// SheetConfig describes a shared spreadsheet of candidates.
type SheetConfig struct {
	URL string

	// Format is "csv" (export endpoint) or "html" (published page).
	Format string
	Quote  string

	// Labels accepted in the signal column, compared case-insensitively.
	Labels  []string
	Timeout time.Duration
}

// Sheet reads candidates from a spreadsheet. A row is a candidate when its symbol contains the quote
// currency, its signal is one of the labels and its "bought" column is empty. The first row is a header.
type Sheet struct {
	cfg    SheetConfig
	client *api.Client
	retry  api.RetryConfig
}

var _ interfaces.SymbolFeed = (*Sheet)(nil)

func NewSheet(cfg SheetConfig) *Sheet {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	cfg.Quote = strings.ToUpper(cfg.Quote)
	client := api.NewClient(
		api.WithTimeout(cfg.Timeout),
		api.WithHeader("Accept", "text/csv"),
		api.WithLogging(logger.IsDebugEnabled()),
	)
	return &Sheet{cfg: cfg, client: client, retry: api.DefaultRetryConfig()}
}

// ExportURL rewrites a spreadsheet edit link to its CSV export endpoint. Other URLs are returned as-is.
func ExportURL(raw string) string {
	if strings.Contains(raw, "/edit#gid=") {
		return strings.Replace(raw, "/edit#gid=", "/export?format=csv&gid=", 1)
	}
	i := strings.Index(raw, "/edit")
	if i < 0 {
		return raw
	}
	out := raw[:i] + "/export?format=csv"
	if u, err := url.Parse(raw); err == nil {
		gid := u.Query().Get("gid")
		if gid == "" {
			if frag, err := url.ParseQuery(u.Fragment); err == nil {
				gid = frag.Get("gid")
			}
		}
		if gid != "" {
			out += "&gid=" + gid
		}
	}
	return out
}

func (s *Sheet) Symbols(ctx context.Context) ([]string, error) {
	var rows [][]string
	var err error
	if strings.EqualFold(s.cfg.Format, "html") {
		rows, err = s.fetchHTML(ctx)
	} else {
		rows, err = s.fetchCSV(ctx)
	}
	if err != nil {
		return nil, err
	}
	picked := s.pick(rows)
	logger.Info(ctx, "Candidate sheet read", "rows", len(rows), "candidates", len(picked))
	return picked, nil
}

func (s *Sheet) pick(rows [][]string) []string {
	if len(rows) > 0 {
		rows = rows[1:]
	}
	labels := make(map[string]bool, len(s.cfg.Labels))
	for _, l := range s.cfg.Labels {
		labels[strings.ToUpper(strings.TrimSpace(l))] = true
	}
	var raw []string
	for _, r := range rows {
		if len(r) <= colSignal {
			continue
		}
		sym := strings.ToUpper(strings.TrimSpace(r[colSymbol]))
		if sym == "" || !strings.Contains(sym, s.cfg.Quote) {
			continue
		}
		if !labels[strings.ToUpper(strings.TrimSpace(r[colSignal]))] {
			continue
		}
		if len(r) > colBought && strings.TrimSpace(r[colBought]) != "" {
			continue
		}
		raw = append(raw, sym)
	}
	return Normalize(raw, s.cfg.Quote)
}

func (s *Sheet) fetchCSV(ctx context.Context) ([][]string, error) {
	resp, err := s.client.DoWithRetry(ctx, http.MethodGet, ExportURL(s.cfg.URL), nil, s.retry)
	if err != nil {
		return nil, fmt.Errorf("fetch sheet: %w", err)
	}
	r := csv.NewReader(bytes.NewReader(resp.Body))
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse sheet csv: %w", err)
	}
	return rows, nil
}

// fetchHTML scrapes a published sheet page: every table row with data cells becomes one row.
func (s *Sheet) fetchHTML(ctx context.Context) ([][]string, error) {
	var rows [][]string
	var scrapeErr error

	c := colly.NewCollector(colly.MaxDepth(1), colly.Async(false))
	c.SetRequestTimeout(s.cfg.Timeout)
	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
		}
	})
	c.OnHTML("table tr", func(e *colly.HTMLElement) {
		var cells []string
		e.DOM.Find("td").Each(func(_ int, td *goquery.Selection) {
			cells = append(cells, strings.TrimSpace(td.Text()))
		})
		if len(cells) > 0 {
			rows = append(rows, cells)
		}
	})
	c.OnError(func(r *colly.Response, err error) {
		scrapeErr = fmt.Errorf("scrape sheet: status %d: %w", r.StatusCode, err)
	})

	if err := c.Visit(s.cfg.URL); err != nil && scrapeErr == nil {
		scrapeErr = fmt.Errorf("scrape sheet: %w", err)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if scrapeErr != nil {
		return nil, scrapeErr
	}
	return rows, nil
}
