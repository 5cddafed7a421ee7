// Package tradelog appends trades and filter decisions as JSON lines, one file per UTC day.
package tradelog

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	dayLayout  = "2006-01-02"
	timeLayout = time.RFC3339
	ext        = ".jsonl"
)

var mu sync.Mutex

type Entry struct {
	Time, Symbol, Side, OrderID, Reason string
	Qty                                 float64
	Price                               float64
	Stop                                float64 `json:",omitempty"`
	TakeProfit                          float64 `json:",omitempty"`

	// EntryPrice is the ledger entry price of the position a SELL closes.
	EntryPrice float64        `json:",omitempty"`
	Extra      map[string]any `json:"extra,omitempty"`
}

type DecisionEntry struct {
	Time, Symbol, Reason string
	Admitted             bool
	Price                float64
	Indicators           map[string]float64
	Extra                map[string]any `json:",omitempty"`
}

// Dir is the journal root, TRADER_LOG_DIR or ./logs.
func Dir() string {
	if v := os.Getenv("TRADER_LOG_DIR"); v != "" {
		return v
	}
	return "logs"
}

// TradeFile is the trade journal of the UTC day containing t.
func TradeFile(t time.Time) string {
	return filepath.Join(Dir(), t.UTC().Format(dayLayout)+ext)
}

func decisionsFile(t time.Time) string {
	return filepath.Join(Dir(), "decisions", t.UTC().Format(dayLayout)+ext)
}

var now = func() time.Time { return time.Now().UTC() }

func Append(e Entry) error {
	t := now()
	e.Time = t.Format(timeLayout)
	return appendLine(TradeFile(t), e)
}

func AppendDecision(e DecisionEntry) error {
	t := now()
	e.Time = t.Format(timeLayout)
	// NaN indicators would make the line unencodable
	for k, v := range e.Indicators {
		if v != v {
			delete(e.Indicators, k)
		}
	}
	return appendLine(decisionsFile(t), e)
}

func appendLine(p string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	mu.Lock()
	defer mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = fmt.Fprintln(f, string(b))
	return err
}

// CompressOlder gzips journal files last modified more than retentionDays ago and removes the originals.
func CompressOlder(retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	return filepath.WalkDir(Dir(), func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(p, ext) {
			return nil
		}
		info, err := d.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			return nil
		}
		gz := p + ".gz"
		if _, err := os.Stat(gz); err == nil {
			_ = os.Remove(p)
			return nil
		}
		if err := gzipFile(p, gz); err != nil {
			_ = os.Remove(gz)
			return nil
		}
		_ = os.Remove(p)
		return nil
	})
}

func gzipFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	gw := gzip.NewWriter(out)
	if _, err := io.Copy(gw, in); err != nil {
		gw.Close()
		out.Close()
		return err
	}
	if err := gw.Close(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
