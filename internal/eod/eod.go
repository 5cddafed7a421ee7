// Package eod writes a per-symbol CSV summary of a UTC day's trade journal.
package eod

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"spot-swing-bot/internal/interfaces"
	"spot-swing-bot/internal/tradelog"
)

type eodSummarizer struct{}

var _ interfaces.EodSummarizer = (*eodSummarizer)(nil)

func NewSummarizer() interfaces.EodSummarizer {
	return &eodSummarizer{}
}

// CSVPath is where the summary of the UTC day containing t is written.
func CSVPath(t time.Time) string {
	return filepath.Join(tradelog.Dir(), "eod", t.UTC().Format("2006-01-02")+".csv")
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Pending reports the previous UTC day when it has a journal but no summary yet.
func (s *eodSummarizer) Pending(now time.Time) (time.Time, bool) {
	day := startOfDay(now).AddDate(0, 0, -1)
	if _, err := os.Stat(tradelog.TradeFile(day)); err != nil {
		return day, false
	}
	if _, err := os.Stat(CSVPath(day)); errors.Is(err, os.ErrNotExist) {
		return day, true
	}
	return day, false
}

// SummarizeDay aggregates the journal of day's UTC date. It returns "" without error when there were no
// trades.
func (s *eodSummarizer) SummarizeDay(ctx context.Context, day time.Time) (string, error) {
	inPath := tradelog.TradeFile(day)
	f, err := os.Open(inPath)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	defer f.Close()

	aggs := map[string]*aggRow{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		var tl tradeLine
		if err := json.Unmarshal(sc.Bytes(), &tl); err != nil || tl.Symbol == "" {
			continue
		}
		row := aggs[tl.Symbol]
		if row == nil {
			row = &aggRow{Symbol: tl.Symbol}
			aggs[tl.Symbol] = row
		}
		switch tl.Side {
		case "BUY":
			row.BuyQty += tl.Qty
			row.BuyValue += tl.Qty * tl.Price
		case "SELL":
			row.SellQty += tl.Qty
			row.SellValue += tl.Qty * tl.Price
			if tl.EntryPrice > 0 {
				row.RealizedPnL += tl.Qty * (tl.Price - tl.EntryPrice)
			} else {
				row.openSellQty += tl.Qty
				row.openSellValue += tl.Qty * tl.Price
			}
		}
	}
	if err := sc.Err(); err != nil {
		return "", err
	}
	if len(aggs) == 0 {
		return "", nil
	}
	return writeCSV(CSVPath(day), aggs)
}

func writeCSV(outPath string, aggs map[string]*aggRow) (string, error) {
	keys := make([]string, 0, len(aggs))
	for k := range aggs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", err
	}
	out, err := os.Create(outPath)
	if err != nil {
		return "", err
	}
	defer out.Close()
	w := csv.NewWriter(out)
	headers := []string{"symbol", "buy_qty", "buy_avg", "sell_qty", "sell_avg", "realized_pnl", "gross_buy_value", "gross_sell_value"}
	if err := w.Write(headers); err != nil {
		return "", err
	}
	var totalBuy, totalSell, totalPnL float64
	for _, k := range keys {
		r := aggs[k]
		var buyAvg, sellAvg float64
		if r.BuyQty > 0 {
			buyAvg = r.BuyValue / r.BuyQty
		}
		if r.SellQty > 0 {
			sellAvg = r.SellValue / r.SellQty
		}
		if r.BuyQty > 0 && r.openSellQty > 0 {
			r.RealizedPnL += math.Min(r.BuyQty, r.openSellQty) * (r.openSellValue/r.openSellQty - buyAvg)
		}
		rec := []string{r.Symbol, qty(r.BuyQty), fmt.Sprintf("%.4f", buyAvg), qty(r.SellQty), fmt.Sprintf("%.4f", sellAvg),
			fmt.Sprintf("%.2f", r.RealizedPnL), fmt.Sprintf("%.2f", r.BuyValue), fmt.Sprintf("%.2f", r.SellValue)}
		if err := w.Write(rec); err != nil {
			return "", err
		}
		totalBuy += r.BuyValue
		totalSell += r.SellValue
		totalPnL += r.RealizedPnL
	}
	if err := w.Write([]string{"TOTAL", "", "", "", "", fmt.Sprintf("%.2f", totalPnL), fmt.Sprintf("%.2f", totalBuy), fmt.Sprintf("%.2f", totalSell)}); err != nil {
		return "", err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return outPath, out.Sync()
}

func qty(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
