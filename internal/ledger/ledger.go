// Package ledger is the durable record of open positions: symbol key -> entry price, stop and target.
//
// Every mutation is lock -> load -> mutate -> save -> unlock against the store, so no caller holds a copy
// of the document across I/O and concurrent processes cannot lose each other's writes.
package ledger

import (
	"context"
	"errors"

	"spot-swing-bot/internal/logger"
	"spot-swing-bot/internal/metrics"
	"spot-swing-bot/internal/symbol"
)

var ErrLockTimeout = errors.New("ledger: lock timeout")

// Store persists the whole document.
type Store interface {
	Load(ctx context.Context) (Positions, error)
	Save(ctx context.Context, p Positions) error
	// Lock blocks until the store is exclusively held or fails with ErrLockTimeout.
	Lock(ctx context.Context) (unlock func(), err error)
}

type Ledger struct {
	store Store
	quote string
}

// New wraps store. Keys read from the store are normalized against quote.
func New(store Store, quote string) *Ledger {
	return &Ledger{store: store, quote: quote}
}

// load reads the document with keys normalized. Unreadable entries keep their stored key and are only
// included when withUnreadable is set, which Update uses so a save carries them through.
func (l *Ledger) load(ctx context.Context, withUnreadable bool) (Positions, error) {
	raw, err := l.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	out := make(Positions, len(raw))
	for k, rec := range raw {
		if rec.Unreadable() {
			if withUnreadable {
				out[k] = rec
			}
			continue
		}
		key := symbol.Key(k, l.quote)
		if prev, dup := out[key]; dup && prev.Timestamp.After(rec.Timestamp) {
			continue
		}
		out[key] = rec
	}
	return out, nil
}

// Snapshot returns a copy of the current positions. Reads need no lock: saves replace the document whole.
func (l *Ledger) Snapshot(ctx context.Context) (Positions, error) {
	p, err := l.load(ctx, false)
	if err != nil {
		return nil, err
	}
	metrics.OpenPositions.Set(float64(len(p)))
	return p, nil
}

// Get looks up one key.
func (l *Ledger) Get(ctx context.Context, key string) (Record, bool, error) {
	p, err := l.load(ctx, false)
	if err != nil {
		return Record{}, false, err
	}
	rec, ok := p[symbol.Key(key, l.quote)]
	return rec, ok, nil
}

// Update applies fn under the store lock and saves the result. If fn returns an error nothing is written.
// fn may return errNoChange to skip the save. p includes unreadable entries so they survive the save.
func (l *Ledger) Update(ctx context.Context, fn func(Positions) error) (err error) {
	op := logger.StartOperation(ctx, "ledger.update")
	ctx = op.GetContext()
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
			op.EndWithError(err)
		} else {
			op.End()
		}
		metrics.LedgerWrites.WithLabelValues(result).Inc()
	}()

	unlock, err := l.store.Lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	p, err := l.load(ctx, true)
	if err != nil {
		return err
	}
	if err := fn(p); err != nil {
		if errors.Is(err, errNoChange) {
			return nil
		}
		return err
	}
	if err := l.store.Save(ctx, p); err != nil {
		return err
	}
	metrics.OpenPositions.Set(float64(readable(p)))
	return nil
}

func readable(p Positions) int {
	n := 0
	for _, rec := range p {
		if !rec.Unreadable() {
			n++
		}
	}
	return n
}

// Put records or replaces the position for key.
func (l *Ledger) Put(ctx context.Context, key string, rec Record) error {
	key = symbol.Key(key, l.quote)
	err := l.Update(ctx, func(p Positions) error {
		p[key] = rec
		return nil
	})
	if err == nil {
		logger.Debug(ctx, "Ledger put", "symbol", key, "price", rec.Price)
	}
	return err
}

// Remove drops key. Removing an absent key succeeds without writing.
func (l *Ledger) Remove(ctx context.Context, key string) error {
	key = symbol.Key(key, l.quote)
	return l.Update(ctx, func(p Positions) error {
		if _, ok := p[key]; !ok {
			return errNoChange
		}
		delete(p, key)
		return nil
	})
}

var errNoChange = errors.New("ledger: no change")
