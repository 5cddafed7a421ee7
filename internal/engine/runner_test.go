package engine

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spot-swing-bot/internal/feed"
	"spot-swing-bot/internal/types"
)

type countingScanner struct {
	calls atomic.Int32
	last  atomic.Value
}

func (c *countingScanner) Scan(_ context.Context, symbols []string) []types.Outcome {
	c.calls.Add(1)
	c.last.Store(symbols)
	out := make([]types.Outcome, len(symbols))
	for i, s := range symbols {
		out[i] = types.Outcome{Symbol: s, Key: s, Status: types.StatusSkipped}
	}
	return out
}

type countingReconciler struct{ calls atomic.Int32 }

func (c *countingReconciler) Reconcile(context.Context) (types.ExitReport, error) {
	c.calls.Add(1)
	return types.ExitReport{}, nil
}

type stubEod struct {
	day      time.Time
	pending  bool
	summoned []time.Time
}

func (s *stubEod) SummarizeDay(_ context.Context, day time.Time) (string, error) {
	s.summoned = append(s.summoned, day)
	s.pending = false
	return "x.csv", nil
}

func (s *stubEod) Pending(time.Time) (time.Time, bool) { return s.day, s.pending }

func TestScanOnceUsesFeed(t *testing.T) {
	sc := &countingScanner{}
	r := &Runner{Feed: feed.NewStatic([]string{"btcusdt", "ETH/USDT"}, "USDT"), Scanner: sc}

	outs, err := r.ScanOnce(context.Background())
	require.NoError(t, err)
	assert.Len(t, outs, 2)
	assert.Equal(t, []string{"BTC-USDT", "ETH-USDT"}, sc.last.Load())
}

func TestReconcileOnceSummarizesPreviousDay(t *testing.T) {
	t.Setenv("TRADER_LOG_DIR", t.TempDir())
	day := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	e := &stubEod{day: day, pending: true}
	rc := &countingReconciler{}
	r := &Runner{Reconciler: rc, Eod: e, RetentionDays: 14}

	_, err := r.ReconcileOnce(context.Background())
	require.NoError(t, err)
	_, err = r.ReconcileOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(2), rc.calls.Load())
	assert.Equal(t, []time.Time{day}, e.summoned)
}

func TestRunFiresImmediatelyAndStops(t *testing.T) {
	t.Setenv("TRADER_LOG_DIR", t.TempDir())
	sc := &countingScanner{}
	rc := &countingReconciler{}
	r := &Runner{
		Feed:         feed.NewStatic([]string{"ETH-USDT"}, "USDT"),
		Scanner:      sc,
		Reconciler:   rc,
		ScanInterval: time.Hour,
		ExitInterval: 10 * time.Millisecond,
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return rc.calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop")
	}
	assert.Equal(t, int32(1), sc.calls.Load(), "scan fired once on start")
}
