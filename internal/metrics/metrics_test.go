package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeRegistersMetrics(t *testing.T) {
	srv := Serve(":0")
	defer srv.Close()

	Decisions.WithLabelValues("liquidity_filter").Inc()
	ObserveCycle("scan", time.Now())

	mfs, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	assert.True(t, names["bot_decisions_total"])
	assert.True(t, names["bot_cycle_duration_seconds"])
}

func TestResultLabel(t *testing.T) {
	assert.Equal(t, "ok", Result(nil))
	assert.Equal(t, "error", Result(errors.New("x")))

	before := testutil.ToFloat64(Orders.WithLabelValues("BUY", Result(nil)))
	Orders.WithLabelValues("BUY", Result(nil)).Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(Orders.WithLabelValues("BUY", "ok")))
}
