package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-apmrouter/internal/core/aggregator"
	"github.com/dep2p/go-apmrouter/pkg/types"
)

// scrape 通过 handler 抓取文本格式指标
func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

type fixedCounts map[string]int64

func (f fixedCounts) Counts() map[string]int64 { return f }

func TestNew_Disabled(t *testing.T) {
	m, err := New(Config{Enabled: false})
	assert.ErrorIs(t, err, ErrDisabled)
	assert.Nil(t, m)
}

func TestObserver_Negotiation(t *testing.T) {
	m, err := New(Config{Enabled: true, Namespace: "test"})
	require.NoError(t, err)

	m.InitiatorFailed("http", types.PhaseInit, false)
	m.InitiatorFailed("zstd", types.PhaseEncodingDetect, true)
	m.InitiatorMatched("ingest", types.PhaseInit)
	m.InitiatorMatched("gzip", types.PhaseEncodingDetect)
	m.NegotiationCompleted(24, 3*time.Millisecond)
	m.NegotiationFailed(types.PhaseContentDetect, 1024, time.Second)

	out := scrape(t, m)
	assert.Contains(t, out, `test_negotiation_initiator_failed_total{initiator="http",phase="init",reason="no_match"} 1`)
	assert.Contains(t, out, `test_negotiation_initiator_failed_total{initiator="zstd",phase="encoding-detect",reason="install"} 1`)
	assert.Contains(t, out, `test_negotiation_initiator_matched_total{initiator="gzip",phase="encoding-detect"} 1`)
	assert.Contains(t, out, `test_negotiation_total{phase="complete",result="completed"} 1`)
	assert.Contains(t, out, `test_negotiation_total{phase="content-detect",result="failed"} 1`)
	assert.Contains(t, out, `test_negotiation_bytes_sum{result="failed"} 1024`)
	assert.Contains(t, out, `test_negotiation_duration_seconds_count{result="completed"} 1`)
}

func TestReporter_Connections(t *testing.T) {
	m, err := New(DefaultConfig())
	require.NoError(t, err)

	m.ConnOpened()
	m.ConnOpened()
	m.ConnClosed("ingest/gzip/json", 100, 20, time.Second)

	out := scrape(t, m)
	assert.Contains(t, out, "apmrouter_connections_active 1")
	assert.Contains(t, out, "apmrouter_connections_total 2")
	assert.Contains(t, out, `apmrouter_traffic_bytes_total{direction="in",protocol="ingest/gzip/json"} 100`)
	assert.Contains(t, out, `apmrouter_traffic_bytes_total{direction="out",protocol="ingest/gzip/json"} 20`)

	assert.Equal(t, Stats{TotalIn: 100, TotalOut: 20}, m.Traffic().ForProtocol("ingest/gzip/json"))
}

func TestRegisterAggregation(t *testing.T) {
	m, err := New(DefaultConfig())
	require.NoError(t, err)

	counters := aggregator.NewCounters()
	require.NoError(t, m.RegisterAggregation(counters))
	require.NoError(t, m.RegisterAggregation(nil))

	agg := aggregator.New(nopStage{}, aggregator.Options{Counters: counters, CloseCompletes: true})
	require.NoError(t, agg.Write([]byte("abc")))
	assert.Contains(t, scrape(t, m), "apmrouter_aggregation_in_flight 1")

	require.NoError(t, agg.Close())
	out := scrape(t, m)
	assert.Contains(t, out, "apmrouter_aggregation_in_flight 0")
	assert.Contains(t, out, "apmrouter_aggregation_completed_total 1")
	assert.Contains(t, out, "apmrouter_aggregation_delivered_bytes_total 3")

	assert.Error(t, m.RegisterAggregation(counters), "duplicate registration")
}

func TestRegisterRouter(t *testing.T) {
	m, err := New(DefaultConfig())
	require.NoError(t, err)

	require.NoError(t, m.RegisterRouter(fixedCounts{"received": 7, "rejected": 2, "series": 3}))

	out := scrape(t, m)
	assert.Contains(t, out, "apmrouter_router_received_total 7")
	assert.Contains(t, out, "apmrouter_router_rejected_total 2")
	assert.Contains(t, out, "apmrouter_router_dropped_total 0")
	assert.Contains(t, out, "apmrouter_router_series 3")
}

type nopStage struct{}

func (nopStage) Write([]byte) error { return nil }
func (nopStage) Close() error       { return nil }
