package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
)

func TestRateMeter_Window(t *testing.T) {
	mock := clock.NewMock()
	r := NewRateMeter(mock)

	r.Add(60)
	mock.Add(time.Second)
	r.Add(60)
	assert.Equal(t, int64(120), r.Window())
	assert.InDelta(t, 2.0, r.Rate(), 0.001)

	mock.Add(59 * time.Second)
	assert.Equal(t, int64(60), r.Window(), "first bucket expired")

	mock.Add(2 * time.Minute)
	assert.Zero(t, r.Window())

	r.Add(5)
	r.Reset()
	assert.Zero(t, r.Window())
}

func TestTraffic_ByProtocol(t *testing.T) {
	tr := NewTraffic(clock.NewMock())

	tr.Log("http", 10, 200)
	tr.Log("http", 5, 0)
	tr.Log("", 3, 0)

	assert.Equal(t, Stats{TotalIn: 15, TotalOut: 200}, tr.ForProtocol("http"))
	assert.Equal(t, Stats{TotalIn: 3}, tr.ForProtocol(UnnegotiatedProtocol))
	assert.Equal(t, Stats{}, tr.ForProtocol("missing"))

	totals := tr.Totals()
	assert.Equal(t, int64(18), totals.TotalIn)
	assert.Equal(t, int64(200), totals.TotalOut)
	assert.Len(t, tr.ByProtocol(), 2)
}

func TestTraffic_TrimIdle(t *testing.T) {
	mock := clock.NewMock()
	tr := NewTraffic(mock)

	tr.Log("old", 1, 1)
	mock.Add(time.Hour)
	tr.Log("new", 1, 1)

	assert.Equal(t, 1, tr.TrimIdle(mock.Now().Add(-time.Minute)))
	assert.Equal(t, Stats{}, tr.ForProtocol("old"))
	assert.Equal(t, Stats{TotalIn: 1, TotalOut: 1}, tr.ForProtocol("new"))

	tr.Reset()
	assert.Empty(t, tr.ByProtocol())
	assert.Zero(t, tr.Totals().TotalIn)
}

func TestTraffic_Concurrent(t *testing.T) {
	tr := NewTraffic(nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			proto := "a"
			if i%2 == 0 {
				proto = "b"
			}
			tr.Log(proto, 2, 1)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(100), tr.Totals().TotalIn)
	assert.Equal(t, int64(50), tr.ForProtocol("a").TotalIn)
	assert.Equal(t, int64(25), tr.ForProtocol("b").TotalOut)
}
