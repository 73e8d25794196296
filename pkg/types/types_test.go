package types

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPhase(t *testing.T) {
	tests := []struct {
		p        Phase
		want     string
		terminal bool
		detect   bool
	}{
		{PhaseInit, "init", false, true},
		{PhaseEncodingDetect, "encoding-detect", false, true},
		{PhaseDecompress, "decompress", false, false},
		{PhaseContentDetect, "content-detect", false, true},
		{PhaseContent, "content", false, false},
		{PhaseComplete, "complete", true, false},
		{PhaseError, "error", true, false},
		{Phase(99), "unknown", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.p.String())
			assert.Equal(t, tt.terminal, tt.p.IsTerminal())
			assert.Equal(t, tt.detect, tt.p.IsDetect())
		})
	}
}

func TestCategory_DetectPhaseRoundTrip(t *testing.T) {
	for c := CategoryProtocol; c < NumCategories; c++ {
		got, ok := c.DetectPhase().Category()
		assert.True(t, ok, c.String())
		assert.Equal(t, c, got)
		assert.True(t, c.Valid())
	}
	assert.False(t, Category(NumCategories).Valid())
	assert.Equal(t, "unknown", Category(-1).String())
}

func TestMatchResult(t *testing.T) {
	var zero MatchResult
	assert.True(t, zero.IsNoMatch(), "zero value must be NoMatch")

	assert.True(t, NoMatch().IsNoMatch())
	assert.True(t, Insufficient().IsInsufficient())
	assert.False(t, Insufficient().IsMatched())

	m := Matched("http/1.1")
	assert.True(t, m.IsMatched())
	assert.Equal(t, "http/1.1", m.Key())
	assert.Equal(t, "matched", m.String())

	// nil key 仍然是匹配
	assert.True(t, Matched(nil).IsMatched())
}

func TestMetricPoint_Validate(t *testing.T) {
	assert.NoError(t, MetricPoint{Name: "cpu.load", Value: 1.5}.Validate())
	assert.ErrorIs(t, MetricPoint{Name: "", Value: 1}.Validate(), ErrInvalidMetricPoint)
	assert.ErrorIs(t, MetricPoint{Name: "a b", Value: 1}.Validate(), ErrInvalidMetricPoint)
	assert.ErrorIs(t, MetricPoint{Name: "x", Value: math.NaN()}.Validate(), ErrInvalidMetricPoint)
	assert.ErrorIs(t, MetricPoint{Name: "x", Value: 1, TimestampMs: -1}.Validate(), ErrInvalidMetricPoint)
}
