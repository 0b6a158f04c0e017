package score

import (
	"math"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bvep.dev/stimulus-next/internal/pkg/errs"
)

func TestScoreSingleBlock(t *testing.T) {
	s := New(60)
	s.Block()
	require.NoError(t, s.Trial(true, 10))
	require.NoError(t, s.Trial(false, 20))
	require.NoError(t, s.Trial(true, 30))

	st := s.Stats()
	require.Len(t, st.HitRate.Blocks, 1)
	assert.InDelta(t, 66.6667, float64(st.HitRate.Blocks[0]), 1e-3)
	assert.InDelta(t, 66.6667, float64(st.HitRate.Average), 1e-3)

	// mean latency 20 frames at 60 Hz = 333.33 ms
	require.Len(t, st.ClassificationTime.Blocks, 1)
	assert.InDelta(t, 333.3333, float64(st.ClassificationTime.Blocks[0]), 1e-3)
	assert.InDelta(t, 333.3333, float64(st.ClassificationTime.Average), 1e-3)
}

func TestScorePerBlockAndAverage(t *testing.T) {
	s := New(60)
	s.Block()
	require.NoError(t, s.Trial(true, 6))
	require.NoError(t, s.Trial(true, 6))
	s.Block()
	require.NoError(t, s.Trial(false, 12))
	require.NoError(t, s.Trial(false, 12))

	st := s.Stats()
	require.Len(t, st.HitRate.Blocks, 2)
	assert.InDelta(t, 100, float64(st.HitRate.Blocks[0]), 1e-9)
	assert.InDelta(t, 0, float64(st.HitRate.Blocks[1]), 1e-9)
	// The average runs over the concatenation of all trials, not the mean of
	// block means.
	assert.InDelta(t, 50, float64(st.HitRate.Average), 1e-9)
	assert.InDelta(t, 150, float64(st.ClassificationTime.Average), 1e-9)
}

func TestScoreEmptyBlockIsNaN(t *testing.T) {
	s := New(60)
	s.Block()

	st := s.Stats()
	require.Len(t, st.HitRate.Blocks, 1)
	assert.True(t, math.IsNaN(float64(st.HitRate.Blocks[0])))
	assert.True(t, math.IsNaN(float64(st.HitRate.Average)))
	assert.True(t, math.IsNaN(float64(st.ClassificationTime.Average)))
}

func TestScoreTrialWithoutBlock(t *testing.T) {
	s := New(60)
	err := s.Trial(true, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrInvalidState)
}

func TestScoreZeroRefreshFallsBackToDefault(t *testing.T) {
	s := New(0)
	s.Block()
	require.NoError(t, s.Trial(true, 60))

	st := s.Stats()
	assert.InDelta(t, 1000, float64(st.ClassificationTime.Average), 1e-9)
}

func TestRateMarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		rate Rate
		want string
	}{
		{"finite", Rate(66.5), "66.5"},
		{"nan", Rate(math.NaN()), "null"},
		{"posinf", Rate(math.Inf(1)), "null"},
		{"neginf", Rate(math.Inf(-1)), "null"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(tt.rate)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(b))
		})
	}
}

func TestStatsMarshalWithEmptyBlock(t *testing.T) {
	s := New(60)
	s.Block()
	require.NoError(t, s.Trial(true, 30))
	s.Block() // left empty

	b, err := json.Marshal(s.Stats())
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"hitRate": {"blocks": [100, null], "average": 100},
		"classificationTime": {"blocks": [500, null], "average": 500}
	}`, string(b))
}
