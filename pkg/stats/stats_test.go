package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercentile(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		p        float64
		expected float64
	}{
		{"single value", []float64{42}, 0.5, 42},
		{"odd count median", []float64{3, 1, 2}, 0.5, 2},
		{"even count median interpolates", []float64{4, 1, 3, 2}, 0.5, 2.5},
		{"minimum", []float64{5, 9, 7}, 0, 5},
		{"maximum", []float64{5, 9, 7}, 1, 9},
		{"quarter interpolates", []float64{10, 20, 30, 40, 50}, 0.3, 22},
		{"ties", []float64{1, 1, 1, 1}, 0.75, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Percentile(tt.values, tt.p)
			require.True(t, ok)
			assert.InDelta(t, tt.expected, got, 1e-9)
		})
	}
}

func TestPercentileUndefined(t *testing.T) {
	_, ok := Percentile(nil, 0.5)
	assert.False(t, ok)

	_, ok = Percentile([]float64{1, 2}, -0.1)
	assert.False(t, ok)

	_, ok = Percentile([]float64{1, 2}, 1.1)
	assert.False(t, ok)

	_, ok = Median([]float64{})
	assert.False(t, ok)
}

func TestPercentileDoesNotReorderInput(t *testing.T) {
	values := []float64{3, 1, 2}
	_, _ = Percentile(values, 0.5)
	assert.Equal(t, []float64{3, 1, 2}, values)
}

func TestMedianMatchesHalfPercentile(t *testing.T) {
	samples := [][]float64{
		{1},
		{2, 8},
		{120, 95, 101, 133, 88},
		{60, 58, 72, 64, 66, 71},
	}

	for _, values := range samples {
		median, ok := Median(values)
		require.True(t, ok)
		half, ok := Percentile(values, 0.5)
		require.True(t, ok)
		assert.Equal(t, half, median)
	}
}

func TestPercentage(t *testing.T) {
	below90 := func(v float64) bool { return v < 90 }

	got, ok := Percentage([]float64{85, 95, 100, 88}, below90)
	require.True(t, ok)
	assert.InDelta(t, 50.0, got, 1e-9)

	got, ok = Percentage([]float64{120, 130}, below90)
	require.True(t, ok)
	assert.Zero(t, got)

	_, ok = Percentage([]float64{}, below90)
	assert.False(t, ok)

	words, ok := Percentage([]string{"a", "bb", "ccc"}, func(s string) bool { return len(s) > 1 })
	require.True(t, ok)
	assert.InDelta(t, 66.666, words, 0.001)
}

func TestMean(t *testing.T) {
	got, ok := Mean([]float64{1, 2, 3, 4})
	require.True(t, ok)
	assert.InDelta(t, 2.5, got, 1e-9)

	_, ok = Mean(nil)
	assert.False(t, ok)
}
