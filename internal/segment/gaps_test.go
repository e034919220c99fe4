package segment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkers(t *testing.T) {
	profile := []float64{10, 10, 2, 10, 1, 1, 10}

	assert.Equal(t, []int{2, 4, 5}, Markers(profile, 10, 0.3, Ink))
	assert.Equal(t, []int{1, 3, 6}, Markers(profile, 10, 0.1, Blank))
	assert.Empty(t, Markers([]float64{10, 10}, 10, 0.3, Ink))
	assert.Empty(t, Markers(nil, 10, 0.3, Blank))
}

func TestPairs(t *testing.T) {
	assert.Equal(t, []Span{{Start: 3, End: 40}}, Pairs([]int{1, 3, 40, 45}, 30))
	assert.Empty(t, Pairs([]int{5}, 0))
	assert.Equal(t, []Span{{Start: 0, End: 1}, {Start: 1, End: 2}}, Pairs([]int{0, 1, 2}, 1))
}

func TestBoundaries(t *testing.T) {
	profile := make([]float64, 100)
	for i := range profile {
		profile[i] = 50
	}
	profile[10], profile[60], profile[61] = 0, 0, 0

	spans := Boundaries(profile, 50, SplittingRule{ThresholdScale: 0.3, MinDifference: 30}, Ink)
	require.Len(t, spans, 1)
	assert.Equal(t, Span{Start: 10, End: 60}, spans[0])
	assert.Equal(t, 50, spans[0].Len())
}

func TestSplittingRuleValidate(t *testing.T) {
	assert.NoError(t, SplittingRule{ThresholdScale: 0.3, MinDifference: 30}.Validate())
	assert.Error(t, SplittingRule{ThresholdScale: 0, MinDifference: 30}.Validate())
	assert.Error(t, SplittingRule{ThresholdScale: 1.2, MinDifference: 30}.Validate())
	assert.Error(t, SplittingRule{ThresholdScale: 0.3, MinDifference: -1}.Validate())
}
