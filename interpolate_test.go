package geopix_test

import (
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/twpayne/go-geopix"
)

type testSampler struct {
	samples [][]float64
}

func (s *testSampler) SamplePixels(pixelCoords []geopix.PixelCoord) ([]float64, error) {
	samples := make([]float64, len(pixelCoords))
	for i, pixelCoord := range pixelCoords {
		if pixelCoord.Y < 0 || len(s.samples) <= pixelCoord.Y || pixelCoord.X < 0 || len(s.samples[pixelCoord.Y]) <= pixelCoord.X {
			return nil, geopix.ErrOutOfBounds
		}
		samples[i] = s.samples[pixelCoord.Y][pixelCoord.X]
	}
	return samples, nil
}

func TestInterpolateBilinear(t *testing.T) {
	sampler := &testSampler{
		samples: [][]float64{
			{0, 1, 2},
			{2, 3, 4},
			{4, 5, 6},
		},
	}
	for _, tc := range []struct {
		positions [][2]float64
		expected  []float64
	}{
		{
			positions: [][2]float64{
				{0, 0},
				{1, 0},
				{0, 1},
				{1, 1},
				{0.5, 0.5},
				{0.5, 0},
				{0, 0.5},
				{1, 0.5},
				{0.5, 1},
				{2, 2},
			},
			expected: []float64{
				0,
				1,
				2,
				3,
				1.5,
				0.5,
				1,
				2,
				2.5,
				6,
			},
		},
	} {
		actual, err := geopix.InterpolateBilinear(sampler, tc.positions)
		assert.NoError(t, err)
		assert.Equal(t, tc.expected, actual)
	}

	_, err := geopix.InterpolateBilinear(sampler, [][2]float64{{2.5, 0}})
	assert.IsError(t, err, geopix.ErrOutOfBounds)
}
