package geopix

import (
	"math"
	"testing"

	"github.com/alecthomas/assert/v2"
)

type testTagSource map[uint16][]float64

func (s testTagSource) TagDoubles(tag uint16) []float64 {
	return s[tag]
}

func TestResolveGeoTransform(t *testing.T) {
	for _, tc := range []struct {
		name        string
		tags        testTagSource
		expected    GeoTransform
		expectedErr error
	}{
		{
			name: "origin",
			tags: testTagSource{
				TagModelTiepoint:   {0, 0, 0, 6.5, 46, 0},
				TagModelPixelScale: {0.25, 0.125, 0},
			},
			expected: GeoTransform{
				OriginLongitude: 6.5,
				OriginLatitude:  46,
				PixelScaleX:     0.25,
				PixelScaleY:     0.125,
			},
		},
		{
			name: "offset_tie_point",
			tags: testTagSource{
				TagModelTiepoint:   {2, 4, 0, 10, 20, 0},
				TagModelPixelScale: {0.5, 0.25, 0},
			},
			expected: GeoTransform{
				OriginLongitude: 9,
				OriginLatitude:  21,
				PixelScaleX:     0.5,
				PixelScaleY:     0.25,
			},
		},
		{
			name: "missing_tie_point",
			tags: testTagSource{
				TagModelPixelScale: {1, 1, 0},
			},
			expectedErr: ErrGeoReference,
		},
		{
			name: "short_tie_point",
			tags: testTagSource{
				TagModelTiepoint:   {0, 0, 0, 0, 0},
				TagModelPixelScale: {1, 1, 0},
			},
			expectedErr: ErrGeoReference,
		},
		{
			name: "multiple_tie_points",
			tags: testTagSource{
				TagModelTiepoint:   {0, 0, 0, 0, 0, 0, 10, 10, 0, 10, -10, 0},
				TagModelPixelScale: {1, 1, 0},
			},
			expectedErr: ErrGeoReference,
		},
		{
			name: "missing_pixel_scale",
			tags: testTagSource{
				TagModelTiepoint: {0, 0, 0, 0, 0, 0},
			},
			expectedErr: ErrGeoReference,
		},
		{
			name: "zero_pixel_scale",
			tags: testTagSource{
				TagModelTiepoint:   {0, 0, 0, 0, 0, 0},
				TagModelPixelScale: {1, 0, 0},
			},
			expectedErr: ErrGeoReference,
		},
		{
			name: "negative_pixel_scale",
			tags: testTagSource{
				TagModelTiepoint:   {0, 0, 0, 0, 0, 0},
				TagModelPixelScale: {-1, 1, 0},
			},
			expectedErr: ErrGeoReference,
		},
		{
			name: "nan_pixel_scale",
			tags: testTagSource{
				TagModelTiepoint:   {0, 0, 0, 0, 0, 0},
				TagModelPixelScale: {math.NaN(), 1, 0},
			},
			expectedErr: ErrGeoReference,
		},
		{
			name: "infinite_origin",
			tags: testTagSource{
				TagModelTiepoint:   {0, 0, 0, math.Inf(1), 0, 0},
				TagModelPixelScale: {1, 1, 0},
			},
			expectedErr: ErrGeoReference,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			actual, err := ResolveGeoTransform(tc.tags)
			if tc.expectedErr != nil {
				assert.IsError(t, err, tc.expectedErr)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.expected, actual)
		})
	}

	_, err := ResolveGeoTransform(testTagSource{
		TagModelTiepoint:   {0, 0, 0, 0, 0, 0, 10, 10, 0, 10, -10, 0},
		TagModelPixelScale: {1, 1, 0},
	})
	assert.IsError(t, err, ErrGeoReference)
	assert.IsError(t, err, ErrFormat)
}

func TestGeoTransformPixel(t *testing.T) {
	geoTransform := GeoTransform{
		OriginLongitude: 0,
		OriginLatitude:  0,
		PixelScaleX:     1,
		PixelScaleY:     1,
	}
	for _, tc := range []struct {
		lat       float64
		lng       float64
		expectedX float64
		expectedY float64
	}{
		{lat: 0, lng: 0, expectedX: 0, expectedY: 0},
		{lat: -1, lng: 1, expectedX: 1, expectedY: 1},
		{lat: -0.49, lng: 0.49, expectedX: 0, expectedY: 0},
		{lat: -0.5, lng: 0.5, expectedX: 1, expectedY: 1},
		{lat: 0.5, lng: -0.5, expectedX: -1, expectedY: -1},
		{lat: 2, lng: -3, expectedX: -3, expectedY: -2},
	} {
		x, y := geoTransform.Pixel(tc.lat, tc.lng)
		assert.Equal(t, tc.expectedX, x)
		assert.Equal(t, tc.expectedY, y)
	}
}

func TestGeoTransformCoordinate(t *testing.T) {
	geoTransform := GeoTransform{
		OriginLongitude: 6,
		OriginLatitude:  47,
		PixelScaleX:     0.25,
		PixelScaleY:     0.5,
	}
	for y := range 4 {
		for x := range 4 {
			coord := geoTransform.Coordinate(PixelCoord{X: x, Y: y})
			actualX, actualY := geoTransform.Pixel(coord.Lat, coord.Lng)
			assert.Equal(t, float64(x), actualX)
			assert.Equal(t, float64(y), actualY)
		}
	}

	corners := geoTransform.Corners(4, 2)
	assert.Equal(t, Corners{
		UpperLeft:  Coordinate{Lat: 47, Lng: 6},
		LowerLeft:  Coordinate{Lat: 46, Lng: 6},
		UpperRight: Coordinate{Lat: 47, Lng: 7},
		LowerRight: Coordinate{Lat: 46, Lng: 7},
	}, corners)
	assert.True(t, corners.Contains(Coordinate{Lat: 46.5, Lng: 6.5}))
	assert.False(t, corners.Contains(Coordinate{Lat: 45.5, Lng: 6.5}))
}
