package geopix

import (
	"fmt"
	"math"
)

// A PixelSampler returns samples at pixel coordinates.
type PixelSampler interface {
	SamplePixels(pixelCoords []PixelCoord) ([]float64, error)
}

// InterpolateBilinear returns the bilinear interpolation of sampler at each
// fractional pixel position. Positions that fall exactly on a row or column
// only use that row or column.
func InterpolateBilinear(sampler PixelSampler, positions [][2]float64) ([]float64, error) {
	pixelCoords := make([]PixelCoord, 4*len(positions))
	for i, position := range positions {
		x0, y0 := math.Floor(position[0]), math.Floor(position[1])
		x1, y1 := x0, y0
		if position[0] != x0 {
			x1++
		}
		if position[1] != y0 {
			y1++
		}
		pixelCoords[4*i+0] = PixelCoord{X: int(x0), Y: int(y0)}
		pixelCoords[4*i+1] = PixelCoord{X: int(x1), Y: int(y0)}
		pixelCoords[4*i+2] = PixelCoord{X: int(x0), Y: int(y1)}
		pixelCoords[4*i+3] = PixelCoord{X: int(x1), Y: int(y1)}
	}
	samples, err := sampler.SamplePixels(pixelCoords)
	if err != nil {
		return nil, err
	}
	result := make([]float64, len(positions))
	for i, position := range positions {
		dx := position[0] - math.Floor(position[0])
		dy := position[1] - math.Floor(position[1])
		result[i] = 0 +
			samples[4*i+0]*(1-dx)*(1-dy) +
			samples[4*i+1]*dx*(1-dy) +
			samples[4*i+2]*(1-dx)*dy +
			samples[4*i+3]*dx*dy
	}
	return result, nil
}

// Interpolate returns the bilinear interpolation of r's samples at (lat, lng).
func (r *Raster) Interpolate(lat, lng float64) (float64, error) {
	if !(Coordinate{Lat: lat, Lng: lng}).Valid() {
		return 0, fmt.Errorf("%w: lat %g, lng %g", ErrInputRange, lat, lng)
	}
	x, y := r.geoTransform.Fractional(lat, lng)
	if x < 0 || float64(r.descriptor.Width) <= x || y < 0 || float64(r.descriptor.Height) <= y {
		return 0, fmt.Errorf("%w: pixel (%g, %g) outside %dx%d raster", ErrOutOfBounds, x, y, r.descriptor.Width, r.descriptor.Height)
	}
	values, err := InterpolateBilinear(r, [][2]float64{{x, y}})
	if err != nil {
		return 0, err
	}
	return values[0], nil
}
